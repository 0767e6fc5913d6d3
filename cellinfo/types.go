// Package cellinfo acquires link-quality telemetry and identity strings from
// cellular radio modules over an AT command/response session, converting the
// module-specific numeric encodings into dBm/dB and plain strings.
//
// The package owns a table of device instances keyed by an integer handle.
// The device-management layer registers an instance when it opens a module
// and unregisters it on close; everything else here only looks handles up.
// All operations for instances sharing one AT session serialize on a single
// per-session mutex, so wire traffic never interleaves and a reader never
// observes a torn snapshot.
package cellinfo

import (
	"strings"
	"sync"
	"time"

	"github.com/cellwatch/cellmon/at"
)

// ModuleFamily selects which extended signal-quality query, if any, a module
// supports beyond the baseline +CSQ.
type ModuleFamily int

const (
	// FamilyGeneric modules answer +CSQ only.
	FamilyGeneric ModuleFamily = iota

	// FamilySaraR5 modules answer the structured multi-line +UCGED record.
	FamilySaraR5

	// FamilySaraR4 modules answer a reduced +UCGED variant, and only while
	// camped on an EUTRAN radio access technology.
	FamilySaraR4
)

func (f ModuleFamily) String() string {
	switch f {
	case FamilySaraR5:
		return "sara-r5"
	case FamilySaraR4:
		return "sara-r4"
	default:
		return "generic"
	}
}

// ParseModuleFamily maps a configuration string to a ModuleFamily.
func ParseModuleFamily(s string) (ModuleFamily, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sara-r5", "sara_r5", "r5":
		return FamilySaraR5, nil
	case "sara-r4", "sara_r4", "r4":
		return FamilySaraR4, nil
	case "generic", "":
		return FamilyGeneric, nil
	}
	return FamilyGeneric, ErrInvalidParameter
}

// Rat is a radio access technology.
type Rat int

const (
	RatUnknown Rat = iota
	RatGsm
	RatUmts
	RatLte
	RatCatM1
	RatNbIot
)

// IsEutran reports whether the RAT is an evolved-network technology, the
// precondition for the reduced +UCGED query.
func (r Rat) IsEutran() bool {
	return r == RatLte || r == RatCatM1 || r == RatNbIot
}

func (r Rat) String() string {
	switch r {
	case RatGsm:
		return "gsm"
	case RatUmts:
		return "umts"
	case RatLte:
		return "lte"
	case RatCatM1:
		return "cat-m1"
	case RatNbIot:
		return "nb-iot"
	default:
		return "unknown"
	}
}

// NetworkStatus reports the registration and radio-access state of a module.
// It is owned by the network layer, not by this package; see Monitor for the
// AT-backed implementation.
type NetworkStatus interface {
	IsRegistered() bool
	ActiveRat() Rat
}

// Unknown-value sentinels for the RadioParameters fields. A getter returns
// the sentinel both before any successful refresh and when the last refresh
// could not obtain the field.
const (
	RssiUnknown   int32 = 0
	RsrpUnknown   int32 = 0
	RsrqUnknown   int32 = 0
	RxQualUnknown int32 = -1
	CellIDUnknown int32 = -1
	EarfcnUnknown int32 = -1
)

// RadioParameters is the last-refreshed link-quality snapshot of one module.
type RadioParameters struct {
	RssiDbm int32 `json:"rssiDbm"`
	RsrpDbm int32 `json:"rsrpDbm"`
	RsrqDb  int32 `json:"rsrqDb"`
	RxQual  int32 `json:"rxQual"`
	CellID  int32 `json:"cellId"`
	Earfcn  int32 `json:"earfcn"`
}

// clear resets every field to its unknown sentinel.
func (p *RadioParameters) clear() {
	p.RssiDbm = RssiUnknown
	p.RsrpDbm = RsrpUnknown
	p.RsrqDb = RsrqUnknown
	p.RxQual = RxQualUnknown
	p.CellID = CellIDUnknown
	p.Earfcn = EarfcnUnknown
}

// DeviceInstance is one active module session in the instance table.
type DeviceInstance struct {
	handle  int
	family  ModuleFamily
	session at.Session
	net     NetworkStatus

	// lock serializes every operation on the physical session this
	// instance uses, shared between instances on the same session. It
	// also guards radio and the refresh bookkeeping.
	lock *sync.Mutex

	radio       RadioParameters
	lastRefresh time.Time
}

// Handle returns the stable handle of the instance.
func (i *DeviceInstance) Handle() int { return i.handle }

// Family returns the module-family tag of the instance.
func (i *DeviceInstance) Family() ModuleFamily { return i.family }

// Service is the radio-diagnostics subsystem: an instance table plus the
// query strategies that fill the per-instance snapshots.
type Service struct {
	mu        sync.RWMutex
	instances map[int]*DeviceInstance
	locks     map[at.Session]*sync.Mutex

	// sleep is the polling throttle primitive, replaceable in tests.
	sleep func(time.Duration)
}

// New returns an initialised, empty Service.
func New() *Service {
	return &Service{
		instances: make(map[int]*DeviceInstance),
		locks:     make(map[at.Session]*sync.Mutex),
		sleep:     time.Sleep,
	}
}

// Register adds a device instance for the given handle. Instances sharing
// one session share one lock. Called by the device-management layer when a
// module is opened.
func (s *Service) Register(handle int, family ModuleFamily, session at.Session, net NetworkStatus) (*DeviceInstance, error) {
	if s == nil || s.instances == nil {
		return nil, ErrNotInitialised
	}
	if session == nil || net == nil {
		return nil, ErrInvalidParameter
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.instances[handle]; exists {
		return nil, ErrInvalidParameter
	}
	lock := s.locks[session]
	if lock == nil {
		lock = &sync.Mutex{}
		s.locks[session] = lock
	}
	inst := &DeviceInstance{
		handle:  handle,
		family:  family,
		session: session,
		net:     net,
		lock:    lock,
	}
	inst.radio.clear()
	s.instances[handle] = inst
	return inst, nil
}

// Unregister removes the instance for the given handle, if any. Called by
// the device-management layer when a module is closed.
func (s *Service) Unregister(handle int) {
	if s == nil || s.instances == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.instances, handle)
}

// Handles returns the registered handles, for iteration by pollers and
// collectors.
func (s *Service) Handles() []int {
	if s == nil || s.instances == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	handles := make([]int, 0, len(s.instances))
	for h := range s.instances {
		handles = append(handles, h)
	}
	return handles
}

func (s *Service) instance(handle int) *DeviceInstance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.instances[handle]
}

// lookup resolves a handle, distinguishing an uninitialised service from a
// bad handle.
func (s *Service) lookup(handle int) (*DeviceInstance, error) {
	if s == nil || s.instances == nil {
		return nil, ErrNotInitialised
	}
	inst := s.instance(handle)
	if inst == nil {
		return nil, ErrInvalidParameter
	}
	return inst, nil
}
