package cellinfo

import (
	"github.com/cellwatch/cellmon/at"
)

// Monitor is an AT-backed NetworkStatus that reads the packet-switched
// registration state with +CEREG. Registration and RAT come from the same
// response; the circuit-switched domain is of no use to this subsystem.
type Monitor struct {
	sess at.Session
}

// NewMonitor returns a Monitor querying over the given session.
func NewMonitor(sess at.Session) *Monitor {
	return &Monitor{sess: sess}
}

// IsRegistered reports whether the module is registered with a network,
// either on its home network or roaming.
func (m *Monitor) IsRegistered() bool {
	sess := m.sess
	sess.Lock()
	sess.CommandStart("AT+CEREG?")
	sess.CommandStop()
	sess.ResponseStart("+CEREG:")
	sess.SkipParameters(1) // <n>, the URC mode
	stat := sess.ReadInt()
	sess.ResponseStop()
	if err := sess.Unlock(); err != nil {
		return false
	}
	return stat == 1 || stat == 5
}

// ActiveRat returns the radio access technology the module is currently
// camped on, RatUnknown when unregistered or when the module omits the
// optional <AcT> field. The <tac>,<ci>,<AcT> fields are only reported once
// the session has been put into AT+CEREG=2 mode, which the client's Init
// does; in the default mode the reply stops after <n>,<stat>.
func (m *Monitor) ActiveRat() Rat {
	sess := m.sess
	sess.Lock()
	sess.CommandStart("AT+CEREG?")
	sess.CommandStop()
	sess.ResponseStart("+CEREG:")
	sess.SkipParameters(2) // <n>,<stat>
	sess.ReadString(8)     // <tac>
	sess.ReadString(16)    // <ci>
	act := sess.ReadInt()
	sess.ResponseStop()
	if err := sess.Unlock(); err != nil {
		return RatUnknown
	}
	return ratFromAct(act)
}

// ratFromAct maps the 27.007 <AcT> coding to a Rat.
func ratFromAct(act int) Rat {
	switch act {
	case 0, 1, 3:
		return RatGsm
	case 2, 4, 5, 6:
		return RatUmts
	case 7:
		return RatLte
	case 8:
		return RatCatM1
	case 9:
		return RatNbIot
	}
	return RatUnknown
}
