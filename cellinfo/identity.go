package cellinfo

import (
	"fmt"
	"log"

	"github.com/cellwatch/cellmon/at"
)

const (
	// imeiLength and imsiLength are the fixed sizes of the numeric
	// identity strings.
	imeiLength = 15
	imsiLength = 15

	// identityAttempts bounds the read-and-validate loop for identity
	// strings whose responses carry no prefix.
	identityAttempts = 10

	identityStringMax = 64
)

// GetImei returns the device identity (IMEI) of the module.
func (s *Service) GetImei(handle int) (string, error) {
	inst, err := s.lookup(handle)
	if err != nil {
		return "", err
	}
	inst.lock.Lock()
	defer inst.lock.Unlock()
	return readNumericIdentity(inst.session, "AT+CGSN", imeiLength)
}

// GetImsi returns the subscriber identity (IMSI) of the SIM in the module.
func (s *Service) GetImsi(handle int) (string, error) {
	inst, err := s.lookup(handle)
	if err != nil {
		return "", err
	}
	inst.lock.Lock()
	defer inst.lock.Unlock()
	return readNumericIdentity(inst.session, "AT+CIMI", imsiLength)
}

// GetIccid returns the ICCID of the SIM in the module.
func (s *Service) GetIccid(handle int) (string, error) {
	inst, err := s.lookup(handle)
	if err != nil {
		return "", err
	}
	inst.lock.Lock()
	defer inst.lock.Unlock()

	sess := inst.session
	sess.Lock()
	sess.CommandStart("AT+CCID")
	sess.CommandStop()
	sess.ResponseStart("+CCID:")
	str := sess.ReadString(identityStringMax)
	sess.ResponseStop()
	if err := sess.Unlock(); err != nil {
		return "", fmt.Errorf("%w: ICCID query: %v", ErrTransport, err)
	}
	return str, nil
}

// GetManufacturer returns the manufacturer identification string.
func (s *Service) GetManufacturer(handle int) (string, error) {
	return s.getIDString(handle, "AT+CGMI")
}

// GetModel returns the model identification string.
func (s *Service) GetModel(handle int) (string, error) {
	return s.getIDString(handle, "AT+CGMM")
}

// GetFirmwareVersion returns the firmware version string.
func (s *Service) GetFirmwareVersion(handle int) (string, error) {
	return s.getIDString(handle, "AT+CGMR")
}

// GetOperator returns the long alphanumeric name of the registered network
// operator.
func (s *Service) GetOperator(handle int) (string, error) {
	inst, err := s.lookup(handle)
	if err != nil {
		return "", err
	}
	inst.lock.Lock()
	defer inst.lock.Unlock()

	sess := inst.session
	// Select long alphanumeric format first.
	sess.Lock()
	sess.CommandStart("AT+COPS=3,0")
	sess.CommandStop()
	sess.ResponseStop()
	if err := sess.Unlock(); err != nil {
		return "", fmt.Errorf("%w: operator format select: %v", ErrTransport, err)
	}

	sess.Lock()
	sess.CommandStart("AT+COPS?")
	sess.CommandStop()
	sess.ResponseStart("+COPS:")
	sess.SkipParameters(2)
	str := sess.ReadString(identityStringMax)
	sess.ResponseStop()
	if err := sess.Unlock(); err != nil {
		return "", fmt.Errorf("%w: operator query: %v", ErrTransport, err)
	}
	return str, nil
}

// getIDString runs one of the prefix-less identification commands. The
// reply is free text that can itself contain commas, so it is read as a
// whole line rather than as a comma-split parameter.
func (s *Service) getIDString(handle int, cmd string) (string, error) {
	inst, err := s.lookup(handle)
	if err != nil {
		return "", err
	}
	inst.lock.Lock()
	defer inst.lock.Unlock()

	sess := inst.session
	sess.Lock()
	sess.CommandStart(cmd)
	sess.CommandStop()
	sess.ResponseStart("")
	str := sess.ReadLine(identityStringMax)
	sess.ResponseStop()
	if err := sess.Unlock(); err != nil {
		return "", fmt.Errorf("%w: %s query: %v", ErrTransport, cmd, err)
	}
	return str, nil
}

// readNumericIdentity reads a fixed-length, all-digits identity string.
//
// The response to these commands has no prefix, and the module can emit a
// URC just when the reply is expected, with no way of telling the two
// apart. Hence read up to identityAttempts times and accept the first reply
// of exactly the expected length made up entirely of numerals. This is a
// best-effort tolerance for message interleaving, not a protocol guarantee.
func readNumericIdentity(sess at.Session, cmd string, length int) (string, error) {
	for attempt := 0; attempt < identityAttempts; attempt++ {
		sess.Lock()
		sess.CommandStart(cmd)
		sess.CommandStop()
		sess.ResponseStart("")
		str := sess.ReadString(length)
		sess.ResponseStop()
		if err := sess.Unlock(); err == nil && len(str) == length && isNumeric(str) {
			return str, nil
		}
	}
	log.Printf("cellinfo: no valid reply to %s in %d attempts", cmd, identityAttempts)
	return "", fmt.Errorf("%w: no valid %d-digit reply to %s", ErrTransport, length, cmd)
}

// isNumeric reports whether s consists solely of decimal digits.
func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
