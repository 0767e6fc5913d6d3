package cellinfo

import (
	"errors"
	"fmt"
	"time"
)

// clockStringMax comfortably holds "yy/MM/dd,hh:mm:ss+TZ".
const clockStringMax = 32

// GetTimeUTC returns the module's real-time clock reading as a UTC epoch
// value in seconds.
func (s *Service) GetTimeUTC(handle int) (int64, error) {
	inst, err := s.lookup(handle)
	if err != nil {
		return 0, err
	}
	inst.lock.Lock()
	defer inst.lock.Unlock()

	sess := inst.session
	sess.Lock()
	sess.CommandStart("AT+CCLK?")
	sess.CommandStop()
	sess.ResponseStart("+CCLK:")
	str := sess.ReadString(clockStringMax)
	sess.ResponseStop()
	if err := sess.Unlock(); err != nil {
		return 0, fmt.Errorf("%w: clock query: %v", ErrTransport, err)
	}

	epoch, err := decodeClockString(str)
	if err != nil {
		if errors.Is(err, ErrDecode) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %v", ErrUnknown, err)
	}
	return epoch, nil
}

// decodeClockString converts a module clock string of the fixed form
// "yy/MM/dd,hh:mm:ss" optionally followed by "±Q", where Q counts signed
// quarter-hour offsets from UTC, into a UTC epoch value.
//
// The fields sit at fixed character positions: two digits each at offsets
// 0, 3, 6, 9, 12 and 15. The two-digit year means 2000 + yy. When the
// offset is present it is subtracted to normalise the local reading to UTC.
func decodeClockString(str string) (int64, error) {
	if len(str) < 17 {
		return 0, fmt.Errorf("%w: clock string %q too short", ErrDecode, str)
	}

	var field [6]int
	for i, offset := range [6]int{0, 3, 6, 9, 12, 15} {
		v, err := twoDigits(str, offset)
		if err != nil {
			return 0, err
		}
		field[i] = v
	}

	epoch := time.Date(2000+field[0], time.Month(field[1]), field[2],
		field[3], field[4], field[5], 0, time.UTC).Unix()

	if len(str) >= 20 {
		q, err := twoDigits(str, 18)
		if err != nil {
			return 0, err
		}
		switch str[17] {
		case '+':
		case '-':
			q = -q
		default:
			return 0, fmt.Errorf("%w: clock string %q has a malformed timezone", ErrDecode, str)
		}
		epoch -= int64(q) * 15 * 60
	}

	if epoch < 0 {
		return 0, fmt.Errorf("%w: clock string %q is before the epoch", ErrDecode, str)
	}
	return epoch, nil
}

// twoDigits reads the two-character decimal group at the given offset.
func twoDigits(str string, offset int) (int, error) {
	if offset+2 > len(str) || !isNumeric(str[offset:offset+2]) {
		return 0, fmt.Errorf("%w: clock string %q has no digit group at %d", ErrDecode, str, offset)
	}
	return int(str[offset]-'0')*10 + int(str[offset+1]-'0'), nil
}
