package cellinfo

import (
	"math"
)

// csqToDbm converts the coarse +CSQ RSSI index into dBm, rounded up to the
// nearest whole number. Index 99 ("not known") and anything past the table
// stay at the unknown sentinel.
var csqToDbm = [32]int32{
	-118, -115, -113, -110, -108, -105, -103, -100, // 0 - 7
	-98, -95, -93, -90, -88, -85, -83, -80, // 8 - 15
	-78, -76, -74, -73, -71, -69, -68, -65, // 16 - 23
	-63, -61, -60, -59, -58, -55, -53, -48, // 24 - 31
}

// rsrpCodeToDbm converts RSRP in TS 36.133 coding to dBm.
// 0 is -141 dBm or less, 1..96 run from -140 dBm to -45 dBm in 1 dBm steps,
// 97 is -44 dBm or greater, 255 is not known. Returns RsrpUnknown outside
// the valid coding.
func rsrpCodeToDbm(code int32) int32 {
	if code < 0 || code > 97 {
		return RsrpUnknown
	}
	dbm := code - (97 + 44)
	if dbm < -141 {
		dbm = -141
	}
	return dbm
}

// rsrqCodeToDb converts RSRQ in TS 36.133 coding to dB.
// 0 is less than -19.5 dB, 1..33 run from -19.5 dB to -3.5 dB in 0.5 dB
// steps, 34 is -3 dB or greater, 255 is not known. Returns RsrqUnknown
// outside the valid coding.
func rsrqCodeToDb(code int32) int32 {
	if code < 0 || code > 34 {
		return RsrqUnknown
	}
	db := (code - (34 + 6)) / 2
	if db < -19 {
		db = -19
	}
	return db
}

// computeSnrDb derives the signal-to-noise ratio in dB from RSSI and RSRP,
// SNR = RSRP / (RSSI - RSRP) in linear power. With RSSI equal to RSRP there
// is no measurable noise and the result is math.MaxInt32. Fails with
// ErrValueOutOfRange when either input is unknown or the ratio is undefined.
func computeSnrDb(rssiDbm, rsrpDbm int32) (int32, error) {
	if rssiDbm == RssiUnknown || rsrpDbm == RsrpUnknown {
		return 0, ErrValueOutOfRange
	}
	if rssiDbm == rsrpDbm {
		return math.MaxInt32, nil
	}
	rssi := math.Pow(10, float64(rssiDbm)/10)
	rsrp := math.Pow(10, float64(rsrpDbm)/10)
	noise := rssi - rsrp
	if noise <= 0 {
		return 0, ErrValueOutOfRange
	}
	snr := 10 * math.Log10(rsrp/noise)
	if math.IsNaN(snr) || math.IsInf(snr, 0) {
		return 0, ErrValueOutOfRange
	}
	return int32(snr), nil
}

// roundToInt32 rounds half away from zero, the convention for the decimal
// string readings of the reduced +UCGED query.
func roundToInt32(v float64) int32 {
	if v >= 0 {
		return int32(v + 0.5)
	}
	return int32(v - 0.5)
}
