package cellinfo

import "time"

// Per-field accessors of the last-refreshed snapshot. All are cheap reads
// under the session lock. They return the field's unknown sentinel, not an
// error, when no successful refresh has happened for the handle yet; note
// that a handful of real readings coincide with sentinel values, an
// intentional historical overload of the encoding.

// GetRssiDbm returns the received signal strength in dBm, or RssiUnknown.
func (s *Service) GetRssiDbm(handle int) int32 {
	inst, err := s.lookup(handle)
	if err != nil {
		return RssiUnknown
	}
	inst.lock.Lock()
	defer inst.lock.Unlock()
	return inst.radio.RssiDbm
}

// GetRsrpDbm returns the reference signal received power in dBm, or
// RsrpUnknown.
func (s *Service) GetRsrpDbm(handle int) int32 {
	inst, err := s.lookup(handle)
	if err != nil {
		return RsrpUnknown
	}
	inst.lock.Lock()
	defer inst.lock.Unlock()
	return inst.radio.RsrpDbm
}

// GetRsrqDb returns the reference signal received quality in dB, or
// RsrqUnknown.
func (s *Service) GetRsrqDb(handle int) int32 {
	inst, err := s.lookup(handle)
	if err != nil {
		return RsrqUnknown
	}
	inst.lock.Lock()
	defer inst.lock.Unlock()
	return inst.radio.RsrqDb
}

// GetRxQual returns the RxQual index, or RxQualUnknown.
func (s *Service) GetRxQual(handle int) int32 {
	inst, err := s.lookup(handle)
	if err != nil {
		return RxQualUnknown
	}
	inst.lock.Lock()
	defer inst.lock.Unlock()
	return inst.radio.RxQual
}

// GetCellID returns the cell identity, or CellIDUnknown.
func (s *Service) GetCellID(handle int) int32 {
	inst, err := s.lookup(handle)
	if err != nil {
		return CellIDUnknown
	}
	inst.lock.Lock()
	defer inst.lock.Unlock()
	return inst.radio.CellID
}

// GetEarfcn returns the radio channel number, or EarfcnUnknown.
func (s *Service) GetEarfcn(handle int) int32 {
	inst, err := s.lookup(handle)
	if err != nil {
		return EarfcnUnknown
	}
	inst.lock.Lock()
	defer inst.lock.Unlock()
	return inst.radio.Earfcn
}

// GetSnrDb derives the signal-to-noise ratio in dB from the last-refreshed
// RSSI and RSRP readings. An interference-free link (RSSI equal to RSRP)
// yields math.MaxInt32. Fails with ErrValueOutOfRange while either reading
// is unknown or the ratio is undefined.
func (s *Service) GetSnrDb(handle int) (int32, error) {
	inst, err := s.lookup(handle)
	if err != nil {
		return 0, err
	}
	inst.lock.Lock()
	defer inst.lock.Unlock()
	return computeSnrDb(inst.radio.RssiDbm, inst.radio.RsrpDbm)
}

// LastRefresh returns when the last successful refresh for the handle
// completed, zero if none has.
func (s *Service) LastRefresh(handle int) (time.Time, error) {
	inst, err := s.lookup(handle)
	if err != nil {
		return time.Time{}, err
	}
	inst.lock.Lock()
	defer inst.lock.Unlock()
	return inst.lastRefresh, nil
}

// Snapshot returns a copy of the whole last-refreshed snapshot.
func (s *Service) Snapshot(handle int) (RadioParameters, error) {
	inst, err := s.lookup(handle)
	if err != nil {
		return RadioParameters{}, err
	}
	inst.lock.Lock()
	defer inst.lock.Unlock()
	return inst.radio, nil
}
