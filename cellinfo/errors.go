package cellinfo

import "errors"

// Errors reported by this package. Callers classify with errors.Is; the
// wrapped messages carry the detail.
var (
	// ErrNotInitialised means the service itself has not been set up.
	ErrNotInitialised = errors.New("cellinfo: not initialised")

	// ErrInvalidParameter means a bad device handle or argument.
	ErrInvalidParameter = errors.New("cellinfo: invalid parameter")

	// ErrNotRegistered means the module is not attached to a network, so
	// there are no radio parameters to be read.
	ErrNotRegistered = errors.New("cellinfo: not registered")

	// ErrTransport means the command/response link reported a failure or
	// a malformed response.
	ErrTransport = errors.New("cellinfo: transport failure")

	// ErrValueOutOfRange means the SNR is undefined for the current
	// readings.
	ErrValueOutOfRange = errors.New("cellinfo: value out of range")

	// ErrDecode means a module response could not be decoded.
	ErrDecode = errors.New("cellinfo: decode failure")

	// ErrUnknown is an unclassified decode failure.
	ErrUnknown = errors.New("cellinfo: unknown failure")
)
