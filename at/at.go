// Package at implements the textual command/response link to a cellular
// radio module.
//
// AT commands follow a structured pattern: commands are sent with CR
// termination, responses arrive as CRLF-terminated lines and conclude with a
// final result code (OK, ERROR, +CME ERROR ...). Unsolicited Result Codes
// (URCs) can arrive asynchronously on the same link, interleaved with command
// responses. The package assumes "No Echo" mode (ATE0), which Client.Init
// configures.
//
// The Session interface is the contract consumed by the cellinfo package; the
// serial-backed Client is the production implementation.
package at

import (
	"errors"
	"fmt"
	"strings"
)

// Session is a locked command/response exchange with a module.
//
// A caller brackets each command with Lock/Unlock. Errors encountered in
// between are sticky: the first failure is remembered, subsequent calls
// become no-ops and Unlock reports it. This mirrors the way AT dialogues
// fail as a whole rather than per-field.
type Session interface {
	// Lock takes exclusive use of the link for one command exchange.
	Lock()

	// CommandStart begins sending a command, e.g. "AT+CSQ".
	CommandStart(cmd string)

	// CommandStop terminates the outgoing command.
	CommandStop()

	// ResponseStart positions the session at the response line with the
	// given prefix, skipping unrelated lines. An empty prefix accepts the
	// next information line verbatim, whatever it is; it also advances to
	// the following line of a multi-line response record.
	ResponseStart(prefix string)

	// ReadInt reads the next comma-separated response parameter as a
	// decimal integer. Returns -1 on failure.
	ReadInt() int

	// ReadString reads the next response parameter, stripped of any
	// enclosing quotes and truncated to maxLen bytes.
	ReadString(maxLen int) string

	// ReadLine reads the rest of the current response line as one string,
	// without comma splitting or quote stripping, truncated to maxLen
	// bytes. For free-text replies that may themselves contain commas.
	ReadLine(maxLen int) string

	// SkipParameters discards the next n response parameters.
	SkipParameters(n int)

	// ResponseStop consumes the remainder of the response up to and
	// including the final result code.
	ResponseStop()

	// Unlock releases the link and reports the first error, if any, seen
	// since Lock.
	Unlock() error
}

var (
	// ErrTimeout reports that the module produced no (further) response
	// within the command timeout.
	ErrTimeout = errors.New("at: response timeout")

	// ErrNotSupported reports a final result code stating that the module
	// does not implement the command.
	ErrNotSupported = errors.New("at: command not supported")

	// ErrResponse is any other error result or malformed response.
	ErrResponse = errors.New("at: error response")
)

// Final result codes from 3GPP TS 27.007 / Hayes.
const (
	respOK        = "OK"
	respError     = "ERROR"
	respNoCarrier = "NO CARRIER"
	respAborted   = "ABORTED"
	respCmeError  = "+CME ERROR:"
	respCmsError  = "+CMS ERROR:"
)

// finalResult classifies a response line as a final result code. The second
// return is nil for OK and an ErrNotSupported/ErrResponse-wrapped error for
// the failure codes.
func finalResult(line string) (bool, error) {
	switch {
	case line == respOK:
		return true, nil
	case line == respError, line == respNoCarrier, line == respAborted:
		return true, ErrResponse
	case strings.HasPrefix(line, respCmeError), strings.HasPrefix(line, respCmsError):
		detail := strings.TrimSpace(line[strings.Index(line, ":")+1:])
		if detail == "4" || strings.Contains(detail, "not supported") {
			return true, ErrNotSupported
		}
		return true, fmt.Errorf("%w: %s", ErrResponse, line)
	}
	return false, nil
}
