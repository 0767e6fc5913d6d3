package at

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultTimeout is the per-command response timeout. Modules answer
	// most queries well inside a second; network-touching commands can be
	// slower.
	DefaultTimeout = 8 * time.Second

	readChunk = 256
	idleSleep = 10 * time.Millisecond
)

// Client is a Session over a byte stream, typically a serial port opened
// with a short read timeout so that Read returns periodically even when the
// module is quiet.
type Client struct {
	mu      sync.Mutex
	rw      io.ReadWriter
	timeout time.Duration

	pending []byte // raw bytes received but not yet consumed as lines

	// Per-exchange state, valid between Lock and Unlock.
	err      error
	fields   []string
	raw      string
	respDone bool
}

// NewClient wraps rw in an AT client. A zero timeout selects DefaultTimeout.
func NewClient(rw io.ReadWriter, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{rw: rw, timeout: timeout}
}

// Init checks the link and puts the module into the mode the rest of the
// package expects: echo off, textual extended error reports, and EPS
// registration reporting with location information, so that +CEREG? replies
// carry the <tac>,<ci>,<AcT> fields.
func (c *Client) Init() error {
	for _, cmd := range []string{"AT", "ATE0", "AT+CMEE=2", "AT+CEREG=2"} {
		c.Lock()
		c.CommandStart(cmd)
		c.CommandStop()
		c.ResponseStop()
		if err := c.Unlock(); err != nil {
			return fmt.Errorf("module init %s: %w", cmd, err)
		}
	}
	return nil
}

func (c *Client) Lock() {
	c.mu.Lock()
	c.err = nil
	c.fields = nil
	c.raw = ""
	c.respDone = false
}

func (c *Client) Unlock() error {
	err := c.err
	c.err = nil
	c.fields = nil
	c.raw = ""
	c.respDone = false
	c.mu.Unlock()
	return err
}

func (c *Client) CommandStart(cmd string) {
	if c.err != nil {
		return
	}
	if _, err := c.rw.Write([]byte(cmd)); err != nil {
		c.err = fmt.Errorf("%w: write: %v", ErrResponse, err)
	}
}

func (c *Client) CommandStop() {
	if c.err != nil {
		return
	}
	if _, err := c.rw.Write([]byte("\r")); err != nil {
		c.err = fmt.Errorf("%w: write: %v", ErrResponse, err)
	}
}

func (c *Client) ResponseStart(prefix string) {
	if c.err != nil {
		return
	}
	c.fields = nil
	c.raw = ""
	for {
		line, err := c.readLine()
		if err != nil {
			c.err = err
			return
		}
		if line == "" {
			continue
		}
		if final, ferr := finalResult(line); final {
			// The response ended before the line we wanted.
			c.respDone = true
			if ferr != nil {
				c.err = ferr
			} else {
				c.err = fmt.Errorf("%w: no %q line in response", ErrResponse, prefix)
			}
			return
		}
		if prefix == "" {
			c.raw = line
			c.fields = splitFields(line)
			return
		}
		if strings.HasPrefix(line, prefix) {
			c.raw = strings.TrimSpace(line[len(prefix):])
			c.fields = splitFields(c.raw)
			return
		}
		// Anything else is a URC or an unrelated line: skip it.
	}
}

func (c *Client) ReadInt() int {
	f, ok := c.nextField()
	if !ok {
		return -1
	}
	v, err := strconv.Atoi(f)
	if err != nil {
		c.err = fmt.Errorf("%w: parameter %q is not an integer", ErrResponse, f)
		return -1
	}
	return v
}

func (c *Client) ReadString(maxLen int) string {
	f, ok := c.nextField()
	if !ok {
		return ""
	}
	if len(f) > maxLen {
		f = f[:maxLen]
	}
	return f
}

func (c *Client) ReadLine(maxLen int) string {
	if c.err != nil {
		return ""
	}
	s := c.raw
	c.raw = ""
	c.fields = nil
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}

func (c *Client) SkipParameters(n int) {
	for i := 0; i < n; i++ {
		if _, ok := c.nextField(); !ok {
			return
		}
	}
}

func (c *Client) ResponseStop() {
	if c.respDone {
		c.respDone = false
		return
	}
	if c.err != nil {
		return
	}
	for {
		line, err := c.readLine()
		if err != nil {
			c.err = err
			return
		}
		if final, ferr := finalResult(line); final {
			if ferr != nil {
				c.err = ferr
			}
			return
		}
	}
}

func (c *Client) nextField() (string, bool) {
	if c.err != nil {
		return "", false
	}
	if len(c.fields) == 0 {
		c.err = fmt.Errorf("%w: response parameter missing", ErrResponse)
		return "", false
	}
	f := c.fields[0]
	c.fields = c.fields[1:]
	return f, true
}

// readLine returns the next CRLF-terminated line, without its terminator,
// waiting up to the command timeout for it to arrive.
func (c *Client) readLine() (string, error) {
	deadline := time.Now().Add(c.timeout)
	buf := make([]byte, readChunk)
	for {
		if i := bytes.IndexByte(c.pending, '\n'); i >= 0 {
			line := strings.TrimRight(string(c.pending[:i]), "\r")
			c.pending = c.pending[i+1:]
			return line, nil
		}
		if time.Now().After(deadline) {
			return "", ErrTimeout
		}
		n, err := c.rw.Read(buf)
		if n > 0 {
			c.pending = append(c.pending, buf[:n]...)
			continue
		}
		if err != nil {
			if err == io.EOF {
				// A quiet, drained link and a timed-out one look the
				// same to callers.
				return "", ErrTimeout
			}
			return "", fmt.Errorf("%w: read: %v", ErrResponse, err)
		}
		// Serial read timeout tick with no data.
		time.Sleep(idleSleep)
	}
}

// splitFields breaks a response line into comma-separated parameters.
// Commas inside double quotes do not split, and the quotes themselves are
// stripped: `"21/08/05,12:30:00+04"` is one parameter.
func splitFields(s string) []string {
	if s == "" {
		return nil
	}
	var fields []string
	var cur strings.Builder
	inQuote := false
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
		case r == ',' && !inQuote:
			fields = append(fields, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(fields, strings.TrimSpace(cur.String()))
}
