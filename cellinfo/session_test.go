package cellinfo

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/cellwatch/cellmon/at"
)

// fakeResponse scripts one command exchange: the response record lines,
// each already split into parameters, plus the status Unlock reports.
type fakeResponse struct {
	lines [][]string
	err   error
}

// fakeSession replays scripted responses per command, in order, and records
// the wire-level command sequence. Commands with no scripted response left
// fail the exchange.
type fakeSession struct {
	mu        sync.Mutex
	logMu     sync.Mutex
	responses map[string][]fakeResponse
	commands  []string

	cur   *fakeResponse
	line  int
	field int
	err   error
}

var _ at.Session = (*fakeSession)(nil)

func newFakeSession() *fakeSession {
	return &fakeSession{responses: make(map[string][]fakeResponse)}
}

// script queues a successful response of the given record lines.
func (f *fakeSession) script(cmd string, lines ...[]string) {
	f.responses[cmd] = append(f.responses[cmd], fakeResponse{lines: lines})
}

// scriptErr queues an exchange that fails with err.
func (f *fakeSession) scriptErr(cmd string, err error) {
	f.responses[cmd] = append(f.responses[cmd], fakeResponse{err: err})
}

// sent returns the commands issued so far.
func (f *fakeSession) sent() []string {
	f.logMu.Lock()
	defer f.logMu.Unlock()
	return append([]string(nil), f.commands...)
}

func (f *fakeSession) Lock() {
	f.mu.Lock()
	f.cur = nil
	f.line = -1
	f.field = 0
	f.err = nil
}

func (f *fakeSession) Unlock() error {
	err := f.err
	if f.cur != nil && f.cur.err != nil {
		err = f.cur.err
	}
	f.cur = nil
	f.err = nil
	f.mu.Unlock()
	return err
}

func (f *fakeSession) CommandStart(cmd string) {
	f.logMu.Lock()
	f.commands = append(f.commands, cmd)
	f.logMu.Unlock()

	queue := f.responses[cmd]
	if len(queue) == 0 {
		f.err = fmt.Errorf("%w: unscripted command %s", at.ErrResponse, cmd)
		return
	}
	f.cur = &queue[0]
	f.responses[cmd] = queue[1:]
}

func (f *fakeSession) CommandStop() {}

func (f *fakeSession) ResponseStart(prefix string) {
	if f.err != nil || f.cur == nil {
		return
	}
	f.line++
	f.field = 0
	if f.line >= len(f.cur.lines) {
		f.err = fmt.Errorf("%w: response has no line %d", at.ErrResponse, f.line)
	}
}

func (f *fakeSession) ReadInt() int {
	s, ok := f.next()
	if !ok {
		return -1
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		f.err = fmt.Errorf("%w: parameter %q is not an integer", at.ErrResponse, s)
		return -1
	}
	return v
}

func (f *fakeSession) ReadString(maxLen int) string {
	s, ok := f.next()
	if !ok {
		return ""
	}
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}

func (f *fakeSession) ReadLine(maxLen int) string {
	if f.err != nil || f.cur == nil || f.line < 0 || f.line >= len(f.cur.lines) {
		if f.err == nil {
			f.err = fmt.Errorf("%w: read outside a response", at.ErrResponse)
		}
		return ""
	}
	line := f.cur.lines[f.line]
	s := strings.Join(line[f.field:], ",")
	f.field = len(line)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}

func (f *fakeSession) SkipParameters(n int) {
	for i := 0; i < n; i++ {
		if _, ok := f.next(); !ok {
			return
		}
	}
}

func (f *fakeSession) ResponseStop() {}

func (f *fakeSession) next() (string, bool) {
	if f.err != nil || f.cur == nil || f.line < 0 || f.line >= len(f.cur.lines) {
		if f.err == nil {
			f.err = fmt.Errorf("%w: read outside a response", at.ErrResponse)
		}
		return "", false
	}
	line := f.cur.lines[f.line]
	if f.field >= len(line) {
		f.err = fmt.Errorf("%w: response parameter missing", at.ErrResponse)
		return "", false
	}
	s := line[f.field]
	f.field++
	return s, true
}

// fakeNet is a canned NetworkStatus.
type fakeNet struct {
	registered bool
	rat        Rat
}

func (n *fakeNet) IsRegistered() bool { return n.registered }
func (n *fakeNet) ActiveRat() Rat     { return n.rat }
