package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/cellwatch/cellmon/at"
	"github.com/cellwatch/cellmon/cellinfo"
	"github.com/cellwatch/cellmon/store"
)

// scriptedSession replays canned response lines per command so handlers can
// be exercised without a serial port.
type scriptedSession struct {
	mu        sync.Mutex
	responses map[string][][]string

	cur   [][]string
	line  int
	field int
	err   error
}

var _ at.Session = (*scriptedSession)(nil)

func newScriptedSession() *scriptedSession {
	return &scriptedSession{responses: make(map[string][][]string)}
}

func (s *scriptedSession) script(cmd string, lines ...[]string) {
	s.responses[cmd] = lines
}

func (s *scriptedSession) Lock() {
	s.mu.Lock()
	s.cur = nil
	s.line = -1
	s.field = 0
	s.err = nil
}

func (s *scriptedSession) Unlock() error {
	err := s.err
	s.cur = nil
	s.err = nil
	s.mu.Unlock()
	return err
}

func (s *scriptedSession) CommandStart(cmd string) {
	lines, ok := s.responses[cmd]
	if !ok {
		s.err = fmt.Errorf("%w: unscripted command %s", at.ErrResponse, cmd)
		return
	}
	s.cur = lines
}

func (s *scriptedSession) CommandStop() {}

func (s *scriptedSession) ResponseStart(prefix string) {
	if s.err != nil || s.cur == nil {
		return
	}
	s.line++
	s.field = 0
	if s.line >= len(s.cur) {
		s.err = fmt.Errorf("%w: response has no line %d", at.ErrResponse, s.line)
	}
}

func (s *scriptedSession) ReadInt() int {
	v, ok := s.next()
	if !ok {
		return -1
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		s.err = fmt.Errorf("%w: parameter %q is not an integer", at.ErrResponse, v)
		return -1
	}
	return n
}

func (s *scriptedSession) ReadString(maxLen int) string {
	v, ok := s.next()
	if !ok {
		return ""
	}
	if len(v) > maxLen {
		v = v[:maxLen]
	}
	return v
}

func (s *scriptedSession) ReadLine(maxLen int) string {
	if s.err != nil || s.cur == nil || s.line < 0 || s.line >= len(s.cur) {
		if s.err == nil {
			s.err = fmt.Errorf("%w: read outside a response", at.ErrResponse)
		}
		return ""
	}
	line := s.cur[s.line]
	v := strings.Join(line[s.field:], ",")
	s.field = len(line)
	if len(v) > maxLen {
		v = v[:maxLen]
	}
	return v
}

func (s *scriptedSession) SkipParameters(n int) {
	for i := 0; i < n; i++ {
		if _, ok := s.next(); !ok {
			return
		}
	}
}

func (s *scriptedSession) ResponseStop() {}

func (s *scriptedSession) next() (string, bool) {
	if s.err != nil || s.cur == nil || s.line < 0 || s.line >= len(s.cur) {
		if s.err == nil {
			s.err = fmt.Errorf("%w: read outside a response", at.ErrResponse)
		}
		return "", false
	}
	line := s.cur[s.line]
	if s.field >= len(line) {
		s.err = fmt.Errorf("%w: response parameter missing", at.ErrResponse)
		return "", false
	}
	v := line[s.field]
	s.field++
	return v, true
}

type staticNet struct {
	registered bool
	rat        cellinfo.Rat
}

func (n *staticNet) IsRegistered() bool      { return n.registered }
func (n *staticNet) ActiveRat() cellinfo.Rat { return n.rat }

func newTestServer(t *testing.T, sess at.Session) (*Server, *httptest.Server) {
	t.Helper()

	svc := cellinfo.New()
	if _, err := svc.Register(1, cellinfo.FamilyGeneric, sess, &staticNet{registered: true, rat: cellinfo.RatLte}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	srv := NewServer(svc, db, NewHub(), 100)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, ts
}

func getJSON(t *testing.T, url string, wantStatus int) map[string]any {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s: status %d, want %d", url, resp.StatusCode, wantStatus)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestGetRadio(t *testing.T) {
	sess := newScriptedSession()
	sess.script("AT+CSQ", []string{"19", "99"})
	_, ts := newTestServer(t, sess)

	body := getJSON(t, ts.URL+"/api/radio/1", http.StatusOK)
	radio, ok := body["radio"].(map[string]any)
	if !ok {
		t.Fatalf("missing radio object in %v", body)
	}
	if got := radio["rssiDbm"].(float64); got != -73 {
		t.Errorf("rssiDbm = %v, want -73", got)
	}
	if got := radio["rxQual"].(float64); got != -1 {
		t.Errorf("rxQual = %v, want -1", got)
	}
}

func TestGetRadioUnknownHandle(t *testing.T) {
	_, ts := newTestServer(t, newScriptedSession())

	getJSON(t, ts.URL+"/api/radio/7", http.StatusNotFound)
	getJSON(t, ts.URL+"/api/radio/bogus", http.StatusNotFound)
}

func TestGetIdentityOmitsUnreadableFields(t *testing.T) {
	sess := newScriptedSession()
	sess.script("AT+CGMI", []string{"u-blox"})
	sess.script("AT+CGMM", []string{"SARA-R510M8S"})
	_, ts := newTestServer(t, sess)

	body := getJSON(t, ts.URL+"/api/identity/1", http.StatusOK)
	if body["manufacturer"] != "u-blox" {
		t.Errorf("manufacturer = %v, want u-blox", body["manufacturer"])
	}
	if body["model"] != "SARA-R510M8S" {
		t.Errorf("model = %v, want SARA-R510M8S", body["model"])
	}
	if _, present := body["imei"]; present {
		t.Errorf("imei should be omitted when unreadable, got %v", body["imei"])
	}
}

func TestGetTime(t *testing.T) {
	sess := newScriptedSession()
	sess.script("AT+CCLK?", []string{"21/08/05,12:30:00+04"})
	_, ts := newTestServer(t, sess)

	body := getJSON(t, ts.URL+"/api/time/1", http.StatusOK)
	if got := body["epoch"].(float64); got != 1628163000 {
		t.Errorf("epoch = %v, want 1628163000", got)
	}
	if body["utc"] != "2021-08-05T11:30:00Z" {
		t.Errorf("utc = %v, want 2021-08-05T11:30:00Z", body["utc"])
	}
}

func TestGetHistory(t *testing.T) {
	srv, ts := newTestServer(t, newScriptedSession())

	for i := 0; i < 3; i++ {
		if err := srv.db.SaveSnapshot(1, cellinfo.RadioParameters{RssiDbm: -70}, 0, false); err != nil {
			t.Fatalf("SaveSnapshot: %v", err)
		}
	}

	body := getJSON(t, ts.URL+"/api/history/1?limit=2", http.StatusOK)
	snaps, ok := body["snapshots"].([]any)
	if !ok {
		t.Fatalf("missing snapshots array in %v", body)
	}
	if len(snaps) != 2 {
		t.Errorf("got %d snapshots, want 2", len(snaps))
	}
}

func TestGetHistoryDisabled(t *testing.T) {
	svc := cellinfo.New()
	if _, err := svc.Register(1, cellinfo.FamilyGeneric, newScriptedSession(), &staticNet{}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// No store configured: history reports unavailable instead of failing.
	srv := NewServer(svc, nil, NewHub(), 100)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	getJSON(t, ts.URL+"/api/history/1", http.StatusServiceUnavailable)
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, newScriptedSession())

	body := getJSON(t, ts.URL+"/health", http.StatusOK)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
}
