package cellinfo

import "testing"

func TestMonitorIsRegistered(t *testing.T) {
	tests := []struct {
		stat string
		want bool
	}{
		{"1", true},  // home network
		{"5", true},  // roaming
		{"0", false}, // not searching
		{"2", false}, // searching
		{"3", false}, // denied
	}

	for _, test := range tests {
		sess := newFakeSession()
		sess.script("AT+CEREG?", []string{"0", test.stat})
		if got := NewMonitor(sess).IsRegistered(); got != test.want {
			t.Fatalf("stat %s: IsRegistered = %v, expected %v", test.stat, got, test.want)
		}
	}
}

func TestMonitorIsRegisteredTransportFailure(t *testing.T) {
	sess := newFakeSession() // nothing scripted
	if NewMonitor(sess).IsRegistered() {
		t.Fatal("IsRegistered = true on a failed query")
	}
}

func TestMonitorActiveRat(t *testing.T) {
	tests := []struct {
		act  string
		want Rat
	}{
		{"0", RatGsm},
		{"2", RatUmts},
		{"7", RatLte},
		{"8", RatCatM1},
		{"9", RatNbIot},
		{"42", RatUnknown},
	}

	for _, test := range tests {
		sess := newFakeSession()
		sess.script("AT+CEREG?", []string{"2", "1", "004C", "1A2D001", test.act})
		if got := NewMonitor(sess).ActiveRat(); got != test.want {
			t.Fatalf("act %s: ActiveRat = %v, expected %v", test.act, got, test.want)
		}
	}
}

func TestMonitorActiveRatOmitted(t *testing.T) {
	// Modules omit <tac>,<ci>,<AcT> while unregistered, or when the
	// session was never put into reporting mode 2.
	sess := newFakeSession()
	sess.script("AT+CEREG?", []string{"0", "0"})
	if got := NewMonitor(sess).ActiveRat(); got != RatUnknown {
		t.Fatalf("ActiveRat = %v, expected RatUnknown", got)
	}
}
