package store

import (
	"testing"

	"github.com/cellwatch/cellmon/cellinfo"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndRecentSnapshots(t *testing.T) {
	s := openTestStore(t)

	for i := int32(0); i < 5; i++ {
		p := cellinfo.RadioParameters{
			RssiDbm: -70 - i,
			RsrpDbm: -100 - i,
			RsrqDb:  -10,
			RxQual:  -1,
			CellID:  461,
			Earfcn:  2525,
		}
		if err := s.SaveSnapshot(1, p, 0, false); err != nil {
			t.Fatalf("SaveSnapshot: %v", err)
		}
	}

	snaps, err := s.RecentSnapshots(1, 3)
	if err != nil {
		t.Fatalf("RecentSnapshots: %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("got %d snapshots, want 3", len(snaps))
	}
	// Newest first.
	if snaps[0].RssiDbm != -74 {
		t.Errorf("newest RssiDbm = %d, want -74", snaps[0].RssiDbm)
	}
	if snaps[2].RssiDbm != -72 {
		t.Errorf("oldest returned RssiDbm = %d, want -72", snaps[2].RssiDbm)
	}
}

func TestRecentSnapshotsFiltersHandle(t *testing.T) {
	s := openTestStore(t)

	if err := s.SaveSnapshot(1, cellinfo.RadioParameters{RssiDbm: -60}, 12, true); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if err := s.SaveSnapshot(2, cellinfo.RadioParameters{RssiDbm: -90}, 0, false); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	snaps, err := s.RecentSnapshots(1, 10)
	if err != nil {
		t.Fatalf("RecentSnapshots: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(snaps))
	}
	if !snaps[0].SnrKnown || snaps[0].SnrDb != 12 {
		t.Errorf("snr = (%d, %v), want (12, true)", snaps[0].SnrDb, snaps[0].SnrKnown)
	}
}

func TestPrune(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 10; i++ {
		if err := s.SaveSnapshot(1, cellinfo.RadioParameters{RssiDbm: -70}, 0, false); err != nil {
			t.Fatalf("SaveSnapshot: %v", err)
		}
	}
	if err := s.Prune(1, 4); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	snaps, err := s.RecentSnapshots(1, 100)
	if err != nil {
		t.Fatalf("RecentSnapshots: %v", err)
	}
	if len(snaps) != 4 {
		t.Errorf("got %d snapshots after prune, want 4", len(snaps))
	}
}
