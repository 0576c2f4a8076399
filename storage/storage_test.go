package storage

import (
	"testing"
	"time"
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

func TestInsertAndQuery(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := s.InsertReading(20+float32(i), 60, 80, base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("InsertReading: %v", err)
		}
	}

	readings, err := s.RecentReadings(200)
	if err != nil {
		t.Fatalf("RecentReadings: %v", err)
	}
	if len(readings) != 5 {
		t.Fatalf("got %d readings, want 5", len(readings))
	}
	if readings[0].Temperature != 20 || readings[4].Temperature != 24 {
		t.Errorf("unexpected ordering: first %v last %v", readings[0], readings[4])
	}
	if readings[0].Level != 80 {
		t.Errorf("level = %v, want 80", readings[0].Level)
	}
}

func TestRecentReadingsDownsamples(t *testing.T) {
	s := openTestStore(t)

	base := time.Now().UTC()
	for i := 0; i < 450; i++ {
		if err := s.InsertReading(20, 60, 50, base.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("InsertReading: %v", err)
		}
	}

	readings, err := s.RecentReadings(200)
	if err != nil {
		t.Fatalf("RecentReadings: %v", err)
	}
	// 450 rows at stride ceil(450/200)=3 keeps every third row.
	if len(readings) != 150 {
		t.Errorf("got %d readings, want 150", len(readings))
	}
}

func TestClear(t *testing.T) {
	s := openTestStore(t)

	if err := s.InsertReading(20, 60, 50, time.Now()); err != nil {
		t.Fatalf("InsertReading: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	readings, err := s.RecentReadings(10)
	if err != nil {
		t.Fatalf("RecentReadings: %v", err)
	}
	if len(readings) != 0 {
		t.Errorf("got %d readings after clear", len(readings))
	}
}
