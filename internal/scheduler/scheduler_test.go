package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestSchedule_ValidTime(t *testing.T) {
	s := New(nil)
	s.Start()
	defer s.Stop(context.Background())

	if err := s.Schedule("01:00", "Asia/Tokyo", func() {}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	next := s.Next()
	if next.IsZero() {
		t.Fatal("expected a next run time")
	}
	loc, _ := time.LoadLocation("Asia/Tokyo")
	local := next.In(loc)
	if local.Hour() != 1 || local.Minute() != 0 {
		t.Errorf("next run = %v, want 01:00 Asia/Tokyo", local)
	}
	if until := time.Until(next); until <= 0 || until > 24*time.Hour {
		t.Errorf("next run should be within a day, got %v", until)
	}
}

func TestSchedule_InvalidInput(t *testing.T) {
	s := New(nil)
	defer s.Stop(context.Background())

	for _, at := range []string{"25:00", "12:60", "abc", "1:00", "ab:cd"} {
		if err := s.Schedule(at, "", func() {}); err == nil {
			t.Errorf("expected error for %q", at)
		}
	}
	if err := s.Schedule("01:00", "Invalid/Zone", func() {}); err == nil {
		t.Error("expected error for invalid timezone")
	}
	if s.entryID != 0 {
		t.Error("failed schedules must not register an entry")
	}
}

func TestSchedule_Replaces(t *testing.T) {
	s := New(nil)
	defer s.Stop(context.Background())

	if err := s.Schedule("08:00", "UTC", func() {}); err != nil {
		t.Fatal(err)
	}
	firstEntry := s.entryID

	if err := s.Schedule("08:00", "UTC", func() {}); err != nil {
		t.Fatal(err)
	}
	if s.entryID != firstEntry {
		t.Error("identical schedule should keep the entry")
	}

	if err := s.Schedule("10:00", "UTC", func() {}); err != nil {
		t.Fatal(err)
	}
	if s.entryID == firstEntry {
		t.Error("expected entry ID to change after reschedule")
	}
	if n := len(s.cron.Entries()); n != 1 {
		t.Errorf("expected a single cron entry, got %d", n)
	}
}

func TestUnschedule(t *testing.T) {
	s := New(nil)
	defer s.Stop(context.Background())

	if err := s.Schedule("08:00", "", func() {}); err != nil {
		t.Fatal(err)
	}
	s.Unschedule()
	if !s.Next().IsZero() || len(s.cron.Entries()) != 0 {
		t.Error("expected no entries after Unschedule")
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in           string
		hour, minute int
	}{
		{"00:00", 0, 0},
		{"01:00", 1, 0},
		{"23:59", 23, 59},
	}
	for _, tt := range tests {
		h, m, err := parseTime(tt.in)
		if err != nil || h != tt.hour || m != tt.minute {
			t.Errorf("parseTime(%q) = %d, %d, %v", tt.in, h, m, err)
		}
	}
}
