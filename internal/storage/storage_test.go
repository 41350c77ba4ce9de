package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/KimpiegamesYT1/vissstick/internal/models"
	"github.com/google/uuid"
)

func mustStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(":memory:", models.DefaultParameters())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func event(date, clock string, opening bool) *models.TransitionEvent {
	return &models.TransitionEvent{
		ID:        uuid.New().String(),
		DateKey:   date,
		TimeOfDay: clock,
		IsOpening: opening,
	}
}

func TestStorage_AddAndGetEvents(t *testing.T) {
	s := mustStorage(t)

	for _, e := range []*models.TransitionEvent{
		event("2024-01-08", "09:00", true),
		event("2024-01-08", "17:30", false),
		event("2024-01-09", "08:45", true),
	} {
		if err := s.AddEvent(e); err != nil {
			t.Fatalf("AddEvent failed: %v", err)
		}
	}

	events, err := s.GetEventsSince("")
	if err != nil {
		t.Fatalf("GetEventsSince failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}
	if events[0].TimeOfDay != "09:00" || !events[0].IsOpening {
		t.Errorf("Unexpected first event: %+v", events[0])
	}
	if events[1].IsOpening {
		t.Errorf("Expected second event to be a closing, got %+v", events[1])
	}
	if events[2].DateKey != "2024-01-09" {
		t.Errorf("Expected last event on 2024-01-09, got %s", events[2].DateKey)
	}

	since, err := s.GetEventsSince("2024-01-09")
	if err != nil {
		t.Fatalf("GetEventsSince failed: %v", err)
	}
	if len(since) != 1 {
		t.Errorf("Expected 1 event since 2024-01-09, got %d", len(since))
	}
}

func TestStorage_ManualInsertIsOrderedChronologically(t *testing.T) {
	s := mustStorage(t)

	if err := s.AddEvent(event("2024-01-08", "17:30", false)); err != nil {
		t.Fatalf("AddEvent failed: %v", err)
	}
	// Backfilled opening for the same day arrives later
	if err := s.AddEvent(event("2024-01-08", "09:00", true)); err != nil {
		t.Fatalf("AddEvent failed: %v", err)
	}

	events, err := s.GetEventsSince("")
	if err != nil {
		t.Fatalf("GetEventsSince failed: %v", err)
	}
	if len(events) != 2 || events[0].TimeOfDay != "09:00" {
		t.Errorf("Expected opening first, got %+v", events)
	}
}

func TestStorage_DuplicateEvent(t *testing.T) {
	s := mustStorage(t)

	if err := s.AddEvent(event("2024-01-08", "09:00", true)); err != nil {
		t.Fatalf("AddEvent failed: %v", err)
	}
	err := s.AddEvent(event("2024-01-08", "09:00", true))
	if !errors.Is(err, ErrDuplicateEvent) {
		t.Errorf("Expected ErrDuplicateEvent, got %v", err)
	}

	// Same minute, other direction is a distinct event
	if err := s.AddEvent(event("2024-01-08", "09:00", false)); err != nil {
		t.Errorf("AddEvent for other direction failed: %v", err)
	}
}

func TestStorage_AddInvalidEvent(t *testing.T) {
	s := mustStorage(t)

	err := s.AddEvent(event("2024-13-01", "09:00", true))
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestStorage_DeleteEvent(t *testing.T) {
	s := mustStorage(t)

	e := event("2024-01-08", "09:00", true)
	if err := s.AddEvent(e); err != nil {
		t.Fatalf("AddEvent failed: %v", err)
	}
	if err := s.DeleteEvent(e.ID); err != nil {
		t.Fatalf("DeleteEvent failed: %v", err)
	}
	if err := s.DeleteEvent(e.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}

	events, err := s.GetEventsSince("")
	if err != nil {
		t.Fatalf("GetEventsSince failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("Expected empty log, got %d events", len(events))
	}
}

func TestStorage_PruneEvents(t *testing.T) {
	s := mustStorage(t)

	for _, e := range []*models.TransitionEvent{
		event("2023-12-30", "09:00", true),
		event("2023-12-31", "09:00", true),
		event("2024-01-01", "09:00", true),
	} {
		if err := s.AddEvent(e); err != nil {
			t.Fatalf("AddEvent failed: %v", err)
		}
	}

	n, err := s.PruneEvents("2024-01-01")
	if err != nil {
		t.Fatalf("PruneEvents failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 pruned events, got %d", n)
	}
}

func TestStorage_GetStats(t *testing.T) {
	s := mustStorage(t)

	stats, err := s.GetStats()
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.TotalEvents != 0 || stats.EarliestDate != "" || stats.LatestDate != "" {
		t.Errorf("Expected empty stats, got %+v", stats)
	}

	for _, e := range []*models.TransitionEvent{
		event("2024-01-08", "09:00", true),
		event("2024-03-02", "09:00", true),
		event("2024-02-14", "18:00", false),
	} {
		if err := s.AddEvent(e); err != nil {
			t.Fatalf("AddEvent failed: %v", err)
		}
	}

	stats, err = s.GetStats()
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.TotalEvents != 3 {
		t.Errorf("TotalEvents: got %d, want 3", stats.TotalEvents)
	}
	if stats.EarliestDate != "2024-01-08" || stats.LatestDate != "2024-03-02" {
		t.Errorf("Unexpected date range: %s..%s", stats.EarliestDate, stats.LatestDate)
	}
}

func TestStorage_ParametersSeededAndReplaced(t *testing.T) {
	s := mustStorage(t)

	p, err := s.GetParameters()
	if err != nil {
		t.Fatalf("GetParameters failed: %v", err)
	}
	if p != models.DefaultParameters() {
		t.Errorf("Expected seeded defaults, got %+v", p)
	}

	p.PollIntervalNightMs = 900_000
	p.WeightByMonthOffset.Older = 0.1
	if err := s.SaveParameters(p); err != nil {
		t.Fatalf("SaveParameters failed: %v", err)
	}

	got, err := s.GetParameters()
	if err != nil {
		t.Fatalf("GetParameters failed: %v", err)
	}
	if got != p {
		t.Errorf("Expected %+v, got %+v", p, got)
	}
}

func TestStorage_SaveInvalidParameters(t *testing.T) {
	s := mustStorage(t)

	p := models.DefaultParameters()
	p.NightStartHour = 30
	if err := s.SaveParameters(p); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("Expected validation error, got %v", err)
	}

	got, err := s.GetParameters()
	if err != nil {
		t.Fatalf("GetParameters failed: %v", err)
	}
	if got.NightStartHour != models.DefaultParameters().NightStartHour {
		t.Errorf("Invalid update must not be persisted, got nightStartHour=%d", got.NightStartHour)
	}
}

func TestStorage_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "data", "vissstick.db")

	s, err := New(dbPath, models.DefaultParameters())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := s.AddEvent(event("2024-01-08", "09:00", true)); err != nil {
		t.Fatalf("AddEvent failed: %v", err)
	}
	p := models.DefaultParameters()
	p.LookbackMonths = 12
	if err := s.SaveParameters(p); err != nil {
		t.Fatalf("SaveParameters failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Reopening must keep the stored row instead of reseeding defaults
	reopened, err := New(dbPath, models.DefaultParameters())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	events, err := reopened.GetEventsSince("")
	if err != nil {
		t.Fatalf("GetEventsSince failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("Expected 1 event after reopen, got %d", len(events))
	}
	got, err := reopened.GetParameters()
	if err != nil {
		t.Fatalf("GetParameters failed: %v", err)
	}
	if got.LookbackMonths != 12 {
		t.Errorf("LookbackMonths: got %d, want 12", got.LookbackMonths)
	}
}

func TestNew_EmptyPath(t *testing.T) {
	if _, err := New("  ", models.DefaultParameters()); err == nil {
		t.Error("Expected error for empty db path")
	}
}
