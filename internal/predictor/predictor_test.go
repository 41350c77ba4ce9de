package predictor

import (
	"testing"
	"time"

	"github.com/KimpiegamesYT1/vissstick/internal/models"
	"github.com/KimpiegamesYT1/vissstick/internal/storage"
	"github.com/google/uuid"
)

func mustStorage(t *testing.T) *storage.Storage {
	t.Helper()
	s, err := storage.New(":memory:", models.DefaultParameters())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func addSession(t *testing.T, s *storage.Storage, date, open, closeAt string) {
	t.Helper()
	for _, e := range []models.TransitionEvent{
		{ID: uuid.New().String(), DateKey: date, TimeOfDay: open, IsOpening: true},
		{ID: uuid.New().String(), DateKey: date, TimeOfDay: closeAt, IsOpening: false},
	} {
		if err := s.AddEvent(&e); err != nil {
			t.Fatalf("AddEvent failed: %v", err)
		}
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestPredict_SingleOlderSample(t *testing.T) {
	s := mustStorage(t)
	params := models.DefaultParameters()
	params.WeightByMonthOffset.TwoMonths = 0.5
	if err := s.SaveParameters(params); err != nil {
		t.Fatalf("SaveParameters failed: %v", err)
	}

	// 2024-01-08 is a Monday, two calendar months before now
	addSession(t, s, "2024-01-08", "09:00", "17:30")
	p := New(s, s, fixedClock(time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)))

	got, err := p.Predict(time.Monday)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if got.DataPoints != 1 {
		t.Errorf("DataPoints: got %d, want 1", got.DataPoints)
	}
	if got.OpenMinutes != 540 || got.CloseMinutes != 1050 {
		t.Errorf("Expected 540/1050, got %d/%d", got.OpenMinutes, got.CloseMinutes)
	}
}

func TestPredict_NoData(t *testing.T) {
	s := mustStorage(t)
	addSession(t, s, "2024-01-08", "09:00", "17:30")
	p := New(s, s, fixedClock(time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC)))

	got, err := p.Predict(time.Tuesday)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if got.HasData() {
		t.Errorf("Expected no data for Tuesday, got %+v", got)
	}
	if got.Weekday != time.Tuesday {
		t.Errorf("Weekday: got %v, want Tuesday", got.Weekday)
	}
}

func TestPredict_TwoEqualWeightsInterpolate(t *testing.T) {
	s := mustStorage(t)
	// Two Mondays in the same month as now
	addSession(t, s, "2024-01-08", "09:00", "17:00")
	addSession(t, s, "2024-01-15", "10:00", "18:00")
	p := New(s, s, fixedClock(time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC)))

	got, err := p.Predict(time.Monday)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if got.OpenMinutes != 570 || got.CloseMinutes != 1050 {
		t.Errorf("Expected 570/1050, got %d/%d", got.OpenMinutes, got.CloseMinutes)
	}
	if got.DataPoints != 2 {
		t.Errorf("DataPoints: got %d, want 2", got.DataPoints)
	}
}

func TestPredict_RecentSamplesDominate(t *testing.T) {
	now := fixedClock(time.Date(2024, 4, 15, 12, 0, 0, 0, time.UTC))

	// Same two Mondays, swapping which one carries the early opening
	recentEarly := mustStorage(t)
	addSession(t, recentEarly, "2024-04-08", "08:00", "16:00")
	addSession(t, recentEarly, "2024-01-08", "10:00", "18:00")

	recentLate := mustStorage(t)
	addSession(t, recentLate, "2024-04-08", "10:00", "18:00")
	addSession(t, recentLate, "2024-01-08", "08:00", "16:00")

	early, err := New(recentEarly, recentEarly, now).Predict(time.Monday)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	late, err := New(recentLate, recentLate, now).Predict(time.Monday)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	if early.OpenMinutes != 480 {
		t.Errorf("Expected recent 08:00 opening to win, got %d", early.OpenMinutes)
	}
	if late.OpenMinutes != 600 {
		t.Errorf("Expected recent 10:00 opening to win, got %d", late.OpenMinutes)
	}
}

func TestPredict_LookbackExcludesOldSessions(t *testing.T) {
	s := mustStorage(t)
	params := models.DefaultParameters()
	params.LookbackMonths = 1
	if err := s.SaveParameters(params); err != nil {
		t.Fatalf("SaveParameters failed: %v", err)
	}
	addSession(t, s, "2024-01-08", "09:00", "17:30")
	p := New(s, s, fixedClock(time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)))

	got, err := p.Predict(time.Monday)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if got.HasData() {
		t.Errorf("Expected session outside lookback to be ignored, got %+v", got)
	}
}

func TestPredict_ParameterChangeTakesEffectImmediately(t *testing.T) {
	s := mustStorage(t)
	addSession(t, s, "2024-01-08", "09:00", "09:40")
	p := New(s, s, fixedClock(time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC)))

	got, err := p.Predict(time.Monday)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if !got.HasData() {
		t.Fatal("Expected a prediction with the default minimum duration")
	}

	params := models.DefaultParameters()
	params.MinSessionDurationMinutes = 60
	if err := s.SaveParameters(params); err != nil {
		t.Fatalf("SaveParameters failed: %v", err)
	}

	got, err = p.Predict(time.Monday)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if got.HasData() {
		t.Errorf("Expected 40 minute session to be filtered after update, got %+v", got)
	}
}

func TestPredictWeek(t *testing.T) {
	s := mustStorage(t)
	addSession(t, s, "2024-01-08", "09:00", "17:00") // Monday
	addSession(t, s, "2024-01-13", "11:00", "15:00") // Saturday
	p := New(s, s, fixedClock(time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC)))

	week, err := p.PredictWeek()
	if err != nil {
		t.Fatalf("PredictWeek failed: %v", err)
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if week[d].Weekday != d {
			t.Errorf("week[%d].Weekday = %v", d, week[d].Weekday)
		}
		wantData := d == time.Monday || d == time.Saturday
		if week[d].HasData() != wantData {
			t.Errorf("%v: HasData = %v, want %v", d, week[d].HasData(), wantData)
		}
	}
	if week[time.Saturday].OpenMinutes != 660 {
		t.Errorf("Saturday open: got %d, want 660", week[time.Saturday].OpenMinutes)
	}
}

func TestSessions(t *testing.T) {
	s := mustStorage(t)
	addSession(t, s, "2024-01-01", "09:00", "17:00")
	addSession(t, s, "2024-01-18", "09:00", "09:20")
	addSession(t, s, "2024-01-19", "09:00", "17:00")
	p := New(s, s, fixedClock(time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC)))

	got, err := p.Sessions(7, 30)
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 session, got %d: %+v", len(got), got)
	}
	if _, ok := got["2024-01-19"]; !ok {
		t.Errorf("Expected session on 2024-01-19, got %+v", got)
	}

	got, err = p.Sessions(7, 10)
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected short session with lower minimum, got %+v", got)
	}

	all, err := p.Sessions(0, 30)
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 sessions over the whole log, got %d", len(all))
	}
}
