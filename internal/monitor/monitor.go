// Package monitor drives the adaptive polling loop that watches the room.
//
// Each tick polls the status source and compares the reading with the last
// known state. The first successful poll after start only sets the baseline.
// Later flips append a transition event, announce the new state together with
// the predicted next transition, and update the known state.
//
// The polling cadence depends on the regime, the (time-of-day, state) pair:
//
//	inside the night window  -> night interval, regardless of state
//	open                     -> open interval
//	closed or unknown        -> closed interval
//
// The next delay is measured from the end of a tick and is cut short at the
// next night window boundary, so day/night changes apply on time even when
// the state does not change.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/KimpiegamesYT1/vissstick/internal/logger"
	"github.com/KimpiegamesYT1/vissstick/internal/models"
	"github.com/KimpiegamesYT1/vissstick/internal/storage"
)

// StatusSource reports whether the room is open.
type StatusSource interface {
	Poll(ctx context.Context) (bool, error)
}

// EventStore records transitions.
type EventStore interface {
	AddEvent(event *models.TransitionEvent) error
	PruneEvents(beforeDateKey string) (int64, error)
}

// SettingsStore reads the current prediction parameters.
type SettingsStore interface {
	GetParameters() (models.PredictionParameters, error)
}

// Predictor provides the weekday predictions used in announcements.
type Predictor interface {
	PredictWeek() ([7]models.Prediction, error)
}

// State is the process-local monitor state. It is written only by the
// goroutine running Tick and Run.
type State struct {
	Initialized   bool
	LastKnownOpen bool
	Interval      time.Duration
	Night         bool

	timer     *time.Timer
	lastPrune string
}

// Status is a point-in-time view of the monitor for the analytics API.
type Status struct {
	Initialized bool          `json:"initialized"`
	Open        bool          `json:"open"`
	Interval    time.Duration `json:"-"`
	IntervalMs  int64         `json:"intervalMs"`
	Night       bool          `json:"night"`
	LastPoll    time.Time     `json:"lastPoll,omitempty"`
	LastError   string        `json:"lastError,omitempty"`
	Transitions int           `json:"transitions"`
}

// Monitor owns the polling loop and its state
type Monitor struct {
	source    StatusSource
	events    EventStore
	settings  SettingsStore
	predictor Predictor
	announcer Announcer
	now       func() time.Time
	loc       *time.Location

	state State

	mu     sync.RWMutex
	status Status
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithLocation sets the time zone for date keys and the night window.
func WithLocation(loc *time.Location) Option {
	return func(m *Monitor) { m.loc = loc }
}

// New creates a new Monitor instance
func New(source StatusSource, events EventStore, settings SettingsStore, predictor Predictor, announcer Announcer, opts ...Option) *Monitor {
	m := &Monitor{
		source:    source,
		events:    events,
		settings:  settings,
		predictor: predictor,
		announcer: announcer,
		now:       time.Now,
		loc:       time.Local,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.announcer == nil {
		m.announcer = Announcers{}
	}
	return m
}

// Run polls immediately and then keeps polling until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	logger.Info("Starting monitor loop")
	m.Tick(ctx)
	m.prune()

	for {
		m.reschedule(m.nextDelay())

		select {
		case <-ctx.Done():
			m.cancelTimer()
			logger.Info("Monitor loop stopped")
			return
		case <-m.state.timer.C:
			m.Tick(ctx)
			m.prune()
		}
	}
}

// Tick performs one poll cycle.
func (m *Monitor) Tick(ctx context.Context) {
	open, err := m.source.Poll(ctx)
	now := m.localNow()
	m.updateStatus(func(s *Status) {
		s.LastPoll = now
		s.LastError = ""
		if err != nil {
			s.LastError = err.Error()
		}
	})
	if err != nil {
		logger.Warn("Status poll failed, skipping tick: %v", err)
		return
	}

	if !m.state.Initialized {
		m.state.Initialized = true
		m.state.LastKnownOpen = open
		m.updateStatus(func(s *Status) {
			s.Initialized = true
			s.Open = open
		})
		logger.Info("Baseline established: room is %s", stateWord(open))
		return
	}

	if open == m.state.LastKnownOpen {
		logger.Debug("No state change (room %s)", stateWord(open))
		return
	}

	event := models.NewTransitionEvent(now, open)
	if err := m.events.AddEvent(&event); err != nil {
		if !errors.Is(err, storage.ErrDuplicateEvent) {
			logger.Error("Failed to record transition, will retry next tick: %v", err)
			return
		}
		logger.Debug("Transition already recorded: %v", err)
	}
	logger.Info("Room %s at %s %s", stateWord(open), event.DateKey, event.TimeOfDay)

	prediction := m.predictionText(now, open)
	if err := m.announcer.Announce(ctx, open, prediction); err != nil {
		logger.Warn("Failed to announce transition: %v", err)
	}

	m.state.LastKnownOpen = open
	m.updateStatus(func(s *Status) {
		s.Open = open
		s.Transitions++
	})
}

// State returns a copy of the monitor state. Only safe from the goroutine
// running the loop; other goroutines use Snapshot.
func (m *Monitor) State() State {
	s := m.state
	s.timer = nil
	return s
}

// Snapshot returns the current status. Safe for concurrent use.
func (m *Monitor) Snapshot() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) updateStatus(fn func(s *Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.status)
}

func (m *Monitor) localNow() time.Time {
	return m.now().In(m.loc)
}

// nextDelay selects the interval for the current regime and caps it at the
// next night window boundary. On a settings read failure the previous
// interval is kept.
func (m *Monitor) nextDelay() time.Duration {
	now := m.localNow()

	params, err := m.settings.GetParameters()
	if err != nil {
		logger.Error("Failed to load parameters, keeping current interval: %v", err)
		if m.state.Interval > 0 {
			return m.state.Interval
		}
		params = models.DefaultParameters()
	}

	interval, night := SelectInterval(params, now.Hour(), m.state.Initialized && m.state.LastKnownOpen)
	if interval != m.state.Interval || night != m.state.Night {
		logger.Info("Poll interval set to %v (night=%v, room %s)", interval, night, stateWord(m.state.LastKnownOpen))
		m.state.Interval = interval
		m.state.Night = night
		m.updateStatus(func(s *Status) {
			s.Interval = interval
			s.IntervalMs = interval.Milliseconds()
			s.Night = night
		})
	}

	delay := interval
	if untilBoundary, ok := UntilNightBoundary(now, params.NightStartHour, params.NightEndHour); ok && untilBoundary < delay {
		delay = untilBoundary
	}
	return delay
}

// reschedule cancels the active timer before creating its replacement so at
// most one tick is ever pending.
func (m *Monitor) reschedule(delay time.Duration) {
	m.cancelTimer()
	m.state.timer = time.NewTimer(delay)
}

func (m *Monitor) cancelTimer() {
	if m.state.timer != nil {
		m.state.timer.Stop()
		m.state.timer = nil
	}
}

// prune drops events older than the history limit, at most once per day.
func (m *Monitor) prune() {
	now := m.localNow()
	today := models.DateKeyOf(now)
	if m.state.lastPrune == today {
		return
	}

	params, err := m.settings.GetParameters()
	if err != nil {
		logger.Warn("Failed to load parameters for pruning: %v", err)
		return
	}

	cutoff := models.DateKeyOf(now.AddDate(0, 0, -params.HistoryLimitDays))
	n, err := m.events.PruneEvents(cutoff)
	if err != nil {
		logger.Warn("Failed to prune events before %s: %v", cutoff, err)
		return
	}
	m.state.lastPrune = today
	if n > 0 {
		logger.Info("Pruned %d events older than %s", n, cutoff)
	}
}

// predictionText describes the next expected transition. An opening refers
// to today's predicted closing, a closing to the next weekday with a
// predicted opening. Empty when there is no data.
func (m *Monitor) predictionText(now time.Time, open bool) string {
	if m.predictor == nil {
		return ""
	}
	week, err := m.predictor.PredictWeek()
	if err != nil {
		logger.Warn("Failed to compute prediction: %v", err)
		return ""
	}

	today := now.Weekday()
	if open {
		p := week[today]
		if !p.HasData() {
			return ""
		}
		return fmt.Sprintf("Expected to close around %s", models.FormatMinutes(p.CloseMinutes))
	}

	for i := 1; i <= 7; i++ {
		d := time.Weekday((int(today) + i) % 7)
		p := week[d]
		if !p.HasData() {
			continue
		}
		day := d.String()
		if i == 1 {
			day = "tomorrow"
		}
		return fmt.Sprintf("Expected to open %s around %s", day, models.FormatMinutes(p.OpenMinutes))
	}
	return ""
}

func stateWord(open bool) string {
	if open {
		return "open"
	}
	return "closed"
}
