// Package storage provides SQLite-backed persistence for the transition event
// log and the prediction parameter singleton.
//
// Both stores live in one database file. Every write is a single statement,
// so scheduler appends and analytics API writes interleave without any
// externally coordinated transaction. The connection pool is pinned to one
// connection, which serialises access and lets ":memory:" databases work in
// tests.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/KimpiegamesYT1/vissstick/internal/models"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a requested event does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateEvent is returned when an event with the same date, time
	// and direction is already recorded.
	ErrDuplicateEvent = errors.New("duplicate event")
)

// Storage persists transition events and prediction parameters
type Storage struct {
	db     *sql.DB
	dbPath string
}

// New opens (or creates) the database at dbPath and ensures the schema.
// When no parameters are stored yet, defaults are written as the initial row.
func New(dbPath string, defaults models.PredictionParameters) (*Storage, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("storage db path is empty")
	}
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("invalid default parameters: %w", err)
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to exec %q: %w", p, err)
		}
	}

	s := &Storage{db: db, dbPath: dbPath}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	if err := s.seedParameters(defaults); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Storage) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transition_events (
		seq         INTEGER PRIMARY KEY AUTOINCREMENT,
		id          TEXT NOT NULL UNIQUE,
		date_key    TEXT NOT NULL,
		time_of_day TEXT NOT NULL,
		is_opening  INTEGER NOT NULL,
		created_at  TEXT NOT NULL,
		UNIQUE(date_key, time_of_day, is_opening)
	);

	CREATE INDEX IF NOT EXISTS idx_transition_events_date ON transition_events(date_key, time_of_day, seq);

	CREATE TABLE IF NOT EXISTS settings (
		id                           INTEGER PRIMARY KEY CHECK (id = 1),
		poll_interval_open_ms        INTEGER NOT NULL,
		poll_interval_closed_ms      INTEGER NOT NULL,
		poll_interval_night_ms       INTEGER NOT NULL,
		night_start_hour             INTEGER NOT NULL,
		night_end_hour               INTEGER NOT NULL,
		history_limit_days           INTEGER NOT NULL,
		min_session_duration_minutes INTEGER NOT NULL,
		lookback_months              INTEGER NOT NULL,
		weight_by_month_offset       TEXT NOT NULL,
		updated_at                   TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// --- Event log ---

// AddEvent appends a transition event
func (s *Storage) AddEvent(event *models.TransitionEvent) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO transition_events (id, date_key, time_of_day, is_opening, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		event.ID, event.DateKey, event.TimeOfDay, boolToInt(event.IsOpening),
		event.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s %s", ErrDuplicateEvent, event.DateKey, event.TimeOfDay, event.Direction())
	}
	return nil
}

// GetEventsSince returns events on or after the given date key, in
// chronological order. An empty date key returns the whole log.
func (s *Storage) GetEventsSince(dateKey string) ([]models.TransitionEvent, error) {
	rows, err := s.db.Query(`
		SELECT id, date_key, time_of_day, is_opening, created_at
		FROM transition_events
		WHERE date_key >= ?
		ORDER BY date_key, time_of_day, seq`, dateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := make([]models.TransitionEvent, 0)
	for rows.Next() {
		var e models.TransitionEvent
		var isOpening int
		var createdAt string
		if err := rows.Scan(&e.ID, &e.DateKey, &e.TimeOfDay, &isOpening, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.IsOpening = isOpening != 0
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

// DeleteEvent removes an event by ID
func (s *Storage) DeleteEvent(id string) error {
	res, err := s.db.Exec(`DELETE FROM transition_events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("event %w: %s", ErrNotFound, id)
	}
	return nil
}

// PruneEvents removes events dated strictly before the given date key and
// returns how many were removed.
func (s *Storage) PruneEvents(beforeDateKey string) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM transition_events WHERE date_key < ?`, beforeDateKey)
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	return res.RowsAffected()
}

// GetStats returns the event count and date range of the log
func (s *Storage) GetStats() (models.LogStats, error) {
	var stats models.LogStats
	var earliest, latest sql.NullString
	err := s.db.QueryRow(`
		SELECT COUNT(*), MIN(date_key), MAX(date_key) FROM transition_events`,
	).Scan(&stats.TotalEvents, &earliest, &latest)
	if err != nil {
		return models.LogStats{}, fmt.Errorf("failed to query stats: %w", err)
	}
	stats.EarliestDate = earliest.String
	stats.LatestDate = latest.String
	return stats, nil
}

// --- Settings ---

func (s *Storage) seedParameters(defaults models.PredictionParameters) error {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM settings`).Scan(&n); err != nil {
		return fmt.Errorf("failed to query settings: %w", err)
	}
	if n > 0 {
		return nil
	}
	if err := s.SaveParameters(defaults); err != nil {
		return fmt.Errorf("failed to seed settings: %w", err)
	}
	return nil
}

// GetParameters reads the stored prediction parameters
func (s *Storage) GetParameters() (models.PredictionParameters, error) {
	var p models.PredictionParameters
	var weights string
	err := s.db.QueryRow(`
		SELECT poll_interval_open_ms, poll_interval_closed_ms, poll_interval_night_ms,
			night_start_hour, night_end_hour, history_limit_days,
			min_session_duration_minutes, lookback_months, weight_by_month_offset
		FROM settings WHERE id = 1`,
	).Scan(
		&p.PollIntervalOpenMs, &p.PollIntervalClosedMs, &p.PollIntervalNightMs,
		&p.NightStartHour, &p.NightEndHour, &p.HistoryLimitDays,
		&p.MinSessionDurationMinutes, &p.LookbackMonths, &weights,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.PredictionParameters{}, fmt.Errorf("settings %w", ErrNotFound)
		}
		return models.PredictionParameters{}, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := json.Unmarshal([]byte(weights), &p.WeightByMonthOffset); err != nil {
		return models.PredictionParameters{}, fmt.Errorf("failed to decode month weights: %w", err)
	}
	return p, nil
}

// SaveParameters validates and replaces the stored prediction parameters
func (s *Storage) SaveParameters(p models.PredictionParameters) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	weights, err := json.Marshal(p.WeightByMonthOffset)
	if err != nil {
		return fmt.Errorf("failed to encode month weights: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO settings (id, poll_interval_open_ms, poll_interval_closed_ms, poll_interval_night_ms,
			night_start_hour, night_end_hour, history_limit_days,
			min_session_duration_minutes, lookback_months, weight_by_month_offset, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			poll_interval_open_ms = excluded.poll_interval_open_ms,
			poll_interval_closed_ms = excluded.poll_interval_closed_ms,
			poll_interval_night_ms = excluded.poll_interval_night_ms,
			night_start_hour = excluded.night_start_hour,
			night_end_hour = excluded.night_end_hour,
			history_limit_days = excluded.history_limit_days,
			min_session_duration_minutes = excluded.min_session_duration_minutes,
			lookback_months = excluded.lookback_months,
			weight_by_month_offset = excluded.weight_by_month_offset,
			updated_at = excluded.updated_at`,
		p.PollIntervalOpenMs, p.PollIntervalClosedMs, p.PollIntervalNightMs,
		p.NightStartHour, p.NightEndHour, p.HistoryLimitDays,
		p.MinSessionDurationMinutes, p.LookbackMonths, string(weights),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
