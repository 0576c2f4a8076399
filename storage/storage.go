// Package storage is the SQLite telemetry log shared by the controller
// (writes) and the chart site (reads).
package storage

import (
	"database/sql"
	"fmt"
	"math"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the database. The mutex serializes writes so the control
// loop and the cleanup ticker don't trip over SQLite's single writer.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if needed) the sensor database and ensures the
// schema exists.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sensors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			temperature REAL,
			humidity REAL,
			level REAL,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create sensors table: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the handle for the session store and user table, which
// live in the same file.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// InsertReading appends one sensor sample.
func (s *Store) InsertReading(temp, humidity float32, levelPct float64, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO sensors (temperature, humidity, level, timestamp)
		VALUES (?, ?, ?, ?)
	`, fmt.Sprintf("%.2f", temp), fmt.Sprintf("%.2f", humidity), levelPct, ts)
	return err
}

// Reading is one logged sample as the chart frontends consume it.
type Reading struct {
	Timestamp   string  `json:"timestamp"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Level       float64 `json:"level"`
}

// RecentReadings returns at most maxPoints samples, downsampled at a
// fixed stride so the charts stay light no matter how much history has
// accumulated.
func (s *Store) RecentReadings(maxPoints int) ([]Reading, error) {
	var total int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM sensors").Scan(&total); err != nil {
		return nil, fmt.Errorf("counting rows: %w", err)
	}

	step := 1
	if total > maxPoints {
		step = int(math.Ceil(float64(total) / float64(maxPoints)))
	}

	rows, err := s.db.Query(`
		SELECT COALESCE(strftime('%d:%m:%Y %H:%M:%S', SUBSTR(TRIM(timestamp), 1, 19)), ''),
		       temperature, humidity, level
		FROM sensors ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying data: %w", err)
	}
	defer rows.Close()

	var out []Reading
	count := 0
	for rows.Next() {
		var r Reading
		if err := rows.Scan(&r.Timestamp, &r.Temperature, &r.Humidity, &r.Level); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if count%step == 0 {
			out = append(out, r)
		}
		count++
	}
	return out, rows.Err()
}

// Clear wipes the sensor log and resets the autoincrement counter; the
// controller runs it on a 48-hour ticker.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec("DELETE FROM sensors"); err != nil {
		return fmt.Errorf("clearing sensors table: %w", err)
	}
	if _, err := s.db.Exec("DELETE FROM sqlite_sequence WHERE name='sensors'"); err != nil {
		return fmt.Errorf("resetting sensors sequence: %w", err)
	}
	return nil
}
