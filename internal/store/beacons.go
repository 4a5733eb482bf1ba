package store

import (
	"fmt"
	"time"
)

// Beacon is a queued view report waiting for delivery.
type Beacon struct {
	ID           string
	ContentID    string
	ViewDuration float64 // seconds
	Created      time.Time
	Attempts     int
	NextAttempt  time.Time // zero means due now
}

// EnqueueBeacon stores a beacon for later delivery.
// Thread-safe: acquires write lock.
func (s *Store) EnqueueBeacon(b Beacon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.Created.IsZero() {
		b.Created = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO beacons (id, content_id, view_duration, created_at, attempts)
		VALUES (?, ?, ?, ?, ?)
	`, b.ID, b.ContentID, b.ViewDuration, b.Created, b.Attempts)
	if err != nil {
		return fmt.Errorf("enqueue beacon: %w", err)
	}
	return nil
}

// PendingBeacons returns up to limit beacons due at now, oldest first.
// Beacons backed off past now are skipped.
// Thread-safe: acquires read lock.
func (s *Store) PendingBeacons(now time.Time, limit int) ([]Beacon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, content_id, view_duration, created_at, attempts, next_attempt_at
		FROM beacons
		WHERE next_attempt_at <= ?
		ORDER BY created_at ASC, rowid ASC
		LIMIT ?
	`, now.UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("query beacons: %w", err)
	}
	defer rows.Close()

	var beacons []Beacon
	for rows.Next() {
		var (
			b    Beacon
			next int64
		)
		if err := rows.Scan(&b.ID, &b.ContentID, &b.ViewDuration, &b.Created, &b.Attempts, &next); err != nil {
			return nil, fmt.Errorf("scan beacon: %w", err)
		}
		if next > 0 {
			b.NextAttempt = time.UnixMilli(next)
		}
		beacons = append(beacons, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return beacons, nil
}

// DeleteBeacon removes a delivered beacon.
// Thread-safe: acquires write lock.
func (s *Store) DeleteBeacon(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM beacons WHERE id = ?", id)
	return err
}

// MarkBeaconAttempt records a failed delivery attempt and holds the beacon
// back until next.
// Thread-safe: acquires write lock.
func (s *Store) MarkBeaconAttempt(id string, next time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("UPDATE beacons SET attempts = attempts + 1, next_attempt_at = ? WHERE id = ?", next.UnixMilli(), id)
	return err
}

// CountBeacons returns the number of queued beacons.
// Thread-safe: acquires read lock.
func (s *Store) CountBeacons() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM beacons").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
