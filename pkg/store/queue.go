// This file contains methods for the verification queue. Entries move
// NEW -> RUNNING -> COMPLETED/ERROR/TIMEOUT; workers claim entries inside
// a transaction so an entry is processed exactly once.
package store

import (
	"database/sql"
	"fmt"
	"time"
)

// ActionFlavorVerify is the queue action for host verification.
const ActionFlavorVerify = "flavor-verify"

// QueueState is the lifecycle state of a queue entry.
type QueueState string

// Queue entry states.
const (
	QueueStateNew       QueueState = "NEW"
	QueueStateRunning   QueueState = "RUNNING"
	QueueStateCompleted QueueState = "COMPLETED"
	QueueStateError     QueueState = "ERROR"
	QueueStateTimeout   QueueState = "TIMEOUT"
)

// Terminal reports whether the state is final.
func (q QueueState) Terminal() bool {
	switch q {
	case QueueStateCompleted, QueueStateError, QueueStateTimeout:
		return true
	}
	return false
}

// QueueEntry is one unit of background verification work.
type QueueEntry struct {
	ID          string
	Action      string
	HostID      string
	ForceUpdate bool
	State       QueueState
	Message     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EnqueueVerification queues a host for verification, collapsing duplicate
// requests. Without forceUpdate the call is a no-op when any pending entry
// for the host exists. With forceUpdate it is a no-op only when a pending
// forced entry already exists, so a forced request is never downgraded to
// an unforced one that may reuse a stale manifest.
func (s *Store) EnqueueVerification(hostID string, forceUpdate bool) (*QueueEntry, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		SELECT COUNT(*) FROM queue
		WHERE host_id = ? AND action = ? AND state = ?
	`
	args := []any{hostID, ActionFlavorVerify, string(QueueStateNew)}
	if forceUpdate {
		query += ` AND force_update = 1`
	}

	var pending int
	if err := tx.QueryRow(query, args...).Scan(&pending); err != nil {
		return nil, fmt.Errorf("failed to check pending queue entries: %w", err)
	}
	if pending > 0 {
		return nil, tx.Commit()
	}

	entry := &QueueEntry{
		ID:          generateID("qe"),
		Action:      ActionFlavorVerify,
		HostID:      hostID,
		ForceUpdate: forceUpdate,
		State:       QueueStateNew,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	force := 0
	if forceUpdate {
		force = 1
	}
	_, err = tx.Exec(`
		INSERT INTO queue (id, action, host_id, force_update, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.Action, entry.HostID, force, string(entry.State),
		entry.CreatedAt.Unix(), entry.UpdatedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue verification: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit queue entry: %w", err)
	}
	return entry, nil
}

// ClaimNext atomically claims the oldest unclaimed NEW entry, moving it to
// RUNNING. Returns nil when the queue is empty.
func (s *Store) ClaimNext() (*QueueEntry, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`
		SELECT id, action, host_id, force_update, state, message, created_at, updated_at
		FROM queue
		WHERE state = ? AND claimed_at IS NULL
		ORDER BY created_at, rowid LIMIT 1
	`, string(QueueStateNew))

	entry, err := scanQueueEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	result, err := tx.Exec(`
		UPDATE queue SET state = ?, claimed_at = ?, updated_at = ?
		WHERE id = ? AND state = ? AND claimed_at IS NULL
	`, string(QueueStateRunning), now, now, entry.ID, string(QueueStateNew))
	if err != nil {
		return nil, fmt.Errorf("failed to claim queue entry: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		// Another worker claimed it between the select and the update.
		return nil, tx.Commit()
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	entry.State = QueueStateRunning
	entry.UpdatedAt = time.Unix(now, 0)
	return entry, nil
}

// CompleteEntry moves a claimed entry to a terminal state with an optional
// message describing the outcome.
func (s *Store) CompleteEntry(id string, state QueueState, message string) error {
	if !state.Terminal() {
		return fmt.Errorf("queue state %s is not terminal", state)
	}
	result, err := s.db.Exec(`
		UPDATE queue SET state = ?, message = ?, updated_at = ?
		WHERE id = ?
	`, string(state), message, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to complete queue entry: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("queue entry %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetQueueEntry retrieves a queue entry by id.
func (s *Store) GetQueueEntry(id string) (*QueueEntry, error) {
	row := s.db.QueryRow(`
		SELECT id, action, host_id, force_update, state, message, created_at, updated_at
		FROM queue WHERE id = ?
	`, id)
	entry, err := scanQueueEntry(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("queue entry %s: %w", id, ErrNotFound)
	}
	return entry, err
}

// ListQueueEntries returns queue entries, optionally filtered by state,
// oldest first.
func (s *Store) ListQueueEntries(state QueueState) ([]*QueueEntry, error) {
	query := `
		SELECT id, action, host_id, force_update, state, message, created_at, updated_at
		FROM queue
	`
	var args []any
	if state != "" {
		query += ` WHERE state = ?`
		args = append(args, string(state))
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue entries: %w", err)
	}
	defer rows.Close()

	var entries []*QueueEntry
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanQueueEntry(row rowScanner) (*QueueEntry, error) {
	var entry QueueEntry
	var force int
	var state string
	var createdAt, updatedAt int64

	err := row.Scan(&entry.ID, &entry.Action, &entry.HostID, &force, &state,
		&entry.Message, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	entry.ForceUpdate = force != 0
	entry.State = QueueState(state)
	entry.CreatedAt = time.Unix(createdAt, 0)
	entry.UpdatedAt = time.Unix(updatedAt, 0)
	return &entry, nil
}
