package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/veridian/hvs/pkg/trust"
)

// Report is a persisted verification outcome: the merged trust report for
// a host across its groups plus the signed assertion derived from it.
type Report struct {
	ID              string
	HostID          string
	TrustReport     *trust.Report
	SignedAssertion string
	CreatedAt       time.Time
	ExpiresAt       time.Time
}

// SaveReport persists a verification report. An empty id is generated.
func (s *Store) SaveReport(r *Report) error {
	if r.ID == "" {
		r.ID = generateID("rep")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	data, err := json.Marshal(r.TrustReport)
	if err != nil {
		return fmt.Errorf("failed to serialize trust report: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO reports (id, host_id, trust_report, signed_assertion, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.HostID, string(data), r.SignedAssertion, r.CreatedAt.Unix(), r.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// LatestReport returns the most recent report for a host, or nil when the
// host has never produced one.
func (s *Store) LatestReport(hostID string) (*Report, error) {
	row := s.db.QueryRow(`
		SELECT id, host_id, trust_report, signed_assertion, created_at, expires_at
		FROM reports WHERE host_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1
	`, hostID)

	r, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// ListReports returns a host's reports, newest first, capped at limit
// (0 means no cap).
func (s *Store) ListReports(hostID string, limit int) ([]*Report, error) {
	query := `
		SELECT id, host_id, trust_report, signed_assertion, created_at, expires_at
		FROM reports WHERE host_id = ?
		ORDER BY created_at DESC, rowid DESC
	`
	args := []any{hostID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []*Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func scanReport(row rowScanner) (*Report, error) {
	var r Report
	var data string
	var createdAt, expiresAt int64

	if err := row.Scan(&r.ID, &r.HostID, &data, &r.SignedAssertion, &createdAt, &expiresAt); err != nil {
		return nil, err
	}
	r.CreatedAt = time.Unix(createdAt, 0)
	r.ExpiresAt = time.Unix(expiresAt, 0)

	var tr trust.Report
	if err := json.Unmarshal([]byte(data), &tr); err != nil {
		return nil, fmt.Errorf("failed to parse trust report: %w", err)
	}
	r.TrustReport = &tr
	return &r, nil
}
