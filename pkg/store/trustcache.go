// This file contains methods for the trust cache: flavor-host links and the
// cached per-group trust reports they back.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/veridian/hvs/pkg/flavor"
	"github.com/veridian/hvs/pkg/trust"
)

// UpsertFlavorHostLink records that a flavor was last matched against a
// host. Idempotent.
func (s *Store) UpsertFlavorHostLink(flavorID, hostID string) error {
	_, err := s.db.Exec(`
		INSERT INTO flavor_hosts (flavor_id, host_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(flavor_id, host_id) DO NOTHING
	`, flavorID, hostID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert flavor-host link: %w", err)
	}
	return nil
}

// DeleteFlavorHostLink removes a stale cache link. Deleting a link that
// does not exist is not an error.
func (s *Store) DeleteFlavorHostLink(flavorID, hostID string) error {
	_, err := s.db.Exec(`
		DELETE FROM flavor_hosts WHERE flavor_id = ? AND host_id = ?
	`, flavorID, hostID)
	if err != nil {
		return fmt.Errorf("failed to delete flavor-host link: %w", err)
	}
	return nil
}

// LinkedFlavors returns the flavors linked to the host that are relevant to
// the group: either members of the group, or host-unique flavors bound to
// the host's hardware UUID. The hardware UUID may be empty when the host
// has never been connected.
func (s *Store) LinkedFlavors(hostID, groupID, hardwareUUID string) ([]*flavor.Flavor, error) {
	rows, err := s.db.Query(`
		SELECT f.id, f.category, f.label, f.hardware_uuid, f.content, f.created_at
		FROM flavors f
		JOIN flavor_hosts fh ON fh.flavor_id = f.id
		WHERE fh.host_id = ?
		  AND (
			EXISTS (
				SELECT 1 FROM flavorgroup_flavors fgf
				WHERE fgf.flavor_id = f.id AND fgf.flavorgroup_id = ?
			)
			OR (f.hardware_uuid IS NOT NULL AND f.hardware_uuid = ?)
		  )
		ORDER BY f.created_at, f.rowid
	`, hostID, groupID, hardwareUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to list linked flavors: %w", err)
	}
	defer rows.Close()
	return collectFlavors(rows)
}

// CachedReport returns the trust report last computed for the host and
// group, or nil when none has been cached.
func (s *Store) CachedReport(hostID, groupID string) (*trust.Report, error) {
	var data string
	err := s.db.QueryRow(`
		SELECT report FROM trust_cache_reports
		WHERE host_id = ? AND flavorgroup_id = ?
	`, hostID, groupID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cached report: %w", err)
	}

	var r trust.Report
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("failed to parse cached report: %w", err)
	}
	return &r, nil
}

// SaveCachedReport replaces the cached trust report for the host and group.
func (s *Store) SaveCachedReport(hostID, groupID string, r *trust.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to serialize cached report: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO trust_cache_reports (host_id, flavorgroup_id, report, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(host_id, flavorgroup_id) DO UPDATE SET
			report = excluded.report,
			updated_at = excluded.updated_at
	`, hostID, groupID, string(data), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save cached report: %w", err)
	}
	return nil
}
