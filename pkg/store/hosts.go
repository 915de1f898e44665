// This file contains methods for hosts, group memberships, and the
// append-only host status history.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/veridian/hvs/pkg/flavor"
	"github.com/veridian/hvs/pkg/hostconn"
	"github.com/veridian/hvs/pkg/manifest"
)

// Host is a managed host registered for verification.
type Host struct {
	ID               string
	Name             string
	ConnectionString string
	HardwareUUID     string // learned from the first retrieved manifest
	TLSPolicy        *hostconn.TLSPolicy
	CreatedAt        time.Time
}

// HostStatus is one row of the append-only host status history. Rows are
// never mutated; the current status is the latest row for a host.
type HostStatus struct {
	ID        int64
	HostID    string
	State     hostconn.HostState
	Manifest  *manifest.Manifest // snapshot, present on CONNECTED rows
	CreatedAt time.Time
}

// AddHost registers a host. An empty id is generated.
func (s *Store) AddHost(h *Host) error {
	if h.ID == "" {
		h.ID = generateID("host")
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now()
	}

	var tlsJSON sql.NullString
	if h.TLSPolicy != nil {
		data, err := json.Marshal(h.TLSPolicy)
		if err != nil {
			return fmt.Errorf("failed to serialize TLS policy: %w", err)
		}
		tlsJSON = sql.NullString{String: string(data), Valid: true}
	}
	var hwUUID sql.NullString
	if h.HardwareUUID != "" {
		hwUUID = sql.NullString{String: h.HardwareUUID, Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO hosts (id, name, connection_string, hardware_uuid, tls_policy, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, h.ID, h.Name, h.ConnectionString, hwUUID, tlsJSON, h.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to add host: %w", err)
	}
	return nil
}

// GetHost retrieves a host by id.
func (s *Store) GetHost(id string) (*Host, error) {
	row := s.db.QueryRow(`
		SELECT id, name, connection_string, hardware_uuid, tls_policy, created_at
		FROM hosts WHERE id = ?
	`, id)
	return scanHost(row)
}

// GetHostByName retrieves a host by name.
func (s *Store) GetHostByName(name string) (*Host, error) {
	row := s.db.QueryRow(`
		SELECT id, name, connection_string, hardware_uuid, tls_policy, created_at
		FROM hosts WHERE name = ?
	`, name)
	return scanHost(row)
}

// HostExists reports whether a host with the id is registered.
func (s *Store) HostExists(id string) (bool, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM hosts WHERE id = ?`, id).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check host existence: %w", err)
	}
	return count > 0, nil
}

// ListHosts returns all hosts ordered by name.
func (s *Store) ListHosts() ([]*Host, error) {
	rows, err := s.db.Query(`
		SELECT id, name, connection_string, hardware_uuid, tls_policy, created_at
		FROM hosts ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}
	defer rows.Close()

	var hosts []*Host
	for rows.Next() {
		h, err := scanHostScanner(rows)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, h)
	}
	return hosts, rows.Err()
}

// UpdateHostHardwareUUID records the hardware UUID learned from a manifest.
func (s *Store) UpdateHostHardwareUUID(hostID, hardwareUUID string) error {
	_, err := s.db.Exec(`UPDATE hosts SET hardware_uuid = ? WHERE id = ?`, hardwareUUID, hostID)
	if err != nil {
		return fmt.Errorf("failed to update host hardware UUID: %w", err)
	}
	return nil
}

// DeleteHost removes a host; cascades drop its status history, links,
// memberships, and reports.
func (s *Store) DeleteHost(id string) error {
	result, err := s.db.Exec(`DELETE FROM hosts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete host: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("host %s: %w", id, ErrNotFound)
	}
	return nil
}

// AddHostToGroup records a host's membership in a flavor group. Idempotent.
func (s *Store) AddHostToGroup(groupID, hostID string) error {
	_, err := s.db.Exec(`
		INSERT INTO flavorgroup_hosts (flavorgroup_id, host_id)
		VALUES (?, ?)
		ON CONFLICT(flavorgroup_id, host_id) DO NOTHING
	`, groupID, hostID)
	if err != nil {
		return fmt.Errorf("failed to add host to group: %w", err)
	}
	return nil
}

// HostInGroup reports whether the host is a member of the group.
func (s *Store) HostInGroup(groupID, hostID string) (bool, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM flavorgroup_hosts WHERE flavorgroup_id = ? AND host_id = ?
	`, groupID, hostID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check group membership: %w", err)
	}
	return count > 0, nil
}

// HostGroups returns the flavor groups the host belongs to, ordered by name.
func (s *Store) HostGroups(hostID string) ([]*flavor.Group, error) {
	rows, err := s.db.Query(`
		SELECT g.id, g.name, g.match_policy, g.created_at
		FROM flavor_groups g
		JOIN flavorgroup_hosts fgh ON fgh.flavorgroup_id = g.id
		WHERE fgh.host_id = ?
		ORDER BY g.name
	`, hostID)
	if err != nil {
		return nil, fmt.Errorf("failed to list host groups: %w", err)
	}
	defer rows.Close()

	var groups []*flavor.Group
	for rows.Next() {
		g, err := scanGroupRows(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// AppendHostStatus appends one status row. The manifest snapshot may be nil
// for failure states.
func (s *Store) AppendHostStatus(hostID string, state hostconn.HostState, m *manifest.Manifest) error {
	var manifestJSON sql.NullString
	if m != nil {
		data, err := m.Encode()
		if err != nil {
			return fmt.Errorf("failed to serialize manifest snapshot: %w", err)
		}
		manifestJSON = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO host_status (host_id, state, manifest, created_at)
		VALUES (?, ?, ?, ?)
	`, hostID, string(state), manifestJSON, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to append host status: %w", err)
	}
	return nil
}

// LatestHostStatus returns the most recent status row for a host, or nil
// when no status has been recorded yet.
func (s *Store) LatestHostStatus(hostID string) (*HostStatus, error) {
	row := s.db.QueryRow(`
		SELECT id, host_id, state, manifest, created_at
		FROM host_status WHERE host_id = ?
		ORDER BY id DESC LIMIT 1
	`, hostID)

	st, err := scanHostStatus(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return st, err
}

// HostStatusHistory returns the host's status rows, newest first, capped at
// limit (0 means no cap).
func (s *Store) HostStatusHistory(hostID string, limit int) ([]*HostStatus, error) {
	query := `
		SELECT id, host_id, state, manifest, created_at
		FROM host_status WHERE host_id = ?
		ORDER BY id DESC
	`
	args := []any{hostID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list host status history: %w", err)
	}
	defer rows.Close()

	var history []*HostStatus
	for rows.Next() {
		st, err := scanHostStatus(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, st)
	}
	return history, rows.Err()
}

func scanHost(row *sql.Row) (*Host, error) {
	h, err := scanHostScanner(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("host: %w", ErrNotFound)
	}
	return h, err
}

func scanHostScanner(row rowScanner) (*Host, error) {
	var h Host
	var hwUUID, tlsJSON sql.NullString
	var createdAt int64

	if err := row.Scan(&h.ID, &h.Name, &h.ConnectionString, &hwUUID, &tlsJSON, &createdAt); err != nil {
		return nil, err
	}
	h.CreatedAt = time.Unix(createdAt, 0)
	if hwUUID.Valid {
		h.HardwareUUID = hwUUID.String
	}
	if tlsJSON.Valid && tlsJSON.String != "" {
		var policy hostconn.TLSPolicy
		if err := json.Unmarshal([]byte(tlsJSON.String), &policy); err != nil {
			return nil, fmt.Errorf("failed to parse TLS policy for host %s: %w", h.Name, err)
		}
		h.TLSPolicy = &policy
	}
	return &h, nil
}

func scanHostStatus(row rowScanner) (*HostStatus, error) {
	var st HostStatus
	var state string
	var manifestJSON sql.NullString
	var createdAt int64

	if err := row.Scan(&st.ID, &st.HostID, &state, &manifestJSON, &createdAt); err != nil {
		return nil, err
	}
	st.State = hostconn.HostState(state)
	st.CreatedAt = time.Unix(createdAt, 0)

	if manifestJSON.Valid && manifestJSON.String != "" {
		m, err := manifest.Decode([]byte(manifestJSON.String))
		if err != nil {
			// A corrupted snapshot should not hide the status row itself.
			st.Manifest = nil
		} else {
			st.Manifest = m
		}
	}
	return &st, nil
}
