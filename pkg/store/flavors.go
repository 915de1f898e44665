// This file contains methods for the flavor catalog and flavor groups.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/veridian/hvs/pkg/flavor"
)

// AddFlavor inserts a flavor. An empty id is generated; the legacy BIOS
// category alias is normalized before the row is written.
func (s *Store) AddFlavor(f *flavor.Flavor) error {
	if f.ID == "" {
		f.ID = generateID("fl")
	}
	category, err := flavor.ParseCategory(string(f.Category))
	if err != nil {
		return err
	}
	f.Category = category
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}

	var hwUUID sql.NullString
	if f.HardwareUUID != "" {
		hwUUID = sql.NullString{String: f.HardwareUUID, Valid: true}
	}

	_, err = s.db.Exec(`
		INSERT INTO flavors (id, category, label, hardware_uuid, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, f.ID, string(f.Category), f.Label, hwUUID, string(f.Content), f.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to add flavor: %w", err)
	}
	return nil
}

// GetFlavor retrieves a flavor by id.
func (s *Store) GetFlavor(id string) (*flavor.Flavor, error) {
	row := s.db.QueryRow(`
		SELECT id, category, label, hardware_uuid, content, created_at
		FROM flavors WHERE id = ?
	`, id)
	f, err := scanFlavor(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("flavor %s: %w", id, ErrNotFound)
	}
	return f, err
}

// ListFlavors returns all flavors, optionally filtered by category.
func (s *Store) ListFlavors(category flavor.Category) ([]*flavor.Flavor, error) {
	query := `SELECT id, category, label, hardware_uuid, content, created_at FROM flavors`
	args := []any{}
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, string(category))
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list flavors: %w", err)
	}
	defer rows.Close()
	return collectFlavors(rows)
}

// DeleteFlavor removes a flavor; cascades drop its group memberships and any
// flavor-host links.
func (s *Store) DeleteFlavor(id string) error {
	result, err := s.db.Exec(`DELETE FROM flavors WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete flavor: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("flavor %s: %w", id, ErrNotFound)
	}
	return nil
}

// CreateGroup inserts a flavor group. Well-known group names get their fixed
// policies regardless of the policy argument.
func (s *Store) CreateGroup(name string, policy flavor.MatchPolicy) (*flavor.Group, error) {
	if wellKnown, ok := flavor.WellKnownPolicy(name); ok {
		policy = wellKnown
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	g := &flavor.Group{
		ID:        generateID("fg"),
		Name:      name,
		Policy:    policy,
		CreatedAt: time.Now(),
	}

	var policyJSON sql.NullString
	if policy != nil {
		data, err := json.Marshal(policy)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize match policy: %w", err)
		}
		policyJSON = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO flavor_groups (id, name, match_policy, created_at)
		VALUES (?, ?, ?, ?)
	`, g.ID, g.Name, policyJSON, g.CreatedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to create flavor group: %w", err)
	}
	return g, nil
}

// EnsureGroup returns the named group, creating it if absent. Used for the
// well-known groups that exist on demand.
func (s *Store) EnsureGroup(name string) (*flavor.Group, error) {
	g, err := s.GetGroupByName(name)
	if err == nil {
		return g, nil
	}
	return s.CreateGroup(name, nil)
}

// GetGroup retrieves a flavor group by id.
func (s *Store) GetGroup(id string) (*flavor.Group, error) {
	row := s.db.QueryRow(`
		SELECT id, name, match_policy, created_at FROM flavor_groups WHERE id = ?
	`, id)
	return scanGroup(row)
}

// GetGroupByName retrieves a flavor group by name.
func (s *Store) GetGroupByName(name string) (*flavor.Group, error) {
	row := s.db.QueryRow(`
		SELECT id, name, match_policy, created_at FROM flavor_groups WHERE name = ?
	`, name)
	return scanGroup(row)
}

// ListGroups returns all flavor groups ordered by name.
func (s *Store) ListGroups() ([]*flavor.Group, error) {
	rows, err := s.db.Query(`
		SELECT id, name, match_policy, created_at FROM flavor_groups ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list flavor groups: %w", err)
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

// AddFlavorToGroup records a flavor's membership in a group. Idempotent.
func (s *Store) AddFlavorToGroup(groupID, flavorID string) error {
	_, err := s.db.Exec(`
		INSERT INTO flavorgroup_flavors (flavorgroup_id, flavor_id)
		VALUES (?, ?)
		ON CONFLICT(flavorgroup_id, flavor_id) DO NOTHING
	`, groupID, flavorID)
	if err != nil {
		return fmt.Errorf("failed to add flavor to group: %w", err)
	}
	return nil
}

// FlavorsInGroup returns the group's flavors of one category in catalog
// order (creation order, id as tiebreak).
func (s *Store) FlavorsInGroup(groupID string, c flavor.Category) ([]*flavor.Flavor, error) {
	rows, err := s.db.Query(`
		SELECT f.id, f.category, f.label, f.hardware_uuid, f.content, f.created_at
		FROM flavors f
		JOIN flavorgroup_flavors fgf ON fgf.flavor_id = f.id
		WHERE fgf.flavorgroup_id = ? AND f.category = ?
		ORDER BY f.created_at, f.rowid
	`, groupID, string(c))
	if err != nil {
		return nil, fmt.Errorf("failed to query group flavors: %w", err)
	}
	defer rows.Close()
	return collectFlavors(rows)
}

// GroupHasCategory reports whether the group holds at least one flavor of
// the category.
func (s *Store) GroupHasCategory(groupID string, c flavor.Category) (bool, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM flavorgroup_flavors fgf
		JOIN flavors f ON f.id = fgf.flavor_id
		WHERE fgf.flavorgroup_id = ? AND f.category = ?
	`, groupID, string(c)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to probe group flavors: %w", err)
	}
	return count > 0, nil
}

// HostUniqueFlavors returns the host-unique baselines recorded for a
// hardware UUID and category in catalog order.
func (s *Store) HostUniqueFlavors(hardwareUUID string, c flavor.Category) ([]*flavor.Flavor, error) {
	if hardwareUUID == "" {
		return nil, nil
	}
	rows, err := s.db.Query(`
		SELECT id, category, label, hardware_uuid, content, created_at
		FROM flavors
		WHERE hardware_uuid = ? AND category = ?
		ORDER BY created_at, rowid
	`, hardwareUUID, string(c))
	if err != nil {
		return nil, fmt.Errorf("failed to query host-unique flavors: %w", err)
	}
	defer rows.Close()
	return collectFlavors(rows)
}

// HostUniqueExists reports whether any host-unique baseline exists for the
// hardware UUID and category.
func (s *Store) HostUniqueExists(hardwareUUID string, c flavor.Category) (bool, error) {
	if hardwareUUID == "" {
		return false, nil
	}
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM flavors WHERE hardware_uuid = ? AND category = ?
	`, hardwareUUID, string(c)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to probe host-unique flavors: %w", err)
	}
	return count > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFlavor(row rowScanner) (*flavor.Flavor, error) {
	var f flavor.Flavor
	var category, content string
	var hwUUID sql.NullString
	var createdAt int64

	err := row.Scan(&f.ID, &category, &f.Label, &hwUUID, &content, &createdAt)
	if err != nil {
		return nil, err
	}

	f.Category = flavor.Category(category)
	f.Content = json.RawMessage(content)
	f.CreatedAt = time.Unix(createdAt, 0)
	if hwUUID.Valid {
		f.HardwareUUID = hwUUID.String
	}
	return &f, nil
}

func collectFlavors(rows *sql.Rows) ([]*flavor.Flavor, error) {
	var flavors []*flavor.Flavor
	for rows.Next() {
		f, err := scanFlavor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flavor: %w", err)
		}
		flavors = append(flavors, f)
	}
	return flavors, rows.Err()
}

func scanGroup(row *sql.Row) (*flavor.Group, error) {
	g, err := scanGroupScanner(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("flavor group: %w", ErrNotFound)
	}
	return g, err
}

func scanGroupRows(rows *sql.Rows) (*flavor.Group, error) {
	return scanGroupScanner(rows)
}

func scanGroupScanner(row rowScanner) (*flavor.Group, error) {
	var g flavor.Group
	var policyJSON sql.NullString
	var createdAt int64

	if err := row.Scan(&g.ID, &g.Name, &policyJSON, &createdAt); err != nil {
		return nil, err
	}
	g.CreatedAt = time.Unix(createdAt, 0)

	if policyJSON.Valid && policyJSON.String != "" {
		if err := json.Unmarshal([]byte(policyJSON.String), &g.Policy); err != nil {
			return nil, fmt.Errorf("failed to parse match policy for group %s: %w", g.Name, err)
		}
	}
	return &g, nil
}
