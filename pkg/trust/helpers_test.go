package trust

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/veridian/hvs/pkg/flavor"
	"github.com/veridian/hvs/pkg/manifest"
)

// fakeCatalog serves flavors from in-memory slices keyed by group and by
// hardware UUID.
type fakeCatalog struct {
	groupFlavors map[string][]*flavor.Flavor // groupID -> flavors
	hostUnique   map[string][]*flavor.Flavor // hardwareUUID -> flavors
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		groupFlavors: make(map[string][]*flavor.Flavor),
		hostUnique:   make(map[string][]*flavor.Flavor),
	}
}

func (c *fakeCatalog) FlavorsInGroup(groupID string, cat flavor.Category) ([]*flavor.Flavor, error) {
	var out []*flavor.Flavor
	for _, f := range c.groupFlavors[groupID] {
		if f.Category == cat {
			out = append(out, f)
		}
	}
	return out, nil
}

func (c *fakeCatalog) GroupHasCategory(groupID string, cat flavor.Category) (bool, error) {
	flavors, _ := c.FlavorsInGroup(groupID, cat)
	return len(flavors) > 0, nil
}

func (c *fakeCatalog) HostUniqueFlavors(hardwareUUID string, cat flavor.Category) ([]*flavor.Flavor, error) {
	var out []*flavor.Flavor
	for _, f := range c.hostUnique[hardwareUUID] {
		if f.Category == cat {
			out = append(out, f)
		}
	}
	return out, nil
}

func (c *fakeCatalog) HostUniqueExists(hardwareUUID string, cat flavor.Category) (bool, error) {
	flavors, _ := c.HostUniqueFlavors(hardwareUUID, cat)
	return len(flavors) > 0, nil
}

// fakeLinks records link mutations in order.
type fakeLinks struct {
	upserts []string // flavorID
	deletes []string
}

func (l *fakeLinks) UpsertFlavorHostLink(flavorID, hostID string) error {
	l.upserts = append(l.upserts, flavorID)
	return nil
}

func (l *fakeLinks) DeleteFlavorHostLink(flavorID, hostID string) error {
	l.deletes = append(l.deletes, flavorID)
	return nil
}

func (l *fakeLinks) upserted(flavorID string) bool {
	for _, id := range l.upserts {
		if id == flavorID {
			return true
		}
	}
	return false
}

// biosVerifier is a toy low-level verifier: it compares the "bios_version"
// field of the flavor content to the manifest's BIOS version and emits one
// fault per expected-but-mismatched field. Extra fault padding lets tests
// shape fewest-faults selection.
type biosVerifier struct {
	calls int
	errOn string // flavor ID that returns an error
}

type biosContent struct {
	BIOSVersion string `json:"bios_version"`
	ExtraFaults int    `json:"extra_faults"`
}

func (v *biosVerifier) Verify(m *manifest.Manifest, f *flavor.Flavor) (*Report, error) {
	v.calls++
	if v.errOn != "" && f.ID == v.errOn {
		return nil, fmt.Errorf("verifier exploded on %s", f.ID)
	}

	var content biosContent
	if err := json.Unmarshal(f.Content, &content); err != nil {
		return nil, err
	}

	result := RuleResult{Rule: "bios_version_matches", Marker: f.Category, FlavorID: f.ID}
	if content.BIOSVersion != m.HostInfo.BIOSVersion {
		result.Faults = append(result.Faults, Fault{
			Name:        "bios_version_mismatch",
			Description: fmt.Sprintf("expected %s, measured %s", content.BIOSVersion, m.HostInfo.BIOSVersion),
		})
	}
	for i := 0; i < content.ExtraFaults; i++ {
		result.Faults = append(result.Faults, Fault{Name: fmt.Sprintf("extra_fault_%d", i)})
	}

	return &Report{Results: []RuleResult{result}}, nil
}

// fakeCacheStore is an in-memory CacheStore.
type fakeCacheStore struct {
	linked  map[string][]*flavor.Flavor // hostID|groupID
	reports map[string]*Report
	saves   int
}

func newFakeCacheStore() *fakeCacheStore {
	return &fakeCacheStore{
		linked:  make(map[string][]*flavor.Flavor),
		reports: make(map[string]*Report),
	}
}

func cacheKey(hostID, groupID string) string { return hostID + "|" + groupID }

func (s *fakeCacheStore) LinkedFlavors(hostID, groupID, hardwareUUID string) ([]*flavor.Flavor, error) {
	return s.linked[cacheKey(hostID, groupID)], nil
}

func (s *fakeCacheStore) CachedReport(hostID, groupID string) (*Report, error) {
	return s.reports[cacheKey(hostID, groupID)], nil
}

func (s *fakeCacheStore) SaveCachedReport(hostID, groupID string, r *Report) error {
	s.saves++
	s.reports[cacheKey(hostID, groupID)] = r
	return nil
}

func biosFlavor(id string, cat flavor.Category, version string, extraFaults int) *flavor.Flavor {
	content, _ := json.Marshal(biosContent{BIOSVersion: version, ExtraFaults: extraFaults})
	return &flavor.Flavor{
		ID:        id,
		Category:  cat,
		Label:     id,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

func biosManifest(hardwareUUID, biosVersion string) *manifest.Manifest {
	return &manifest.Manifest{
		HostInfo: manifest.HostInfo{
			HostName:     "node-01",
			BIOSVersion:  biosVersion,
			HardwareUUID: hardwareUUID,
		},
		CollectedAt: time.Now(),
	}
}
