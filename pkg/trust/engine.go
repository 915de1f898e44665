package trust

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/veridian/hvs/pkg/flavor"
	"github.com/veridian/hvs/pkg/manifest"
)

// CacheStore is the persistence side of the trust cache: the flavor-host
// links joined back to flavors, and the per-group report last computed from
// them.
type CacheStore interface {
	// LinkedFlavors returns the flavors currently linked to the host that
	// are candidates under the given group (group members, plus host-unique
	// baselines for the hardware UUID).
	LinkedFlavors(hostID, groupID, hardwareUUID string) ([]*flavor.Flavor, error)
	// CachedReport returns the report last computed for the pair, or nil
	// when none exists.
	CachedReport(hostID, groupID string) (*Report, error)
	// SaveCachedReport replaces the cached report for the pair.
	SaveCachedReport(hostID, groupID string, r *Report) error
}

// Engine evaluates one flavor group against one host manifest, consulting the
// trust cache to skip verifier work for categories whose cached results are
// still valid.
type Engine struct {
	catalog Catalog
	cache   CacheStore
	orch    *Orchestrator
	log     *slog.Logger
}

// NewEngine creates an engine over a catalog, cache store, and orchestrator.
func NewEngine(catalog Catalog, cache CacheStore, orch *Orchestrator, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{catalog: catalog, cache: cache, orch: orch, log: logger}
}

// GroupReport returns the trust report for one (host, group) pair. When the
// cached state still satisfies the group's requirements the cached report is
// returned untouched and the verifier never runs; recomputed reports whether
// a fresh verification pass happened.
//
// Groups without a match policy (the host_unique group) contribute nothing:
// their flavors are only ever matched through another group's policy.
func (e *Engine) GroupReport(ctx context.Context, hostID string, m *manifest.Manifest, group *flavor.Group) (*Report, bool, error) {
	if group.Policy == nil {
		return &Report{HostID: hostID}, false, nil
	}

	req, err := RequirementsFor(e.catalog, group, m.HardwareUUID())
	if err != nil {
		return nil, false, err
	}

	linked, err := e.cache.LinkedFlavors(hostID, group.ID, m.HardwareUUID())
	if err != nil {
		return nil, false, fmt.Errorf("failed to load cached flavor links: %w", err)
	}
	cachedReport, err := e.cache.CachedReport(hostID, group.ID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load cached report: %w", err)
	}

	cache := &Cache{HostID: hostID, GroupID: group.ID, Flavors: linked, Report: cachedReport}
	ok, recheck := cache.Valid(req)
	if ok {
		e.log.Debug("trust cache valid, skipping verification",
			"host", hostID, "group", group.Name)
		return cache.Report, false, nil
	}

	// Keep cached results for categories that did not cause invalidity;
	// recompute only the flagged ones.
	merged := &Report{HostID: hostID}
	if cache.Report != nil {
		merged = cache.Report.WithoutMarkers(recheck)
		merged.HostID = hostID
	}

	cachedIDs := make(map[string]bool, len(linked))
	for _, f := range linked {
		cachedIDs[f.ID] = true
	}

	fresh, err := e.orch.Verify(ctx, hostID, m, req, recheck, cachedIDs)
	if err != nil {
		return nil, false, err
	}
	merged.Merge(fresh)

	if err := e.cache.SaveCachedReport(hostID, group.ID, merged); err != nil {
		return nil, false, fmt.Errorf("failed to save cached report: %w", err)
	}

	e.log.Info("flavor group verified",
		"host", hostID, "group", group.Name, "trusted", merged.Trusted())
	return merged, true, nil
}
