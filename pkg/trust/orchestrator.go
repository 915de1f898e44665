package trust

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/veridian/hvs/pkg/flavor"
	"github.com/veridian/hvs/pkg/manifest"
)

// Rule names for the synthetic cross-cutting checks appended to every
// collective report.
const (
	RuleRequiredCategoryPresent = "required_category_present"
	RuleAllOfComplete           = "all_of_complete"
)

// Verifier compares one flavor's expectations to a manifest and returns the
// pass/fail rule results with faults. It is the authoritative source of
// per-rule outcomes; the orchestrator only selects candidates and merges.
type Verifier interface {
	Verify(m *manifest.Manifest, f *flavor.Flavor) (*Report, error)
}

// LinkStore mutates the flavor-host cache links. Upserts are idempotent.
type LinkStore interface {
	UpsertFlavorHostLink(flavorID, hostID string) error
	DeleteFlavorHostLink(flavorID, hostID string) error
}

// Orchestrator turns a host manifest plus a set of candidate flavors into one
// merged trust report, maintaining the flavor-host cache links as it goes.
type Orchestrator struct {
	catalog  Catalog
	links    LinkStore
	verifier Verifier
	log      *slog.Logger
}

// NewOrchestrator creates an orchestrator. A nil logger falls back to
// slog.Default.
func NewOrchestrator(catalog Catalog, links LinkStore, verifier Verifier, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{catalog: catalog, links: links, verifier: verifier, log: logger}
}

// failedCandidate retains an untrusted individual report for category-level
// reconciliation after all candidates are evaluated.
type failedCandidate struct {
	flavorID string
	report   *Report
}

// Verify evaluates candidate flavors per category and merges the individual
// reports into one collective report.
//
// categories limits the evaluation to the given set (the cache's re-check
// hints); nil means every category of the requirements' policy. cached is the
// set of flavor ids currently linked to the host: when a cached flavor is
// re-checked and fails, its link is deleted immediately so the cache never
// references a known-stale flavor.
//
// Link upserts for categories already processed are not rolled back if a
// later category errors; re-verification is idempotent and will converge.
func (o *Orchestrator) Verify(ctx context.Context, hostID string, m *manifest.Manifest, req *Requirements, categories map[flavor.Category]bool, cached map[string]bool) (*Report, error) {
	if categories == nil {
		categories = make(map[flavor.Category]bool, len(req.Policy))
		for cat := range req.Policy {
			categories[cat] = req.LatestSemantics(cat)
		}
	}

	collective := &Report{HostID: hostID}

	for _, cat := range flavor.Categories() {
		if _, evaluate := categories[cat]; !evaluate {
			continue
		}
		rule, ok := req.Policy.Rule(cat)
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := o.evaluateCategory(hostID, m, req, cat, rule, cached, collective); err != nil {
			return nil, err
		}
	}

	o.appendRequiredCategoryChecks(req, categories, collective)
	o.appendAllOfChecks(req, categories, collective)

	return collective, nil
}

// evaluateCategory runs the verifier over every candidate flavor of one
// category and reconciles the outcomes into the collective report.
func (o *Orchestrator) evaluateCategory(hostID string, m *manifest.Manifest, req *Requirements, cat flavor.Category, rule flavor.MatchRule, cached map[string]bool, collective *Report) error {
	candidates, err := candidateFlavors(o.catalog, req.GroupID, m.HardwareUUID(), cat)
	if err != nil {
		return err
	}

	var failed []failedCandidate
	for _, f := range candidates {
		individual, err := o.verifier.Verify(m, f)
		if err != nil {
			return &VerificationError{FlavorID: f.ID, Err: err}
		}
		normalizeResults(individual, f)

		if individual.Trusted() {
			collective.Merge(individual)
			if err := o.links.UpsertFlavorHostLink(f.ID, hostID); err != nil {
				return fmt.Errorf("failed to record flavor-host link: %w", err)
			}
			continue
		}

		failed = append(failed, failedCandidate{flavorID: f.ID, report: individual})
		o.log.Debug("flavor did not verify",
			"host", hostID, "flavor", f.ID, "category", cat, "faults", individual.FaultCount())

		if cached[f.ID] {
			// A previously cached flavor that no longer verifies must not
			// linger in the cache.
			if err := o.links.DeleteFlavorHostLink(f.ID, hostID); err != nil {
				return fmt.Errorf("failed to drop stale flavor-host link: %w", err)
			}
		}
	}

	if !req.IsDefinedAndRequired(cat) || collective.TrustedForMarker(cat) {
		return nil
	}

	switch rule.MatchType {
	case flavor.MatchAllOf:
		// Surface every failure, and keep a link for each failing candidate:
		// the link records the last-evaluated candidate, not trust proof.
		for _, fc := range failed {
			collective.Merge(fc.report)
			if err := o.links.UpsertFlavorHostLink(fc.flavorID, hostID); err != nil {
				return fmt.Errorf("failed to record flavor-host link: %w", err)
			}
		}
	case flavor.MatchAnyOf, flavor.MatchLatest:
		// No candidate verified: surface only the least-faulty failure.
		// Ties keep the earliest candidate, which is catalog order.
		if len(failed) == 0 {
			return nil
		}
		best := failed[0]
		for _, fc := range failed[1:] {
			if fc.report.FaultCount() < best.report.FaultCount() {
				best = fc
			}
		}
		collective.Merge(best.report)
		if err := o.links.UpsertFlavorHostLink(best.flavorID, hostID); err != nil {
			return fmt.Errorf("failed to record flavor-host link: %w", err)
		}
	}
	return nil
}

// appendRequiredCategoryChecks adds, for every defined-and-required category
// evaluated in this pass, a synthetic check that faults when the category
// produced no rule result at all.
func (o *Orchestrator) appendRequiredCategoryChecks(req *Requirements, categories map[flavor.Category]bool, collective *Report) {
	for _, cat := range req.DefinedAndRequired {
		if _, evaluated := categories[cat]; !evaluated {
			continue
		}
		result := RuleResult{Rule: RuleRequiredCategoryPresent, Marker: cat}
		if !collective.HasMarker(cat) {
			result.Faults = []Fault{{
				Name:        "required_flavor_missing",
				Description: fmt.Sprintf("no %s flavor produced a verification result", cat),
			}}
		}
		collective.Add(result)
	}
}

// appendAllOfChecks adds, per ALL_OF category evaluated in this pass, a
// synthetic completeness check that faults for every ALL_OF flavor id that
// never produced a merged rule result.
func (o *Orchestrator) appendAllOfChecks(req *Requirements, categories map[flavor.Category]bool, collective *Report) {
	byCategory := make(map[flavor.Category][]*flavor.Flavor)
	for _, f := range req.AllOf {
		byCategory[f.Category] = append(byCategory[f.Category], f)
	}

	for _, cat := range flavor.Categories() {
		flavors := byCategory[cat]
		if len(flavors) == 0 {
			continue
		}
		if _, evaluated := categories[cat]; !evaluated {
			continue
		}
		result := RuleResult{Rule: RuleAllOfComplete, Marker: cat}
		for _, f := range flavors {
			if !collective.HasFlavor(f.ID) {
				result.Faults = append(result.Faults, Fault{
					Name:        "all_of_flavor_missing",
					Description: fmt.Sprintf("flavor %s (%s) produced no verification result", f.ID, f.Label),
				})
			}
		}
		collective.Add(result)
	}
}

// normalizeResults stamps the producing flavor's id and category onto results
// the low-level verifier left unscoped.
func normalizeResults(r *Report, f *flavor.Flavor) {
	for i := range r.Results {
		if r.Results[i].FlavorID == "" {
			r.Results[i].FlavorID = f.ID
		}
		if r.Results[i].Marker == "" {
			r.Results[i].Marker = f.Category
		}
	}
}
