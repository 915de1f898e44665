// Package trust implements the trust-decision pipeline: deriving per-group
// verification requirements from match policies, deciding when cached
// verification results can be reused, and orchestrating the verifier over
// candidate flavors to produce one merged trust report per host.
package trust

import (
	"github.com/veridian/hvs/pkg/flavor"
)

// Fault is one reason a rule result failed.
type Fault struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// RuleResult is the outcome of applying one verification rule to a manifest.
// Marker scopes the result to a flavor category; FlavorID identifies which
// baseline produced it.
type RuleResult struct {
	Rule     string          `json:"rule"`
	Marker   flavor.Category `json:"marker"`
	FlavorID string          `json:"flavor_id,omitempty"`
	Faults   []Fault         `json:"faults,omitempty"`
}

// Trusted reports whether the result carries no faults.
func (r RuleResult) Trusted() bool { return len(r.Faults) == 0 }

// Report is a merged set of rule results for one host. The overall trust
// decision and every per-category decision are derived from it.
type Report struct {
	HostID  string       `json:"host_id,omitempty"`
	Results []RuleResult `json:"results"`
}

// Add appends rule results to the report.
func (t *Report) Add(results ...RuleResult) {
	t.Results = append(t.Results, results...)
}

// Merge appends every result of other into the report.
func (t *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	t.Results = append(t.Results, other.Results...)
}

// Trusted reports whether no rule result in the report carries a fault.
func (t *Report) Trusted() bool {
	for _, r := range t.Results {
		if !r.Trusted() {
			return false
		}
	}
	return true
}

// TrustedForMarker reports whether the category has at least one rule result
// and none of its results carry a fault.
func (t *Report) TrustedForMarker(c flavor.Category) bool {
	found := false
	for _, r := range t.Results {
		if r.Marker != c {
			continue
		}
		found = true
		if !r.Trusted() {
			return false
		}
	}
	return found
}

// HasMarker reports whether any rule result exists for the category.
func (t *Report) HasMarker(c flavor.Category) bool {
	for _, r := range t.Results {
		if r.Marker == c {
			return true
		}
	}
	return false
}

// HasFlavor reports whether any rule result was produced by the given flavor.
func (t *Report) HasFlavor(flavorID string) bool {
	for _, r := range t.Results {
		if r.FlavorID == flavorID {
			return true
		}
	}
	return false
}

// ResultsForMarker returns the rule results scoped to one category.
func (t *Report) ResultsForMarker(c flavor.Category) []RuleResult {
	var out []RuleResult
	for _, r := range t.Results {
		if r.Marker == c {
			out = append(out, r)
		}
	}
	return out
}

// Markers returns the categories present in the report, in catalog order.
func (t *Report) Markers() []flavor.Category {
	var out []flavor.Category
	for _, c := range flavor.Categories() {
		if t.HasMarker(c) {
			out = append(out, c)
		}
	}
	return out
}

// FaultCount returns the total number of faults across all results.
func (t *Report) FaultCount() int {
	n := 0
	for _, r := range t.Results {
		n += len(r.Faults)
	}
	return n
}

// Faults returns every fault in the report.
func (t *Report) Faults() []Fault {
	var out []Fault
	for _, r := range t.Results {
		out = append(out, r.Faults...)
	}
	return out
}

// WithoutMarkers returns a copy of the report with every result whose marker
// is in drop removed. Used to keep still-valid cached results while the
// invalid categories are recomputed.
func (t *Report) WithoutMarkers(drop map[flavor.Category]bool) *Report {
	out := &Report{HostID: t.HostID}
	for _, r := range t.Results {
		if !drop[r.Marker] {
			out.Results = append(out.Results, r)
		}
	}
	return out
}
