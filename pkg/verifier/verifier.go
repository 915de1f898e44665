// Package verifier provides the built-in measurement verifier: it compares a
// flavor's expected digests against the measured values in a host manifest
// and reports one fault per missing or mismatched measurement.
//
// Deployments with a dedicated verification service can substitute their own
// implementation of trust.Verifier; the orchestrator does not care where rule
// results come from.
package verifier

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/veridian/hvs/pkg/flavor"
	"github.com/veridian/hvs/pkg/manifest"
	"github.com/veridian/hvs/pkg/trust"
)

// RuleDigestMatches is the rule name stamped on every digest comparison.
const RuleDigestMatches = "measurement_digest_matches"

// Digest is the built-in verifier.
type Digest struct{}

// New creates a digest verifier.
func New() *Digest { return &Digest{} }

// flavorContent is the subset of a flavor document the verifier understands.
// Measurements maps measurement names to expected hex digests; reference
// values (from imported baseline bundles) address measurements by index.
type flavorContent struct {
	Measurements    map[string]string       `json:"measurements"`
	ReferenceValues []flavor.ReferenceValue `json:"reference_values"`
}

// Verify compares the flavor's expected measurements to the manifest.
func (d *Digest) Verify(m *manifest.Manifest, f *flavor.Flavor) (*trust.Report, error) {
	var content flavorContent
	if err := json.Unmarshal(f.Content, &content); err != nil {
		return nil, fmt.Errorf("flavor %s content is not valid JSON: %w", f.ID, err)
	}

	expected := make(map[string]string, len(content.Measurements)+len(content.ReferenceValues))
	for name, digest := range content.Measurements {
		expected[name] = digest
	}
	for _, rv := range content.ReferenceValues {
		expected[strconv.Itoa(rv.Index)] = rv.Digest
	}

	if len(expected) == 0 {
		return nil, fmt.Errorf("flavor %s defines no expected measurements", f.ID)
	}

	result := trust.RuleResult{Rule: RuleDigestMatches, Marker: f.Category, FlavorID: f.ID}
	for _, name := range sortedKeys(expected) {
		want := expected[name]
		raw, ok := m.Measurements[name]
		if !ok {
			result.Faults = append(result.Faults, trust.Fault{
				Name:        "measurement_missing",
				Description: fmt.Sprintf("manifest has no measurement %q", name),
			})
			continue
		}
		var got string
		if err := json.Unmarshal(raw, &got); err != nil {
			result.Faults = append(result.Faults, trust.Fault{
				Name:        "measurement_unreadable",
				Description: fmt.Sprintf("measurement %q is not a digest string", name),
			})
			continue
		}
		if !strings.EqualFold(got, want) {
			result.Faults = append(result.Faults, trust.Fault{
				Name:        "measurement_mismatch",
				Description: fmt.Sprintf("measurement %q: expected %s, measured %s", name, want, got),
			})
		}
	}

	return &trust.Report{Results: []trust.RuleResult{result}}, nil
}

// sortedKeys keeps fault order deterministic across runs.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
