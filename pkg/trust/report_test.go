package trust

import (
	"testing"

	"github.com/veridian/hvs/pkg/flavor"
)

func TestReportTrusted(t *testing.T) {
	r := &Report{}
	if !r.Trusted() {
		t.Error("empty report is vacuously trusted")
	}

	r.Add(RuleResult{Rule: "a", Marker: flavor.CategoryPlatform, FlavorID: "f1"})
	if !r.Trusted() {
		t.Error("report with only passing results is trusted")
	}

	r.Add(RuleResult{Rule: "b", Marker: flavor.CategoryOS, FlavorID: "f2", Faults: []Fault{{Name: "x"}}})
	if r.Trusted() {
		t.Error("any fault makes the report untrusted")
	}
}

func TestTrustedForMarker(t *testing.T) {
	r := &Report{Results: []RuleResult{
		{Rule: "a", Marker: flavor.CategoryPlatform, FlavorID: "f1"},
		{Rule: "b", Marker: flavor.CategoryOS, FlavorID: "f2", Faults: []Fault{{Name: "x"}}},
	}}

	if !r.TrustedForMarker(flavor.CategoryPlatform) {
		t.Error("PLATFORM has only passing results")
	}
	if r.TrustedForMarker(flavor.CategoryOS) {
		t.Error("OS has a faulted result")
	}
	// No results at all means not trusted, distinct from trusted-vacuously.
	if r.TrustedForMarker(flavor.CategorySoftware) {
		t.Error("a marker with no results is not trusted")
	}
}

func TestWithoutMarkers(t *testing.T) {
	r := &Report{HostID: "H1", Results: []RuleResult{
		{Rule: "a", Marker: flavor.CategoryPlatform, FlavorID: "f1"},
		{Rule: "b", Marker: flavor.CategoryOS, FlavorID: "f2"},
	}}

	filtered := r.WithoutMarkers(map[flavor.Category]bool{flavor.CategoryOS: true})
	if filtered.HasMarker(flavor.CategoryOS) {
		t.Error("OS results should be dropped")
	}
	if !filtered.HasMarker(flavor.CategoryPlatform) {
		t.Error("PLATFORM results should be retained")
	}
	if len(r.Results) != 2 {
		t.Error("the source report must not be mutated")
	}
}

func TestMarkersInCatalogOrder(t *testing.T) {
	r := &Report{Results: []RuleResult{
		{Rule: "a", Marker: flavor.CategorySoftware},
		{Rule: "b", Marker: flavor.CategoryPlatform},
	}}
	markers := r.Markers()
	if len(markers) != 2 || markers[0] != flavor.CategoryPlatform || markers[1] != flavor.CategorySoftware {
		t.Errorf("Markers() = %v, want catalog order [PLATFORM SOFTWARE]", markers)
	}
}
