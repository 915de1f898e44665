package verifier

import (
	"encoding/json"
	"testing"

	"github.com/veridian/hvs/pkg/flavor"
	"github.com/veridian/hvs/pkg/manifest"
)

func measuredManifest(values map[string]string) *manifest.Manifest {
	m := &manifest.Manifest{Measurements: make(map[string]json.RawMessage)}
	for k, v := range values {
		raw, _ := json.Marshal(v)
		m.Measurements[k] = raw
	}
	return m
}

func digestFlavor(t *testing.T, id string, measurements map[string]string) *flavor.Flavor {
	t.Helper()
	content, err := json.Marshal(map[string]any{"measurements": measurements})
	if err != nil {
		t.Fatal(err)
	}
	return &flavor.Flavor{ID: id, Category: flavor.CategoryPlatform, Label: id, Content: content}
}

func TestVerify_AllDigestsMatch(t *testing.T) {
	f := digestFlavor(t, "fl1", map[string]string{"pcr0": "aabb", "pcr7": "ccdd"})
	m := measuredManifest(map[string]string{"pcr0": "aabb", "pcr7": "ccdd"})

	report, err := New().Verify(m, f)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !report.Trusted() {
		t.Errorf("matching digests should verify trusted, faults: %v", report.Faults())
	}
	if len(report.Results) != 1 || report.Results[0].FlavorID != "fl1" {
		t.Errorf("result should be stamped with the flavor id, got %+v", report.Results)
	}
}

func TestVerify_DigestCaseInsensitive(t *testing.T) {
	f := digestFlavor(t, "fl1", map[string]string{"pcr0": "AABB"})
	m := measuredManifest(map[string]string{"pcr0": "aabb"})

	report, err := New().Verify(m, f)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !report.Trusted() {
		t.Error("digest comparison should be case-insensitive")
	}
}

func TestVerify_MismatchAndMissingFault(t *testing.T) {
	f := digestFlavor(t, "fl1", map[string]string{"pcr0": "aabb", "pcr7": "ccdd"})
	m := measuredManifest(map[string]string{"pcr0": "ffff"}) // pcr7 absent

	report, err := New().Verify(m, f)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if report.Trusted() {
		t.Fatal("mismatched and missing measurements must fault")
	}
	if got := report.FaultCount(); got != 2 {
		t.Errorf("fault count = %d, want 2 (one mismatch, one missing)", got)
	}
}

func TestVerify_ReferenceValueContent(t *testing.T) {
	content, _ := json.Marshal(map[string]any{
		"reference_values": []map[string]any{
			{"index": 2, "algorithm": "sha256", "digest": "aabb"},
		},
	})
	f := &flavor.Flavor{ID: "fl2", Category: flavor.CategoryPlatform, Content: content}
	m := measuredManifest(map[string]string{"2": "aabb"})

	report, err := New().Verify(m, f)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !report.Trusted() {
		t.Errorf("reference-value flavor should verify, faults: %v", report.Faults())
	}
}

func TestVerify_EmptyFlavorRejected(t *testing.T) {
	f := &flavor.Flavor{ID: "fl3", Category: flavor.CategoryPlatform, Content: []byte(`{}`)}
	if _, err := New().Verify(measuredManifest(nil), f); err == nil {
		t.Error("a flavor with no expected measurements is a configuration error")
	}
}
