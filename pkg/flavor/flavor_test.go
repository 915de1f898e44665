package flavor

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		input   string
		want    Category
		wantErr bool
	}{
		{"PLATFORM", CategoryPlatform, false},
		{"platform", CategoryPlatform, false},
		{"BIOS", CategoryPlatform, false}, // legacy alias
		{"bios", CategoryPlatform, false},
		{"OS", CategoryOS, false},
		{"HOST_UNIQUE", CategoryHostUnique, false},
		{"SOFTWARE", CategorySoftware, false},
		{"ASSET_TAG", CategoryAssetTag, false},
		{" os ", CategoryOS, false},
		{"FIRMWARE", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseCategory(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseCategory(%q): expected error, got %q", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseCategory(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCategory(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCategoryHostUnique(t *testing.T) {
	if !CategoryHostUnique.HostUnique() {
		t.Error("HOST_UNIQUE should be host-unique")
	}
	if !CategoryAssetTag.HostUnique() {
		t.Error("ASSET_TAG should be host-unique")
	}
	if CategoryPlatform.HostUnique() {
		t.Error("PLATFORM should not be host-unique")
	}
}

func TestWellKnownPolicy_Automatic(t *testing.T) {
	policy, ok := WellKnownPolicy(GroupAutomatic)
	if !ok {
		t.Fatal("automatic group should be well known")
	}

	rule, ok := policy.Rule(CategoryPlatform)
	if !ok || rule.MatchType != MatchAnyOf || rule.Required != Required {
		t.Errorf("PLATFORM rule = %+v, want ANY_OF/REQUIRED", rule)
	}
	rule, ok = policy.Rule(CategoryOS)
	if !ok || rule.MatchType != MatchAnyOf || rule.Required != Required {
		t.Errorf("OS rule = %+v, want ANY_OF/REQUIRED", rule)
	}
	rule, ok = policy.Rule(CategorySoftware)
	if !ok || rule.MatchType != MatchAllOf || rule.Required != RequiredIfDefined {
		t.Errorf("SOFTWARE rule = %+v, want ALL_OF/REQUIRED_IF_DEFINED", rule)
	}
	rule, ok = policy.Rule(CategoryAssetTag)
	if !ok || rule.MatchType != MatchLatest || rule.Required != RequiredIfDefined {
		t.Errorf("ASSET_TAG rule = %+v, want LATEST/REQUIRED_IF_DEFINED", rule)
	}
	rule, ok = policy.Rule(CategoryHostUnique)
	if !ok || rule.MatchType != MatchLatest || rule.Required != RequiredIfDefined {
		t.Errorf("HOST_UNIQUE rule = %+v, want LATEST/REQUIRED_IF_DEFINED", rule)
	}
}

func TestWellKnownPolicy_HostUniqueHasNoPolicy(t *testing.T) {
	policy, ok := WellKnownPolicy(GroupHostUnique)
	if !ok {
		t.Fatal("host_unique group should be well known")
	}
	if policy != nil {
		t.Errorf("host_unique group should carry no policy, got %+v", policy)
	}
}

func TestWellKnownPolicy_SoftwareGroups(t *testing.T) {
	for _, name := range []string{GroupPlatformSoftware, GroupWorkloadSoftware} {
		policy, ok := WellKnownPolicy(name)
		if !ok {
			t.Fatalf("%s group should be well known", name)
		}
		if len(policy) != 1 {
			t.Errorf("%s policy should cover exactly SOFTWARE, got %d rules", name, len(policy))
		}
		rule, ok := policy.Rule(CategorySoftware)
		if !ok || rule.MatchType != MatchAnyOf || rule.Required != Required {
			t.Errorf("%s SOFTWARE rule = %+v, want ANY_OF/REQUIRED", name, rule)
		}
	}
}

func TestWellKnownPolicy_Unknown(t *testing.T) {
	if _, ok := WellKnownPolicy("custom-group"); ok {
		t.Error("custom-group should not be well known")
	}
}

func TestMatchPolicyValidate(t *testing.T) {
	good := MatchPolicy{CategoryPlatform: {MatchType: MatchAnyOf, Required: Required}}
	if err := good.Validate(); err != nil {
		t.Errorf("valid policy rejected: %v", err)
	}

	bad := MatchPolicy{Category("FIRMWARE"): {MatchType: MatchAnyOf, Required: Required}}
	if err := bad.Validate(); err == nil {
		t.Error("policy with unknown category should be rejected")
	}
}

func TestImportBundle(t *testing.T) {
	raw, err := cbor.Marshal(map[string]any{
		"id":       "RIM_NIC_FW_32_41_1000",
		"category": "BIOS", // legacy alias must normalize
		"reference_values": []any{
			map[string]any{"index": 1, "algorithm": "sha256", "digest": "ab12", "description": "NIC firmware"},
			map[string]any{"index": 2, "algorithm": "sha256", "digest": "cd34"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	f, err := ImportBundle(raw)
	if err != nil {
		t.Fatalf("ImportBundle failed: %v", err)
	}
	if f.Category != CategoryPlatform {
		t.Errorf("category = %s, want PLATFORM (normalized from BIOS)", f.Category)
	}
	if f.Label != "RIM_NIC_FW_32_41_1000" {
		t.Errorf("label = %q, want bundle id", f.Label)
	}
	if len(f.Content) == 0 {
		t.Error("flavor content should carry the reference values")
	}
}

func TestImportBundle_NoReferenceValues(t *testing.T) {
	raw, err := cbor.Marshal(map[string]any{"id": "empty-bundle"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ImportBundle(raw); err == nil {
		t.Error("bundle without reference values should be rejected")
	}
}

func TestImportBundle_IntegerKeys(t *testing.T) {
	raw, err := cbor.Marshal(map[any]any{
		uint64(0): "corim-0042",
		uint64(1): []any{
			map[string]any{"index": 3, "algorithm": "sha384", "digest": "ef56"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	f, err := ImportBundle(raw)
	if err != nil {
		t.Fatalf("ImportBundle failed: %v", err)
	}
	if f.Label != "corim-0042" {
		t.Errorf("label = %q, want corim-0042", f.Label)
	}
}
