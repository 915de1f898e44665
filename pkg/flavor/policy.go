package flavor

import (
	"encoding/json"
	"fmt"
)

// MatchType determines how many flavors of a category must verify for the
// category to count as trusted.
type MatchType string

const (
	// MatchAllOf requires every candidate flavor in the category to verify.
	MatchAllOf MatchType = "ALL_OF"
	// MatchAnyOf requires at least one candidate flavor to verify.
	MatchAnyOf MatchType = "ANY_OF"
	// MatchLatest behaves like ANY_OF; when no candidate verifies, the
	// creation timestamp is informative but selection among failures still
	// uses the fewest-faults rule.
	MatchLatest MatchType = "LATEST"
)

// RequiredSetting determines whether a category is mandatory for trust.
type RequiredSetting string

const (
	// Required categories always constrain the trust decision.
	Required RequiredSetting = "REQUIRED"
	// RequiredIfDefined categories constrain the decision only when at
	// least one flavor of the category is defined for the host.
	RequiredIfDefined RequiredSetting = "REQUIRED_IF_DEFINED"
)

// MatchRule pairs a match type with a required setting for one category.
type MatchRule struct {
	MatchType MatchType       `json:"match_type"`
	Required  RequiredSetting `json:"required"`
}

// MatchPolicy maps each flavor category to its match rule. A category appears
// at most once.
type MatchPolicy map[Category]MatchRule

// Validate checks that every category key in the policy is known.
func (p MatchPolicy) Validate() error {
	for c := range p {
		if _, err := ParseCategory(string(c)); err != nil {
			return fmt.Errorf("invalid match policy: %w", err)
		}
	}
	return nil
}

// UnmarshalJSON normalizes category keys on ingestion, so legacy "BIOS"
// policies land on PLATFORM. Unknown keys are kept verbatim and rejected
// later by Validate, keeping parse and validation separate.
func (p *MatchPolicy) UnmarshalJSON(data []byte) error {
	var raw map[string]MatchRule
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(MatchPolicy, len(raw))
	for k, v := range raw {
		if c, err := ParseCategory(k); err == nil {
			out[c] = v
		} else {
			out[Category(k)] = v
		}
	}
	*p = out
	return nil
}

// Rule returns the match rule for a category, if the policy defines one.
func (p MatchPolicy) Rule(c Category) (MatchRule, bool) {
	r, ok := p[c]
	return r, ok
}

// Well-known flavor group names. These groups are structurally special: their
// policies are fixed and created on demand rather than configured.
const (
	GroupAutomatic        = "automatic"
	GroupHostUnique       = "host_unique"
	GroupPlatformSoftware = "platform_software"
	GroupWorkloadSoftware = "workload_software"
)

// WellKnownPolicy returns the fixed match policy for one of the well-known
// group names. The host_unique group carries no policy at all: flavors in it
// are matched per hardware UUID, never automatically.
func WellKnownPolicy(name string) (MatchPolicy, bool) {
	switch name {
	case GroupAutomatic:
		return MatchPolicy{
			CategoryPlatform:   {MatchType: MatchAnyOf, Required: Required},
			CategoryOS:         {MatchType: MatchAnyOf, Required: Required},
			CategorySoftware:   {MatchType: MatchAllOf, Required: RequiredIfDefined},
			CategoryAssetTag:   {MatchType: MatchLatest, Required: RequiredIfDefined},
			CategoryHostUnique: {MatchType: MatchLatest, Required: RequiredIfDefined},
		}, true
	case GroupHostUnique:
		return nil, true
	case GroupPlatformSoftware, GroupWorkloadSoftware:
		return MatchPolicy{
			CategorySoftware: {MatchType: MatchAnyOf, Required: Required},
		}, true
	}
	return nil, false
}

// IsWellKnown reports whether name is one of the built-in group names.
func IsWellKnown(name string) bool {
	_, ok := WellKnownPolicy(name)
	return ok
}
