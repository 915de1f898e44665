// Package flavor defines measurement baselines ("flavors") and the match
// policies that decide how many baselines of each category a host must
// satisfy to be considered trusted.
package flavor

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Category identifies which part of host state a flavor describes.
type Category string

const (
	CategoryPlatform   Category = "PLATFORM"
	CategoryOS         Category = "OS"
	CategoryHostUnique Category = "HOST_UNIQUE"
	CategorySoftware   Category = "SOFTWARE"
	CategoryAssetTag   Category = "ASSET_TAG"
)

// Categories returns all known categories in catalog order. The order is
// stable and is used wherever deterministic iteration matters.
func Categories() []Category {
	return []Category{
		CategoryPlatform,
		CategoryOS,
		CategoryHostUnique,
		CategorySoftware,
		CategoryAssetTag,
	}
}

// ParseCategory normalizes a category string. The legacy "BIOS" name is an
// alias for PLATFORM and is rewritten on ingestion.
func ParseCategory(s string) (Category, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PLATFORM", "BIOS":
		return CategoryPlatform, nil
	case "OS":
		return CategoryOS, nil
	case "HOST_UNIQUE":
		return CategoryHostUnique, nil
	case "SOFTWARE":
		return CategorySoftware, nil
	case "ASSET_TAG":
		return CategoryAssetTag, nil
	}
	return "", fmt.Errorf("unknown flavor category: %q", s)
}

// HostUnique reports whether flavors of this category are matched per host
// hardware UUID rather than by group membership.
func (c Category) HostUnique() bool {
	return c == CategoryHostUnique || c == CategoryAssetTag
}

// Flavor is an immutable measurement baseline for one category of host state.
// Content is an opaque JSON document owned by whoever produced the baseline;
// the trust engine never interprets it beyond handing it to the verifier.
type Flavor struct {
	ID           string          `json:"id"`
	Category     Category        `json:"category"`
	Label        string          `json:"label"`
	HardwareUUID string          `json:"hardware_uuid,omitempty"` // set for host-unique baselines only
	Content      json.RawMessage `json:"content"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Group is a named policy bundle selecting which flavor categories are
// mandatory for its member hosts and how many matching flavors are needed.
type Group struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Policy    MatchPolicy `json:"match_policy,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}
