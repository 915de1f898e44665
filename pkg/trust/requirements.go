package trust

import (
	"fmt"

	"github.com/veridian/hvs/pkg/flavor"
)

// Catalog is the read side of the flavor catalog consumed by requirement
// derivation and the orchestrator. Reads are assumed strongly consistent
// with prior writes.
type Catalog interface {
	// FlavorsInGroup returns the group's flavors of one category, in
	// catalog order.
	FlavorsInGroup(groupID string, c flavor.Category) ([]*flavor.Flavor, error)
	// GroupHasCategory reports whether the group holds at least one flavor
	// of the category.
	GroupHasCategory(groupID string, c flavor.Category) (bool, error)
	// HostUniqueFlavors returns the host-unique baselines recorded for a
	// hardware UUID and category, in catalog order.
	HostUniqueFlavors(hardwareUUID string, c flavor.Category) ([]*flavor.Flavor, error)
	// HostUniqueExists reports whether any host-unique baseline exists for
	// the hardware UUID and category.
	HostUniqueExists(hardwareUUID string, c flavor.Category) (bool, error)
}

// Requirements captures what one flavor group demands of one host: the match
// policy, the full ALL_OF candidate set, and the categories that actually
// constrain the trust decision.
type Requirements struct {
	GroupID   string
	GroupName string
	Policy    flavor.MatchPolicy

	// AllOf is the complete candidate set for ALL_OF categories. Every
	// flavor here must independently verify for its category to be trusted.
	AllOf []*flavor.Flavor

	// DefinedAndRequired lists the categories that constrain the decision:
	// REQUIRED categories always, REQUIRED_IF_DEFINED categories only when
	// at least one flavor of the category is defined for this host.
	DefinedAndRequired []flavor.Category
}

// IsDefinedAndRequired reports whether the category constrains the decision.
func (r *Requirements) IsDefinedAndRequired(c flavor.Category) bool {
	for _, dc := range r.DefinedAndRequired {
		if dc == c {
			return true
		}
	}
	return false
}

// LatestSemantics reports whether the category's rule uses LATEST matching.
func (r *Requirements) LatestSemantics(c flavor.Category) bool {
	rule, ok := r.Policy.Rule(c)
	return ok && rule.MatchType == flavor.MatchLatest
}

// AllOfIDs returns the ids of the ALL_OF candidate set.
func (r *Requirements) AllOfIDs() []string {
	ids := make([]string, 0, len(r.AllOf))
	for _, f := range r.AllOf {
		ids = append(ids, f.ID)
	}
	return ids
}

// RequirementsFor derives the trust requirements one flavor group imposes on
// a host. For ALL_OF categories the full candidate set is fetched; for
// REQUIRED_IF_DEFINED categories existence is probed in-group, or per
// hardware UUID for host-unique categories. The derivation has no side
// effects. A group referencing an unknown category yields a PolicyError.
func RequirementsFor(catalog Catalog, group *flavor.Group, hardwareUUID string) (*Requirements, error) {
	// Policy keys outside the known category set are configuration bugs;
	// fail before touching the catalog.
	for c := range group.Policy {
		if _, err := flavor.ParseCategory(string(c)); err != nil {
			return nil, &PolicyError{Group: group.Name, Category: string(c), Err: err}
		}
	}

	req := &Requirements{
		GroupID:   group.ID,
		GroupName: group.Name,
		Policy:    group.Policy,
	}

	for _, c := range flavor.Categories() {
		rule, ok := group.Policy.Rule(c)
		if !ok {
			continue
		}

		var (
			defined bool
			err     error
		)
		switch {
		case rule.MatchType == flavor.MatchAllOf:
			// ALL_OF needs the full candidate set regardless of the
			// required setting; existence falls out of the fetch.
			var candidates []*flavor.Flavor
			candidates, err = candidateFlavors(catalog, group.ID, hardwareUUID, c)
			if err != nil {
				return nil, err
			}
			req.AllOf = append(req.AllOf, candidates...)
			defined = len(candidates) > 0
		case c.HostUnique():
			defined, err = catalog.HostUniqueExists(hardwareUUID, c)
			if err != nil {
				return nil, fmt.Errorf("failed to probe host-unique flavors for %s: %w", c, err)
			}
		default:
			defined, err = catalog.GroupHasCategory(group.ID, c)
			if err != nil {
				return nil, fmt.Errorf("failed to probe group flavors for %s: %w", c, err)
			}
		}

		switch rule.Required {
		case flavor.Required:
			req.DefinedAndRequired = append(req.DefinedAndRequired, c)
		case flavor.RequiredIfDefined:
			if defined {
				req.DefinedAndRequired = append(req.DefinedAndRequired, c)
			}
		}
	}

	return req, nil
}

// candidateFlavors returns the candidate set for one category: host-unique
// baselines are looked up per hardware UUID, everything else by group
// membership.
func candidateFlavors(catalog Catalog, groupID, hardwareUUID string, c flavor.Category) ([]*flavor.Flavor, error) {
	if c.HostUnique() {
		flavors, err := catalog.HostUniqueFlavors(hardwareUUID, c)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch host-unique flavors for %s: %w", c, err)
		}
		return flavors, nil
	}
	flavors, err := catalog.FlavorsInGroup(groupID, c)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch group flavors for %s: %w", c, err)
	}
	return flavors, nil
}
