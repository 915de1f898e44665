package trust

import (
	"github.com/veridian/hvs/pkg/flavor"
)

// Cache is the derived view of the current flavor-host links for one
// (host, group) pair: the flavors still believed valid and the report last
// computed from them.
type Cache struct {
	HostID  string
	GroupID string
	Flavors []*flavor.Flavor
	Report  *Report
}

// Valid decides whether the cache can stand in for a fresh verification
// pass. A cache is valid iff it is non-empty, the cached report has a rule
// result for every defined-and-required category (presence, not trust
// outcome, is what matters), and every currently-defined ALL_OF flavor id
// appears in the cached report.
//
// When invalid, the returned map lists only the categories that caused
// invalidity, each mapped to whether LATEST match semantics apply. The
// orchestrator re-checks just those categories; cached results for the rest
// are reused as-is.
func (c *Cache) Valid(req *Requirements) (bool, map[flavor.Category]bool) {
	if c == nil || len(c.Flavors) == 0 || c.Report == nil {
		// Nothing usable cached: every policy category must be evaluated.
		recheck := make(map[flavor.Category]bool, len(req.Policy))
		for cat := range req.Policy {
			recheck[cat] = req.LatestSemantics(cat)
		}
		return false, recheck
	}

	recheck := make(map[flavor.Category]bool)

	for _, cat := range req.DefinedAndRequired {
		if !c.Report.HasMarker(cat) {
			recheck[cat] = req.LatestSemantics(cat)
		}
	}

	for _, f := range req.AllOf {
		if !c.Report.HasFlavor(f.ID) {
			recheck[f.Category] = req.LatestSemantics(f.Category)
		}
	}

	return len(recheck) == 0, recheck
}
