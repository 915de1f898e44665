package trust

import "fmt"

// PolicyError indicates a malformed match policy, such as a group referencing
// an unknown flavor category. Policy errors are configuration bugs and are
// never retried.
type PolicyError struct {
	Group    string
	Category string
	Err      error
}

func (e *PolicyError) Error() string {
	if e.Category != "" {
		return fmt.Sprintf("invalid match policy for group %q: unknown category %q", e.Group, e.Category)
	}
	return fmt.Sprintf("invalid match policy for group %q: %v", e.Group, e.Err)
}

func (e *PolicyError) Unwrap() error { return e.Err }

// VerificationError wraps a failure of the low-level verifier while
// evaluating one flavor against a manifest.
type VerificationError struct {
	FlavorID string
	Err      error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification of flavor %s failed: %v", e.FlavorID, e.Err)
}

func (e *VerificationError) Unwrap() error { return e.Err }
