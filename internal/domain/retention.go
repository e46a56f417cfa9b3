package domain

import "fmt"

// RetentionPolicy decides when processed capture files may be deleted.
type RetentionPolicy string

const (
	// PolicyNever keeps every capture file.
	PolicyNever RetentionPolicy = "never"
	// PolicyAll deletes only when every acting sink succeeded.
	PolicyAll RetentionPolicy = "all"
	// PolicyAny deletes when at least one acting sink succeeded.
	PolicyAny RetentionPolicy = "any"
)

// ParseRetentionPolicy validates a policy name.
func ParseRetentionPolicy(s string) (RetentionPolicy, error) {
	switch p := RetentionPolicy(s); p {
	case PolicyNever, PolicyAll, PolicyAny:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// ShouldDelete applies a retention policy to the outcomes of one run.
// Outcomes that neither processed anything nor failed (inactive, rate limited,
// empty batch) are ignored. When no outcome acted, deletion is allowed.
func ShouldDelete(outcomes []Outcome, policy RetentionPolicy) bool {
	if policy == PolicyNever {
		return false
	}

	acted := make([]Outcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Acted() {
			acted = append(acted, o)
		}
	}
	if len(acted) == 0 {
		return true
	}

	switch policy {
	case PolicyAll:
		for _, o := range acted {
			if !o.Success {
				return false
			}
		}
		return true
	case PolicyAny:
		for _, o := range acted {
			if o.Success {
				return true
			}
		}
		return false
	case PolicyNever:
		return false
	default:
		return false
	}
}
