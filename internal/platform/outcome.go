package platform

import "strings"

// Outcome is the normalized per-record result of a submit operation.
type Outcome int

// Per-record outcomes. The platform reports partial failure in free text, so
// everything that is not recognized maps to OutcomeUnrecognized.
const (
	OutcomeSuccess Outcome = iota
	OutcomeDuplicate
	OutcomeValidationFailed
	OutcomeNoSlot
	OutcomeUserNotFound
	OutcomeAlreadyEnrolled
	OutcomeUnrecognized
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeDuplicate:
		return "duplicate-exists"
	case OutcomeValidationFailed:
		return "validation-failed"
	case OutcomeNoSlot:
		return "no-available-slot"
	case OutcomeUserNotFound:
		return "user-not-found"
	case OutcomeAlreadyEnrolled:
		return "already-enrolled"
	default:
		return "unrecognized"
	}
}

// outcomePhrases maps known error phrases to outcomes. Matching is a
// case-insensitive substring test, in declaration order.
var outcomePhrases = []struct {
	phrase  string
	outcome Outcome
}{
	{"user already exist", OutcomeDuplicate},
	{"duplicate user", OutcomeDuplicate},
	{"enrollment already exists", OutcomeAlreadyEnrolled},
	{"no available order", OutcomeNoSlot},
	{"user doesn't exist", OutcomeUserNotFound},
	{"validation", OutcomeValidationFailed},
}

// classify maps a free-text platform message to an outcome.
func classify(message string) Outcome {
	lower := strings.ToLower(message)
	for _, entry := range outcomePhrases {
		if strings.Contains(lower, entry.phrase) {
			return entry.outcome
		}
	}
	return OutcomeUnrecognized
}

// Result pairs one submitted record with its normalized outcome.
type Result struct {
	ID      string
	Outcome Outcome
	Message string
}

// Succeeded reports whether the record was applied, counting absorbed
// already-enrolled responses as applied.
func (r Result) Succeeded() bool {
	return r.Outcome == OutcomeSuccess || r.Outcome == OutcomeAlreadyEnrolled
}
