package domain

import "fmt"

// Status is the application lifecycle state of a record.
type Status string

const (
	StatusDiscovered  Status = "DISCOVERED"
	StatusFilteredOut Status = "FILTERED_OUT"
	StatusEligible    Status = "ELIGIBLE"
	StatusTailoring   Status = "TAILORING"
	StatusTailored    Status = "TAILORED"
	StatusGenerated   Status = "GENERATED"
	StatusSubmitted   Status = "SUBMITTED"
	StatusFailed      Status = "FAILED"
)

// transitions is the lifecycle graph. Statuses only move forward along it;
// FAILED -> ELIGIBLE exists solely for the explicit retry operation.
var transitions = map[Status][]Status{
	StatusDiscovered:  {StatusEligible, StatusFilteredOut},
	StatusFilteredOut: {StatusEligible}, // criteria change may promote a previously filtered row
	StatusEligible:    {StatusTailoring, StatusFailed},
	StatusTailoring:   {StatusTailored, StatusFailed},
	StatusTailored:    {StatusGenerated, StatusFailed},
	StatusGenerated:   {StatusSubmitted, StatusFailed},
	StatusSubmitted:   {},
	StatusFailed:      {StatusEligible},
}

// CanTransition reports whether moving from s to next follows the
// lifecycle graph.
func (s Status) CanTransition(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Transition mutates the record status after validating the move.
func (r *ApplicationRecord) Transition(next Status) error {
	if !r.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, next)
	}
	r.Status = next
	return nil
}
