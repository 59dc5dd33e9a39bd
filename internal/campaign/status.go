package campaign

import (
	"fmt"
	"slices"
)

// Status represents a campaign lifecycle state.
type Status string

const (
	Pending    Status = "pending"
	Scheduled  Status = "scheduled"
	InProgress Status = "in-progress"
	Paused     Status = "paused"
	Completed  Status = "completed"
	Failed     Status = "failed"
	Cancelled  Status = "cancelled"
)

// validTransitions defines allowed status transitions. Terminal statuses
// (completed, failed, cancelled) have no outgoing edges; completed and
// failed are only reachable from in-progress, while any non-terminal
// campaign can be cancelled. in-progress back to pending or scheduled
// is the compensating edge used when the companion rejects a dispatch
// after the store was already marked in-progress.
var validTransitions = map[Status][]Status{
	Pending:    {InProgress, Cancelled},
	Scheduled:  {InProgress, Pending, Cancelled},
	InProgress: {Paused, Completed, Failed, Cancelled, Pending, Scheduled},
	Paused:     {InProgress, Cancelled},
	Completed:  {},
	Failed:     {},
	Cancelled:  {},
}

// IsTerminal reports whether s is a terminal status.
func (s Status) IsTerminal() bool {
	return s == Completed || s == Failed || s == Cancelled
}

// CanTransition reports whether from → to is a legal transition.
func CanTransition(from, to Status) bool {
	return slices.Contains(validTransitions[from], to)
}

// CheckTransition returns an error when from → to is not a legal transition.
func CheckTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid campaign transition from %s to %s", from, to)
	}
	return nil
}

// ParseStatus validates a raw status string from the store or the API.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if _, ok := validTransitions[s]; !ok {
		return "", fmt.Errorf("unknown campaign status %q", raw)
	}
	return s, nil
}
