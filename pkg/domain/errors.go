package domain

import "errors"

// ErrIllegalTransition is returned when the requested edge is not in the
// item's transition table.
var ErrIllegalTransition = errors.New("illegal transition")

// ErrApprovalPending is returned when the departing stage requires sign-offs
// that have not all been recorded.
var ErrApprovalPending = errors.New("approval pending")

// ErrCriteriaPending is returned when the departing stage declares exit
// criteria whose satisfaction flags are not all set.
var ErrCriteriaPending = errors.New("exit criteria pending")

// ErrConflict is returned when a concurrent transition for the same item is
// already in flight. Callers decide the retry policy.
var ErrConflict = errors.New("concurrent transition in flight")

// ErrItemNotFound is returned when an item ID cannot be found in the store.
var ErrItemNotFound = errors.New("work item not found")

// ErrTeamNotFound is returned when no ResolvedConfig is registered for a team.
var ErrTeamNotFound = errors.New("team not found")

// ErrVersionMismatch is returned by stores when an optimistic save observes
// a newer stored version than the one read.
var ErrVersionMismatch = errors.New("item version mismatch")
