// Package approval computes stage-exit gate satisfaction. It is a pure
// function of the complexity level, the stage, and the recorded sign-offs;
// recording itself happens on the WorkItem through the Transition Engine.
package approval

import (
	"time"

	"github.com/stagecoach-io/stagecoach/pkg/domain"
)

// Result is the outcome of evaluating a gate.
type Result struct {
	// Required is false when the level declares no gate for the stage.
	Required bool
	// Satisfied is true when every required role has a recorded sign-off.
	Satisfied bool
	// Missing lists the roles still lacking a sign-off, in gate order.
	Missing []string
}

// Evaluate checks an item's recorded sign-offs against the approval gate the
// complexity level declares for a stage.
func Evaluate(level domain.ComplexityLevel, stageID string, item *domain.WorkItem) Result {
	gate, ok := level.GateFor(stageID)
	if !ok {
		return Result{Required: false, Satisfied: true}
	}

	signed := item.RolesSignedOff(stageID)
	var missing []string
	for _, role := range gate.Roles {
		if !signed[role] {
			missing = append(missing, role)
		}
	}

	return Result{
		Required:  true,
		Satisfied: len(missing) == 0,
		Missing:   missing,
	}
}

// Record appends a sign-off to the item, keyed by (stage, role). Recording a
// role that already signed off is a no-op, not an error; the approver and
// timestamp of the first recording win.
func Record(item *domain.WorkItem, stageID, role, approver string, at time.Time) bool {
	if item.HasSignoff(stageID, role) {
		return false
	}
	item.Signoffs = append(item.Signoffs, domain.Signoff{
		Stage:    stageID,
		Role:     role,
		Approver: approver,
		At:       at,
	})
	return true
}
