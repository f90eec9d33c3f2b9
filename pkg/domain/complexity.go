package domain

// ApprovalGate requires sign-off from a set of roles before a stage may be
// exited.
type ApprovalGate struct {
	Stage string   `json:"stage"`
	Roles []string `json:"roles"`
}

// ComplexityLevel tunes the workflow per item: low-complexity items may skip
// stages, high-complexity items may require extra stages and approvals.
type ComplexityLevel struct {
	ID        string `json:"id"`
	MinWeight int    `json:"min_weight"`
	MaxWeight int    `json:"max_weight"`

	SkipStages     []string `json:"skip_stages,omitempty"`
	RequiredStages []string `json:"required_stages,omitempty"`

	RequireApproval []ApprovalGate `json:"require_approval,omitempty"`
}

// Matches reports whether a weight falls inside the level's ordinal range.
// A zero MaxWeight means "no upper bound".
func (l ComplexityLevel) Matches(weight int) bool {
	if weight < l.MinWeight {
		return false
	}
	if l.MaxWeight > 0 && weight > l.MaxWeight {
		return false
	}
	return true
}

// Skips reports whether the level marks a stage as skippable. A stage listed
// in RequiredStages is never skippable, regardless of SkipStages.
func (l ComplexityLevel) Skips(stageID string) bool {
	for _, s := range l.RequiredStages {
		if s == stageID {
			return false
		}
	}
	for _, s := range l.SkipStages {
		if s == stageID {
			return true
		}
	}
	return false
}

// GateFor returns the approval gate declared for a stage, if any.
func (l ComplexityLevel) GateFor(stageID string) (ApprovalGate, bool) {
	for _, g := range l.RequireApproval {
		if g.Stage == stageID {
			return g, true
		}
	}
	return ApprovalGate{}, false
}
