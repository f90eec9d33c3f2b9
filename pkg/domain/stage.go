package domain

// Stage represents a coarse phase of the lifecycle. Statuses nest under it.
type Stage struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Required bool   `json:"required,omitempty"`
	Terminal bool   `json:"terminal,omitempty"`

	// SkipWhen is an optional attribute predicate ("key=value" or
	// "key!=value"). When it evaluates true for an item, the stage may be
	// skipped regardless of complexity level.
	SkipWhen string `json:"skip_when,omitempty"`

	// EntryCriteria and ExitCriteria are free-form checklist strings.
	// Satisfaction is evaluated externally; the engine only tracks the
	// recorded booleans on the WorkItem.
	EntryCriteria []string `json:"entry_criteria,omitempty"`
	ExitCriteria  []string `json:"exit_criteria,omitempty"`
}

// Status is a concrete state an item occupies. It belongs to exactly one Stage.
type Status struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Stage       string `json:"stage"`
	Description string `json:"description,omitempty"`

	// Initial marks the designated start status of the workflow.
	// At most one status should carry it; the first declared status is the
	// fallback when none does.
	Initial bool `json:"initial,omitempty"`
}
