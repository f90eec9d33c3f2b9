package domain

import "time"

// StatusInterval is one closed or open entry of an item's history log.
type StatusInterval struct {
	Status    string     `json:"status"`
	Stage     string     `json:"stage"`
	EnteredAt time.Time  `json:"entered_at"`
	ExitedAt  *time.Time `json:"exited_at,omitempty"`
}

// Signoff records an approval by an identified approver acting in a role,
// scoped to one stage of one item.
type Signoff struct {
	Stage    string    `json:"stage"`
	Role     string    `json:"role"`
	Approver string    `json:"approver"`
	At       time.Time `json:"at"`
}

// WorkItem is a unit of work moving through a team's workflow. The engine
// only mutates its status, history, sign-off and criteria fields; creation
// and ownership belong to the host system.
type WorkItem struct {
	ID   string `json:"id"`
	Team string `json:"team"`

	// ConfigVersion pins the ResolvedConfig the item was created under.
	// Later config edits do not affect the item until it is migrated.
	ConfigVersion int `json:"config_version"`

	Status     string `json:"status"`
	Complexity string `json:"complexity,omitempty"`
	Assignee   string `json:"assignee,omitempty"`

	// Attributes feed stage skip-condition predicates.
	Attributes map[string]string `json:"attributes,omitempty"`

	Signoffs []Signoff `json:"signoffs,omitempty"`

	// Criteria holds externally-evaluated checklist results keyed by the
	// criterion string.
	Criteria map[string]bool `json:"criteria,omitempty"`

	History []StatusInterval `json:"history"`

	// Version supports optimistic concurrency in stores: a save fails when
	// the stored version no longer matches the version read.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasSignoff reports whether a role has signed off the given stage.
func (w *WorkItem) HasSignoff(stage, role string) bool {
	for _, s := range w.Signoffs {
		if s.Stage == stage && s.Role == role {
			return true
		}
	}
	return false
}

// RolesSignedOff returns the set of roles recorded for a stage.
func (w *WorkItem) RolesSignedOff(stage string) map[string]bool {
	roles := make(map[string]bool)
	for _, s := range w.Signoffs {
		if s.Stage == stage {
			roles[s.Role] = true
		}
	}
	return roles
}

// VisitedStage reports whether the item's history contains the stage.
func (w *WorkItem) VisitedStage(stageID string) bool {
	for _, h := range w.History {
		if h.Stage == stageID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so stores and callers cannot alias engine state.
func (w *WorkItem) Clone() *WorkItem {
	c := *w
	c.Attributes = make(map[string]string, len(w.Attributes))
	for k, v := range w.Attributes {
		c.Attributes[k] = v
	}
	c.Criteria = make(map[string]bool, len(w.Criteria))
	for k, v := range w.Criteria {
		c.Criteria[k] = v
	}
	c.Signoffs = append([]Signoff(nil), w.Signoffs...)
	c.History = make([]StatusInterval, len(w.History))
	for i, h := range w.History {
		c.History[i] = h
		if h.ExitedAt != nil {
			t := *h.ExitedAt
			c.History[i].ExitedAt = &t
		}
	}
	return &c
}
