package domain

// ResolvedConfig is the fully expanded, reference-free, validated workflow
// definition for one team. It is immutable once built; a config edit produces
// a new version. The expanded transition table is computed once at build time.
type ResolvedConfig struct {
	Team    string `json:"team"`
	Version int    `json:"version"`

	Stages           []Stage           `json:"stages"`
	Statuses         []Status          `json:"statuses"`
	Transitions      []Transition      `json:"transitions"`
	ComplexityLevels []ComplexityLevel `json:"complexity_levels,omitempty"`
	Rules            []AutomationRule  `json:"automation_rules,omitempty"`

	stageIndex  map[string]int
	statusIndex map[string]int
	table       map[string]map[string]bool
	initial     string
}

// NewResolvedConfig builds the immutable runtime view of a merged, validated
// document: id indexes, the expanded edge table and the initial status.
// Structural soundness (every reference resolvable) is the validator's job;
// this constructor assumes it.
func NewResolvedConfig(team string, version int, stages []Stage, statuses []Status,
	transitions []Transition, levels []ComplexityLevel, rules []AutomationRule) *ResolvedConfig {

	rc := &ResolvedConfig{
		Team:             team,
		Version:          version,
		Stages:           stages,
		Statuses:         statuses,
		Transitions:      transitions,
		ComplexityLevels: levels,
		Rules:            rules,
		stageIndex:       make(map[string]int, len(stages)),
		statusIndex:      make(map[string]int, len(statuses)),
	}

	for i, s := range stages {
		rc.stageIndex[s.ID] = i
	}

	ids := make([]string, len(statuses))
	for i, s := range statuses {
		rc.statusIndex[s.ID] = i
		ids[i] = s.ID
		if s.Initial && rc.initial == "" {
			rc.initial = s.ID
		}
	}
	if rc.initial == "" && len(statuses) > 0 {
		rc.initial = statuses[0].ID
	}

	rc.table = ExpandEdges(transitions, ids)
	return rc
}

// Status looks up a status by id.
func (rc *ResolvedConfig) Status(id string) (Status, bool) {
	i, ok := rc.statusIndex[id]
	if !ok {
		return Status{}, false
	}
	return rc.Statuses[i], true
}

// Stage looks up a stage by id.
func (rc *ResolvedConfig) Stage(id string) (Stage, bool) {
	i, ok := rc.stageIndex[id]
	if !ok {
		return Stage{}, false
	}
	return rc.Stages[i], true
}

// StageOf resolves the stage a status belongs to.
func (rc *ResolvedConfig) StageOf(statusID string) (Stage, bool) {
	s, ok := rc.Status(statusID)
	if !ok {
		return Stage{}, false
	}
	return rc.Stage(s.Stage)
}

// CanTransition reports whether from->to is a legal edge.
func (rc *ResolvedConfig) CanTransition(from, to string) bool {
	return rc.table[from][to]
}

// Destinations returns the legal destinations from a status, in declaration
// order of the status list.
func (rc *ResolvedConfig) Destinations(from string) []string {
	dests := rc.table[from]
	if len(dests) == 0 {
		return nil
	}
	out := make([]string, 0, len(dests))
	for _, s := range rc.Statuses {
		if dests[s.ID] {
			out = append(out, s.ID)
		}
	}
	return out
}

// InitialStatus returns the designated start status.
func (rc *ResolvedConfig) InitialStatus() string {
	return rc.initial
}

// EntryStatus returns the first declared status of a stage, the status an
// item lands on when a skip rewrite targets the stage.
func (rc *ResolvedConfig) EntryStatus(stageID string) (string, bool) {
	for _, s := range rc.Statuses {
		if s.Stage == stageID {
			return s.ID, true
		}
	}
	return "", false
}

// StageAfter returns the stage declared directly after stageID.
func (rc *ResolvedConfig) StageAfter(stageID string) (Stage, bool) {
	i, ok := rc.stageIndex[stageID]
	if !ok || i+1 >= len(rc.Stages) {
		return Stage{}, false
	}
	return rc.Stages[i+1], true
}

// Level looks up a complexity level by id.
func (rc *ResolvedConfig) Level(id string) (ComplexityLevel, bool) {
	for _, l := range rc.ComplexityLevels {
		if l.ID == id {
			return l, true
		}
	}
	return ComplexityLevel{}, false
}

// LevelForWeight returns the first declared level whose range contains the
// weight.
func (rc *ResolvedConfig) LevelForWeight(weight int) (ComplexityLevel, bool) {
	for _, l := range rc.ComplexityLevels {
		if l.Matches(weight) {
			return l, true
		}
	}
	return ComplexityLevel{}, false
}
