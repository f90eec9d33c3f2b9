package schema

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Document is a raw team configuration or shared fragment. List entries may
// be `$ref` references to fragments, which the resolver splices in-place.
type Document struct {
	Team    string `yaml:"team,omitempty"`
	Extends string `yaml:"extends,omitempty"`

	Stages           []StageDef      `yaml:"stages,omitempty"`
	Statuses         []StatusDef     `yaml:"statuses,omitempty"`
	Transitions      []TransitionDef `yaml:"transitions,omitempty"`
	ComplexityLevels []ComplexityDef `yaml:"complexity_levels,omitempty"`
	AutomationRules  []RuleDef       `yaml:"automation_rules,omitempty"`
}

// StageDef declares a stage, or references a fragment when Ref is set.
type StageDef struct {
	Ref string `yaml:"$ref,omitempty"`

	ID            string   `yaml:"id,omitempty"`
	Name          string   `yaml:"name,omitempty"`
	Required      bool     `yaml:"required,omitempty"`
	Terminal      bool     `yaml:"terminal,omitempty"`
	SkipWhen      string   `yaml:"skip_when,omitempty"`
	EntryCriteria []string `yaml:"entry_criteria,omitempty"`
	ExitCriteria  []string `yaml:"exit_criteria,omitempty"`
}

// StatusDef declares a status, or references a fragment when Ref is set.
type StatusDef struct {
	Ref string `yaml:"$ref,omitempty"`

	ID          string `yaml:"id,omitempty"`
	Name        string `yaml:"name,omitempty"`
	Stage       string `yaml:"stage,omitempty"`
	Description string `yaml:"description,omitempty"`
	Initial     bool   `yaml:"initial,omitempty"`
}

// TransitionDef declares an edge set. The optional ID exists only so child
// documents can override a parent's transition wholesale; unnamed transitions
// are append-only.
type TransitionDef struct {
	Ref string `yaml:"$ref,omitempty"`

	ID     string   `yaml:"id,omitempty"`
	From   FlexList `yaml:"from,omitempty"`
	To     FlexList `yaml:"to,omitempty"`
	Except []string `yaml:"except,omitempty"`
}

// ComplexityDef declares a complexity level.
type ComplexityDef struct {
	Ref string `yaml:"$ref,omitempty"`

	ID              string        `yaml:"id,omitempty"`
	MinWeight       int           `yaml:"min_weight,omitempty"`
	MaxWeight       int           `yaml:"max_weight,omitempty"`
	SkipStages      []string      `yaml:"skip_stages,omitempty"`
	RequiredStages  []string      `yaml:"required_stages,omitempty"`
	RequireApproval []ApprovalDef `yaml:"require_approval,omitempty"`
}

// ApprovalDef pairs a stage with the roles that must sign off before exit.
type ApprovalDef struct {
	Stage string   `yaml:"stage"`
	Roles []string `yaml:"roles"`
}

// RuleDef declares an automation rule.
type RuleDef struct {
	Ref string `yaml:"$ref,omitempty"`

	ID       string      `yaml:"id,omitempty"`
	Trigger  TriggerDef  `yaml:"trigger,omitempty"`
	Duration Duration    `yaml:"duration,omitempty"`
	BreakOn  []string    `yaml:"break_on,omitempty"`
	Actions  []ActionDef `yaml:"actions,omitempty"`
	OnBreak  *ActionDef  `yaml:"on_break,omitempty"`
}

// TriggerDef mirrors domain.Trigger in YAML form.
type TriggerDef struct {
	Kind  string   `yaml:"kind"`
	From  FlexList `yaml:"from,omitempty"`
	To    FlexList `yaml:"to,omitempty"`
	Event string   `yaml:"event,omitempty"`
}

// ActionDef is one action of a rule's ordered list.
type ActionDef struct {
	Type   string         `yaml:"type"`
	Params map[string]any `yaml:"params,omitempty"`
}

// IsRef reports whether a def entry is a fragment reference.
func (d StageDef) IsRef() bool      { return d.Ref != "" }
func (d StatusDef) IsRef() bool     { return d.Ref != "" }
func (d TransitionDef) IsRef() bool { return d.Ref != "" }
func (d ComplexityDef) IsRef() bool { return d.Ref != "" }
func (d RuleDef) IsRef() bool       { return d.Ref != "" }

// FlexList accepts either a single scalar or a sequence in YAML, so authors
// can write `from: open` as well as `from: [open, blocked]`.
type FlexList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *FlexList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*f = FlexList{s}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*f = FlexList(list)
		return nil
	default:
		return fmt.Errorf("expected scalar or sequence, got yaml kind %d", value.Kind)
	}
}

// Duration parses human-readable spans ("90s", "1h") from YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }
