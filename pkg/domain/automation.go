package domain

import "time"

// TriggerKind categorizes what fires an automation rule.
type TriggerKind string

const (
	// TriggerTransition matches TransitionEvents by from/to status.
	TriggerTransition TriggerKind = "transition"
	// TriggerEvent matches ExternalEvents by event type.
	TriggerEvent TriggerKind = "event"
)

// Well-known external event types fed by the host's clock/event source.
const (
	EventMetricsHealthy = "metrics_healthy"
	EventAlertFired     = "alert_fired"
	EventPRCreated      = "pr_created"
	EventPRMerged       = "pr_merged"
	EventBlocked        = "blocked"

	// EventMetricThreshold is emitted by the metrics collector when a
	// tracked metric crosses a configured threshold.
	EventMetricThreshold = "metric_threshold"
)

// Trigger describes what an AutomationRule reacts to.
type Trigger struct {
	Kind TriggerKind `json:"kind"`

	// For TriggerTransition: optional from/to status filters.
	// Empty means "any".
	From []string `json:"from,omitempty"`
	To   []string `json:"to,omitempty"`

	// For TriggerEvent: the external event type to match.
	Event string `json:"event,omitempty"`
}

// MatchesTransition reports whether the trigger matches a from->to edge.
func (t Trigger) MatchesTransition(from, to string) bool {
	if t.Kind != TriggerTransition {
		return false
	}
	if len(t.From) > 0 && !contains(t.From, from) {
		return false
	}
	if len(t.To) > 0 && !contains(t.To, to) {
		return false
	}
	return true
}

// MatchesEvent reports whether the trigger matches an external event type.
func (t Trigger) MatchesEvent(eventType string) bool {
	return t.Kind == TriggerEvent && t.Event == eventType
}

// ActionType identifies an automation action.
type ActionType string

const (
	ActionAssign         ActionType = "assign"
	ActionCreateNode     ActionType = "create_node"
	ActionCreateDocument ActionType = "create_document"
	ActionNotify         ActionType = "notify"
	ActionRollback       ActionType = "rollback"
	ActionAutoTransition ActionType = "auto_transition"
)

// Action is one step of a rule's action list. Params are decoded by the
// executor into the action-specific shape.
type Action struct {
	Type   ActionType     `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// AutomationRule binds a trigger to an ordered action list. A non-zero
// Duration makes the rule deferred: the trigger condition must hold
// continuously for that span before the actions fire.
type AutomationRule struct {
	ID      string  `json:"id"`
	Trigger Trigger `json:"trigger"`

	// Duration gates the rule. Zero means immediate.
	Duration time.Duration `json:"duration,omitempty"`

	// BreakOn lists external event types that break a deferred rule's
	// condition while armed (e.g. alert_fired during a rollout).
	BreakOn []string `json:"break_on,omitempty"`

	Actions []Action `json:"actions"`

	// OnBreak fires instead of Actions when an armed watch observes a
	// condition break.
	OnBreak *Action `json:"on_break,omitempty"`
}

// Deferred reports whether the rule is duration-gated.
func (r AutomationRule) Deferred() bool {
	return r.Duration > 0
}

// BreaksOn reports whether an external event type breaks the rule's armed
// condition.
func (r AutomationRule) BreaksOn(eventType string) bool {
	return contains(r.BreakOn, eventType)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
