package domain

import "time"

// TransitionEvent is emitted synchronously after a transition is applied.
type TransitionEvent struct {
	Item          string    `json:"item"`
	Team          string    `json:"team"`
	ConfigVersion int       `json:"config_version"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	FromStage     string    `json:"from_stage"`
	ToStage       string    `json:"to_stage"`
	Actor         string    `json:"actor,omitempty"`
	At            time.Time `json:"at"`
}

// ExternalEvent is an input from the host's clock/event source: metric
// samples, webhook notifications, alerts. Item and Team scope the event when
// known; an empty Item broadcasts to every armed watch of the matching type.
type ExternalEvent struct {
	Type    string         `json:"type"`
	Item    string         `json:"item,omitempty"`
	Team    string         `json:"team,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	At      time.Time      `json:"at"`
}
