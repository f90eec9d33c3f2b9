package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocument(t *testing.T) {
	doc, err := Parse([]byte(`
team: platform
extends: org-default
stages:
  - id: build
    name: Build
    required: true
  - $ref: review-stage
statuses:
  - id: todo
    stage: build
    initial: true
transitions:
  - from: todo
    to: in_progress
  - id: escalate
    from: "*"
    to: [blocked]
    except: [done]
complexity_levels:
  - id: high
    min_weight: 8
    require_approval:
      - stage: review
        roles: [tech-lead, qa]
automation_rules:
  - id: canary-bake
    trigger:
      kind: transition
      to: canary
    duration: 1h
    break_on: [alert_fired]
    actions:
      - type: auto_transition
        params:
          to: deployed
    on_break:
      type: rollback
`))
	require.NoError(t, err)

	assert.Equal(t, "platform", doc.Team)
	assert.Equal(t, "org-default", doc.Extends)

	require.Len(t, doc.Stages, 2)
	assert.True(t, doc.Stages[0].Required)
	assert.True(t, doc.Stages[1].IsRef())
	assert.Equal(t, "review-stage", doc.Stages[1].Ref)

	require.Len(t, doc.Transitions, 2)
	assert.Equal(t, FlexList{"todo"}, doc.Transitions[0].From, "scalar from becomes a one-element list")
	assert.Equal(t, FlexList{"in_progress"}, doc.Transitions[0].To)
	assert.Equal(t, "escalate", doc.Transitions[1].ID)
	assert.Equal(t, FlexList{"*"}, doc.Transitions[1].From)
	assert.Equal(t, []string{"done"}, doc.Transitions[1].Except)

	require.Len(t, doc.ComplexityLevels, 1)
	require.Len(t, doc.ComplexityLevels[0].RequireApproval, 1)
	assert.Equal(t, []string{"tech-lead", "qa"}, doc.ComplexityLevels[0].RequireApproval[0].Roles)

	require.Len(t, doc.AutomationRules, 1)
	rule := doc.AutomationRules[0]
	assert.Equal(t, time.Hour, rule.Duration.Std())
	assert.Equal(t, []string{"alert_fired"}, rule.BreakOn)
	require.NotNil(t, rule.OnBreak)
	assert.Equal(t, "rollback", rule.OnBreak.Type)
}

func TestParseRejectsBadDuration(t *testing.T) {
	_, err := Parse([]byte(`
automation_rules:
  - id: r
    duration: soon
`))
	assert.Error(t, err)
}

func TestRuleDomainConversion(t *testing.T) {
	doc, err := Parse([]byte(`
automation_rules:
  - id: assign-review
    trigger:
      kind: transition
      from: in_progress
      to: in_review
    actions:
      - type: assign
        params:
          assignee: reviewer-bot
`))
	require.NoError(t, err)
	require.Len(t, doc.AutomationRules, 1)

	rule := doc.AutomationRules[0].Domain()
	assert.True(t, rule.Trigger.MatchesTransition("in_progress", "in_review"))
	assert.False(t, rule.Trigger.MatchesTransition("todo", "in_review"))
	assert.False(t, rule.Deferred())
	require.Len(t, rule.Actions, 1)
	assert.Equal(t, "reviewer-bot", rule.Actions[0].Params["assignee"])
}
