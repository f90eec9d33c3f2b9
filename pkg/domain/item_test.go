package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkItemClone(t *testing.T) {
	exited := time.Now().UTC()
	item := &WorkItem{
		ID:         "task-1",
		Attributes: map[string]string{"kind": "feature"},
		Criteria:   map[string]bool{"ci_green": true},
		Signoffs:   []Signoff{{Stage: "review", Role: "tech-lead"}},
		History: []StatusInterval{
			{Status: "open", Stage: "build", ExitedAt: &exited},
			{Status: "doing", Stage: "build"},
		},
	}

	c := item.Clone()
	c.Attributes["kind"] = "bug"
	c.Criteria["ci_green"] = false
	c.Signoffs[0].Role = "qa"
	*c.History[0].ExitedAt = time.Time{}

	assert.Equal(t, "feature", item.Attributes["kind"])
	assert.True(t, item.Criteria["ci_green"])
	assert.Equal(t, "tech-lead", item.Signoffs[0].Role)
	assert.Equal(t, exited, *item.History[0].ExitedAt)
}

func TestSignoffLookups(t *testing.T) {
	item := &WorkItem{
		Signoffs: []Signoff{
			{Stage: "review", Role: "tech-lead"},
			{Stage: "review", Role: "qa"},
			{Stage: "deploy", Role: "sre"},
		},
	}

	assert.True(t, item.HasSignoff("review", "qa"))
	assert.False(t, item.HasSignoff("review", "sre"))

	roles := item.RolesSignedOff("review")
	require.Len(t, roles, 2)
	assert.True(t, roles["tech-lead"])
}

func TestVisitedStage(t *testing.T) {
	item := &WorkItem{History: []StatusInterval{{Stage: "build"}, {Stage: "review"}}}
	assert.True(t, item.VisitedStage("build"))
	assert.False(t, item.VisitedStage("deploy"))
}
