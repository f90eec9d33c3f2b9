package approval

import (
	"testing"
	"time"

	"github.com/stagecoach-io/stagecoach/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var gatedLevel = domain.ComplexityLevel{
	ID: "high",
	RequireApproval: []domain.ApprovalGate{
		{Stage: "review", Roles: []string{"tech-lead", "qa"}},
	},
}

func TestEvaluateNoGate(t *testing.T) {
	result := Evaluate(gatedLevel, "build", &domain.WorkItem{})
	assert.False(t, result.Required)
	assert.True(t, result.Satisfied)
}

func TestEvaluateMissingRoles(t *testing.T) {
	item := &domain.WorkItem{}
	result := Evaluate(gatedLevel, "review", item)
	assert.True(t, result.Required)
	assert.False(t, result.Satisfied)
	assert.Equal(t, []string{"tech-lead", "qa"}, result.Missing)

	Record(item, "review", "tech-lead", "alice", time.Now())
	result = Evaluate(gatedLevel, "review", item)
	assert.False(t, result.Satisfied)
	assert.Equal(t, []string{"qa"}, result.Missing)

	Record(item, "review", "qa", "bob", time.Now())
	result = Evaluate(gatedLevel, "review", item)
	assert.True(t, result.Satisfied)
	assert.Empty(t, result.Missing)
}

func TestEvaluateIgnoresOtherStageSignoffs(t *testing.T) {
	item := &domain.WorkItem{}
	Record(item, "deploy", "tech-lead", "alice", time.Now())

	result := Evaluate(gatedLevel, "review", item)
	assert.False(t, result.Satisfied, "signoffs are scoped per stage")
}

func TestRecordIsIdempotent(t *testing.T) {
	item := &domain.WorkItem{}
	first := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	assert.True(t, Record(item, "review", "tech-lead", "alice", first))
	assert.False(t, Record(item, "review", "tech-lead", "mallory", first.Add(time.Hour)))

	require.Len(t, item.Signoffs, 1)
	assert.Equal(t, "alice", item.Signoffs[0].Approver, "first recording wins")
	assert.Equal(t, first, item.Signoffs[0].At)
}
