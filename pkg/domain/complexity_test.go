package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComplexityMatches(t *testing.T) {
	tests := []struct {
		name   string
		level  ComplexityLevel
		weight int
		want   bool
	}{
		{"inside range", ComplexityLevel{MinWeight: 3, MaxWeight: 8}, 5, true},
		{"below range", ComplexityLevel{MinWeight: 3, MaxWeight: 8}, 2, false},
		{"at upper bound", ComplexityLevel{MinWeight: 3, MaxWeight: 8}, 8, true},
		{"above range", ComplexityLevel{MinWeight: 3, MaxWeight: 8}, 9, false},
		{"zero max is unbounded", ComplexityLevel{MinWeight: 9}, 100, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.level.Matches(tt.weight))
		})
	}
}

func TestComplexitySkips(t *testing.T) {
	level := ComplexityLevel{
		SkipStages:     []string{"design", "review"},
		RequiredStages: []string{"review"},
	}

	assert.True(t, level.Skips("design"))
	assert.False(t, level.Skips("review"), "required wins over skip")
	assert.False(t, level.Skips("build"))
}

func TestGateFor(t *testing.T) {
	level := ComplexityLevel{
		RequireApproval: []ApprovalGate{{Stage: "review", Roles: []string{"tech-lead"}}},
	}

	gate, ok := level.GateFor("review")
	assert.True(t, ok)
	assert.Equal(t, []string{"tech-lead"}, gate.Roles)

	_, ok = level.GateFor("build")
	assert.False(t, ok)
}
