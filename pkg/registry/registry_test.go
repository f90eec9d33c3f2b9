package registry

import (
	"testing"

	"github.com/stagecoach-io/stagecoach/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cfg(team string, version int) *domain.ResolvedConfig {
	return domain.NewResolvedConfig(team, version,
		[]domain.Stage{{ID: "build"}},
		[]domain.Status{{ID: "todo", Stage: "build", Initial: true}},
		nil, nil, nil)
}

func TestActivateAndLookup(t *testing.T) {
	r := New()

	_, ok := r.Active("platform")
	assert.False(t, ok)

	r.Activate(cfg("platform", 1))
	r.Activate(cfg("platform", 2))

	active, ok := r.Active("platform")
	require.True(t, ok)
	assert.Equal(t, 2, active.Version)

	old, ok := r.Version("platform", 1)
	require.True(t, ok, "superseded versions stay retrievable")
	assert.Equal(t, 1, old.Version)

	_, ok = r.Version("platform", 9)
	assert.False(t, ok)
}

func TestNextVersion(t *testing.T) {
	r := New()
	assert.Equal(t, 1, r.NextVersion("platform"))

	r.Activate(cfg("platform", 1))
	r.Activate(cfg("platform", 2))
	assert.Equal(t, 3, r.NextVersion("platform"))
	assert.Equal(t, 1, r.NextVersion("other"), "versions are per team")
}

func TestTeams(t *testing.T) {
	r := New()
	r.Activate(cfg("platform", 1))
	r.Activate(cfg("mobile", 1))

	assert.ElementsMatch(t, []string{"platform", "mobile"}, r.Teams())
}
