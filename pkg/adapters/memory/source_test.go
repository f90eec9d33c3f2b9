package memory_test

import (
	"context"
	"testing"

	"github.com/stagecoach-io/stagecoach/pkg/adapters/memory"
	"github.com/stagecoach-io/stagecoach/pkg/domain"
	"github.com/stagecoach-io/stagecoach/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySource(t *testing.T) {
	ctx := context.Background()
	source := memory.NewSource()

	source.PutTeam("platform", &schema.Document{Team: "platform"})
	source.PutFragment("terminal", &schema.Document{})

	doc, err := source.Team(ctx, "platform")
	require.NoError(t, err)
	assert.Equal(t, "platform", doc.Team)

	_, err = source.Team(ctx, "ghosts")
	assert.ErrorIs(t, err, domain.ErrTeamNotFound)

	_, err = source.Fragment(ctx, "terminal")
	assert.NoError(t, err)

	_, err = source.Fragment(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrTeamNotFound)

	teams, err := source.Teams(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"platform"}, teams)
}
