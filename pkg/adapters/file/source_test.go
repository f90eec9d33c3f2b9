package file_test

import (
	"context"
	"testing"

	"github.com/stagecoach-io/stagecoach/internal/testutils"
	"github.com/stagecoach-io/stagecoach/pkg/adapters/file"
	"github.com/stagecoach-io/stagecoach/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSource(t *testing.T) {
	ctx := context.Background()
	dir := testutils.SetupConfigDir(t,
		map[string]string{"platform": testutils.MinimalTeamYAML},
		map[string]string{"terminal": "stages:\n  - id: done\n    terminal: true\n"},
	)

	source, err := file.NewSource(dir)
	require.NoError(t, err)

	doc, err := source.Team(ctx, "platform")
	require.NoError(t, err)
	assert.Equal(t, "platform", doc.Team)
	assert.Len(t, doc.Stages, 3)

	frag, err := source.Fragment(ctx, "terminal")
	require.NoError(t, err)
	require.Len(t, frag.Stages, 1)
	assert.True(t, frag.Stages[0].Terminal)

	teams, err := source.Teams(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"platform"}, teams)
}

func TestFileSourceMissingTeam(t *testing.T) {
	dir := testutils.SetupConfigDir(t, nil, nil)

	source, err := file.NewSource(dir)
	require.NoError(t, err)

	_, err = source.Team(context.Background(), "ghosts")
	assert.ErrorIs(t, err, domain.ErrTeamNotFound)
}

func TestFileSourcePicksUpEdits(t *testing.T) {
	ctx := context.Background()
	dir := testutils.SetupConfigDir(t, map[string]string{"platform": testutils.MinimalTeamYAML}, nil)

	source, err := file.NewSource(dir)
	require.NoError(t, err)

	doc, err := source.Team(ctx, "platform")
	require.NoError(t, err)
	require.Len(t, doc.Stages, 3)

	testutils.WriteTeam(t, dir, "platform", "team: platform\nstages:\n  - id: build\n")

	doc, err = source.Team(ctx, "platform")
	require.NoError(t, err)
	assert.Len(t, doc.Stages, 1, "documents are read on demand")
}

func TestFileSourceRejectsMissingDir(t *testing.T) {
	_, err := file.NewSource("/does/not/exist")
	assert.Error(t, err)
}
