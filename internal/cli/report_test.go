package cli

import (
	"context"
	"testing"

	"github.com/stagecoach-io/stagecoach"
	"github.com/stagecoach-io/stagecoach/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildReportMarkdown(t *testing.T) {
	ctx := context.Background()
	dir := testutils.SetupConfigDir(t, map[string]string{"platform": testutils.MinimalTeamYAML}, nil)

	eng, err := stagecoach.New(dir)
	require.NoError(t, err)

	_, err = eng.CreateItem(ctx, stagecoach.NewItem{ID: "task-1", Team: "platform"})
	require.NoError(t, err)
	_, err = eng.RequestTransition(ctx, "task-1", "in_progress", "alice")
	require.NoError(t, err)

	md, err := buildReportMarkdown(eng, "platform")
	require.NoError(t, err)

	assert.Contains(t, md, "# Flow report: platform")
	assert.Contains(t, md, "| Tracked items | 1 |")
	assert.Contains(t, md, "### Review")
	assert.Contains(t, md, "(terminal)")
	assert.Contains(t, md, "`in_review`")
}

func TestBuildReportMarkdownUnknownTeam(t *testing.T) {
	dir := testutils.SetupConfigDir(t, map[string]string{"platform": testutils.MinimalTeamYAML}, nil)

	eng, err := stagecoach.New(dir)
	require.NoError(t, err)

	_, err = buildReportMarkdown(eng, "ghosts")
	assert.Error(t, err)
}
