// Package testutils holds fixture helpers shared by package tests.
package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// SetupConfigDir creates a temporary config directory with the layout the
// file source expects and writes the given documents into it. Keys of teams
// and fragments are ids; values are raw YAML. It fails the test immediately
// on error.
func SetupConfigDir(t *testing.T, teams, fragments map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "teams"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "fragments"), 0o755))

	for id, doc := range teams {
		WriteTeam(t, dir, id, doc)
	}
	for name, doc := range fragments {
		path := filepath.Join(dir, "fragments", name+".yaml")
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	}
	return dir
}

// WriteTeam writes (or overwrites) one team document in a config directory.
func WriteTeam(t *testing.T, dir, id, doc string) {
	t.Helper()
	path := filepath.Join(dir, "teams", id+".yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
}

// MinimalTeamYAML is a small but complete workflow document used across
// package tests: two working stages, a terminal stage and a linear flow with
// one loop-back edge.
const MinimalTeamYAML = `
team: platform
stages:
  - id: build
    name: Build
    required: true
  - id: review
    name: Review
    exit_criteria: [ci_green]
  - id: done
    name: Done
    terminal: true
statuses:
  - id: todo
    name: To Do
    stage: build
    initial: true
  - id: in_progress
    name: In Progress
    stage: build
  - id: in_review
    name: In Review
    stage: review
  - id: merged
    name: Merged
    stage: done
transitions:
  - from: todo
    to: [in_progress]
  - from: in_progress
    to: [in_review]
  - from: in_review
    to: [in_progress, merged]
`
