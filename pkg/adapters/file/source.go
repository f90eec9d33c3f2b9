// Package file loads team documents and shared fragments from a directory
// tree:
//
//	<root>/teams/<id>.yaml
//	<root>/fragments/<name>.yaml
//
// Documents are read on demand, so an edited file is picked up on the next
// resolve without restarting the process.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stagecoach-io/stagecoach/pkg/domain"
	"github.com/stagecoach-io/stagecoach/pkg/schema"
)

// Source implements ports.ConfigSource over a config directory.
type Source struct {
	root string
}

// NewSource creates a file source rooted at dir.
func NewSource(dir string) (*Source, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid config dir: %w", err)
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("config dir %q is not a directory", dir)
	}
	return &Source{root: abs}, nil
}

// Root returns the absolute config directory, for watchers.
func (s *Source) Root() string { return s.root }

// TeamsDir returns the directory holding team documents.
func (s *Source) TeamsDir() string { return filepath.Join(s.root, "teams") }

// Team implements ports.ConfigSource.
func (s *Source) Team(ctx context.Context, id string) (*schema.Document, error) {
	return s.read(filepath.Join(s.root, "teams", id+".yaml"), id)
}

// Fragment implements ports.ConfigSource.
func (s *Source) Fragment(ctx context.Context, name string) (*schema.Document, error) {
	return s.read(filepath.Join(s.root, "fragments", name+".yaml"), name)
}

// Teams implements ports.ConfigSource.
func (s *Source) Teams(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, "teams"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".yaml"))
	}
	return ids, nil
}

func (s *Source) read(path, id string) (*schema.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%q: %w", id, domain.ErrTeamNotFound)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	doc, err := schema.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}
