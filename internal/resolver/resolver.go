// Package resolver expands a raw team document into a single, reference-free
// configuration: the `extends` chain is merged depth-first with
// override-by-id semantics, and `$ref` fragment entries are spliced in-place.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/stagecoach-io/stagecoach/pkg/domain"
	"github.com/stagecoach-io/stagecoach/pkg/ports"
	"github.com/stagecoach-io/stagecoach/pkg/schema"
)

// Resolver expands team documents against a ConfigSource.
type Resolver struct {
	source ports.ConfigSource
}

// New creates a resolver backed by the given source.
func New(source ports.ConfigSource) *Resolver {
	return &Resolver{source: source}
}

// Resolve produces the merged, reference-free document for a team.
// All resolution failures (unknown base, unknown fragment, cycles) are
// collected into a schema.AggregateError; any failure is fatal to loading.
func (r *Resolver) Resolve(ctx context.Context, teamID string) (*schema.Document, error) {
	visiting := map[string]bool{}
	doc, errs := r.resolveChain(ctx, teamID, visiting, nil)
	if len(errs) > 0 {
		return nil, &schema.AggregateError{Errors: errs}
	}
	return doc, nil
}

// resolveChain loads a document, expands its fragments, and merges it on top
// of its resolved base. The visiting set detects extends cycles; path carries
// the chain for error reporting.
func (r *Resolver) resolveChain(ctx context.Context, id string, visiting map[string]bool, path []string) (*schema.Document, []error) {
	if visiting[id] {
		return nil, []error{&schema.ResolutionError{
			Kind: schema.CircularExtends,
			Ref:  id,
			Path: path,
		}}
	}
	visiting[id] = true
	defer delete(visiting, id)
	path = append(path, id)

	raw, err := r.source.Team(ctx, id)
	if err != nil {
		kind := schema.UnknownBase
		if !errors.Is(err, domain.ErrTeamNotFound) {
			return nil, []error{fmt.Errorf("loading %q: %w", id, err)}
		}
		return nil, []error{&schema.ResolutionError{Kind: kind, Ref: id, Path: path[:len(path)-1]}}
	}

	doc, errs := r.expandFragments(ctx, raw, path)
	if len(errs) > 0 {
		return nil, errs
	}

	if doc.Extends == "" {
		return doc, nil
	}

	base, errs := r.resolveChain(ctx, doc.Extends, visiting, path)
	if len(errs) > 0 {
		return nil, errs
	}

	return merge(base, doc), nil
}

// expandFragments replaces every $ref entry with the referenced fragment's
// content, recursively. Fragments may themselves contain $ref entries; the
// visiting set detects cycles.
func (r *Resolver) expandFragments(ctx context.Context, doc *schema.Document, path []string) (*schema.Document, []error) {
	return r.expandWith(ctx, doc, map[string]bool{}, path)
}

func (r *Resolver) expandWith(ctx context.Context, doc *schema.Document, visiting map[string]bool, path []string) (*schema.Document, []error) {
	out := &schema.Document{
		Team:    doc.Team,
		Extends: doc.Extends,
	}
	var errs []error

	fragment := func(name string) (*schema.Document, bool) {
		if visiting[name] {
			errs = append(errs, &schema.ResolutionError{
				Kind: schema.CircularFragment,
				Ref:  name,
				Path: path,
			})
			return nil, false
		}
		frag, err := r.source.Fragment(ctx, name)
		if err != nil {
			if errors.Is(err, domain.ErrTeamNotFound) {
				errs = append(errs, &schema.ResolutionError{Kind: schema.UnknownFragment, Ref: name, Path: path})
			} else {
				errs = append(errs, fmt.Errorf("loading fragment %q: %w", name, err))
			}
			return nil, false
		}

		visiting[name] = true
		expanded, nested := r.expandWith(ctx, frag, visiting, append(path, name))
		delete(visiting, name)

		if len(nested) > 0 {
			errs = append(errs, nested...)
			return nil, false
		}
		return expanded, true
	}

	for _, d := range doc.Stages {
		if !d.IsRef() {
			out.Stages = append(out.Stages, d)
			continue
		}
		if frag, ok := fragment(d.Ref); ok {
			out.Stages = append(out.Stages, frag.Stages...)
		}
	}
	for _, d := range doc.Statuses {
		if !d.IsRef() {
			out.Statuses = append(out.Statuses, d)
			continue
		}
		if frag, ok := fragment(d.Ref); ok {
			out.Statuses = append(out.Statuses, frag.Statuses...)
		}
	}
	for _, d := range doc.Transitions {
		if !d.IsRef() {
			out.Transitions = append(out.Transitions, d)
			continue
		}
		if frag, ok := fragment(d.Ref); ok {
			out.Transitions = append(out.Transitions, frag.Transitions...)
		}
	}
	for _, d := range doc.ComplexityLevels {
		if !d.IsRef() {
			out.ComplexityLevels = append(out.ComplexityLevels, d)
			continue
		}
		if frag, ok := fragment(d.Ref); ok {
			out.ComplexityLevels = append(out.ComplexityLevels, frag.ComplexityLevels...)
		}
	}
	for _, d := range doc.AutomationRules {
		if !d.IsRef() {
			out.AutomationRules = append(out.AutomationRules, d)
			continue
		}
		if frag, ok := fragment(d.Ref); ok {
			out.AutomationRules = append(out.AutomationRules, frag.AutomationRules...)
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}
