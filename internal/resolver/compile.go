package resolver

import (
	"context"

	"github.com/stagecoach-io/stagecoach/internal/validator"
	"github.com/stagecoach-io/stagecoach/pkg/domain"
	"github.com/stagecoach-io/stagecoach/pkg/schema"
)

// Compile resolves, validates and builds the immutable runtime view of a
// team's workflow. Advisory findings are returned alongside a successful
// config so callers can log them; any fatal finding aborts activation.
func (r *Resolver) Compile(ctx context.Context, teamID string, version int) (*domain.ResolvedConfig, []*schema.Issue, error) {
	doc, err := r.Resolve(ctx, teamID)
	if err != nil {
		return nil, nil, err
	}

	issues := validator.Validate(doc)
	if err := validator.Error(issues); err != nil {
		return nil, issues, err
	}

	return Build(doc, version), issues, nil
}

// Build converts a validated, reference-free document into a ResolvedConfig.
func Build(doc *schema.Document, version int) *domain.ResolvedConfig {
	stages := make([]domain.Stage, 0, len(doc.Stages))
	for _, d := range doc.Stages {
		stages = append(stages, d.Domain())
	}
	statuses := make([]domain.Status, 0, len(doc.Statuses))
	for _, d := range doc.Statuses {
		statuses = append(statuses, d.Domain())
	}
	transitions := make([]domain.Transition, 0, len(doc.Transitions))
	for _, d := range doc.Transitions {
		transitions = append(transitions, d.Domain())
	}
	levels := make([]domain.ComplexityLevel, 0, len(doc.ComplexityLevels))
	for _, d := range doc.ComplexityLevels {
		levels = append(levels, d.Domain())
	}
	rules := make([]domain.AutomationRule, 0, len(doc.AutomationRules))
	for _, d := range doc.AutomationRules {
		rules = append(rules, d.Domain())
	}

	return domain.NewResolvedConfig(doc.Team, version, stages, statuses, transitions, levels, rules)
}
