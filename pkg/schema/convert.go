package schema

import "github.com/stagecoach-io/stagecoach/pkg/domain"

// Domain converts a reference-free StageDef into its runtime form.
func (d StageDef) Domain() domain.Stage {
	return domain.Stage{
		ID:            d.ID,
		Name:          d.Name,
		Required:      d.Required,
		Terminal:      d.Terminal,
		SkipWhen:      d.SkipWhen,
		EntryCriteria: d.EntryCriteria,
		ExitCriteria:  d.ExitCriteria,
	}
}

// Domain converts a reference-free StatusDef into its runtime form.
func (d StatusDef) Domain() domain.Status {
	return domain.Status{
		ID:          d.ID,
		Name:        d.Name,
		Stage:       d.Stage,
		Description: d.Description,
		Initial:     d.Initial,
	}
}

// Domain converts a reference-free TransitionDef into its runtime form.
func (d TransitionDef) Domain() domain.Transition {
	return domain.Transition{
		From:   []string(d.From),
		To:     []string(d.To),
		Except: d.Except,
	}
}

// Domain converts a reference-free ComplexityDef into its runtime form.
func (d ComplexityDef) Domain() domain.ComplexityLevel {
	level := domain.ComplexityLevel{
		ID:             d.ID,
		MinWeight:      d.MinWeight,
		MaxWeight:      d.MaxWeight,
		SkipStages:     d.SkipStages,
		RequiredStages: d.RequiredStages,
	}
	for _, g := range d.RequireApproval {
		level.RequireApproval = append(level.RequireApproval, domain.ApprovalGate{
			Stage: g.Stage,
			Roles: g.Roles,
		})
	}
	return level
}

// Domain converts a reference-free RuleDef into its runtime form.
func (d RuleDef) Domain() domain.AutomationRule {
	rule := domain.AutomationRule{
		ID: d.ID,
		Trigger: domain.Trigger{
			Kind:  domain.TriggerKind(d.Trigger.Kind),
			From:  []string(d.Trigger.From),
			To:    []string(d.Trigger.To),
			Event: d.Trigger.Event,
		},
		Duration: d.Duration.Std(),
		BreakOn:  d.BreakOn,
	}
	for _, a := range d.Actions {
		rule.Actions = append(rule.Actions, domain.Action{
			Type:   domain.ActionType(a.Type),
			Params: a.Params,
		})
	}
	if d.OnBreak != nil {
		rule.OnBreak = &domain.Action{
			Type:   domain.ActionType(d.OnBreak.Type),
			Params: d.OnBreak.Params,
		}
	}
	return rule
}
