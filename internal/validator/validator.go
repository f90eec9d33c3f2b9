// Package validator proves that a merged, reference-free document is a
// well-formed state machine before it becomes a ResolvedConfig. Validation is
// pure: one document in, a list of findings out.
package validator

import (
	"fmt"

	"github.com/stagecoach-io/stagecoach/pkg/domain"
	"github.com/stagecoach-io/stagecoach/pkg/schema"
)

// Validate runs every structural check against a merged document and returns
// all findings, advisory ones included. Callers treat any non-advisory issue
// as fatal to activation.
func Validate(doc *schema.Document) []*schema.Issue {
	var issues []*schema.Issue

	stages := make(map[string]schema.StageDef, len(doc.Stages))
	for _, s := range doc.Stages {
		stages[s.ID] = s
	}
	statuses := make(map[string]schema.StatusDef, len(doc.Statuses))
	statusIDs := make([]string, 0, len(doc.Statuses))
	for _, s := range doc.Statuses {
		statuses[s.ID] = s
		statusIDs = append(statusIDs, s.ID)
	}

	// Every status must belong to a declared stage.
	for _, s := range doc.Statuses {
		if _, ok := stages[s.Stage]; !ok {
			issues = append(issues, &schema.Issue{
				Kind:    schema.UnknownStage,
				Element: s.ID,
				Detail:  fmt.Sprintf("status declares stage %q", s.Stage),
			})
		}
	}

	// Every transition endpoint must reference a declared status. Wildcards
	// are checked via their To and Except sets; expansion itself cannot
	// introduce unknown statuses.
	for i, t := range doc.Transitions {
		element := t.ID
		if element == "" {
			element = fmt.Sprintf("transitions[%d]", i)
		}
		check := func(ids []string, field string) {
			for _, id := range ids {
				if id == domain.Wildcard {
					continue
				}
				if _, ok := statuses[id]; !ok {
					issues = append(issues, &schema.Issue{
						Kind:    schema.UnknownStatus,
						Element: element,
						Detail:  fmt.Sprintf("%s references %q", field, id),
					})
				}
			}
		}
		check(t.From, "from")
		check(t.To, "to")
		check(t.Except, "except")
	}

	issues = append(issues, checkStart(doc, statusIDs)...)
	issues = append(issues, checkTerminalEdges(doc, stages, statuses, statusIDs)...)
	issues = append(issues, checkComplexityRefs(doc, stages)...)
	issues = append(issues, checkRuleRefs(doc, statuses)...)

	return issues
}

// Fatal reports whether any finding blocks activation.
func Fatal(issues []*schema.Issue) bool {
	for _, i := range issues {
		if !i.Advisory {
			return true
		}
	}
	return false
}

// Error wraps the fatal findings into an AggregateError, or returns nil when
// activation may proceed.
func Error(issues []*schema.Issue) error {
	var errs []error
	for _, i := range issues {
		if !i.Advisory {
			errs = append(errs, i)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &schema.AggregateError{Errors: errs}
}

// checkStart flags a designated start status that is itself the target of a
// transition. Advisory: the machine still runs, but the start is reachable
// from elsewhere which usually signals a modeling mistake.
func checkStart(doc *schema.Document, statusIDs []string) []*schema.Issue {
	start := ""
	for _, s := range doc.Statuses {
		if s.Initial {
			start = s.ID
			break
		}
	}
	if start == "" && len(doc.Statuses) > 0 {
		start = doc.Statuses[0].ID
	}
	if start == "" {
		return nil
	}

	table := expandedTable(doc, statusIDs)
	for _, dests := range table {
		if dests[start] {
			return []*schema.Issue{{
				Kind:     schema.UnreachableStart,
				Element:  start,
				Detail:   "designated start status is the target of a transition",
				Advisory: true,
			}}
		}
	}
	return nil
}

// checkTerminalEdges enforces that statuses of terminal stages only lead to
// other terminal statuses.
func checkTerminalEdges(doc *schema.Document, stages map[string]schema.StageDef,
	statuses map[string]schema.StatusDef, statusIDs []string) []*schema.Issue {

	terminal := func(statusID string) bool {
		s, ok := statuses[statusID]
		if !ok {
			return false
		}
		stage, ok := stages[s.Stage]
		return ok && stage.Terminal
	}

	var issues []*schema.Issue
	table := expandedTable(doc, statusIDs)
	for from, dests := range table {
		if !terminal(from) {
			continue
		}
		for to := range dests {
			if terminal(to) {
				continue
			}
			issues = append(issues, &schema.Issue{
				Kind:    schema.InvalidTerminalEdge,
				Element: from,
				Detail:  fmt.Sprintf("terminal status has outgoing edge to non-terminal %q", to),
			})
		}
	}
	return issues
}

func checkComplexityRefs(doc *schema.Document, stages map[string]schema.StageDef) []*schema.Issue {
	var issues []*schema.Issue
	for _, level := range doc.ComplexityLevels {
		checkStage := func(id, field string) {
			if _, ok := stages[id]; !ok {
				issues = append(issues, &schema.Issue{
					Kind:    schema.UnknownStageRef,
					Element: level.ID,
					Detail:  fmt.Sprintf("%s references %q", field, id),
				})
			}
		}
		for _, id := range level.SkipStages {
			checkStage(id, "skip_stages")
		}
		for _, id := range level.RequiredStages {
			checkStage(id, "required_stages")
		}
		for _, gate := range level.RequireApproval {
			checkStage(gate.Stage, "require_approval")
		}
	}
	return issues
}

func checkRuleRefs(doc *schema.Document, statuses map[string]schema.StatusDef) []*schema.Issue {
	var issues []*schema.Issue
	for _, rule := range doc.AutomationRules {
		checkStatus := func(id, field string) {
			if id == domain.Wildcard {
				return
			}
			if _, ok := statuses[id]; !ok {
				issues = append(issues, &schema.Issue{
					Kind:    schema.UnknownStatusRef,
					Element: rule.ID,
					Detail:  fmt.Sprintf("%s references %q", field, id),
				})
			}
		}
		for _, id := range rule.Trigger.From {
			checkStatus(id, "trigger.from")
		}
		for _, id := range rule.Trigger.To {
			checkStatus(id, "trigger.to")
		}
	}
	return issues
}

// expandedTable builds the concrete edge set used by the reachability and
// terminal checks, reusing the domain expansion so validation and runtime
// agree on wildcard semantics.
func expandedTable(doc *schema.Document, statusIDs []string) map[string]map[string]bool {
	transitions := make([]domain.Transition, 0, len(doc.Transitions))
	for _, t := range doc.Transitions {
		transitions = append(transitions, t.Domain())
	}
	return domain.ExpandEdges(transitions, statusIDs)
}
