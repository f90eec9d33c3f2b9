package automation

import (
	"context"
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/stagecoach-io/stagecoach/pkg/domain"
)

// actorPrefix marks transitions issued by automation in history and events.
const actorPrefix = "automation:"

type assignParams struct {
	Assignee string `mapstructure:"assignee"`
}

type createNodeParams struct {
	NodeType string `mapstructure:"node_type"`
	EdgeType string `mapstructure:"edge_type"`
	From     string `mapstructure:"from"`
	To       string `mapstructure:"to"`
}

type createDocumentParams struct {
	Template string         `mapstructure:"template"`
	Path     string         `mapstructure:"path"`
	Vars     map[string]any `mapstructure:"vars"`
}

type notifyParams struct {
	Channel  string `mapstructure:"channel"`
	Message  string `mapstructure:"message"`
	Severity string `mapstructure:"severity"`
}

type transitionParams struct {
	To string `mapstructure:"to"`
}

// runActions executes a rule's action list in declaration order. Each action
// catches and logs its own failure: one failing action neither rolls back
// prior actions nor skips subsequent ones.
func (e *Engine) runActions(rule domain.AutomationRule, itemID, team string) {
	for i, action := range rule.Actions {
		if err := e.runAction(action, rule.ID, itemID, team); err != nil {
			e.logger.Error("automation action failed",
				"rule", rule.ID, "action", string(action.Type), "index", i,
				"item", itemID, "err", err)
		}
	}
}

// runAction executes one action under the action timeout. A hung action is
// abandoned and logged; its goroutine keeps the cancelled context.
func (e *Engine) runAction(action domain.Action, ruleID, itemID, team string) error {
	ctx, cancel := context.WithTimeout(context.Background(), e.actionTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("action panicked: %v", r)
			}
		}()
		done <- e.dispatch(ctx, action, ruleID, itemID, team)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("action abandoned after %v: %w", e.actionTimeout, ctx.Err())
	}
}

func (e *Engine) dispatch(ctx context.Context, action domain.Action, ruleID, itemID, team string) error {
	switch action.Type {
	case domain.ActionAssign:
		var p assignParams
		if err := decode(action.Params, &p); err != nil {
			return err
		}
		_, err := e.runtime.Assign(ctx, itemID, p.Assignee)
		return err

	case domain.ActionCreateNode:
		if e.graph == nil {
			return errors.New("no graph client configured")
		}
		var p createNodeParams
		if err := decode(action.Params, &p); err != nil {
			return err
		}
		if p.EdgeType != "" {
			return e.graph.CreateEdge(ctx, p.From, p.To, p.EdgeType)
		}
		return e.graph.CreateNode(ctx, p.NodeType, itemID)

	case domain.ActionCreateDocument:
		if e.documents == nil {
			return errors.New("no document creator configured")
		}
		var p createDocumentParams
		if err := decode(action.Params, &p); err != nil {
			return err
		}
		if p.Vars == nil {
			p.Vars = map[string]any{}
		}
		p.Vars["item"] = itemID
		p.Vars["team"] = team
		return e.documents.CreateDocument(ctx, p.Template, p.Path, p.Vars)

	case domain.ActionNotify:
		if e.notifier == nil {
			return errors.New("no notifier configured")
		}
		var p notifyParams
		if err := decode(action.Params, &p); err != nil {
			return err
		}
		return e.notifier.Notify(ctx, p.Channel, p.Message, p.Severity)

	case domain.ActionAutoTransition:
		var p transitionParams
		if err := decode(action.Params, &p); err != nil {
			return err
		}
		_, err := e.runtime.RequestTransition(ctx, itemID, p.To, actorPrefix+ruleID)
		return err

	case domain.ActionRollback:
		return e.rollback(ctx, itemID, ruleID, action)

	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}
}

// rollback transitions the item back to the status it occupied before the
// current one. An explicit `to` param overrides the history lookup.
func (e *Engine) rollback(ctx context.Context, itemID, ruleID string, action domain.Action) error {
	var p transitionParams
	if err := decode(action.Params, &p); err != nil {
		return err
	}

	target := p.To
	if target == "" {
		item, err := e.runtime.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		target = previousStatus(item)
		if target == "" {
			return errors.New("no previous status to roll back to")
		}
	}

	_, err := e.runtime.RequestTransition(ctx, itemID, target, actorPrefix+ruleID)
	return err
}

// previousStatus returns the most recently exited status distinct from the
// current one.
func previousStatus(item *domain.WorkItem) string {
	for i := len(item.History) - 1; i >= 0; i-- {
		h := item.History[i]
		if h.ExitedAt != nil && h.Status != item.Status {
			return h.Status
		}
	}
	return ""
}

func decode(params map[string]any, out any) error {
	if err := mapstructure.Decode(params, out); err != nil {
		return fmt.Errorf("invalid action params: %w", err)
	}
	return nil
}
