package ports

import (
	"context"

	"github.com/stagecoach-io/stagecoach/pkg/domain"
)

// GraphClient is the knowledge-graph collaborator invoked by create_node
// automation actions. Failures are logged by the caller, never propagated
// into a transition result.
type GraphClient interface {
	CreateNode(ctx context.Context, nodeType, linkedItemID string) error
	CreateEdge(ctx context.Context, fromStatus, toStatus, edgeType string) error
}

// Notifier delivers best-effort messages to a channel. Fire-and-forget from
// the engine's perspective.
type Notifier interface {
	Notify(ctx context.Context, channel, message, severity string) error
}

// DocumentCreator renders a template into a document, used by
// create_document actions.
type DocumentCreator interface {
	CreateDocument(ctx context.Context, templateID, path string, vars map[string]any) error
}

// TransitionSubscriber receives TransitionEvents synchronously after a
// transition is applied. Subscribers run under a bounded time budget;
// overruns are abandoned and logged, never surfaced to the transition caller.
type TransitionSubscriber interface {
	HandleTransition(ctx context.Context, event domain.TransitionEvent)
}
