package runtime

import (
	"context"
	"time"

	"github.com/stagecoach-io/stagecoach/pkg/domain"
	"github.com/stagecoach-io/stagecoach/pkg/ports"
)

// publish delivers the event to every subscriber synchronously, each under
// the notify budget. A subscriber that overruns is abandoned and logged; its
// goroutine keeps the cancelled context and is expected to wind down. No
// subscriber failure ever propagates to the transition caller.
func (e *Engine) publish(event domain.TransitionEvent) {
	e.subMu.RLock()
	subs := make([]ports.TransitionSubscriber, len(e.subscribers))
	copy(subs, e.subscribers)
	e.subMu.RUnlock()

	for _, sub := range subs {
		e.notifyOne(sub, event)
	}
}

func (e *Engine) notifyOne(sub ports.TransitionSubscriber, event domain.TransitionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), e.notifyBudget)
	defer cancel()

	done := make(chan struct{})
	start := time.Now()

	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("transition subscriber panicked",
					"item", event.Item, "panic", r)
			}
		}()
		sub.HandleTransition(ctx, event)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		e.logger.Warn("transition subscriber exceeded notify budget, abandoned",
			"item", event.Item,
			"budget", e.notifyBudget,
			"elapsed", time.Since(start))
	}
}
