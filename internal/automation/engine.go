// Package automation reacts to transition and external events: immediate
// rules fire their action list on match, duration-gated rules arm a watch
// that a periodic evaluator promotes or disarms. The automation engine may
// issue transition requests back into the Transition Engine, closing the
// feedback loop.
package automation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/stagecoach-io/stagecoach/internal/logging"
	"github.com/stagecoach-io/stagecoach/pkg/domain"
	"github.com/stagecoach-io/stagecoach/pkg/ports"
	"github.com/stagecoach-io/stagecoach/pkg/registry"
)

const (
	defaultTick          = 10 * time.Second
	defaultActionTimeout = 5 * time.Second
)

// Transitioner is the slice of the Transition Engine the automation engine
// feeds requests back into.
type Transitioner interface {
	RequestTransition(ctx context.Context, itemID, targetStatus, actor string) (*domain.WorkItem, error)
	GetItem(ctx context.Context, id string) (*domain.WorkItem, error)
	Assign(ctx context.Context, itemID, assignee string) (*domain.WorkItem, error)
}

// Engine matches events against rule definitions. It implements
// ports.TransitionSubscriber for the immediate path and runs a periodic
// evaluator for the deferred path.
type Engine struct {
	registry  *registry.Registry
	runtime   Transitioner
	graph     ports.GraphClient
	notifier  ports.Notifier
	documents ports.DocumentCreator

	tick          time.Duration
	actionTimeout time.Duration
	logger        *slog.Logger
	now           func() time.Time

	mu      sync.Mutex
	watches map[watchKey]*watch
}

// watchKey identifies at most one armed watch per (item, rule) pair.
type watchKey struct {
	Item string
	Rule string
}

// watch is one armed deferred rule. The condition is anchored to the status
// the item held when the watch was armed; leaving it, or a declared break
// event, disarms the watch.
type watch struct {
	rule    domain.AutomationRule
	item    string
	team    string
	status  string
	armedAt time.Time
}

// Option configures the automation engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithTick sets the deferred evaluator interval. The tick bounds the
// precision of duration-gated rules.
func WithTick(tick time.Duration) Option {
	return func(e *Engine) { e.tick = tick }
}

// WithActionTimeout bounds each action's execution.
func WithActionTimeout(timeout time.Duration) Option {
	return func(e *Engine) { e.actionTimeout = timeout }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithGraphClient wires the knowledge-graph collaborator.
func WithGraphClient(graph ports.GraphClient) Option {
	return func(e *Engine) { e.graph = graph }
}

// WithNotifier wires the notification collaborator.
func WithNotifier(notifier ports.Notifier) Option {
	return func(e *Engine) { e.notifier = notifier }
}

// WithDocumentCreator wires the document collaborator.
func WithDocumentCreator(documents ports.DocumentCreator) Option {
	return func(e *Engine) { e.documents = documents }
}

// NewEngine creates an automation engine over the shared config registry and
// the Transition Engine it feeds back into.
func NewEngine(reg *registry.Registry, runtime Transitioner, opts ...Option) *Engine {
	e := &Engine{
		registry:      reg,
		runtime:       runtime,
		tick:          defaultTick,
		actionTimeout: defaultActionTimeout,
		logger:        logging.NewNop(),
		now:           time.Now,
		watches:       make(map[watchKey]*watch),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HandleTransition implements ports.TransitionSubscriber. Immediate matching
// rules run their action list; deferred matching rules arm a watch. A
// transition away from a watched status disarms the watch silently, since an
// intentional move is not a condition break.
func (e *Engine) HandleTransition(ctx context.Context, event domain.TransitionEvent) {
	cfg, ok := e.registry.Version(event.Team, event.ConfigVersion)
	if !ok {
		e.logger.Warn("transition event for unknown config version",
			"team", event.Team, "version", event.ConfigVersion)
		return
	}

	e.disarmLeft(event)

	for _, rule := range cfg.Rules {
		if !rule.Trigger.MatchesTransition(event.From, event.To) {
			continue
		}
		if rule.Deferred() {
			e.arm(rule, event.Item, event.Team, event.To, event.At)
			continue
		}
		e.runActions(rule, event.Item, event.Team)
	}
}

// HandleEvent feeds an external event (metric sample, webhook, alert) into
// the rule tables: it may break armed watches, fire immediate event rules,
// and arm deferred event rules.
func (e *Engine) HandleEvent(ctx context.Context, event domain.ExternalEvent) {
	if event.At.IsZero() {
		event.At = e.now().UTC()
	}

	e.breakWatches(event)

	for _, cfg := range e.configsFor(ctx, event) {
		for _, rule := range cfg.Rules {
			if !rule.Trigger.MatchesEvent(event.Type) {
				continue
			}
			if rule.Deferred() {
				if event.Item == "" {
					e.logger.Warn("deferred event rule needs an item-scoped event",
						"rule", rule.ID, "event", event.Type)
					continue
				}
				e.armFromEvent(ctx, rule, event)
				continue
			}
			e.runActions(rule, event.Item, cfg.Team)
		}
	}
}

// configsFor scopes an event to rule sets: the item's bound config when the
// event names an item, the team's active config when it names a team, and
// every active config otherwise.
func (e *Engine) configsFor(ctx context.Context, event domain.ExternalEvent) []*domain.ResolvedConfig {
	if event.Item != "" {
		item, err := e.runtime.GetItem(ctx, event.Item)
		if err != nil {
			e.logger.Warn("event references unknown item", "item", event.Item, "err", err)
			return nil
		}
		if cfg, ok := e.registry.Version(item.Team, item.ConfigVersion); ok {
			return []*domain.ResolvedConfig{cfg}
		}
		return nil
	}

	if event.Team != "" {
		if cfg, ok := e.registry.Active(event.Team); ok {
			return []*domain.ResolvedConfig{cfg}
		}
		return nil
	}

	var cfgs []*domain.ResolvedConfig
	for _, team := range e.registry.Teams() {
		if cfg, ok := e.registry.Active(team); ok {
			cfgs = append(cfgs, cfg)
		}
	}
	return cfgs
}

// arm installs (or replaces) the watch for an (item, rule) pair.
func (e *Engine) arm(rule domain.AutomationRule, itemID, team, status string, at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := watchKey{Item: itemID, Rule: rule.ID}
	e.watches[key] = &watch{
		rule:    rule,
		item:    itemID,
		team:    team,
		status:  status,
		armedAt: at,
	}
	e.logger.Debug("armed deferred watch",
		"rule", rule.ID, "item", itemID, "duration", rule.Duration)
}

// armFromEvent anchors an event-triggered deferred rule to the item's
// current status.
func (e *Engine) armFromEvent(ctx context.Context, rule domain.AutomationRule, event domain.ExternalEvent) {
	item, err := e.runtime.GetItem(ctx, event.Item)
	if err != nil {
		e.logger.Warn("cannot arm watch for unknown item", "item", event.Item, "err", err)
		return
	}
	e.arm(rule, item.ID, item.Team, item.Status, event.At)
}

// disarmLeft drops watches whose item moved off the watched status.
func (e *Engine) disarmLeft(event domain.TransitionEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for key, w := range e.watches {
		if w.item == event.Item && w.status == event.From && event.To != w.status {
			delete(e.watches, key)
			e.logger.Debug("disarmed watch, item moved on",
				"rule", key.Rule, "item", key.Item, "to", event.To)
		}
	}
}

// breakWatches disarms every watch whose rule declares the event type as a
// condition break, firing the rule's on-break action exactly once.
func (e *Engine) breakWatches(event domain.ExternalEvent) {
	e.mu.Lock()
	var broken []*watch
	for key, w := range e.watches {
		if !w.rule.BreaksOn(event.Type) {
			continue
		}
		if event.Item != "" && event.Item != w.item {
			continue
		}
		delete(e.watches, key)
		broken = append(broken, w)
	}
	e.mu.Unlock()

	for _, w := range broken {
		e.logger.Info("deferred watch broken",
			"rule", w.rule.ID, "item", w.item, "event", event.Type)
		if w.rule.OnBreak != nil {
			e.runAction(*w.rule.OnBreak, w.rule.ID, w.item, w.team)
		}
	}
}

// Run drives the deferred evaluator until the context ends. The tick
// interval bounds how precisely duration thresholds are honored.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Evaluate(ctx)
		}
	}
}

// Evaluate promotes every armed watch whose duration has elapsed and whose
// condition still holds. A watch whose item moved away is discarded; a fire
// whose transition is rejected is discarded rather than retried.
func (e *Engine) Evaluate(ctx context.Context) {
	now := e.now().UTC()

	e.mu.Lock()
	var due []*watch
	for key, w := range e.watches {
		if now.Sub(w.armedAt) >= w.rule.Duration {
			delete(e.watches, key)
			due = append(due, w)
		}
	}
	e.mu.Unlock()

	for _, w := range due {
		item, err := e.runtime.GetItem(ctx, w.item)
		if err != nil {
			e.logger.Warn("discarding watch, item unavailable", "item", w.item, "err", err)
			continue
		}
		if item.Status != w.status {
			e.logger.Debug("discarding watch, item moved externally",
				"rule", w.rule.ID, "item", w.item, "status", item.Status)
			continue
		}

		e.logger.Info("deferred watch fired",
			"rule", w.rule.ID, "item", w.item, "held", now.Sub(w.armedAt))
		e.runActions(w.rule, w.item, w.team)
	}
}

// Armed reports whether a watch exists for an (item, rule) pair.
func (e *Engine) Armed(itemID, ruleID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.watches[watchKey{Item: itemID, Rule: ruleID}]
	return ok
}
