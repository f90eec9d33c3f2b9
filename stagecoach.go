// Package stagecoach is a configurable lifecycle workflow engine. Teams
// declare stages, statuses, transitions, complexity levels and automation
// rules in YAML; the engine compiles each declaration into an immutable
// config version, moves work items along the declared graph under approval
// and criteria gates, and reacts to transitions and external events with
// automation rules.
//
// The root package is the embedding entry point: it wires the resolver, the
// config registry, the Transition Engine, the automation engine and the
// metrics collector behind one facade.
//
//	eng, err := stagecoach.New("./config")
//	if err != nil {
//		log.Fatal(err)
//	}
//	item, err := eng.CreateItem(ctx, stagecoach.NewItem{ID: "task-1", Team: "platform", Weight: 5})
//	...
//	item, err = eng.RequestTransition(ctx, "task-1", "in_progress", "alice")
package stagecoach

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stagecoach-io/stagecoach/internal/automation"
	"github.com/stagecoach-io/stagecoach/internal/logging"
	"github.com/stagecoach-io/stagecoach/internal/metrics"
	"github.com/stagecoach-io/stagecoach/internal/resolver"
	"github.com/stagecoach-io/stagecoach/internal/runtime"
	"github.com/stagecoach-io/stagecoach/internal/validator"
	"github.com/stagecoach-io/stagecoach/pkg/adapters/file"
	"github.com/stagecoach-io/stagecoach/pkg/adapters/memory"
	"github.com/stagecoach-io/stagecoach/pkg/domain"
	"github.com/stagecoach-io/stagecoach/pkg/ports"
	"github.com/stagecoach-io/stagecoach/pkg/registry"
	"github.com/stagecoach-io/stagecoach/pkg/schema"
)

// Version is the library version reported by adapters and the CLI.
var Version = "0.3.0"

// NewItem is the specification for CreateItem, aliased here so embedding
// modules never import internal packages.
type NewItem = runtime.NewItem

// Engine is the high-level entry point. It wraps the internal runtime and
// provides a simplified API for consumers.
type Engine struct {
	source     ports.ConfigSource
	store      ports.ItemStore
	locker     ports.DistributedLocker
	registry   *registry.Registry
	resolver   *resolver.Resolver
	runtime    *runtime.Engine
	automation *automation.Engine
	collector  *metrics.Collector
	prom       *prometheus.Registry

	logger         *slog.Logger
	thresholds     []metrics.Threshold
	automationOpts []automation.Option
	runtimeOpts    []runtime.Option
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a structured logger for all components.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithSource injects a custom ConfigSource, bypassing the default file
// source.
func WithSource(source ports.ConfigSource) Option {
	return func(e *Engine) { e.source = source }
}

// WithStore injects a custom ItemStore. Defaults to the in-memory store.
func WithStore(store ports.ItemStore) Option {
	return func(e *Engine) { e.store = store }
}

// WithLocker enables distributed item locking for multi-replica setups.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) { e.locker = locker }
}

// WithThresholds installs metric alert thresholds.
func WithThresholds(thresholds []metrics.Threshold) Option {
	return func(e *Engine) { e.thresholds = thresholds }
}

// WithNotifier wires the notification collaborator for notify actions.
func WithNotifier(n ports.Notifier) Option {
	return func(e *Engine) {
		e.automationOpts = append(e.automationOpts, automation.WithNotifier(n))
	}
}

// WithGraphClient wires the knowledge-graph collaborator for create_node
// actions.
func WithGraphClient(g ports.GraphClient) Option {
	return func(e *Engine) {
		e.automationOpts = append(e.automationOpts, automation.WithGraphClient(g))
	}
}

// WithDocumentCreator wires the document collaborator for create_document
// actions.
func WithDocumentCreator(d ports.DocumentCreator) Option {
	return func(e *Engine) {
		e.automationOpts = append(e.automationOpts, automation.WithDocumentCreator(d))
	}
}

// WithAutomationTick sets the deferred evaluator interval.
func WithAutomationTick(tick time.Duration) Option {
	return func(e *Engine) {
		e.automationOpts = append(e.automationOpts, automation.WithTick(tick))
	}
}

// WithClock overrides the time source in the runtime and automation engines,
// for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithClock(now))
		e.automationOpts = append(e.automationOpts, automation.WithClock(now))
	}
}

// New initializes an Engine. By default it reads team documents from
// configDir; with WithSource, configDir may be empty and is ignored. Every
// team the source lists is compiled and activated before New returns.
func New(configDir string, opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}

	if eng.source == nil {
		if configDir == "" {
			return nil, fmt.Errorf("configDir is required when no custom source is provided")
		}
		source, err := file.NewSource(configDir)
		if err != nil {
			return nil, err
		}
		eng.source = source
	}

	if eng.store == nil {
		eng.store = memory.NewStore()
	}

	eng.registry = registry.New()
	eng.resolver = resolver.New(eng.source)
	eng.prom = prometheus.NewRegistry()

	runtimeOpts := append([]runtime.Option{runtime.WithLogger(eng.logger)}, eng.runtimeOpts...)
	if eng.locker != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithLocker(eng.locker))
	}
	eng.runtime = runtime.NewEngine(eng.registry, eng.store, runtimeOpts...)

	automationOpts := append([]automation.Option{automation.WithLogger(eng.logger)}, eng.automationOpts...)
	eng.automation = automation.NewEngine(eng.registry, eng.runtime, automationOpts...)

	eng.collector = metrics.NewCollector(eng.registry, eng.prom,
		metrics.WithLogger(eng.logger),
		metrics.WithThresholds(eng.thresholds),
		metrics.WithAlertSink(func(event domain.ExternalEvent) {
			eng.automation.HandleEvent(context.Background(), event)
		}),
	)

	// Metrics observe before automation reacts, so a rule fired by a
	// transition sees that transition already counted.
	eng.runtime.Subscribe(eng.collector)
	eng.runtime.Subscribe(eng.automation)

	if err := eng.CompileAll(context.Background()); err != nil {
		return nil, err
	}
	return eng, nil
}

// CompileAll compiles and activates every team the source lists.
func (e *Engine) CompileAll(ctx context.Context) error {
	teams, err := e.source.Teams(ctx)
	if err != nil {
		return fmt.Errorf("failed to list teams: %w", err)
	}
	for _, team := range teams {
		if err := e.Reload(ctx, team); err != nil {
			return err
		}
	}
	return nil
}

// Reload recompiles a team's document and activates the result as a new
// config version. On failure the previous version stays active and items
// keep flowing under it.
func (e *Engine) Reload(ctx context.Context, team string) error {
	version := e.registry.NextVersion(team)
	cfg, issues, err := e.resolver.Compile(ctx, team, version)
	for _, issue := range issues {
		if issue.Advisory {
			e.logger.Warn("config advisory", "team", team, "kind", issue.Kind,
				"element", issue.Element, "detail", issue.Detail)
		}
	}
	if err != nil {
		return fmt.Errorf("team %q config rejected: %w", team, err)
	}

	e.registry.Activate(cfg)
	e.logger.Info("activated config", "team", team, "version", version)
	return nil
}

// Validate resolves and validates a team's document without activating it.
func (e *Engine) Validate(ctx context.Context, team string) ([]*schema.Issue, error) {
	doc, err := e.resolver.Resolve(ctx, team)
	if err != nil {
		return nil, err
	}
	issues := validator.Validate(doc)
	return issues, validator.Error(issues)
}

// Run drives background work, currently the deferred-watch evaluator, until
// the context ends.
func (e *Engine) Run(ctx context.Context) {
	e.automation.Run(ctx)
}

// CreateItem creates a work item bound to the team's active config version.
func (e *Engine) CreateItem(ctx context.Context, spec runtime.NewItem) (*domain.WorkItem, error) {
	item, err := e.runtime.CreateItem(ctx, spec)
	if err != nil {
		return nil, err
	}
	e.collector.ObserveCreated(item)
	return item, nil
}

// GetItem loads an item by id.
func (e *Engine) GetItem(ctx context.Context, id string) (*domain.WorkItem, error) {
	return e.runtime.GetItem(ctx, id)
}

// RequestTransition moves an item to a target status under the gate checks.
func (e *Engine) RequestTransition(ctx context.Context, itemID, targetStatus, actor string) (*domain.WorkItem, error) {
	return e.runtime.RequestTransition(ctx, itemID, targetStatus, actor)
}

// RecordSignoff records an approval for (item, stage, role).
func (e *Engine) RecordSignoff(ctx context.Context, itemID, stageID, role, approver string) (*domain.WorkItem, error) {
	return e.runtime.RecordSignoff(ctx, itemID, stageID, role, approver)
}

// SetCriterion records an externally evaluated exit-criterion result.
func (e *Engine) SetCriterion(ctx context.Context, itemID, criterion string, satisfied bool) (*domain.WorkItem, error) {
	return e.runtime.SetCriterion(ctx, itemID, criterion, satisfied)
}

// Assign sets an item's assignee.
func (e *Engine) Assign(ctx context.Context, itemID, assignee string) (*domain.WorkItem, error) {
	return e.runtime.Assign(ctx, itemID, assignee)
}

// MigrateItem re-binds an item to another config version of its team.
func (e *Engine) MigrateItem(ctx context.Context, itemID string, toVersion int) (*domain.WorkItem, error) {
	return e.runtime.MigrateItem(ctx, itemID, toVersion)
}

// EmitEvent feeds an external event into the automation rules.
func (e *Engine) EmitEvent(ctx context.Context, event domain.ExternalEvent) {
	e.automation.HandleEvent(ctx, event)
}

// Registry exposes the config registry.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// Automation exposes the automation engine.
func (e *Engine) Automation() *automation.Engine { return e.automation }

// Collector exposes the metrics collector.
func (e *Engine) Collector() *metrics.Collector { return e.collector }

// Gatherer exposes the Prometheus registry backing the collector.
func (e *Engine) Gatherer() *prometheus.Registry { return e.prom }

// Source exposes the config source, for watchers.
func (e *Engine) Source() ports.ConfigSource { return e.source }
