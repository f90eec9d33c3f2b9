// Package runtime implements the Transition Engine: the authoritative
// runtime that accepts "move item X to status Y" requests, checks legality
// against the item's bound ResolvedConfig, applies side effects, and emits
// TransitionEvents to subscribers.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stagecoach-io/stagecoach/internal/logging"
	"github.com/stagecoach-io/stagecoach/pkg/approval"
	"github.com/stagecoach-io/stagecoach/pkg/domain"
	"github.com/stagecoach-io/stagecoach/pkg/ports"
	"github.com/stagecoach-io/stagecoach/pkg/registry"
)

const defaultNotifyBudget = 2 * time.Second

// Engine applies transitions transactionally. Updates to a single item are
// linearized via a per-item exclusive lock; excess concurrent transition
// requests for the same item fail fast with domain.ErrConflict.
type Engine struct {
	registry *registry.Registry
	store    ports.ItemStore
	locks    *itemLocks
	locker   ports.DistributedLocker // optional, for multi-replica setups
	lockTTL  time.Duration

	subMu        sync.RWMutex
	subscribers  []ports.TransitionSubscriber
	notifyBudget time.Duration

	logger *slog.Logger
	now    func() time.Time
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithLocker enables distributed locking for item mutations.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) { e.locker = locker }
}

// WithNotifyBudget bounds how long one subscriber may run per event.
func WithNotifyBudget(budget time.Duration) Option {
	return func(e *Engine) { e.notifyBudget = budget }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a Transition Engine over a config registry and an item
// store.
func NewEngine(reg *registry.Registry, store ports.ItemStore, opts ...Option) *Engine {
	e := &Engine{
		registry:     reg,
		store:        store,
		locks:        newItemLocks(),
		lockTTL:      30 * time.Second,
		notifyBudget: defaultNotifyBudget,
		logger:       logging.NewNop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Subscribe registers a TransitionSubscriber. Subscribers are invoked
// synchronously, in registration order, each under the notify budget.
func (e *Engine) Subscribe(sub ports.TransitionSubscriber) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.subscribers = append(e.subscribers, sub)
}

// Registry exposes the config registry, read-only by convention.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// NewItem describes an item to create.
type NewItem struct {
	ID         string
	Team       string
	Complexity string // level id; empty resolves via Weight
	Weight     int
	Assignee   string
	Attributes map[string]string
}

// CreateItem binds a fresh item to the team's active config version and
// places it on the initial status.
func (e *Engine) CreateItem(ctx context.Context, spec NewItem) (*domain.WorkItem, error) {
	cfg, ok := e.registry.Active(spec.Team)
	if !ok {
		return nil, fmt.Errorf("team %q: %w", spec.Team, domain.ErrTeamNotFound)
	}

	level := spec.Complexity
	if level == "" {
		if l, ok := cfg.LevelForWeight(spec.Weight); ok {
			level = l.ID
		}
	} else if _, ok := cfg.Level(level); !ok {
		return nil, fmt.Errorf("unknown complexity level %q", level)
	}

	start := cfg.InitialStatus()
	stage, _ := cfg.StageOf(start)
	now := e.now().UTC()

	item := &domain.WorkItem{
		ID:            spec.ID,
		Team:          spec.Team,
		ConfigVersion: cfg.Version,
		Status:        start,
		Complexity:    level,
		Assignee:      spec.Assignee,
		Attributes:    spec.Attributes,
		Criteria:      make(map[string]bool),
		History: []domain.StatusInterval{
			{Status: start, Stage: stage.ID, EnteredAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := e.store.Save(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}
	return item, nil
}

// GetItem loads an item by id.
func (e *Engine) GetItem(ctx context.Context, id string) (*domain.WorkItem, error) {
	return e.store.Load(ctx, id)
}

// ConfigFor returns the ResolvedConfig an item is bound to.
func (e *Engine) ConfigFor(item *domain.WorkItem) (*domain.ResolvedConfig, error) {
	cfg, ok := e.registry.Version(item.Team, item.ConfigVersion)
	if !ok {
		return nil, fmt.Errorf("team %q version %d: %w", item.Team, item.ConfigVersion, domain.ErrTeamNotFound)
	}
	return cfg, nil
}

// RequestTransition moves an item to targetStatus if the edge is legal, the
// departing stage's gates are satisfied, and no other transition for the item
// is in flight. The TransitionEvent is delivered to subscribers before the
// call returns, after the item lock is released.
func (e *Engine) RequestTransition(ctx context.Context, itemID, targetStatus, actor string) (*domain.WorkItem, error) {
	item, event, err := e.applyTransition(ctx, itemID, targetStatus, actor)
	if err != nil {
		return nil, err
	}

	e.publish(event)
	return item, nil
}

// applyTransition performs the locked portion: legality check, gate checks,
// history update and persistence. The item lock is released before returning
// so slow subscribers can never hold it.
func (e *Engine) applyTransition(ctx context.Context, itemID, targetStatus, actor string) (*domain.WorkItem, domain.TransitionEvent, error) {
	entry := e.locks.acquire(itemID)
	defer e.locks.release(itemID)

	if !entry.mu.TryLock() {
		return nil, domain.TransitionEvent{}, fmt.Errorf("item %q: %w", itemID, domain.ErrConflict)
	}
	defer entry.mu.Unlock()

	if e.locker != nil {
		unlock, err := e.locker.Lock(ctx, itemID, e.lockTTL)
		if err != nil {
			return nil, domain.TransitionEvent{}, fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				e.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"item", itemID, "err", err)
			}
		}()
	}

	item, err := e.store.Load(ctx, itemID)
	if err != nil {
		return nil, domain.TransitionEvent{}, err
	}

	cfg, err := e.ConfigFor(item)
	if err != nil {
		return nil, domain.TransitionEvent{}, err
	}

	target := e.rewriteSkippedTarget(cfg, item, targetStatus)

	if !cfg.CanTransition(item.Status, target) {
		return nil, domain.TransitionEvent{}, fmt.Errorf("%s -> %s: %w", item.Status, target, domain.ErrIllegalTransition)
	}

	fromStage, _ := cfg.StageOf(item.Status)
	toStage, _ := cfg.StageOf(target)

	if fromStage.ID != toStage.ID {
		if err := e.checkStageExit(cfg, item, fromStage); err != nil {
			return nil, domain.TransitionEvent{}, err
		}
	}

	now := e.now().UTC()
	from := item.Status

	for i := range item.History {
		if item.History[i].ExitedAt == nil {
			t := now
			item.History[i].ExitedAt = &t
		}
	}
	item.History = append(item.History, domain.StatusInterval{
		Status:    target,
		Stage:     toStage.ID,
		EnteredAt: now,
	})
	item.Status = target
	item.UpdatedAt = now

	if err := e.store.Save(ctx, item); err != nil {
		return nil, domain.TransitionEvent{}, err
	}

	event := domain.TransitionEvent{
		Item:          item.ID,
		Team:          item.Team,
		ConfigVersion: item.ConfigVersion,
		From:          from,
		To:            target,
		FromStage:     fromStage.ID,
		ToStage:       toStage.ID,
		Actor:         actor,
		At:            now,
	}
	return item, event, nil
}

// rewriteSkippedTarget applies complexity-driven stage skipping: when the
// target status enters a stage the item may skip, the request is rewritten to
// the entry status of the nearest following non-skipped stage.
func (e *Engine) rewriteSkippedTarget(cfg *domain.ResolvedConfig, item *domain.WorkItem, target string) string {
	level, _ := cfg.Level(item.Complexity)

	current := target
	for {
		stage, ok := cfg.StageOf(current)
		if !ok || !e.stageSkipped(stage, level, item) {
			return current
		}
		next, ok := cfg.StageAfter(stage.ID)
		if !ok {
			return current
		}
		entry, ok := cfg.EntryStatus(next.ID)
		if !ok {
			return current
		}
		e.logger.Debug("rewriting transition target past skipped stage",
			"item", item.ID, "skipped_stage", stage.ID, "target", entry)
		current = entry
	}
}

// stageSkipped decides whether an item may skip a stage. Required stages are
// never skipped; otherwise the complexity level's skip list or the stage's
// own attribute predicate applies.
func (e *Engine) stageSkipped(stage domain.Stage, level domain.ComplexityLevel, item *domain.WorkItem) bool {
	if stage.Required || stage.Terminal {
		return false
	}
	if level.Skips(stage.ID) {
		return true
	}
	return evalSkipPredicate(stage.SkipWhen, item.Attributes)
}

// checkStageExit enforces approval gates and exit-criteria flags when a
// transition leaves a stage.
func (e *Engine) checkStageExit(cfg *domain.ResolvedConfig, item *domain.WorkItem, stage domain.Stage) error {
	if level, ok := cfg.Level(item.Complexity); ok {
		result := approval.Evaluate(level, stage.ID, item)
		if result.Required && !result.Satisfied {
			return fmt.Errorf("stage %q missing roles %v: %w", stage.ID, result.Missing, domain.ErrApprovalPending)
		}
	}

	for _, criterion := range stage.ExitCriteria {
		if !item.Criteria[criterion] {
			return fmt.Errorf("stage %q criterion %q: %w", stage.ID, criterion, domain.ErrCriteriaPending)
		}
	}
	return nil
}

// RecordSignoff records an approval for (item, stage, role). Recording the
// same role twice is a no-op. The stage must exist in the item's config.
func (e *Engine) RecordSignoff(ctx context.Context, itemID, stageID, role, approver string) (*domain.WorkItem, error) {
	return e.withItem(ctx, itemID, func(cfg *domain.ResolvedConfig, item *domain.WorkItem) (bool, error) {
		if _, ok := cfg.Stage(stageID); !ok {
			return false, fmt.Errorf("unknown stage %q", stageID)
		}
		added := approval.Record(item, stageID, role, approver, e.now().UTC())
		return added, nil
	})
}

// SetCriterion records an externally-evaluated checklist result on the item.
func (e *Engine) SetCriterion(ctx context.Context, itemID, criterion string, satisfied bool) (*domain.WorkItem, error) {
	return e.withItem(ctx, itemID, func(cfg *domain.ResolvedConfig, item *domain.WorkItem) (bool, error) {
		if item.Criteria == nil {
			item.Criteria = make(map[string]bool)
		}
		if current, ok := item.Criteria[criterion]; ok && current == satisfied {
			return false, nil
		}
		item.Criteria[criterion] = satisfied
		return true, nil
	})
}

// Assign sets the item's assignee, used by `assign` automation actions.
func (e *Engine) Assign(ctx context.Context, itemID, assignee string) (*domain.WorkItem, error) {
	return e.withItem(ctx, itemID, func(cfg *domain.ResolvedConfig, item *domain.WorkItem) (bool, error) {
		if item.Assignee == assignee {
			return false, nil
		}
		item.Assignee = assignee
		return true, nil
	})
}

// MigrateItem re-binds an item to a newer config version. The item's current
// status must still exist there; otherwise the migration is rejected.
func (e *Engine) MigrateItem(ctx context.Context, itemID string, toVersion int) (*domain.WorkItem, error) {
	return e.withItem(ctx, itemID, func(cfg *domain.ResolvedConfig, item *domain.WorkItem) (bool, error) {
		next, ok := e.registry.Version(item.Team, toVersion)
		if !ok {
			return false, fmt.Errorf("team %q version %d: %w", item.Team, toVersion, domain.ErrTeamNotFound)
		}
		if _, ok := next.Status(item.Status); !ok {
			return false, fmt.Errorf("status %q does not exist in version %d", item.Status, toVersion)
		}
		item.ConfigVersion = toVersion
		return true, nil
	})
}

// withItem runs a mutation under the item's exclusive lock. Unlike
// transitions, these bookkeeping operations queue rather than fail fast.
// The mutation returns whether anything changed; unchanged items skip the
// save so idempotent operations stay version-stable.
func (e *Engine) withItem(ctx context.Context, itemID string, fn func(*domain.ResolvedConfig, *domain.WorkItem) (bool, error)) (*domain.WorkItem, error) {
	entry := e.locks.acquire(itemID)
	defer e.locks.release(itemID)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	item, err := e.store.Load(ctx, itemID)
	if err != nil {
		return nil, err
	}

	cfg, err := e.ConfigFor(item)
	if err != nil {
		return nil, err
	}

	changed, err := fn(cfg, item)
	if err != nil {
		return nil, err
	}
	if !changed {
		return item, nil
	}

	item.UpdatedAt = e.now().UTC()
	if err := e.store.Save(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}
