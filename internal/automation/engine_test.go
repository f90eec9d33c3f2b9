package automation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stagecoach-io/stagecoach/pkg/domain"
	"github.com/stagecoach-io/stagecoach/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRuntime is a minimal Transitioner: it tracks items in a map and
// records every transition request.
type fakeRuntime struct {
	mu          sync.Mutex
	items       map[string]*domain.WorkItem
	transitions []string // "item:to" in call order
	rejectNext  bool
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{items: make(map[string]*domain.WorkItem)}
}

func (f *fakeRuntime) put(item *domain.WorkItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[item.ID] = item
}

func (f *fakeRuntime) RequestTransition(ctx context.Context, itemID, targetStatus, actor string) (*domain.WorkItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.transitions = append(f.transitions, itemID+":"+targetStatus)
	if f.rejectNext {
		f.rejectNext = false
		return nil, domain.ErrIllegalTransition
	}
	item, ok := f.items[itemID]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	item.Status = targetStatus
	return item, nil
}

func (f *fakeRuntime) GetItem(ctx context.Context, id string) (*domain.WorkItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return nil, fmt.Errorf("item %q: %w", id, domain.ErrItemNotFound)
	}
	return item, nil
}

func (f *fakeRuntime) Assign(ctx context.Context, itemID, assignee string) (*domain.WorkItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[itemID]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	item.Assignee = assignee
	return item, nil
}

func (f *fakeRuntime) requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.transitions...)
}

func automationConfig() *domain.ResolvedConfig {
	return domain.NewResolvedConfig("platform", 1,
		[]domain.Stage{
			{ID: "build"},
			{ID: "deploy"},
		},
		[]domain.Status{
			{ID: "todo", Stage: "build", Initial: true},
			{ID: "in_progress", Stage: "build"},
			{ID: "canary", Stage: "deploy"},
			{ID: "deployed", Stage: "deploy"},
		},
		[]domain.Transition{
			{From: []string{domain.Wildcard}, To: []string{"todo", "in_progress", "canary", "deployed"}},
		},
		nil,
		[]domain.AutomationRule{
			{
				ID:      "assign-on-start",
				Trigger: domain.Trigger{Kind: domain.TriggerTransition, To: []string{"in_progress"}},
				Actions: []domain.Action{
					{Type: domain.ActionAssign, Params: map[string]any{"assignee": "bot"}},
				},
			},
			{
				ID:       "canary-bake",
				Trigger:  domain.Trigger{Kind: domain.TriggerTransition, To: []string{"canary"}},
				Duration: time.Hour,
				BreakOn:  []string{domain.EventAlertFired},
				Actions: []domain.Action{
					{Type: domain.ActionAutoTransition, Params: map[string]any{"to": "deployed"}},
				},
				OnBreak: &domain.Action{
					Type: domain.ActionRollback, Params: map[string]any{"to": "in_progress"},
				},
			},
			{
				ID:      "note-blocked",
				Trigger: domain.Trigger{Kind: domain.TriggerEvent, Event: domain.EventBlocked},
				Actions: []domain.Action{
					{Type: domain.ActionAssign, Params: map[string]any{"assignee": "triage"}},
				},
			},
		})
}

type fixture struct {
	engine  *Engine
	runtime *fakeRuntime
	now     time.Time
	mu      sync.Mutex
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := registry.New()
	reg.Activate(automationConfig())

	f := &fixture{
		runtime: newFakeRuntime(),
		now:     time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	f.engine = NewEngine(reg, f.runtime, WithClock(f.clock))
	return f
}

func (f *fixture) transitionEvent(item, from, to string) domain.TransitionEvent {
	return domain.TransitionEvent{
		Item: item, Team: "platform", ConfigVersion: 1,
		From: from, To: to, At: f.clock(),
	}
}

func TestImmediateRuleFires(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.runtime.put(&domain.WorkItem{ID: "task-1", Team: "platform", ConfigVersion: 1, Status: "in_progress"})

	f.engine.HandleTransition(ctx, f.transitionEvent("task-1", "todo", "in_progress"))

	item, err := f.runtime.GetItem(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, "bot", item.Assignee)
	assert.False(t, f.engine.Armed("task-1", "assign-on-start"), "immediate rules never arm")
}

func TestDeferredRuleFiresAfterDuration(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.runtime.put(&domain.WorkItem{ID: "task-1", Team: "platform", ConfigVersion: 1, Status: "canary"})

	f.engine.HandleTransition(ctx, f.transitionEvent("task-1", "in_progress", "canary"))
	require.True(t, f.engine.Armed("task-1", "canary-bake"))

	f.advance(40 * time.Minute)
	f.engine.Evaluate(ctx)
	assert.Empty(t, f.runtime.requested(), "duration not yet elapsed")
	assert.True(t, f.engine.Armed("task-1", "canary-bake"))

	f.advance(25 * time.Minute)
	f.engine.Evaluate(ctx)
	assert.Equal(t, []string{"task-1:deployed"}, f.runtime.requested())
	assert.False(t, f.engine.Armed("task-1", "canary-bake"))

	f.engine.Evaluate(ctx)
	assert.Len(t, f.runtime.requested(), 1, "a fired watch does not fire again")
}

func TestBreakEventFiresOnBreakExactlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.runtime.put(&domain.WorkItem{ID: "task-1", Team: "platform", ConfigVersion: 1, Status: "canary"})

	f.engine.HandleTransition(ctx, f.transitionEvent("task-1", "in_progress", "canary"))

	f.advance(40 * time.Minute)
	f.engine.HandleEvent(ctx, domain.ExternalEvent{
		Type: domain.EventAlertFired, Item: "task-1", At: f.clock(),
	})

	assert.Equal(t, []string{"task-1:in_progress"}, f.runtime.requested(), "on-break rollback fired")
	assert.False(t, f.engine.Armed("task-1", "canary-bake"))

	// Neither a second break event nor elapsed time fires anything further.
	f.engine.HandleEvent(ctx, domain.ExternalEvent{
		Type: domain.EventAlertFired, Item: "task-1", At: f.clock(),
	})
	f.advance(time.Hour)
	f.engine.Evaluate(ctx)
	assert.Len(t, f.runtime.requested(), 1)
}

func TestBreakEventScopedToItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.runtime.put(&domain.WorkItem{ID: "task-1", Team: "platform", ConfigVersion: 1, Status: "canary"})

	f.engine.HandleTransition(ctx, f.transitionEvent("task-1", "in_progress", "canary"))

	f.engine.HandleEvent(ctx, domain.ExternalEvent{
		Type: domain.EventAlertFired, Item: "other-item", At: f.clock(),
	})
	assert.True(t, f.engine.Armed("task-1", "canary-bake"), "a different item's alert is not a break")
}

func TestTransitionAwayDisarmsSilently(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.runtime.put(&domain.WorkItem{ID: "task-1", Team: "platform", ConfigVersion: 1, Status: "canary"})

	f.engine.HandleTransition(ctx, f.transitionEvent("task-1", "in_progress", "canary"))
	require.True(t, f.engine.Armed("task-1", "canary-bake"))

	f.engine.HandleTransition(ctx, f.transitionEvent("task-1", "canary", "in_progress"))
	assert.False(t, f.engine.Armed("task-1", "canary-bake"))
	assert.Empty(t, f.runtime.requested(), "an intentional move is not a break")
}

func TestRearmReplacesWatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.runtime.put(&domain.WorkItem{ID: "task-1", Team: "platform", ConfigVersion: 1, Status: "canary"})

	f.engine.HandleTransition(ctx, f.transitionEvent("task-1", "in_progress", "canary"))

	// Re-entering the watched status restarts the bake from the new entry.
	f.advance(50 * time.Minute)
	f.engine.HandleTransition(ctx, f.transitionEvent("task-1", "in_progress", "canary"))

	f.advance(30 * time.Minute)
	f.engine.Evaluate(ctx)
	assert.Empty(t, f.runtime.requested(), "clock restarted on re-arm")

	f.advance(31 * time.Minute)
	f.engine.Evaluate(ctx)
	assert.Equal(t, []string{"task-1:deployed"}, f.runtime.requested())
}

func TestRejectedFireIsDiscarded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.runtime.put(&domain.WorkItem{ID: "task-1", Team: "platform", ConfigVersion: 1, Status: "canary"})
	f.runtime.rejectNext = true

	f.engine.HandleTransition(ctx, f.transitionEvent("task-1", "in_progress", "canary"))
	f.advance(61 * time.Minute)
	f.engine.Evaluate(ctx)

	assert.Len(t, f.runtime.requested(), 1, "one attempt, no retry")
	assert.False(t, f.engine.Armed("task-1", "canary-bake"))

	f.engine.Evaluate(ctx)
	assert.Len(t, f.runtime.requested(), 1)
}

func TestDueWatchDiscardedWhenItemMoved(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.runtime.put(&domain.WorkItem{ID: "task-1", Team: "platform", ConfigVersion: 1, Status: "canary"})

	f.engine.HandleTransition(ctx, f.transitionEvent("task-1", "in_progress", "canary"))

	// The item moved through a path the engine did not observe.
	item, err := f.runtime.GetItem(ctx, "task-1")
	require.NoError(t, err)
	item.Status = "deployed"

	f.advance(61 * time.Minute)
	f.engine.Evaluate(ctx)
	assert.Empty(t, f.runtime.requested(), "stale watch is discarded, not fired")
}

func TestEventRuleFiresImmediately(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.runtime.put(&domain.WorkItem{ID: "task-1", Team: "platform", ConfigVersion: 1, Status: "in_progress"})

	f.engine.HandleEvent(ctx, domain.ExternalEvent{
		Type: domain.EventBlocked, Item: "task-1", At: f.clock(),
	})

	item, err := f.runtime.GetItem(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, "triage", item.Assignee)
}

func TestUnknownConfigVersionIgnored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.runtime.put(&domain.WorkItem{ID: "task-1", Team: "platform", ConfigVersion: 7, Status: "canary"})

	event := f.transitionEvent("task-1", "in_progress", "canary")
	event.ConfigVersion = 7
	f.engine.HandleTransition(ctx, event)

	assert.False(t, f.engine.Armed("task-1", "canary-bake"))
}
