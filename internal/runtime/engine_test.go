package runtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stagecoach-io/stagecoach/pkg/adapters/memory"
	"github.com/stagecoach-io/stagecoach/pkg/domain"
	"github.com/stagecoach-io/stagecoach/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConfig is a four-stage workflow: build -> design -> review -> done,
// where design is skippable for low complexity and review carries an exit
// criterion plus, for high complexity, an approval gate.
func testConfig(version int) *domain.ResolvedConfig {
	return domain.NewResolvedConfig("platform", version,
		[]domain.Stage{
			{ID: "build", Name: "Build", Required: true},
			{ID: "design", Name: "Design", SkipWhen: "kind=chore"},
			{ID: "review", Name: "Review", ExitCriteria: []string{"ci_green"}},
			{ID: "done", Name: "Done", Terminal: true},
		},
		[]domain.Status{
			{ID: "todo", Stage: "build", Initial: true},
			{ID: "in_progress", Stage: "build"},
			{ID: "in_design", Stage: "design"},
			{ID: "in_review", Stage: "review"},
			{ID: "merged", Stage: "done"},
		},
		[]domain.Transition{
			{From: []string{"todo"}, To: []string{"in_progress"}},
			{From: []string{"in_progress"}, To: []string{"in_design", "in_review"}},
			{From: []string{"in_design"}, To: []string{"in_review"}},
			{From: []string{"in_review"}, To: []string{"in_progress", "merged"}},
		},
		[]domain.ComplexityLevel{
			{ID: "low", MaxWeight: 3, SkipStages: []string{"design"}},
			{ID: "high", MinWeight: 4, RequireApproval: []domain.ApprovalGate{
				{Stage: "review", Roles: []string{"tech-lead"}},
			}},
		},
		nil)
}

func newTestEngine(t *testing.T) (*Engine, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	reg.Activate(testConfig(1))
	return NewEngine(reg, memory.NewStore()), reg
}

func TestCreateItem(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	item, err := e.CreateItem(ctx, NewItem{ID: "task-1", Team: "platform", Weight: 2})
	require.NoError(t, err)

	assert.Equal(t, 1, item.ConfigVersion)
	assert.Equal(t, "todo", item.Status)
	assert.Equal(t, "low", item.Complexity, "weight resolves to a level")
	require.Len(t, item.History, 1)
	assert.Equal(t, "build", item.History[0].Stage)
	assert.Nil(t, item.History[0].ExitedAt)
}

func TestCreateItemUnknownTeam(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.CreateItem(context.Background(), NewItem{ID: "x", Team: "ghosts"})
	assert.ErrorIs(t, err, domain.ErrTeamNotFound)
}

func TestCreateItemUnknownLevel(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.CreateItem(context.Background(), NewItem{ID: "x", Team: "platform", Complexity: "epic"})
	assert.Error(t, err)
}

func TestRequestTransition(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	_, err := e.CreateItem(ctx, NewItem{ID: "task-1", Team: "platform", Weight: 5})
	require.NoError(t, err)

	item, err := e.RequestTransition(ctx, "task-1", "in_progress", "alice")
	require.NoError(t, err)
	assert.Equal(t, "in_progress", item.Status)

	require.Len(t, item.History, 2)
	assert.NotNil(t, item.History[0].ExitedAt, "previous interval is closed")
	assert.Nil(t, item.History[1].ExitedAt)
	assert.Equal(t, "in_progress", item.History[1].Status)
}

func TestRequestTransitionIllegalEdge(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	_, err := e.CreateItem(ctx, NewItem{ID: "task-1", Team: "platform", Weight: 5})
	require.NoError(t, err)

	_, err = e.RequestTransition(ctx, "task-1", "merged", "alice")
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)

	item, err := e.GetItem(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, "todo", item.Status, "rejected transition leaves the item untouched")
	assert.Len(t, item.History, 1)
}

func TestRequestTransitionUnknownItem(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.RequestTransition(context.Background(), "ghost", "in_progress", "alice")
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestApprovalGateBlocksStageExit(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	_, err := e.CreateItem(ctx, NewItem{ID: "task-1", Team: "platform", Weight: 8})
	require.NoError(t, err)

	for _, status := range []string{"in_progress", "in_design", "in_review"} {
		_, err = e.RequestTransition(ctx, "task-1", status, "alice")
		require.NoError(t, err)
	}

	// Leaving review needs the tech-lead signoff and the ci_green criterion.
	_, err = e.RequestTransition(ctx, "task-1", "merged", "alice")
	assert.ErrorIs(t, err, domain.ErrApprovalPending)

	_, err = e.RecordSignoff(ctx, "task-1", "review", "tech-lead", "tracy")
	require.NoError(t, err)

	_, err = e.RequestTransition(ctx, "task-1", "merged", "alice")
	assert.ErrorIs(t, err, domain.ErrCriteriaPending)

	_, err = e.SetCriterion(ctx, "task-1", "ci_green", true)
	require.NoError(t, err)

	item, err := e.RequestTransition(ctx, "task-1", "merged", "alice")
	require.NoError(t, err)
	assert.Equal(t, "merged", item.Status)
}

func TestGatesOnlyApplyOnStageChange(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	_, err := e.CreateItem(ctx, NewItem{ID: "task-1", Team: "platform", Weight: 8})
	require.NoError(t, err)

	// todo -> in_progress stays inside the build stage, so the review gate
	// is irrelevant and nothing blocks.
	item, err := e.RequestTransition(ctx, "task-1", "in_progress", "alice")
	require.NoError(t, err)
	assert.Equal(t, "in_progress", item.Status)
}

func TestSkipRewriteForLowComplexity(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	_, err := e.CreateItem(ctx, NewItem{ID: "task-1", Team: "platform", Weight: 1})
	require.NoError(t, err)

	_, err = e.RequestTransition(ctx, "task-1", "in_progress", "alice")
	require.NoError(t, err)

	// Low complexity skips design: the request is rewritten to the entry
	// status of the next non-skipped stage.
	item, err := e.RequestTransition(ctx, "task-1", "in_design", "alice")
	require.NoError(t, err)
	assert.Equal(t, "in_review", item.Status)
	assert.False(t, item.VisitedStage("design"))
}

func TestSkipRewriteViaAttributePredicate(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	_, err := e.CreateItem(ctx, NewItem{
		ID: "task-1", Team: "platform", Weight: 5,
		Attributes: map[string]string{"kind": "chore"},
	})
	require.NoError(t, err)

	_, err = e.RequestTransition(ctx, "task-1", "in_progress", "alice")
	require.NoError(t, err)

	item, err := e.RequestTransition(ctx, "task-1", "in_design", "alice")
	require.NoError(t, err)
	assert.Equal(t, "in_review", item.Status, "skip_when predicate matched the item attributes")
}

func TestConflictFailsFast(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	_, err := e.CreateItem(ctx, NewItem{ID: "task-1", Team: "platform", Weight: 5})
	require.NoError(t, err)

	// Hold the item's lock as a concurrent transition would.
	entry := e.locks.acquire("task-1")
	entry.mu.Lock()

	_, err = e.RequestTransition(ctx, "task-1", "in_progress", "bob")
	assert.ErrorIs(t, err, domain.ErrConflict)

	entry.mu.Unlock()
	e.locks.release("task-1")

	_, err = e.RequestTransition(ctx, "task-1", "in_progress", "bob")
	assert.NoError(t, err, "lock released, transition proceeds")
}

type recordingSubscriber struct {
	mu     sync.Mutex
	events []domain.TransitionEvent
}

func (r *recordingSubscriber) HandleTransition(ctx context.Context, event domain.TransitionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingSubscriber) all() []domain.TransitionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.TransitionEvent(nil), r.events...)
}

func TestSubscribersReceiveEvents(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	sub := &recordingSubscriber{}
	e.Subscribe(sub)

	_, err := e.CreateItem(ctx, NewItem{ID: "task-1", Team: "platform", Weight: 5})
	require.NoError(t, err)

	_, err = e.RequestTransition(ctx, "task-1", "in_progress", "alice")
	require.NoError(t, err)

	events := sub.all()
	require.Len(t, events, 1)
	assert.Equal(t, "todo", events[0].From)
	assert.Equal(t, "in_progress", events[0].To)
	assert.Equal(t, "build", events[0].FromStage)
	assert.Equal(t, "build", events[0].ToStage)
	assert.Equal(t, "alice", events[0].Actor)
	assert.Equal(t, 1, events[0].ConfigVersion)
}

func TestSlowSubscriberIsAbandoned(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	reg.Activate(testConfig(1))
	e := NewEngine(reg, memory.NewStore(), WithNotifyBudget(20*time.Millisecond))

	release := make(chan struct{})
	e.Subscribe(subscriberFunc(func(ctx context.Context, event domain.TransitionEvent) {
		<-release
	}))
	defer close(release)

	_, err := e.CreateItem(ctx, NewItem{ID: "task-1", Team: "platform", Weight: 5})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		_, err := e.RequestTransition(ctx, "task-1", "in_progress", "alice")
		assert.NoError(t, err)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("transition blocked on a hung subscriber")
	}
}

type subscriberFunc func(ctx context.Context, event domain.TransitionEvent)

func (f subscriberFunc) HandleTransition(ctx context.Context, event domain.TransitionEvent) {
	f(ctx, event)
}

func TestRecordSignoffIdempotent(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	_, err := e.CreateItem(ctx, NewItem{ID: "task-1", Team: "platform", Weight: 8})
	require.NoError(t, err)

	first, err := e.RecordSignoff(ctx, "task-1", "review", "tech-lead", "tracy")
	require.NoError(t, err)

	second, err := e.RecordSignoff(ctx, "task-1", "review", "tech-lead", "mallory")
	require.NoError(t, err)

	require.Len(t, second.Signoffs, 1)
	assert.Equal(t, "tracy", second.Signoffs[0].Approver)
	assert.Equal(t, first.Version, second.Version, "no-op signoff skips the save")
}

func TestRecordSignoffUnknownStage(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	_, err := e.CreateItem(ctx, NewItem{ID: "task-1", Team: "platform", Weight: 8})
	require.NoError(t, err)

	_, err = e.RecordSignoff(ctx, "task-1", "nowhere", "tech-lead", "tracy")
	assert.Error(t, err)
}

func TestAssign(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	_, err := e.CreateItem(ctx, NewItem{ID: "task-1", Team: "platform", Weight: 5})
	require.NoError(t, err)

	item, err := e.Assign(ctx, "task-1", "carol")
	require.NoError(t, err)
	assert.Equal(t, "carol", item.Assignee)
}

func TestMigrateItem(t *testing.T) {
	ctx := context.Background()
	e, reg := newTestEngine(t)

	_, err := e.CreateItem(ctx, NewItem{ID: "task-1", Team: "platform", Weight: 5})
	require.NoError(t, err)

	reg.Activate(testConfig(2))

	item, err := e.MigrateItem(ctx, "task-1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, item.ConfigVersion)

	_, err = e.MigrateItem(ctx, "task-1", 9)
	assert.ErrorIs(t, err, domain.ErrTeamNotFound)
}

func TestMigrateItemRejectsMissingStatus(t *testing.T) {
	ctx := context.Background()
	e, reg := newTestEngine(t)

	_, err := e.CreateItem(ctx, NewItem{ID: "task-1", Team: "platform", Weight: 5})
	require.NoError(t, err)

	// Version 2 renames the start status; the item's current status is gone.
	reg.Activate(domain.NewResolvedConfig("platform", 2,
		[]domain.Stage{{ID: "build"}},
		[]domain.Status{{ID: "backlog", Stage: "build", Initial: true}},
		nil, nil, nil))

	_, err = e.MigrateItem(ctx, "task-1", 2)
	require.Error(t, err)

	item, err := e.GetItem(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, 1, item.ConfigVersion, "failed migration leaves the binding untouched")
}

func TestItemsPinnedToConfigVersion(t *testing.T) {
	ctx := context.Background()
	e, reg := newTestEngine(t)

	_, err := e.CreateItem(ctx, NewItem{ID: "task-1", Team: "platform", Weight: 5})
	require.NoError(t, err)

	// A new active version without the todo->in_progress edge must not
	// affect the already-bound item.
	reg.Activate(domain.NewResolvedConfig("platform", 2,
		[]domain.Stage{{ID: "build"}},
		[]domain.Status{{ID: "todo", Stage: "build", Initial: true}},
		nil, nil, nil))

	item, err := e.RequestTransition(ctx, "task-1", "in_progress", "alice")
	require.NoError(t, err)
	assert.Equal(t, "in_progress", item.Status)
}
