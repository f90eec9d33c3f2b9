// Package metrics derives cycle time, per-stage durations and loop-back
// rates from TransitionEvents. Threshold breaches are delivered as events to
// a sink, never enforced here. Reacting to an alert is an automation rule's
// job, which keeps the collector free of side-effecting logic.
package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stagecoach-io/stagecoach/internal/logging"
	"github.com/stagecoach-io/stagecoach/pkg/domain"
	"github.com/stagecoach-io/stagecoach/pkg/registry"
)

// AlertSink receives threshold-breach events.
type AlertSink func(domain.ExternalEvent)

// Threshold compares a tracked metric against a limit. Zero-valued fields
// widen the scope: an empty Team applies to every team, an empty Stage to
// every stage.
type Threshold struct {
	Team        string
	Stage       string
	MaxDuration time.Duration // stage residence limit
}

// itemStats tracks one item's progress through its stages.
type itemStats struct {
	team         string
	start        time.Time
	stageEntered map[string]time.Time
	currentStage string
	visited      map[string]bool
	transitions  int
	loopbacks    int
	cycleTime    time.Duration
	finished     bool
}

// Collector implements ports.TransitionSubscriber.
type Collector struct {
	registry   *registry.Registry
	thresholds []Threshold
	sink       AlertSink
	logger     *slog.Logger

	mu    sync.Mutex
	items map[string]*itemStats

	transitionsTotal *prometheus.CounterVec
	loopbacksTotal   *prometheus.CounterVec
	stageSeconds     *prometheus.HistogramVec
	cycleSeconds     *prometheus.HistogramVec
}

// Option configures the collector.
type Option func(*Collector)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collector) { c.logger = logger }
}

// WithThresholds installs alert thresholds.
func WithThresholds(thresholds []Threshold) Option {
	return func(c *Collector) { c.thresholds = thresholds }
}

// WithAlertSink wires where threshold-breach events go, typically the
// automation engine's external-event input.
func WithAlertSink(sink AlertSink) Option {
	return func(c *Collector) { c.sink = sink }
}

// NewCollector creates a collector and registers its instruments.
func NewCollector(reg *registry.Registry, promReg prometheus.Registerer, opts ...Option) *Collector {
	c := &Collector{
		registry: reg,
		logger:   logging.NewNop(),
		items:    make(map[string]*itemStats),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stagecoach_transitions_total",
			Help: "Applied transitions by team and stage edge.",
		}, []string{"team", "from_stage", "to_stage"}),
		loopbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stagecoach_loopbacks_total",
			Help: "Transitions that re-entered a previously visited stage.",
		}, []string{"team"}),
		stageSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stagecoach_stage_duration_seconds",
			Help:    "Time items spend per stage.",
			Buckets: prometheus.ExponentialBuckets(60, 4, 10),
		}, []string{"team", "stage"}),
		cycleSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stagecoach_cycle_time_seconds",
			Help:    "First non-terminal entry to terminal entry.",
			Buckets: prometheus.ExponentialBuckets(3600, 2, 12),
		}, []string{"team"}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if promReg != nil {
		promReg.MustRegister(c.transitionsTotal, c.loopbacksTotal, c.stageSeconds, c.cycleSeconds)
	}
	return c
}

// ObserveCreated seeds the item's timeline so the first stage's duration is
// measured from creation, not from the first transition.
func (c *Collector) ObserveCreated(item *domain.WorkItem) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stage := ""
	if len(item.History) > 0 {
		stage = item.History[0].Stage
	}
	c.items[item.ID] = &itemStats{
		team:         item.Team,
		start:        item.CreatedAt,
		stageEntered: map[string]time.Time{stage: item.CreatedAt},
		currentStage: stage,
		visited:      map[string]bool{stage: true},
	}
}

// HandleTransition implements ports.TransitionSubscriber.
func (c *Collector) HandleTransition(ctx context.Context, event domain.TransitionEvent) {
	c.mu.Lock()

	stats, ok := c.items[event.Item]
	if !ok {
		// Item predates the collector; start tracking mid-flight.
		stats = &itemStats{
			team:         event.Team,
			start:        event.At,
			stageEntered: map[string]time.Time{event.FromStage: event.At},
			currentStage: event.FromStage,
			visited:      map[string]bool{event.FromStage: true},
		}
		c.items[event.Item] = stats
	}

	stats.transitions++
	c.transitionsTotal.WithLabelValues(event.Team, event.FromStage, event.ToStage).Inc()

	var stageDuration time.Duration
	stageChanged := event.FromStage != event.ToStage
	if stageChanged {
		if entered, ok := stats.stageEntered[event.FromStage]; ok {
			stageDuration = event.At.Sub(entered)
			c.stageSeconds.WithLabelValues(event.Team, event.FromStage).Observe(stageDuration.Seconds())
		}
		if stats.visited[event.ToStage] {
			stats.loopbacks++
			c.loopbacksTotal.WithLabelValues(event.Team).Inc()
		}
		stats.stageEntered[event.ToStage] = event.At
		stats.visited[event.ToStage] = true
		stats.currentStage = event.ToStage
	}

	if !stats.finished && c.isTerminal(event) {
		stats.finished = true
		stats.cycleTime = event.At.Sub(stats.start)
		c.cycleSeconds.WithLabelValues(event.Team).Observe(stats.cycleTime.Seconds())
	}

	c.mu.Unlock()

	if stageChanged && stageDuration > 0 {
		c.checkThresholds(event, stageDuration)
	}
}

func (c *Collector) isTerminal(event domain.TransitionEvent) bool {
	cfg, ok := c.registry.Version(event.Team, event.ConfigVersion)
	if !ok {
		return false
	}
	stage, ok := cfg.Stage(event.ToStage)
	return ok && stage.Terminal
}

// checkThresholds emits a metric_threshold event per breached limit. The
// sink runs outside the collector lock.
func (c *Collector) checkThresholds(event domain.TransitionEvent, stageDuration time.Duration) {
	if c.sink == nil {
		return
	}

	for _, t := range c.thresholds {
		if t.Team != "" && t.Team != event.Team {
			continue
		}
		if t.Stage != "" && t.Stage != event.FromStage {
			continue
		}
		if t.MaxDuration <= 0 || stageDuration <= t.MaxDuration {
			continue
		}

		c.logger.Info("stage duration threshold breached",
			"team", event.Team, "stage", event.FromStage,
			"duration", stageDuration, "max", t.MaxDuration)

		c.sink(domain.ExternalEvent{
			Type: domain.EventMetricThreshold,
			Item: event.Item,
			Team: event.Team,
			Payload: map[string]any{
				"stage":    event.FromStage,
				"duration": stageDuration.String(),
				"max":      t.MaxDuration.String(),
			},
			At: event.At,
		})
	}
}

// CycleTime returns the measured cycle time for a finished item.
func (c *Collector) CycleTime(itemID string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.items[itemID]
	if !ok || !stats.finished {
		return 0, false
	}
	return stats.cycleTime, true
}

// LoopbackRate returns the fraction of a team's transitions that re-entered
// a previously visited stage.
func (c *Collector) LoopbackRate(team string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var transitions, loopbacks int
	for _, stats := range c.items {
		if stats.team != team {
			continue
		}
		transitions += stats.transitions
		loopbacks += stats.loopbacks
	}
	if transitions == 0 {
		return 0
	}
	return float64(loopbacks) / float64(transitions)
}

// TeamReport aggregates a team's tracked items for reporting.
type TeamReport struct {
	Team         string
	Items        int
	Finished     int
	Transitions  int
	LoopbackRate float64
	AvgCycleTime time.Duration
}

// Report summarizes a team's tracked items.
func (c *Collector) Report(team string) TeamReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	report := TeamReport{Team: team}
	var cycleSum time.Duration
	var loopbacks int
	for _, stats := range c.items {
		if stats.team != team {
			continue
		}
		report.Items++
		report.Transitions += stats.transitions
		loopbacks += stats.loopbacks
		if stats.finished {
			report.Finished++
			cycleSum += stats.cycleTime
		}
	}
	if report.Finished > 0 {
		report.AvgCycleTime = cycleSum / time.Duration(report.Finished)
	}
	if report.Transitions > 0 {
		report.LoopbackRate = float64(loopbacks) / float64(report.Transitions)
	}
	return report
}
