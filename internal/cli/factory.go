package cli

import (
	"fmt"
	"log/slog"

	backend "github.com/redis/go-redis/v9"
	"github.com/stagecoach-io/stagecoach"
	"github.com/stagecoach-io/stagecoach/internal/metrics"
	"github.com/stagecoach-io/stagecoach/internal/notify"
	redisAdapter "github.com/stagecoach-io/stagecoach/pkg/adapters/redis"
)

// BuildEngine constructs a fully wired engine from settings. The returned
// cleanup closes backend connections and is safe to call once.
func BuildEngine(settings *Settings, logger *slog.Logger) (*stagecoach.Engine, func(), error) {
	opts := []stagecoach.Option{
		stagecoach.WithLogger(logger),
		stagecoach.WithAutomationTick(settings.Tick),
	}

	cleanup := func() {}

	if settings.Redis.Addr != "" {
		client := backend.NewClient(&backend.Options{
			Addr:     settings.Redis.Addr,
			Password: settings.Redis.Password,
			DB:       settings.Redis.DB,
		})
		cleanup = func() {
			if err := client.Close(); err != nil {
				logger.Warn("failed to close redis client", "err", err)
			}
		}

		store := redisAdapter.NewFromClient(client, redisAdapter.WithPrefix(settings.Redis.Prefix))
		opts = append(opts,
			stagecoach.WithStore(store),
			stagecoach.WithLocker(redisAdapter.NewLocker(client, settings.Redis.Prefix)),
		)
		logger.Info("using redis backend", "addr", settings.Redis.Addr)
	}

	if settings.WebhookURL != "" {
		opts = append(opts, stagecoach.WithNotifier(
			notify.NewWebhookNotifier(settings.WebhookURL, notify.WithLogger(logger))))
	} else {
		opts = append(opts, stagecoach.WithNotifier(notify.NewLogNotifier(logger)))
	}

	if len(settings.Thresholds) > 0 {
		thresholds := make([]metrics.Threshold, 0, len(settings.Thresholds))
		for _, t := range settings.Thresholds {
			thresholds = append(thresholds, metrics.Threshold{
				Team:        t.Team,
				Stage:       t.Stage,
				MaxDuration: t.MaxDuration,
			})
		}
		opts = append(opts, stagecoach.WithThresholds(thresholds))
	}

	eng, err := stagecoach.New(settings.ConfigDir, opts...)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return eng, cleanup, nil
}
