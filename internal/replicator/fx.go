package replicator

import (
	"context"
	"time"

	"go.uber.org/fx"

	"github.com/smallbiznis/branchledger/internal/config"
	"github.com/smallbiznis/branchledger/internal/pos"
)

var Module = fx.Module("replicator",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(wireTrigger),
	fx.Invoke(StartWorker),
)

func ProvideConfig(cfg config.Config) Config {
	return Config{
		SweepInterval: time.Duration(cfg.SyncIntervalSeconds) * time.Second,
		PushTimeout:   time.Duration(cfg.SyncPushTimeoutSeconds) * time.Second,
		BatchSize:     cfg.SyncBatchSize,
	}.withDefaults()
}

// wireTrigger lets a sale commit nudge replication without the POS
// service depending on this package.
func wireTrigger(svc *pos.Service, w *Worker) {
	svc.SetSyncTrigger(w)
}

func StartWorker(lc fx.Lifecycle, w *Worker) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go w.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
