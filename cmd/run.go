package cmd

import (
	"context"
	"time"

	"github.com/epochledger/epochledger/internal/config"
	"github.com/epochledger/epochledger/internal/logger"
	"github.com/epochledger/epochledger/internal/metrics/prometheus"
	"github.com/epochledger/epochledger/internal/shutdown"
	"github.com/epochledger/epochledger/internal/tracing"
	"github.com/epochledger/epochledger/pkg/eventBus/eventBusTypes"
	"github.com/epochledger/epochledger/pkg/ledgerJobQueue"
	"github.com/epochledger/epochledger/pkg/proofs"
	"github.com/epochledger/epochledger/pkg/rpcServer"
	"github.com/epochledger/epochledger/pkg/service/ledgerDataService"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ledger node",
	Run: func(cmd *cobra.Command, args []string) {
		initCommandFlags(cmd)
		cfg := config.NewConfig()
		ctx := context.Background()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

		shutdownTracing, err := tracing.Setup(ctx, cfg.TracingConfig)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup tracing", zap.Error(err))
		}

		lc, err := setupLedger(cfg, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup ledger", zap.Error(err))
		}

		runCtx, cancel := context.WithCancel(ctx)

		queue := ledgerJobQueue.NewLedgerJobQueue(lc.ledger, lc.sink, l)
		go queue.Process(runCtx)

		if cfg.SchedulerConfig.Enabled {
			scheduler := ledgerJobQueue.NewScheduler(queue, lc.ledger, cfg.GetSchedulerInterval(), l)
			go scheduler.Start(runCtx)
		}

		go logLedgerEvents(runCtx, lc.eventBus, l)

		lds := ledgerDataService.NewLedgerDataService(lc.store, lc.sink, l, cfg)
		var aps *proofs.AllocationProofsStore
		if cfg.LedgerConfig.ProofsEnabled {
			aps = proofs.NewAllocationProofsStore(lc.store, cfg.LedgerConfig.NodeId, l)
		}

		rpc := rpcServer.NewRpcServer(&rpcServer.RpcServerConfig{
			GrpcPort: cfg.RpcConfig.GrpcPort,
			HttpPort: cfg.RpcConfig.HttpPort,
		}, lds, aps, lc.db.PingContext, lc.sink, l, cfg)

		// RPC channel to notify the RPC server to shutdown gracefully
		rpcChannel := make(chan bool)
		if err := rpc.Start(runCtx, rpcChannel); err != nil {
			l.Sugar().Fatalw("Failed to start RPC server", zap.Error(err))
		}

		var promChannel chan bool
		if cfg.PrometheusConfig.Enabled {
			promChannel = make(chan bool)
			ps := prometheus.NewPrometheusServer(&prometheus.PrometheusServerConfig{
				Port: cfg.PrometheusConfig.Port,
			}, l)
			if err := ps.Start(promChannel); err != nil {
				l.Sugar().Fatalw("Failed to start prometheus server", zap.Error(err))
			}
		}

		l.Sugar().Infow("Started epochledger", zap.String("nodeId", cfg.LedgerConfig.NodeId))

		gracefulShutdown := shutdown.CreateGracefulShutdownChannel()

		done := make(chan bool)
		shutdown.ListenForShutdown(gracefulShutdown, done, func() {
			l.Sugar().Info("Shutting down...")
			cancel()
			rpcChannel <- true
			if promChannel != nil {
				promChannel <- true
			}
			queue.Close()
			if err := shutdownTracing(context.Background()); err != nil {
				l.Sugar().Errorw("Failed to flush traces", zap.Error(err))
			}
			_ = lc.db.Close()
		}, time.Second*5, l)
	},
}

// logLedgerEvents records every epoch close so operators can follow publication in the logs.
func logLedgerEvents(ctx context.Context, eb eventBusTypes.IEventBus, l *zap.Logger) {
	consumer := &eventBusTypes.Consumer{
		Id:      eventBusTypes.ConsumerId(uuid.NewString()),
		Context: ctx,
		Channel: make(chan *eventBusTypes.Event, 100),
	}
	eb.Subscribe(consumer)
	defer eb.Unsubscribe(consumer)

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-consumer.Channel:
			if data, ok := event.Data.(*eventBusTypes.EpochClosedData); ok {
				l.Sugar().Infow("Epoch published",
					zap.Uint64("epochId", data.EpochId),
					zap.Int64("poolTotalCredits", data.PoolTotalCredits),
					zap.String("allocationSetHash", data.AllocationSetHash),
					zap.Int("payoutCount", data.PayoutCount),
				)
				continue
			}
			l.Sugar().Debugw("Ledger event", zap.String("name", event.Name))
		}
	}
}
