package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	nlogger "github.com/neutron-org/neutron-logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/parity-sale/relay-queue/internal/app"
	"github.com/parity-sale/relay-queue/internal/config"
	relayhttp "github.com/parity-sale/relay-queue/internal/http"
	"github.com/parity-sale/relay-queue/internal/relay"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the relay queue consumer and the monitoring api",
	Run: func(cmd *cobra.Command, args []string) {
		startRelayQueue()
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}

func startRelayQueue() {
	logRegistry, err := nlogger.NewRegistry(app.LoggerContexts()...)
	if err != nil {
		log.Fatalf("couldn't initialize loggers registry: %s", err)
	}
	logger := logRegistry.Get(app.MainContext)
	logger.Info("relay-queue starts...", zap.String("version", app.Version))

	cfg, err := config.NewRelayQueueConfig(logger)
	if err != nil {
		logger.Fatal("cannot initialize relay queue config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}

	// The storage is shared by the consumer and the api because of the LevelDB single process restriction.
	store, err := app.NewDefaultStorage(ctx, cfg, logRegistry.Get(app.StorageContext))
	if err != nil {
		logger.Fatal("Failed to create NewDefaultStorage", zap.Error(err))
	}
	defer func(store relay.QueueStore) {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage", zap.Error(err))
		}
	}(store)

	deps, err := app.NewDefaultDependencyContainer(ctx, cfg, logRegistry)
	if err != nil {
		logger.Fatal("Failed to get NewDefaultDependencyContainer", zap.Error(err))
	}
	defer deps.Close()

	blocks, err := deps.GetBlockSource().Blocks(ctx)
	if err != nil {
		logger.Fatal("Failed to subscribe to new blocks", zap.Error(err))
	}

	queueConsumer := app.NewDefaultConsumer(cfg, logRegistry, store, deps)

	wg.Add(1)
	go func() {
		defer wg.Done()

		if err := queueConsumer.Run(ctx, blocks); err != nil {
			logger.Error("QueueConsumer exited with an error", zap.Error(err))
			cancel()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()

		if err := relayhttp.Run(ctx, logRegistry, store, cfg.ListenAddr); err != nil {
			logger.Error("WebServer exited with an error", zap.Error(err))
			cancel()
		}
	}()

	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

		select {
		case s := <-sigs:
			logger.Info("Received termination signal, gracefully shutting down...",
				zap.String("signal", s.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	wg.Wait()
	cancel()
}
