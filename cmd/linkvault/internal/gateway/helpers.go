package gateway

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tinyland-inc/linkvault/cmd/linkvault/internal"
	"github.com/tinyland-inc/linkvault/pkg/bus"
	"github.com/tinyland-inc/linkvault/pkg/channels"
	"github.com/tinyland-inc/linkvault/pkg/logger"
	"github.com/tinyland-inc/linkvault/pkg/relay"
	"github.com/tinyland-inc/linkvault/pkg/vault"
)

func gatewayCmd(debug bool) error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("🔍 Debug mode enabled")
	}

	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if cfg.Logging.File != "" {
		if err := logger.SetLogFile(cfg.Logging.File); err != nil {
			return fmt.Errorf("error opening log file: %w", err)
		}
	}

	store, err := vault.Open(cfg.StorePath())
	if err != nil {
		return fmt.Errorf("error opening vault: %w", err)
	}

	fmt.Printf("\n%s Vault Status:\n", internal.Logo)
	fmt.Printf("  • Store: %s\n", cfg.StorePath())
	fmt.Printf("  • Mappings: %d loaded\n", store.Len())

	logger.InfoCF("gateway", "Vault opened", map[string]any{
		"path":     cfg.StorePath(),
		"mappings": store.Len(),
	})

	msgBus := bus.NewMessageBus()
	relayLoop := relay.New(cfg, msgBus, store)

	channelManager, err := channels.NewManager(cfg, msgBus)
	if err != nil {
		return fmt.Errorf("error creating channel manager: %w", err)
	}
	relayLoop.SetChannelManager(channelManager)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := channelManager.Start(ctx); err != nil {
		return fmt.Errorf("error starting channels: %w", err)
	}

	if cfg.Snapshot.Enabled {
		snapshotter, err := vault.NewSnapshotter(store, cfg.Snapshot.Schedule, cfg.Snapshot.Keep)
		if err != nil {
			return fmt.Errorf("error configuring snapshots: %w", err)
		}
		go snapshotter.Run(ctx)
		logger.InfoCF("gateway", "Snapshots enabled", map[string]any{
			"schedule": cfg.Snapshot.Schedule,
			"keep":     cfg.Snapshot.Keep,
		})
	}

	go relayLoop.Run(ctx)

	fmt.Println("✓ Gateway started, press Ctrl+C to stop")
	<-ctx.Done()

	fmt.Println("\nShutting down...")
	shutdownCtx := context.Background()
	channelManager.Stop(shutdownCtx)
	msgBus.Close()
	logger.InfoC("gateway", "Gateway stopped")

	return nil
}
