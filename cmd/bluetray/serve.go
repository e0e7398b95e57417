package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"bluetray/internal/adapter"
	"bluetray/internal/adapter/ble"
	"bluetray/internal/adapter/bluez"
	"bluetray/internal/api"
	"bluetray/internal/config"
	"bluetray/internal/coordinator"
	"bluetray/internal/logger"
	"bluetray/internal/stats"
	"bluetray/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daemon",
	Long: `Run the coordinator against the local adapter and serve the HTTP and
websocket API. A missing config file is created with defaults.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgManager := config.NewManager(configPath)
	if err := cfgManager.Load(); err != nil {
		return fmt.Errorf("load config %s: %w", configPath, err)
	}
	cfg := cfgManager.Get()

	if err := logger.Init(cfg.Logging.FilePath, cfg.Logging.MaxSizeMB, cfg.Logging.MaxBackups, cfg.Logging.Debug); err != nil {
		log.Printf("[WARN] Failed to initialize file logging: %v (continuing with stdout only)", err)
		if err := logger.Init("", 0, 0, cfg.Logging.Debug); err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
	}
	defer logger.Get().Close()
	lg := logger.Get().Logrus()

	logs := stats.NewLogBuffer(stats.DefaultLogLines)
	lg.AddHook(logs)
	outcomes := stats.NewOutcomes(stats.DefaultOutcomeHistory)

	logger.Printf("Starting %s on port %d (config %s)", version.Info(), cfg.Web.Port, absPath(configPath))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(ctx, cfg, lg)
	if err != nil {
		return err
	}
	gateway := adapter.NewGateway(backend)
	defer gateway.Close()

	wsHub := api.NewHub(lg)
	go wsHub.Run(ctx)

	coord := coordinator.Start(ctx, gateway,
		coordinator.WithQueue(cfg.Bluetooth.QueueCapacity, cfg.Bluetooth.SendTimeout),
		coordinator.WithTransport(cfg.TransportFilter()),
		coordinator.WithKeepDiscovering(cfg.Bluetooth.KeepDiscovering),
		coordinator.WithNotifier(wsHub),
		coordinator.WithOutcomes(func(o coordinator.Outcome) {
			wsHub.Broadcast(api.MessageCommandOutcome, outcomes.Record(o))
		}),
		coordinator.WithLogger(lg),
	)

	handler := api.NewHandler(cfgManager, coord.Client(), wsHub, logs, outcomes)
	handler.SetVersion(version.GetVersion())

	mux := http.NewServeMux()
	handler.Register(mux)

	errorLog, errorLogWriter := logger.Get().StdLogger("http: ")
	defer errorLogWriter.Close()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Web.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     errorLog,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	logger.Printf("Server started at http://localhost:%d", cfg.Web.Port)

	select {
	case <-ctx.Done():
	case err = <-serveErr:
		logger.Error("Server failed: %v", err)
	}

	logger.Info("Shutting down...")
	coord.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error: %v", err)
	}

	logger.Info("Server stopped")
	return err
}

func openBackend(ctx context.Context, cfg config.Config, lg logrus.FieldLogger) (adapter.Adapter, error) {
	switch cfg.Bluetooth.Backend {
	case config.BackendBLE:
		a, err := ble.Open(ble.Options{ConnectTimeout: cfg.Bluetooth.CallTimeout, Logger: lg})
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		a, err := bluez.Open(ctx, bluez.Options{
			Adapter:     cfg.Bluetooth.Adapter,
			CallTimeout: cfg.Bluetooth.CallTimeout,
			Logger:      lg,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
