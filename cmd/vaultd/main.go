package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"StrategyVault/internal/api"
	"StrategyVault/internal/config"
	"StrategyVault/internal/counterparty"
	"StrategyVault/internal/custody"
	"StrategyVault/internal/hostledger"
	"StrategyVault/internal/logging"
	"StrategyVault/internal/metrics"
	"StrategyVault/internal/model"
	"StrategyVault/internal/notifier"
	"StrategyVault/internal/recorder"
	"StrategyVault/internal/scheduler"
	"StrategyVault/internal/store"
)

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config validation: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("vaultd failed", zap.Error(err))
	}
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.Storage.Driver == config.DriverFile {
		return store.OpenFile(cfg.Storage.Path)
	}
	return store.OpenBolt(cfg.Storage.Path)
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("StrategyVault starting...")

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open vault store: %w", err)
	}
	defer st.Close()

	// Init recorder
	var rec recorder.Recorder
	if sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, logger); err != nil {
		logger.Warn("init sqlite recorder failed, using noop", zap.Error(err))
		rec = recorder.NewNoopRecorder()
	} else {
		rec = sr
	}
	defer rec.Close()

	ledger, err := hostledger.LoadSnapshot(cfg.Ledger.SnapshotPath)
	if err != nil {
		return fmt.Errorf("load ledger snapshot: %w", err)
	}
	defer func() {
		if err := ledger.SaveSnapshot(cfg.Ledger.SnapshotPath); err != nil {
			logger.Error("save ledger snapshot failed", zap.Error(err))
			return
		}
		logger.Info("ledger snapshot saved", zap.String("path", cfg.Ledger.SnapshotPath))
	}()

	m := metrics.New()
	mgr := custody.NewManager(ledger, st, custody.Options{
		FeeHint:  cfg.Ledger.FeeHint,
		Recorder: rec,
		Metrics:  m,
		Logger:   logger.Named("custody"),
	})
	if err := bootstrapVaults(mgr, cfg.Vaults, logger); err != nil {
		return err
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init Telegram notifier
	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, logger.Named("telegram"))
	var sender scheduler.Sender
	if tn.Enabled() {
		sender = tn
		mgr.Subscribe(tn.Relay(ctx))
	}

	// Init keeper
	keeper := scheduler.NewKeeper(ctx, mgr, ledger, scheduler.Options{
		Self:      model.Address(cfg.Keeper.Address),
		Exchanger: counterparty.FixedRate{Num: cfg.Keeper.RateNum, Den: cfg.Keeper.RateDen},
		Recorder:  rec,
		Metrics:   m,
		Sender:    sender,
		Logger:    logger.Named("keeper"),
	})
	mgr.Subscribe(keeper.OnEvent)
	if err := keeper.RegisterAll(cfg.Keeper.SettleCron, cfg.Keeper.ReportCron); err != nil {
		return fmt.Errorf("register cron tasks: %w", err)
	}
	keeper.Start()
	defer keeper.Stop()

	// Start Telegram polling
	if tn.Enabled() {
		go tn.StartPolling(ctx, keeper.HandleCommand)
		logger.Info("telegram polling started")
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Listen,
		Handler:           api.New(mgr, m, logger.Named("api")).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http api listening", zap.String("addr", cfg.HTTP.Listen))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	logger.Info("StrategyVault is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received, stopping...", zap.String("signal", sig.String()))
	case err := <-serveErr:
		logger.Error("http api failed", zap.Error(err))
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	logger.Info("StrategyVault stopped")
	return nil
}
