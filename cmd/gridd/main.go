package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"gridchain/cmd/internal/passphrase"
	"gridchain/config"
	"gridchain/crypto"
	nativecommon "gridchain/native/common"
	"gridchain/native/grid"
	"gridchain/native/wheel"
	"gridchain/observability/logging"
	telemetry "gridchain/observability/otel"
	"gridchain/services/gridd"
	"gridchain/storage"
)

const genesisPathEnv = "GRID_GENESIS"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a YAML genesis seed (overrides GRID_GENESIS and config GenesisFile)")
	allowMigrateFlag := flag.Bool("allow-migrate", false, "Allow starting with a mismatched state schema (manual migrations only)")
	flag.Parse()

	if err := run(*configFile, *genesisFlag, *allowMigrateFlag); err != nil {
		fmt.Fprintf(os.Stderr, "gridd: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile, genesisFlag string, allowMigrate bool) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.SetupWithOptions("gridd", cfg.Environment, logging.Options{
		File:  cfg.LogFile,
		Level: logging.ParseLevel(cfg.LogLevel),
	})

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     cfg.Telemetry.Headers,
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	moduleAddr, err := loadModuleAddress(cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	db, err := storage.Open(cfg.StorageBackend, filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()

	sourceFn, err := entropySource(cfg.Entropy)
	if err != nil {
		return err
	}
	params, err := cfg.Grid.Params(cfg.Assets.Decimals)
	if err != nil {
		return fmt.Errorf("grid params: %w", err)
	}
	quota, err := cfg.Quota.PurchaseQuota()
	if err != nil {
		return err
	}
	var tracker *nativecommon.QuotaTracker
	if quota.MaxRequestsPerEpoch > 0 || (quota.MaxValuePerEpoch != nil && quota.MaxValuePerEpoch.Sign() > 0) {
		tracker = nativecommon.NewQuotaTracker(quota, func() int64 { return time.Now().Unix() })
	}

	audit, err := gridd.OpenAudit(cfg.Audit.Driver, cfg.Audit.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = audit.Close() }()
	hub := gridd.NewHub()

	svc, err := gridd.New(gridd.Deps{
		DB:            db,
		ModuleAddress: moduleAddr,
		Assets:        cfg.Assets,
		Params:        params,
		SourceFunc:    sourceFn,
		AllowMigrate:  cfg.AllowMigrate || allowMigrate,
		Paused:        cfg.Pauses.Grid,
		Quota:         tracker,
		Audit:         audit,
		Hub:           hub,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("start economy: %w", err)
	}
	logger.Info("economy ready",
		slog.String("module", crypto.MustNewAddress(crypto.ModulePrefix, moduleAddr[:]).String()),
		slog.String("network", cfg.NetworkName),
		slog.Bool("paused", svc.Paused()))

	if path := resolveGenesisPath(genesisFlag, cfg.GenesisFile); path != "" {
		seed, err := gridd.LoadGenesis(path)
		if err != nil {
			return err
		}
		applied, err := svc.ApplyGenesis(context.Background(), seed)
		if err != nil {
			return fmt.Errorf("apply genesis: %w", err)
		}
		logger.Info("genesis processed", slog.String("path", path), slog.Bool("applied", applied))
	}

	secret := os.Getenv(cfg.Auth.SecretEnv)
	if strings.TrimSpace(secret) == "" {
		logger.Warn("API secret not set; authenticated endpoints will reject every request", slog.String("env", cfg.Auth.SecretEnv))
	}
	server, err := gridd.NewServer(gridd.ServerConfig{
		Service: svc,
		Authenticator: gridd.NewAuthenticator(gridd.AuthConfig{
			HMACSecret: secret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
		}, logger),
		RateLimiter: gridd.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
		Audit:       audit,
		Hub:         hub,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	interval, err := cfg.Distribution()
	if err != nil {
		return err
	}
	if interval > 0 {
		scheduler, err := gridd.NewScheduler(svc, interval, logger)
		if err != nil {
			return err
		}
		go func() {
			if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("scheduler stopped", slog.String("error", err.Error()))
			}
		}()
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		logger.Info("gridd listening", slog.String("address", cfg.ListenAddress))
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
			return err
		}
		logger.Info("gridd stopped")
		return nil
	case err := <-errs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// loadModuleAddress decrypts the module keystore. Keystores created without a
// passphrase env (the generated dev default) open with an empty passphrase.
func loadModuleAddress(cfg *config.Config) ([20]byte, error) {
	pass := ""
	if strings.TrimSpace(cfg.ModuleKeystoreEnv) != "" {
		var err error
		pass, err = passphrase.NewSource(cfg.ModuleKeystoreEnv).Get()
		if err != nil {
			return [20]byte{}, err
		}
	}
	key, err := crypto.LoadFromKeystore(cfg.ModuleKeystorePath, pass)
	if err != nil {
		return [20]byte{}, fmt.Errorf("load module keystore: %w", err)
	}
	return key.PubKey().Address().Bytes20(), nil
}

func entropySource(cfg config.Entropy) (grid.SourceFunc, error) {
	switch strings.ToLower(cfg.Mode) {
	case "hash":
		secret := os.Getenv(cfg.SecretEnv)
		if strings.TrimSpace(secret) == "" {
			return nil, fmt.Errorf("entropy mode hash requires %s", cfg.SecretEnv)
		}
		key := []byte(secret)
		return func(positionID, nonce uint64) wheel.Source {
			return wheel.NewHashSource(wheel.SeedFor(key, positionID, nonce)...)
		}, nil
	default:
		return func(uint64, uint64) wheel.Source { return wheel.CryptoSource{} }, nil
	}
}

func resolveGenesisPath(flagValue, configValue string) string {
	if path := strings.TrimSpace(flagValue); path != "" {
		return path
	}
	if path := strings.TrimSpace(os.Getenv(genesisPathEnv)); path != "" {
		return path
	}
	return strings.TrimSpace(configValue)
}
