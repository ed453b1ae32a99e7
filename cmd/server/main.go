// Command server runs the weights service: a token-gated HTTP API for
// tracking weight measurements backed by PostgreSQL.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/weightworks/weights-service/pkg/auth"
	"github.com/weightworks/weights-service/pkg/clients/postgres"
	"github.com/weightworks/weights-service/pkg/config"
	"github.com/weightworks/weights-service/pkg/metrics"
	"github.com/weightworks/weights-service/pkg/server"
	"github.com/weightworks/weights-service/pkg/weights"
)

// appConfig is the full service configuration, loaded from an optional
// config file and environment variables.
type appConfig struct {
	LogLevel string          `yaml:"log_level" json:"log_level" env:"LOG_LEVEL" envDefault:"info"`
	Server   server.Config   `yaml:"server" json:"server"`
	Postgres postgres.Config `yaml:"postgres" json:"postgres"`
	Auth     auth.Config     `yaml:"auth" json:"auth"`
}

func main() {
	if err := run(); err != nil {
		slog.Error("service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is not an error; it is a local dev convenience.
	_ = godotenv.Load()

	var cfg appConfig
	loader := config.New()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		loader = loader.WithFile(path)
	}
	if err := loader.Load(&cfg); err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewClient(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	repo := weights.NewRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("preparing database schema: %w", err)
	}

	verifier, err := auth.NewVerifier(cfg.Auth)
	if err != nil {
		return fmt.Errorf("configuring token verifier: %w", err)
	}

	srv, err := server.New(
		cfg.Server,
		verifier,
		weights.NewHandler(repo),
		metrics.New(),
		db.Health,
	)
	if err != nil {
		return fmt.Errorf("assembling server: %w", err)
	}

	slog.Info("weights service starting",
		"service_port", cfg.Server.ServicePort,
		"management_port", cfg.Server.ManagementPort,
		"issuer", cfg.Auth.Issuer,
	)
	return srv.Run(ctx)
}

// setupLogging installs a JSON slog handler at the configured level as
// the process-wide default.
func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})))
}
