package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ignite/greenbutton-etl/internal/config"
	"github.com/ignite/greenbutton-etl/internal/etl"
	"github.com/ignite/greenbutton-etl/internal/greenbutton"
	"github.com/ignite/greenbutton-etl/internal/pkg/logger"
	"github.com/ignite/greenbutton-etl/internal/snowflake"
	"github.com/ignite/greenbutton-etl/internal/webhooks"
)

func main() {
	configPath := os.Getenv("ETL_CONFIG")
	if configPath == "" {
		configPath = "config/etl.yaml"
	}
	credsPath := os.Getenv("ETL_CREDENTIALS")
	if credsPath == "" {
		credsPath = "config/credentials.yaml"
	}
	if lvl := os.Getenv("ETL_LOG_LEVEL"); lvl != "" {
		logger.SetLevel(logger.ParseLevel(lvl))
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		logger.Error("Configuration failed", "error", err.Error())
		os.Exit(1)
	}
	creds, err := config.LoadCredentials(credsPath)
	if err != nil {
		logger.Error("Credentials failed", "error", err.Error())
		os.Exit(1)
	}

	// Cancel the run on SIGINT/SIGTERM; in-flight sources observe the
	// context and stop at their next network call.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := webhooks.NewStore(ctx, cfg.S3)
	if err != nil {
		logger.Error("S3 setup failed", "error", err.Error())
		os.Exit(1)
	}

	gbClient, err := greenbutton.NewClient(cfg.API)
	if err != nil {
		logger.Error("API client setup failed", "error", err.Error())
		os.Exit(1)
	}

	sfClient, err := snowflake.NewClient(creds, cfg.DBName, cfg.SchemaName)
	if err != nil {
		logger.Error("Snowflake setup failed", "error", err.Error())
		os.Exit(1)
	}
	defer sfClient.Close()

	if err := sfClient.Ping(ctx); err != nil {
		logger.Error("Snowflake ping failed", "error", err.Error())
		os.Exit(1)
	}

	runner := &etl.Runner{
		Config: cfg,
		Extractor: &etl.Extractor{
			Tokens:   gbClient,
			Webhooks: store,
			Fetcher:  gbClient,
			Creds:    creds,
		},
		Loader:   sfClient,
		Sink:     sfClient,
		Archiver: store,
	}

	// Partial failure is reported in the summary and the metrics table,
	// not through the exit code.
	runner.Run(ctx)
}
