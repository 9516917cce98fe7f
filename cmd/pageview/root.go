package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/pageview/internal/config"
	"github.com/Sternrassler/pageview/pkg/client"
	"github.com/Sternrassler/pageview/pkg/logging"
	"github.com/Sternrassler/pageview/pkg/metrics"
)

// version is set with -ldflags at build time.
var version = "dev"

type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "pageview",
		Short:        "Browse Link-header paginated collections page by page",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg := logging.LoadFromEnv()
			if opts.verbose {
				cfg.Level = logging.LevelDebug
			}
			cfg.Output = cmd.ErrOrStderr()
			logging.Setup(cfg)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newBrowseCmd(opts))
	root.AddCommand(newFetchAllCmd(opts))
	root.AddCommand(newWindowCmd())

	return root
}

// app holds the collaborators shared by the data commands.
type app struct {
	cfg    *config.Config
	redis  *redis.Client
	client *client.Client
	logger zerolog.Logger
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := logging.NewLogger("cli")

	rdb, err := cfg.RedisClient()
	if err != nil {
		return nil, err
	}
	if rdb != nil {
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Info().Str("redis", rdb.Options().Addr).Msg("Connected to Redis")
	}

	c, err := client.New(cfg.ClientConfig(rdb))
	if err != nil {
		if rdb != nil {
			rdb.Close()
		}
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
				logger.Error().Err(err).Str("addr", cfg.Metrics.Addr).Msg("Metrics server failed")
			}
		}()
	}

	return &app{cfg: cfg, redis: rdb, client: c, logger: logger}, nil
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
}

func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.verbose {
		cfg.Log.Level = string(logging.LevelDebug)
	}
	return cfg, nil
}
