package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/ilford-drop-in/cmd/cli/commands"
	"github.com/jakechorley/ilford-drop-in/internal/config"
	"github.com/jakechorley/ilford-drop-in/pkg/learning"
	"github.com/jakechorley/ilford-drop-in/pkg/learning/noop"
	"github.com/jakechorley/ilford-drop-in/pkg/learning/redislearning"
	"github.com/jakechorley/ilford-drop-in/pkg/metrics"
	"github.com/jakechorley/ilford-drop-in/pkg/notify/gmail"
	"github.com/jakechorley/ilford-drop-in/pkg/store"
	"github.com/jakechorley/ilford-drop-in/pkg/store/postgres"
	"github.com/jakechorley/ilford-drop-in/pkg/utils"
	"github.com/jakechorley/ilford-drop-in/pkg/utils/logging"

	"github.com/redis/go-redis/v9"
)

var (
	env string
	app *commands.AppContext
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "roster: fatal: %v\n", r)
			os.Exit(1)
		}
	}()

	rootCmd := &cobra.Command{
		Use:   "roster",
		Short: "Roster CLI - generate and manage ABA clinic day schedules",
		Long:  "A CLI tool for generating, importing, rating, and administering one-day therapy roster schedules.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil && app.Logger != nil {
				app.Logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.MarkPersistentFlagRequired("env")

	rootCmd.AddCommand(
		commandsWithApp(
			commands.MigrateCmd,
			commands.GenerateCmd,
			commands.ImportCmd,
			commands.CalloutCmd,
			commands.ListCmd,
			commands.RateCmd,
			commands.ViewCmd,
			commands.InteractiveCmd,
		)...,
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func commandsWithApp(factories ...func(*commands.AppContext) *cobra.Command) []*cobra.Command {
	out := make([]*cobra.Command, 0, len(factories))
	for _, factory := range factories {
		out = append(out, factory(app))
	}
	return out
}

// initApp sets up the logger, config, store, learning service, notifier,
// and metrics collector shared by every command.
func initApp() error {
	ctx := context.Background()

	logger, err := logging.InitLogger(env)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("starting application", zap.String("environment", env))

	logger.Info("loading configuration")
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("connecting to database")
	db, err := postgres.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	var backingStore store.Store = db

	var learningService learning.Service = noop.New()
	if cfg.Redis.Host != "" {
		logger.Info("connecting to redis", zap.String("host", cfg.Redis.Host), zap.Int("port", cfg.Redis.Port))
		redisClient := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if pingErr := redisClient.Ping(ctx).Err(); pingErr != nil {
			logger.Warn("redis unavailable, falling back to no-op learning service", zap.Error(pingErr))
		} else {
			learningService = redislearning.New(redisClient, backingStore, logger)
		}
	}

	var notifier *gmail.Client
	if cfg.Notify.Enabled {
		oauthCfg, err := config.LoadOAuthClientWithEnv(env)
		if err != nil {
			logger.Warn("notify enabled but oauth config unavailable, disabling notifications", zap.Error(err))
		} else {
			logger.Info("initializing gmail notifier")
			oauthConfig, err := utils.GetOAuthConfig(oauthCfg)
			if err != nil {
				logger.Warn("failed to build oauth config, disabling notifications", zap.Error(err))
			} else {
				token, err := utils.GetTokenWithFlow(ctx, oauthConfig)
				if err != nil {
					logger.Warn("gmail authorization failed, disabling notifications", zap.Error(err))
				} else if notifier, err = gmail.New(ctx, oauthCfg, token); err != nil {
					logger.Warn("failed to create gmail client, disabling notifications", zap.Error(err))
					notifier = nil
				}
			}
		}
	}

	var metricsCollector *metrics.Collector
	if cfg.Metrics.Enabled {
		metricsCollector = metrics.New()
	}

	app = &commands.AppContext{
		Cfg:      cfg,
		Store:    backingStore,
		Learning: learningService,
		Notifier: notifier,
		Metrics:  metricsCollector,
		Logger:   logger,
		Ctx:      ctx,
	}

	return nil
}
