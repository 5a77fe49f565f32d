package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/maine/hn_keyword_bot/internal/config"
	"github.com/maine/hn_keyword_bot/internal/logging"
)

// options - общие флаги всех команд.
type options struct {
	configPath string
	logLevel   string
	logJSON    bool

	cfg    config.Root
	env    *config.EnvConfig
	logger *zap.SugaredLogger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "hnbot",
		Short: "Hacker News keyword notifications for Slack, Discord and Telegram",
		Long: `hnbot polls Hacker News for new items, matches them against every team's
keywords and notifies the teams whose keywords appear as whole words.

Examples:
  hnbot run                       # one invocation, prints the run summary
  hnbot run --dry-run             # show what would be sent, no side effects
  hnbot serve                     # HTTP endpoint for an external cron
  hnbot teams                     # subscriptions and counters
  hnbot subscribe T123 redis kafka
  hnbot channel T123 telegram:-100200300`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "configs/bot.yaml", "path to the YAML config")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config")
	root.PersistentFlags().BoolVar(&opts.logJSON, "log-json", false, "JSON logs; overrides the config")

	root.AddCommand(
		newRunCmd(opts),
		newServeCmd(opts),
		newTeamsCmd(opts),
		newSubscribeCmd(opts),
		newUnsubscribeCmd(opts),
		newChannelCmd(opts),
	)
	return root
}

// load читает .env, конфигурацию и поднимает логгер.
func (o *options) load(cmd *cobra.Command) error {
	// .env необязателен
	_ = godotenv.Load()

	cfg, err := config.LoadRoot(o.configPath)
	if err != nil {
		return err
	}
	o.env = config.LoadEnvConfig()
	cfg.ApplyEnv(o.env)

	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = o.logLevel
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Logging.JSON = o.logJSON
	}
	o.cfg = cfg

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.JSON)
	if err != nil {
		return err
	}
	o.logger = logger
	return nil
}
