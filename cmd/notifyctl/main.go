// Command notifyctl inspects and exercises the notification bridge:
// listen prints what subscribers see, publish forwards a single event.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"notify/internal/logging"
	"notify/internal/notify/bridge"
	"notify/internal/notify/transport"
)

type Config struct {
	Transport transport.Config
	Bridge    bridge.Config
	LogLevel  string `env:"LOG_LEVEL" envDefault:"warn"`
}

var (
	cfg    Config
	logger *zap.Logger
)

// loadConfig reads the environment, then applies the flags the user set
// explicitly on cmd.
func loadConfig(cmd *cobra.Command) (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("endpoint") {
		c.Transport.Endpoint, _ = flags.GetString("endpoint")
	}
	if flags.Changed("subject-prefix") {
		c.Transport.SubjectPrefix, _ = flags.GetString("subject-prefix")
	}
	if flags.Changed("log-level") {
		c.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("validate") {
		c.Bridge.ValidateEvents, _ = flags.GetBool("validate")
	}
	return c, nil
}

var rootCmd = &cobra.Command{
	Use:           "notifyctl",
	Short:         "Listen to and publish blockchain notifications",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = loadConfig(cmd); err != nil {
			return err
		}
		logger, err = logging.New(cfg.LogLevel)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().String("endpoint", transport.DefaultEndpoint, "transport endpoint (tcp://, ipc://, inproc:// or nats://), overrides NOTIFY_ENDPOINT")
	rootCmd.PersistentFlags().String("subject-prefix", "notify", "NATS subject prefix, overrides NOTIFY_NATS_SUBJECT_PREFIX")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level, overrides LOG_LEVEL")

	rootCmd.AddCommand(listenCmd, publishCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
