// Command feedwatch watches public profile pages for new posts and reports
// them by mail and push.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"feedwatch/internal/config"
	"feedwatch/internal/domain"
)

var (
	configDir string
	cfg       config.Config
	logger    *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:           "feedwatch",
	Short:         "Profile update monitor",
	Long:          "feedwatch renders registered profile pages, keeps encrypted snapshots of their latest posts and notifies by mail, WeChat or Telegram.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.LoadConfig(configDir)
		if err != nil {
			return err
		}
		logger, err = newLogger(cfg)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "./configs", "directory holding an optional config.yaml")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to the process status. Configuration and delivery
// problems fail the job; a page that could not be rendered or a missing
// snapshot does not.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, domain.ErrConfig), errors.Is(err, domain.ErrDelivery):
		return 1
	case errors.Is(err, domain.ErrRender),
		errors.Is(err, domain.ErrExtraction),
		errors.Is(err, domain.ErrDecryption),
		errors.Is(err, domain.ErrNotFound):
		return 0
	default:
		return 1
	}
}

func newLogger(c config.Config) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if c.LogFormat == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid LOG_LEVEL %q", domain.ErrConfig, c.LogLevel)
	}
	log.SetLevel(level)
	return log, nil
}
