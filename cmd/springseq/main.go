package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zoobzio/springseq/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	configPath string
	verbose    bool
	useMock    bool

	cfg        *config.Config
	logger     *zap.Logger
	stopEvents func()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "springseq",
	Short: "Generate spring tester command sequences from plain-language requests",
	Long: `springseq turns a plain-language description of a spring test into a
numbered command table for a spring testing machine.

Parameters such as free length, wire diameter and test type are read from
the request, sent with the command vocabulary to a chat-completion service,
and the returned table is validated and optionally exported as CSV or JSON.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if stopEvents != nil {
			stopEvents()
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigFile, "Configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&useMock, "mock", false, "Use the offline mock provider")

	rootCmd.AddCommand(generateCmd, chatCmd, validateCmd, commandsCmd)
}

// setup loads configuration and starts forwarding pipeline events to the logger.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.LoadFrom(configPath)
	if err != nil {
		return err
	}
	cfg = loaded

	logger, err = newLogger(cfg.Logging, verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	stopEvents = forwardEvents(logger)

	logger.Debug("configuration loaded",
		zap.String("config", configPath),
		zap.String("model", cfg.Provider.Model),
		zap.String("base_url", cfg.Provider.BaseURL),
		zap.Bool("mock", useMock),
	)
	return nil
}

func newLogger(c config.Logging, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Format == "console" {
		zc.Encoding = "console"
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// commandContext returns the command's context, or Background when the
// command was invoked directly.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
