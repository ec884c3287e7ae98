package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zoobzio/springseq"
	"github.com/zoobzio/springseq/internal/export"
	"go.uber.org/zap"
)

// validateCmd checks credentials, or a sequence file when one is given
var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check the API key, or validate an exported sequence file",
	Long: `Without arguments, sends a minimal completion to confirm the configured
API key is accepted.

With a file, reads a CSV export or any text holding a JSON row array and
checks that every command is in the vocabulary and row ids run R00, R01, ...`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		return validateFile(cmd, args[0])
	}

	out := cmd.OutOrStdout()
	if useMock {
		fmt.Fprintln(out, "Mock provider: nothing to validate.")
		return nil
	}
	if err := cfg.RequireAPIKey(); err != nil {
		return err
	}

	provider := newOpenAI(cfg)
	if err := provider.Validate(commandContext(cmd)); err != nil {
		logger.Warn("api key rejected", zap.String("base_url", cfg.Provider.BaseURL), zap.Error(err))
		return fmt.Errorf("api key validation failed: %w", err)
	}
	fmt.Fprintf(out, "API key accepted by %s (model %s).\n", cfg.Provider.BaseURL, provider.Model())
	return nil
}

func validateFile(cmd *cobra.Command, path string) error {
	rows, err := readSequenceFile(path)
	if err != nil {
		return err
	}
	if err := springseq.ValidateSequence(rows); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows, valid.\n", path, len(rows))
	return nil
}

func readSequenceFile(path string) ([]springseq.Row, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is a CLI argument
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), export.FormatCSV.Ext()) {
		return export.ReadCSV(bytes.NewReader(data))
	}
	rows := springseq.ParseSequence(string(data))
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", path, springseq.ErrNoSequence)
	}
	return rows, nil
}
