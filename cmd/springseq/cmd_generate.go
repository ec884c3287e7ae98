package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zoobzio/springseq"
	"github.com/zoobzio/springseq/internal/export"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	batchFile    string
	parallel     int
	saveExport   bool
	exportFormat string
	exportDir    string
	sequenceName string
)

// generateCmd turns one request, or a file of requests, into sequences
var generateCmd = &cobra.Command{
	Use:   "generate [request]",
	Short: "Generate a test sequence from a plain-language request",
	Long: `Extracts spring parameters from the request, asks the model for a command
table and prints it. With --batch every non-empty line of the file is a
separate request; requests run concurrently, each with its own pipeline.

Example:
  springseq generate "Generate a compression test, free length 50mm, wire diameter 2mm" --save`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&batchFile, "batch", "b", "", "File with one request per line")
	generateCmd.Flags().IntVarP(&parallel, "parallel", "p", 4, "Concurrent requests in batch mode")
	generateCmd.Flags().BoolVarP(&saveExport, "save", "s", false, "Export each sequence to a file")
	generateCmd.Flags().StringVarP(&exportFormat, "format", "f", "", "Export format: csv or json (default from config)")
	generateCmd.Flags().StringVarP(&exportDir, "dir", "d", "", "Export directory (default from config)")
	generateCmd.Flags().StringVarP(&sequenceName, "name", "n", "", "Export file name prefix (default: part number)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	requests, err := generateRequests(args, batchFile)
	if err != nil {
		return err
	}
	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(firstNonEmpty(exportFormat, cfg.Export.Format))
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	out, status := cmd.OutOrStdout(), cmd.ErrOrStderr()

	if len(requests) == 1 {
		op := newPipeline(provider, cfg).Submit(ctx, requests[0])
		result := follow(status, op)
		printResult(out, result)
		if !result.OK() {
			return result.Err
		}
		return save(cmd, result, sequenceName, format)
	}

	results := make([]springseq.Result, len(requests))
	var g errgroup.Group
	g.SetLimit(max(parallel, 1))
	for i, request := range requests {
		g.Go(func() error {
			results[i] = newPipeline(provider, cfg).Submit(ctx, request).Result()
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for i, result := range results {
		fmt.Fprintf(out, "\n# %d: %s\n", i+1, requests[i])
		printResult(out, result)
		if !result.OK() {
			failed++
			continue
		}
		name := sequenceName
		if name != "" {
			name = fmt.Sprintf("%s_%02d", name, i+1)
		}
		if err := save(cmd, result, name, format); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d requests failed", failed, len(requests))
	}
	return nil
}

// generateRequests returns the request from args, or the non-empty lines of path.
func generateRequests(args []string, path string) ([]string, error) {
	if path == "" {
		request := strings.TrimSpace(strings.Join(args, " "))
		if request == "" {
			return nil, errors.New("a request or --batch file is required")
		}
		return []string{request}, nil
	}
	if len(args) > 0 {
		return nil, errors.New("--batch cannot be combined with a request argument")
	}

	f, err := os.Open(path) //nolint:gosec // G304: path is a CLI argument
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var requests []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			requests = append(requests, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(requests) == 0 {
		return nil, fmt.Errorf("%s holds no requests", path)
	}
	return requests, nil
}

// save exports a generated sequence when --save is set. Conversational
// replies have nothing to export.
func save(cmd *cobra.Command, result springseq.Result, name string, format export.Format) error {
	if !saveExport || result.Sequence == nil {
		return nil
	}
	return saveSequence(cmd, result.Sequence, name, format)
}

func saveSequence(cmd *cobra.Command, seq *springseq.Sequence, name string, format export.Format) error {
	if name == "" {
		name = partNumber(seq)
	}
	path, err := export.SaveFile(firstNonEmpty(exportDir, cfg.Export.Dir), name, format, seq.Rows, seq.CreatedAt)
	if err != nil {
		return err
	}
	logger.Info("sequence exported", zap.String("path", path), zap.Int("rows", len(seq.Rows)))
	fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s\n", path)
	return nil
}

func partNumber(seq *springseq.Sequence) string {
	if v, ok := seq.Parameters[string(springseq.ParamPartNumber)]; ok {
		return fmt.Sprint(v)
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
