package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/zoobzio/springseq"
	"github.com/zoobzio/springseq/internal/config"
	"github.com/zoobzio/springseq/providers/openai"
)

func newProvider(c *config.Config) (springseq.Provider, error) {
	if useMock {
		return springseq.NewMockProvider(), nil
	}
	if err := c.RequireAPIKey(); err != nil {
		return nil, err
	}
	return newOpenAI(c), nil
}

func newOpenAI(c *config.Config) *openai.Provider {
	return openai.New(openai.Config{
		APIKey:            c.Provider.APIKey,
		Model:             c.Provider.Model,
		BaseURL:           c.Provider.BaseURL,
		Timeout:           c.Provider.Timeout,
		ValidationTimeout: c.Provider.ValidationTimeout,
	})
}

// newFallback returns the provider serving provider.fallback_model, or nil
// when none is configured or the mock provider is in use.
func newFallback(c *config.Config) springseq.Provider {
	model := c.Provider.FallbackModel
	if useMock || model == "" || model == c.Provider.Model {
		return nil
	}
	return openai.New(openai.Config{
		APIKey:            c.Provider.APIKey,
		Model:             model,
		BaseURL:           c.Provider.BaseURL,
		Timeout:           c.Provider.Timeout,
		ValidationTimeout: c.Provider.ValidationTimeout,
		Name:              "openai:" + model,
	})
}

// newPipeline builds a pipeline with its own memory from the configuration.
func newPipeline(provider springseq.Provider, c *config.Config) *springseq.Pipeline {
	var extractorOpts []springseq.ExtractorOption
	if tt := c.Pipeline.DefaultTestType; tt != "" {
		extractorOpts = append(extractorOpts, springseq.WithDefaultTestType(springseq.TestType(tt)))
	}

	temperature := float32(c.Pipeline.Temperature)
	if temperature == 0 {
		temperature = springseq.TemperatureZero
	}

	opts := []springseq.Option{
		springseq.WithMaxRetries(c.Pipeline.MaxRetries),
		springseq.WithBackoffBase(c.Pipeline.BackoffBase),
		springseq.WithTimeout(c.Provider.Timeout),
		springseq.WithTemperature(temperature),
		springseq.WithMemory(springseq.NewMemory(c.Pipeline.MemoryCapacity)),
		springseq.WithHistoryLimit(c.Pipeline.HistoryLimit),
		springseq.WithExtractor(springseq.NewExtractor(extractorOpts...)),
	}
	if c.Breaker.MaxFailures > 0 {
		opts = append(opts, springseq.WithCircuitBreaker(c.Breaker.MaxFailures, c.Breaker.Timeout))
	}
	if c.Rate.RequestsPerSecond > 0 {
		opts = append(opts, springseq.WithRateLimit(c.Rate.RequestsPerSecond, c.Rate.Burst))
	}
	if fallback := newFallback(c); fallback != nil {
		opts = append(opts, springseq.WithFallback(fallback))
	}
	return springseq.NewPipeline(provider, opts...)
}

// follow writes the status lines of op to w as they arrive and returns
// the terminal result.
func follow(w io.Writer, op *springseq.Operation) springseq.Result {
	progress := 0
	for n := range op.Events() {
		switch n.Kind {
		case springseq.KindProgress:
			progress = n.Progress
		case springseq.KindStatus:
			fmt.Fprintf(w, "[%3d%%] %s\n", progress, n.Status)
		}
	}
	return op.Result()
}

// printResult writes a sequence as an aligned table, or the reply text of
// a conversational answer.
func printResult(w io.Writer, result springseq.Result) {
	if !result.OK() {
		fmt.Fprintf(w, "Error: %s\n", result.Message)
		return
	}
	if result.Sequence == nil {
		fmt.Fprintln(w, result.Reply)
		return
	}
	printRows(w, result.Sequence.Rows)
}

func printRows(w io.Writer, rows []springseq.Row) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(springseq.Columns, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row.Values(), "\t"))
	}
	tw.Flush()
}
