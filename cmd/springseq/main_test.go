package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/zoobzio/springseq"
	"github.com/zoobzio/springseq/internal/config"
	"github.com/zoobzio/springseq/internal/export"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const generateRequest = "Generate a compression test, free length 50mm, wire diameter 2mm"

// testEnv resets the CLI globals to a mock-backed configuration exporting
// into a temporary directory.
func testEnv(t *testing.T) *config.Config {
	t.Helper()

	c := config.Defaults()
	c.Pipeline.BackoffBase = time.Millisecond
	c.Export.Dir = t.TempDir()

	cfg = &c
	logger = zap.NewNop()
	useMock = true
	batchFile, parallel = "", 4
	saveExport, exportFormat, exportDir, sequenceName = false, "", "", ""

	t.Cleanup(func() {
		cfg, logger, useMock = nil, nil, false
		batchFile, saveExport, exportFormat, exportDir, sequenceName = "", false, "", "", ""
	})
	return &c
}

// newTestCmd returns a command wired to in-memory streams.
func newTestCmd(in string) (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	cmd := &cobra.Command{}
	var out, errOut bytes.Buffer
	cmd.SetIn(strings.NewReader(in))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetContext(context.Background())
	return cmd, &out, &errOut
}

func exported(t *testing.T, dir, pattern string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		t.Fatal(err)
	}
	return matches
}

func TestRunCommands(t *testing.T) {
	testEnv(t)
	cmd, out, _ := newTestCmd("")

	if err := runCommands(cmd, nil); err != nil {
		t.Fatalf("runCommands failed: %v", err)
	}
	for _, want := range []string{"FL(P)", "Measure Free Length", "Scragging", "300"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected %q in output:\n%s", want, out.String())
		}
	}
	if lines := strings.Count(out.String(), "\n"); lines != len(springseq.Commands)+1 {
		t.Errorf("Expected %d lines, got %d", len(springseq.Commands)+1, lines)
	}
}

func TestRunGenerate(t *testing.T) {
	t.Run("prints table and status", func(t *testing.T) {
		testEnv(t)
		cmd, out, status := newTestCmd("")

		if err := runGenerate(cmd, strings.Fields(generateRequest)); err != nil {
			t.Fatalf("runGenerate failed: %v", err)
		}
		if !strings.Contains(out.String(), "Speed rpm") || !strings.Contains(out.String(), "R06") {
			t.Errorf("Expected a sequence table, got:\n%s", out.String())
		}
		if !strings.Contains(status.String(), "[ 10%] Sending request (attempt 1/3)...") {
			t.Errorf("Expected status lines, got:\n%s", status.String())
		}
	})

	t.Run("save as json", func(t *testing.T) {
		c := testEnv(t)
		saveExport, exportFormat, sequenceName = true, "json", "SP-7"
		cmd, _, _ := newTestCmd("")

		if err := runGenerate(cmd, []string{generateRequest}); err != nil {
			t.Fatalf("runGenerate failed: %v", err)
		}
		files := exported(t, c.Export.Dir, "SP-7_*.json")
		if len(files) != 1 {
			t.Fatalf("Expected one export, got %v", files)
		}
		data, err := os.ReadFile(files[0])
		if err != nil {
			t.Fatal(err)
		}
		if rows := springseq.ParseSequence(string(data)); len(rows) != 7 {
			t.Errorf("Expected 7 exported rows, got %d", len(rows))
		}
	})

	t.Run("conversation is not exported", func(t *testing.T) {
		c := testEnv(t)
		saveExport = true
		cmd, out, _ := newTestCmd("")

		if err := runGenerate(cmd, []string{"What does scragging do?"}); err != nil {
			t.Fatalf("runGenerate failed: %v", err)
		}
		if !strings.Contains(out.String(), "spring testing") {
			t.Errorf("Expected conversational reply, got:\n%s", out.String())
		}
		if files := exported(t, c.Export.Dir, "*"); len(files) != 0 {
			t.Errorf("Expected no export, got %v", files)
		}
	})

	t.Run("missing request", func(t *testing.T) {
		testEnv(t)
		cmd, _, _ := newTestCmd("")
		if err := runGenerate(cmd, nil); err == nil {
			t.Error("Expected error without a request")
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		testEnv(t)
		exportFormat = "xml"
		cmd, _, _ := newTestCmd("")
		if err := runGenerate(cmd, []string{generateRequest}); !errors.Is(err, export.ErrUnknownFormat) {
			t.Errorf("Expected ErrUnknownFormat, got %v", err)
		}
	})

	t.Run("missing api key", func(t *testing.T) {
		testEnv(t)
		useMock = false
		cmd, _, _ := newTestCmd("")
		if err := runGenerate(cmd, []string{generateRequest}); !errors.Is(err, config.ErrMissingAPIKey) {
			t.Errorf("Expected ErrMissingAPIKey, got %v", err)
		}
	})
}

func TestRunGenerateBatch(t *testing.T) {
	c := testEnv(t)
	saveExport, sequenceName, parallel = true, "batch", 2

	input := filepath.Join(t.TempDir(), "requests.txt")
	body := "Generate a compression test, free length 50mm\n\nCreate a tension test, free length 80mm\nGenerate a test, free length 30mm\n"
	if err := os.WriteFile(input, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	batchFile = input

	cmd, out, _ := newTestCmd("")
	if err := runGenerate(cmd, nil); err != nil {
		t.Fatalf("runGenerate failed: %v", err)
	}

	for i := 1; i <= 3; i++ {
		if files := exported(t, c.Export.Dir, fmt.Sprintf("batch_%02d_*.csv", i)); len(files) != 1 {
			t.Errorf("Expected one export for request %d, got %v", i, files)
		}
	}
	if strings.Count(out.String(), "# ") != 3 {
		t.Errorf("Expected three result headers, got:\n%s", out.String())
	}
}

func TestRunGenerateBatchFailures(t *testing.T) {
	testEnv(t)
	input := filepath.Join(t.TempDir(), "requests.txt")
	if err := os.WriteFile(input, []byte("Generate a test, free length 50mm\nGenerate a test, free length 60mm\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	batchFile = input
	useMock = false
	cfg.Provider.APIKey = "test-key"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	cfg.Provider.BaseURL = srv.URL
	cfg.Pipeline.MaxRetries = 1

	cmd, out, _ := newTestCmd("")
	err := runGenerate(cmd, nil)
	if err == nil || !strings.Contains(err.Error(), "2 of 2 requests failed") {
		t.Errorf("Expected batch failure summary, got %v", err)
	}
	if !strings.Contains(out.String(), "Error: Request error") {
		t.Errorf("Expected per-request error lines, got:\n%s", out.String())
	}
}

func TestGenerateRequests(t *testing.T) {
	if _, err := generateRequests([]string{"x"}, "file.txt"); err == nil {
		t.Error("Expected error combining a request with --batch")
	}
	if _, err := generateRequests(nil, filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("Expected error for missing batch file")
	}

	empty := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(empty, []byte("\n  \n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := generateRequests(nil, empty); err == nil {
		t.Error("Expected error for a batch file without requests")
	}

	got, err := generateRequests([]string{"free", "length", "50mm"}, "")
	if err != nil || len(got) != 1 || got[0] != "free length 50mm" {
		t.Errorf("Unexpected requests %v, %v", got, err)
	}
}

func TestRunChat(t *testing.T) {
	c := testEnv(t)
	in := strings.Join([]string{
		"hello there",
		"/save",
		generateRequest,
		"/history",
		"/save",
		"/clear",
		"/quit",
		"never reached",
	}, "\n")
	cmd, out, _ := newTestCmd(in)

	if err := runChat(cmd, nil); err != nil {
		t.Fatalf("runChat failed: %v", err)
	}

	got := out.String()
	for _, want := range []string{"spring testing", "No sequence to save.", "R06", "generate", "Conversation cleared."} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected %q in output:\n%s", want, got)
		}
	}
	if files := exported(t, c.Export.Dir, "*.csv"); len(files) != 1 {
		t.Errorf("Expected one saved sequence, got %v", files)
	}
}

func TestRunChatEOF(t *testing.T) {
	testEnv(t)
	cmd, _, _ := newTestCmd("hello")
	if err := runChat(cmd, nil); err != nil {
		t.Errorf("Expected clean exit at end of input, got %v", err)
	}
}

func TestRunValidateFile(t *testing.T) {
	testEnv(t)
	dir := t.TempDir()
	valid := []springseq.Row{
		{Row: "R00", CMD: "ZF", Description: "Zero Force"},
		{Row: "R01", CMD: "FL(P)", Description: "Measure Free Length", Unit: "mm"},
	}

	t.Run("csv", func(t *testing.T) {
		path := filepath.Join(dir, "seq.csv")
		var buf bytes.Buffer
		if err := export.WriteCSV(&buf, valid); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
			t.Fatal(err)
		}
		cmd, out, _ := newTestCmd("")
		if err := runValidate(cmd, []string{path}); err != nil {
			t.Fatalf("Expected valid sequence, got %v", err)
		}
		if !strings.Contains(out.String(), "2 rows, valid") {
			t.Errorf("Unexpected output %q", out.String())
		}
	})

	t.Run("json with unknown command", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		body := `[{"Row":"R00","CMD":"ZF"},{"Row":"R01","CMD":"Jump"}]`
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
		cmd, _, _ := newTestCmd("")
		if err := runValidate(cmd, []string{path}); err == nil {
			t.Error("Expected validation error")
		}
	})

	t.Run("no table", func(t *testing.T) {
		path := filepath.Join(dir, "notes.txt")
		if err := os.WriteFile(path, []byte("just notes"), 0o600); err != nil {
			t.Fatal(err)
		}
		cmd, _, _ := newTestCmd("")
		if err := runValidate(cmd, []string{path}); !errors.Is(err, springseq.ErrNoSequence) {
			t.Errorf("Expected ErrNoSequence, got %v", err)
		}
	})
}

func TestRunValidateKey(t *testing.T) {
	t.Run("mock", func(t *testing.T) {
		testEnv(t)
		cmd, out, _ := newTestCmd("")
		if err := runValidate(cmd, nil); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out.String(), "Mock provider") {
			t.Errorf("Unexpected output %q", out.String())
		}
	})

	for _, tc := range []struct {
		name    string
		status  int
		wantErr error
	}{
		{"accepted", http.StatusOK, nil},
		{"rejected", http.StatusUnauthorized, springseq.ErrUnauthorized},
	} {
		t.Run(tc.name, func(t *testing.T) {
			testEnv(t)
			useMock = false
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"yes"}}]}`))
			}))
			defer srv.Close()
			cfg.Provider.APIKey = "test-key"
			cfg.Provider.BaseURL = srv.URL

			cmd, out, _ := newTestCmd("")
			err := runValidate(cmd, nil)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("Expected success, got %v", err)
				}
				if !strings.Contains(out.String(), "API key accepted") {
					t.Errorf("Unexpected output %q", out.String())
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Expected %v, got %v", tc.wantErr, err)
			}
		})
	}

	t.Run("missing key", func(t *testing.T) {
		testEnv(t)
		useMock = false
		cmd, _, _ := newTestCmd("")
		if err := runValidate(cmd, nil); !errors.Is(err, config.ErrMissingAPIKey) {
			t.Errorf("Expected ErrMissingAPIKey, got %v", err)
		}
	})
}

func TestNewPipelineFallback(t *testing.T) {
	c := testEnv(t)
	useMock = false

	content := `[{"Row":"R00","CMD":"ZF","Description":"Zero Force"}]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Bad request body: %v", err)
		}
		if req.Model != "backup-model" {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": req.Model,
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		})
	}))
	defer srv.Close()

	c.Provider.APIKey = "test-key"
	c.Provider.BaseURL = srv.URL
	c.Provider.Model = "primary-model"
	c.Provider.FallbackModel = "backup-model"
	c.Pipeline.MaxRetries = 1

	p := newPipeline(newOpenAI(c), c)
	result, err := p.Generate(context.Background(), generateRequest, springseq.Extract(generateRequest))
	if err != nil {
		t.Fatalf("Expected the fallback model to answer, got %v", err)
	}
	if result.Provider != "openai:backup-model" || result.Attempts != 2 {
		t.Errorf("Expected attempt 2 on openai:backup-model, got %d on %q", result.Attempts, result.Provider)
	}
	if len(result.Rows) != 1 {
		t.Errorf("Expected 1 row, got %d", len(result.Rows))
	}
}

func TestNewFallbackDisabled(t *testing.T) {
	c := testEnv(t)
	c.Provider.FallbackModel = "backup-model"
	if newFallback(c) != nil {
		t.Error("The mock provider runs without a fallback")
	}

	useMock = false
	c.Provider.FallbackModel = c.Provider.Model
	if newFallback(c) != nil {
		t.Error("A fallback on the primary model is skipped")
	}
	c.Provider.FallbackModel = ""
	if newFallback(c) != nil {
		t.Error("No fallback model, no fallback")
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		logging config.Logging
		verbose bool
		debug   bool
		wantErr bool
	}{
		{"info json", config.Logging{Level: "info", Format: "json"}, false, false, false},
		{"warn console", config.Logging{Level: "warn", Format: "console"}, false, false, false},
		{"verbose overrides", config.Logging{Level: "error", Format: "json"}, true, true, false},
		{"bad level", config.Logging{Level: "loud", Format: "json"}, false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := newLogger(tt.logging, tt.verbose)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got := log.Core().Enabled(zapcore.DebugLevel); got != tt.debug {
				t.Errorf("Debug enabled = %v, want %v", got, tt.debug)
			}
		})
	}
}

func TestForwardEvents(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	stop := forwardEvents(zap.New(core))
	defer stop()

	p := springseq.NewPipeline(springseq.NewMockProviderWithName("cli-events"))
	op := p.Submit(context.Background(), generateRequest)
	if result := op.Result(); !result.OK() {
		t.Fatalf("Operation failed: %s", result.Message)
	}

	deadline := time.Now().Add(time.Second)
	for {
		entries := logs.FilterMessage(springseq.OperationSucceeded.Name()).
			FilterField(zap.String("operation_id", op.ID())).All()
		if len(entries) == 1 {
			if entries[0].Level != zapcore.InfoLevel {
				t.Errorf("Expected info level, got %s", entries[0].Level)
			}
			if rows, ok := entries[0].ContextMap()["rows"]; !ok || rows != int64(7) {
				t.Errorf("Expected rows=7, got %v", rows)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Timeout waiting for forwarded event, have %d entries", logs.Len())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSignalLevel(t *testing.T) {
	if signalLevel(springseq.AttemptFailed) != zapcore.WarnLevel {
		t.Error("Expected attempt failures at warn")
	}
	if signalLevel(springseq.StateChanged) != zapcore.DebugLevel {
		t.Error("Expected state changes at debug")
	}
}

func TestRootCommand(t *testing.T) {
	testEnv(t)
	t.Setenv("SPRINGSEQ_LOG_LEVEL", "error")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"--mock", "--config", filepath.Join(t.TempDir(), "absent.yaml"), "commands"})
	defer rootCmd.SetArgs(nil)

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out.String(), "Zero Force") {
		t.Errorf("Expected vocabulary listing, got:\n%s", out.String())
	}
	if cfg == nil || cfg.Pipeline.MaxRetries != 3 {
		t.Error("Expected configuration to be loaded from defaults")
	}
}
