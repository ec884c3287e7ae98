package main

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/zoobzio/springseq"
	"github.com/zoobzio/springseq/internal/export"
)

// chatCmd runs an interactive session that keeps conversation memory
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive session with conversation memory",
	Long: `Reads requests from standard input, one per line. Generation requests print
a command table; anything else gets a conversational reply. Earlier
requests are remembered as context.

Session commands:
  /save      export the last sequence
  /history   list the requests sent so far
  /clear     forget the conversation
  /quit      leave`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(cfg.Export.Format)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	out, status := cmd.OutOrStdout(), cmd.ErrOrStderr()
	p := newPipeline(provider, cfg)

	var last *springseq.Sequence
	scanner := bufio.NewScanner(cmd.InOrStdin())
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
		case "/quit", "/exit":
			return nil
		case "/clear":
			p.Memory().Clear()
			fmt.Fprintln(out, "Conversation cleared.")
		case "/history":
			for _, rec := range p.History() {
				intent := "chat"
				if rec.Generation {
					intent = "generate"
				}
				fmt.Fprintf(out, "%s  %-8s %-9s attempts=%d %s\n",
					rec.Timestamp.Format(springseq.TimestampLayout), intent, rec.Status, rec.Attempts, rec.Duration.Round(time.Millisecond))
			}
		case "/save":
			if last == nil {
				fmt.Fprintln(out, "No sequence to save.")
				break
			}
			if err := saveSequence(cmd, last, "", format); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
			}
		default:
			result := follow(status, p.Submit(ctx, line))
			printResult(out, result)
			if result.Sequence != nil {
				last = result.Sequence
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fmt.Fprint(out, "> ")
	}
	fmt.Fprintln(out)
	return scanner.Err()
}
