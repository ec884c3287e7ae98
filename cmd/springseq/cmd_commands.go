package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zoobzio/springseq"
)

// commandsCmd prints the tester vocabulary
var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List the tester command vocabulary and standard speeds",
	Args:  cobra.NoArgs,
	RunE:  runCommands,
}

func runCommands(cmd *cobra.Command, args []string) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CMD\tDescription\tSpeed rpm")
	for _, c := range springseq.Commands {
		speed := springseq.StandardSpeed(c.Code)
		if speed == "" {
			speed = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Code, c.Description, speed)
	}
	return tw.Flush()
}
