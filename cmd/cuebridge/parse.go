package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerrad567/cuebridge/internal/annotation"
)

// parsedInvocation is the printed form of one invocation.
type parsedInvocation struct {
	Tag  string   `json:"tag"`
	Form string   `json:"form"`
	Args []string `json:"args"`
}

func newParseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse [text]",
		Short: "Parse annotation text and print the invocations it contains",
		Long: `Parse annotation text without dispatching anything. The text is taken from
the arguments, or from stdin when none are given. Output is one JSON object
per invocation, in dispatch order.`,
		Example: `  cuebridge parse "note[60] [vmix]{\"Function\":\"Cut\"}[/vmix]"
  pbpaste | cuebridge parse`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
				text = string(data)
			}
			return printInvocations(cmd.OutOrStdout(), annotation.Parse(text))
		},
	}
	return cmd
}

func printInvocations(w io.Writer, invs []annotation.Invocation) error {
	enc := json.NewEncoder(w)
	for _, inv := range invs {
		out := parsedInvocation{Tag: inv.Tag, Form: inv.Form.String(), Args: inv.Args}
		if out.Args == nil {
			out.Args = []string{}
		}
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}
	return nil
}
