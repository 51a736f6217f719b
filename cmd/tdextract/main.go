// Command tdextract reads Teradata SQL from a file or stdin and prints its
// lineage report as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kyleconroy/tdlineage/internal/lineage"
	"github.com/kyleconroy/tdlineage/parser"
)

type envelope struct {
	RequestID string          `json:"request_id"`
	Error     string          `json:"error"`
	Report    *lineage.Report `json:"report,omitempty"`
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var softErrors bool

	cmd := &cobra.Command{
		Use:   "tdextract [file]",
		Short: "Extract table, column, and predicate lineage from Teradata SQL",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			return run(cmd.OutOrStdout(), r, softErrors)
		},
	}

	cmd.Flags().BoolVar(&softErrors, "soft-errors", false,
		"emit a JSON error envelope with exit code 0 instead of failing the process")

	return cmd
}

func run(w io.Writer, r io.Reader, softErrors bool) error {
	stmts, err := parser.Parse(context.Background(), r)
	if err != nil && !softErrors {
		return err
	}
	if err != nil {
		return writeEnvelope(w, err)
	}

	report, err := lineage.Extract(stmts)
	if err != nil {
		if softErrors {
			return writeEnvelope(w, err)
		}
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func writeEnvelope(w io.Writer, cause error) error {
	env := envelope{
		RequestID: uuid.NewString(),
		Error:     cause.Error(),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "tdextract: soft error recorded, request_id="+env.RequestID)
	return nil
}
