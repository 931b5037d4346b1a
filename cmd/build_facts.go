package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/agentic-research/crater/internal/facts"
	"github.com/spf13/cobra"
)

func newBuildFactsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build-facts [export.json] [output.db]",
		Short: "Convert a JSON project export into a SQLite fact store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, output := args[0], args[1]
			start := time.Now()

			n, err := buildFacts(cmd, source, output, a.cfg.Facts.Selector)
			if err != nil {
				return err
			}
			a.logger.Info("fact store built", "source", source, "output", output, "values", n, "duration", time.Since(start))
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %d values to %s\n", n, output)
			return nil
		},
	}
	cmd.Flags().String("selector", facts.DefaultSelector, "JSONPath of the value records")
	return cmd
}

// buildFacts replaces output with the values of the JSON export at source.
func buildFacts(cmd *cobra.Command, source, output, selector string) (int, error) {
	mem, err := facts.LoadJSON(source, selector)
	if err != nil {
		return 0, err
	}
	project, err := mem.Project(cmd.Context())
	if err != nil {
		return 0, err
	}

	if err := os.Remove(output); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("remove %s: %w", output, err)
	}
	w, err := facts.NewSQLiteWriter(output)
	if err != nil {
		return 0, err
	}
	if err := w.SetProject(project); err != nil {
		_ = w.Close()
		return 0, err
	}
	for _, v := range mem.All() {
		if err := w.Add(v); err != nil {
			_ = w.Close()
			return 0, err
		}
	}
	n := w.Count()
	return n, w.Close()
}
