package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/agentic-research/crater/internal/export"
	"github.com/spf13/cobra"
)

func newSetsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sets",
		Short: "List the datasets available for --select",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openFacts()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			choices, err := a.newBuilder(store).Choices(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "INDEX\tDATASET")
			for _, c := range choices {
				_, _ = fmt.Fprintf(tw, "%d\t%s\n", c.SetIndex, c.Label)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().String("set-path", export.DefaultSetPath, "Attribute whose sets enumerate the datasets")
	return cmd
}
