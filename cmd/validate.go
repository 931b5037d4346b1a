package cmd

import (
	"fmt"

	"github.com/agentic-research/crater/internal/export"
	"github.com/spf13/cobra"
)

func newValidateCmd(a *app) *cobra.Command {
	var selection string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Interpret the schema against the facts without writing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sel, err := export.ParseSelection(selection)
			if err != nil {
				return err
			}
			s, err := a.loadSchema()
			if err != nil {
				return err
			}
			store, err := a.openFacts()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			plan, err := a.newBuilder(store).Build(cmd.Context(), s, sel)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			name, _ := plan.Root.Get("name")
			_, _ = fmt.Fprintf(out, "schema %s ok: %q\n", s.Source, name)
			for _, d := range plan.Datasets {
				_, _ = fmt.Fprintf(out, "  [%d] %s/  authors=%d contributors=%d placeholders=%v\n",
					d.SetIndex, d.Folder, len(d.Authors), len(d.Contributors), d.Placeholders)
			}
			_, _ = fmt.Fprintf(out, "datasets: %d  persons: %d  organizations: %d\n",
				len(plan.Datasets), len(plan.Persons), len(plan.Organizations))
			return nil
		},
	}
	cmd.Flags().StringVar(&selection, "select", "", "Dataset set indices to check; all if empty")
	cmd.Flags().String("set-path", export.DefaultSetPath, "Attribute whose sets enumerate the datasets")
	cmd.Flags().String("title", "", "Crate name, overriding the project title")
	return cmd
}
