package cmd

import (
	"fmt"
	"os"

	"github.com/agentic-research/crater/internal/crate"
	"github.com/spf13/cobra"
)

func newInspectCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [archive.zip]",
		Short: "List the entries and entities of a crate archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			fi, err := f.Stat()
			if err != nil {
				return err
			}
			archive, err := crate.ReadArchive(f, fi.Size())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%s: %d entries\n", args[0], len(archive.Entries))
			for _, name := range archive.Entries {
				_, _ = fmt.Fprintf(out, "  %s\n", name)
			}
			for _, typ := range []string{"Dataset", "Person", "Organization"} {
				entities, err := crate.EntitiesOfType(archive.Manifest, typ)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "%s: %d\n", typ, len(entities))
				for _, e := range entities {
					_, _ = fmt.Fprintf(out, "  %v  %v\n", e["@id"], label(e))
				}
			}
			return nil
		},
	}
}

func label(e map[string]any) any {
	for _, k := range []string{"name", "title"} {
		if v, ok := e[k]; ok {
			return v
		}
	}
	return ""
}
