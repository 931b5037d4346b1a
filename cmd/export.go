package cmd

import (
	"fmt"

	"github.com/agentic-research/crater/internal/export"
	"github.com/agentic-research/crater/internal/metrics"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	var selection string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Build the crate, its manifest and zip archive",
		Long: `Build one RO-Crate from the fact store. Every selected dataset becomes a
folder plus a Dataset entity; creators become Person entities. The crate is
written to a fresh crate-<id> directory under --base-dir and zipped next to it.

Schema errors are reported before anything is written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
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

			rec := metrics.New()
			e := export.NewExporter(a.newBuilder(store), s, osfs.New(a.cfg.Export.BaseDir), rec)
			res, err := e.Export(ctx, sel)
			if path := a.cfg.Metrics.TextFile; path != "" {
				if werr := rec.WriteTextfile(path); werr != nil {
					a.logger.Warn("write metrics textfile", "path", path, "error", werr)
				}
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "crate:    %s\n", res.Dir)
			_, _ = fmt.Fprintf(out, "archive:  %s\n", res.Archive)
			_, _ = fmt.Fprintf(out, "datasets: %d  persons: %d  placeholders: %d\n",
				res.Datasets, res.Persons, res.Placeholders)

			if dir := a.cfg.Export.OutputDir; dir != "" {
				fs := osfs.New(dir)
				name, err := export.WriteDownload(fs, res)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "manifest: %s\n", fs.Join(dir, name))
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&selection, "select", "", `Dataset set indices to export, e.g. "0,2,4-6"; all if empty`)
	f.String("base-dir", "", "Directory receiving crate working directories (default: system temp dir)")
	f.StringP("output", "o", "", "Also write the manifest, named after the project title, to this directory")
	f.String("set-path", export.DefaultSetPath, "Attribute whose sets enumerate the datasets")
	f.String("title", "", "Crate name, overriding the project title")
	f.String("metrics-file", "", "Write prometheus metrics in textfile format to this path")
	return cmd
}
