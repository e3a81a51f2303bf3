package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/equiprag/internal/storage"
)

func newSourcesCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List indexed sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), g.cfg, g.logger)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			sources, err := a.store.ListSources(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(sources) == 0 {
				fmt.Fprintln(out, "no sources indexed")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SOURCE\tCHUNKS\tINGESTED")
			for _, s := range sources {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", s.Source, s.Chunks, s.IngestedAt.Local().Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "delete <source>",
		Aliases: []string{"rm"},
		Short:   "Delete every chunk of a source",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), g.cfg, g.logger)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			n, err := a.indexer.DeleteSource(cmd.Context(), args[0])
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("source %s not found", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (%d chunks)\n", args[0], n)
			return nil
		},
	})
	return cmd
}
