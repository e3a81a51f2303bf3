package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show index statistics and service health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), g.cfg, g.logger)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			status, err := a.store.GetStatus(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Index (%s, schema %s)\n", status.Backend, status.SchemaVersion)
			fmt.Fprintf(out, "  Sources:    %d\n", status.SourcesCount)
			fmt.Fprintf(out, "  Chunks:     %d\n", status.ChunksCount)
			fmt.Fprintf(out, "  Embeddings: %d\n", status.EmbeddingsCount)
			fmt.Fprintf(out, "  Size:       %.2f MB\n", status.IndexSizeMB)
			if !status.LastIngestedAt.IsZero() {
				fmt.Fprintf(out, "  Last ingest: %s\n", status.LastIngestedAt.Local().Format(time.RFC3339))
			}

			fmt.Fprintf(out, "Embedding: %s/%s (%d dims)\n", a.embedder.Provider(), a.embedder.Model(), g.cfg.Embedding.Dimension)

			ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
			defer cancel()
			ollama := "ok"
			if err := a.llm.Ping(ctx); err != nil {
				ollama = "unavailable (" + err.Error() + ")"
			}
			fmt.Fprintf(out, "Ollama:    %s at %s\n", ollama, g.cfg.Ollama.Host)
			return nil
		},
	}
}
