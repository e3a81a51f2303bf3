package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/equiprag/internal/retriever"
	"github.com/dshills/equiprag/pkg/types"
)

func newSearchCmd(g *globals) *cobra.Command {
	var (
		topK        int
		mode        string
		rerankModel string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "search <question>",
		Short: "Retrieve catalog chunks for a question",
		Long: `Run hybrid retrieval for a question and print the top chunks.

Examples:
  equiprag search "承重 150kg 以上的擔架"
  equiprag search "Model 35-X specifications" --mode keyword
  equiprag search "folding stretcher" --rerank-model llama3:70b --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			searchMode, err := retriever.ParseMode(mode)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), g.cfg, g.logger)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			resp, err := a.retriever.Retrieve(cmd.Context(), retriever.Request{
				Question:    strings.Join(args, " "),
				TopK:        topK,
				Mode:        searchMode,
				RerankModel: rerankModel,
			})
			if err != nil {
				if errors.Is(err, types.ErrEmbeddingUnavailable) || errors.Is(err, types.ErrSearchUnavailable) {
					return fmt.Errorf("temporarily unable to search catalog: %w", err)
				}
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp.Results)
			}
			printResponse(out, resp)
			return nil
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of results (default from config)")
	cmd.Flags().StringVar(&mode, "mode", "hybrid", "search mode: hybrid, vector or keyword")
	cmd.Flags().StringVar(&rerankModel, "rerank-model", "", "Ollama model used to rerank candidates")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func printResponse(out io.Writer, resp *retriever.Response) {
	for _, w := range resp.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	if len(resp.Results) == 0 {
		fmt.Fprintln(out, "no matching equipment found")
		return
	}

	for i, r := range resp.Results {
		loc := fmt.Sprintf("%s #%d", r.Source, r.ChunkIndex)
		if r.Page != nil {
			loc = fmt.Sprintf("%s p.%d #%d", r.Source, *r.Page, r.ChunkIndex)
		}
		fmt.Fprintf(out, "%d. [%.3f] %s\n", i+1, r.Score, loc)
		for _, line := range strings.Split(strings.TrimSpace(r.Content), "\n") {
			fmt.Fprintf(out, "   %s\n", line)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "%d results (%s", len(resp.Results), resp.SearchMode)
	if resp.Reranked > 0 {
		fmt.Fprintf(out, ", %d reranked", resp.Reranked)
	}
	fmt.Fprintf(out, ") in %s\n", resp.Duration.Round(time.Microsecond))
}
