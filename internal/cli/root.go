// Package cli implements the equiprag command line.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/equiprag/config"
	"github.com/dshills/equiprag/internal/api"
	"github.com/dshills/equiprag/internal/logging"
)

// Version is stamped at build time with -ldflags
var Version = "dev"

// globals holds what PersistentPreRunE resolved for the subcommands
type globals struct {
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:   "equiprag",
		Short: "Hybrid retrieval over medical equipment catalogs",
		Long: `equiprag indexes extracted catalog text and answers equipment questions
with hybrid BM25 + vector retrieval, intent bonuses and optional LLM reranking.

Example usage:
  equiprag ingest catalogs/            # Index every .txt/.md file
  equiprag search "承重 150kg 擔架"       # Query the index
  equiprag serve                       # Start the REST API
  equiprag mcp                         # Serve MCP tools on stdio`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load()
		},
	}
	root.PersistentFlags().StringVar(&g.cfgFile, "config", "", "config file, YAML or TOML (default ./equiprag.yaml)")

	root.AddCommand(
		newServeCmd(g),
		newMCPCmd(g),
		newIngestCmd(g),
		newSearchCmd(g),
		newSourcesCmd(g),
		newStatusCmd(g),
	)
	return root
}

func (g *globals) load() error {
	var err error
	if g.cfgFile != "" {
		g.cfg, err = config.Load(g.cfgFile)
	} else {
		var wd string
		if wd, err = os.Getwd(); err == nil {
			g.cfg, err = config.LoadFromDir(wd)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := g.cfg.ApplyEnv(); err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}
	if err := g.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	g.logger, err = logging.New(g.cfg.Logging)
	if err != nil {
		return err
	}
	slog.SetDefault(g.logger)
	api.Version = Version
	return nil
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
