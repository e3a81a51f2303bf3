package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/equiprag/internal/api"
	"github.com/dshills/equiprag/internal/mcp"
)

func newServeCmd(g *globals) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API",
		Long: `Start the REST API serving /health, /retrieve, /ingest, /sources and /models.

Examples:
  equiprag serve
  equiprag serve --addr 127.0.0.1:9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, g.cfg, g.logger)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if addr == "" {
				addr = g.cfg.Server.Addr
			}
			srv := api.New(api.Deps{
				Retriever: a.retriever,
				Ingester:  a.indexer,
				Catalog:   a.store,
				Models:    a.llm,
			}, api.Options{
				RateLimit: g.cfg.Server.RateLimit,
				Burst:     g.cfg.Server.Burst,
				Logger:    g.logger,
			})
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func newMCPCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve catalog tools over the Model Context Protocol on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, g.cfg, g.logger)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			return mcp.NewServer(a.retriever, a.indexer, a.store, g.logger).Serve(ctx)
		},
	}
}
