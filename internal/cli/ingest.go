package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/dshills/equiprag/internal/indexer"
)

func newIngestCmd(g *globals) *cobra.Command {
	var (
		source string
		mode   string
		watch  bool
		quiet  bool
	)

	cmd := &cobra.Command{
		Use:   "ingest <path>",
		Short: "Index extracted catalog text from a file or directory",
		Long: `Index a text file, or every matching file in a directory, replacing any
earlier version of each source. Files are matched by the index.includes and
index.excludes patterns of the config.

Examples:
  equiprag ingest ferno-2024.txt --source ferno
  equiprag ingest catalogs/
  equiprag ingest catalogs/ --watch     # Re-ingest on change`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("invalid path: %w", err)
			}
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("path does not exist: %w", err)
			}

			a, err := newApp(ctx, g.cfg, g.logger)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			chunkMode, err := a.chunkMode(mode)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if !info.IsDir() {
				if watch {
					return fmt.Errorf("--watch requires a directory")
				}
				res, err := a.indexer.IngestFile(ctx, path, source, chunkMode)
				if err != nil {
					return fmt.Errorf("ingestion failed: %w", err)
				}
				printResult(out, res)
				return nil
			}

			if source != "" {
				return fmt.Errorf("--source applies to a single file; directory files are named by their relative path")
			}
			opts := indexer.DirOptions{
				Includes: g.cfg.Index.Includes,
				Excludes: g.cfg.Index.Excludes,
				Mode:     chunkMode,
			}
			if err := ingestDir(ctx, a, path, opts, out, quiet); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			fmt.Fprintf(out, "\nWatching %s for changes (Ctrl+C to stop)...\n", path)
			return a.indexer.Watch(ctx, path, indexer.WatchOptions{
				DirOptions: opts,
				OnEvent: func(ev indexer.WatchEvent) {
					switch {
					case ev.Err != nil:
						fmt.Fprintf(out, "  ! %s: %v\n", ev.Source, ev.Err)
					case ev.Removed:
						fmt.Fprintf(out, "  - %s removed\n", ev.Source)
					default:
						fmt.Fprintf(out, "  + %s: %d chunks\n", ev.Source, ev.Result.ChunksWritten)
					}
				},
			})
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "source name for a single file (default: file name)")
	cmd.Flags().StringVar(&mode, "mode", "", "chunking mode: catalog or generic (default from config)")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running and re-ingest files when they change")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "disable the progress bar")
	return cmd
}

func ingestDir(ctx context.Context, a *app, root string, opts indexer.DirOptions, out io.Writer, quiet bool) error {
	files, err := indexer.DiscoverFiles(root, opts)
	if err != nil {
		return fmt.Errorf("failed to discover files: %w", err)
	}
	fmt.Fprintf(out, "Found %d files in %s\n", len(files), root)
	if len(files) == 0 {
		return nil
	}

	if !quiet {
		bar := progressbar.NewOptions(len(files),
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription("Ingesting"),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(out) }),
		)
		opts.Progress = func(source string, _ *indexer.Result, _ error) {
			bar.Describe(source)
			_ = bar.Add(1)
		}
	}

	stats, err := a.indexer.IngestDir(ctx, root, opts)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Fprintf(out, "\nIngestion complete:\n")
	fmt.Fprintf(out, "  Files indexed:  %d\n", stats.FilesIndexed)
	fmt.Fprintf(out, "  Files failed:   %d\n", stats.FilesFailed)
	fmt.Fprintf(out, "  Chunks written: %d\n", stats.ChunksWritten)
	if stats.ChunksFailed > 0 {
		fmt.Fprintf(out, "  Chunks failed:  %d\n", stats.ChunksFailed)
	}
	fmt.Fprintf(out, "  Duration:       %s\n", stats.Duration.Round(time.Millisecond))
	if len(stats.ErrorMessages) > 0 {
		fmt.Fprintf(out, "\nErrors:\n")
		for _, e := range stats.ErrorMessages {
			fmt.Fprintf(out, "  - %s\n", e)
		}
	}
	return nil
}

func printResult(out io.Writer, res *indexer.Result) {
	fmt.Fprintf(out, "Ingested %s: %d chunks written", res.Source, res.ChunksWritten)
	if res.ChunksFailed > 0 {
		fmt.Fprintf(out, ", %d failed", res.ChunksFailed)
	}
	fmt.Fprintln(out)
	for _, e := range res.ErrorMessages {
		fmt.Fprintf(out, "  - %s\n", e)
	}
}
