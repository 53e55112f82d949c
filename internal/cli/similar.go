package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/five82/glance/internal/backend"
	"github.com/five82/glance/internal/progress"
	"github.com/five82/glance/internal/similar"
	"github.com/five82/glance/internal/state"
)

const similarPollInterval = 100 * time.Millisecond

type similarFlags struct {
	threshold int
	limit     int
}

func newSimilarCommand(flags *rootFlags) *cobra.Command {
	sf := &similarFlags{}
	cmd := &cobra.Command{
		Use:   "similar <folder> <reference>",
		Short: "Find photos similar to a reference photo",
		Long: `Find photos in a folder that look like a reference photo.

If the folder is not fully indexed yet, indexing is started and the result
is refined as more embeddings become available. The command prints each
refinement and the final list once indexing completes.

Examples:
  # Photos at least 80% similar
  glance similar ~/Pictures/2024 ~/Pictures/2024/beach.jpg

  # Looser match, show 10 results
  glance similar ~/Pictures/2024 ~/Pictures/2024/beach.jpg --threshold 60 --limit 10`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, client, logger, err := flags.headless()
			if err != nil {
				return err
			}
			threshold := sf.threshold
			if !cmd.Flags().Changed("threshold") {
				threshold = cfg.DefaultThreshold
			}
			opts := similar.Options{
				Stride:   cfg.RefineStride,
				Debounce: cfg.ThresholdDebounce(),
				Logger:   logger,
			}
			q := similar.Query{Folder: args[0], Reference: args[1], ThresholdPercent: threshold}
			return runSimilar(cmd.Context(), client, q, opts, sf.limit, cmd.OutOrStdout(), logger)
		},
	}
	cmd.Flags().IntVar(&sf.threshold, "threshold", 80, "minimum similarity in percent (0-100)")
	cmd.Flags().IntVar(&sf.limit, "limit", 50, "maximum number of results to print (0 = all)")
	return cmd
}

// similarService is the part of the backend the similar command uses.
type similarService interface {
	indexService
	FindSimilar(ctx context.Context, query backend.SimilarQuery) ([]backend.Photo, error)
}

// finishSignal closes done the first time indexing completes.
type finishSignal struct {
	*similar.Controller
	done chan struct{}
	once sync.Once
}

func (f *finishSignal) Finish() bool {
	issued := f.Controller.Finish()
	f.once.Do(func() { close(f.done) })
	return issued
}

func runSimilar(ctx context.Context, svc similarService, q similar.Query, opts similar.Options, limit int, out io.Writer, logger *slog.Logger) error {
	q.Folder = strings.TrimSpace(q.Folder)
	q.Reference = strings.TrimSpace(q.Reference)
	if err := svc.ImportFolder(ctx, q.Folder); err != nil {
		return fmt.Errorf("import folder: %w", err)
	}
	status, err := svc.IndexingStatus(ctx, q.Folder)
	if err != nil {
		return fmt.Errorf("indexing status: %w", err)
	}

	store := &state.Store{}
	ctrl := similar.New(ctx, svc, store, opts)
	defer ctrl.Close()

	if status.Complete() || status.Total == 0 {
		ctrl.Start(q)
		ctrl.Wait()
		return printSimilar(out, store.Snapshot(), limit)
	}

	sub, err := svc.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer func() { _ = sub.Close() }()

	finished := &finishSignal{Controller: ctrl, done: make(chan struct{})}
	listener := progress.NewListener(store, finished, nil, progress.Options{Logger: logger})
	listenErr := make(chan error, 1)
	go func() { listenErr <- listener.Run(ctx, sub.Events()) }()

	// Record progress the listener has not seen yet, so the first refinement
	// counts from here.
	ctrl.Advance(status.Indexed, status.Total)
	ctrl.Start(q)
	if err := svc.TriggerIndexing(ctx, q.Folder); err != nil {
		return fmt.Errorf("trigger indexing: %w", err)
	}
	logger.Info("refining while indexing", "folder", q.Folder, "indexed", status.Indexed, "total", status.Total)

	ticker := time.NewTicker(similarPollInterval)
	defer ticker.Stop()
	var applied int
	report := func() {
		stats := ctrl.Stats()
		if stats.Applied == applied {
			return
		}
		applied = stats.Applied
		snap := store.Snapshot()
		fmt.Fprintf(out, "%d matches (indexed %d/%d)\n", len(snap.Similarity.Results), snap.Indexing.Current, snap.Indexing.Total)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-listenErr:
			if err != nil {
				return fmt.Errorf("event stream: %w", err)
			}
			return ErrStreamClosed
		case <-finished.done:
			ctrl.Wait()
			return printSimilar(out, store.Snapshot(), limit)
		case <-ticker.C:
			report()
		}
	}
}

func printSimilar(out io.Writer, snap state.Snapshot, limit int) error {
	results := snap.Similarity.Results
	fmt.Fprintf(out, "%d photos at least %d%% similar to %s\n", len(results), snap.Similarity.ThresholdPercent, snap.Similarity.Reference)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	if len(results) == 0 {
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZE\tDIMENSIONS\tPATH")
	for _, p := range results {
		fmt.Fprintf(w, "%s\t%s\t%dx%d\t%s\n", p.Name, humanSize(p.Size), p.Width, p.Height, p.Path)
	}
	return w.Flush()
}

func humanSize(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
