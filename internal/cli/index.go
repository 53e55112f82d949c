package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/five82/glance/internal/backend"
)

// ErrStreamClosed is returned when the event stream ends before indexing
// completes.
var ErrStreamClosed = errors.New("event stream closed before indexing finished")

func newIndexCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "index <folder>",
		Short: "Import a folder and index its embeddings, showing progress",
		Long: `Import a folder into the photo service and compute image embeddings for
every photo that does not have one yet. Progress is shown until indexing
completes.

Examples:
  glance index ~/Pictures/2024`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, logger, err := flags.headless()
			if err != nil {
				return err
			}
			return runIndex(cmd.Context(), client, args[0], cmd.ErrOrStderr(), logger)
		},
	}
}

// indexService is the part of the backend the index command uses.
type indexService interface {
	ImportFolder(ctx context.Context, folder string) error
	IndexingStatus(ctx context.Context, folder string) (backend.IndexingStatus, error)
	TriggerIndexing(ctx context.Context, folder string) error
	Subscribe(ctx context.Context) (*backend.Subscription, error)
}

func runIndex(ctx context.Context, svc indexService, folder string, out io.Writer, logger *slog.Logger) error {
	folder = strings.TrimSpace(folder)
	if err := svc.ImportFolder(ctx, folder); err != nil {
		return fmt.Errorf("import folder: %w", err)
	}
	status, err := svc.IndexingStatus(ctx, folder)
	if err != nil {
		return fmt.Errorf("indexing status: %w", err)
	}
	if status.Total == 0 {
		fmt.Fprintf(out, "%s: no photos\n", folder)
		return nil
	}
	if status.Complete() {
		fmt.Fprintf(out, "%s: all %d photos indexed\n", folder, status.Total)
		return nil
	}

	// Subscribe first so no progress event is missed.
	sub, err := svc.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer func() { _ = sub.Close() }()

	if err := svc.TriggerIndexing(ctx, folder); err != nil {
		return fmt.Errorf("trigger indexing: %w", err)
	}
	logger.Info("indexing started", "folder", folder, "indexed", status.Indexed, "total", status.Total)

	bar := newIndexProgressBar(status.Total, out)
	_ = bar.Set(status.Indexed)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub.Events():
			if !ok {
				if err := sub.Err(); err != nil {
					return fmt.Errorf("%w: %v", ErrStreamClosed, err)
				}
				return ErrStreamClosed
			}
			if ev.Type != backend.EventIndexingProgress {
				continue
			}
			p := ev.Progress
			if p.Total > 0 && int64(p.Total) != bar.GetMax64() {
				bar.ChangeMax(p.Total)
			}
			_ = bar.Set(p.Current)
			if p.Done {
				_ = bar.Finish()
				fmt.Fprintln(out)
				logger.Info("indexing complete", "folder", folder, "total", p.Total)
				return nil
			}
		}
	}
}

func newIndexProgressBar(total int, out io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("Indexing"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetWidth(30),
	)
}
