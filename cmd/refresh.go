package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	app "github.com/okian/rollcall/internal/app"
	"github.com/okian/rollcall/internal/domain/types"
	"github.com/okian/rollcall/pkg/logger"
)

func newRefreshCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Build the reference gallery once and report skipped identities",
		Long: `Refresh loads every roster identity, fetches its reference image and
computes its embedding, exactly as the server does on start. With a
persistent embedding cache this warms the cache; in any case it lists the
identities that would be left out of the gallery and why.`,
		RunE: runRefresh,
	}
	cmd.Flags().Bool("no-progress", false, "Disable the progress bar")
	return cmd
}

func runRefresh(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	comps, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = comps.Close() }()

	var extra []app.Option
	if !mustGetBool(cmd, "no-progress") {
		extra = append(extra, app.WithRefreshProgress(newProgress(cmd.ErrOrStderr())))
	}
	svc, err := newService(cfg, comps, extra...)
	if err != nil {
		return err
	}

	res, err := svc.RefreshGallery(ctx)
	if err != nil {
		return fmt.Errorf("refresh gallery: %w", err)
	}
	logger.Get().Info(ctx, "gallery refreshed",
		logger.Int64("version", int64(res.Version)),
		logger.Int("total", res.Total),
		logger.Int("included", res.Included),
		logger.Int("cacheHits", res.CacheHits),
		logger.Int64("durationMs", res.DurationMS),
	)
	printSkipped(cmd.OutOrStdout(), res)
	return nil
}

// newProgress returns a refresh progress callback drawing a bar on w. The bar
// is created on the first call, once the total is known.
func newProgress(w io.Writer) func(done, total int) {
	var (
		mu  sync.Mutex
		bar *progressbar.ProgressBar
	)
	return func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(w),
				progressbar.OptionSetDescription("Computing embeddings"),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("identities"),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionFullWidth(),
			)
		}
		_ = bar.Set(done)
		if done == total {
			_ = bar.Finish()
		}
	}
}

func printSkipped(w io.Writer, res types.RefreshResult) {
	if len(res.Skipped) == 0 {
		fmt.Fprintf(w, "gallery v%d: %d/%d identities included\n", res.Version, res.Included, res.Total)
		return
	}
	fmt.Fprintf(w, "gallery v%d: %d/%d identities included, %d skipped:\n",
		res.Version, res.Included, res.Total, len(res.Skipped))
	for _, s := range res.Skipped {
		if s.Detail != "" {
			fmt.Fprintf(w, "  %-16s %-14s %s\n", s.IdentityID, s.Reason, s.Detail)
		} else {
			fmt.Fprintf(w, "  %-16s %s\n", s.IdentityID, s.Reason)
		}
	}
}

