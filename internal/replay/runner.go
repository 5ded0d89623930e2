// Package replay posts a directory of recorded frames to a running server and
// summarises what the pipeline did with them.
package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/rollcall/pkg/logger"
)

type job struct {
	frame frameFile
	image []byte
}

// Run replays every frame in cfg.Dir against the service and returns the
// collected statistics. Repeated submissions reuse the frame id.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Get().Named("replay")
	stats := &Stats{StartTime: time.Now()}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Repeat <= 0 {
		cfg.Repeat = 1
	}

	log.Info(ctx, "starting frame replay",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("dir", cfg.Dir),
		logger.String("course", cfg.Course),
		logger.Int("workers", cfg.Workers),
		logger.Int("repeat", cfg.Repeat),
		logger.Bool("async", cfg.Async),
	)

	c := newClient(cfg.BaseURL, cfg.Timeout)
	if err := c.health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	frames, err := listFrames(cfg.Dir)
	if err != nil {
		return stats, err
	}
	stats.Frames = len(frames)

	jobs := make(chan job, cfg.Workers*2)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				submit(ctx, c, cfg, j, stats, log)
			}
		}()
	}

	var readErr error
feed:
	for r := 0; r < cfg.Repeat; r++ {
		for _, f := range frames {
			image, err := os.ReadFile(f.Path)
			if err != nil {
				readErr = fmt.Errorf("read frame %s: %w", f.Path, err)
				break feed
			}
			select {
			case jobs <- job{frame: f, image: image}:
			case <-ctx.Done():
				readErr = ctx.Err()
				break feed
			}
		}
	}
	close(jobs)
	wg.Wait()

	if rep, err := c.report(ctx, cfg.Course); err != nil {
		log.Warn(ctx, "failed to fetch report", logger.Error(err))
	} else {
		stats.Present, stats.Absent = rep.Present, rep.Absent
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)
	return stats, readErr
}

func submit(ctx context.Context, c *client, cfg *Config, j job, stats *Stats, log logger.Logger) {
	atomic.AddInt64(&stats.Submitted, 1)
	code, body, err := c.postFrame(ctx, cfg.Course, j.frame.ID, j.frame.Path, j.image, cfg.Async)
	if err != nil {
		atomic.AddInt64(&stats.Failed, 1)
		log.Warn(ctx, "frame upload failed", logger.String("frame_id", j.frame.ID), logger.Error(err))
		return
	}
	if cfg.Verbose {
		log.Info(ctx, "frame response",
			logger.String("frame_id", j.frame.ID),
			logger.Int("status", code),
			logger.String("body", string(body)),
		)
	}

	switch {
	case cfg.Async && (code == http.StatusAccepted || code == http.StatusOK):
		var ack submitResult
		if err := json.Unmarshal(body, &ack); err == nil && ack.Duplicate {
			atomic.AddInt64(&stats.Duplicate, 1)
			return
		}
		atomic.AddInt64(&stats.Successful, 1)
	case !cfg.Async && code == http.StatusOK:
		var res frameResult
		if err := json.Unmarshal(body, &res); err != nil {
			atomic.AddInt64(&stats.Failed, 1)
			return
		}
		if res.DetectionError != "" {
			atomic.AddInt64(&stats.Rejected, 1)
			return
		}
		atomic.AddInt64(&stats.Successful, 1)
		atomic.AddInt64(&stats.Faces, int64(len(res.Faces)))
		for _, f := range res.Faces {
			if f.Status == "marked" {
				atomic.AddInt64(&stats.Marked, 1)
			}
		}
	case code >= http.StatusBadRequest && code < http.StatusInternalServerError:
		atomic.AddInt64(&stats.Rejected, 1)
	default:
		atomic.AddInt64(&stats.Failed, 1)
	}
}

func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var framesPerSecond float64
	if stats.Duration > 0 {
		framesPerSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("frames", stats.Frames),
		logger.Int64("submitted", stats.Submitted),
		logger.Int64("successful", stats.Successful),
		logger.Int64("duplicate", stats.Duplicate),
		logger.Int64("rejected", stats.Rejected),
		logger.Int64("failed", stats.Failed),
		logger.Int64("faces", stats.Faces),
		logger.Int64("marked", stats.Marked),
		logger.Int("present", stats.Present),
		logger.Int("absent", stats.Absent),
		logger.Duration("duration", stats.Duration),
		logger.Float64("framesPerSecond", framesPerSecond),
	)
}
