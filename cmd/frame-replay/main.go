// Command frame-replay posts a directory of recorded frames to a running
// rollcall server and logs what the pipeline did with them.
package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/rollcall/internal/replay"
	"github.com/okian/rollcall/pkg/logger"
)

// Default configuration constants.
const (
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 60 * time.Second
	defaultTestTimeout = 30 * time.Minute
)

func main() {
	var (
		baseURL = flag.String("url", "http://localhost:9080", "Base URL of the service")
		dir     = flag.String("dir", "frames", "Directory of .jpg/.jpeg/.png frames")
		course  = flag.String("course", "", "Course the frames are submitted for")
		workers = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent uploaders")
		timeout = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		async   = flag.Bool("async", false, "Queue frames instead of processing them synchronously")
		repeat  = flag.Int("repeat", 1, "Submit every frame this many times with the same frame id")
		verbose = flag.Bool("verbose", false, "Log every response")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *course == "" {
		os.Stderr.WriteString("-course is required\n")
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	cfg := &replay.Config{
		BaseURL: *baseURL,
		Dir:     *dir,
		Course:  *course,
		Workers: *workers,
		Timeout: *timeout,
		Async:   *async,
		Repeat:  *repeat,
		Verbose: *verbose,
	}
	if _, err := replay.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("replay failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
