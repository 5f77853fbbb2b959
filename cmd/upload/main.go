package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hackclub/mediadrop/internal/config"
	"github.com/hackclub/mediadrop/internal/logging"
	"github.com/hackclub/mediadrop/internal/media"
	"github.com/hackclub/mediadrop/internal/storage"
	"golang.org/x/sync/errgroup"
)

const maxParallel = 4

func main() {
	group := flag.String("group", "", "group label for the uploaded files (default $DEFAULT_GROUP)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-group name] FILE...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	store, err := storage.New(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage client")
	}
	uploader := media.NewUploader(store, logger, media.WithDefaultGroup(cfg.DefaultGroup))

	os.Exit(run(ctx, uploader, *group, flag.Args()))
}

// run uploads every path and prints one "path<TAB>url" line per success.
// Failures are already logged by the uploader; the exit code reports them.
func run(ctx context.Context, uploader *media.Uploader, group string, paths []string) int {
	results := make([]*media.UploadResult, len(paths))
	failed := make([]bool, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for i, path := range paths {
		g.Go(func() error {
			result, err := uploader.Upload(ctx, media.UploadRequest{SourcePath: path, Group: group})
			if err != nil {
				failed[i] = true
				return nil
			}
			results[i] = result
			return nil
		})
	}
	_ = g.Wait()

	code := 0
	for i, path := range paths {
		if failed[i] {
			code = 1
			continue
		}
		fmt.Printf("%s\t%s\n", path, results[i].URL)
	}
	return code
}
