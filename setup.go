package main

import (
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/ccollins476ad/awemescrape/config"
)

// parseArgs builds the configuration from defaults, an optional config file,
// AWEMESCRAPE_* environment variables and finally the command line, each
// overriding the previous. Only flags given explicitly override the file.
func parseArgs(args []string, output io.Writer) (*config.Config, error) {
	def := config.Default()

	fs := flag.NewFlagSet("awemescrape", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() { usage(fs) }

	configFile := fs.String("c", "", "YAML config file")
	quality := def.Quality
	fs.TextVar(&quality, "q", def.Quality, "quality: all, best or a variant index (negative counts from the end)")
	downloadNum := fs.Int("n", def.DownloadNum, "stop after this many records; 0 for no limit")
	concurrency := fs.Int("j", def.Concurrency, "downloads to run in parallel")
	minSize := fs.String("min-size", fmt.Sprint(def.MinValidBytes), "smallest trusted file size, e.g. 512 or 4KiB")
	attempts := fs.Int("attempts", def.Retry.Attempts, "attempts per file")
	sleepMin := fs.Duration("sleep-min", def.Retry.SleepMin, "minimum pause between attempts")
	sleepMax := fs.Duration("sleep-max", def.Retry.SleepMax, "maximum pause between attempts")
	resetEvery := fs.Int("reset-every", def.Retry.ResetEvery, "replace the connection pool after this many failures; 0 never")
	timeout := fs.Duration("timeout", def.Timeout, "connect timeout")
	state := fs.String("state", "", "browser storage-state file with login cookies")
	urls := fs.String("urls", "", "download every link found in this text file")
	referer := fs.String("referer", def.Referer, "Referer header")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	logFile := fs.String("log-file", "", "also write log output to this file")
	verbose := fs.Bool("v", false, "verbose output")
	strict := fs.Bool("strict", false, "exit with status 3 if any download failed")
	noProgress := fs.Bool("no-progress", false, "do not print periodic progress")
	noGallery := fs.Bool("no-gallery", false, "do not write index.html next to downloaded images")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := config.Default()
	if *configFile != "" {
		var err error
		cfg, err = config.LoadFromFile(*configFile)
		if err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "q":
			cfg.Quality = quality
		case "n":
			cfg.DownloadNum = *downloadNum
		case "j":
			cfg.Concurrency = *concurrency
		case "min-size":
			n, err := config.ParseSize(*minSize)
			if err != nil {
				flagErr = fmt.Errorf("invalid -min-size: %w", err)
				return
			}
			cfg.MinValidBytes = n
		case "attempts":
			cfg.Retry.Attempts = *attempts
		case "sleep-min":
			cfg.Retry.SleepMin = *sleepMin
		case "sleep-max":
			cfg.Retry.SleepMax = *sleepMax
		case "reset-every":
			cfg.Retry.ResetEvery = *resetEvery
		case "timeout":
			cfg.Timeout = *timeout
		case "state":
			cfg.StateFile = *state
		case "urls":
			cfg.URLsFile = *urls
		case "referer":
			cfg.Referer = *referer
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		case "log-file":
			cfg.LogFile = *logFile
		case "v":
			cfg.Verbose = *verbose
		case "strict":
			cfg.Strict = *strict
		case "no-progress":
			cfg.Progress = !*noProgress
		case "no-gallery":
			cfg.Gallery = !*noGallery
		}
	})
	if flagErr != nil {
		return nil, flagErr
	}

	switch fs.NArg() {
	case 0:
	case 1:
		cfg.DataDir = fs.Arg(0)
	default:
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args()[1:])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func usage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: %s [option]... <data_dir>\n", filepath.Base(fs.Name()))
	fmt.Fprintf(fs.Output(), "Downloads the covers, videos, music and images of saved aweme feeds.\n")
	fs.PrintDefaults()
}

// retryPolicyString is used in the startup log line.
func retryPolicyString(cfg *config.Config) string {
	return fmt.Sprintf("attempts=%d sleep=%s..%s reset_every=%d",
		cfg.Retry.Attempts,
		cfg.Retry.SleepMin.Round(time.Millisecond),
		cfg.Retry.SleepMax.Round(time.Millisecond),
		cfg.Retry.ResetEvery)
}
