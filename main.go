package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ccollins476ad/awemescrape/download"
	"github.com/ccollins476ad/awemescrape/fileutil"
	"github.com/ccollins476ad/awemescrape/metrics"
	"github.com/ccollins476ad/awemescrape/progress"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
)

// Exit codes
const (
	ExitSuccess       = 0
	ExitInvalidArgs   = 1
	ExitSourceError   = 2
	ExitStrictFailure = 3
)

func printFatalError(w io.Writer, err error) {
	fmt.Fprintf(w, "error: %v\n", err)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return ExitSuccess
	}
	if err != nil {
		printFatalError(stderr, err)
		return ExitInvalidArgs
	}

	log.SetOutput(stderr)
	log.SetLevel(log.InfoLevel)
	if cfg.Verbose {
		log.SetLevel(log.DebugLevel)
	}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			printFatalError(stderr, err)
			return ExitInvalidArgs
		}
		defer f.Close()
		log.SetOutput(io.MultiWriter(stderr, f))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessOpts := cfg.SessionOptions()
	switch {
	case cfg.StateFile == "":
	case !fileutil.FileExists(cfg.StateFile):
		log.Warnf("state file not found, continuing without cookies: %s", cfg.StateFile)
	default:
		cookies, err := download.LoadStorageState(cfg.StateFile)
		if err != nil {
			printFatalError(stderr, err)
			return ExitInvalidArgs
		}
		log.Infof("loaded %d cookie(s) from %s", len(cookies), cfg.StateFile)
		sessOpts.Cookies = cookies
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.New(reg)
	if cfg.MetricsAddr != "" {
		if _, err := metrics.Serve(ctx, cfg.MetricsAddr, reg); err != nil {
			printFatalError(stderr, err)
			return ExitInvalidArgs
		}
	}

	progressSinks := []download.Progress{rec}
	observers := []download.Observer{rec}
	var reporter *progress.Reporter
	if cfg.Progress {
		reporter = progress.NewReporter(progress.Options{Output: stdout})
		progressSinks = append(progressSinks, reporter)
		observers = append(observers, reporter)
	}

	policy := cfg.RetryPolicy()
	policy.NewSession = download.SessionFactory(sessOpts)

	sess := download.NewSession(sessOpts)
	defer sess.Close()

	s := download.NewStore(download.Options{
		Concurrency: cfg.Concurrency,
		Retry:       policy,
		Session:     sess,
		Progress:    download.MultiProgress(progressSinks...),
		Observer:    download.MultiObserver(observers...),
	})
	defer s.Close()

	log.Infof("concurrency=%d quality=%s retry: %s", cfg.Concurrency, cfg.Quality, retryPolicyString(cfg))

	queued := 0
	if cfg.DataDir != "" {
		n, err := processFeeds(cfg, s)
		if err != nil {
			printFatalError(stderr, err)
			return ExitSourceError
		}
		queued += n
	}
	if cfg.URLsFile != "" {
		n, err := processLinks(cfg, s)
		if err != nil {
			printFatalError(stderr, err)
			return ExitSourceError
		}
		queued += n
	}
	log.Infof("queued %d download(s)", queued)

	if reporter != nil {
		reporter.SetTotalJobs(queued)
		reporter.Begin()
	}
	rep := s.Run(ctx)
	if reporter != nil {
		reporter.End()
	}

	if cfg.Gallery {
		writeGalleries(rep)
	}

	for _, o := range rep.Failures() {
		fmt.Fprintf(stdout, "FAILED %s -> %s: %v\n", o.Job.URL, o.Job.Path, o.Err)
	}
	fmt.Fprintln(stdout, rep.Summary())

	if cfg.Strict && rep.Failed() > 0 {
		return ExitStrictFailure
	}
	return ExitSuccess
}
