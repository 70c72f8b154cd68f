package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sumire/jobconsole/internal/api"
	"github.com/sumire/jobconsole/internal/auth"
	"github.com/sumire/jobconsole/internal/backendtest"
	"github.com/sumire/jobconsole/internal/config"
	"github.com/sumire/jobconsole/internal/domain"
	"github.com/sumire/jobconsole/internal/notify"
	"github.com/sumire/jobconsole/internal/poller"
	"github.com/sumire/jobconsole/internal/service"
	"github.com/sumire/jobconsole/internal/store"
)

const usage = `Usage: jobctl [-demo] <command> [flags]

Commands:
  jobs                          list jobs with their status
  executions <job>              list executions of a job
  start [-file path] <job>      start a job
  stop [-exec id] <job>         stop the latest or the given execution
  logs [-exec id] <job>         print execution logs
  build-logs <job>              print image build logs
  artifacts [-exec id] <job>    download artifacts
  schedules list <job>
  schedules create [window flags] <job>
  schedules update [window flags] <job> <schedule>
  schedules delete <job> <schedule>
  watch                         interactive console
`

func main() {
	if err := run(); err != nil {
		if !errors.Is(err, errReported) {
			slog.Error("application error", "error", err)
		}
		os.Exit(1)
	}
}

// app bundles the wired collaborators a command needs.
type app struct {
	cfg       config.Config
	svc       *service.JobService
	store     *store.Store
	sink      *notify.Sink
	refresher *poller.Refresher
}

func run() error {
	demo := flag.Bool("demo", false, "run against a seeded in-process backend")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		return errors.New("missing command")
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load(!*demo)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *demo {
		shutdown, err := startDemoBackend(&cfg)
		if err != nil {
			return fmt.Errorf("start demo backend: %w", err)
		}
		defer shutdown()
	}

	client, err := api.NewClient(api.Config{
		BaseURL: cfg.APIBaseURL,
		Token:   auth.TokenSource(cfg.APIToken),
		Timeout: cfg.HTTPTimeout,
	})
	if err != nil {
		return fmt.Errorf("create api client: %w", err)
	}

	st := store.New()
	sink := notify.NewSink(notify.WithTTL(cfg.ActionNoticeTTL, cfg.CopyNoticeTTL))
	svc := service.NewJobService(client, st, sink, service.Config{
		DownloadDir:    cfg.DownloadDir,
		ConfigCacheTTL: cfg.ConfigCacheTTL,
	})

	a := &app{
		cfg:       cfg,
		svc:       svc,
		store:     st,
		sink:      sink,
		refresher: poller.New(svc, cfg.PollInterval),
	}

	return a.dispatch(ctx, flag.Arg(0), flag.Args()[1:])
}

// startDemoBackend serves the fake backend on a loopback port and points
// cfg at it.
func startDemoBackend(cfg *config.Config) (func(), error) {
	backend := backendtest.New()
	backendtest.SeedDemo(backend)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	srv := &http.Server{
		Handler:      backend,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("demo backend stopped", "error", err)
		}
	}()

	cfg.APIBaseURL = "http://" + ln.Addr().String()
	cfg.APIToken = backend.Token()
	slog.Info("demo backend started", "url", cfg.APIBaseURL)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("demo backend shutdown", "error", err)
		}
	}, nil
}

// printNotices echoes notifications on the terminal for one-shot commands.
func (a *app) printNotices() func() {
	return a.sink.Subscribe(func(n *domain.Notification) {
		if n == nil {
			return
		}
		if n.Severity == domain.SeverityError {
			fmt.Fprintln(os.Stderr, n.Message)
			return
		}
		fmt.Fprintln(os.Stdout, n.Message)
	})
}
