package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sumire/jobconsole/internal/api"
	"github.com/sumire/jobconsole/internal/domain"
	"github.com/sumire/jobconsole/internal/tui"
)

// errReported marks failures the user has already been told about through
// a notification.
var errReported = errors.New("reported")

func reported(err error) error {
	return fmt.Errorf("%w: %w", errReported, err)
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	if cmd == "watch" {
		return tui.Run(ctx, tui.Deps{Service: a.svc, Store: a.store, Sink: a.sink, Refresher: a.refresher})
	}

	defer a.printNotices()()

	switch cmd {
	case "jobs":
		return a.jobs(ctx)
	case "executions":
		return a.executions(ctx, args)
	case "start":
		return a.start(ctx, args)
	case "stop":
		return a.stop(ctx, args)
	case "logs":
		return a.logs(ctx, args)
	case "build-logs":
		return a.buildLogs(ctx, args)
	case "artifacts":
		return a.artifacts(ctx, args)
	case "schedules":
		return a.schedules(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) jobs(ctx context.Context) error {
	if err := a.svc.LoadJobs(ctx); err != nil {
		return reported(err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tBUILD\tSTATUS")
	for _, e := range a.store.List() {
		j := e.State.Job
		status := string(e.State.CurrentStatus())
		if status == "" {
			status = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", j.JobID, j.JobName, j.JobType, j.BuildStatus, status)
	}
	return w.Flush()
}

// loadJob loads the job and its executions so actions can be evaluated
// against fresh state.
func (a *app) loadJob(ctx context.Context, jobID string) error {
	if err := a.svc.LoadJobs(ctx); err != nil {
		return reported(err)
	}
	if _, ok := a.store.State(jobID); !ok {
		return fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
	}
	if err := a.svc.RefreshExecutions(ctx, jobID); err != nil {
		e, _ := a.store.Get(jobID)
		fmt.Fprintln(os.Stderr, e.View.Executions.Err)
		return reported(err)
	}
	return nil
}

// target resolves an -exec flag against the loaded executions.
func (a *app) target(jobID, execID string) (*domain.Execution, error) {
	if execID == "" {
		return nil, nil
	}
	state, _ := a.store.State(jobID)
	exec, ok := state.FindExecution(execID)
	if !ok {
		return nil, fmt.Errorf("execution %s of job %s: %w", execID, jobID, domain.ErrNotFound)
	}
	return &exec, nil
}

func jobArg(fs *flag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 {
		return "", fmt.Errorf("%s: expected exactly one job id", fs.Name())
	}
	return fs.Arg(0), nil
}

func (a *app) executions(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("executions", flag.ContinueOnError)
	jobID, err := jobArg(fs, args)
	if err != nil {
		return err
	}
	if err := a.loadJob(ctx, jobID); err != nil {
		return err
	}

	state, _ := a.store.State(jobID)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tCREATED\tGPU")
	for _, e := range state.Executions {
		created := "-"
		if e.CreatedAt != nil {
			created = e.CreatedAt.Local().Format(time.DateTime)
		}
		gpu := "-"
		if e.GPUInfo != nil {
			gpu = strings.TrimSpace(e.GPUInfo.Type + " " + e.GPUInfo.Memory)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.JobExecutionID, e.Status, created, gpu)
	}
	return w.Flush()
}

func (a *app) start(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	path := fs.String("file", "", "input file uploaded with the start request")
	jobID, err := jobArg(fs, args)
	if err != nil {
		return err
	}
	if err := a.loadJob(ctx, jobID); err != nil {
		return err
	}

	if *path == "" {
		if need, err := a.svc.RequiresInput(ctx, jobID); err == nil && need {
			a.sink.Info("Задача ожидает входной файл, запуск без файла.")
		}
		if err := a.svc.StartJob(ctx, jobID); err != nil {
			return reported(err)
		}
		return nil
	}

	f, err := os.Open(*path)
	if err != nil {
		return fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()

	if err := a.svc.StartJob(ctx, jobID, api.InputFile{Name: filepath.Base(*path), Body: f}); err != nil {
		return reported(err)
	}
	return nil
}

func (a *app) stop(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stop", flag.ContinueOnError)
	execID := fs.String("exec", "", "execution to stop instead of the latest")
	jobID, err := jobArg(fs, args)
	if err != nil {
		return err
	}
	if err := a.loadJob(ctx, jobID); err != nil {
		return err
	}
	target, err := a.target(jobID, *execID)
	if err != nil {
		return err
	}

	if err := a.svc.StopJob(ctx, jobID, target); err != nil {
		return reported(err)
	}
	return nil
}

func (a *app) logs(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("logs", flag.ContinueOnError)
	execID := fs.String("exec", "", "execution whose logs to print")
	jobID, err := jobArg(fs, args)
	if err != nil {
		return err
	}
	if err := a.loadJob(ctx, jobID); err != nil {
		return err
	}
	target, err := a.target(jobID, *execID)
	if err != nil {
		return err
	}

	text, err := a.svc.FetchLogs(ctx, jobID, target)
	return printLogs(text, err)
}

func (a *app) buildLogs(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("build-logs", flag.ContinueOnError)
	jobID, err := jobArg(fs, args)
	if err != nil {
		return err
	}
	if err := a.loadJob(ctx, jobID); err != nil {
		return err
	}

	text, err := a.svc.FetchBuildLogs(ctx, jobID)
	return printLogs(text, err)
}

// printLogs writes fetched logs, or the failure text the logs surface shows.
func printLogs(text string, err error) error {
	if err != nil {
		if text != "" {
			fmt.Fprintln(os.Stderr, text)
		}
		return reported(err)
	}
	fmt.Fprintln(os.Stdout, text)
	return nil
}

func (a *app) artifacts(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("artifacts", flag.ContinueOnError)
	execID := fs.String("exec", "", "execution whose artifacts to download")
	jobID, err := jobArg(fs, args)
	if err != nil {
		return err
	}
	if err := a.loadJob(ctx, jobID); err != nil {
		return err
	}
	target, err := a.target(jobID, *execID)
	if err != nil {
		return err
	}

	if _, err := a.svc.DownloadArtifacts(ctx, jobID, target); err != nil {
		return reported(err)
	}
	return nil
}

func (a *app) schedules(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("schedules: expected list, create, update or delete")
	}

	sub, args := args[0], args[1:]
	fs := flag.NewFlagSet("schedules "+sub, flag.ContinueOnError)
	req := bindWindows(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	want := map[string]int{"list": 1, "create": 1, "update": 2, "delete": 2}
	n, ok := want[sub]
	if !ok {
		return fmt.Errorf("schedules: unknown subcommand %q", sub)
	}
	if fs.NArg() != n {
		return fmt.Errorf("schedules %s: expected %d argument(s)", sub, n)
	}

	jobID := fs.Arg(0)
	if err := a.svc.LoadJobs(ctx); err != nil {
		return reported(err)
	}

	switch sub {
	case "list":
		return a.listSchedules(ctx, jobID)
	case "create":
		body, err := req.build()
		if err != nil {
			return err
		}
		if err := a.svc.CreateSchedule(ctx, jobID, body); err != nil {
			return reported(err)
		}
	case "update":
		body, err := req.build()
		if err != nil {
			return err
		}
		if err := a.svc.UpdateSchedule(ctx, jobID, fs.Arg(1), body); err != nil {
			return reported(err)
		}
	case "delete":
		if err := a.svc.DeleteSchedule(ctx, jobID, fs.Arg(1)); err != nil {
			return reported(err)
		}
	}
	return nil
}

func (a *app) listSchedules(ctx context.Context, jobID string) error {
	if err := a.svc.LoadSchedules(ctx, jobID); err != nil {
		e, _ := a.store.Get(jobID)
		fmt.Fprintln(os.Stderr, e.View.Schedules.Err)
		return reported(err)
	}

	e, _ := a.store.Get(jobID)
	now := time.Now()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tRULE\tNEXT RUN")
	for _, s := range e.Schedules {
		next := "-"
		if t, ok, err := s.NextRun(now); err == nil && ok {
			next = t.Format(time.DateTime)
		}
		rule, _ := json.Marshal(s)
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.ScheduleID, rule, next)
	}
	return w.Flush()
}

// windowFlags collects a schedule body from repeated window flags or a
// JSON document.
type windowFlags struct {
	req      domain.ScheduleRequest
	jsonPath string
}

func bindWindows(fs *flag.FlagSet) *windowFlags {
	w := &windowFlags{}
	fs.Func("workday", "workday window HH:MM-HH:MM (repeatable)", func(v string) error {
		tw, err := parseWindow(v)
		if err != nil {
			return err
		}
		w.req.Workdays = append(w.req.Workdays, tw)
		return nil
	})
	fs.Func("weekend", "weekend window HH:MM-HH:MM (repeatable)", func(v string) error {
		tw, err := parseWindow(v)
		if err != nil {
			return err
		}
		w.req.Weekends = append(w.req.Weekends, tw)
		return nil
	})
	fs.Func("day", "specific day YYYY-MM-DD/HH:MM-HH:MM (repeatable)", func(v string) error {
		date, window, ok := strings.Cut(v, "/")
		if !ok {
			return fmt.Errorf("expected YYYY-MM-DD/HH:MM-HH:MM, got %q", v)
		}
		tw, err := parseWindow(window)
		if err != nil {
			return err
		}
		w.req.SpecificDays = append(w.req.SpecificDays, domain.SpecificDay{Date: date, StartTime: tw.StartTime, EndTime: tw.EndTime})
		return nil
	})
	fs.StringVar(&w.jsonPath, "json", "", "read the schedule body from a JSON file (- for stdin)")
	return w
}

func parseWindow(v string) (domain.TimeWindow, error) {
	start, end, ok := strings.Cut(v, "-")
	if !ok {
		return domain.TimeWindow{}, fmt.Errorf("expected HH:MM-HH:MM, got %q", v)
	}
	return domain.TimeWindow{StartTime: strings.TrimSpace(start), EndTime: strings.TrimSpace(end)}, nil
}

func (w *windowFlags) build() (domain.ScheduleRequest, error) {
	if w.jsonPath == "" {
		return w.req, nil
	}
	if !w.req.Empty() {
		return domain.ScheduleRequest{}, errors.New("-json cannot be combined with window flags")
	}

	var r io.Reader = os.Stdin
	if w.jsonPath != "-" {
		f, err := os.Open(w.jsonPath)
		if err != nil {
			return domain.ScheduleRequest{}, fmt.Errorf("open schedule file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var req domain.ScheduleRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return domain.ScheduleRequest{}, fmt.Errorf("decode schedule file: %w", err)
	}
	return req, nil
}
