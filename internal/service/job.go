package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/sumire/jobconsole/internal/api"
	"github.com/sumire/jobconsole/internal/domain"
	"github.com/sumire/jobconsole/internal/eligibility"
	"github.com/sumire/jobconsole/internal/handler"
	"github.com/sumire/jobconsole/internal/store"
)

// Backend defines the job platform calls consumed by JobService.
type Backend interface {
	ListJobs(ctx context.Context) ([]domain.Job, error)
	ListExecutions(ctx context.Context, jobID string) ([]domain.Execution, error)
	GetConfig(ctx context.Context, jobID string) (domain.JobConfig, error)
	StartJob(ctx context.Context, jobID string, file *api.InputFile) error
	StopJob(ctx context.Context, param, id string) error
	JobLogs(ctx context.Context, param, id string) (string, error)
	BuildLogs(ctx context.Context, jobID string) (string, error)
	DownloadArtifacts(ctx context.Context, param, id string) (*api.Artifact, error)
	ListSchedules(ctx context.Context, jobID string) ([]domain.Schedule, error)
	CreateSchedule(ctx context.Context, jobID string, req domain.ScheduleRequest) error
	UpdateSchedule(ctx context.Context, jobID, scheduleID string, req domain.ScheduleRequest) error
	DeleteSchedule(ctx context.Context, jobID, scheduleID string) error
}

// Notifier defines the notification sink consumed by JobService.
type Notifier interface {
	Success(msg string) domain.Notification
	Info(msg string) domain.Notification
	Error(msg string) domain.Notification
}

// Config holds JobService settings.
type Config struct {
	DownloadDir    string
	ConfigCacheTTL time.Duration
}

// Schedule actions guarded against double invocation alongside the
// eligibility actions.
const (
	ActionCreateSchedule eligibility.Action = "schedule-create"
	ActionUpdateSchedule eligibility.Action = "schedule-update"
	ActionDeleteSchedule eligibility.Action = "schedule-delete"
)

// JobService performs job actions and reconciles their outcome into the store.
// Every action re-checks eligibility or validation before calling the backend
// and reports its outcome through the notifier.
type JobService struct {
	backend     Backend
	store       *store.Store
	notes       Notifier
	validator   *handler.AppValidator
	configs     *cache.Cache
	downloadDir string

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewJobService creates a new JobService.
func NewJobService(backend Backend, st *store.Store, notes Notifier, cfg Config) *JobService {
	ttl := cfg.ConfigCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	dir := cfg.DownloadDir
	if dir == "" {
		dir = "."
	}

	return &JobService{
		backend:     backend,
		store:       st,
		notes:       notes,
		validator:   handler.NewAppValidator(),
		configs:     cache.New(ttl, 2*ttl),
		downloadDir: dir,
		inFlight:    make(map[string]struct{}),
	}
}

// Busy reports whether an action on a job is in flight. Views disable the
// matching control while it is.
func (s *JobService) Busy(action eligibility.Action, jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inFlight[flightKey(action, jobID)]
	return ok
}

func flightKey(action eligibility.Action, id string) string {
	return string(action) + ":" + id
}

func (s *JobService) acquire(action eligibility.Action, id string) (func(), error) {
	key := flightKey(action, id)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inFlight[key]; busy {
		return nil, fmt.Errorf("%s %s: %w", action, id, domain.ErrInFlight)
	}
	s.inFlight[key] = struct{}{}

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.inFlight, key)
	}, nil
}

// describe turns any action error into the string shown to the user.
func describe(err error, fallback string) string {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Error()
	}

	var ineligibleErr *domain.IneligibleError
	if errors.As(err, &ineligibleErr) {
		return ineligibleErr.Reason
	}

	var apiErr *api.Error
	if !errors.As(err, &apiErr) && errors.Is(err, domain.ErrUnauthorized) {
		return MsgSessionExpired
	}

	return api.Message(err, fallback)
}

// state looks up a job, notifying when it is unknown.
func (s *JobService) state(jobID string) (domain.JobState, error) {
	st, ok := s.store.State(jobID)
	if !ok {
		s.notes.Error(MsgJobNotFound)
		return domain.JobState{}, fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
	}
	return st, nil
}

// deny surfaces a disabled reason instead of calling the backend.
func (s *JobService) deny(action eligibility.Action, d eligibility.Decision) error {
	s.notes.Error(d.Reason)
	return &domain.IneligibleError{Action: string(action), Reason: d.Reason}
}

// LoadJobs fetches every job and upserts it into the store.
func (s *JobService) LoadJobs(ctx context.Context) error {
	jobs, err := s.backend.ListJobs(ctx)
	if err != nil {
		s.notes.Error(describe(err, MsgJobsFailed))
		return fmt.Errorf("list jobs: %w", err)
	}
	for _, j := range jobs {
		s.store.UpsertJob(j)
	}
	return nil
}

// LoadExecutions fetches a job's executions with the panel spinner shown.
func (s *JobService) LoadExecutions(ctx context.Context, jobID string) error {
	s.store.SetLoading(jobID, store.PanelExecutions, true)
	return s.RefreshExecutions(ctx, jobID)
}

// RefreshExecutions fetches a job's executions without a spinner. A failure
// replaces the executions panel with its message and is not notified.
// Nothing is written once ctx is done.
func (s *JobService) RefreshExecutions(ctx context.Context, jobID string) error {
	execs, err := s.backend.ListExecutions(ctx, jobID)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		s.store.SetPanelError(jobID, store.PanelExecutions, describe(err, MsgExecutionsFailed))
		return fmt.Errorf("list executions: %w", err)
	}
	s.store.SetExecutions(jobID, execs)
	return nil
}

// LoadConfig fetches a job's configuration and caches it.
func (s *JobService) LoadConfig(ctx context.Context, jobID string) (domain.JobConfig, error) {
	s.store.SetLoading(jobID, store.PanelConfig, true)

	cfg, err := s.backend.GetConfig(ctx, jobID)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		s.store.SetPanelError(jobID, store.PanelConfig, describe(err, MsgConfigFailed))
		return nil, fmt.Errorf("get config: %w", err)
	}

	s.configs.Set(jobID, cfg, cache.DefaultExpiration)
	s.store.SetConfig(jobID, cfg)
	return cfg, nil
}

// RequiresInput reports whether starting the job should first ask for an
// input file. The configuration is fetched lazily and cached.
func (s *JobService) RequiresInput(ctx context.Context, jobID string) (bool, error) {
	if v, ok := s.configs.Get(jobID); ok {
		return v.(domain.JobConfig).RequestInputDir(), nil
	}
	cfg, err := s.LoadConfig(ctx, jobID)
	if err != nil {
		return false, err
	}
	return cfg.RequestInputDir(), nil
}

// StartJob starts a job with at most one input file. On success the job is
// shown as running until the execution list is refreshed.
func (s *JobService) StartJob(ctx context.Context, jobID string, files ...api.InputFile) error {
	st, err := s.state(jobID)
	if err != nil {
		return err
	}

	if d := eligibility.CanStart(st); !d.Allowed {
		return s.deny(eligibility.ActionStart, d)
	}
	if len(files) > 1 {
		s.notes.Error(MsgTooManyFiles)
		return &domain.ValidationError{Field: "files", Message: MsgTooManyFiles}
	}

	release, err := s.acquire(eligibility.ActionStart, jobID)
	if err != nil {
		return err
	}
	defer release()

	var file *api.InputFile
	if len(files) == 1 {
		file = &files[0]
	}

	if err := s.backend.StartJob(ctx, jobID, file); err != nil {
		s.notes.Error(describe(err, MsgStartFailed))
		return fmt.Errorf("start job %s: %w", jobID, err)
	}

	s.store.SetOptimistic(jobID, domain.ExecutionStatusRunning)
	s.notes.Success(MsgStartSuccess)

	if err := s.RefreshExecutions(ctx, jobID); err != nil {
		slog.Warn("refresh after start failed", "job_id", jobID, "error", err)
	}
	return nil
}

// StopJob stops the target execution, or the job's latest one when target
// is nil.
func (s *JobService) StopJob(ctx context.Context, jobID string, target *domain.Execution) error {
	st, err := s.state(jobID)
	if err != nil {
		return err
	}

	if d := eligibility.CanStop(st, target); !d.Allowed {
		return s.deny(eligibility.ActionStop, d)
	}
	ref, _ := eligibility.StopTarget(st, target)

	release, err := s.acquire(eligibility.ActionStop, jobID)
	if err != nil {
		return err
	}
	defer release()

	if err := s.backend.StopJob(ctx, ref.Param, ref.Value); err != nil {
		s.notes.Error(describe(err, MsgStopFailed))
		return fmt.Errorf("stop %s %s: %w", ref.Param, ref.Value, err)
	}

	s.store.SetOptimistic(jobID, domain.ExecutionStatusStopped)
	s.notes.Success(MsgStopSuccess)

	if err := s.RefreshExecutions(ctx, jobID); err != nil {
		slog.Warn("refresh after stop failed", "job_id", jobID, "error", err)
	}
	return nil
}

// FetchLogs opens the logs surface in its loading state, then fills it with
// the logs or with the failure message.
func (s *JobService) FetchLogs(ctx context.Context, jobID string, target *domain.Execution) (string, error) {
	st, err := s.state(jobID)
	if err != nil {
		return "", err
	}

	if d := eligibility.CanViewLogs(st, target); !d.Allowed {
		return "", s.deny(eligibility.ActionViewLogs, d)
	}
	ref, _ := eligibility.LogsTarget(st, target)

	release, err := s.acquire(eligibility.ActionViewLogs, jobID)
	if err != nil {
		return "", err
	}
	defer release()

	s.store.OpenLogs(jobID, LogsTitle+": "+ref.Value)

	logs, err := s.backend.JobLogs(ctx, ref.Param, ref.Value)
	return s.fillLogs(jobID, logs, err, MsgLogsFailed)
}

// FetchBuildLogs is FetchLogs for the image build logs.
func (s *JobService) FetchBuildLogs(ctx context.Context, jobID string) (string, error) {
	st, err := s.state(jobID)
	if err != nil {
		return "", err
	}

	if d := eligibility.CanViewBuildLogs(st); !d.Allowed {
		return "", s.deny(eligibility.ActionViewBuildLogs, d)
	}

	release, err := s.acquire(eligibility.ActionViewBuildLogs, jobID)
	if err != nil {
		return "", err
	}
	defer release()

	s.store.OpenLogs(jobID, BuildLogsTitle+": "+jobID)

	logs, err := s.backend.BuildLogs(ctx, jobID)
	return s.fillLogs(jobID, logs, err, MsgBuildLogsFailed)
}

func (s *JobService) fillLogs(jobID, logs string, err error, fallback string) (string, error) {
	if err != nil {
		msg := describe(err, fallback)
		s.store.SetLogs(jobID, msg, true)
		slog.Error("fetch logs failed", "job_id", jobID, "error", err)
		return msg, fmt.Errorf("fetch logs: %w", err)
	}
	if strings.TrimSpace(logs) == "" {
		logs = MsgLogsEmpty
	}
	s.store.SetLogs(jobID, logs, false)
	return logs, nil
}
