// Package backendtest is an in-process fake of the job platform REST API.
// It backs the HTTP-level tests and the jobctl demo mode.
package backendtest

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sumire/jobconsole/internal/auth"
	"github.com/sumire/jobconsole/internal/domain"
	"github.com/sumire/jobconsole/internal/handler"
)

// Call is one request received by the fake.
type Call struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Failure forces the next request to a path to fail with the given detail.
type Failure struct {
	Status int
	Detail any
}

type artifact struct {
	filename string
	data     []byte
}

// Server is the fake backend. All state is in memory and guarded by mu.
type Server struct {
	echo   *echo.Echo
	issuer *auth.Issuer
	now    func() time.Time

	mu         sync.Mutex
	jobs       []*domain.Job
	executions map[string][]domain.Execution
	configs    map[string]domain.JobConfig
	schedules  map[string][]domain.Schedule
	logs       map[string]string
	buildLogs  map[string]string
	artifacts  map[string]artifact
	failures   map[string][]Failure
	latency    map[string]time.Duration
	calls      []Call
}

// Option configures a Server.
type Option func(*Server)

// WithClock overrides the time source used for new executions.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a new fake backend.
func New(opts ...Option) *Server {
	s := &Server{
		issuer:     auth.NewIssuer("backendtest-secret", 24*time.Hour),
		now:        time.Now,
		executions: make(map[string][]domain.Execution),
		configs:    make(map[string]domain.JobConfig),
		schedules:  make(map[string][]domain.Schedule),
		logs:       make(map[string]string),
		buildLogs:  make(map[string]string),
		artifacts:  make(map[string]artifact),
		failures:   make(map[string][]Failure),
		latency:    make(map[string]time.Duration),
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewAppValidator()
	e.HTTPErrorHandler = handler.HTTPErrorHandler

	e.Use(middleware.Recover())
	e.Use(handler.RequestLogger())
	e.Use(s.record)

	jobs := e.Group("/jobs", handler.BearerAuth(s.issuer))
	jobs.GET("/get-jobs", s.listJobs)
	jobs.GET("/executions", s.listExecutions)
	jobs.GET("/get-config", s.getConfig)
	jobs.POST("/job-start", s.startJob)
	jobs.POST("/job-stop", s.stopJob)
	jobs.GET("/job-logs", s.jobLogs)
	jobs.GET("/build-logs", s.buildLogsHandler)
	jobs.GET("/get-job-artifacts", s.downloadArtifacts)
	jobs.GET("/get-schedules", s.listSchedules)
	jobs.POST("/create-schedules", s.createSchedule)
	jobs.PUT("/update-schedules", s.updateSchedule)
	jobs.DELETE("/delete-schedules", s.deleteSchedule)

	s.echo = e
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Token returns a valid bearer token for the fake.
func (s *Server) Token() string {
	tok, err := s.issuer.Issue("demo")
	if err != nil {
		panic(err)
	}
	return tok
}

// AddJob seeds a job and its executions.
func (s *Server) AddJob(job domain.Job, executions ...domain.Execution) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j := job
	s.jobs = append(s.jobs, &j)
	for i := range executions {
		if executions[i].JobID == "" {
			executions[i].JobID = job.JobID
		}
	}
	s.executions[job.JobID] = append(s.executions[job.JobID], executions...)
}

// SetExecutions replaces the executions of a job.
func (s *Server) SetExecutions(jobID string, executions ...domain.Execution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions[jobID] = executions
}

// SetConfig sets the configuration document of a job.
func (s *Server) SetConfig(jobID string, cfg domain.JobConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[jobID] = cfg
}

// SetLogs sets the logs served for an execution id or job id.
func (s *Server) SetLogs(id, logs string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[id] = logs
}

// SetBuildLogs sets the build logs of a job.
func (s *Server) SetBuildLogs(jobID, logs string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buildLogs[jobID] = logs
}

// SetArtifact sets the archive served for an execution id or job id.
// An empty filename omits the Content-Disposition header.
func (s *Server) SetArtifact(id, filename string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[id] = artifact{filename: filename, data: data}
}

// AddSchedule seeds a schedule.
func (s *Server) AddSchedule(schedule domain.Schedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[schedule.JobID] = append(s.schedules[schedule.JobID], schedule)
}

// Fail makes the next request to path fail. Failures queue in order.
func (s *Server) Fail(path string, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = append(s.failures[path], f)
}

// SetLatency delays every response to path.
func (s *Server) SetLatency(path string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency[path] = d
}

// Calls returns the recorded requests to path, or all requests when path is empty.
func (s *Server) Calls(path string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Call
	for _, c := range s.calls {
		if path == "" || c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// Executions returns the current executions of a job.
func (s *Server) Executions(jobID string) []domain.Execution {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Execution(nil), s.executions[jobID]...)
}

// Schedules returns the current schedules of a job.
func (s *Server) Schedules(jobID string) []domain.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Schedule(nil), s.schedules[jobID]...)
}

// record stores the request, applies latency and serves queued failures.
func (s *Server) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()

		var body []byte
		if req.Body != nil {
			b, err := io.ReadAll(req.Body)
			if err != nil {
				return err
			}
			body = b
			req.Body = io.NopCloser(bytes.NewReader(b))
		}

		path := req.URL.Path

		s.mu.Lock()
		s.calls = append(s.calls, Call{
			Method: req.Method,
			Path:   path,
			Query:  req.URL.Query(),
			Header: req.Header.Clone(),
			Body:   body,
		})
		delay := s.latency[path]
		var failure *Failure
		if queued := s.failures[path]; len(queued) > 0 {
			f := queued[0]
			failure = &f
			s.failures[path] = queued[1:]
		}
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-req.Context().Done():
				return req.Context().Err()
			}
		}

		if failure != nil {
			return &handler.DetailError{Status: failure.Status, Detail: failure.Detail}
		}
		return next(c)
	}
}
