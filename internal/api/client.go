// Package api is the console's REST client for the job platform backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/sumire/jobconsole/internal/domain"
)

const (
	paramJobID      = "job_id"
	paramScheduleID = "schedule_id"
)

// Config configures a Client.
type Config struct {
	BaseURL string
	Token   oauth2.TokenSource
	Timeout time.Duration
	// Transport overrides the base round tripper, mostly for tests.
	Transport http.RoundTripper
}

// Client calls the job platform. Every request carries the bearer token.
type Client struct {
	base     *url.URL
	http     *http.Client
	download *http.Client
}

// NewClient creates a new Client.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("parse base url %q: scheme and host are required", cfg.BaseURL)
	}
	if cfg.Token == nil {
		return nil, fmt.Errorf("token source: %w", domain.ErrUnauthorized)
	}

	transport := &oauth2.Transport{Source: cfg.Token, Base: cfg.Transport}

	return &Client{
		base: base,
		http: &http.Client{Transport: transport, Timeout: cfg.Timeout},
		// Artifact archives can be large; their latency is unbounded.
		download: &http.Client{Transport: transport},
	}, nil
}

// ListJobs returns every job visible to the caller.
func (c *Client) ListJobs(ctx context.Context) ([]domain.Job, error) {
	var jobs []domain.Job
	if err := c.getJSON(ctx, "/jobs/get-jobs", nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// ListExecutions returns the executions of a job sorted newest first.
func (c *Client) ListExecutions(ctx context.Context, jobID string) ([]domain.Execution, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/jobs/executions", url.Values{paramJobID: {jobID}}, &raw); err != nil {
		return nil, err
	}

	executions, err := decodeList[domain.Execution](raw, "executions")
	if err != nil {
		return nil, fmt.Errorf("decode executions: %w", err)
	}
	domain.SortExecutions(executions)
	return executions, nil
}

// GetConfig returns the configuration document of a job.
func (c *Client) GetConfig(ctx context.Context, jobID string) (domain.JobConfig, error) {
	var doc map[string]any
	if err := c.getJSON(ctx, "/jobs/get-config", url.Values{paramJobID: {jobID}}, &doc); err != nil {
		return nil, err
	}
	if inner, ok := doc["config"].(map[string]any); ok {
		return domain.JobConfig(inner), nil
	}
	return domain.JobConfig(doc), nil
}

// InputFile is a file uploaded with a start request.
type InputFile struct {
	Name string
	Body io.Reader
}

// StartJob starts a job, optionally uploading one input file.
func (c *Client) StartJob(ctx context.Context, jobID string, file *InputFile) error {
	q := url.Values{paramJobID: {jobID}}
	if file == nil {
		return c.send(ctx, http.MethodPost, "/jobs/job-start", q, nil, "", nil)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", file.Name)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file.Body); err != nil {
		return fmt.Errorf("copy input file: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	return c.send(ctx, http.MethodPost, "/jobs/job-start", q, &buf, w.FormDataContentType(), nil)
}

// StopJob stops a job or one of its executions. param names the identifier:
// job_execution_id or job_id.
func (c *Client) StopJob(ctx context.Context, param, id string) error {
	return c.send(ctx, http.MethodPost, "/jobs/job-stop", url.Values{param: {id}}, nil, "", nil)
}

// JobLogs returns the logs of an execution or of a job's latest execution.
func (c *Client) JobLogs(ctx context.Context, param, id string) (string, error) {
	var body struct {
		Logs string `json:"logs"`
	}
	if err := c.getJSON(ctx, "/jobs/job-logs", url.Values{param: {id}}, &body); err != nil {
		return "", err
	}
	return body.Logs, nil
}

// BuildLogs returns the image build logs of a job.
func (c *Client) BuildLogs(ctx context.Context, jobID string) (string, error) {
	var body struct {
		BuildLogs string `json:"build_logs"`
	}
	if err := c.getJSON(ctx, "/jobs/build-logs", url.Values{paramJobID: {jobID}}, &body); err != nil {
		return "", err
	}
	return body.BuildLogs, nil
}

// DownloadArtifacts opens the artifacts archive of an execution or job.
// The caller must close the returned body.
func (c *Client) DownloadArtifacts(ctx context.Context, param, id string) (*Artifact, error) {
	resp, err := c.do(ctx, c.download, http.MethodGet, "/jobs/get-job-artifacts", url.Values{param: {id}}, nil, "")
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Filename: FilenameFromDisposition(resp.Header.Get("Content-Disposition")),
		Body:     resp.Body,
	}, nil
}

// ListSchedules returns the schedules of a job.
func (c *Client) ListSchedules(ctx context.Context, jobID string) ([]domain.Schedule, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/jobs/get-schedules", url.Values{paramJobID: {jobID}}, &raw); err != nil {
		return nil, err
	}

	schedules, err := decodeList[domain.Schedule](raw, "schedules")
	if err != nil {
		return nil, fmt.Errorf("decode schedules: %w", err)
	}
	return schedules, nil
}

// CreateSchedule attaches a new schedule to a job.
func (c *Client) CreateSchedule(ctx context.Context, jobID string, req domain.ScheduleRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}
	return c.send(ctx, http.MethodPost, "/jobs/create-schedules",
		url.Values{paramJobID: {jobID}}, bytes.NewReader(body), "application/json", nil)
}

// UpdateSchedule replaces the windows of an existing schedule.
func (c *Client) UpdateSchedule(ctx context.Context, jobID, scheduleID string, req domain.ScheduleRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}
	return c.send(ctx, http.MethodPut, "/jobs/update-schedules",
		url.Values{paramJobID: {jobID}, paramScheduleID: {scheduleID}}, bytes.NewReader(body), "application/json", nil)
}

// DeleteSchedule removes a schedule.
func (c *Client) DeleteSchedule(ctx context.Context, jobID, scheduleID string) error {
	return c.send(ctx, http.MethodDelete, "/jobs/delete-schedules",
		url.Values{paramJobID: {jobID}, paramScheduleID: {scheduleID}}, nil, "", nil)
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	return c.send(ctx, http.MethodGet, path, q, nil, "", out)
}

func (c *Client) send(ctx context.Context, method, path string, q url.Values, body io.Reader, contentType string, out any) error {
	resp, err := c.do(ctx, c.http, method, path, q, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// do performs the request and turns non-2xx responses into *Error.
// On success the caller owns resp.Body.
func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, q url.Values, body io.Reader, contentType string) (*http.Response, error) {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		slog.Debug("api request failed",
			"method", method,
			"path", path,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return nil, err
	}

	slog.Debug("api request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	apiErr := &Error{Method: method, Path: path, StatusCode: resp.StatusCode}
	var eb errorBody
	if raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)); err == nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, &eb); err == nil {
			apiErr.Detail = eb.Detail
		}
	}
	return nil, apiErr
}

// decodeList accepts either a bare JSON array or an object wrapping the
// array under key.
func decodeList[T any](raw json.RawMessage, key string) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []T{}, nil
	}

	if raw[0] == '[' {
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, err
	}
	inner, ok := wrapped[key]
	if !ok {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal(inner, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}
