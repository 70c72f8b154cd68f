package api_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumire/jobconsole/internal/api"
	"github.com/sumire/jobconsole/internal/auth"
	"github.com/sumire/jobconsole/internal/backendtest"
	"github.com/sumire/jobconsole/internal/domain"
)

func newClient(t *testing.T) (*api.Client, *backendtest.Server) {
	t.Helper()

	backend := backendtest.New()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	client, err := api.NewClient(api.Config{
		BaseURL: srv.URL,
		Token:   auth.TokenSource(backend.Token()),
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	return client, backend
}

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestClientExecutions(t *testing.T) {
	ctx := context.Background()

	t.Run("Should sort executions newest first", func(t *testing.T) {
		client, backend := newClient(t)
		backend.AddJob(domain.Job{JobID: "j1", JobType: domain.JobTypeRun},
			domain.Execution{JobExecutionID: "old", Status: domain.ExecutionStatusCompleted, CreatedAt: ts("2026-10-01T10:00:00Z")},
			domain.Execution{JobExecutionID: "new", Status: domain.ExecutionStatusRunning, CreatedAt: ts("2026-10-02T10:00:00Z")},
		)

		execs, err := client.ListExecutions(ctx, "j1")

		require.NoError(t, err)
		require.Len(t, execs, 2)
		assert.Equal(t, "new", execs[0].JobExecutionID)

		calls := backend.Calls("/jobs/executions")
		require.Len(t, calls, 1)
		assert.Equal(t, "j1", calls[0].Query.Get("job_id"))
		assert.True(t, strings.HasPrefix(calls[0].Header.Get("Authorization"), "Bearer "))
	})

	t.Run("Should return an empty list for a job without executions", func(t *testing.T) {
		client, backend := newClient(t)
		backend.AddJob(domain.Job{JobID: "j1"})

		execs, err := client.ListExecutions(ctx, "j1")

		require.NoError(t, err)
		assert.Empty(t, execs)
	})

	t.Run("Should surface the detail of a missing job", func(t *testing.T) {
		client, _ := newClient(t)

		_, err := client.ListExecutions(ctx, "nope")

		var apiErr *api.Error
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
		assert.Equal(t, "Задача не найдена.", api.Message(err, "fallback"))
	})
}

func TestClientStartStop(t *testing.T) {
	ctx := context.Background()

	t.Run("Should start a job and stop its execution", func(t *testing.T) {
		client, backend := newClient(t)
		backend.AddJob(domain.Job{JobID: "j1", JobType: domain.JobTypeRun, BuildStatus: domain.BuildStatusSuccess})

		require.NoError(t, client.StartJob(ctx, "j1", nil))
		execs := backend.Executions("j1")
		require.Len(t, execs, 1)
		assert.Equal(t, domain.ExecutionStatusRunning, execs[0].Status)

		require.NoError(t, client.StopJob(ctx, "job_execution_id", execs[0].JobExecutionID))
		assert.Equal(t, domain.ExecutionStatusStopped, backend.Executions("j1")[0].Status)

		stops := backend.Calls("/jobs/job-stop")
		require.Len(t, stops, 1)
		assert.Equal(t, execs[0].JobExecutionID, stops[0].Query.Get("job_execution_id"))
		assert.Empty(t, stops[0].Query.Get("job_id"))
	})

	t.Run("Should upload the input file as multipart", func(t *testing.T) {
		client, backend := newClient(t)
		backend.AddJob(domain.Job{JobID: "j1", JobType: domain.JobTypeRun, BuildStatus: domain.BuildStatusSuccess})

		err := client.StartJob(ctx, "j1", &api.InputFile{Name: "data.csv", Body: strings.NewReader("a,b\n1,2\n")})

		require.NoError(t, err)
		calls := backend.Calls("/jobs/job-start")
		require.Len(t, calls, 1)
		assert.Contains(t, calls[0].Header.Get("Content-Type"), "multipart/form-data")
		assert.Contains(t, string(calls[0].Body), `filename="data.csv"`)
	})

	t.Run("Should surface the backend detail for a deploy job", func(t *testing.T) {
		client, backend := newClient(t)
		backend.AddJob(domain.Job{JobID: "d1", JobType: domain.JobTypeDeploy, BuildStatus: domain.BuildStatusSuccess})

		err := client.StartJob(ctx, "d1", nil)

		require.Error(t, err)
		assert.Equal(t, "Cannot start job of type deploy", api.Message(err, "fallback"))
	})
}

func TestClientLogs(t *testing.T) {
	ctx := context.Background()
	client, backend := newClient(t)
	backend.AddJob(domain.Job{JobID: "j1", LastExecutionID: "e1"},
		domain.Execution{JobExecutionID: "e1", Status: domain.ExecutionStatusCompleted})
	backend.SetLogs("e1", "hello")
	backend.SetBuildLogs("j1", "built")

	t.Run("Should read logs by execution id", func(t *testing.T) {
		logs, err := client.JobLogs(ctx, "job_execution_id", "e1")

		require.NoError(t, err)
		assert.Equal(t, "hello", logs)
	})

	t.Run("Should read logs by job id", func(t *testing.T) {
		logs, err := client.JobLogs(ctx, "job_id", "j1")

		require.NoError(t, err)
		assert.Equal(t, "hello", logs)
	})

	t.Run("Should read build logs", func(t *testing.T) {
		logs, err := client.BuildLogs(ctx, "j1")

		require.NoError(t, err)
		assert.Equal(t, "built", logs)
	})
}

func TestClientArtifacts(t *testing.T) {
	ctx := context.Background()

	t.Run("Should take the filename from the response", func(t *testing.T) {
		client, backend := newClient(t)
		backend.AddJob(domain.Job{JobID: "j1"})
		backend.SetArtifact("e1", "weights.zip", []byte("zip-bytes"))

		a, err := client.DownloadArtifacts(ctx, "job_execution_id", "e1")

		require.NoError(t, err)
		defer a.Body.Close()
		assert.Equal(t, "weights.zip", a.Filename)
		data, err := io.ReadAll(a.Body)
		require.NoError(t, err)
		assert.Equal(t, "zip-bytes", string(data))
	})

	t.Run("Should fall back to artifacts.zip without content-disposition", func(t *testing.T) {
		client, backend := newClient(t)
		backend.SetArtifact("e1", "", []byte("zip-bytes"))

		a, err := client.DownloadArtifacts(ctx, "job_execution_id", "e1")

		require.NoError(t, err)
		defer a.Body.Close()
		assert.Equal(t, api.DefaultArtifactName, a.Filename)
	})
}

func TestClientSchedules(t *testing.T) {
	ctx := context.Background()

	t.Run("Should create, update and delete a schedule", func(t *testing.T) {
		client, backend := newClient(t)
		backend.AddJob(domain.Job{JobID: "j1"})

		err := client.CreateSchedule(ctx, "j1", domain.ScheduleRequest{
			Workdays: []domain.TimeWindow{{StartTime: "09:00", EndTime: "12:00"}},
		})
		require.NoError(t, err)

		list, err := client.ListSchedules(ctx, "j1")
		require.NoError(t, err)
		require.Len(t, list, 1)

		err = client.UpdateSchedule(ctx, "j1", list[0].ScheduleID, domain.ScheduleRequest{
			Weekends: []domain.TimeWindow{{StartTime: "10:00", EndTime: "11:00"}},
		})
		require.NoError(t, err)
		updated := backend.Schedules("j1")
		require.Len(t, updated, 1)
		assert.Empty(t, updated[0].Workdays)
		assert.Len(t, updated[0].Weekends, 1)

		require.NoError(t, client.DeleteSchedule(ctx, "j1", list[0].ScheduleID))
		assert.Empty(t, backend.Schedules("j1"))
	})

	t.Run("Should decode a list detail from backend validation", func(t *testing.T) {
		client, backend := newClient(t)
		backend.AddJob(domain.Job{JobID: "j1"})

		err := client.CreateSchedule(ctx, "j1", domain.ScheduleRequest{
			Workdays: []domain.TimeWindow{{StartTime: "12:00", EndTime: "09:00"}},
		})

		var apiErr *api.Error
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
		assert.Contains(t, api.Message(err, "fallback"), "workdays[0].end_time")
	})

	t.Run("Should decode an object detail for a missing schedule", func(t *testing.T) {
		client, backend := newClient(t)
		backend.AddJob(domain.Job{JobID: "j1"})

		err := client.DeleteSchedule(ctx, "j1", "missing")

		assert.Equal(t, "Расписание не найдено.", api.Message(err, "fallback"))
	})
}

func TestClientAuth(t *testing.T) {
	ctx := context.Background()

	t.Run("Should be rejected with a foreign token", func(t *testing.T) {
		backend := backendtest.New()
		srv := httptest.NewServer(backend)
		defer srv.Close()

		client, err := api.NewClient(api.Config{BaseURL: srv.URL, Token: auth.TokenSource("opaque")})
		require.NoError(t, err)

		_, err = client.ListJobs(ctx)

		var apiErr *api.Error
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	})

	t.Run("Should not send a request with an expired token", func(t *testing.T) {
		backend := backendtest.New()
		srv := httptest.NewServer(backend)
		defer srv.Close()

		expired, err := auth.NewIssuer("x", -time.Minute).Issue("u")
		require.NoError(t, err)
		client, err := api.NewClient(api.Config{BaseURL: srv.URL, Token: auth.TokenSource(expired)})
		require.NoError(t, err)

		_, err = client.ListJobs(ctx)

		assert.True(t, errors.Is(err, domain.ErrUnauthorized))
		assert.Empty(t, backend.Calls(""))
	})

	t.Run("Should reject a base url without a host", func(t *testing.T) {
		_, err := api.NewClient(api.Config{BaseURL: "localhost", Token: auth.TokenSource("t")})

		assert.Error(t, err)
	})
}
