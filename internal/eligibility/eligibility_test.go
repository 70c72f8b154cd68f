package eligibility

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sumire/jobconsole/internal/domain"
)

func runJob(build domain.BuildStatus, execs ...domain.Execution) domain.JobState {
	return domain.JobState{
		Job:        domain.Job{JobID: "j1", JobType: domain.JobTypeRun, BuildStatus: build},
		Executions: execs,
	}
}

func TestCanStart(t *testing.T) {
	tests := []struct {
		name    string
		state   domain.JobState
		allowed bool
		reason  string
	}{
		{
			name:    "run job with finished build and no executions",
			state:   runJob(domain.BuildStatusSuccess),
			allowed: true,
		},
		{
			name:    "deploy job",
			state:   domain.JobState{Job: domain.Job{JobID: "j1", JobType: domain.JobTypeDeploy, BuildStatus: domain.BuildStatusSuccess}},
			allowed: false,
			reason:  ReasonUnsupportedType,
		},
		{
			name:    "build still running",
			state:   runJob(domain.BuildStatusBuilding),
			allowed: false,
			reason:  ReasonBuildNotFinished,
		},
		{
			name:    "build pending",
			state:   runJob(domain.BuildStatusPending),
			allowed: false,
			reason:  ReasonBuildNotFinished,
		},
		{
			name:    "build failed",
			state:   runJob(domain.BuildStatusFailed),
			allowed: false,
			reason:  ReasonBuildFailed,
		},
		{
			name:    "already running",
			state:   runJob(domain.BuildStatusSuccess, domain.Execution{JobExecutionID: "e1", Status: domain.ExecutionStatusRunning}),
			allowed: false,
			reason:  ReasonAlreadyRunning,
		},
		{
			name:    "older execution still queued",
			state:   runJob(domain.BuildStatusSuccess, domain.Execution{Status: domain.ExecutionStatusFailed}, domain.Execution{Status: domain.ExecutionStatusQueued}),
			allowed: false,
			reason:  ReasonAlreadyRunning,
		},
		{
			name:    "previous execution finished",
			state:   runJob(domain.BuildStatusSuccess, domain.Execution{Status: domain.ExecutionStatusCompleted}),
			allowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := CanStart(tt.state)
			assert.Equal(t, tt.allowed, d.Allowed)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}

	t.Run("Should never allow start before the build succeeds", func(t *testing.T) {
		for _, build := range []domain.BuildStatus{"", domain.BuildStatusPending, domain.BuildStatusBuilding, domain.BuildStatusFailed} {
			for _, typ := range []domain.JobType{domain.JobTypeRun, domain.JobTypeDeploy} {
				state := domain.JobState{Job: domain.Job{JobID: "j1", JobType: typ, BuildStatus: build}}
				assert.False(t, CanStart(state).Allowed, "build=%s type=%s", build, typ)
			}
		}
	})
}

func TestCanStop(t *testing.T) {
	running := domain.Execution{JobExecutionID: "e1", Status: domain.ExecutionStatusRunning}

	t.Run("Should allow stopping a running job", func(t *testing.T) {
		d := CanStop(runJob(domain.BuildStatusSuccess, running), nil)
		assert.True(t, d.Allowed)
	})

	t.Run("Should refuse when nothing identifies the job", func(t *testing.T) {
		d := CanStop(domain.JobState{Executions: []domain.Execution{{Status: domain.ExecutionStatusRunning}}}, nil)
		assert.False(t, d.Allowed)
		assert.Equal(t, ReasonNothingToStop, d.Reason)
	})

	t.Run("Should refuse when not running", func(t *testing.T) {
		d := CanStop(runJob(domain.BuildStatusSuccess, domain.Execution{JobExecutionID: "e1", Status: domain.ExecutionStatusCompleted}), nil)
		assert.False(t, d.Allowed)
		assert.Equal(t, ReasonNotRunning, d.Reason)
	})

	t.Run("Should judge a targeted execution by its own status", func(t *testing.T) {
		old := domain.Execution{JobExecutionID: "e0", Status: domain.ExecutionStatusCompleted}
		state := runJob(domain.BuildStatusSuccess, running, old)
		assert.False(t, CanStop(state, &old).Allowed)
		assert.True(t, CanStop(state, &running).Allowed)
	})
}

func TestStopTargetPrecedence(t *testing.T) {
	state := domain.JobState{Job: domain.Job{JobID: "j1", LastExecutionID: "last"}}
	exec := &domain.Execution{JobExecutionID: "e9"}

	got, ok := StopTarget(state, exec)
	assert.True(t, ok)
	assert.Equal(t, Target{Param: ParamJobExecutionID, Value: "e9"}, got)

	got, _ = StopTarget(state, nil)
	assert.Equal(t, Target{Param: ParamJobExecutionID, Value: "last"}, got)

	state.Job.LastExecutionID = ""
	got, _ = StopTarget(state, nil)
	assert.Equal(t, Target{Param: ParamJobID, Value: "j1"}, got)

	_, ok = StopTarget(domain.JobState{}, nil)
	assert.False(t, ok)
}

func TestCanDownloadArtifacts(t *testing.T) {
	completed := domain.Execution{JobExecutionID: "e1", Status: domain.ExecutionStatusCompleted}

	t.Run("Should allow run jobs with a completed execution", func(t *testing.T) {
		assert.True(t, CanDownloadArtifacts(runJob(domain.BuildStatusSuccess, completed), nil).Allowed)
	})

	t.Run("Should refuse deploy jobs even when completed", func(t *testing.T) {
		state := domain.JobState{
			Job:        domain.Job{JobID: "j1", JobType: domain.JobTypeDeploy},
			Executions: []domain.Execution{completed},
		}
		d := CanDownloadArtifacts(state, nil)
		assert.False(t, d.Allowed)
		assert.Equal(t, ReasonArtifactsRunOnly, d.Reason)
	})

	t.Run("Should refuse unfinished executions", func(t *testing.T) {
		d := CanDownloadArtifacts(runJob(domain.BuildStatusSuccess, domain.Execution{JobExecutionID: "e2", Status: domain.ExecutionStatusRunning}), nil)
		assert.False(t, d.Allowed)
		assert.Equal(t, ReasonArtifactsPending, d.Reason)
	})

	t.Run("Should resolve the job's last execution before the newest", func(t *testing.T) {
		state := runJob(domain.BuildStatusSuccess,
			domain.Execution{JobExecutionID: "e2", Status: domain.ExecutionStatusRunning},
			completed,
		)
		state.Job.LastExecutionID = "e1"
		assert.True(t, CanDownloadArtifacts(state, nil).Allowed)
	})
}

func TestCanViewLogs(t *testing.T) {
	assert.True(t, CanViewLogs(runJob(domain.BuildStatusSuccess), nil).Allowed)
	assert.Equal(t, ReasonNoIdentifier, CanViewLogs(domain.JobState{}, nil).Reason)

	target, _ := LogsTarget(runJob(domain.BuildStatusSuccess), &domain.Execution{JobExecutionID: "e1"})
	assert.Equal(t, ParamJobExecutionID, target.Param)

	assert.False(t, CanViewBuildLogs(runJob(domain.BuildStatusPending)).Allowed)
	assert.True(t, CanViewBuildLogs(runJob(domain.BuildStatusFailed)).Allowed)
}

func TestEvaluate(t *testing.T) {
	actions := Evaluate(runJob(domain.BuildStatusSuccess), nil)
	assert.True(t, actions.Get(ActionStart).Allowed)
	assert.False(t, actions.Get(ActionStop).Allowed)
	assert.True(t, actions.Get(ActionViewLogs).Allowed)
	assert.False(t, actions.Get(ActionDownloadArtifacts).Allowed)
}
