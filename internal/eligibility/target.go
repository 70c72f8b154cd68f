package eligibility

import "github.com/sumire/jobconsole/internal/domain"

// Query parameter names understood by the backend.
const (
	ParamJobID          = "job_id"
	ParamJobExecutionID = "job_execution_id"
)

// Target is the identifier a request is sent with.
type Target struct {
	Param string
	Value string
}

// StopTarget resolves job_execution_id, then last_execution_id, then job_id.
func StopTarget(state domain.JobState, target *domain.Execution) (Target, bool) {
	if target != nil && target.JobExecutionID != "" {
		return Target{Param: ParamJobExecutionID, Value: target.JobExecutionID}, true
	}
	if state.Job.LastExecutionID != "" {
		return Target{Param: ParamJobExecutionID, Value: state.Job.LastExecutionID}, true
	}
	if state.Job.JobID != "" {
		return Target{Param: ParamJobID, Value: state.Job.JobID}, true
	}
	return Target{}, false
}

// LogsTarget prefers the execution id and falls back to the job id.
func LogsTarget(state domain.JobState, target *domain.Execution) (Target, bool) {
	if target != nil && target.JobExecutionID != "" {
		return Target{Param: ParamJobExecutionID, Value: target.JobExecutionID}, true
	}
	if state.Job.JobID != "" {
		return Target{Param: ParamJobID, Value: state.Job.JobID}, true
	}
	return Target{}, false
}

// ArtifactsTarget uses the same precedence as StopTarget.
func ArtifactsTarget(state domain.JobState, target *domain.Execution) (Target, bool) {
	return StopTarget(state, target)
}
