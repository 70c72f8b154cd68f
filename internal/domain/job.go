package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// JobType classifies a job. It is fixed at creation.
type JobType string

const (
	JobTypeRun    JobType = "run"
	JobTypeDeploy JobType = "deploy"
)

// BuildStatus is the state of the job's container image build.
type BuildStatus string

const (
	BuildStatusPending  BuildStatus = "pending"
	BuildStatusBuilding BuildStatus = "building"
	BuildStatusSuccess  BuildStatus = "success"
	BuildStatusFailed   BuildStatus = "failed"
)

// ExecutionStatus is the backend-reported status of an execution.
// Unknown values are passed through untouched.
type ExecutionStatus string

const (
	ExecutionStatusNone      ExecutionStatus = ""
	ExecutionStatusQueued    ExecutionStatus = "queued"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusStopped   ExecutionStatus = "stopped"
)

// Active reports whether the execution still occupies the job.
func (s ExecutionStatus) Active() bool {
	return s == ExecutionStatusRunning || s == ExecutionStatusQueued
}

// Known reports whether the status is one the console treats specially.
func (s ExecutionStatus) Known() bool {
	switch s {
	case ExecutionStatusQueued, ExecutionStatusRunning, ExecutionStatusCompleted,
		ExecutionStatusFailed, ExecutionStatusStopped:
		return true
	}
	return false
}

// Job represents a user-defined unit of work tracked by the backend.
type Job struct {
	JobID           string      `json:"job_id"`
	JobName         string      `json:"job_name"`
	JobType         JobType     `json:"job_type"`
	BuildStatus     BuildStatus `json:"build_status"`
	CreatedAt       *time.Time  `json:"created_at,omitempty"`
	LastExecutionID string      `json:"last_execution_id,omitempty"`
	JobURL          string      `json:"job_url,omitempty"`
	HealthStatus    string      `json:"health_status,omitempty"`
}

// GPUInfo describes the accelerator an execution ran on.
type GPUInfo struct {
	Type   string `json:"type,omitempty"`
	Memory string `json:"memory,omitempty"`
}

// Execution is one run instance of a Job.
type Execution struct {
	JobExecutionID string          `json:"job_execution_id"`
	JobID          string          `json:"job_id"`
	Status         ExecutionStatus `json:"status"`
	CreatedAt      *time.Time      `json:"created_at,omitempty"`
	StartTime      *time.Time      `json:"start_time,omitempty"`
	EndTime        *time.Time      `json:"end_time,omitempty"`
	GPUInfo        *GPUInfo        `json:"gpu_info,omitempty"`
	HealthStatus   string          `json:"health_status,omitempty"`
}

// SortExecutions orders executions newest first by created_at.
// Executions without a timestamp sink to the end.
func SortExecutions(executions []Execution) {
	sort.SliceStable(executions, func(i, j int) bool {
		a, b := executions[i].CreatedAt, executions[j].CreatedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}

// JobConfig is the opaque configuration document of a job.
type JobConfig map[string]any

// RequestInputDir reports whether starting the job asks the user for an input file.
func (c JobConfig) RequestInputDir() bool {
	return truthy(c["request_input_dir"])
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case json.Number:
		return t.String() != "0"
	case []any:
		return true
	case map[string]any:
		return true
	default:
		return true
	}
}

// JobState is the normalized local view of a job: the job itself, its executions
// sorted newest first and an optional optimistic status set by a start or stop action.
type JobState struct {
	Job        Job
	Executions []Execution
	Optimistic ExecutionStatus
}

// CurrentStatus derives the status shown for the job. An optimistic status wins
// until the next execution list replaces it; otherwise the newest execution decides.
// ExecutionStatusNone means the job has no executions.
func (s JobState) CurrentStatus() ExecutionStatus {
	if s.Optimistic != ExecutionStatusNone {
		return s.Optimistic
	}
	if len(s.Executions) == 0 {
		return ExecutionStatusNone
	}
	return s.Executions[0].Status
}

// Latest returns the newest execution, if any.
func (s JobState) Latest() (Execution, bool) {
	if len(s.Executions) == 0 {
		return Execution{}, false
	}
	return s.Executions[0], true
}

// FindExecution looks up an execution of this job by id.
func (s JobState) FindExecution(id string) (Execution, bool) {
	if id == "" {
		return Execution{}, false
	}
	for _, e := range s.Executions {
		if e.JobExecutionID == id {
			return e, true
		}
	}
	return Execution{}, false
}

// HasActiveExecution reports whether any known execution is queued or running.
func (s JobState) HasActiveExecution() bool {
	if s.Optimistic != ExecutionStatusNone {
		return s.Optimistic.Active()
	}
	for _, e := range s.Executions {
		if e.Status.Active() {
			return true
		}
	}
	return false
}
