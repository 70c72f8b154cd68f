package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(minutes int) *time.Time {
	t := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(minutes) * time.Minute)
	return &t
}

func TestJobState(t *testing.T) {
	t.Run("Should derive status from the newest execution", func(t *testing.T) {
		execs := []Execution{
			{JobExecutionID: "e1", Status: ExecutionStatusCompleted, CreatedAt: at(0)},
			{JobExecutionID: "e3", Status: ExecutionStatusRunning, CreatedAt: at(20)},
			{JobExecutionID: "e2", Status: ExecutionStatusFailed, CreatedAt: at(10)},
		}
		SortExecutions(execs)

		state := JobState{Executions: execs}
		assert.Equal(t, "e3", execs[0].JobExecutionID)
		assert.Equal(t, execs[0].Status, state.CurrentStatus())
	})

	t.Run("Should report no status without executions", func(t *testing.T) {
		state := JobState{Job: Job{JobID: "j1"}}
		assert.Equal(t, ExecutionStatusNone, state.CurrentStatus())
		_, ok := state.Latest()
		assert.False(t, ok)
		assert.False(t, state.HasActiveExecution())
	})

	t.Run("Should prefer the optimistic status", func(t *testing.T) {
		state := JobState{
			Executions: []Execution{{Status: ExecutionStatusRunning}},
			Optimistic: ExecutionStatusStopped,
		}
		assert.Equal(t, ExecutionStatusStopped, state.CurrentStatus())
		assert.False(t, state.HasActiveExecution())
	})

	t.Run("Should keep executions without timestamps last", func(t *testing.T) {
		execs := []Execution{
			{JobExecutionID: "none"},
			{JobExecutionID: "old", CreatedAt: at(0)},
			{JobExecutionID: "new", CreatedAt: at(5)},
		}
		SortExecutions(execs)
		assert.Equal(t, []string{"new", "old", "none"}, []string{
			execs[0].JobExecutionID, execs[1].JobExecutionID, execs[2].JobExecutionID,
		})
	})

	t.Run("Should pass unknown statuses through", func(t *testing.T) {
		state := JobState{Executions: []Execution{{Status: "provisioning"}}}
		assert.Equal(t, ExecutionStatus("provisioning"), state.CurrentStatus())
		assert.False(t, state.CurrentStatus().Known())
	})
}

func TestJobConfigRequestInputDir(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{name: "missing", raw: `{}`, want: false},
		{name: "false", raw: `{"request_input_dir": false}`, want: false},
		{name: "true", raw: `{"request_input_dir": true}`, want: true},
		{name: "empty string", raw: `{"request_input_dir": ""}`, want: false},
		{name: "path", raw: `{"request_input_dir": "/data/in"}`, want: true},
		{name: "zero", raw: `{"request_input_dir": 0}`, want: false},
		{name: "null", raw: `{"request_input_dir": null}`, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg JobConfig
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &cfg))
			assert.Equal(t, tt.want, cfg.RequestInputDir())
		})
	}
}
