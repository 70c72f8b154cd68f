package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumire/jobconsole/internal/backendtest"
	"github.com/sumire/jobconsole/internal/domain"
	"github.com/sumire/jobconsole/internal/handler"
	"github.com/sumire/jobconsole/internal/store"
)

func TestCreateSchedule(t *testing.T) {
	ctx := context.Background()

	t.Run("Should reject an empty schedule without calling the backend", func(t *testing.T) {
		f := newFixture(t, runJob)

		err := f.svc.CreateSchedule(ctx, "j1", domain.ScheduleRequest{
			Workdays:     []domain.TimeWindow{},
			Weekends:     []domain.TimeWindow{},
			SpecificDays: []domain.SpecificDay{},
		})

		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
		assert.Empty(t, f.backend.Calls("/jobs/create-schedules"))
		assert.Equal(t, domain.SeverityError, f.notes.last().Severity)
		assert.Equal(t, handler.MsgScheduleEmpty, f.notes.last().Message)
	})

	t.Run("Should create, close the editor and refresh the list", func(t *testing.T) {
		f := newFixture(t, runJob)
		f.store.UpdateView("j1", func(v *store.View) {
			v.Tab = store.TabSchedules
			v.ScheduleEditorOpen = true
		})

		err := f.svc.CreateSchedule(ctx, "j1", domain.ScheduleRequest{
			SpecificDays: []domain.SpecificDay{{Date: "2026-11-01", StartTime: "08:00", EndTime: "09:00"}},
		})

		require.NoError(t, err)
		assert.Equal(t, MsgScheduleCreated, f.notes.last().Message)

		calls := f.backend.Calls("/jobs/create-schedules")
		require.Len(t, calls, 1)
		assert.Equal(t, "j1", calls[0].Query.Get("job_id"))
		assert.JSONEq(t, `{"specific_days":[{"date":"2026-11-01","start_time":"08:00","end_time":"09:00"}]}`, string(calls[0].Body))

		e, _ := f.store.Get("j1")
		assert.Len(t, e.Schedules, 1)
		assert.False(t, e.View.ScheduleEditorOpen)
		assert.Equal(t, store.TabSchedules, e.View.Tab)
	})

	t.Run("Should reject a malformed window locally", func(t *testing.T) {
		f := newFixture(t, runJob)

		err := f.svc.CreateSchedule(ctx, "j1", domain.ScheduleRequest{
			Workdays: []domain.TimeWindow{{StartTime: "18:00", EndTime: "08:00"}},
		})

		require.Error(t, err)
		assert.Empty(t, f.backend.Calls("/jobs/create-schedules"))
		assert.Contains(t, f.notes.last().Message, "workdays[0].end_time")
	})

	t.Run("Should join list details from the backend", func(t *testing.T) {
		f := newFixture(t, runJob)
		f.backend.Fail("/jobs/create-schedules", backendtest.Failure{
			Status: http.StatusUnprocessableEntity,
			Detail: []handler.DetailItem{{Msg: "overlaps with sched-1"}, {Msg: "too many windows"}},
		})

		err := f.svc.CreateSchedule(ctx, "j1", domain.ScheduleRequest{
			Weekends: []domain.TimeWindow{{StartTime: "10:00", EndTime: "11:00"}},
		})

		require.Error(t, err)
		assert.Equal(t, "overlaps with sched-1; too many windows", f.notes.last().Message)
	})
}

func TestUpdateSchedule(t *testing.T) {
	ctx := context.Background()

	t.Run("Should update and refresh", func(t *testing.T) {
		f := newFixture(t, runJob)
		f.backend.AddSchedule(domain.Schedule{ScheduleID: "s1", JobID: "j1", Workdays: []domain.TimeWindow{{StartTime: "01:00", EndTime: "02:00"}}})

		err := f.svc.UpdateSchedule(ctx, "j1", "s1", domain.ScheduleRequest{
			Weekends: []domain.TimeWindow{{StartTime: "03:00", EndTime: "04:00"}},
		})

		require.NoError(t, err)
		assert.Equal(t, MsgScheduleUpdated, f.notes.last().Message)
		e, _ := f.store.Get("j1")
		require.Len(t, e.Schedules, 1)
		assert.Equal(t, "03:00", e.Schedules[0].Weekends[0].StartTime)
	})

	t.Run("Should require a schedule id", func(t *testing.T) {
		f := newFixture(t, runJob)

		err := f.svc.UpdateSchedule(ctx, "j1", "", domain.ScheduleRequest{
			Weekends: []domain.TimeWindow{{StartTime: "03:00", EndTime: "04:00"}},
		})

		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
		assert.Empty(t, f.backend.Calls("/jobs/update-schedules"))
	})
}

func TestDeleteSchedule(t *testing.T) {
	ctx := context.Background()

	t.Run("Should delete and refresh", func(t *testing.T) {
		f := newFixture(t, runJob)
		f.backend.AddSchedule(domain.Schedule{ScheduleID: "s1", JobID: "j1", ScheduleType: domain.ScheduleTypeDaily, StartTime: "06:00"})
		require.NoError(t, f.svc.LoadSchedules(ctx, "j1"))

		err := f.svc.DeleteSchedule(ctx, "j1", "s1")

		require.NoError(t, err)
		assert.Equal(t, MsgScheduleDeleted, f.notes.last().Message)
		e, _ := f.store.Get("j1")
		assert.Empty(t, e.Schedules)
	})

	t.Run("Should surface an object detail", func(t *testing.T) {
		f := newFixture(t, runJob)

		err := f.svc.DeleteSchedule(ctx, "j1", "missing")

		require.Error(t, err)
		assert.Equal(t, "Расписание не найдено.", f.notes.last().Message)
	})
}
