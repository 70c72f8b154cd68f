package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sumire/jobconsole/internal/domain"
	"github.com/sumire/jobconsole/internal/store"
)

// LoadSchedules fetches a job's schedules with the panel spinner shown.
func (s *JobService) LoadSchedules(ctx context.Context, jobID string) error {
	s.store.SetLoading(jobID, store.PanelSchedules, true)
	return s.RefreshSchedules(ctx, jobID)
}

// RefreshSchedules fetches a job's schedules without a spinner.
func (s *JobService) RefreshSchedules(ctx context.Context, jobID string) error {
	schedules, err := s.backend.ListSchedules(ctx, jobID)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		s.store.SetPanelError(jobID, store.PanelSchedules, describe(err, MsgSchedulesFailed))
		return fmt.Errorf("list schedules: %w", err)
	}

	for _, sch := range schedules {
		if err := s.validator.Validate(sch); err != nil {
			slog.Warn("malformed schedule", "job_id", jobID, "schedule_id", sch.ScheduleID, "error", err)
		}
	}
	s.store.SetSchedules(jobID, schedules)
	return nil
}

// CreateSchedule attaches a schedule to a job. An empty or malformed
// request is rejected locally.
func (s *JobService) CreateSchedule(ctx context.Context, jobID string, req domain.ScheduleRequest) error {
	if err := s.validator.ValidateScheduleRequest(req); err != nil {
		s.notes.Error(describe(err, MsgScheduleCreateFailed))
		return err
	}

	release, err := s.acquire(ActionCreateSchedule, jobID)
	if err != nil {
		return err
	}
	defer release()

	if err := s.backend.CreateSchedule(ctx, jobID, req); err != nil {
		s.notes.Error(describe(err, MsgScheduleCreateFailed))
		return fmt.Errorf("create schedule for %s: %w", jobID, err)
	}

	s.notes.Success(MsgScheduleCreated)
	s.closeEditor(jobID)
	s.refreshSchedulesAfter(ctx, jobID)
	return nil
}

// UpdateSchedule replaces the windows of a schedule.
func (s *JobService) UpdateSchedule(ctx context.Context, jobID, scheduleID string, req domain.ScheduleRequest) error {
	if scheduleID == "" {
		s.notes.Error(MsgScheduleIDRequired)
		return &domain.ValidationError{Field: "schedule_id", Message: MsgScheduleIDRequired}
	}
	if err := s.validator.ValidateScheduleRequest(req); err != nil {
		s.notes.Error(describe(err, MsgScheduleUpdateFailed))
		return err
	}

	release, err := s.acquire(ActionUpdateSchedule, scheduleID)
	if err != nil {
		return err
	}
	defer release()

	if err := s.backend.UpdateSchedule(ctx, jobID, scheduleID, req); err != nil {
		s.notes.Error(describe(err, MsgScheduleUpdateFailed))
		return fmt.Errorf("update schedule %s: %w", scheduleID, err)
	}

	s.notes.Success(MsgScheduleUpdated)
	s.closeEditor(jobID)
	s.refreshSchedulesAfter(ctx, jobID)
	return nil
}

// DeleteSchedule removes a schedule.
func (s *JobService) DeleteSchedule(ctx context.Context, jobID, scheduleID string) error {
	if scheduleID == "" {
		s.notes.Error(MsgScheduleIDRequired)
		return &domain.ValidationError{Field: "schedule_id", Message: MsgScheduleIDRequired}
	}

	release, err := s.acquire(ActionDeleteSchedule, scheduleID)
	if err != nil {
		return err
	}
	defer release()

	if err := s.backend.DeleteSchedule(ctx, jobID, scheduleID); err != nil {
		s.notes.Error(describe(err, MsgScheduleDeleteFailed))
		return fmt.Errorf("delete schedule %s: %w", scheduleID, err)
	}

	s.notes.Success(MsgScheduleDeleted)
	s.refreshSchedulesAfter(ctx, jobID)
	return nil
}

func (s *JobService) closeEditor(jobID string) {
	s.store.UpdateView(jobID, func(v *store.View) {
		v.ScheduleEditorOpen = false
		v.EditingScheduleID = ""
	})
}

func (s *JobService) refreshSchedulesAfter(ctx context.Context, jobID string) {
	if err := s.RefreshSchedules(ctx, jobID); err != nil {
		slog.Warn("refresh schedules failed", "job_id", jobID, "error", err)
	}
}
