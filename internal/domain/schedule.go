package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduleType is the recurrence of a simple schedule.
type ScheduleType string

const (
	ScheduleTypeDaily  ScheduleType = "DAILY"
	ScheduleTypeWeekly ScheduleType = "WEEKLY"
	ScheduleTypeOnce   ScheduleType = "ONCE"
)

// TimeWindow is a daily window in HH:MM.
type TimeWindow struct {
	StartTime string `json:"start_time" validate:"required,clock"`
	EndTime   string `json:"end_time" validate:"required,clock"`
}

// SpecificDay is a window on one calendar date (YYYY-MM-DD).
type SpecificDay struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required,clock"`
	EndTime   string `json:"end_time" validate:"required,clock"`
}

// Schedule is a recurrence rule attached to a job. It is either simple
// (ScheduleType set) or composite (time-window lists set).
type Schedule struct {
	ScheduleID   string        `json:"schedule_id"`
	JobID        string        `json:"job_id"`
	ScheduleType ScheduleType  `json:"schedule_type,omitempty"`
	StartTime    string        `json:"start_time,omitempty"`
	EndTime      string        `json:"end_time,omitempty"`
	DayOfWeek    *int          `json:"day_of_week,omitempty"`
	Workdays     []TimeWindow  `json:"workdays,omitempty" validate:"omitempty,dive"`
	Weekends     []TimeWindow  `json:"weekends,omitempty" validate:"omitempty,dive"`
	SpecificDays []SpecificDay `json:"specific_days,omitempty" validate:"omitempty,dive"`
}

// ScheduleRequest is the body of create and update schedule calls.
type ScheduleRequest struct {
	Workdays     []TimeWindow  `json:"workdays,omitempty" validate:"omitempty,dive"`
	Weekends     []TimeWindow  `json:"weekends,omitempty" validate:"omitempty,dive"`
	SpecificDays []SpecificDay `json:"specific_days,omitempty" validate:"omitempty,dive"`
}

// Empty reports whether the request defines no window at all.
func (r ScheduleRequest) Empty() bool {
	return len(r.Workdays) == 0 && len(r.Weekends) == 0 && len(r.SpecificDays) == 0
}

// NextRun returns the next trigger time strictly after the given instant.
// ok is false when the schedule will not fire again.
func (s Schedule) NextRun(after time.Time) (time.Time, bool, error) {
	var next time.Time
	consider := func(t time.Time) {
		if t.After(after) && (next.IsZero() || t.Before(next)) {
			next = t
		}
	}

	switch s.ScheduleType {
	case ScheduleTypeDaily, ScheduleTypeWeekly:
		dow := "*"
		if s.ScheduleType == ScheduleTypeWeekly {
			if s.DayOfWeek == nil {
				return time.Time{}, false, fmt.Errorf("weekly schedule %s: missing day_of_week", s.ScheduleID)
			}
			dow = fmt.Sprintf("%d", *s.DayOfWeek)
		}
		t, err := nextClock(s.StartTime, dow, after)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("schedule %s: %w", s.ScheduleID, err)
		}
		consider(t)
	case ScheduleTypeOnce:
		t, err := time.Parse(time.RFC3339, s.StartTime)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("schedule %s: parse start_time: %w", s.ScheduleID, err)
		}
		consider(t)
	case "":
		for _, w := range s.Workdays {
			t, err := nextClock(w.StartTime, "1-5", after)
			if err != nil {
				return time.Time{}, false, err
			}
			consider(t)
		}
		for _, w := range s.Weekends {
			t, err := nextClock(w.StartTime, "0,6", after)
			if err != nil {
				return time.Time{}, false, err
			}
			consider(t)
		}
		for _, d := range s.SpecificDays {
			t, err := time.ParseInLocation("2006-01-02 15:04", d.Date+" "+trimSeconds(d.StartTime), after.Location())
			if err != nil {
				return time.Time{}, false, fmt.Errorf("specific day %s: %w", d.Date, err)
			}
			consider(t)
		}
	default:
		return time.Time{}, false, fmt.Errorf("unknown schedule type: %s", s.ScheduleType)
	}

	return next, !next.IsZero(), nil
}

func nextClock(clock, dow string, after time.Time) (time.Time, error) {
	hh, mm, err := splitClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	sched, err := cron.ParseStandard(fmt.Sprintf("%d %d * * %s", mm, hh, dow))
	if err != nil {
		return time.Time{}, fmt.Errorf("build cron expression: %w", err)
	}
	return sched.Next(after), nil
}

func splitClock(clock string) (int, int, error) {
	t, err := time.Parse("15:04", trimSeconds(clock))
	if err != nil {
		return 0, 0, fmt.Errorf("parse clock %q: %w", clock, err)
	}
	return t.Hour(), t.Minute(), nil
}

func trimSeconds(clock string) string {
	if strings.Count(clock, ":") == 2 {
		return clock[:strings.LastIndex(clock, ":")]
	}
	return clock
}
