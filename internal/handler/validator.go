package handler

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sumire/jobconsole/internal/domain"
)

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d(:[0-5]\d)?$`)

// AppValidator wraps go-playground/validator for echo and the action service.
type AppValidator struct {
	validator *validator.Validate
}

// NewAppValidator creates a new AppValidator with the schedule rules registered.
func NewAppValidator() *AppValidator {
	v := validator.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Registration only fails on an empty tag or nil func.
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		return clockPattern.MatchString(fl.Field().String())
	})

	v.RegisterStructValidation(validateTimeWindow, domain.TimeWindow{})
	v.RegisterStructValidation(validateSpecificDay, domain.SpecificDay{})
	v.RegisterStructValidation(validateSchedule, domain.Schedule{})

	return &AppValidator{validator: v}
}

// Validate validates a struct and returns the first violation as a
// *domain.ValidationError.
func (v *AppValidator) Validate(i any) error {
	violations, err := v.Violations(i)
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		return &violations[0]
	}
	return nil
}

// Violations validates a struct and returns every violation in field order.
func (v *AppValidator) Violations(i any) ([]domain.ValidationError, error) {
	err := v.validator.Struct(i)
	if err == nil {
		return nil, nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	out := make([]domain.ValidationError, 0, len(validationErrors))
	for _, fe := range validationErrors {
		out = append(out, domain.ValidationError{
			Field:   fieldPath(fe),
			Message: tagMessage(fe),
		})
	}
	return out, nil
}

// ValidateScheduleRequest checks a create or update body. An empty request
// is rejected before any field rule runs.
func (v *AppValidator) ValidateScheduleRequest(req domain.ScheduleRequest) error {
	if req.Empty() {
		return &domain.ValidationError{Message: MsgScheduleEmpty}
	}
	return v.Validate(req)
}

// MsgScheduleEmpty is shown when a schedule defines no window.
const MsgScheduleEmpty = "Укажите хотя бы один интервал: будни, выходные или конкретные даты."

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "обязательное поле"
	case "clock":
		return "время должно быть в формате ЧЧ:ММ"
	case "datetime":
		return "дата должна быть в формате ГГГГ-ММ-ДД"
	case "window":
		return "время начала должно быть раньше времени окончания"
	case "oneof":
		return "допустимые значения: " + fe.Param()
	case "day_of_week":
		return "день недели должен быть от 0 до 6"
	case "rfc3339":
		return "время должно быть в формате RFC 3339"
	case "windows":
		return MsgScheduleEmpty
	default:
		return fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
}

func validateTimeWindow(sl validator.StructLevel) {
	w := sl.Current().Interface().(domain.TimeWindow)
	if !windowOrdered(w.StartTime, w.EndTime) {
		sl.ReportError(w.EndTime, "end_time", "EndTime", "window", "")
	}
}

func validateSpecificDay(sl validator.StructLevel) {
	d := sl.Current().Interface().(domain.SpecificDay)
	if !windowOrdered(d.StartTime, d.EndTime) {
		sl.ReportError(d.EndTime, "end_time", "EndTime", "window", "")
	}
}

// windowOrdered reports false only for two well-formed clocks in the wrong
// order. Malformed clocks are left to the field rules.
func windowOrdered(start, end string) bool {
	if !clockPattern.MatchString(start) || !clockPattern.MatchString(end) {
		return true
	}
	return normalizeClock(start) < normalizeClock(end)
}

func normalizeClock(clock string) string {
	if len(clock) == len("15:04") {
		return clock + ":00"
	}
	return clock
}

func validateSchedule(sl validator.StructLevel) {
	s := sl.Current().Interface().(domain.Schedule)

	switch s.ScheduleType {
	case domain.ScheduleTypeDaily, domain.ScheduleTypeWeekly:
		if !clockPattern.MatchString(s.StartTime) {
			sl.ReportError(s.StartTime, "start_time", "StartTime", "clock", "")
		}
		if s.ScheduleType == domain.ScheduleTypeWeekly && (s.DayOfWeek == nil || *s.DayOfWeek < 0 || *s.DayOfWeek > 6) {
			sl.ReportError(s.DayOfWeek, "day_of_week", "DayOfWeek", "day_of_week", "")
		}
	case domain.ScheduleTypeOnce:
		if _, err := time.Parse(time.RFC3339, s.StartTime); err != nil {
			sl.ReportError(s.StartTime, "start_time", "StartTime", "rfc3339", "")
		}
	case "":
		if len(s.Workdays) == 0 && len(s.Weekends) == 0 && len(s.SpecificDays) == 0 {
			sl.ReportError(s.Workdays, "workdays", "Workdays", "windows", "")
		}
	default:
		sl.ReportError(s.ScheduleType, "schedule_type", "ScheduleType", "oneof", "DAILY WEEKLY ONCE")
	}
}
