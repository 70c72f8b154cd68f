package backendtest

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sumire/jobconsole/internal/domain"
	"github.com/sumire/jobconsole/internal/handler"
)

func (s *Server) findJob(jobID string) *domain.Job {
	for _, j := range s.jobs {
		if j.JobID == jobID {
			return j
		}
	}
	return nil
}

func (s *Server) findExecution(execID string) (string, int) {
	for jobID, execs := range s.executions {
		for i, e := range execs {
			if e.JobExecutionID == execID {
				return jobID, i
			}
		}
	}
	return "", -1
}

func missingQuery(name string) error {
	return &handler.DetailError{
		Status: http.StatusUnprocessableEntity,
		Detail: []handler.DetailItem{{Loc: []string{"query", name}, Msg: "Field required", Type: "missing"}},
	}
}

func jobNotFound() error {
	return &handler.DetailError{Status: http.StatusNotFound, Detail: "Задача не найдена."}
}

func (s *Server) listJobs(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]domain.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, *j)
	}
	return handler.JSON(c, http.StatusOK, jobs)
}

func (s *Server) listExecutions(c echo.Context) error {
	jobID := c.QueryParam("job_id")
	if jobID == "" {
		return missingQuery("job_id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findJob(jobID) == nil {
		return jobNotFound()
	}
	execs := append([]domain.Execution{}, s.executions[jobID]...)
	return handler.JSON(c, http.StatusOK, execs)
}

func (s *Server) getConfig(c echo.Context) error {
	jobID := c.QueryParam("job_id")
	if jobID == "" {
		return missingQuery("job_id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findJob(jobID) == nil {
		return jobNotFound()
	}
	cfg := s.configs[jobID]
	if cfg == nil {
		cfg = domain.JobConfig{}
	}
	return handler.JSON(c, http.StatusOK, map[string]any{"job_id": jobID, "config": cfg})
}

func (s *Server) startJob(c echo.Context) error {
	jobID := c.QueryParam("job_id")
	if jobID == "" {
		return missingQuery("job_id")
	}

	var inputName string
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := c.FormFile("file")
		if err != nil {
			return &handler.DetailError{Status: http.StatusBadRequest, Detail: "Не удалось прочитать файл."}
		}
		inputName = fh.Filename
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.findJob(jobID)
	if job == nil {
		return jobNotFound()
	}
	if job.JobType != domain.JobTypeRun {
		return &handler.DetailError{
			Status: http.StatusBadRequest,
			Detail: fmt.Sprintf("Cannot start job of type %s", job.JobType),
		}
	}
	if job.BuildStatus != domain.BuildStatusSuccess {
		return &handler.DetailError{Status: http.StatusBadRequest, Detail: "Сборка образа не завершена."}
	}
	for _, e := range s.executions[jobID] {
		if e.Status.Active() {
			return &handler.DetailError{Status: http.StatusConflict, Detail: "Задача уже выполняется."}
		}
	}

	now := s.now().UTC()
	exec := domain.Execution{
		JobExecutionID: uuid.NewString(),
		JobID:          jobID,
		Status:         domain.ExecutionStatusRunning,
		CreatedAt:      &now,
		StartTime:      &now,
	}
	s.executions[jobID] = append([]domain.Execution{exec}, s.executions[jobID]...)
	job.LastExecutionID = exec.JobExecutionID

	sub, _ := handler.GetSubject(c)
	slog.Debug("execution started", "job_id", jobID, "job_execution_id", exec.JobExecutionID, "subject", sub)

	return handler.JSON(c, http.StatusOK, map[string]any{
		"message":          "Job started",
		"job_execution_id": exec.JobExecutionID,
		"input_file":       inputName,
	})
}

func (s *Server) stopJob(c echo.Context) error {
	execID := c.QueryParam("job_execution_id")
	jobID := c.QueryParam("job_id")

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	notRunning := &handler.DetailError{Status: http.StatusBadRequest, Detail: "Выполнение не запущено."}

	switch {
	case execID != "":
		owner, i := s.findExecution(execID)
		if i < 0 {
			return &handler.DetailError{Status: http.StatusNotFound, Detail: "Выполнение не найдено."}
		}
		e := &s.executions[owner][i]
		if !e.Status.Active() {
			return notRunning
		}
		e.Status = domain.ExecutionStatusStopped
		e.EndTime = &now
	case jobID != "":
		if s.findJob(jobID) == nil {
			return jobNotFound()
		}
		stopped := 0
		for i := range s.executions[jobID] {
			e := &s.executions[jobID][i]
			if e.Status.Active() {
				e.Status = domain.ExecutionStatusStopped
				e.EndTime = &now
				stopped++
			}
		}
		if stopped == 0 {
			return notRunning
		}
	default:
		return missingQuery("job_id")
	}

	return handler.JSON(c, http.StatusOK, map[string]string{"message": "Job stopped"})
}

func (s *Server) jobLogs(c echo.Context) error {
	execID := c.QueryParam("job_execution_id")
	jobID := c.QueryParam("job_id")

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case execID != "":
		if _, i := s.findExecution(execID); i < 0 {
			return &handler.DetailError{Status: http.StatusNotFound, Detail: "Выполнение не найдено."}
		}
		return handler.JSON(c, http.StatusOK, map[string]string{"logs": s.logs[execID]})
	case jobID != "":
		job := s.findJob(jobID)
		if job == nil {
			return jobNotFound()
		}
		logs, ok := s.logs[jobID]
		if !ok && job.LastExecutionID != "" {
			logs = s.logs[job.LastExecutionID]
		}
		return handler.JSON(c, http.StatusOK, map[string]string{"logs": logs})
	default:
		return missingQuery("job_id")
	}
}

func (s *Server) buildLogsHandler(c echo.Context) error {
	jobID := c.QueryParam("job_id")
	if jobID == "" {
		return missingQuery("job_id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findJob(jobID) == nil {
		return jobNotFound()
	}
	return handler.JSON(c, http.StatusOK, map[string]string{"build_logs": s.buildLogs[jobID]})
}

func (s *Server) downloadArtifacts(c echo.Context) error {
	execID := c.QueryParam("job_execution_id")
	jobID := c.QueryParam("job_id")

	s.mu.Lock()
	var (
		a  artifact
		ok bool
	)
	switch {
	case execID != "":
		a, ok = s.artifacts[execID]
	case jobID != "":
		a, ok = s.artifacts[jobID]
		if job := s.findJob(jobID); !ok && job != nil && job.LastExecutionID != "" {
			a, ok = s.artifacts[job.LastExecutionID]
		}
	default:
		s.mu.Unlock()
		return missingQuery("job_id")
	}
	s.mu.Unlock()

	if !ok {
		return &handler.DetailError{Status: http.StatusNotFound, Detail: "Артефакты не найдены."}
	}

	if a.filename != "" {
		c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", a.filename))
	}
	return c.Blob(http.StatusOK, "application/zip", a.data)
}

func (s *Server) listSchedules(c echo.Context) error {
	jobID := c.QueryParam("job_id")
	if jobID == "" {
		return missingQuery("job_id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findJob(jobID) == nil {
		return jobNotFound()
	}
	return handler.JSON(c, http.StatusOK, append([]domain.Schedule{}, s.schedules[jobID]...))
}

func (s *Server) bindSchedule(c echo.Context) (domain.ScheduleRequest, error) {
	var req domain.ScheduleRequest
	if err := c.Bind(&req); err != nil {
		return req, &handler.DetailError{Status: http.StatusBadRequest, Detail: "Некорректное тело запроса."}
	}
	if req.Empty() {
		return req, &domain.ValidationError{Message: handler.MsgScheduleEmpty}
	}

	v, ok := c.Echo().Validator.(*handler.AppValidator)
	if !ok {
		return req, c.Validate(req)
	}
	violations, err := v.Violations(req)
	if err != nil {
		return req, err
	}
	if len(violations) > 0 {
		return req, handler.Violations(violations)
	}
	return req, nil
}

func (s *Server) createSchedule(c echo.Context) error {
	jobID := c.QueryParam("job_id")
	if jobID == "" {
		return missingQuery("job_id")
	}

	req, err := s.bindSchedule(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findJob(jobID) == nil {
		return jobNotFound()
	}

	schedule := domain.Schedule{
		ScheduleID:   uuid.NewString(),
		JobID:        jobID,
		Workdays:     req.Workdays,
		Weekends:     req.Weekends,
		SpecificDays: req.SpecificDays,
	}
	s.schedules[jobID] = append(s.schedules[jobID], schedule)
	return handler.JSON(c, http.StatusCreated, schedule)
}

func (s *Server) updateSchedule(c echo.Context) error {
	jobID := c.QueryParam("job_id")
	scheduleID := c.QueryParam("schedule_id")
	if jobID == "" {
		return missingQuery("job_id")
	}
	if scheduleID == "" {
		return missingQuery("schedule_id")
	}

	req, err := s.bindSchedule(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.schedules[jobID] {
		sch := &s.schedules[jobID][i]
		if sch.ScheduleID != scheduleID {
			continue
		}
		sch.ScheduleType = ""
		sch.StartTime, sch.EndTime, sch.DayOfWeek = "", "", nil
		sch.Workdays = req.Workdays
		sch.Weekends = req.Weekends
		sch.SpecificDays = req.SpecificDays
		return handler.JSON(c, http.StatusOK, *sch)
	}
	return scheduleNotFound(scheduleID)
}

func (s *Server) deleteSchedule(c echo.Context) error {
	jobID := c.QueryParam("job_id")
	scheduleID := c.QueryParam("schedule_id")
	if jobID == "" {
		return missingQuery("job_id")
	}
	if scheduleID == "" {
		return missingQuery("schedule_id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.schedules[jobID]
	for i := range list {
		if list[i].ScheduleID == scheduleID {
			s.schedules[jobID] = append(list[:i:i], list[i+1:]...)
			return handler.JSON(c, http.StatusOK, map[string]string{"message": "Schedule deleted"})
		}
	}
	return scheduleNotFound(scheduleID)
}

func scheduleNotFound(id string) error {
	return &handler.DetailError{
		Status: http.StatusNotFound,
		Detail: map[string]string{"message": "Расписание не найдено.", "schedule_id": id},
	}
}
