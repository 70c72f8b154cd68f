package tui

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sumire/jobconsole/internal/domain"
	"github.com/sumire/jobconsole/internal/eligibility"
	"github.com/sumire/jobconsole/internal/store"
)

const timeLayout = "2006-01-02 15:04"

func (m model) View() string {
	var b strings.Builder

	switch {
	case m.prompting != "":
		fmt.Fprintf(&b, "Задача %s ожидает входной файл.\n\n%s\n\n[enter] запустить  [esc] отмена\n", m.prompting, m.prompt.View())
	case m.detail != "":
		b.WriteString(m.viewDetail())
	default:
		b.WriteString(m.viewList())
	}

	if m.notice != nil {
		fmt.Fprintf(&b, "\n%s %s\n", severityMark(m.notice.Severity), m.notice.Message)
	}
	return b.String()
}

func (m model) viewList() string {
	var b strings.Builder
	b.WriteString("Задачи\n\n")

	if len(m.jobs) == 0 {
		b.WriteString("  Нет задач.\n")
	}
	for i, e := range m.jobs {
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}
		j := e.State.Job
		fmt.Fprintf(&b, "%s%-28s %-7s сборка:%-9s %s\n",
			cursor, truncate(nameOf(j), 28), j.JobType, j.BuildStatus, statusLabel(e.State.CurrentStatus()))
	}

	b.WriteString("\n[enter] открыть  [r] обновить  [q] выход\n")
	return b.String()
}

func (m model) viewDetail() string {
	e, ok := m.deps.Store.Get(m.detail)
	if !ok {
		return "Задача не найдена.\n"
	}

	var b strings.Builder
	j := e.State.Job
	fmt.Fprintf(&b, "%s (%s, %s)  статус: %s\n", nameOf(j), j.JobID, j.JobType, statusLabel(e.State.CurrentStatus()))
	if j.JobURL != "" {
		fmt.Fprintf(&b, "URL: %s  [c] копировать\n", j.JobURL)
	}
	b.WriteString("\n")

	target := m.target(e)
	b.WriteString(renderActions(eligibility.Evaluate(e.State, target), m.busy(j.JobID)))
	b.WriteString("\n\n")

	if e.View.Logs.Open {
		b.WriteString(m.viewLogs(e.View.Logs))
		return b.String()
	}

	b.WriteString(renderTabs(e.View.Tab))
	b.WriteString("\n\n")

	switch e.View.Tab {
	case store.TabSchedules:
		b.WriteString(m.viewPanel(e.View.Schedules, func() string { return renderSchedules(e, m.schedIdx, time.Now()) }))
	case store.TabConfig:
		b.WriteString(m.viewPanel(e.View.Config, func() string { return renderConfig(e.Config) }))
	default:
		b.WriteString(m.viewPanel(e.View.Executions, func() string { return renderExecutions(e.State.Executions, m.execIndex) }))
	}

	b.WriteString("\n[tab] вкладка  [↑/↓] выбор  [esc] назад\n")
	return b.String()
}

func (m model) busy(jobID string) map[eligibility.Action]bool {
	out := make(map[eligibility.Action]bool)
	for _, a := range []eligibility.Action{
		eligibility.ActionStart, eligibility.ActionStop, eligibility.ActionViewLogs,
		eligibility.ActionViewBuildLogs, eligibility.ActionDownloadArtifacts,
	} {
		out[a] = m.deps.Service.Busy(a, jobID)
	}
	return out
}

func (m model) viewPanel(p store.Panel, body func() string) string {
	switch {
	case p.Loading:
		return m.spinner.View() + " Загрузка...\n"
	case p.Err != "":
		return "Ошибка: " + p.Err + "\n"
	default:
		return body()
	}
}

func (m model) viewLogs(l store.LogsSurface) string {
	var b strings.Builder
	b.WriteString(l.Title + "\n\n")
	switch {
	case l.Loading:
		b.WriteString(m.spinner.View() + " Загрузка...\n")
	case l.Failed:
		b.WriteString("Ошибка: " + l.Text + "\n")
	default:
		b.WriteString(l.Text + "\n")
	}
	b.WriteString("\n[esc] закрыть\n")
	return b.String()
}

var actionKeys = []struct {
	action eligibility.Action
	key    string
	label  string
}{
	{eligibility.ActionStart, "s", "Запустить"},
	{eligibility.ActionStop, "x", "Остановить"},
	{eligibility.ActionViewLogs, "l", "Логи"},
	{eligibility.ActionViewBuildLogs, "b", "Логи сборки"},
	{eligibility.ActionDownloadArtifacts, "a", "Артефакты"},
}

// renderActions draws the action bar from the eligibility flags. Disabled
// actions show their reason; in-flight actions show an ellipsis.
func renderActions(actions eligibility.Actions, busy map[eligibility.Action]bool) string {
	var enabled, disabled []string
	for _, a := range actionKeys {
		d := actions.Get(a.action)
		switch {
		case busy[a.action]:
			enabled = append(enabled, fmt.Sprintf("[%s] %s...", a.key, a.label))
		case d.Allowed:
			enabled = append(enabled, fmt.Sprintf("[%s] %s", a.key, a.label))
		default:
			disabled = append(disabled, fmt.Sprintf("  %s: %s", a.label, d.Reason))
		}
	}

	out := strings.Join(enabled, "  ")
	if len(disabled) > 0 {
		out += "\n" + strings.Join(disabled, "\n")
	}
	return out
}

func renderTabs(active store.Tab) string {
	tabs := []struct {
		tab   store.Tab
		label string
	}{
		{store.TabExecutions, "Выполнения"},
		{store.TabSchedules, "Расписания"},
		{store.TabConfig, "Конфигурация"},
	}

	parts := make([]string, 0, len(tabs))
	for _, t := range tabs {
		if t.tab == active {
			parts = append(parts, "["+t.label+"]")
		} else {
			parts = append(parts, " "+t.label+" ")
		}
	}
	return strings.Join(parts, " ")
}

func renderExecutions(execs []domain.Execution, selected int) string {
	if len(execs) == 0 {
		return "Нет выполнений.\n"
	}

	var b strings.Builder
	for i, e := range execs {
		cursor := "  "
		if i == selected {
			cursor = "> "
		}
		gpu := ""
		if e.GPUInfo != nil {
			gpu = strings.TrimSpace(e.GPUInfo.Type + " " + e.GPUInfo.Memory)
		}
		fmt.Fprintf(&b, "%s%-36s %-10s %-16s %s\n", cursor, e.JobExecutionID, statusLabel(e.Status), formatTime(e.CreatedAt), gpu)
	}
	return b.String()
}

func renderSchedules(e store.Entry, selected int, now time.Time) string {
	var b strings.Builder
	if len(e.Schedules) == 0 {
		b.WriteString("Нет расписаний.\n")
	}
	for i, s := range e.Schedules {
		cursor := "  "
		if i == selected {
			cursor = "> "
		}
		next := "-"
		if t, ok, err := s.NextRun(now); err == nil && ok {
			next = t.Format(timeLayout)
		}
		fmt.Fprintf(&b, "%s%-20s %-40s следующий запуск: %s\n", cursor, s.ScheduleID, describeSchedule(s), next)
	}

	if e.View.ScheduleEditorOpen {
		target := "новое расписание"
		if e.View.EditingScheduleID != "" {
			target = e.View.EditingScheduleID
		}
		fmt.Fprintf(&b, "\nРедактирование: %s (используйте jobctl schedules create|update)\n", target)
	}
	b.WriteString("\n[e] редактор  [d] удалить\n")
	return b.String()
}

func describeSchedule(s domain.Schedule) string {
	switch s.ScheduleType {
	case domain.ScheduleTypeDaily:
		return "ежедневно в " + s.StartTime
	case domain.ScheduleTypeWeekly:
		day := "?"
		if s.DayOfWeek != nil {
			day = fmt.Sprint(*s.DayOfWeek)
		}
		return fmt.Sprintf("еженедельно (день %s) в %s", day, s.StartTime)
	case domain.ScheduleTypeOnce:
		return "однократно " + s.StartTime
	}

	var parts []string
	for _, w := range s.Workdays {
		parts = append(parts, "будни "+w.StartTime+"-"+w.EndTime)
	}
	for _, w := range s.Weekends {
		parts = append(parts, "выходные "+w.StartTime+"-"+w.EndTime)
	}
	for _, d := range s.SpecificDays {
		parts = append(parts, d.Date+" "+d.StartTime+"-"+d.EndTime)
	}
	return strings.Join(parts, ", ")
}

func renderConfig(cfg domain.JobConfig) string {
	if len(cfg) == 0 {
		return "Конфигурация пуста.\n"
	}

	keys := make([]string, 0, len(cfg))
	for k := range cfg {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v, err := json.Marshal(cfg[k])
		if err != nil {
			v = []byte(fmt.Sprint(cfg[k]))
		}
		fmt.Fprintf(&b, "  %s: %s\n", k, v)
	}
	return b.String()
}

func statusLabel(s domain.ExecutionStatus) string {
	if s != domain.ExecutionStatusNone && !s.Known() {
		return string(s)
	}
	switch s {
	case domain.ExecutionStatusNone:
		return "нет выполнений"
	case domain.ExecutionStatusQueued:
		return "в очереди"
	case domain.ExecutionStatusRunning:
		return "выполняется"
	case domain.ExecutionStatusCompleted:
		return "завершено"
	case domain.ExecutionStatusFailed:
		return "ошибка"
	default:
		return "остановлено"
	}
}

func severityMark(s domain.Severity) string {
	switch s {
	case domain.SeveritySuccess:
		return "[ok]"
	case domain.SeverityError:
		return "[!]"
	default:
		return "[i]"
	}
}

func nameOf(j domain.Job) string {
	if j.JobName != "" {
		return j.JobName
	}
	return j.JobID
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
