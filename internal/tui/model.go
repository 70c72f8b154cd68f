// Package tui is the terminal job console: a job list and a job detail view
// rendered from the shared store.
package tui

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sumire/jobconsole/internal/api"
	"github.com/sumire/jobconsole/internal/domain"
	"github.com/sumire/jobconsole/internal/eligibility"
	"github.com/sumire/jobconsole/internal/notify"
	"github.com/sumire/jobconsole/internal/poller"
	"github.com/sumire/jobconsole/internal/service"
	"github.com/sumire/jobconsole/internal/store"
)

// Deps are the collaborators the console renders and drives.
type Deps struct {
	Service   *service.JobService
	Store     *store.Store
	Sink      *notify.Sink
	Refresher *poller.Refresher
}

type storeChangedMsg struct{}

type noticeMsg struct{}

type actionDoneMsg struct {
	err error
}

type inputNeededMsg struct {
	jobID string
}

type model struct {
	ctx  context.Context
	deps Deps

	jobs   []store.Entry
	cursor int

	detail    string
	execIndex int
	schedIdx  int

	prompt    textinput.Model
	prompting string

	spinner spinner.Model
	notice  *domain.Notification
}

func newModel(ctx context.Context, deps Deps) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	ti := textinput.New()
	ti.Placeholder = "путь к файлу (пусто: запуск без файла)"
	ti.CharLimit = 4096

	m := model{ctx: ctx, deps: deps, spinner: sp, prompt: ti}
	m.jobs = deps.Store.List()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadJobs())
}

func (m model) loadJobs() tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: m.deps.Service.LoadJobs(m.ctx)}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case storeChangedMsg:
		m.jobs = m.deps.Store.List()
		if m.cursor >= len(m.jobs) {
			m.cursor = max(len(m.jobs)-1, 0)
		}
		return m, nil

	case noticeMsg:
		m.notice = nil
		if n, ok := m.deps.Sink.Current(); ok {
			m.notice = &n
		}
		return m, nil

	case actionDoneMsg:
		return m, nil

	case inputNeededMsg:
		m.prompting = msg.jobID
		m.prompt.Reset()
		return m, m.prompt.Focus()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.deps.Refresher.Close()
			return m, tea.Quit
		}
		if m.prompting != "" {
			return m.updatePrompt(msg)
		}
		if m.detail != "" {
			return m.updateDetail(msg)
		}
		return m.updateList(msg)
	}

	return m, nil
}

func (m model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.deps.Refresher.Close()
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.jobs)-1 {
			m.cursor++
		}
	case "r":
		return m, m.loadJobs()
	case "enter":
		if len(m.jobs) == 0 {
			return m, nil
		}
		m.detail = m.jobs[m.cursor].State.Job.JobID
		m.execIndex = -1
		m.schedIdx = 0
		m.deps.Refresher.Open(m.detail)
	}
	return m, nil
}

func (m model) entry() (store.Entry, bool) {
	return m.deps.Store.Get(m.detail)
}

// target is the execution selected in the executions tab, if any.
func (m model) target(e store.Entry) *domain.Execution {
	if m.execIndex < 0 || m.execIndex >= len(e.State.Executions) {
		return nil
	}
	exec := e.State.Executions[m.execIndex]
	return &exec
}

func (m model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	e, ok := m.entry()
	if !ok {
		m.detail = ""
		return m, nil
	}
	svc := m.deps.Service
	jobID := m.detail
	target := m.target(e)

	if e.View.Logs.Open {
		if msg.String() == "esc" || msg.String() == "q" {
			m.deps.Store.CloseLogs(jobID)
		}
		return m, nil
	}

	switch msg.String() {
	case "esc", "q":
		m.deps.Refresher.Close()
		m.deps.Store.ResetDetail(jobID)
		m.detail = ""
		return m, nil

	case "tab":
		m.deps.Store.UpdateView(jobID, func(v *store.View) { v.Tab = nextTab(v.Tab) })

	case "up", "k":
		if e.View.Tab == store.TabSchedules {
			m.schedIdx = max(m.schedIdx-1, 0)
		} else {
			m.execIndex = max(m.execIndex-1, -1)
		}

	case "down", "j":
		if e.View.Tab == store.TabSchedules {
			m.schedIdx = min(m.schedIdx+1, max(len(e.Schedules)-1, 0))
		} else {
			m.execIndex = min(m.execIndex+1, len(e.State.Executions)-1)
		}

	case "s":
		return m, func() tea.Msg {
			if svc.Busy(eligibility.ActionStart, jobID) {
				return actionDoneMsg{}
			}
			if !eligibility.CanStart(e.State).Allowed {
				return actionDoneMsg{err: svc.StartJob(m.ctx, jobID)}
			}
			need, err := svc.RequiresInput(m.ctx, jobID)
			if err == nil && need {
				return inputNeededMsg{jobID: jobID}
			}
			return actionDoneMsg{err: svc.StartJob(m.ctx, jobID)}
		}

	case "x":
		return m, func() tea.Msg { return actionDoneMsg{err: svc.StopJob(m.ctx, jobID, target)} }

	case "l":
		return m, func() tea.Msg {
			_, err := svc.FetchLogs(m.ctx, jobID, target)
			return actionDoneMsg{err: err}
		}

	case "b":
		return m, func() tea.Msg {
			_, err := svc.FetchBuildLogs(m.ctx, jobID)
			return actionDoneMsg{err: err}
		}

	case "a":
		return m, func() tea.Msg {
			_, err := svc.DownloadArtifacts(m.ctx, jobID, target)
			return actionDoneMsg{err: err}
		}

	case "c":
		if url := e.State.Job.JobURL; url != "" {
			copyToClipboard(url)
			m.deps.Sink.Copied("Ссылка скопирована.")
		}

	case "e":
		if e.View.Tab == store.TabSchedules {
			editing := ""
			if m.schedIdx < len(e.Schedules) {
				editing = e.Schedules[m.schedIdx].ScheduleID
			}
			m.deps.Store.UpdateView(jobID, func(v *store.View) {
				v.ScheduleEditorOpen = !v.ScheduleEditorOpen
				v.EditingScheduleID = editing
			})
		}

	case "d":
		if e.View.Tab == store.TabSchedules && m.schedIdx < len(e.Schedules) {
			scheduleID := e.Schedules[m.schedIdx].ScheduleID
			return m, func() tea.Msg {
				return actionDoneMsg{err: svc.DeleteSchedule(m.ctx, jobID, scheduleID)}
			}
		}
	}

	return m, nil
}

func (m model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.prompting = ""
		m.prompt.Blur()
		return m, nil
	case "enter":
		jobID := m.prompting
		path := strings.TrimSpace(m.prompt.Value())
		m.prompting = ""
		m.prompt.Blur()
		svc := m.deps.Service
		return m, func() tea.Msg {
			if path == "" {
				return actionDoneMsg{err: svc.StartJob(m.ctx, jobID)}
			}
			f, err := os.Open(path)
			if err != nil {
				m.deps.Sink.Error("Не удалось открыть файл: " + err.Error())
				return actionDoneMsg{err: err}
			}
			defer f.Close()
			return actionDoneMsg{err: svc.StartJob(m.ctx, jobID, api.InputFile{Name: filepath.Base(path), Body: f})}
		}
	}

	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return m, cmd
}

func nextTab(t store.Tab) store.Tab {
	switch t {
	case store.TabExecutions:
		return store.TabSchedules
	case store.TabSchedules:
		return store.TabConfig
	default:
		return store.TabExecutions
	}
}
