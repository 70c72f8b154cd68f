// Package eligibility decides which job actions are currently permitted and,
// when one is not, the reason shown to the user. Everything here is pure.
package eligibility

import "github.com/sumire/jobconsole/internal/domain"

// Disabled reasons, in the console's display language.
const (
	ReasonUnsupportedType  = "Эту задачу нельзя запустить из интерфейса."
	ReasonBuildNotFinished = "Сборка образа ещё не завершена."
	ReasonBuildFailed      = "Сборка образа завершилась с ошибкой."
	ReasonAlreadyRunning   = "Задача уже выполняется."
	ReasonNothingToStop    = "Нет выполнения для остановки."
	ReasonNotRunning       = "Задача не выполняется."
	ReasonNoIdentifier     = "Не найден идентификатор задачи."
	ReasonArtifactsRunOnly = "Артефакты доступны только для задач типа 'run'."
	ReasonArtifactsPending = "Артефакты доступны только для завершённых выполнений."
	ReasonNoBuildLogs      = "Логи сборки ещё не сформированы."
)

// Action names an operation of the console.
type Action string

const (
	ActionStart             Action = "start"
	ActionStop              Action = "stop"
	ActionViewLogs          Action = "logs"
	ActionViewBuildLogs     Action = "build-logs"
	ActionDownloadArtifacts Action = "artifacts"
)

// Decision is one eligibility flag with its disabled reason.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision { return Decision{Reason: reason} }

// Actions are the capability flags for one job, optionally narrowed to one execution.
type Actions struct {
	Start             Decision
	Stop              Decision
	ViewLogs          Decision
	ViewBuildLogs     Decision
	DownloadArtifacts Decision
}

// Get returns the decision for a single action.
func (a Actions) Get(action Action) Decision {
	switch action {
	case ActionStart:
		return a.Start
	case ActionStop:
		return a.Stop
	case ActionViewLogs:
		return a.ViewLogs
	case ActionViewBuildLogs:
		return a.ViewBuildLogs
	case ActionDownloadArtifacts:
		return a.DownloadArtifacts
	default:
		return deny(ReasonNoIdentifier)
	}
}

// Evaluate computes every flag for the job. target narrows row-level actions
// (stop, logs, artifacts) to a specific execution and may be nil.
func Evaluate(state domain.JobState, target *domain.Execution) Actions {
	return Actions{
		Start:             CanStart(state),
		Stop:              CanStop(state, target),
		ViewLogs:          CanViewLogs(state, target),
		ViewBuildLogs:     CanViewBuildLogs(state),
		DownloadArtifacts: CanDownloadArtifacts(state, target),
	}
}

// CanStart allows only run jobs with a finished build and nothing queued or running.
func CanStart(state domain.JobState) Decision {
	if state.Job.JobType != domain.JobTypeRun {
		return deny(ReasonUnsupportedType)
	}
	switch state.Job.BuildStatus {
	case domain.BuildStatusSuccess:
	case domain.BuildStatusFailed:
		return deny(ReasonBuildFailed)
	default:
		return deny(ReasonBuildNotFinished)
	}
	if state.HasActiveExecution() {
		return deny(ReasonAlreadyRunning)
	}
	return allow()
}

// CanStop needs a resolvable identifier and a queued or running status.
func CanStop(state domain.JobState, target *domain.Execution) Decision {
	if _, ok := StopTarget(state, target); !ok {
		return deny(ReasonNothingToStop)
	}
	if !statusOf(state, target).Active() {
		return deny(ReasonNotRunning)
	}
	return allow()
}

// CanViewLogs needs an execution or job identifier.
func CanViewLogs(state domain.JobState, target *domain.Execution) Decision {
	if _, ok := LogsTarget(state, target); !ok {
		return deny(ReasonNoIdentifier)
	}
	return allow()
}

// CanViewBuildLogs needs a job id and a build that has started.
func CanViewBuildLogs(state domain.JobState) Decision {
	if state.Job.JobID == "" {
		return deny(ReasonNoIdentifier)
	}
	if state.Job.BuildStatus == domain.BuildStatusPending || state.Job.BuildStatus == "" {
		return deny(ReasonNoBuildLogs)
	}
	return allow()
}

// CanDownloadArtifacts allows run jobs whose resolved execution completed.
func CanDownloadArtifacts(state domain.JobState, target *domain.Execution) Decision {
	if state.Job.JobType != domain.JobTypeRun {
		return deny(ReasonArtifactsRunOnly)
	}
	if _, ok := ArtifactsTarget(state, target); !ok {
		return deny(ReasonNoIdentifier)
	}
	exec, ok := resolveExecution(state, target)
	if !ok || exec.Status != domain.ExecutionStatusCompleted {
		return deny(ReasonArtifactsPending)
	}
	return allow()
}

// statusOf is the status the stop rule looks at: the targeted execution's own
// status, or the job's derived status.
func statusOf(state domain.JobState, target *domain.Execution) domain.ExecutionStatus {
	if target != nil {
		return target.Status
	}
	return state.CurrentStatus()
}

// resolveExecution picks the execution an artifact request refers to:
// the target, then the job's last execution, then the newest one.
func resolveExecution(state domain.JobState, target *domain.Execution) (domain.Execution, bool) {
	if target != nil {
		return *target, true
	}
	if e, ok := state.FindExecution(state.Job.LastExecutionID); ok {
		return e, true
	}
	return state.Latest()
}
