package service

// User-facing messages.
const (
	MsgJobNotFound     = "Задача не найдена."
	MsgSessionExpired  = "Сессия истекла. Войдите заново."
	MsgTooManyFiles    = "Можно выбрать не более одного файла."
	MsgStartSuccess    = "Задача запущена."
	MsgStartFailed     = "Ошибка при запуске задачи."
	MsgStopSuccess     = "Задача остановлена."
	MsgStopFailed      = "Ошибка при остановке задачи."
	MsgLogsEmpty       = "Логи отсутствуют."
	MsgLogsFailed      = "Не удалось загрузить логи."
	MsgBuildLogsFailed = "Не удалось загрузить логи сборки."
	MsgDownloadStarted = "Скачивание артефактов началось..."
	MsgDownloadDone    = "Артефакты сохранены: %s"
	MsgDownloadFailed  = "Ошибка при скачивании артефактов."

	MsgScheduleCreated      = "Расписание создано."
	MsgScheduleUpdated      = "Расписание обновлено."
	MsgScheduleDeleted      = "Расписание удалено."
	MsgScheduleCreateFailed = "Ошибка при создании расписания."
	MsgScheduleUpdateFailed = "Ошибка при обновлении расписания."
	MsgScheduleDeleteFailed = "Ошибка при удалении расписания."
	MsgScheduleIDRequired   = "Не выбрано расписание."

	MsgJobsFailed       = "Не удалось загрузить список задач."
	MsgExecutionsFailed = "Не удалось загрузить выполнения."
	MsgSchedulesFailed  = "Не удалось загрузить расписания."
	MsgConfigFailed     = "Не удалось загрузить конфигурацию."

	LogsTitle      = "Логи"
	BuildLogsTitle = "Логи сборки"
)
