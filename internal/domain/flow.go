package domain

// FlowSpec — декларативное описание flow: шаги и зависимости между ними.
//
// FlowSpec не содержит кода: реализация каждого шага регистрируется
// отдельно (см. пакет flows), а здесь только граф и настройки исполнения.
type FlowSpec struct {
	// Name — уникальное имя flow (например, "DBT Orchestration Flow").
	// По нему flow запускается через API, CLI и расписание.
	Name string `json:"name"`

	// Description — описание назначения flow.
	Description string `json:"description,omitempty"`

	// Schedule — расписание автоматического запуска.
	// Nil означает, что каденс задаётся снаружи (вручную или другим flow).
	Schedule *ScheduleDef `json:"schedule,omitempty"`

	// Steps — список шагов для выполнения.
	Steps []StepDef `json:"steps"`
}

// ScheduleDef — расписание, объявленное в самом flow.
type ScheduleDef struct {
	// IntervalSec — интервал между запусками в секундах.
	IntervalSec int `json:"interval_sec,omitempty"`

	// CronExpr — cron-выражение. Если задано, IntervalSec игнорируется.
	CronExpr string `json:"cron_expr,omitempty"`
}

// StepDef — определение шага в flow.
type StepDef struct {
	// ID — уникальный идентификатор шага в рамках flow.
	// Используется в depends_on и для доступа к результатам шага.
	ID string `json:"id"`

	// Name — человекочитаемое имя шага.
	Name string `json:"name,omitempty"`

	// Type — тип шага: "query", "transform", "validate", "record",
	// "load", "trigger", "wait".
	Type string `json:"type"`

	// DependsOn — список ID шагов, от которых зависит этот шаг.
	// Шаг начнёт выполнение только после успешного завершения всех зависимостей.
	DependsOn []string `json:"depends_on,omitempty"`

	// Retry — политика повторных попыток для этого шага.
	// Nil означает одну попытку.
	Retry *RetryPolicy `json:"retry,omitempty"`

	// TimeoutSec — таймаут одной попытки в секундах. 0 — без таймаута.
	TimeoutSec int `json:"timeout_sec,omitempty"`
}

// RetryPolicy — политика повторных попыток.
type RetryPolicy struct {
	// MaxAttempts — максимальное количество попыток (включая первую).
	MaxAttempts int `json:"max_attempts,omitempty"`

	// Backoff — стратегия задержки: "fixed", "exponential".
	Backoff string `json:"backoff,omitempty"`

	// InitialDelayMs — начальная задержка в миллисекундах.
	InitialDelayMs int `json:"initial_delay_ms,omitempty"`

	// MaxDelayMs — максимальная задержка в миллисекундах.
	MaxDelayMs int `json:"max_delay_ms,omitempty"`
}

// StepByID возвращает определение шага по ID.
func (s FlowSpec) StepByID(id string) (StepDef, bool) {
	for _, step := range s.Steps {
		if step.ID == id {
			return step, true
		}
	}
	return StepDef{}, false
}
