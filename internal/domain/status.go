package domain

// RunStatus — статус run.
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
//
// CANCELLED выставляет только внешний планировщик: в нём живут под-flows
// оркестратора, и отменённый под-flow валит ожидающий шаг так же, как FAILED.
// Незавершённый run брошенной реплики переводится в FAILED лидером scheduler.
type RunStatus string

const (
	RunStatusPending   RunStatus = "PENDING"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusSucceeded RunStatus = "SUCCEEDED"
	RunStatusFailed    RunStatus = "FAILED"
	RunStatusCancelled RunStatus = "CANCELLED"
)

// IsTerminal возвращает true для финальных статусов.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// TaskStatus — статус task (одной попытки шага).
//
//	QUEUED → RUNNING → SUCCEEDED
//	                 ↘ FAILED
//
// Между повторами task возвращается в QUEUED; FAILED — только после
// последней попытки или отмены run.
type TaskStatus string

const (
	TaskStatusQueued    TaskStatus = "QUEUED"
	TaskStatusRunning   TaskStatus = "RUNNING"
	TaskStatusSucceeded TaskStatus = "SUCCEEDED"
	TaskStatusFailed    TaskStatus = "FAILED"
)
