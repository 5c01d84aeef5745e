package runner

import "errors"

// Ошибки runner'а.
var (
	// ErrRunFailed — run завершился не успешно.
	ErrRunFailed = errors.New("run failed")

	// ErrRunNotPending — run не в статусе PENDING.
	ErrRunNotPending = errors.New("run is not in PENDING status")

	// ErrRunAlreadyActive — run уже выполняется.
	ErrRunAlreadyActive = errors.New("run already being processed")

	// ErrStepTimeout — попытка шага превысила таймаут.
	ErrStepTimeout = errors.New("step execution timeout")

	// ErrStepPanic — шаг запаниковал.
	ErrStepPanic = errors.New("step panicked")

	// ErrRunnerStopped — runner остановлен и не принимает новые runs.
	ErrRunnerStopped = errors.New("runner stopped")
)
