package flows

import "errors"

var (
	// ErrFlowNotFound — flow с таким именем не зарегистрирован.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrDuplicateFlow — flow с таким именем уже зарегистрирован.
	ErrDuplicateFlow = errors.New("flow already registered")

	// ErrMissingTask — для шага нет реализации (или реализация без шага).
	ErrMissingTask = errors.New("step has no task")

	// ErrMissingOutput — зависимый шаг не вернул результат.
	ErrMissingOutput = errors.New("missing step output")

	// ErrOutputType — результат шага другого типа.
	ErrOutputType = errors.New("unexpected step output type")

	// ErrNotConfigured — flow собран без нужной зависимости
	// (хранилище, feature store или планировщик).
	ErrNotConfigured = errors.New("flow dependency is not configured")

	// ErrUpstreamRunFailed — запущенный flow завершился не успешно.
	ErrUpstreamRunFailed = errors.New("upstream flow run did not succeed")
)
