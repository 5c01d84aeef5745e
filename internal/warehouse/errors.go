package warehouse

import "errors"

var (
	// ErrQueryFailed — запрос не выполнился в хранилище.
	ErrQueryFailed = errors.New("warehouse query failed")

	// ErrMissingParam — параметры запроса не удалось связать
	// (например, у параметра нет значения).
	ErrMissingParam = errors.New("missing query parameter")

	// ErrInvalidIdentifier — недопустимое имя базы или схемы.
	ErrInvalidIdentifier = errors.New("invalid identifier")
)
