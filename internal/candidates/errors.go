package candidates

import "errors"

var (
	// ErrMissingColumn — в строке нет обязательной колонки ID или TOPIC.
	ErrMissingColumn = errors.New("row is missing required column")

	// ErrMalformedRecord — запись не содержит ожидаемых полей.
	ErrMalformedRecord = errors.New("malformed candidate set record")
)
