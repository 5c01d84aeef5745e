package warehouse

import "context"

// Row — одна строка результата: имя колонки → значение.
type Row = map[string]any

// Query — запрос к хранилищу.
type Query struct {
	// SQL — текст запроса с именованными параметрами вида :name.
	SQL string

	// Params — значения параметров.
	Params map[string]any

	// Database и Schema — контекст выполнения (USE SCHEMA database.schema).
	// Пустые значения оставляют контекст подключения по умолчанию.
	Database string
	Schema   string
}

// Querier выполняет запросы и возвращает строки целиком.
type Querier interface {
	Query(ctx context.Context, q Query) ([]Row, error)
}
