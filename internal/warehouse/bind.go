package warehouse

import (
	"fmt"
	"regexp"

	"github.com/jmoiron/sqlx"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// BindNamed заменяет параметры :name на позиционные ? и возвращает
// аргументы в порядке появления. Один параметр может встречаться
// несколько раз.
//
// Литеральное двоеточие записывается удвоенным (::), в том числе внутри
// строковых литералов. Для приведения типов запросы используют CAST.
func BindNamed(query string, params map[string]any) (string, []any, error) {
	if params == nil {
		params = map[string]any{}
	}
	text, args, err := sqlx.Named(query, params)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrMissingParam, err)
	}
	return text, args, nil
}

// QualifiedSchema возвращает "database.schema" после проверки обоих имён.
func QualifiedSchema(database, schema string) (string, error) {
	for _, id := range []string{database, schema} {
		if !identifierRe.MatchString(id) {
			return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
		}
	}
	return database + "." + schema, nil
}
