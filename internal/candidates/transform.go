package candidates

import (
	"fmt"

	"github.com/shaiso/dataflows/internal/domain"
)

// Имена колонок, из которых строится CorpusItem.
const (
	ColumnID    = "ID"
	ColumnTopic = "TOPIC"
)

// TransformRows превращает строки запроса в элементы набора.
//
// Из каждой строки берутся только ID и TOPIC, остальные колонки
// отбрасываются. Строка без одной из них — ошибка всего шага.
// Порядок строк сохраняется.
func TransformRows(rows []map[string]any) ([]domain.CorpusItem, error) {
	items := make([]domain.CorpusItem, 0, len(rows))

	for i, row := range rows {
		id, ok := row[ColumnID]
		if !ok {
			return nil, fmt.Errorf("row %d: %w: %s", i, ErrMissingColumn, ColumnID)
		}
		topic, ok := row[ColumnTopic]
		if !ok {
			return nil, fmt.Errorf("row %d: %w: %s", i, ErrMissingColumn, ColumnTopic)
		}

		items = append(items, domain.CorpusItem{
			ID:    stringValue(id),
			Topic: stringValue(topic),
		})
	}

	return items, nil
}

// stringValue приводит значение колонки к строке.
// NULL становится пустой строкой и отсекается валидацией.
func stringValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
