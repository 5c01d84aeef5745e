package candidates

import "github.com/shaiso/dataflows/internal/domain"

// Report — итог валидации набора.
type Report struct {
	// Total — элементов на входе.
	Total int `json:"total"`

	// Kept — элементов, прошедших валидацию.
	Kept int `json:"kept"`

	// MissingID — отброшено из-за пустого ID.
	MissingID int `json:"missing_id"`

	// MissingTopic — отброшено из-за пустой темы.
	MissingTopic int `json:"missing_topic"`

	// Duplicates — отброшено повторов ID (остаётся первое вхождение).
	Duplicates int `json:"duplicates"`
}

// Dropped возвращает общее число отброшенных элементов.
func (r Report) Dropped() int {
	return r.Total - r.Kept
}

// Validate фильтрует набор и никогда не возвращает ошибку:
// пустой набор после фильтрации всё равно публикуется.
//
// Отбрасываются элементы с пустым ID или пустой темой и повторы ID.
// Порядок оставшихся элементов не меняется.
func Validate(items []domain.CorpusItem) ([]domain.CorpusItem, Report) {
	report := Report{Total: len(items)}
	kept := make([]domain.CorpusItem, 0, len(items))
	seen := make(map[string]bool, len(items))

	for _, item := range items {
		switch {
		case item.ID == "":
			report.MissingID++
		case item.Topic == "":
			report.MissingTopic++
		case seen[item.ID]:
			report.Duplicates++
		default:
			seen[item.ID] = true
			kept = append(kept, item)
		}
	}

	report.Kept = len(kept)
	return kept, report
}
