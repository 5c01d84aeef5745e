package domain

import (
	"time"

	"github.com/google/uuid"
)

// CorpusItem — кандидат в рекомендации: внешний ID материала и его тема.
//
// JSON-ключи совпадают с колонками хранилища, потребитель
// feature group ожидает именно их.
type CorpusItem struct {
	ID    string `json:"ID"`
	Topic string `json:"TOPIC"`
}

// FeatureValue — одно именованное значение записи feature store.
type FeatureValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Record — упорядоченный набор значений для одной записи feature group.
type Record []FeatureValue

// Get возвращает значение по имени.
func (r Record) Get(name string) (string, bool) {
	for _, v := range r {
		if v.Name == name {
			return v.Value, true
		}
	}
	return "", false
}

// Names возвращает имена полей в порядке следования.
func (r Record) Names() []string {
	names := make([]string, len(r))
	for i, v := range r {
		names[i] = v.Name
	}
	return names
}

// CandidateSet — набор кандидатов, опубликованный одним запуском flow.
type CandidateSet struct {
	// ID — фиксированный идентификатор набора (один на назначение).
	ID uuid.UUID `json:"id"`

	// UnloadedAt — время формирования набора (UTC).
	UnloadedAt time.Time `json:"unloaded_at"`

	// Items — кандидаты в порядке, возвращённом запросом.
	Items []CorpusItem `json:"corpus_items"`
}

// RunHandle — ссылка на run, запущенный во внешнем планировщике.
type RunHandle struct {
	RunID    uuid.UUID `json:"run_id"`
	FlowName string    `json:"flow_name"`
	Project  string    `json:"project,omitempty"`
}

// RunResult — финальное состояние run, которого дождался вызывающий.
type RunResult struct {
	Handle RunHandle `json:"handle"`
	Status RunStatus `json:"status"`
	Error  string    `json:"error,omitempty"`
}

// Succeeded возвращает true, если run завершился успешно.
func (r RunResult) Succeeded() bool {
	return r.Status == RunStatusSucceeded
}
