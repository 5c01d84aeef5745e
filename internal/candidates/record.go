package candidates

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/dataflows/internal/domain"
)

// Имена полей записи candidate set.
const (
	FieldID          = "id"
	FieldUnloadedAt  = "unloaded_at"
	FieldCorpusItems = "corpus_items"
)

// TimestampLayout — формат unloaded_at (ISO-8601, UTC, секунды).
const TimestampLayout = "2006-01-02T15:04:05Z"

// NewSet собирает набор с фиксированным ID и временем формирования at.
func NewSet(id uuid.UUID, items []domain.CorpusItem, at time.Time) domain.CandidateSet {
	if items == nil {
		items = []domain.CorpusItem{}
	}
	return domain.CandidateSet{
		ID:         id,
		UnloadedAt: at.UTC().Truncate(time.Second),
		Items:      items,
	}
}

// NewRecord превращает набор в запись feature store.
// Запись всегда содержит ровно три поля: id, unloaded_at, corpus_items.
func NewRecord(set domain.CandidateSet) domain.Record {
	return domain.Record{
		{Name: FieldID, Value: set.ID.String()},
		{Name: FieldUnloadedAt, Value: set.UnloadedAt.UTC().Format(TimestampLayout)},
		{Name: FieldCorpusItems, Value: EncodeItems(set.Items)},
	}
}

// ParseRecord восстанавливает набор из записи.
func ParseRecord(record domain.Record) (domain.CandidateSet, error) {
	if len(record) != 3 {
		return domain.CandidateSet{}, fmt.Errorf("%w: expected 3 fields, got %d", ErrMalformedRecord, len(record))
	}

	rawID, ok := record.Get(FieldID)
	if !ok {
		return domain.CandidateSet{}, fmt.Errorf("%w: no %s", ErrMalformedRecord, FieldID)
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return domain.CandidateSet{}, fmt.Errorf("%w: %s: %w", ErrMalformedRecord, FieldID, err)
	}

	rawAt, ok := record.Get(FieldUnloadedAt)
	if !ok {
		return domain.CandidateSet{}, fmt.Errorf("%w: no %s", ErrMalformedRecord, FieldUnloadedAt)
	}
	at, err := time.Parse(TimestampLayout, rawAt)
	if err != nil {
		return domain.CandidateSet{}, fmt.Errorf("%w: %s: %w", ErrMalformedRecord, FieldUnloadedAt, err)
	}

	rawItems, ok := record.Get(FieldCorpusItems)
	if !ok {
		return domain.CandidateSet{}, fmt.Errorf("%w: no %s", ErrMalformedRecord, FieldCorpusItems)
	}
	items, err := ParseItems(rawItems)
	if err != nil {
		return domain.CandidateSet{}, fmt.Errorf("%w: %s: %w", ErrMalformedRecord, FieldCorpusItems, err)
	}

	return domain.CandidateSet{ID: id, UnloadedAt: at, Items: items}, nil
}
