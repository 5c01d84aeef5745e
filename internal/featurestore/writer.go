package featurestore

import (
	"context"

	"github.com/shaiso/dataflows/internal/domain"
)

// Writer записывает одну запись в feature group (upsert по идентификатору записи).
type Writer interface {
	PutRecord(ctx context.Context, featureGroup string, record domain.Record) error
}
