package featurestore

import "errors"

var (
	// ErrWriteFailed — feature store не принял запись.
	ErrWriteFailed = errors.New("feature store write failed")

	// ErrEmptyFeatureGroup — не указано имя feature group.
	ErrEmptyFeatureGroup = errors.New("feature group name is empty")
)
