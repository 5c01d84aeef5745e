package featurestore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerfeaturestoreruntime"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerfeaturestoreruntime/types"

	"github.com/shaiso/dataflows/internal/domain"
)

// PutRecordAPI — часть клиента SageMaker Feature Store Runtime, которая нужна Writer'у.
type PutRecordAPI interface {
	PutRecord(ctx context.Context, params *sagemakerfeaturestoreruntime.PutRecordInput, optFns ...func(*sagemakerfeaturestoreruntime.Options)) (*sagemakerfeaturestoreruntime.PutRecordOutput, error)
}

// SageMaker — Writer для SageMaker Feature Store.
type SageMaker struct {
	client PutRecordAPI
	logger *slog.Logger
}

// NewSageMaker создаёт Writer поверх клиента feature store runtime.
func NewSageMaker(client PutRecordAPI, logger *slog.Logger) *SageMaker {
	return &SageMaker{client: client, logger: logger}
}

// PutRecord записывает запись в feature group.
// Все значения передаются строками (ValueAsString).
func (s *SageMaker) PutRecord(ctx context.Context, featureGroup string, record domain.Record) error {
	if featureGroup == "" {
		return ErrEmptyFeatureGroup
	}

	values := make([]types.FeatureValue, len(record))
	for i, v := range record {
		values[i] = types.FeatureValue{
			FeatureName:   aws.String(v.Name),
			ValueAsString: aws.String(v.Value),
		}
	}

	_, err := s.client.PutRecord(ctx, &sagemakerfeaturestoreruntime.PutRecordInput{
		FeatureGroupName: aws.String(featureGroup),
		Record:           values,
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, featureGroup, err)
	}

	s.logger.Info("feature record written",
		"feature_group", featureGroup,
		"fields", len(record),
	)

	return nil
}
