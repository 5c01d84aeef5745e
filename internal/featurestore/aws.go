package featurestore

import (
	"context"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerfeaturestoreruntime"

	"github.com/shaiso/dataflows/internal/config"
)

// NewFromConfig собирает Writer из конфигурации: SageMaker Feature Store,
// и поверх него S3 архив, если задан FEATURE_ARCHIVE_BUCKET.
// Учётные данные берутся из стандартной цепочки AWS SDK.
func NewFromConfig(ctx context.Context, cfg config.FeatureStore, logger *slog.Logger) (Writer, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var writer Writer = NewSageMaker(sagemakerfeaturestoreruntime.NewFromConfig(awsCfg), logger)

	if cfg.ArchiveBucket != "" {
		writer = NewArchive(writer, s3.NewFromConfig(awsCfg), cfg.ArchiveBucket, cfg.ArchivePrefix, logger)
		logger.Info("feature record archive enabled", "bucket", cfg.ArchiveBucket, "prefix", cfg.ArchivePrefix)
	}

	return writer, nil
}
