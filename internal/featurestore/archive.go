package featurestore

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/shaiso/dataflows/internal/domain"
)

// PutObjectAPI — часть S3 клиента, которая нужна архиву.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archive — декоратор Writer'а: после успешной записи кладёт JSON-копию
// записи в S3. Ошибка архива логируется и не влияет на результат.
//
// Ключ: {prefix}/{feature_group}/{id}/{unloaded_at}.json
type Archive struct {
	next   Writer
	client PutObjectAPI
	bucket string
	prefix string
	logger *slog.Logger
}

// NewArchive оборачивает next архивом в bucket.
func NewArchive(next Writer, client PutObjectAPI, bucket, prefix string, logger *slog.Logger) *Archive {
	return &Archive{
		next:   next,
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger,
	}
}

// PutRecord записывает запись и архивирует её копию.
func (a *Archive) PutRecord(ctx context.Context, featureGroup string, record domain.Record) error {
	if err := a.next.PutRecord(ctx, featureGroup, record); err != nil {
		return err
	}

	key := a.key(featureGroup, record)
	if err := a.put(ctx, key, record); err != nil {
		a.logger.Warn("failed to archive feature record",
			"bucket", a.bucket,
			"key", key,
			"error", err,
		)
		return nil
	}

	a.logger.Debug("feature record archived", "bucket", a.bucket, "key", key)
	return nil
}

// key строит ключ объекта для записи.
func (a *Archive) key(featureGroup string, record domain.Record) string {
	id, ok := record.Get("id")
	if !ok || id == "" {
		id = "unknown"
	}
	at, ok := record.Get("unloaded_at")
	if !ok || at == "" {
		at = time.Now().UTC().Format("2006-01-02T15:04:05Z")
	}
	return path.Join(a.prefix, featureGroup, id, at+".json")
}

func (a *Archive) put(ctx context.Context, key string, record domain.Record) error {
	body, err := json.Marshal(record)
	if err != nil {
		return err
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	return err
}
