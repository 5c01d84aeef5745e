package featurestore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerfeaturestoreruntime"
	"github.com/aws/smithy-go"

	"github.com/shaiso/dataflows/internal/domain"
	"github.com/shaiso/dataflows/internal/telemetry"
)

// fakeRuntime — фейковый клиент feature store runtime.
type fakeRuntime struct {
	inputs []*sagemakerfeaturestoreruntime.PutRecordInput
	err    error
}

func (f *fakeRuntime) PutRecord(_ context.Context, in *sagemakerfeaturestoreruntime.PutRecordInput, _ ...func(*sagemakerfeaturestoreruntime.Options)) (*sagemakerfeaturestoreruntime.PutRecordOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sagemakerfeaturestoreruntime.PutRecordOutput{}, nil
}

// fakeS3 — фейковый S3 клиент.
type fakeS3 struct {
	keys   []string
	bodies [][]byte
	err    error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.keys = append(f.keys, aws.ToString(in.Key))
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

// fakeWriter — Writer, запоминающий вызовы.
type fakeWriter struct {
	calls int
	err   error
}

func (f *fakeWriter) PutRecord(context.Context, string, domain.Record) error {
	f.calls++
	return f.err
}

var testRecord = domain.Record{
	{Name: "id", Value: "deea0f06-9dc9-44a5-b864-fea4a4d0beb7"},
	{Name: "unloaded_at", Value: "2024-05-01T10:00:00Z"},
	{Name: "corpus_items", Value: `[{"ID": "abc123", "TOPIC": "HEALTH"}]`},
}

func TestSageMaker_PutRecord(t *testing.T) {
	rt := &fakeRuntime{}
	w := NewSageMaker(rt, telemetry.Discard())

	if err := w.PutRecord(context.Background(), "dev-corpus-candidate-sets-v1", testRecord); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(rt.inputs) != 1 {
		t.Fatalf("expected 1 call, got %d", len(rt.inputs))
	}
	in := rt.inputs[0]
	if aws.ToString(in.FeatureGroupName) != "dev-corpus-candidate-sets-v1" {
		t.Errorf("unexpected feature group: %s", aws.ToString(in.FeatureGroupName))
	}
	if len(in.Record) != 3 {
		t.Fatalf("expected 3 feature values, got %d", len(in.Record))
	}
	for i, want := range testRecord {
		got := in.Record[i]
		if aws.ToString(got.FeatureName) != want.Name || aws.ToString(got.ValueAsString) != want.Value {
			t.Errorf("value %d: expected %s=%s, got %s=%s", i, want.Name, want.Value,
				aws.ToString(got.FeatureName), aws.ToString(got.ValueAsString))
		}
	}
}

func TestSageMaker_Errors(t *testing.T) {
	cause := &smithy.GenericAPIError{Code: "ThrottlingException", Message: "rate exceeded"}
	w := NewSageMaker(&fakeRuntime{err: cause}, telemetry.Discard())

	err := w.PutRecord(context.Background(), "g", testRecord)
	if !errors.Is(err, ErrWriteFailed) {
		t.Errorf("expected ErrWriteFailed, got %v", err)
	}
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) || apiErr.ErrorCode() != "ThrottlingException" {
		t.Errorf("expected SDK API error in chain, got %v", err)
	}
	if err := w.PutRecord(context.Background(), "", testRecord); !errors.Is(err, ErrEmptyFeatureGroup) {
		t.Errorf("expected ErrEmptyFeatureGroup, got %v", err)
	}
}

func TestArchive_PutRecord(t *testing.T) {
	next := &fakeWriter{}
	store := &fakeS3{}
	a := NewArchive(next, store, "bucket", "candidate-sets", telemetry.Discard())

	if err := a.PutRecord(context.Background(), "dev-corpus-candidate-sets-v1", testRecord); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if next.calls != 1 {
		t.Errorf("expected 1 write, got %d", next.calls)
	}
	wantKey := "candidate-sets/dev-corpus-candidate-sets-v1/deea0f06-9dc9-44a5-b864-fea4a4d0beb7/2024-05-01T10:00:00Z.json"
	if len(store.keys) != 1 || store.keys[0] != wantKey {
		t.Fatalf("expected key %s, got %v", wantKey, store.keys)
	}

	var archived domain.Record
	if err := json.Unmarshal(store.bodies[0], &archived); err != nil {
		t.Fatalf("archived body is not json: %v", err)
	}
	if len(archived) != 3 {
		t.Errorf("expected 3 archived fields, got %d", len(archived))
	}
}

func TestArchive_WriteFailureSkipsArchive(t *testing.T) {
	next := &fakeWriter{err: ErrWriteFailed}
	store := &fakeS3{}
	a := NewArchive(next, store, "bucket", "", telemetry.Discard())

	err := a.PutRecord(context.Background(), "g", testRecord)
	if !errors.Is(err, ErrWriteFailed) {
		t.Errorf("expected ErrWriteFailed, got %v", err)
	}
	if len(store.keys) != 0 {
		t.Error("failed write should not be archived")
	}
}

func TestArchive_ArchiveFailureIsNotFatal(t *testing.T) {
	next := &fakeWriter{}
	a := NewArchive(next, &fakeS3{err: errors.New("access denied")}, "bucket", "", telemetry.Discard())

	if err := a.PutRecord(context.Background(), "g", testRecord); err != nil {
		t.Errorf("archive failure should not fail the write, got %v", err)
	}
}
