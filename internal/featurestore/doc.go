// Package featurestore записывает записи candidate sets в feature store.
//
// Включает:
//   - sagemaker.go — Writer поверх SageMaker Feature Store Runtime
//   - archive.go   — декоратор, сохраняющий копию каждой записи в S3
//   - aws.go       — сборка клиентов из конфигурации
package featurestore
