// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация событий
//   - consumer.go   — потребление сообщений из очередей
//   - handlers.go   — обработчики сообщений dataflows
//
// Типы сообщений:
//   - flow.trigger   — запрос на запуск flow (внешние системы, `run enqueue`)
//   - run.completed  — run завершился (SUCCEEDED или FAILED)
//
// Exchanges:
//   - dataflows.flows — запросы на запуск flows
//   - dataflows.runs  — события runs
//   - dataflows.dlq   — dead letter queue
package mq
