// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений
//   - consumer.go   — потребление сообщений
//
// Типы сообщений:
//   - run.pending   — run ожидает выполнения (API, Scheduler → Orchestrator)
//   - run.snapshot  — узел выполнен, Record изменился
//   - run.finished  — run завершён
//
// Exchanges:
//   - synapse.runs  — события runs
//   - synapse.dlq   — dead letter queue
package mq
