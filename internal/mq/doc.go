// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - instance.start  — запрос на запуск workflow instance
//   - step.timeout    — истёк таймаут wait шага
//   - workflow.event  — событие audit trail (fan-out)
//
// Exchanges:
//   - caseflow.instances — запуски instances
//   - caseflow.timeouts  — таймауты wait шагов
//   - caseflow.events    — fan-out событий журнала
//   - caseflow.dlq       — dead letter queue
package mq
