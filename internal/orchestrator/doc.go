// Package orchestrator реализует движок выполнения workflow instances.
//
// Engine отвечает за:
//   - Запуск instances по активной версии definition
//   - Активацию шагов и выполнение automatic шагов
//   - Обход переходов при завершении шага (условия + действия)
//   - Suspend / resume / cancel жизненный цикл instance
//   - Принудительное завершение wait шагов по таймауту
//   - Получение запросов из очередей RabbitMQ с polling fallback
//
// Все операции над одним instance сериализуются per-instance блокировкой:
// движок — единственный писатель состояния instance.
package orchestrator
