// Package api реализует HTTP API для управления workflow definitions,
// instances, журналом событий и schedules.
//
// Структура:
//   - handler.go            — Handler с зависимостями
//   - routes.go             — регистрация маршрутов
//   - definition_handler.go — endpoints для definitions
//   - instance_handler.go   — endpoints для instances
//   - event_handler.go      — endpoints для журнала событий
//   - schedule_handler.go   — endpoints для schedules
//   - dto.go                — request/response структуры
//   - response.go           — helpers для JSON ответов
//   - middleware.go         — logging и recovery middleware
package api
