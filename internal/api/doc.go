// Package api содержит HTTP API dataflows.
//
// Структура:
//   - handler.go          — Handler с зависимостями (реестр flows, runner, хранилища)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - flow_handler.go     — обработчики для /flows
//   - run_handler.go      — обработчики для /runs
//   - schedule_handler.go — обработчики для /schedules
//
// Через этот API flows запускают друг друга (client.Client реализует
// flows.Trigger поверх POST /flows/{name}/runs и GET /runs/{id}).
package api
