// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go          — Handler с DI (orchestrator, чтение runs, метрики, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - run_handler.go      — обработчики для /runs
//   - pipeline_handler.go — описание графа и healthz
//
// Синхронный запуск run отдаёт снимки потоком NDJSON по мере выполнения узлов.
package api
