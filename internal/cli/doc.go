// Package cli реализует инструмент командной строки Synapse.
//
// # Обзор
//
// CLI работает в двух режимах:
//   - локально: команда run собирает pipeline в процессе и показывает
//     каждый снимок (построчно или в интерактивном dashboard);
//   - через HTTP API: команды runs и pipeline --remote.
//
// Для удалённых команд CLI не импортирует internal/api: типы ответов
// продублированы в client.go. Локальный режим использует pipeline и
// dashboard напрямую.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Synapse API. Инкапсулирует HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse),
// чтение NDJSON потока синхронного run и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	runs, err := client.ListRuns(cli.ListRunsOpts{Status: "FAILED"})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) и кадры dashboard — по умолчанию
//   - JSON (снимки — NDJSON) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: synapse run --json | jq .node_id
//
// ## Commands
//
//   - run: локальный запуск pipeline (--tui для dashboard)
//   - runs: list, active, start, show, snapshots
//   - pipeline: схема графа и таблица переходов
//
// Каждая группа создаётся через фабричную функцию (NewRunsCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
