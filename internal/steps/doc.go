// Package steps содержит агентов pipeline.
//
// # Обзор
//
// Каждый агент — узел графа. Агент:
//   - Читает нужные поля Record (отсутствующие поля допустимы)
//   - Записывает свой артефакт и status
//   - Дописывает хотя бы одну строку в logs
//
// Агенты детерминированы и не хранят состояния между вызовами:
// один экземпляр обслуживает любое количество runs.
//
// # Интерфейс Step
//
//	type Step interface {
//	    ID() string
//	    Name() string
//	    Handle(ctx context.Context, rec domain.Record) (domain.Record, error)
//	}
//
// # Registry
//
// Registry хранит агентов по ID:
//
//	registry := steps.DefaultRegistry(steps.Options{RetryCeiling: 2})
//	step, err := registry.Get(steps.StepSentinel)
//
// pipeline собирает граф только из зарегистрированных агентов.
//
// # Агенты
//
//   - ado_connector        — нормализует user story
//   - synapse_orchestrator — план сборки (plan)
//   - meta_refiner         — уточнённая история (refined_story)
//   - db_architect         — схема PostgreSQL (db_schema)
//   - backend_coder        — FastAPI backend (backend_code)
//   - frontend_coder       — React форма (frontend_code)
//   - legacy_agent         — заметки по интеграции (legacy_analysis)
//   - sentinel             — проверки backend (test_results), решение о повторе
//   - deployment_engine    — итог (deployment_status, outcome)
//
// backend_coder пропускает health endpoint, пока retry_count меньше
// simulate_failures. Так демо воспроизводит провал проверок и повтор.
//
// # Шаблоны
//
// Артефакты рендерятся из text/template файлов в templates/ (embed),
// см. Render.
//
// # Файлы пакета
//
//   - step.go     — интерфейс Step, Options, ошибки
//   - registry.go — Registry
//   - intake.go   — ado_connector, synapse_orchestrator, meta_refiner
//   - codegen.go  — db_architect, backend_coder, frontend_coder, legacy_agent
//   - sentinel.go — sentinel, проверки и SentinelDecision
//   - deploy.go   — deployment_engine
//   - template.go — загрузка и рендеринг шаблонов
package steps
