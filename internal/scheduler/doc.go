// Package scheduler периодически ставит в очередь демо run.
//
// Расписание задаётся cron-выражением (SCHEDULER_CRON). Когда наступает
// время запуска, Scheduler вызывает Enqueuer (orchestrator.Service), который
// создаёт run в статусе PENDING и публикует run.pending.
//
// Структура:
//   - scheduler.go — Scheduler (Tick, Run)
//   - cron.go      — парсинг cron-выражений и вычисление следующего времени
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Enqueuer: service,
//	    CronExpr: "*/15 * * * *",
//	    Leader:   repo.NewAdvisoryLock(pool, repo.SchedulerLockKey), // опционально
//	    Logger:   logger,
//	})
//	go sched.Run(ctx, 10*time.Second)
//
// Leader Election:
//
// При нескольких экземплярах runs создаёт только лидер. Лидерство —
// pg_try_advisory_lock на выделенном соединении (repo.AdvisoryLock).
// Не-лидеры пропускают запуск, но сдвигают время следующего.
package scheduler
