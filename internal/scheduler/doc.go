// Package scheduler запускает flows по их расписаниям.
//
// Расписание объявляется во flow (FlowSpec.Schedule) и при старте
// синхронизируется в таблицу schedules (Sync). Дальше каждый тик
// находит schedules с истекшим next_due_at и отправляет run в runner.
//
// Использование:
//
//	sched := scheduler.New(scheduler.Config{
//	    Schedules: scheduleRepo,
//	    Runner:    r,
//	    Logger:    logger,
//	})
//
//	if err := sched.Sync(ctx, registry); err != nil { ... }
//
//	// Вызывается каждый тик (обычно раз в секунду)
//	if err := sched.Tick(ctx); err != nil {
//	    logger.Error("scheduler tick failed", "error", err)
//	}
//
// Leader Election:
//
// Scheduler не реализует leader election самостоятельно.
// Это делается в main.go через pg_try_advisory_lock.
// Tick() вызывается только лидером.
package scheduler
