package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/dataflows/internal/domain"
)

// ErrInvalidSchedule — у schedule нет ни cron, ни интервала.
var ErrInvalidSchedule = errors.New("schedule has neither cron_expr nor interval_sec")

// cronParser — парсер cron-выражений (5 полей).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextDue возвращает время запуска после from.
//
// Cron вычисляется в часовом поясе schedule (UTC, если пояс
// не задан или неизвестен). Результат всегда в UTC.
func NextDue(sched *domain.Schedule, from time.Time) (time.Time, error) {
	switch {
	case sched.IsCron():
		expr, err := cronParser.Parse(sched.CronExpr)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse cron expression %q: %w", sched.CronExpr, err)
		}
		return expr.Next(from.In(location(sched.Timezone))).UTC(), nil

	case sched.IsInterval():
		return from.Add(time.Duration(sched.IntervalSec) * time.Second).UTC(), nil
	}

	return time.Time{}, ErrInvalidSchedule
}

func location(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}
