package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/shaiso/dataflows/internal/domain"
)

func TestNextDue(t *testing.T) {
	from := time.Date(2024, 3, 1, 12, 10, 0, 0, time.UTC)

	tests := []struct {
		name  string
		sched domain.Schedule
		want  time.Time
	}{
		{
			name:  "interval",
			sched: domain.Schedule{IntervalSec: 1800},
			want:  time.Date(2024, 3, 1, 12, 40, 0, 0, time.UTC),
		},
		{
			name:  "cron every 30 minutes",
			sched: domain.Schedule{CronExpr: "*/30 * * * *"},
			want:  time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
		},
		{
			name:  "cron takes precedence over interval",
			sched: domain.Schedule{CronExpr: "0 9 * * *", IntervalSec: 60},
			want:  time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "cron in timezone",
			sched: domain.Schedule{CronExpr: "0 9 * * *", Timezone: "Europe/Berlin"},
			// 09:00 CET = 08:00 UTC
			want: time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC),
		},
		{
			name:  "unknown timezone falls back to UTC",
			sched: domain.Schedule{CronExpr: "0 9 * * *", Timezone: "Mars/Olympus"},
			want:  time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextDue(&tt.sched, from)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
			if got.Location() != time.UTC {
				t.Errorf("result should be in UTC, got %v", got.Location())
			}
		})
	}
}

func TestNextDue_Invalid(t *testing.T) {
	if _, err := NextDue(&domain.Schedule{}, time.Now()); !errors.Is(err, ErrInvalidSchedule) {
		t.Errorf("expected ErrInvalidSchedule, got %v", err)
	}
	if _, err := NextDue(&domain.Schedule{CronExpr: "bad"}, time.Now()); err == nil {
		t.Error("expected parse error")
	}
}
