package web

import (
	"context"
	"time"

	"github.com/hpungsan/rutina/internal/db"
	"github.com/hpungsan/rutina/internal/logger"
	"github.com/hpungsan/rutina/internal/ops"
)

// ReminderPoller fires due reminders on a fixed interval. Firing means
// logging and rescheduling; delivery to a device is out of scope.
type ReminderPoller struct {
	kv       db.KV
	interval time.Duration
	log      *logger.Logger
	now      func() time.Time
}

// NewReminderPoller creates a poller. A non-positive interval falls back to
// 20 seconds.
func NewReminderPoller(kv db.KV, interval time.Duration, log *logger.Logger) *ReminderPoller {
	if interval <= 0 {
		interval = 20 * time.Second
	}
	return &ReminderPoller{kv: kv, interval: interval, log: log, now: time.Now}
}

// Run polls once immediately and then on every tick until ctx is done.
func (p *ReminderPoller) Run(ctx context.Context) {
	p.log.Debug("reminder poller started", "interval", p.interval.String())

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			p.log.Debug("reminder poller stopped")
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll fires every reminder due now and returns how many fired.
func (p *ReminderPoller) Poll(ctx context.Context) int {
	fired, err := ops.FireDueReminders(ctx, p.kv, p.now())
	if err != nil {
		if ctx.Err() == nil {
			p.log.Error("reminder poll failed", "error", err)
		}
		return 0
	}
	for _, r := range fired {
		p.log.Info("reminder due",
			"id", r.ID,
			"kind", string(r.Kind),
			"due", r.Datetime.Format(time.RFC3339),
			"repeat", string(r.Repeat),
		)
	}
	return len(fired)
}
