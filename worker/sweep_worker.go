package worker

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"

	"dripcrm/utils"
)

// SweepWorker drives the engine's periodic sweeps: due emails on a short
// interval, scheduled campaigns and due follow-ups on a longer one. The
// sweeps themselves are idempotent, so overlapping or missed ticks are
// harmless beyond the documented duplicate-send window.
type SweepWorker struct {
	Engine *utils.CampaignEngine
	Logger *logrus.Logger

	DueEmailInterval  time.Duration
	ScheduledInterval time.Duration
}

func NewSweepWorker(engine *utils.CampaignEngine, logger *logrus.Logger, dueEmailInterval, scheduledInterval time.Duration) *SweepWorker {
	if dueEmailInterval <= 0 {
		dueEmailInterval = time.Minute
	}
	if scheduledInterval <= 0 {
		scheduledInterval = 5 * time.Minute
	}
	return &SweepWorker{
		Engine:            engine,
		Logger:            logger,
		DueEmailInterval:  dueEmailInterval,
		ScheduledInterval: scheduledInterval,
	}
}

func (w *SweepWorker) Start(ctx context.Context) {
	w.Logger.Info("sweep worker started")

	dueTicker := time.NewTicker(w.DueEmailInterval)
	defer dueTicker.Stop()
	scheduledTicker := time.NewTicker(w.ScheduledInterval)
	defer scheduledTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Logger.Info("sweep worker shutting down...")
			return
		case <-dueTicker.C:
			w.runSweep("due_emails", w.Engine.ProcessDueEmails)
		case <-scheduledTicker.C:
			w.runSweep("scheduled_campaigns", w.Engine.ProcessScheduledCampaigns)
			w.runSweep("due_followups", w.Engine.ProcessScheduledFollowups)
		}
	}
}

// runSweep isolates a panicking sweep so one bad pass cannot take the
// worker down with it.
func (w *SweepWorker) runSweep(name string, sweep func()) {
	defer func() {
		if r := recover(); r != nil {
			w.Logger.WithField("sweep", name).Errorf("sweep panicked: %v", r)
			sentry.CurrentHub().Recover(r)
		}
	}()
	sweep()
}
