package worker

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewSweepWorkerDefaultsIntervals(t *testing.T) {
	w := NewSweepWorker(nil, logrus.New(), 0, -time.Second)
	assert.Equal(t, time.Minute, w.DueEmailInterval)
	assert.Equal(t, 5*time.Minute, w.ScheduledInterval)

	w = NewSweepWorker(nil, logrus.New(), 10*time.Second, time.Minute)
	assert.Equal(t, 10*time.Second, w.DueEmailInterval)
	assert.Equal(t, time.Minute, w.ScheduledInterval)
}

func TestSweepWorkerStopsOnContextCancel(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	w := NewSweepWorker(nil, logger, time.Hour, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}

func TestRunSweepRecoversPanic(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	w := NewSweepWorker(nil, logger, time.Minute, time.Minute)

	assert.NotPanics(t, func() {
		w.runSweep("explosive", func() { panic("boom") })
	})
}
