// Package scheduler runs background jobs that keep scheduled messages moving
package scheduler

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	businessflow "github.com/amirphl/future-messages/business_flow"
	"github.com/amirphl/future-messages/utils"
	"github.com/robfig/cron/v3"
	"gopkg.in/natefinch/lumberjack.v2"
)

// maxBatchesPerRun bounds how much one tick may drain
const maxBatchesPerRun = 20

// StuckRequeuer re-publishes messages stuck in processing
type StuckRequeuer interface {
	RequeueStuck(ctx context.Context, olderThan time.Time, maxAttempts, batchSize int) (*businessflow.ReconcileResult, error)
}

// ReconcileOptions configures the reconciliation sweep
type ReconcileOptions struct {
	Schedule    string
	Grace       time.Duration
	BatchSize   int
	MaxAttempts int
	LogFile     string
}

// ReconciliationScheduler periodically re-publishes messages whose publish
// failed at intake
type ReconciliationScheduler struct {
	requeuer StuckRequeuer
	opts     ReconcileOptions
	schedule cron.Schedule
	logger   *log.Logger
	logFile  *lumberjack.Logger
	now      func() time.Time
}

// NewReconciliationScheduler validates the schedule and prepares the sweep logger
func NewReconciliationScheduler(requeuer StuckRequeuer, opts ReconcileOptions) (*ReconciliationScheduler, error) {
	if opts.Schedule == "" {
		opts.Schedule = "@every 1m"
	}
	schedule, err := cron.ParseStandard(opts.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", opts.Schedule, err)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = utils.MaxMessagePageSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 10
	}
	if opts.Grace < 0 {
		opts.Grace = 0
	}

	s := &ReconciliationScheduler{
		requeuer: requeuer,
		opts:     opts,
		schedule: schedule,
		now:      utils.UTCNow,
	}
	s.initLogger()

	return s, nil
}

// initLogger writes to stdout and, when configured, a rotated file
func (s *ReconciliationScheduler) initLogger() {
	var out io.Writer = os.Stdout
	if s.opts.LogFile != "" {
		s.logFile = &lumberjack.Logger{
			Filename:   s.opts.LogFile,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     14,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, s.logFile)
	}
	s.logger = log.New(out, "reconcile ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
}

// Start launches the cron loop and returns a stop function that waits for a
// running sweep to finish
func (s *ReconciliationScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	cronLogger := cron.VerbosePrintfLogger(s.logger)
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	c.Schedule(s.schedule, cron.FuncJob(func() { s.RunOnce(ctx) }))
	c.Start()
	s.logger.Printf("started: schedule=%q grace=%s batch=%d max_attempts=%d",
		s.opts.Schedule, s.opts.Grace, s.opts.BatchSize, s.opts.MaxAttempts)

	return func() {
		cancel()
		<-c.Stop().Done()
		s.logger.Println("stopped")
		if s.logFile != nil {
			_ = s.logFile.Close()
		}
	}
}

// RunOnce drains stuck processing messages older than the grace period
func (s *ReconciliationScheduler) RunOnce(ctx context.Context) {
	cutoff := s.now().Add(-s.opts.Grace)
	var total businessflow.ReconcileResult

	for i := 0; i < maxBatchesPerRun; i++ {
		if ctx.Err() != nil {
			return
		}
		result, err := s.requeuer.RequeueStuck(ctx, cutoff, s.opts.MaxAttempts, s.opts.BatchSize)
		if err != nil {
			s.logger.Printf("sweep failed: %v", err)
			if result == nil {
				return
			}
		}

		total.Scanned += result.Scanned
		total.Requeued += result.Requeued
		total.Failed += result.Failed
		total.Exhausted = result.Exhausted

		// Failed records are listed again on the next batch; stop instead of spinning
		if result.Scanned < s.opts.BatchSize || result.Requeued == 0 {
			break
		}
	}

	if total.Scanned > 0 {
		s.logger.Printf("sweep: scanned=%d requeued=%d failed=%d", total.Scanned, total.Requeued, total.Failed)
	}
	if total.Exhausted > 0 {
		s.logger.Printf("sweep: %d messages exhausted %d publish attempts and remain in processing",
			total.Exhausted, s.opts.MaxAttempts)
	}
}
