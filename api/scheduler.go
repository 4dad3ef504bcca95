/*
scheduler.go - Daily digest scheduler

PURPOSE:
  Fires the aggregation pipeline once per calendar day at a fixed
  local time and exposes a manual trigger for replay/backfill.

DESIGN:
  - robfig/cron owns the wall-clock firing; the schedule is
    configuration ("0 18 * * *"), not logic.
  - The scheduler is an explicit component with Start/Stop owned by
    main, not a package-level side effect.
  - Now is injectable so tests can pin the target day instead of
    waiting for a real tick.
  - A tick aggregates the current day (requests starting today).

USAGE:
  sched := NewDigestScheduler(pipeline, "0 18 * * *")
  if err := sched.Start(); err != nil { ... }
  defer sched.Stop()

SEE ALSO:
  - digest/pipeline.go: the run itself
  - handlers.go: RunDigest (manual trigger with explicit date)
*/
package api

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/campuskit/absence-engine/absence"
	"github.com/campuskit/absence-engine/digest"
)

// DigestRunner is what the scheduler fires. *digest.Pipeline satisfies
// it; tests substitute a recorder.
type DigestRunner interface {
	Run(ctx context.Context, day absence.Date) (*digest.RunSummary, error)
}

// DigestScheduler fires the aggregation pipeline on a cron schedule.
type DigestScheduler struct {
	Pipeline DigestRunner
	Spec     string

	// Now is injectable for deterministic tests.
	Now func() time.Time

	cron *cron.Cron
}

func NewDigestScheduler(pipeline DigestRunner, spec string) *DigestScheduler {
	return &DigestScheduler{
		Pipeline: pipeline,
		Spec:     spec,
		Now:      time.Now,
	}
}

// Start registers the cron entry and begins firing. Returns an error
// for a malformed schedule spec.
func (ds *DigestScheduler) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(ds.Spec, ds.tick); err != nil {
		return err
	}
	ds.cron = c
	c.Start()
	log.Printf("[Scheduler] started with schedule %q", ds.Spec)
	return nil
}

// Stop halts firing and waits for a running tick to finish.
func (ds *DigestScheduler) Stop() {
	if ds.cron == nil {
		return
	}
	<-ds.cron.Stop().Done()
	log.Println("[Scheduler] stopped")
}

// tick runs the pipeline for the current day.
func (ds *DigestScheduler) tick() {
	ds.RunNow(context.Background())
}

// RunNow aggregates the day containing the injected clock's now.
func (ds *DigestScheduler) RunNow(ctx context.Context) {
	day := absence.DateOf(ds.Now())
	if _, err := ds.Pipeline.Run(ctx, day); err != nil {
		log.Printf("[Scheduler] digest run for %s failed: %v", day, err)
	}
}
