// Package reconcile schedules the fixed-interval loops that repair drift
// between cached state and what is actually live on Discord.
package reconcile

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Runner owns a cron scheduler of named @every jobs. Every job body is
// wrapped so that neither an error nor a panic can kill the scheduler; a
// failing tick is logged and the next tick still fires.
type Runner struct {
	cron *cron.Cron
}

// NewRunner creates an idle runner. Jobs added before Start begin ticking
// once Start is called.
func NewRunner() *Runner {
	return &Runner{cron: cron.New()}
}

// Add registers fn to run every interval under the given job name.
func (r *Runner) Add(name string, every time.Duration, fn func() error) error {
	spec := fmt.Sprintf("@every %s", every)
	_, err := r.cron.AddFunc(spec, func() {
		Guard(name, fn)
	})
	if err != nil {
		return fmt.Errorf("could not schedule %s job: %w", name, err)
	}
	return nil
}

// Start begins ticking registered jobs.
func (r *Runner) Start() {
	r.cron.Start()
}

// Stop halts the scheduler and waits for running jobs to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

// Guard runs fn, turning panics into log lines and logging errors without
// propagating them. One bad entity must never halt a reconciliation pass
// for the rest.
func Guard(name string, fn func() error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("job", name).Interface("panic", rec).Msg("reconcile job panicked")
		}
	}()
	if err := fn(); err != nil {
		log.Error().Str("job", name).Err(err).Msg("reconcile job failed")
	}
}
