package stepservo

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"
	"go.viam.com/utils"
)

// DefaultPollPeriod is how often a Poller services its updaters. It must stay below the update
// interval or steps get skipped.
const DefaultPollPeriod = 500 * time.Microsecond

// An Updater is anything that advances itself when polled, usually a Controller behind a lock.
type Updater interface {
	Update(ctx context.Context) error
}

// Poller calls Update on every registered Updater from a single background worker.
type Poller struct {
	mu       sync.Mutex
	updaters []Updater
	period   time.Duration
	logger   logging.Logger
	workers  *utils.StoppableWorkers
}

// NewPoller returns a stopped Poller. A zero period means DefaultPollPeriod.
func NewPoller(period time.Duration, logger logging.Logger) *Poller {
	if period <= 0 {
		period = DefaultPollPeriod
	}
	return &Poller{period: period, logger: logger}
}

// Add registers u. It is safe to call while the poller runs.
func (p *Poller) Add(u Updater) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updaters = append(p.updaters, u)
}

// Tick services every updater once, in registration order. A failing updater does not keep
// the others from running.
func (p *Poller) Tick(ctx context.Context) error {
	p.mu.Lock()
	updaters := make([]Updater, len(p.updaters))
	copy(updaters, p.updaters)
	p.mu.Unlock()

	var errs error
	for _, u := range updaters {
		errs = multierr.Combine(errs, u.Update(ctx))
	}
	return errs
}

// Start launches the background loop. Calling Start twice is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.workers != nil {
		return
	}
	p.workers = utils.NewBackgroundStoppableWorkers(p.loop)
}

func (p *Poller) loop(ctx context.Context) {
	for {
		if !utils.SelectContextOrWait(ctx, p.period) {
			return
		}
		if err := p.Tick(ctx); err != nil {
			p.logger.Warnw("servo update failed", "error", err)
		}
	}
}

// Close stops the background loop and waits for it to exit.
func (p *Poller) Close() {
	p.mu.Lock()
	workers := p.workers
	p.workers = nil
	p.mu.Unlock()
	if workers != nil {
		workers.Stop()
	}
}
