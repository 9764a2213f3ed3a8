package schedule

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/feral-kitty/fifi/delivery"
)

// Deliverer sends one rendered message to one destination channel.
type Deliverer interface {
	Deliver(ctx context.Context, channelID int64, msg *delivery.Message) error
}

// After this many consecutive failed persists the dispatcher stops rather
// than keep firing jobs against state it cannot save.
const maxPersistFailures = 3

// DispatcherConfig tunes the tick loop and the per-destination delivery
// policy.
type DispatcherConfig struct {
	Interval         time.Duration // how often to scan for due jobs
	DeliveryTimeout  time.Duration // per delivery attempt
	DeliveryAttempts int           // bounded retries per destination
	DeliveryBackoff  time.Duration // base wait between attempts
}

// DefaultDispatcherConfig returns the production defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Interval:         30 * time.Second,
		DeliveryTimeout:  10 * time.Second,
		DeliveryAttempts: 3,
		DeliveryBackoff:  2 * time.Second,
	}
}

// Dispatcher polls the job store on a fixed interval and fires due jobs.
// One tick is one critical section over the store and at most one persist.
type Dispatcher struct {
	store     *Store
	deliverer Deliverer
	cfg       DispatcherConfig
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	logger    *zap.SugaredLogger

	mu              sync.Mutex
	lastTickAt      time.Time
	ticksSinceStart int64
	persistFailures int
}

// NewDispatcher creates a dispatcher over the given store and deliverer.
func NewDispatcher(store *Store, deliverer Deliverer, cfg DispatcherConfig, log *zap.SugaredLogger) *Dispatcher {
	return NewDispatcherWithContext(context.Background(), store, deliverer, cfg, log)
}

// NewDispatcherWithContext creates a dispatcher with a parent context.
func NewDispatcherWithContext(ctx context.Context, store *Store, deliverer Deliverer, cfg DispatcherConfig, log *zap.SugaredLogger) *Dispatcher {
	dctx, cancel := context.WithCancel(ctx)
	return &Dispatcher{
		store:     store,
		deliverer: deliverer,
		cfg:       cfg,
		ctx:       dctx,
		cancel:    cancel,
		logger:    log,
	}
}

// Start begins the tick loop.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.run()
	d.logger.Infow("Scheduler dispatcher started", "interval", d.cfg.Interval)
}

// Stop cancels the loop and waits for an in-flight tick to finish. The last
// completed persist is the recovery point; an interrupted tick may re-fire
// remaining deliveries on restart.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
	d.logger.Infow("Scheduler dispatcher stopped")
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case tickTime := <-ticker.C:
			d.mu.Lock()
			d.lastTickAt = tickTime
			d.ticksSinceStart++
			tick := d.ticksSinceStart
			d.mu.Unlock()

			if fatal := d.Tick(tickTime.UTC()); fatal {
				d.logger.Errorw("Dispatcher halting: job state cannot be persisted",
					"tick", tick,
					"consecutive_failures", maxPersistFailures)
				return
			}
		}
	}
}

// Tick runs one poll-and-dispatch pass with now as the single time snapshot
// for every due-comparison. Reports true when the loop must halt because
// state repeatedly failed to persist.
func (d *Dispatcher) Tick(now time.Time) bool {
	err := d.store.Batch(func(jobs []*Job) bool {
		changed := false
		for _, job := range jobs {
			select {
			case <-d.ctx.Done():
				return changed
			default:
			}

			if !job.Active || job.NextRun == nil || job.NextRun.After(now) {
				continue
			}
			d.fire(job, now)
			changed = true
		}
		return changed
	})

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.persistFailures++
		d.logger.Warnw("Tick persist failed",
			"error", err,
			"consecutive_failures", d.persistFailures)
		return d.persistFailures >= maxPersistFailures
	}
	d.persistFailures = 0
	return false
}

// fire renders and delivers one due job, then advances its schedule. Every
// destination is attempted regardless of sibling failures, and the schedule
// advances regardless of delivery outcomes.
func (d *Dispatcher) fire(job *Job, now time.Time) {
	msg := RenderMessage(job, now)

	for _, channelID := range job.Channels {
		if err := d.deliverWithRetry(channelID, msg); err != nil {
			d.logger.Warnw("Delivery failed",
				"job_id", job.ID,
				"job_name", job.Name,
				"channel_id", channelID,
				"error", err)
		}
	}

	fired := now
	job.LastRun = &fired
	if job.Recurrence.Type == RecurrenceOnce {
		job.Active = false
		job.NextRun = nil
	} else {
		job.NextRun = ComputeNextRun(job, now)
	}

	d.logger.Infow("Job dispatched",
		"job_id", job.ID,
		"job_name", job.Name,
		"count", len(job.Channels),
		"next_run", job.NextRun)
}

// deliverWithRetry wraps one destination delivery in the bounded
// retry/timeout policy.
func (d *Dispatcher) deliverWithRetry(channelID int64, msg *delivery.Message) error {
	attempts := d.cfg.DeliveryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		ctx := d.ctx
		cancel := context.CancelFunc(func() {})
		if d.cfg.DeliveryTimeout > 0 {
			ctx, cancel = context.WithTimeout(d.ctx, d.cfg.DeliveryTimeout)
		}
		err := d.deliverer.Deliver(ctx, channelID, msg)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt < attempts {
			select {
			case <-d.ctx.Done():
				return lastErr
			case <-time.After(d.cfg.DeliveryBackoff * time.Duration(attempt)):
			}
		}
	}
	return lastErr
}
