package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/scoutme/scoutme-api/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// Dispatcher delivers fire-and-forget emails on a fixed set of workers.
// Jobs are sharded by recipient, so mail to one address is sent in order.
type Dispatcher struct {
	workers  []chan ports.MailJob
	notifier ports.Notifier
	log      zerolog.Logger
	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool

	// observe, when set, is called after every delivery attempt.
	observe func(kind ports.MailKind, err error)
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, notifier ports.Notifier, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:  make([]chan ports.MailJob, numWorkers),
		notifier: notifier,
		log:      log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.MailJob, channelBuffer)
	}
	return d
}

// OnDelivery registers a hook called after each attempt. Must be set before Start.
func (d *Dispatcher) OnDelivery(fn func(kind ports.MailKind, err error)) {
	d.observe = fn
}

// Start launches all worker goroutines. Workers exit when ctx is cancelled or
// after Stop has drained their channel.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue hands job to the worker responsible for its recipient. It never
// blocks: when the worker's buffer is full or the dispatcher is stopped the
// job is dropped and false is returned.
func (d *Dispatcher) Enqueue(job ports.MailJob) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return false
	}
	select {
	case d.workers[d.shardIndex(job.To)] <- job:
		return true
	default:
		d.log.Warn().Str("kind", string(job.Kind)).Msg("mail queue full, job dropped")
		return false
	}
}

// Stop closes the queues and waits for workers to drain pending jobs.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, ch := range d.workers {
			close(ch)
		}
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// shardIndex maps a recipient deterministically to a worker index.
func (d *Dispatcher) shardIndex(to string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(to))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.MailJob) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-ch:
			if !ok {
				return
			}
			d.deliver(ctx, id, job)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, id int, job ports.MailJob) {
	var err error
	switch job.Kind {
	case ports.MailVerification:
		err = d.notifier.SendVerificationEmail(ctx, job.To, job.Token)
	case ports.MailPasswordReset:
		err = d.notifier.SendPasswordResetEmail(ctx, job.To, job.Token)
	default:
		d.log.Error().Str("kind", string(job.Kind)).Msg("unknown mail kind")
		return
	}

	if err != nil {
		d.log.Error().Err(err).
			Str("kind", string(job.Kind)).
			Str("worker_id", strconv.Itoa(id)).
			Msg("mail delivery failed")
	}
	if d.observe != nil {
		d.observe(job.Kind, err)
	}
}
