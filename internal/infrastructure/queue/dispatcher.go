package queue

import (
	"context"
	"crypto/rand"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/sirpyerre/account-api/internal/api/metrics"
	"github.com/sirpyerre/account-api/internal/core/domain"
	"github.com/sirpyerre/account-api/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	writeTimeout   = 5 * time.Second
)

// Dispatcher routes audit events to a fixed set of workers using consistent
// hashing on the username, guaranteeing per-account event ordering.
type Dispatcher struct {
	workers []chan domain.AuditEvent
	repo    ports.AuditRepository
	log     zerolog.Logger
	wg      sync.WaitGroup

	// mu guards stopped; Record holds it shared so Stop never closes a
	// channel under a concurrent send.
	mu      sync.RWMutex
	stopped bool

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, repo ports.AuditRepository, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan domain.AuditEvent, numWorkers),
		repo:    repo,
		log:     log,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.AuditEvent, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. They run until Stop is called and
// their queues are empty.
func (d *Dispatcher) Start() {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(i, ch)
	}
}

// Stop refuses further events and lets the workers drain what is queued.
// It is safe to call more than once.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	for _, ch := range d.workers {
		close(ch)
	}
}

// Wait blocks until every worker has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Shutdown stops the dispatcher and waits for the queues to drain, giving up
// when ctx is done. Events still queued at that point are lost.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.Stop()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		pending := 0
		for _, ch := range d.workers {
			pending += len(ch)
		}
		d.log.Warn().Int("pending", pending).Msg("audit drain interrupted")
		return ctx.Err()
	}
}

// Record enqueues an event on the worker responsible for its username. It
// never blocks: when that worker's queue is full the event is dropped.
func (d *Dispatcher) Record(event domain.AuditEvent) {
	if event.ID == "" {
		event.ID = d.newID(event.OccurredAt)
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		metrics.AuditEventsTotal.WithLabelValues("dropped").Inc()
		d.log.Warn().
			Str("type", string(event.Type)).
			Str("username", event.Username).
			Msg("audit dispatcher stopped, event dropped")
		return
	}

	idx := d.shardIndex(event.Username)
	select {
	case d.workers[idx] <- event:
		metrics.AuditQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	default:
		metrics.AuditEventsTotal.WithLabelValues("dropped").Inc()
		d.log.Warn().
			Str("type", string(event.Type)).
			Str("username", event.Username).
			Int("worker_id", idx).
			Msg("audit queue full, event dropped")
	}
}

func (d *Dispatcher) newID(at time.Time) string {
	if at.IsZero() {
		at = time.Now()
	}
	d.entropyMu.Lock()
	defer d.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), d.entropy).String()
}

// shardIndex maps a username deterministically to a worker index.
func (d *Dispatcher) shardIndex(username string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(username))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(id int, ch <-chan domain.AuditEvent) {
	defer d.wg.Done()
	label := strconv.Itoa(id)
	for event := range ch {
		metrics.AuditQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
		d.write(id, event)
	}
}

// write is detached from any request or shutdown context; writeTimeout bounds it.
func (d *Dispatcher) write(id int, event domain.AuditEvent) {
	wctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := d.repo.InsertEvent(wctx, &event); err != nil {
		metrics.AuditEventsTotal.WithLabelValues("failed").Inc()
		d.log.Error().Err(err).
			Str("type", string(event.Type)).
			Str("username", event.Username).
			Int("worker_id", id).
			Msg("audit event write failed")
		return
	}
	metrics.AuditEventsTotal.WithLabelValues("written").Inc()
}
