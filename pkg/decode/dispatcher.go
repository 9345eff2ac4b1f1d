package decode

import (
	"context"
	"os"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("dispatcher is closed")

// Progress is sent after every finished job.
type Progress struct {
	Name      string
	Dest      string
	Done      int
	Failed    int
	Submitted int
	Err       error
}

// Options sizes the worker pool. Zero values pick the defaults: one worker
// per CPU and a queue twice as deep as the pool.
type Options struct {
	Workers   int
	QueueSize int
}

// Dispatcher decodes jobs on a fixed pool of workers. Submit blocks once the
// queue is full. A failed job never stops the others and is never retried.
type Dispatcher struct {
	decoder Decoder
	jobs    chan Job
	workers int

	pending sync.WaitGroup
	running sync.WaitGroup

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once

	statsMu   sync.Mutex
	submitted int
	done      int
	failures  []*DecodeError

	progressChan chan Progress
}

// NewDispatcher starts the worker pool. Jobs run with a context detached
// from ctx's cancellation so an aborted run still drains in Wait.
func NewDispatcher(ctx context.Context, dec Decoder, opts Options) *Dispatcher {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	queue := opts.QueueSize
	if queue <= 0 {
		queue = 2 * workers
	}

	d := &Dispatcher{
		decoder:      dec,
		jobs:         make(chan Job, queue),
		workers:      workers,
		progressChan: make(chan Progress, 100),
	}

	jobCtx := context.WithoutCancel(ctx)
	d.running.Add(workers)
	for i := 0; i < workers; i++ {
		go d.work(jobCtx)
	}
	return d
}

// Workers returns the pool size.
func (d *Dispatcher) Workers() int {
	return d.workers
}

// Decoder returns the primitive the pool runs.
func (d *Dispatcher) Decoder() Decoder {
	return d.decoder
}

// GetProgressChannel returns the channel receiving per-job updates. Updates
// are dropped when nobody reads them.
func (d *Dispatcher) GetProgressChannel() <-chan Progress {
	return d.progressChan
}

// Submit queues a job, blocking while the queue is full.
func (d *Dispatcher) Submit(ctx context.Context, job Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	d.pending.Add(1)
	d.statsMu.Lock()
	d.submitted++
	d.statsMu.Unlock()

	select {
	case d.jobs <- job:
		return nil
	case <-ctx.Done():
		d.statsMu.Lock()
		d.submitted--
		d.statsMu.Unlock()
		d.pending.Done()
		return errors.WithStack(ctx.Err())
	}
}

// Wait blocks until every submitted job has finished.
func (d *Dispatcher) Wait() {
	d.pending.Wait()
}

// Close drains the queue and stops the workers. It is safe to call twice.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.jobs)
		d.mu.Unlock()

		d.running.Wait()
		close(d.progressChan)
	})
}

// Failed reports whether any job failed so far.
func (d *Dispatcher) Failed() bool {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	return len(d.failures) > 0
}

// Failures returns the failed jobs in completion order.
func (d *Dispatcher) Failures() []*DecodeError {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	out := make([]*DecodeError, len(d.failures))
	copy(out, d.failures)
	return out
}

// Stats returns the number of submitted, successful and failed jobs.
func (d *Dispatcher) Stats() (submitted, succeeded, failed int) {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	return d.submitted, d.done, len(d.failures)
}

func (d *Dispatcher) work(ctx context.Context) {
	defer d.running.Done()
	for job := range d.jobs {
		d.process(ctx, job)
		d.pending.Done()
	}
}

func (d *Dispatcher) process(ctx context.Context, job Job) {
	log := logger.FromContext(ctx)

	err := d.decode(ctx, job)
	if err != nil {
		// the decoder should not leave output behind, but make sure
		_ = os.Remove(job.Dest + d.decoder.Ext())
		log.Err(err).Error("decode failed", logger.Data{"name": job.Name, "dest": job.Dest})
	} else {
		log.Debug("decoded", logger.Data{"name": job.Name, "dest": job.Dest + d.decoder.Ext()})
	}

	d.statsMu.Lock()
	if err != nil {
		d.failures = append(d.failures, &DecodeError{Name: job.Name, Dest: job.Dest, Err: err})
	} else {
		d.done++
	}
	p := Progress{
		Name:      job.Name,
		Dest:      job.Dest,
		Done:      d.done,
		Failed:    len(d.failures),
		Submitted: d.submitted,
		Err:       err,
	}
	d.statsMu.Unlock()

	d.sendProgress(p)
}

func (d *Dispatcher) decode(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("decoder panic: %v", r)
		}
	}()
	return d.decoder.Decode(ctx, job.Payload, job.Dest)
}

// sendProgress sends a progress update (non-blocking)
func (d *Dispatcher) sendProgress(p Progress) {
	select {
	case d.progressChan <- p:
	default:
	}
}
