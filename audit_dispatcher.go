package userauth

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// auditDispatcher decouples request paths from sink latency. A single
// goroutine owns the sink, so sinks need not be safe for concurrent use.
type auditDispatcher struct {
	sink        AuditSink
	queue       chan AuditEvent
	stop        chan struct{}
	dropIfFull  bool
	sinkTimeout time.Duration

	wg       sync.WaitGroup
	dropped  atomic.Uint64
	stopOnce sync.Once

	// mu is held shared for a whole Emit, so Close cannot close stop while
	// a send is in flight.
	mu     sync.RWMutex
	closed bool
}

// newAuditDispatcher returns nil when auditing is disabled; every method is
// nil-safe.
func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}

	d := &auditDispatcher{
		sink:        sink,
		queue:       make(chan AuditEvent, size),
		stop:        make(chan struct{}),
		dropIfFull:  cfg.DropIfFull,
		sinkTimeout: cfg.SinkTimeout,
	}
	d.wg.Go(d.loop)
	return d
}

func (d *auditDispatcher) loop() {
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

func (d *auditDispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		default:
			return
		}
	}
}

func (d *auditDispatcher) deliver(event AuditEvent) {
	ctx := context.Background()
	if d.sinkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.sinkTimeout)
		defer cancel()
	}
	d.sink.Emit(ctx, event)
}

// Emit queues event for the sink goroutine. With dropIfFull a full queue
// drops the event and bumps the dropped counter instead of blocking.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

// Close stops accepting events and waits for queued ones to reach the sink.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		close(d.stop)
		d.wg.Wait()
	})
}

func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
