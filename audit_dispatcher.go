package goGuard

import (
	"context"
	"sync"
	"sync/atomic"
)

// retainedAuditEvents record account state changes. They wait for buffer
// space even when DropIfFull is set.
var retainedAuditEvents = map[string]struct{}{
	auditEventAccountLocked:   {},
	auditEventAccountUnlocked: {},
	auditEventPasswordReset:   {},
}

// queuedAudit pairs an event with the values of the request that raised it.
// The context is detached from the request's cancellation so a sink still
// sees the request ID and trace span after the handler has returned.
type queuedAudit struct {
	ctx   context.Context
	event AuditEvent
}

// auditDispatcher moves audit events off the login and password paths onto a
// single worker behind a bounded queue.
type auditDispatcher struct {
	sink       AuditSink
	dropIfFull bool
	queue      chan queuedAudit
	done       chan struct{}
	wg         sync.WaitGroup
	dropped    atomic.Uint64
	closed     atomic.Bool
	closeOnce  sync.Once
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		queue:      make(chan queuedAudit, max(cfg.BufferSize, 1)),
		done:       make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *auditDispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case q := <-d.queue:
			d.sink.Emit(q.ctx, q.event)
		case <-d.done:
			// Flush whatever was accepted before Close.
			for {
				select {
				case q := <-d.queue:
					d.sink.Emit(q.ctx, q.event)
				default:
					return
				}
			}
		}
	}
}

// Emit queues event. With DropIfFull a full queue drops the event and counts
// it, except for account state changes, which wait like every event does
// without DropIfFull: until there is room, ctx ends or the dispatcher closes.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	q := queuedAudit{ctx: context.WithoutCancel(ctx), event: event}

	if _, retained := retainedAuditEvents[event.EventType]; d.dropIfFull && !retained {
		select {
		case d.queue <- q:
		case <-d.done:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- q:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.done:
	}
}

// Close stops accepting events, flushes the queue and waits for the worker.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped counts events lost to a full queue or an abandoned request.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
