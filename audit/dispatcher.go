package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events when the buffer is full instead of
	// blocking the caller.
	DropIfFull bool
}

// Dispatcher forwards events to a sink from a dedicated goroutine. A nil
// Dispatcher is valid and emits nothing, so callers never branch on the
// audit configuration.
type Dispatcher struct {
	cfg       Config
	sink      Sink
	events    chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts the forwarding goroutine. Returns nil when
// auditing is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:    cfg,
		sink:   sink,
		events: make(chan Event, cfg.BufferSize),
		done:   make(chan struct{}),
	}

	d.wg.Add(1)
	go d.forward()

	return d
}

func (d *Dispatcher) forward() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.events:
			d.sink.Emit(context.Background(), event)
		case <-d.done:
			// Drain whatever is already buffered before exiting.
			for {
				select {
				case event := <-d.events:
					d.sink.Emit(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

// Emit queues an event for the sink. After Close it is a no-op.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.events <- event:
		case <-d.done:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.events <- event:
	case <-ctx.Done():
	case <-d.done:
	}
}

// Close stops the dispatcher after draining buffered events.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped reports how many events were discarded due to a full buffer.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
