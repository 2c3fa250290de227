package watcher

import (
	"context"
	"sync"
	"time"
)

// Debouncer groups rapid file changes together. Each path appears once per
// batch, in the order it was first seen, with its latest event type. A batch
// the consumer is not ready for stays pending and absorbs later events.
type Debouncer struct {
	delay   time.Duration
	events  chan ChangeEvent
	output  chan []ChangeEvent
	timer   *time.Timer
	pending []ChangeEvent
	index   map[string]int
	stopped bool
	mutex   sync.Mutex
}

// NewDebouncer creates a Debouncer that flushes delay after the last event
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:  delay,
		events: make(chan ChangeEvent, 256),
		output: make(chan []ChangeEvent, 16),
		index:  make(map[string]int),
	}
}

// Output delivers debounced batches
func (d *Debouncer) Output() <-chan []ChangeEvent {
	return d.output
}

// Add queues an event without blocking. It reports false when the queue is
// full and the event was dropped.
func (d *Debouncer) Add(event ChangeEvent) bool {
	select {
	case d.events <- event:
		return true
	default:
		return false
	}
}

// Run moves queued events into the pending batch until ctx is done.
func (d *Debouncer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.Stop()
			return
		case event := <-d.events:
			d.addEvent(event)
		}
	}
}

// Stop cancels a pending flush
func (d *Debouncer) Stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}

func (d *Debouncer) addEvent(event ChangeEvent) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if i, ok := d.index[event.Path]; ok {
		d.pending[i].Type = event.Type
	} else {
		d.index[event.Path] = len(d.pending)
		d.pending = append(d.pending, event)
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

func (d *Debouncer) flush() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	events := make([]ChangeEvent, len(d.pending))
	copy(events, d.pending)

	select {
	case d.output <- events:
		d.pending = d.pending[:0]
		d.index = make(map[string]int)
	default:
		// consumer is behind; retry with whatever arrives meanwhile
		d.timer = time.AfterFunc(d.delay, d.flush)
	}
}
