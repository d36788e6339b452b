package cache

import (
	"context"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
)

const defaultEventBuffer = 32

// Event announces that partitions of one kind changed.
type Event struct {
	Kind      entities.Kind
	Keys      []Key
	Revision  uint64
	Timestamp time.Time
}

// Dispatcher fans change events out to per-kind subscribers. Publishing never
// blocks: a subscriber with a full buffer misses the event.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[entities.Kind]map[int64]*subscriber
	nextID      int64
	bufferSize  int
	closed      bool
}

type subscriber struct {
	id     int64
	stream chan Event
}

// NewDispatcher creates a dispatcher with the default buffer size.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subscribers: make(map[entities.Kind]map[int64]*subscriber),
		bufferSize:  defaultEventBuffer,
	}
}

// Subscribe registers for events of kind until ctx ends or cleanup runs.
// The stream is closed on unsubscribe.
func (d *Dispatcher) Subscribe(ctx context.Context, kind entities.Kind) (<-chan Event, func()) {
	sub := &subscriber{stream: make(chan Event, d.bufferSize)}
	if kind == "" || !d.register(kind, sub) {
		close(sub.stream)
		return sub.stream, func() {}
	}

	var once sync.Once
	cleanup := func() {
		once.Do(func() { d.unregister(kind, sub.id) })
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return sub.stream, cleanup
}

// Publish delivers event to the subscribers of its kind.
func (d *Dispatcher) Publish(event Event) {
	if event.Kind == "" {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, sub := range d.subscribers[event.Kind] {
		select {
		case sub.stream <- event:
		default:
		}
	}
}

// Close unregisters and closes every subscriber stream.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	for kind, subs := range d.subscribers {
		for _, sub := range subs {
			close(sub.stream)
		}
		delete(d.subscribers, kind)
	}
}

func (d *Dispatcher) register(kind entities.Kind, sub *subscriber) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	d.nextID++
	sub.id = d.nextID
	if _, ok := d.subscribers[kind]; !ok {
		d.subscribers[kind] = make(map[int64]*subscriber)
	}
	d.subscribers[kind][sub.id] = sub
	return true
}

func (d *Dispatcher) unregister(kind entities.Kind, subscriberID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	subs := d.subscribers[kind]
	if subs == nil {
		return
	}
	if sub, ok := subs[subscriberID]; ok {
		close(sub.stream)
		delete(subs, subscriberID)
	}
	if len(subs) == 0 {
		delete(d.subscribers, kind)
	}
}
