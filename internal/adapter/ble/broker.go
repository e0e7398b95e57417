package ble

import (
	"context"
	"sync"

	"bluetray/internal/adapter"
)

// broker fans scan callbacks out to event subscribers. Subscriber channels
// are closed only by their own forwarding goroutine, so a publish racing an
// unsubscribe never sends on a closed channel.
type broker struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed chan struct{}
	once   sync.Once
}

type subscriber struct {
	in  chan adapter.Event
	ctx context.Context
}

func newBroker() *broker {
	return &broker{
		subs:   make(map[*subscriber]struct{}),
		closed: make(chan struct{}),
	}
}

func (b *broker) subscribe(ctx context.Context) <-chan adapter.Event {
	s := &subscriber{in: make(chan adapter.Event, 16), ctx: ctx}
	out := make(chan adapter.Event)

	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go func() {
		defer close(out)
		defer func() {
			b.mu.Lock()
			delete(b.subs, s)
			b.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.closed:
				return
			case ev := <-s.in:
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				case <-b.closed:
					return
				}
			}
		}
	}()
	return out
}

// publish blocks until every live subscriber has taken ev.
func (b *broker) publish(ev adapter.Event) {
	b.mu.Lock()
	subs := make([]*subscriber, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		select {
		case s.in <- ev:
		case <-s.ctx.Done():
		case <-b.closed:
			return
		}
	}
}

func (b *broker) close() {
	b.once.Do(func() { close(b.closed) })
}

func (b *broker) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
