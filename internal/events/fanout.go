package events

import (
	"context"
	"errors"
	"sync"
)

// Fanout publishes each event to every wrapped publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, stream string, event Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, stream, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LocalBus is an in-process publisher and subscriber, used when no Redis is
// configured.
type LocalBus struct {
	mu       sync.RWMutex
	handlers map[string][]func(Event)
}

func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[string][]func(Event))}
}

func (b *LocalBus) Publish(ctx context.Context, stream string, event Event) error {
	b.mu.RLock()
	hs := b.handlers[stream]
	b.mu.RUnlock()
	for _, h := range hs {
		h(event)
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context, stream string, handler func(Event)) error {
	b.mu.Lock()
	b.handlers[stream] = append(b.handlers[stream], handler)
	b.mu.Unlock()
	return nil
}
