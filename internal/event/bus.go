// Package event provides an in-memory implementation of the core.EventBus interface.
package event

import (
	"context"
	"sync"

	"github.com/HerbHall/tpminsight/pkg/core"
	"go.uber.org/zap"
)

// Compile-time interface guard.
var _ core.EventBus = (*Bus)(nil)

// Bus is an in-memory event bus implementing core.EventBus.
// Publish is synchronous (handlers run in the caller's goroutine).
// PublishAsync dispatches handlers in separate goroutines; Wait blocks until
// every asynchronous delivery has returned.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]handlerEntry // topic -> handlers
	allSubs  []handlerEntry            // handlers subscribed to all topics
	nextID   uint64
	logger   *zap.Logger

	inflight sync.WaitGroup
}

type handlerEntry struct {
	id      uint64
	handler core.EventHandler
}

// NewBus creates a new in-memory event bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]handlerEntry),
		logger:   logger,
	}
}

// Publish dispatches an event synchronously to all matching handlers.
func (b *Bus) Publish(ctx context.Context, event core.Event) error {
	for _, h := range b.matching(event.Topic) {
		b.safeCall(ctx, h, event)
	}
	return nil
}

// PublishAsync dispatches an event asynchronously to all matching handlers.
func (b *Bus) PublishAsync(ctx context.Context, event core.Event) {
	for _, h := range b.matching(event.Topic) {
		b.inflight.Add(1)
		go func(h core.EventHandler) {
			defer b.inflight.Done()
			b.safeCall(ctx, h, event)
		}(h)
	}
}

// Wait blocks until all handlers started by PublishAsync have returned.
func (b *Bus) Wait() {
	b.inflight.Wait()
}

// Subscribe registers a handler for a specific topic. Returns an unsubscribe function.
func (b *Bus) Subscribe(topic string, handler core.EventHandler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[topic] = append(b.handlers[topic], handlerEntry{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.handlers[topic] = without(b.handlers[topic], id)
	}
}

// SubscribeAll registers a handler for all topics. Returns an unsubscribe function.
func (b *Bus) SubscribeAll(handler core.EventHandler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.allSubs = append(b.allSubs, handlerEntry{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.allSubs = without(b.allSubs, id)
	}
}

// matching copies the handlers for a topic so delivery runs without the lock.
func (b *Bus) matching(topic string) []core.EventHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]core.EventHandler, 0, len(b.handlers[topic])+len(b.allSubs))
	for _, e := range b.handlers[topic] {
		out = append(out, e.handler)
	}
	for _, e := range b.allSubs {
		out = append(out, e.handler)
	}
	return out
}

func without(entries []handlerEntry, id uint64) []handlerEntry {
	for i, e := range entries {
		if e.id == id {
			return append(entries[:i:i], entries[i+1:]...)
		}
	}
	return entries
}

func (b *Bus) safeCall(ctx context.Context, handler core.EventHandler, event core.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("topic", event.Topic),
				zap.String("source", event.Source),
				zap.Any("panic", r),
			)
		}
	}()
	handler(ctx, event)
}
