package hub

import "sync"

// Subscriber receives every value published on its topic.
type Subscriber[T any] interface {
	Deliver(value T) error
	Close() error
}

type Subscription[T any] struct {
	Topic      string
	Subscriber Subscriber[T]
}

type Hub[T any] struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription[T]]struct{}
}

func New[T any]() *Hub[T] {
	return &Hub[T]{topics: make(map[string]map[*Subscription[T]]struct{})}
}

func (h *Hub[T]) Register(sub *Subscription[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.topics[sub.Topic] == nil {
		h.topics[sub.Topic] = make(map[*Subscription[T]]struct{})
	}
	h.topics[sub.Topic][sub] = struct{}{}
}

// Unregister reports whether sub was still registered.
func (h *Hub[T]) Unregister(sub *Subscription[T]) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.topics[sub.Topic]
	if set == nil {
		return false
	}
	if _, ok := set[sub]; !ok {
		return false
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.topics, sub.Topic)
	}
	return true
}

func (h *Hub[T]) Count(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Publish delivers value to every subscriber of topic. Subscribers whose
// delivery fails are closed and dropped.
func (h *Hub[T]) Publish(topic string, value T) {
	h.mu.RLock()
	set := h.topics[topic]
	subs := make([]*Subscription[T], 0, len(set))
	for s := range set {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	var failed []*Subscription[T]
	for _, s := range subs {
		if err := s.Subscriber.Deliver(value); err != nil {
			failed = append(failed, s)
		}
	}
	for _, s := range failed {
		if h.Unregister(s) {
			_ = s.Subscriber.Close()
		}
	}
}

// Funcs adapts plain callbacks to a Subscriber.
type Funcs[T any] struct {
	OnDeliver func(T) error
	OnClose   func() error
}

func (f Funcs[T]) Deliver(value T) error {
	if f.OnDeliver == nil {
		return nil
	}
	return f.OnDeliver(value)
}

func (f Funcs[T]) Close() error {
	if f.OnClose == nil {
		return nil
	}
	return f.OnClose()
}
