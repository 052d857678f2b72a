package pubsub

import (
	"sync"

	"github.com/google/uuid"
)

type topic[T any] struct {
	subscribers map[string]func(msg T)

	lock sync.Mutex
}

func newTopic[T any]() *topic[T] {
	return &topic[T]{
		subscribers: make(map[string]func(msg T)),
	}
}

func (t *topic[T]) publish(msg T) {
	t.lock.Lock()
	defer t.lock.Unlock()

	for _, fn := range t.subscribers {
		fn(msg)
	}
}

func (t *topic[T]) add(fn func(msg T)) string {
	t.lock.Lock()
	defer t.lock.Unlock()

	id := uuid.NewString()
	t.subscribers[id] = fn

	return id
}

// remove drops the subscriber and returns how many are left.
func (t *topic[T]) remove(id string) int {
	t.lock.Lock()
	defer t.lock.Unlock()

	delete(t.subscribers, id)

	return len(t.subscribers)
}
