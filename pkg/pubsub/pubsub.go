package pubsub

import "sync"

// PubSub fans messages out to per-topic subscribers. Delivery is synchronous with Publish.
// A topic lives only while it has subscribers.
type PubSub[T any] struct {
	topics map[string]*topic[T]

	lock sync.Mutex
}

func New[T any]() *PubSub[T] {
	return &PubSub[T]{
		topics: make(map[string]*topic[T]),
	}
}

func (p *PubSub[T]) Publish(topic string, message T) {
	p.lock.Lock()
	t := p.topics[topic]
	p.lock.Unlock()

	if t != nil {
		t.publish(message)
	}
}

func (p *PubSub[T]) Subscribe(name string, handler func(message T)) (unsub func()) {
	p.lock.Lock()
	defer p.lock.Unlock()

	t, ok := p.topics[name]
	if !ok {
		t = newTopic[T]()
		p.topics[name] = t
	}

	id := t.add(handler)

	var once sync.Once

	return func() {
		once.Do(func() {
			p.lock.Lock()
			defer p.lock.Unlock()

			if t.remove(id) == 0 && p.topics[name] == t {
				delete(p.topics, name)
			}
		})
	}
}

// Topics is the number of topics with at least one subscriber.
func (p *PubSub[T]) Topics() int {
	p.lock.Lock()
	defer p.lock.Unlock()

	return len(p.topics)
}
