package immediateticker

import (
	"sync"
	"time"
)

// ImmediateTicker behaves like time.Ticker but also fires once right away.
type ImmediateTicker struct {
	C chan time.Time
	t *time.Ticker

	stop     chan struct{}
	stopOnce sync.Once
}

func New(interval time.Duration) *ImmediateTicker {
	it := &ImmediateTicker{
		C:    make(chan time.Time, 1),
		t:    time.NewTicker(interval),
		stop: make(chan struct{}),
	}

	it.C <- time.Now()

	go func() {
		for {
			select {
			case tick := <-it.t.C:
				select {
				case it.C <- tick:
				default: // receiver is behind, drop the tick like time.Ticker does
				}
			case <-it.stop:
				return
			}
		}
	}()

	return it
}

func (it *ImmediateTicker) Stop() {
	it.stopOnce.Do(func() {
		it.t.Stop()
		close(it.stop)
	})
}

func (it *ImmediateTicker) Reset(interval time.Duration) {
	it.t.Reset(interval)
}
