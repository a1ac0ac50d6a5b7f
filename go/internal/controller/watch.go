package controller

import (
	"sync"

	"github.com/patrickudo2004/kairon/go/internal/session"
)

type watchers struct {
	mu   sync.Mutex
	subs map[chan session.View]struct{}
}

func newWatchers() *watchers {
	return &watchers{subs: make(map[chan session.View]struct{})}
}

func (w *watchers) add() (<-chan session.View, func()) {
	ch := make(chan session.View, 1)
	w.mu.Lock()
	w.subs[ch] = struct{}{}
	w.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			if _, ok := w.subs[ch]; ok {
				delete(w.subs, ch)
				close(ch)
			}
		})
	}
}

// publish replaces any unread view so readers always see the latest one.
func (w *watchers) publish(v session.View) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for ch := range w.subs {
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}

func (w *watchers) closeAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for ch := range w.subs {
		delete(w.subs, ch)
		close(ch)
	}
}
