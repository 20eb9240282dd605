package viewer

import "sync"

// Notifier broadcasts chart generations to connected pages. Each Broadcast
// bumps the generation; listeners always receive the newest one and never
// block the broadcaster.
type Notifier struct {
	mu         sync.RWMutex
	generation uint64
	listeners  map[chan uint64]struct{}
}

// NewNotifier creates a Notifier at generation zero.
func NewNotifier() *Notifier {
	return &Notifier{listeners: make(map[chan uint64]struct{})}
}

// Subscribe returns a channel receiving the generation after each broadcast.
// The caller must call Unsubscribe when done.
func (n *Notifier) Subscribe() chan uint64 {
	ch := make(chan uint64, 1)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(ch chan uint64) {
	n.mu.Lock()
	if _, ok := n.listeners[ch]; ok {
		delete(n.listeners, ch)
		close(ch)
	}
	n.mu.Unlock()
}

// Generation returns the number of broadcasts so far.
func (n *Notifier) Generation() uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.generation
}

// Broadcast bumps the generation and delivers it to every listener. A
// listener that has not consumed the previous generation gets it replaced.
func (n *Notifier) Broadcast() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.generation++
	for ch := range n.listeners {
		select {
		case <-ch:
		default:
		}
		ch <- n.generation
	}
	return n.generation
}

// Listeners returns the number of subscribed listeners.
func (n *Notifier) Listeners() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}
