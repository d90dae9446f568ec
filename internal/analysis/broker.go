package analysis

import "sync"

const subscriberBuffer = 64

// broker fans snapshots out to subscribers. A slow subscriber loses its
// oldest buffered snapshot rather than blocking the machine.
type broker struct {
	mu   sync.Mutex
	subs map[chan Snapshot]struct{}
}

func newBroker() *broker {
	return &broker{subs: make(map[chan Snapshot]struct{})}
}

func (b *broker) add(first Snapshot) chan Snapshot {
	ch := make(chan Snapshot, subscriberBuffer)
	ch <- first
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *broker) remove(ch chan Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; !ok {
		return
	}
	delete(b.subs, ch)
	close(ch)
}

func (b *broker) publish(s Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		pushDropOldest(ch, s)
	}
}

func (b *broker) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}

func pushDropOldest(ch chan Snapshot, s Snapshot) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}
