package assistant

import "sync"

// Sequencer serializes work per key in strict arrival order. A mutex per
// chat would serialize too, but mutex wakeup order is unspecified; the
// ticket chain guarantees FIFO, so two quick messages from the same chat
// are always processed in the order they arrived. Different keys never
// block each other.
type Sequencer struct {
	mu    sync.Mutex
	tails map[int64]chan struct{}
}

// NewSequencer creates an empty sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{tails: make(map[int64]chan struct{})}
}

// Reserve takes the key's next queue position immediately and returns a
// run function that executes its argument once every earlier reservation
// for the key has finished. Taking the position synchronously lets a
// caller pin arrival order before handing the work to a goroutine.
// The returned function must be called exactly once.
func (s *Sequencer) Reserve(key int64) func(fn func()) {
	s.mu.Lock()
	prev := s.tails[key]
	done := make(chan struct{})
	s.tails[key] = done
	s.mu.Unlock()

	return func(fn func()) {
		if prev != nil {
			<-prev
		}
		defer func() {
			close(done)
			s.mu.Lock()
			if s.tails[key] == done {
				delete(s.tails, key)
			}
			s.mu.Unlock()
		}()

		fn()
	}
}

// Do runs fn after every previously enqueued fn for the same key has
// finished.
func (s *Sequencer) Do(key int64, fn func()) {
	s.Reserve(key)(fn)
}
