package assistant

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSequencer(t *testing.T) {
	t.Run("SameKeyRunsInArrivalOrder", func(t *testing.T) {
		s := NewSequencer()

		var mu sync.Mutex
		var order []int

		// Hold the first job so later jobs queue up behind it, then
		// verify they complete in submission order.
		release := make(chan struct{})
		var wg sync.WaitGroup

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Do(7, func() {
				<-release
				mu.Lock()
				order = append(order, 0)
				mu.Unlock()
			})
		}()
		time.Sleep(5 * time.Millisecond)

		for i := 1; i <= 10; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.Do(7, func() {
					mu.Lock()
					order = append(order, i)
					mu.Unlock()
				})
			}()
			// Give each goroutine time to take its ticket before the
			// next is started, so arrival order is well defined.
			time.Sleep(5 * time.Millisecond)
		}

		close(release)
		wg.Wait()

		want := make([]int, 11)
		for i := range want {
			want[i] = i
		}
		assert.Equal(t, want, order)
	})

	t.Run("ReservationOrderBeatsGoroutineScheduling", func(t *testing.T) {
		s := NewSequencer()

		var mu sync.Mutex
		var order []int

		// Reservations are taken synchronously in arrival order; the
		// goroutines that run them start in reverse. The reserved order
		// must win regardless of how the runtime schedules them.
		runs := make([]func(fn func()), 5)
		for i := range runs {
			runs[i] = s.Reserve(7)
		}

		var wg sync.WaitGroup
		for i := len(runs) - 1; i >= 0; i-- {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				runs[i](func() {
					mu.Lock()
					order = append(order, i)
					mu.Unlock()
				})
			}()
			time.Sleep(2 * time.Millisecond)
		}
		wg.Wait()

		assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	})

	t.Run("DifferentKeysDoNotBlock", func(t *testing.T) {
		s := NewSequencer()

		blocked := make(chan struct{})
		started := make(chan struct{})
		go s.Do(1, func() {
			close(started)
			<-blocked
		})
		<-started

		ran := make(chan struct{})
		go s.Do(2, func() { close(ran) })

		// Key 2 completes while key 1 is still held.
		<-ran
		close(blocked)
	})

	t.Run("KeyStateIsReclaimed", func(t *testing.T) {
		s := NewSequencer()
		for i := 0; i < 10; i++ {
			s.Do(int64(i), func() {})
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		assert.Empty(t, s.tails)
	})
}
