package playback

import "sync"

// Subscription is a cancellable signal producer.
// C is closed by the producer once it stops, either because the signal
// completed or because Cancel was called.
type Subscription[T any] struct {
	C <-chan T

	stop chan struct{}
	once sync.Once
}

// NewSubscription creates a subscription and returns the send side of its channel.
// The producer owns the send side and must close it when it returns.
func NewSubscription[T any](buffer int) (*Subscription[T], chan<- T) {
	ch := make(chan T, buffer)
	return &Subscription[T]{
		C:    ch,
		stop: make(chan struct{}),
	}, ch
}

// Cancel stops the producer. Safe to call more than once and on a nil subscription.
func (s *Subscription[T]) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		close(s.stop)
	})
}

// Stopped returns a channel closed when Cancel is called.
func (s *Subscription[T]) Stopped() <-chan struct{} {
	return s.stop
}
