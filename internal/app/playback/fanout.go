package playback

// fanout delivers values to item-bound subscribers.
// Not safe for concurrent use; the engine guards it with its lock.
type fanout[T any] struct {
	subs map[*Subscription[T]]chan<- T
}

func newFanout[T any]() fanout[T] {
	return fanout[T]{subs: make(map[*Subscription[T]]chan<- T)}
}

func (f *fanout[T]) add(sub *Subscription[T], ch chan<- T) {
	f.subs[sub] = ch
}

// remove closes and forgets one subscriber.
func (f *fanout[T]) remove(sub *Subscription[T]) {
	if ch, ok := f.subs[sub]; ok {
		close(ch)
		delete(f.subs, sub)
	}
}

// send delivers v without blocking; a full subscriber misses v.
func (f *fanout[T]) send(v T) {
	for _, ch := range f.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

// closeAll completes every subscriber.
func (f *fanout[T]) closeAll() {
	for sub, ch := range f.subs {
		close(ch)
		delete(f.subs, sub)
	}
}

func (f *fanout[T]) len() int {
	return len(f.subs)
}
