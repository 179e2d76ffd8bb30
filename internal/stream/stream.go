// Package stream provides a single-producer event stream with a final
// result, used to deliver session progress to one consumer.
package stream

import "sync"

// EventStream carries events of type T to a consumer and terminates with
// a result of type R or an error. The producer calls Push then exactly
// one of End or EndWithError; the consumer ranges over Events until it
// closes and may then collect the outcome from Result.
type EventStream[T, R any] struct {
	events   chan T
	doneChan chan struct{}

	mu          sync.Mutex
	ended       bool
	resultValue R
	err         error
}

func New[T, R any]() *EventStream[T, R] {
	return &EventStream[T, R]{
		events:   make(chan T, 10),
		doneChan: make(chan struct{}),
	}
}

// Push delivers an event to the consumer. It blocks while the buffer is
// full and is a no-op once the stream has ended. The mutex is held
// across the send so End cannot close the channel under it.
func (es *EventStream[T, R]) Push(event T) {
	es.mu.Lock()
	defer es.mu.Unlock()
	if es.ended {
		return
	}
	es.events <- event
}

// End terminates the stream with a result. Subsequent calls are no-ops.
func (es *EventStream[T, R]) End(result R) {
	es.mu.Lock()
	defer es.mu.Unlock()
	if es.ended {
		return
	}
	es.ended = true
	es.resultValue = result
	close(es.events)
	close(es.doneChan)
}

// EndWithError terminates the stream with an error instead of a result.
func (es *EventStream[T, R]) EndWithError(err error) {
	es.mu.Lock()
	defer es.mu.Unlock()
	if es.ended {
		return
	}
	es.ended = true
	es.err = err
	close(es.events)
	close(es.doneChan)
}

// Events returns the channel of streamed events. It is closed when the
// stream ends.
func (es *EventStream[T, R]) Events() <-chan T {
	return es.events
}

// Result blocks until the stream ends and returns its outcome.
func (es *EventStream[T, R]) Result() (R, error) {
	<-es.doneChan

	es.mu.Lock()
	defer es.mu.Unlock()
	if es.err != nil {
		var zero R
		return zero, es.err
	}
	return es.resultValue, nil
}
