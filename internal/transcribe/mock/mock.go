// Package mock provides a scripted transcribe.Recognizer for tests.
//
// Each call to Start consumes the next script from Scripts. A stream emits
// its script in order; if the script ends with transcribe.End the stream
// closes right after it, otherwise it stays open until Stop, then emits Tail
// followed by End.
//
// Example:
//
//	rec := &mock.Recognizer{Scripts: [][]transcribe.Event{
//	    {transcribe.Result("let's circle back", true), transcribe.End()},
//	    {transcribe.Result("on the roi", true)},
//	}}
package mock

import (
	"context"
	"sync"

	"github.com/robalobadob/meeting-bingo/internal/transcribe"
)

// Recognizer is a scripted transcribe.Recognizer.
type Recognizer struct {
	mu sync.Mutex

	// Unsupported makes Supported return false.
	Unsupported bool

	// StartErr, if non-nil, is returned by every Start call.
	StartErr error

	// Scripts holds one event script per Start call. Calls beyond the end
	// get an empty script that stays open until Stop.
	Scripts [][]transcribe.Event

	// Tail is emitted by every stream after Stop and before End.
	Tail []transcribe.Event

	// Streams records every stream handed out, in order.
	Streams []*Stream
}

// Supported reports !Unsupported.
func (r *Recognizer) Supported() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.Unsupported
}

// Start returns the next scripted stream, or StartErr.
func (r *Recognizer) Start(ctx context.Context) (transcribe.Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.StartErr != nil {
		return nil, r.StartErr
	}
	var script []transcribe.Event
	if n := len(r.Streams); n < len(r.Scripts) {
		script = r.Scripts[n]
	}
	s := newStream(script, r.Tail)
	r.Streams = append(r.Streams, s)
	return s, nil
}

// StartCalls returns the number of streams started. Thread-safe.
func (r *Recognizer) StartCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Streams)
}

// Stream returns the i-th started stream. Thread-safe.
func (r *Recognizer) Stream(i int) *Stream {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Streams[i]
}

var _ transcribe.Recognizer = (*Recognizer)(nil)

// Stream is a scripted transcribe.Stream.
type Stream struct {
	events chan transcribe.Event
	stop   chan struct{}
	once   sync.Once

	mu        sync.Mutex
	stopCalls int
}

func newStream(script, tail []transcribe.Event) *Stream {
	s := &Stream{
		events: make(chan transcribe.Event, len(script)+len(tail)+1),
		stop:   make(chan struct{}),
	}
	go s.run(script, tail)
	return s
}

func (s *Stream) run(script, tail []transcribe.Event) {
	defer close(s.events)
	for _, ev := range script {
		s.events <- ev
		if ev.Type == transcribe.EventEnd {
			return
		}
	}
	<-s.stop
	for _, ev := range tail {
		s.events <- ev
	}
	s.events <- transcribe.End()
}

// Events returns the event channel.
func (s *Stream) Events() <-chan transcribe.Event { return s.events }

// Stop records the call and lets the stream finish.
func (s *Stream) Stop() error {
	s.mu.Lock()
	s.stopCalls++
	s.mu.Unlock()
	s.once.Do(func() { close(s.stop) })
	return nil
}

// StopCalls returns how many times Stop was called. Thread-safe.
func (s *Stream) StopCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCalls
}

var _ transcribe.Stream = (*Stream)(nil)
