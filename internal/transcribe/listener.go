package transcribe

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Listener provides continuous listening over a Recognizer.
//
// The finalized transcript only grows (segments joined by a single space)
// until ResetTranscript. The interim fragment is replaced on every result.
// When a stream ends while the caller still wants to listen, the listener
// silently starts a new one. Fatal errors stop listening until Start is
// called again; other errors are reported and listening continues.
//
// OnUpdate may be invoked from the listener's goroutine.
type Listener struct {
	rec      Recognizer
	onUpdate func(Update)

	mu        sync.Mutex
	want      bool // caller intent
	listening bool
	final     string
	interim   string
	lastErr   error
	stream    Stream
	gen       int // bumped by every Start; stale run loops exit on mismatch
}

// NewListener wraps rec. rec may be nil, which behaves as unsupported.
func NewListener(rec Recognizer, onUpdate func(Update)) *Listener {
	return &Listener{rec: rec, onUpdate: onUpdate}
}

// Supported reports whether the underlying recognizer can run.
func (l *Listener) Supported() bool {
	return l.rec != nil && l.rec.Supported()
}

// State returns the current listener state.
func (l *Listener) State() Update {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Listener) snapshotLocked() Update {
	return Update{
		FinalText:   l.final,
		InterimText: l.interim,
		IsListening: l.listening,
		Err:         l.lastErr,
	}
}

func (l *Listener) emit(u Update) {
	if l.onUpdate != nil {
		l.onUpdate(u)
	}
}

// Start begins listening. Calling Start while already listening is a no-op.
func (l *Listener) Start(ctx context.Context) error {
	if !l.Supported() {
		l.mu.Lock()
		l.lastErr = ErrUnsupported
		u := l.snapshotLocked()
		l.mu.Unlock()
		l.emit(u)
		return ErrUnsupported
	}

	l.mu.Lock()
	if l.listening {
		l.want = true
		l.mu.Unlock()
		return nil
	}
	l.gen++
	gen := l.gen
	l.want = true
	l.lastErr = nil
	l.mu.Unlock()

	stream, err := l.rec.Start(ctx)

	l.mu.Lock()
	if err != nil {
		l.want = false
		l.listening = false
		l.lastErr = err
		u := l.snapshotLocked()
		l.mu.Unlock()
		log.Warn().Err(err).Msg("transcribe: start failed")
		l.emit(u)
		return err
	}
	l.stream = stream
	l.listening = true
	u := l.snapshotLocked()
	l.mu.Unlock()

	l.emit(u)
	go l.run(ctx, stream, gen)
	return nil
}

// Stop ends listening. The underlying stream may deliver late results before
// it ends; those are still added to the transcript. Safe when not listening.
func (l *Listener) Stop() {
	l.mu.Lock()
	l.want = false
	l.listening = false
	l.interim = ""
	stream := l.stream
	l.stream = nil
	u := l.snapshotLocked()
	l.mu.Unlock()

	if stream != nil {
		if err := stream.Stop(); err != nil {
			log.Debug().Err(err).Msg("transcribe: stop stream")
		}
	}
	l.emit(u)
}

// ResetTranscript clears the final and interim text. Safe at any time.
func (l *Listener) ResetTranscript() {
	l.mu.Lock()
	l.final = ""
	l.interim = ""
	u := l.snapshotLocked()
	l.mu.Unlock()
	l.emit(u)
}

// run consumes streams until the caller stops or a restart fails.
func (l *Listener) run(ctx context.Context, stream Stream, gen int) {
	for {
		l.consume(stream, gen)
		next, ok := l.restart(ctx, gen)
		if !ok {
			return
		}
		stream = next
	}
}

// consume handles events until End or until the channel closes.
func (l *Listener) consume(stream Stream, gen int) {
	for ev := range stream.Events() {
		switch ev.Type {
		case EventResult:
			l.onResult(ev)
		case EventError:
			l.onError(ev, gen, stream)
		case EventEnd:
			return
		}
	}
}

func (l *Listener) onResult(ev Event) {
	l.mu.Lock()
	if ev.IsFinal {
		if seg := strings.TrimSpace(ev.Text); seg != "" {
			if l.final != "" {
				l.final += " "
			}
			l.final += seg
		}
		l.interim = ""
	} else {
		l.interim = ev.Text
	}
	u := l.snapshotLocked()
	l.mu.Unlock()
	l.emit(u)
}

func (l *Listener) onError(ev Event, gen int, stream Stream) {
	err := &Error{Kind: ev.Kind, Err: ev.Err}

	l.mu.Lock()
	l.lastErr = err
	fatal := ev.Kind.Fatal() && gen == l.gen
	if fatal {
		l.want = false
		l.listening = false
		l.interim = ""
		l.stream = nil
	}
	u := l.snapshotLocked()
	l.mu.Unlock()

	log.Warn().Str("kind", string(ev.Kind)).Bool("fatal", fatal).Err(ev.Err).Msg("transcribe: recognizer error")
	if fatal {
		_ = stream.Stop()
	}
	l.emit(u)
}

// restart opens a new stream after End if the caller still wants to listen.
func (l *Listener) restart(ctx context.Context, gen int) (Stream, bool) {
	l.mu.Lock()
	if gen != l.gen {
		l.mu.Unlock()
		return nil, false
	}
	l.interim = ""
	if !l.want || ctx.Err() != nil {
		l.want = false
		l.listening = false
		l.stream = nil
		u := l.snapshotLocked()
		l.mu.Unlock()
		l.emit(u)
		return nil, false
	}
	l.mu.Unlock()

	log.Debug().Msg("transcribe: stream ended, restarting")
	stream, err := l.rec.Start(ctx)

	l.mu.Lock()
	if err != nil {
		l.want = false
		l.listening = false
		l.stream = nil
		l.lastErr = err
		u := l.snapshotLocked()
		l.mu.Unlock()
		log.Warn().Err(err).Msg("transcribe: restart failed")
		l.emit(u)
		return nil, false
	}
	if gen != l.gen || !l.want {
		l.mu.Unlock()
		_ = stream.Stop()
		return nil, false
	}
	l.stream = stream
	l.listening = true
	l.lastErr = nil
	u := l.snapshotLocked()
	l.mu.Unlock()
	l.emit(u)
	return stream, true
}
