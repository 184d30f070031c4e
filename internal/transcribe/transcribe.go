// Package transcribe defines the transcription source consumed by the game
// engine.
//
// A Recognizer wraps a concrete speech engine (a streaming websocket service,
// a scripted fake in tests). Each Start opens a Stream that emits Events:
// interim and final text results, errors, and a terminal End. The Listener
// layers continuous-listening behavior on top: it accumulates the finalized
// transcript, tracks the interim fragment, restarts the engine when a stream
// ends while the caller still wants to listen, and stops on fatal errors.
package transcribe

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnsupported is reported when no recognizer is available.
var ErrUnsupported = errors.New("transcribe: speech recognition is not supported")

// ErrorKind classifies recognizer failures.
type ErrorKind string

const (
	NoSpeech             ErrorKind = "no-speech"
	AudioCapture         ErrorKind = "audio-capture"
	NotAllowed           ErrorKind = "not-allowed"
	Network              ErrorKind = "network"
	Aborted              ErrorKind = "aborted"
	LanguageNotSupported ErrorKind = "language-not-supported"
	ServiceNotAllowed    ErrorKind = "service-not-allowed"
)

var messages = map[ErrorKind]string{
	NoSpeech:             "No speech was detected. Please try again.",
	AudioCapture:         "No microphone was found or microphone is not working.",
	NotAllowed:           "Microphone permission was denied.",
	Network:              "Network error occurred during recognition.",
	Aborted:              "Speech recognition was aborted.",
	LanguageNotSupported: "The specified language is not supported.",
	ServiceNotAllowed:    "Speech recognition service is not allowed.",
}

// Fatal reports whether the error ends listening until an explicit restart.
func (k ErrorKind) Fatal() bool {
	return k == NotAllowed || k == ServiceNotAllowed
}

// Message is the human-readable text shown to the player.
func (k ErrorKind) Message() string {
	if m, ok := messages[k]; ok {
		return m
	}
	return "Speech recognition error: " + string(k)
}

// Error is a classified recognizer failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transcribe: %s: %v", e.Kind, e.Err)
	}
	return "transcribe: " + string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the classified kind of err, if it carries one.
func KindOf(err error) (ErrorKind, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return "", false
}

// EventType discriminates Event values.
type EventType int

const (
	EventResult EventType = iota
	EventError
	EventEnd
)

// Event is one notification from a Stream.
type Event struct {
	Type    EventType
	Text    string    // EventResult
	IsFinal bool      // EventResult
	Kind    ErrorKind // EventError
	Err     error     // EventError, optional cause
}

// Result builds a text result event.
func Result(text string, final bool) Event {
	return Event{Type: EventResult, Text: text, IsFinal: final}
}

// Failure builds an error event.
func Failure(kind ErrorKind, err error) Event {
	return Event{Type: EventError, Kind: kind, Err: err}
}

// End builds the terminal event of a stream.
func End() Event { return Event{Type: EventEnd} }

// Stream is one recognition run. Events is closed after the End event.
// Stop asks the engine to finish; results may still arrive before End.
// Stop is safe to call more than once.
type Stream interface {
	Events() <-chan Event
	Stop() error
}

// Recognizer starts recognition runs.
type Recognizer interface {
	// Supported reports whether the engine can run at all.
	Supported() bool
	// Start opens a new stream. Failures should be *Error values.
	Start(ctx context.Context) (Stream, error)
}

// Update is the listener state pushed to the caller after every change.
type Update struct {
	FinalText   string `json:"finalText"`
	InterimText string `json:"interimText"`
	IsListening bool   `json:"isListening"`
	Err         error  `json:"-"`
}
