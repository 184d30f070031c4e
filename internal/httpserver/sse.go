package httpserver

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

const (
	sseChannelBuffer = 16
	sseHeartbeat     = 30 * time.Second
)

// client is one SSE subscriber of a session.
type client struct {
	ch        chan string
	sessionID string
}

// Broadcaster fans session events out to SSE subscribers. Subscribers are
// indexed by session so a publish only touches that session's clients.
type Broadcaster struct {
	mu       sync.RWMutex
	sessions map[string]map[*client]struct{}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{sessions: make(map[string]map[*client]struct{})}
}

// Register subscribes a new client to a session.
func (b *Broadcaster) Register(sessionID string) *client {
	c := &client{
		ch:        make(chan string, sseChannelBuffer),
		sessionID: sessionID,
	}
	b.mu.Lock()
	set, ok := b.sessions[sessionID]
	if !ok {
		set = make(map[*client]struct{})
		b.sessions[sessionID] = set
	}
	set[c] = struct{}{}
	b.mu.Unlock()
	return c
}

// Unregister removes a client and closes its channel. Safe to call twice.
func (b *Broadcaster) Unregister(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set := b.sessions[c.sessionID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.ch)
	if len(set) == 0 {
		delete(b.sessions, c.sessionID)
	}
}

// CloseSession disconnects every subscriber of a session, ending their
// streams. Used when the session is deleted or pruned.
func (b *Broadcaster) CloseSession(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	set := b.sessions[sessionID]
	for c := range set {
		close(c.ch)
	}
	delete(b.sessions, sessionID)
	return len(set)
}

// Broadcast sends data to every client of a session. A client whose buffer
// is full misses the message; the next snapshot supersedes it anyway.
func (b *Broadcaster) Broadcast(sessionID, data string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for c := range b.sessions[sessionID] {
		select {
		case c.ch <- data:
		default:
		}
	}
}

// ClientCount returns the number of subscribers of a session.
func (b *Broadcaster) ClientCount(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions[sessionID])
}

// ServeSSE streams a session's events until the request is cancelled or the
// session is closed. A non-empty initial message is written first.
func (b *Broadcaster) ServeSSE(w http.ResponseWriter, r *http.Request, sessionID, initial string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error":"streaming_unsupported"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	c := b.Register(sessionID)
	defer b.Unregister(c)

	if initial != "" {
		fmt.Fprintf(w, "data: %s\n\n", initial)
	}
	flusher.Flush()

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-c.ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}
