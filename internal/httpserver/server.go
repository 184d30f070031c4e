// internal/httpserver/server.go
//
// HTTP server wiring for the bingo backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs, logging).
//   - Public endpoints: "/", "/health", "/categories", POST /sessions.
//   - Session endpoints (require the session's bearer token): mounted under /sessions/{id}.
//   - Streaming endpoints (SSE snapshots, websocket transcript feed) outside the timeout.
//   - A live cache of sessions, each serialized by its own mutex and persisted after mutation.
//
// Notes:
//   - CORS is origin-aware for a single configured client origin.
//   - Tokens are HS256 JWTs whose "sid" claim must match the {id} in the path.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/meeting-bingo/internal/game"
	"github.com/robalobadob/meeting-bingo/internal/store"
)

// Options configures a Server.
type Options struct {
	ClientOrigin   string
	RequestTimeout time.Duration
	Secret         []byte
	TokenTTL       time.Duration
	DailySalt      string
	Now            func() time.Time
}

// Server bundles router, session store and live session cache.
type Server struct {
	r      *chi.Mux
	store  store.Store
	tokens *tokenIssuer
	sse    *Broadcaster
	opts   Options

	mu   sync.Mutex
	live map[string]*liveSession
}

// liveSession serializes every operation on one game session.
type liveSession struct {
	mu      sync.Mutex
	game    *game.Session
	touched time.Time
}

// New constructs a Server, installs middleware, and registers routes.
func New(st store.Store, opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	if opts.ClientOrigin == "" {
		opts.ClientOrigin = "http://localhost:5173"
	}
	s := &Server{
		r:      chi.NewRouter(),
		store:  st,
		tokens: &tokenIssuer{secret: opts.Secret, ttl: opts.TokenTTL, now: opts.Now},
		sse:    NewBroadcaster(),
		opts:   opts,
		live:   make(map[string]*liveSession),
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)         // add X-Request-ID
	s.r.Use(chimw.RealIP)            // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(requestLogger)           // one zerolog line per request
	s.r.Use(chimw.Recoverer)         // recover from panics
	s.r.Use(jsonContentType)         // default JSON responses
	s.r.Use(cors(opts.ClientOrigin)) // single-origin CORS

	// Request/response routes get a bounded handler time; streams do not.
	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(opts.RequestTimeout))

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"service":"meeting-bingo","endpoints":["/health","/categories","POST /sessions","/sessions/{id}/*"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"ok":true}`))
		})
		r.Get("/categories", s.handleCategories)
		r.Post("/sessions", s.handleCreateSession)

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Use(s.requireSession())
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/toggle", s.handleToggle)
			r.Post("/transcript", s.handleTranscript)
			r.Post("/reset", s.handleReset)
		})
	})

	s.r.Group(func(r chi.Router) {
		r.Use(s.requireSession())
		r.Get("/sessions/{id}/events", s.handleEvents)
		r.Get("/sessions/{id}/listen", s.handleListen)
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
	})

	return s
}

// Router exposes the internal router (useful for tests and http.Server).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables CORS for a single origin.
func cors(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger logs method, path, status and duration for every request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			log.Debug().
				Str("request_id", chimw.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("http request")
		}()
		next.ServeHTTP(ww, r)
	})
}

// --------------------------- live sessions ---------------------------------

// lookup returns the live session for id, restoring it from the store on a
// cache miss. Returns store.ErrNotFound for unknown ids.
func (s *Server) lookup(ctx context.Context, id string) (*liveSession, error) {
	s.mu.Lock()
	if ls, ok := s.live[id]; ok {
		s.mu.Unlock()
		return ls, nil
	}
	s.mu.Unlock()

	snap, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	opts := []game.Option{game.WithClock(s.opts.Now)}
	if snap.DailyDate != "" {
		opts = append(opts, game.WithDaily(snap.DailyDate, s.opts.DailySalt))
	}
	g, err := game.Restore(snap, opts...)
	if err != nil {
		return nil, err
	}
	log.Info().Str("session", id).Msg("session restored from store")

	s.mu.Lock()
	defer s.mu.Unlock()
	if ls, ok := s.live[id]; ok {
		return ls, nil
	}
	ls := &liveSession{game: g, touched: s.opts.Now()}
	s.live[id] = ls
	return ls, nil
}

// add caches a new session.
func (s *Server) add(g *game.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live[g.ID()] = &liveSession{game: g, touched: s.opts.Now()}
}

// apply runs fn under the session's lock. When fn reports a change the new
// state is published to subscribers and persisted. The live session is the
// source of truth: a failed save is returned to the caller, but the change
// stands and subscribers still see it.
func (s *Server) apply(ctx context.Context, id string, fn func(*game.Session) (bool, error)) (game.Snapshot, error) {
	ls, err := s.lookup(ctx, id)
	if err != nil {
		return game.Snapshot{}, err
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()

	ls.touched = s.opts.Now()
	changed, err := fn(ls.game)
	if err != nil {
		return game.Snapshot{}, err
	}
	snap := ls.game.Snapshot()
	if changed {
		s.publish(snap)
		if err := s.store.Save(ctx, ls.game); err != nil {
			return snap, fmt.Errorf("persist session %s: %w", id, err)
		}
	}
	return snap, nil
}

// view returns a snapshot without mutating the session.
func (s *Server) view(ctx context.Context, id string) (game.Snapshot, error) {
	return s.apply(ctx, id, func(*game.Session) (bool, error) { return false, nil })
}

// event is what SSE and websocket subscribers receive.
type event struct {
	Type     string         `json:"type"`
	Session  *game.Snapshot `json:"session,omitempty"`
	Detected []string       `json:"detected,omitempty"`
	Kind     string         `json:"kind,omitempty"`
	Fatal    bool           `json:"fatal,omitempty"`
	Message  string         `json:"message,omitempty"`
}

func snapshotEvent(snap game.Snapshot) event {
	return event{Type: "snapshot", Session: &snap}
}

// publish broadcasts a snapshot to SSE subscribers.
func (s *Server) publish(snap game.Snapshot) {
	if s.sse.ClientCount(snap.ID) == 0 {
		return
	}
	b, err := json.Marshal(snapshotEvent(snap))
	if err != nil {
		log.Error().Err(err).Str("session", snap.ID).Msg("encode snapshot event")
		return
	}
	s.sse.Broadcast(snap.ID, string(b))
}

// Prune drops sessions idle since before cutoff from the cache and the store.
func (s *Server) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	dropped := 0
	for id, ls := range s.live {
		ls.mu.Lock()
		idle := ls.touched.Before(cutoff)
		ls.mu.Unlock()
		if idle {
			delete(s.live, id)
			s.sse.CloseSession(id)
			dropped++
		}
	}
	s.mu.Unlock()

	n, err := s.store.Prune(ctx, cutoff)
	if err != nil {
		return dropped, err
	}
	if n > dropped {
		dropped = n
	}
	return dropped, nil
}

// writeLookupError maps lookup failures to JSON errors.
func writeLookupError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		return
	}
	log.Error().Err(err).Str("session", id).Msg("session operation failed")
	http.Error(w, `{"error":"server_error"}`, http.StatusInternalServerError)
}
