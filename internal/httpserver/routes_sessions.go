// internal/httpserver/routes_sessions.go
//
// HTTP routes for bingo sessions.
//   - GET    /categories                → category metadata for the picker
//   - POST   /sessions                  → start a session (optionally today's daily card)
//   - GET    /sessions/{id}             → current snapshot
//   - DELETE /sessions/{id}             → end a session
//   - POST   /sessions/{id}/toggle      → manual square toggle
//   - POST   /sessions/{id}/transcript  → feed speech (finalized transcript or raw text)
//   - POST   /sessions/{id}/reset       → new card, same category
//   - GET    /sessions/{id}/events      → server-sent snapshots
//
// Every session route answers with the snapshot after the operation, even
// when the operation was a no-op (won session, unknown square, no match).

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/meeting-bingo/internal/card"
	"github.com/robalobadob/meeting-bingo/internal/daily"
	"github.com/robalobadob/meeting-bingo/internal/game"
	"github.com/robalobadob/meeting-bingo/internal/vocab"
)

// -----------------------------------------------------------------------------
// /categories

type categoryRes struct {
	ID          vocab.CategoryID `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Icon        string           `json:"icon"`
	WordCount   int              `json:"wordCount"`
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := vocab.All()
	if err != nil {
		log.Error().Err(err).Msg("load categories")
		http.Error(w, `{"error":"server_error"}`, http.StatusInternalServerError)
		return
	}
	out := make([]categoryRes, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryRes{ID: c.ID, Name: c.Name, Description: c.Description, Icon: c.Icon, WordCount: len(c.Words)})
	}
	_ = json.NewEncoder(w).Encode(out)
}

// -----------------------------------------------------------------------------
// POST /sessions

type createReq struct {
	Category string `json:"category"`
	Daily    bool   `json:"daily"`
}

type createRes struct {
	Token     string        `json:"token"`
	ExpiresAt int64         `json:"expiresAt"` // unix seconds
	Session   game.Snapshot `json:"session"`
}

// handleCreateSession starts a session and returns its token.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}

	opts := []game.Option{game.WithClock(s.opts.Now)}
	if req.Daily {
		opts = append(opts, game.WithDaily(daily.DateKey(s.opts.Now()), s.opts.DailySalt))
	}
	g, err := game.New(vocab.CategoryID(req.Category), opts...)
	if err != nil {
		if errors.Is(err, card.ErrUnknownCategory) {
			http.Error(w, `{"error":"unknown_category"}`, http.StatusBadRequest)
			return
		}
		log.Error().Err(err).Str("category", req.Category).Msg("create session")
		http.Error(w, `{"error":"server_error"}`, http.StatusInternalServerError)
		return
	}
	if err := s.store.Save(r.Context(), g); err != nil {
		log.Error().Err(err).Str("session", g.ID()).Msg("save session")
		http.Error(w, `{"error":"save_failed"}`, http.StatusInternalServerError)
		return
	}
	s.add(g)

	tok, exp, err := s.tokens.Sign(g.ID())
	if err != nil {
		http.Error(w, `{"error":"sign_failed"}`, http.StatusInternalServerError)
		return
	}
	log.Info().Str("session", g.ID()).Str("category", string(g.Category())).Str("daily", g.DailyDate()).Msg("session started")

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(createRes{Token: tok, ExpiresAt: exp.Unix(), Session: g.Snapshot()})
}

// -----------------------------------------------------------------------------
// /sessions/{id}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	snap, err := s.view(r.Context(), id)
	if err != nil {
		writeLookupError(w, id, err)
		return
	}
	_ = json.NewEncoder(w).Encode(snap)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	s.mu.Lock()
	delete(s.live, id)
	s.mu.Unlock()
	s.sse.CloseSession(id)
	if err := s.store.Delete(r.Context(), id); err != nil {
		writeLookupError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type toggleReq struct {
	SquareID string `json:"squareId"`
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req toggleReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	id := sessionID(r)
	snap, err := s.apply(r.Context(), id, func(g *game.Session) (bool, error) {
		return g.ToggleSquare(req.SquareID), nil
	})
	if err != nil {
		writeLookupError(w, id, err)
		return
	}
	_ = json.NewEncoder(w).Encode(snap)
}

// transcriptReq carries either the whole finalized transcript so far
// (deltas are computed server-side) or a standalone piece of text.
type transcriptReq struct {
	FinalText string `json:"finalText"`
	Text      string `json:"text"`
}

type transcriptRes struct {
	Detected []string      `json:"detected"`
	Session  game.Snapshot `json:"session"`
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	var req transcriptReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	id := sessionID(r)
	var detected []string
	snap, err := s.apply(r.Context(), id, func(g *game.Session) (bool, error) {
		before := g.Transcript()
		if req.Text != "" {
			detected = g.ProcessTranscript(req.Text)
		} else {
			detected = g.IngestFinal(req.FinalText)
		}
		return len(detected) > 0 || g.Transcript() != before, nil
	})
	if err != nil {
		writeLookupError(w, id, err)
		return
	}
	if detected == nil {
		detected = []string{}
	}
	_ = json.NewEncoder(w).Encode(transcriptRes{Detected: detected, Session: snap})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	snap, err := s.apply(r.Context(), id, func(g *game.Session) (bool, error) {
		return true, g.Reset()
	})
	if err != nil {
		writeLookupError(w, id, err)
		return
	}
	_ = json.NewEncoder(w).Encode(snap)
}

// handleEvents streams a snapshot on connect and after every change.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := s.view(r.Context(), id)
	if err != nil {
		writeLookupError(w, id, err)
		return
	}
	b, err := json.Marshal(snapshotEvent(snap))
	if err != nil {
		log.Error().Err(err).Str("session", id).Msg("encode snapshot event")
		http.Error(w, `{"error":"server_error"}`, http.StatusInternalServerError)
		return
	}
	s.sse.ServeSSE(w, r, id, string(b))
}
