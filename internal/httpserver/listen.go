package httpserver

import (
	"context"
	"net/http"
	"net/url"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/meeting-bingo/internal/game"
	"github.com/robalobadob/meeting-bingo/internal/transcribe"
)

// listenMsg is one listener update pushed by the browser: the same shape a
// transcribe.Listener reports, with the error as its kind string.
type listenMsg struct {
	FinalText   string `json:"finalText"`
	InterimText string `json:"interimText"`
	IsListening bool   `json:"isListening"`
	Error       string `json:"error,omitempty"`
}

// handleListen accepts a websocket that feeds speech recognition updates
// into the session. Every finalized transcript is ingested as a delta and
// answered with a snapshot event; recognizer errors are classified and
// echoed back so the client knows whether to keep listening.
func (s *Server) handleListen(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.lookup(r.Context(), id); err != nil {
		writeLookupError(w, id, err)
		return
	}

	var patterns []string
	if u, err := url.Parse(s.opts.ClientOrigin); err == nil && u.Host != "" {
		patterns = append(patterns, u.Host)
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: patterns})
	if err != nil {
		log.Warn().Err(err).Str("session", id).Msg("listen: accept failed")
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	snap, err := s.view(ctx, id)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "session unavailable")
		return
	}
	if err := wsjson.Write(ctx, conn, snapshotEvent(snap)); err != nil {
		return
	}
	log.Debug().Str("session", id).Msg("listen: connected")

	for {
		var msg listenMsg
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && ctx.Err() == nil {
				log.Debug().Err(err).Str("session", id).Msg("listen: read ended")
			}
			return
		}
		if err := s.handleListenMsg(ctx, conn, id, msg); err != nil {
			log.Warn().Err(err).Str("session", id).Msg("listen: update failed")
			conn.Close(websocket.StatusInternalError, "update failed")
			return
		}
	}
}

func (s *Server) handleListenMsg(ctx context.Context, conn *websocket.Conn, id string, msg listenMsg) error {
	if msg.Error != "" {
		kind := transcribe.ErrorKind(msg.Error)
		log.Warn().Str("session", id).Str("kind", msg.Error).Bool("fatal", kind.Fatal()).Msg("listen: recognizer error")
		if err := wsjson.Write(ctx, conn, event{
			Type:    "error",
			Kind:    msg.Error,
			Fatal:   kind.Fatal(),
			Message: kind.Message(),
		}); err != nil {
			return err
		}
	}

	var detected []string
	snap, err := s.apply(ctx, id, func(g *game.Session) (bool, error) {
		before := g.Transcript()
		detected = g.IngestFinal(msg.FinalText)
		return len(detected) > 0 || g.Transcript() != before, nil
	})
	if err != nil {
		return err
	}
	ev := snapshotEvent(snap)
	ev.Detected = detected
	return wsjson.Write(ctx, conn, ev)
}
