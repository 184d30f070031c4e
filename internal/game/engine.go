// internal/game/engine.go
//
// Core game engine for a single bingo session.
// Responsibilities:
//   - Create sessions with a freshly generated card for one category.
//   - Apply manual toggles and transcript-driven auto-fills.
//   - Evaluate lines after every mutation: playing → won.
//   - Turn a growing finalized transcript into deltas for detection.
//
// Notes:
//   - The card is replaced by a clone on every mutation, never edited in place.
//   - Once won, the fill state is frozen until Reset.
//   - Sessions are not safe for concurrent use; callers serialize access.
package game

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/meeting-bingo/internal/card"
	"github.com/robalobadob/meeting-bingo/internal/daily"
	"github.com/robalobadob/meeting-bingo/internal/detect"
	"github.com/robalobadob/meeting-bingo/internal/vocab"
)

// ErrBadSnapshot is returned by Restore for snapshots that cannot be a real card.
var ErrBadSnapshot = errors.New("game: invalid snapshot")

// Session is one player's game.
type Session struct {
	id          string
	category    vocab.CategoryID
	card        card.Card
	status      Status
	winning     *card.WinningLine
	detected    []string
	startedAt   time.Time
	completedAt *time.Time
	lastFinal   string

	dailyDate string
	dailySalt string
	newGen    func() *card.Generator
	now       func() time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithClock overrides the wall clock (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithGenerator makes the session draw cards from g.
func WithGenerator(g *card.Generator) Option {
	return func(s *Session) { s.newGen = func() *card.Generator { return g } }
}

// WithID sets the session id instead of a random UUID.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// WithDaily makes the session use the daily card for date (YYYY-MM-DD).
// Reset regenerates the same card.
func WithDaily(date, salt string) Option {
	return func(s *Session) {
		s.dailyDate = date
		s.dailySalt = salt
	}
}

func newSession(categoryID vocab.CategoryID, opts []Option) *Session {
	s := &Session{
		category: categoryID,
		now:      time.Now,
		newGen:   card.NewGenerator,
	}
	for _, o := range opts {
		o(s)
	}
	if s.dailyDate != "" {
		date, salt := s.dailyDate, s.dailySalt
		s.newGen = func() *card.Generator { return daily.Generator(date, salt, categoryID) }
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	return s
}

// New starts a session with a fresh card for categoryID.
// The only failure is an unknown category (card.ErrUnknownCategory).
func New(categoryID vocab.CategoryID, opts ...Option) (*Session, error) {
	s := newSession(categoryID, opts)
	c, err := s.generate()
	if err != nil {
		return nil, err
	}
	s.card = c
	s.status = StatusPlaying
	s.startedAt = s.now()
	log.Debug().Str("session", s.id).Str("category", string(categoryID)).Str("daily", s.dailyDate).Msg("game: session created")
	return s, nil
}

// Restore rebuilds a session from a snapshot. Daily snapshots need
// WithDaily again so Reset keeps producing the daily card.
func Restore(snap Snapshot, opts ...Option) (*Session, error) {
	if _, err := vocab.Lookup(snap.Category); err != nil {
		return nil, fmt.Errorf("%w: %w", card.ErrUnknownCategory, err)
	}
	if len(snap.Card.Words) != card.WordCount {
		return nil, fmt.Errorf("%w: card has %d words", ErrBadSnapshot, len(snap.Card.Words))
	}
	if snap.Status != StatusPlaying && snap.Status != StatusWon {
		return nil, fmt.Errorf("%w: status %q", ErrBadSnapshot, snap.Status)
	}
	base := []Option{WithID(snap.ID)}
	if snap.DailyDate != "" {
		base = append(base, WithDaily(snap.DailyDate, ""))
	}
	s := newSession(snap.Category, append(base, opts...))
	s.card = snap.Card.Clone()
	s.status = snap.Status
	if snap.WinningLine != nil {
		wl := *snap.WinningLine
		wl.Squares = append([]string(nil), wl.Squares...)
		s.winning = &wl
	}
	s.detected = append([]string(nil), snap.DetectedWords...)
	s.startedAt = snap.StartedAt
	if snap.CompletedAt != nil {
		t := *snap.CompletedAt
		s.completedAt = &t
	}
	s.lastFinal = snap.Transcript
	return s, nil
}

// generate draws a card from a fresh generator using the session clock.
func (s *Session) generate() (card.Card, error) {
	g := *s.newGen()
	g.Now = s.now
	return g.Generate(s.category)
}

func (s *Session) ID() string                 { return s.id }
func (s *Session) Category() vocab.CategoryID { return s.category }
func (s *Session) Status() Status             { return s.status }
func (s *Session) DailyDate() string          { return s.dailyDate }

// Transcript returns the last finalized transcript seen by IngestFinal.
func (s *Session) Transcript() string { return s.lastFinal }

// ToggleSquare flips a square by hand. It reports whether anything changed:
// unknown ids, the free space and sessions that are already won are no-ops.
// A manual toggle always clears the auto-fill flag.
func (s *Session) ToggleSquare(squareID string) bool {
	if s.status != StatusPlaying {
		return false
	}
	row, col, ok := s.card.Find(squareID)
	if !ok {
		log.Debug().Str("session", s.id).Str("square", squareID).Msg("game: toggle of unknown square ignored")
		return false
	}
	if s.card.Squares[row][col].IsFreeSpace {
		return false
	}

	next := s.card.Clone()
	sq := &next.Squares[row][col]
	sq.IsFilled = !sq.IsFilled
	sq.IsAutoFilled = false
	if sq.IsFilled {
		t := s.now()
		sq.FilledAt = &t
	} else {
		sq.FilledAt = nil
	}
	s.card = next

	log.Debug().Str("session", s.id).Str("square", squareID).Bool("filled", sq.IsFilled).Msg("game: square toggled")
	s.evaluate()
	return true
}

// ProcessTranscript detects card words in text and auto-fills their squares.
// It returns the words detected by this call, in detection order.
func (s *Session) ProcessTranscript(text string) []string {
	if s.status != StatusPlaying || strings.TrimSpace(text) == "" {
		return nil
	}
	return s.fill(s.scan(text))
}

// boundaryWords is how many trailing words of the previous final transcript
// are rescanned with each delta. The longest card phrase or alias is five
// words, so four words of overlap catch any phrase split across updates.
const boundaryWords = 4

// IngestFinal accepts the whole finalized transcript so far and processes
// only what is new since the previous call, plus the few words before it
// so a phrase split across two updates ("circle" | "back") still matches.
// Words heard entirely before the delta are never re-detected. A transcript
// that does not extend the previous one is treated as entirely new.
func (s *Session) IngestFinal(finalText string) []string {
	prev := s.lastFinal
	s.lastFinal = finalText
	if !strings.HasPrefix(finalText, prev) {
		return s.ProcessTranscript(finalText)
	}
	delta := finalText[len(prev):]
	if s.status != StatusPlaying || strings.TrimSpace(delta) == "" {
		return nil
	}
	tail := lastWords(prev, boundaryWords)
	if strings.TrimSpace(tail) == "" {
		return s.fill(s.scan(delta))
	}

	old := toSet(s.scan(tail))
	fresh := toSet(s.scan(delta))
	var found []string
	for _, w := range s.scan(tail + delta) {
		key := strings.ToLower(w)
		_, inOld := old[key]
		_, inFresh := fresh[key]
		if !inOld || inFresh {
			found = append(found, w)
		}
	}
	return s.fill(found)
}

// scan returns the unfilled card words present in text.
func (s *Session) scan(text string) []string {
	filled := make(map[string]struct{})
	for _, row := range s.card.Squares {
		for _, sq := range row {
			if sq.IsFilled && !sq.IsFreeSpace {
				filled[strings.ToLower(sq.Word)] = struct{}{}
			}
		}
	}
	return detect.WordsWithAliases(text, s.card.Words, filled)
}

// fill auto-fills the squares of found, records them and re-evaluates.
func (s *Session) fill(found []string) []string {
	if len(found) == 0 {
		return nil
	}
	s.detected = append(s.detected, found...)

	hit := toSet(found)
	now := s.now()
	next := s.card.Clone()
	for r := range next.Squares {
		for c := range next.Squares[r] {
			sq := &next.Squares[r][c]
			if sq.IsFreeSpace || sq.IsFilled {
				continue
			}
			if _, ok := hit[strings.ToLower(sq.Word)]; ok {
				t := now
				sq.IsFilled = true
				sq.IsAutoFilled = true
				sq.FilledAt = &t
			}
		}
	}
	s.card = next

	log.Debug().Str("session", s.id).Strs("words", found).Msg("game: words detected")
	s.evaluate()
	return found
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}

// lastWords returns the suffix of s holding its last n space-separated words,
// byte for byte, so it can be joined with whatever followed it.
func lastWords(s string, n int) string {
	i := len(s)
	for ; n > 0; n-- {
		for i > 0 && isSpace(s[i-1]) {
			i--
		}
		if i == 0 {
			break
		}
		for i > 0 && !isSpace(s[i-1]) {
			i--
		}
	}
	return s[i:]
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }

// Reset discards the card and starts over in the same category. Daily
// sessions get the same daily card back. On error the session is unchanged.
func (s *Session) Reset() error {
	c, err := s.generate()
	if err != nil {
		return err
	}
	s.card = c
	s.status = StatusPlaying
	s.winning = nil
	s.detected = nil
	s.completedAt = nil
	s.startedAt = s.now()
	log.Info().Str("session", s.id).Str("category", string(s.category)).Msg("game: new card")
	return nil
}

// NewCard is an alias for Reset.
func (s *Session) NewCard() error { return s.Reset() }

// evaluate runs the line check and records a win.
func (s *Session) evaluate() {
	line := card.CheckForBingo(s.card)
	if line == nil {
		return
	}
	t := s.now()
	s.status = StatusWon
	s.winning = line
	s.completedAt = &t
	log.Info().
		Str("session", s.id).
		Str("category", string(s.category)).
		Str("line", string(line.Type)).
		Int("index", line.Index).
		Dur("elapsed", t.Sub(s.startedAt)).
		Msg("game: bingo")
}

// Snapshot returns a deep copy of the session state.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		ID:            s.id,
		Category:      s.category,
		Card:          s.card.Clone(),
		Status:        s.status,
		DetectedWords: append([]string{}, s.detected...),
		FilledCount:   card.CountFilled(s.card),
		StartedAt:     s.startedAt,
		DailyDate:     s.dailyDate,
		Transcript:    s.lastFinal,
	}
	if s.winning != nil {
		wl := *s.winning
		wl.Squares = append([]string(nil), wl.Squares...)
		snap.WinningLine = &wl
	}
	end := s.now()
	if s.completedAt != nil {
		t := *s.completedAt
		snap.CompletedAt = &t
		end = t
	}
	snap.ElapsedMs = end.Sub(s.startedAt).Milliseconds()
	if s.status == StatusPlaying {
		if c, ok := card.ClosestToWin(s.card); ok {
			snap.Closest = &c
		}
	}
	return snap
}
