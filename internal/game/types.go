// internal/game/types.go
//
// Core type definitions for the bingo game engine.
// Defines:
//   - Status: playing or won.
//   - Snapshot: read-only view of a session, also the persisted form.

package game

import (
	"time"

	"github.com/robalobadob/meeting-bingo/internal/card"
	"github.com/robalobadob/meeting-bingo/internal/vocab"
)

// Status is the coarse state of a session.
//   - "playing": squares can still be filled.
//   - "won":     a line is complete; fill state is frozen until Reset.
type Status string

const (
	StatusPlaying Status = "playing"
	StatusWon     Status = "won"
)

// Snapshot is a copy of a session's state. Mutating it never affects the session.
type Snapshot struct {
	ID            string            `json:"id"`
	Category      vocab.CategoryID  `json:"category"`
	Card          card.Card         `json:"card"`
	Status        Status            `json:"status"`
	WinningLine   *card.WinningLine `json:"winningLine"`
	DetectedWords []string          `json:"detectedWords"` // chronological, may repeat across calls
	FilledCount   int               `json:"filledCount"`
	Closest       *card.Closest     `json:"closest,omitempty"` // nil once won or when nothing is close
	StartedAt     time.Time         `json:"startedAt"`
	CompletedAt   *time.Time        `json:"completedAt,omitempty"`
	ElapsedMs     int64             `json:"elapsedMs"`
	DailyDate     string            `json:"dailyDate,omitempty"` // YYYY-MM-DD for daily cards
	Transcript    string            `json:"transcript"`          // last finalized transcript seen
}
