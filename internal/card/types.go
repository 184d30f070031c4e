// internal/card/types.go
//
// Core type definitions for a bingo card.
// Defines:
//   - Square: one cell of the 5x5 grid.
//   - Card: the grid plus the flat list of placed words.
//   - WinningLine: a completed row, column or diagonal.

package card

import (
	"strconv"
	"time"
)

const (
	Size      = 5      // squares per side
	FreeRow   = 2      // row of the free space
	FreeCol   = 2      // column of the free space
	FreeWord  = "FREE" // word shown on the free space
	WordCount = Size*Size - 1
)

// Square is a single cell of the card.
type Square struct {
	ID           string     `json:"id"` // "row-col", e.g. "2-3"
	Row          int        `json:"row"`
	Col          int        `json:"col"`
	Word         string     `json:"word"`
	IsFilled     bool       `json:"isFilled"`
	IsAutoFilled bool       `json:"isAutoFilled"` // filled by speech detection
	IsFreeSpace  bool       `json:"isFreeSpace"`
	FilledAt     *time.Time `json:"filledAt"`
}

// Card is a complete 5x5 bingo card.
type Card struct {
	Squares [Size][Size]Square `json:"squares"`
	Words   []string           `json:"words"` // the 24 non-free words, for detection
}

// LineType is the kind of a winning line.
type LineType string

const (
	LineRow      LineType = "row"
	LineColumn   LineType = "column"
	LineDiagonal LineType = "diagonal"
)

// WinningLine describes a completed line.
// Index is 0–4 for rows and columns; for diagonals 0 is top-left→bottom-right
// and 1 is top-right→bottom-left.
type WinningLine struct {
	Type    LineType `json:"type"`
	Index   int      `json:"index"`
	Squares []string `json:"squares"`
}

// SquareID formats the identifier of the square at (row, col).
func SquareID(row, col int) string {
	return strconv.Itoa(row) + "-" + strconv.Itoa(col)
}

// Clone returns a deep copy of the card.
func (c Card) Clone() Card {
	out := c
	out.Words = append([]string(nil), c.Words...)
	for r := range out.Squares {
		for col := range out.Squares[r] {
			if t := out.Squares[r][col].FilledAt; t != nil {
				ts := *t
				out.Squares[r][col].FilledAt = &ts
			}
		}
	}
	return out
}

// Find locates a square by id. ok is false for unknown ids.
func (c Card) Find(id string) (row, col int, ok bool) {
	for r := range c.Squares {
		for col := range c.Squares[r] {
			if c.Squares[r][col].ID == id {
				return r, col, true
			}
		}
	}
	return 0, 0, false
}
