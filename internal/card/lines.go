// internal/card/lines.go
//
// Line-win evaluation.
//
// The twelve lines are always enumerated in the same order:
// rows 0→4, columns 0→4, main diagonal, anti diagonal. CheckForBingo returns
// the first complete line in that order, so simultaneous completions resolve
// to the same result every time.

package card

import "strconv"

// line is one of the twelve scoring lines.
type line struct {
	typ   LineType
	index int
	name  string
	cells [Size][2]int
}

var allLines = buildLines()

func buildLines() []line {
	out := make([]line, 0, 2*Size+2)
	for r := 0; r < Size; r++ {
		l := line{typ: LineRow, index: r, name: "Row " + strconv.Itoa(r+1)}
		for i := 0; i < Size; i++ {
			l.cells[i] = [2]int{r, i}
		}
		out = append(out, l)
	}
	for c := 0; c < Size; c++ {
		l := line{typ: LineColumn, index: c, name: "Column " + strconv.Itoa(c+1)}
		for i := 0; i < Size; i++ {
			l.cells[i] = [2]int{i, c}
		}
		out = append(out, l)
	}
	diag := line{typ: LineDiagonal, index: 0, name: "Diagonal ↘"}
	anti := line{typ: LineDiagonal, index: 1, name: "Diagonal ↙"}
	for i := 0; i < Size; i++ {
		diag.cells[i] = [2]int{i, i}
		anti.cells[i] = [2]int{i, Size - 1 - i}
	}
	return append(out, diag, anti)
}

func (l line) filled(c Card) int {
	n := 0
	for _, rc := range l.cells {
		if c.Squares[rc[0]][rc[1]].IsFilled {
			n++
		}
	}
	return n
}

func (l line) ids() []string {
	out := make([]string, 0, Size)
	for _, rc := range l.cells {
		out = append(out, SquareID(rc[0], rc[1]))
	}
	return out
}

// CheckForBingo returns the first fully filled line, or nil.
func CheckForBingo(c Card) *WinningLine {
	for _, l := range allLines {
		if l.filled(c) == Size {
			return &WinningLine{Type: l.typ, Index: l.index, Squares: l.ids()}
		}
	}
	return nil
}

// CountFilled tallies filled squares, free space included.
func CountFilled(c Card) int {
	n := 0
	for r := range c.Squares {
		for col := range c.Squares[r] {
			if c.Squares[r][col].IsFilled {
				n++
			}
		}
	}
	return n
}

// Closest is the line nearest to completion.
type Closest struct {
	Needed int    `json:"needed"`
	Line   string `json:"line"`
}

// ClosestToWin returns the line needing the fewest additional squares.
// Ties go to the earliest line in scan order. ok is false when no line has
// between 1 and 4 squares left to fill.
func ClosestToWin(c Card) (Closest, bool) {
	best := Closest{Needed: Size}
	for _, l := range allLines {
		needed := Size - l.filled(c)
		if needed > 0 && needed < best.Needed {
			best = Closest{Needed: needed, Line: l.name}
		}
	}
	if best.Needed >= Size {
		return Closest{}, false
	}
	return best, true
}
