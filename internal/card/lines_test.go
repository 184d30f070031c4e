package card

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/meeting-bingo/internal/vocab"
)

func freshCard(t *testing.T) Card {
	t.Helper()
	c, err := Generate(vocab.Corporate)
	require.NoError(t, err)
	return c
}

func fill(c *Card, cells ...[2]int) {
	for _, rc := range cells {
		c.Squares[rc[0]][rc[1]].IsFilled = true
	}
}

func TestCheckForBingoFreshCard(t *testing.T) {
	c := freshCard(t)
	assert.Nil(t, CheckForBingo(c))
	assert.Equal(t, 1, CountFilled(c))
}

func TestCheckForBingoRowBeatsColumn(t *testing.T) {
	c := freshCard(t)
	for i := 0; i < Size; i++ {
		fill(&c, [2]int{0, i}, [2]int{i, 0})
	}

	win := CheckForBingo(c)
	require.NotNil(t, win)
	assert.Equal(t, LineRow, win.Type)
	assert.Equal(t, 0, win.Index)
	assert.Equal(t, []string{"0-0", "0-1", "0-2", "0-3", "0-4"}, win.Squares)
}

func TestCheckForBingoColumn(t *testing.T) {
	c := freshCard(t)
	for i := 0; i < Size; i++ {
		fill(&c, [2]int{i, 3})
	}

	win := CheckForBingo(c)
	require.NotNil(t, win)
	assert.Equal(t, LineColumn, win.Type)
	assert.Equal(t, 3, win.Index)
	assert.Equal(t, []string{"0-3", "1-3", "2-3", "3-3", "4-3"}, win.Squares)
}

func TestCheckForBingoDiagonals(t *testing.T) {
	c := freshCard(t)
	fill(&c, [2]int{0, 4}, [2]int{1, 3}, [2]int{3, 1}, [2]int{4, 0})
	win := CheckForBingo(c)
	require.NotNil(t, win)
	assert.Equal(t, LineDiagonal, win.Type)
	assert.Equal(t, 1, win.Index)
	assert.Equal(t, []string{"0-4", "1-3", "2-2", "3-1", "4-0"}, win.Squares)

	fill(&c, [2]int{0, 0}, [2]int{1, 1}, [2]int{3, 3}, [2]int{4, 4})
	win = CheckForBingo(c)
	require.NotNil(t, win)
	assert.Equal(t, 0, win.Index, "main diagonal is checked before the anti diagonal")
}

func TestCheckForBingoIncompleteLine(t *testing.T) {
	c := freshCard(t)
	fill(&c, [2]int{1, 0}, [2]int{1, 1}, [2]int{1, 2}, [2]int{1, 3})
	assert.Nil(t, CheckForBingo(c))
	assert.Equal(t, 5, CountFilled(c))
}

func TestClosestToWin(t *testing.T) {
	c := freshCard(t)

	// Only the free space is filled: row 3, column 3 and both diagonals
	// need four; row 3 comes first.
	got, ok := ClosestToWin(c)
	require.True(t, ok)
	assert.Equal(t, Closest{Needed: 4, Line: "Row 3"}, got)

	fill(&c, [2]int{0, 4}, [2]int{1, 4}, [2]int{2, 4})
	got, ok = ClosestToWin(c)
	require.True(t, ok)
	assert.Equal(t, Closest{Needed: 2, Line: "Column 5"}, got)

	fill(&c, [2]int{0, 0}, [2]int{1, 1}, [2]int{3, 3})
	got, ok = ClosestToWin(c)
	require.True(t, ok)
	assert.Equal(t, Closest{Needed: 1, Line: "Diagonal ↘"}, got)
}

func TestClosestToWinNone(t *testing.T) {
	var c Card
	_, ok := ClosestToWin(c)
	assert.False(t, ok)
}
