package daily

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/meeting-bingo/internal/vocab"
)

func TestDateKeyIsUTC(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	ts := time.Date(2026, 3, 5, 8, 0, 0, 0, loc) // 2026-03-04 22:00 UTC
	assert.Equal(t, "2026-03-04", DateKey(ts))
}

func TestSeedDependsOnEveryInput(t *testing.T) {
	a1, a2 := Seed("2026-03-04", "salt", vocab.Tech)
	b1, b2 := Seed("2026-03-04", "salt", vocab.Tech)
	assert.Equal(t, a1, b1)
	assert.Equal(t, a2, b2)

	for _, other := range [][2]uint64{
		pair(Seed("2026-03-05", "salt", vocab.Tech)),
		pair(Seed("2026-03-04", "pepper", vocab.Tech)),
		pair(Seed("2026-03-04", "salt", vocab.Agile)),
	} {
		assert.NotEqual(t, [2]uint64{a1, a2}, other)
	}
}

func pair(a, b uint64) [2]uint64 { return [2]uint64{a, b} }

func TestGeneratorIsDeterministic(t *testing.T) {
	first, err := Generator("2026-03-04", "salt", vocab.Corporate).Generate(vocab.Corporate)
	require.NoError(t, err)
	second, err := Generator("2026-03-04", "salt", vocab.Corporate).Generate(vocab.Corporate)
	require.NoError(t, err)
	assert.Equal(t, first.Words, second.Words)

	nextDay, err := Generator("2026-03-05", "salt", vocab.Corporate).Generate(vocab.Corporate)
	require.NoError(t, err)
	assert.NotEqual(t, first.Words, nextDay.Words)
}
