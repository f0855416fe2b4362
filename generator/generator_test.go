package generator

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_Defaults(t *testing.T) {
	g := New(Config{Seed: 1})
	msg := g.Message()

	assert.True(t, msg.Text)
	assert.Len(t, msg.Body, DefaultBodySize)
	// HeaderCount headers plus message-id.
	assert.Len(t, msg.Header, DefaultHeaderCount+1)
	assert.NotEmpty(t, msg.Header["message-id"])
}

func TestGenerator_TextBodiesAreValidUTF8(t *testing.T) {
	g := New(Config{BodySize: 64, Seed: 2})
	for i := 0; i < 20; i++ {
		msg := g.Message()
		assert.True(t, utf8.Valid(msg.Body))
	}
}

func TestGenerator_BinaryBodies(t *testing.T) {
	g := New(Config{BodySize: 128, Binary: true, Seed: 3})
	msg := g.Message()

	assert.False(t, msg.Text)
	assert.Len(t, msg.Body, 128)
}

func TestGenerator_Spread(t *testing.T) {
	g := New(Config{BodySize: 100, BodySpread: 50, Seed: 4})

	sizes := make(map[int]bool)
	for i := 0; i < 50; i++ {
		msg := g.Message()
		n := len(msg.Body)
		require.GreaterOrEqual(t, n, 50)
		require.LessOrEqual(t, n, 150)
		sizes[n] = true
	}
	// With a 101-wide window 50 draws should not collapse to one size.
	assert.Greater(t, len(sizes), 1)
}

func TestGenerator_SpreadNeverNegative(t *testing.T) {
	g := New(Config{BodySize: 5, BodySpread: 100, Seed: 5})
	for i := 0; i < 20; i++ {
		msg := g.Message()
		assert.GreaterOrEqual(t, len(msg.Body), 0)
	}
}

func TestGenerator_DeterministicUnderSeed(t *testing.T) {
	a := New(Config{BodySize: 32, HeaderCount: 3, Seed: 42})
	b := New(Config{BodySize: 32, HeaderCount: 3, Seed: 42})

	for i := 0; i < 10; i++ {
		ma, mb := a.Message(), b.Message()
		assert.True(t, ma.Equal(mb))
	}
}

func TestGenerator_DistinctSeedsDiffer(t *testing.T) {
	a := New(Config{BodySize: 32, Seed: 1})
	b := New(Config{BodySize: 32, Seed: 2})

	assert.False(t, a.Message().Equal(b.Message()))
}

func TestGenerator_UniqueMessageIDs(t *testing.T) {
	g := New(Config{BodySize: 8, Seed: 6})
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := g.Message().Header["message-id"]
		require.False(t, seen[id])
		seen[id] = true
	}
}

func TestGenerator_NegativeHeaderCountMeansNone(t *testing.T) {
	g := New(Config{BodySize: 8, HeaderCount: -1, Seed: 3})

	msg := g.Message()
	require.Len(t, msg.Header, 1)
	assert.Contains(t, msg.Header, "message-id")
}
