package main

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDeck(t *testing.T) {
	t.Parallel()

	deck := newDeck()
	require.Len(t, deck, 52)

	seen := make(map[Card]bool, 52)
	for _, c := range deck {
		assert.False(t, seen[c], "duplicate card %v", c)
		seen[c] = true
		assert.GreaterOrEqual(t, c.Rank, 2)
		assert.LessOrEqual(t, c.Rank, 14)
	}
}

func TestRankMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		face string
		rank int
	}{
		{"2", 2},
		{"10", 10},
		{"J", 11},
		{"Q", 12},
		{"K", 13},
		{"A", 14},
	}

	deck := newDeck()
	for _, tt := range tests {
		t.Run(tt.face, func(t *testing.T) {
			for _, c := range deck {
				if c.Face == tt.face {
					assert.Equal(t, tt.rank, c.Rank)
				}
			}
		})
	}
}

func TestDealPartition(t *testing.T) {
	t.Parallel()

	for seed := range uint64(10) {
		deck := newDeck()
		shuffleDeck(deck, rand.New(rand.NewPCG(seed, seed)))

		hands := deal(deck, 2)
		require.Len(t, hands, 2)
		assert.Len(t, hands[0], 26)
		assert.Len(t, hands[1], 26)

		// The union of both hands must be exactly the full deck.
		seen := make(map[Card]int, 52)
		for _, hand := range hands {
			for _, c := range hand {
				seen[c]++
			}
		}
		require.Len(t, seen, 52)
		for c, n := range seen {
			assert.Equal(t, 1, n, "card %v dealt %d times", c, n)
		}
	}
}

func TestDealPreservesDrawOrder(t *testing.T) {
	t.Parallel()

	deck := newDeck()
	hands := deal(deck, 2)

	for i, c := range deck {
		assert.Equal(t, c, hands[i%2][i/2])
	}
}

func TestShuffleDeterministic(t *testing.T) {
	t.Parallel()

	a := newDeck()
	b := newDeck()
	shuffleDeck(a, rand.New(rand.NewPCG(7, 11)))
	shuffleDeck(b, rand.New(rand.NewPCG(7, 11)))

	assert.Equal(t, a, b)
}
