package main

import (
	"math/rand/v2"
)

var (
	suits = []string{"♠", "♥", "♦", "♣"}
	faces = []string{"2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A"}
)

// Card is a single playing card. Rank runs 2-14, with J=11, Q=12, K=13
// and A=14; Face keeps the original label for display.
type Card struct {
	Suit string `json:"suit"`
	Face string `json:"value"`
	Rank int    `json:"rank"`
}

// newDeck returns all 52 distinct (suit, face) pairs in a fixed order.
func newDeck() []Card {
	deck := make([]Card, 0, len(suits)*len(faces))
	for _, s := range suits {
		for i, f := range faces {
			deck = append(deck, Card{Suit: s, Face: f, Rank: i + 2})
		}
	}
	return deck
}

func shuffleDeck(deck []Card, rng *rand.Rand) {
	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
}

// deal splits the deck round-robin into n hands, preserving the relative
// draw order within each hand.
func deal(deck []Card, n int) [][]Card {
	hands := make([][]Card, n)
	for i, c := range deck {
		hands[i%n] = append(hands[i%n], c)
	}
	return hands
}
