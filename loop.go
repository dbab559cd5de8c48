package main

import (
	"fmt"
)

// run drives a session through turns until a winner, a draw, a forfeit or
// an internal fault. Any panic inside the loop is contained to this room:
// it is logged and turned into a generic game-over.
func (g *WarGame) run() {
	defer func() {
		if rec := recover(); rec != nil {
			logf(g.registry.cfg, "GAMES: Game loop error in %s: %v", g.code, rec)
			g.mu.Lock()
			g.endGameLocked("An unexpected error occurred.")
			g.mu.Unlock()
		}
	}()

	logf(g.registry.cfg, "GAMES: Game loop started for %s", g.code)
	for g.playTurn() {
	}
	logf(g.registry.cfg, "GAMES: Game loop finished for %s", g.code)
}

// pause suspends for d seconds, then reports whether the session is still
// running. The game-over flag is the single source of truth the loop polls;
// a disconnect forfeit flips it mid-suspension and the loop exits at the
// next check without further state mutation.
func (g *WarGame) pause(seconds float64) bool {
	g.sleep(secondsToDuration(seconds))

	g.mu.Lock()
	defer g.mu.Unlock()

	return g.runningLocked()
}

// playTurn runs one loop iteration and reports whether the loop should
// continue. Broadcasts always happen before the cards they show are folded
// back into a hand, so every running snapshot accounts for all 52 cards
// between the two hand counts and the visible piles.
func (g *WarGame) playTurn() bool {
	g.mu.Lock()
	if !g.runningLocked() {
		g.mu.Unlock()
		return false
	}

	g.totalHands++
	if g.totalHands > turnCap {
		g.endGameLocked(fmt.Sprintf("Game timed out (%d rounds). It's a draw!", turnCap))
		g.mu.Unlock()
		return false
	}

	if len(g.hands[0]) == 0 {
		g.endGameLocked(g.seats[1].name + " wins the game!")
		g.mu.Unlock()
		return false
	}
	if len(g.hands[1]) == 0 {
		g.endGameLocked(g.seats[0].name + " wins the game!")
		g.mu.Unlock()
		return false
	}

	dramatic := len(g.hands[0]) <= dramaticThreshold || len(g.hands[1]) <= dramaticThreshold
	delay := g.baseDelay
	msg := fmt.Sprintf("Turn %d", g.totalHands)
	if dramatic {
		delay = dramaticSpeedDelay
		msg = "Tension builds... low card warning!"
	}

	g.broadcastLocked(msg, nil, nil)
	g.mu.Unlock()
	if !g.pause(delay) {
		return false
	}

	g.mu.Lock()
	p0 := g.drawLocked(0)
	p1 := g.drawLocked(1)
	playPile := []Card{p0, p1}
	g.broadcastLocked("Players draw...", playPile, nil)
	g.mu.Unlock()
	if !g.pause(delay) {
		return false
	}

	g.mu.Lock()
	switch {
	case p0.Rank > p1.Rank:
		g.winHandLocked(0, playPile)
		g.mu.Unlock()
	case p1.Rank > p0.Rank:
		g.winHandLocked(1, playPile)
		g.mu.Unlock()
	default:
		g.broadcastLocked("It's WAR!", playPile, nil)
		g.mu.Unlock()
		if !g.pause(delay) {
			return false
		}
		if !g.resolveWar(playPile) {
			return false
		}
	}

	// Pause so clients see the outcome before the next turn.
	return g.pause(delay)
}

func (g *WarGame) drawLocked(idx int) Card {
	c := g.hands[idx][0]
	g.hands[idx] = g.hands[idx][1:]
	return c
}

func (g *WarGame) winHandLocked(winner int, playPile []Card) {
	g.stats[winner].handsWon++
	g.broadcastLocked(g.seats[winner].name+" wins the hand!", playPile, nil)
	g.hands[winner] = append(g.hands[winner], playPile...)
}

// resolveWar settles a tie. spoils holds every card currently at stake and
// grows as wars nest. Each side needs 4 cards to contest: 3 spoils revealed
// one pair at a time, then a battle card that decides the war. A side short
// of 4 cards forfeits the stake plus its whole remaining hand; the loop's
// next iteration then ends the game on the empty hand. Returns false when
// the session stopped running mid-war and the loop should exit.
func (g *WarGame) resolveWar(spoils []Card) bool {
	g.mu.Lock()

	if len(g.hands[0]) < warMinimumCards {
		g.forfeitWarLocked(0, spoils)
		g.mu.Unlock()
		return true
	}
	if len(g.hands[1]) < warMinimumCards {
		g.forfeitWarLocked(1, spoils)
		g.mu.Unlock()
		return true
	}

	warPile := make([]Card, 0, 8)

	for i := 1; i <= 3; i++ {
		warPile = append(warPile, g.drawLocked(0), g.drawLocked(1))
		g.broadcastLocked(fmt.Sprintf("War: Spoil card %d...", i), spoils, warPile)
		delay := g.baseDelay * 2
		g.mu.Unlock()
		if !g.pause(delay) {
			return false
		}
		g.mu.Lock()
	}

	b0 := g.drawLocked(0)
	b1 := g.drawLocked(1)
	warPile = append(warPile, b0, b1)
	g.broadcastLocked("War: BATTLE cards!", spoils, warPile)
	delay := g.baseDelay * 3
	g.mu.Unlock()
	if !g.pause(delay) {
		return false
	}

	g.mu.Lock()
	switch {
	case b0.Rank > b1.Rank:
		g.winWarLocked(0, spoils, warPile)
		g.mu.Unlock()
		return true
	case b1.Rank > b0.Rank:
		g.winWarLocked(1, spoils, warPile)
		g.mu.Unlock()
		return true
	default:
		g.broadcastLocked("ANOTHER WAR!", spoils, warPile)
		delay := g.baseDelay
		g.mu.Unlock()
		if !g.pause(delay) {
			return false
		}
		stake := make([]Card, 0, len(spoils)+len(warPile))
		stake = append(stake, spoils...)
		stake = append(stake, warPile...)
		return g.resolveWar(stake)
	}
}

func (g *WarGame) winWarLocked(winner int, spoils, warPile []Card) {
	g.stats[winner].handsWon++
	g.stats[winner].warsWon++
	g.broadcastLocked(g.seats[winner].name+" wins the WAR!", spoils, warPile)
	g.hands[winner] = append(g.hands[winner], spoils...)
	g.hands[winner] = append(g.hands[winner], warPile...)
}

// forfeitWarLocked hands the stake and the loser's whole remaining hand to
// the opponent when the loser cannot field a war.
func (g *WarGame) forfeitWarLocked(loser int, spoils []Card) {
	winner := 1 - loser
	g.stats[winner].handsWon++
	g.stats[winner].warsWon++
	g.broadcastLocked(fmt.Sprintf("%s doesn't have enough cards for war! %s wins!",
		g.seats[loser].name, g.seats[winner].name), nil, spoils)
	g.hands[winner] = append(g.hands[winner], spoils...)
	g.hands[winner] = append(g.hands[winner], g.hands[loser]...)
	g.hands[loser] = nil
}
