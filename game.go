package main

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

const (
	dramaticThreshold  = 3
	minSpeedDelay      = 0.5
	maxSpeedDelay      = 1.5
	defaultSpeedDelay  = 1.0
	dramaticSpeedDelay = 1.5
	warMinimumCards    = 4
	turnCap            = 2000
)

type seat struct {
	id   string // transport session id, empty while disconnected
	name string
}

type seatStats struct {
	handsWon int
	warsWon  int
}

// WarGame is one two-player session. A single mutex guards all fields;
// helpers suffixed Locked expect it held. Hands are mutated only by the
// turn loop while the game is running - event handlers touch seats, speed
// and lifecycle flags only.
type WarGame struct {
	code     string
	registry *Registry

	mu         sync.Mutex
	seats      [2]seat
	hands      [2][]Card
	stats      [2]seatStats
	totalHands int
	baseDelay  float64
	inProgress bool
	gameOver   bool
	lastActive time.Time

	rng   *rand.Rand
	sleep func(time.Duration)
}

func newWarGame(code string, r *Registry) *WarGame {
	return &WarGame{
		code:       code,
		registry:   r,
		seats:      [2]seat{{name: "Player 1"}, {name: "Player 2"}},
		baseDelay:  defaultSpeedDelay,
		lastActive: time.Now(),
		rng:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		sleep:      time.Sleep,
	}
}

type joinStatus int

const (
	joinOK joinStatus = iota
	joinRoomFull
	joinGameOver
)

type joinOutcome struct {
	status    joinStatus
	seat      int
	occupants int
	running   bool
	names     [2]string
}

// join seats a session id. The same id rejoining its seat is a reconnect
// and updates the display name; a vacated seat may be claimed by any new
// id. Two distinct occupied seats mean the room is full.
func (g *WarGame) join(id, name string) joinOutcome {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.lastActive = time.Now()

	if g.gameOver {
		return joinOutcome{status: joinGameOver}
	}

	idx := g.seatOfLocked(id)
	if idx == -1 {
		for i := range g.seats {
			if g.seats[i].id == "" {
				idx = i
				break
			}
		}
	}
	if idx == -1 {
		return joinOutcome{status: joinRoomFull}
	}

	g.seats[idx].id = id
	if name != "" {
		g.seats[idx].name = name
	}

	return joinOutcome{
		status:    joinOK,
		seat:      idx,
		occupants: g.occupantsLocked(),
		running:   g.inProgress,
		names:     [2]string{g.seats[0].name, g.seats[1].name},
	}
}

// dropSeat vacates the seat held by id. A drop during a running game ends
// it immediately as a forfeit in favor of the remaining occupant.
func (g *WarGame) dropSeat(id string) (found bool, occupants int, running bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx := g.seatOfLocked(id)
	if idx == -1 {
		return false, g.occupantsLocked(), g.inProgress
	}

	g.seats[idx].id = ""
	g.lastActive = time.Now()

	if g.inProgress && !g.gameOver {
		g.endGameLocked(g.seats[idx].name + " disconnected.")
	}

	return true, g.occupantsLocked(), g.inProgress
}

func (g *WarGame) seatOf(id string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.seatOfLocked(id)
}

func (g *WarGame) seatOfLocked(id string) int {
	if id == "" {
		return -1
	}
	for i := range g.seats {
		if g.seats[i].id == id {
			return i
		}
	}
	return -1
}

func (g *WarGame) occupantsLocked() int {
	n := 0
	for i := range g.seats {
		if g.seats[i].id != "" {
			n++
		}
	}
	return n
}

// start deals a fresh shuffled deck, resets stats and the turn counter,
// and launches the turn loop. No-op unless both seats are occupied and the
// game is neither running nor finished; a finished room cannot be
// restarted, a new one must be created.
func (g *WarGame) start() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.lastActive = time.Now()

	if g.occupantsLocked() != 2 || g.inProgress || g.gameOver {
		logf(g.registry.cfg, "GAMES: Ignoring start for %s (in progress: %t, over: %t, occupants: %d)",
			g.code, g.inProgress, g.gameOver, g.occupantsLocked())
		return
	}

	logf(g.registry.cfg, "GAMES: Starting game %s", g.code)

	g.inProgress = true
	g.stats = [2]seatStats{}
	g.totalHands = 0

	deck := newDeck()
	shuffleDeck(deck, g.rng)
	hands := deal(deck, 2)
	g.hands[0], g.hands[1] = hands[0], hands[1]

	go g.run()
}

// endGameLocked flips the session to game-over, broadcasts the final state
// and schedules removal from the registry after the grace window.
func (g *WarGame) endGameLocked(message string) {
	if !g.inProgress || g.gameOver {
		return
	}

	logf(g.registry.cfg, "GAMES: Ending game %s: %s", g.code, message)

	g.inProgress = false
	g.gameOver = true
	g.broadcastLocked(message, nil, nil)

	go g.registry.removeAfter(g.code, g.registry.cfg.gracePeriod)
}

// changeSpeed adjusts the delay between animation steps, clamped to
// [0.5, 1.5] seconds in 0.1 increments.
func (g *WarGame) changeSpeed(delta float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	d := g.baseDelay + delta
	d = math.Min(math.Max(d, minSpeedDelay), maxSpeedDelay)
	g.baseDelay = math.Round(d*10) / 10

	logf(g.registry.cfg, "GAMES: Game %s speed changed to %gs", g.code, g.baseDelay)
	g.broadcastLocked(fmt.Sprintf("Speed set to %gs", g.baseDelay), nil, nil)
}

func (g *WarGame) idleSince() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.lastActive
}

func (g *WarGame) runningLocked() bool {
	return g.inProgress && !g.gameOver
}

// SeatStatsMessage is computed fresh from the live hand and cumulative
// counters at every broadcast.
type SeatStatsMessage struct {
	AcesCount  int     `json:"aces_count"`
	KingsCount int     `json:"kings_count"`
	HandsWon   int     `json:"hands_won"`
	WarsWon    int     `json:"wars_won"`
	WinPct     float64 `json:"win_pct"`
}

// GameStateMessage is the full-state snapshot every occupant-facing change
// is visible through.
type GameStateMessage struct {
	Type             string           `json:"type"` // "game_state_update"
	Player0Count     int              `json:"player_0_count"`
	Player1Count     int              `json:"player_1_count"`
	PlayPile         []Card           `json:"play_pile"`
	WarPile          []Card           `json:"war_pile"`
	Message          string           `json:"message"`
	CurrentDelay     float64          `json:"current_delay"`
	GameOver         bool             `json:"game_over"`
	Player0Stats     SeatStatsMessage `json:"player_0_stats"`
	Player1Stats     SeatStatsMessage `json:"player_1_stats"`
	TotalHandsPlayed int              `json:"total_hands_played"`
}

func (g *WarGame) snapshotLocked(message string, playPile, warPile []Card) GameStateMessage {
	if playPile == nil {
		playPile = []Card{}
	}
	if warPile == nil {
		warPile = []Card{}
	}
	return GameStateMessage{
		Type:             "game_state_update",
		Player0Count:     len(g.hands[0]),
		Player1Count:     len(g.hands[1]),
		PlayPile:         playPile,
		WarPile:          warPile,
		Message:          message,
		CurrentDelay:     g.baseDelay,
		GameOver:         g.gameOver,
		Player0Stats:     g.seatStatsLocked(0),
		Player1Stats:     g.seatStatsLocked(1),
		TotalHandsPlayed: g.totalHands,
	}
}

func (g *WarGame) seatStatsLocked(i int) SeatStatsMessage {
	var aces, kings int
	for _, c := range g.hands[i] {
		switch c.Rank {
		case 14:
			aces++
		case 13:
			kings++
		}
	}

	pct := 0.0
	if g.totalHands > 0 {
		pct = float64(g.stats[i].handsWon) / float64(g.totalHands) * 100
	}

	return SeatStatsMessage{
		AcesCount:  aces,
		KingsCount: kings,
		HandsWon:   g.stats[i].handsWon,
		WarsWon:    g.stats[i].warsWon,
		WinPct:     pct,
	}
}

func (g *WarGame) broadcastLocked(message string, playPile, warPile []Card) {
	g.lastActive = time.Now()
	if t := g.registry.transport; t != nil {
		t.toRoom(g.code, g.snapshotLocked(message, playPile, warPile))
	}
}

// sendCatchUp unicasts a full snapshot to a single reconnecting occupant
// instead of the whole room.
func (g *WarGame) sendCatchUp(id, message string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if t := g.registry.transport; t != nil {
		t.toClient(id, g.snapshotLocked(message, nil, nil))
	}
}
