package main

import (
	"fmt"
	"strings"

	"github.com/julienschmidt/httprouter"
)

// Messages coming from clients
type ClientMessage struct {
	Type     string  `json:"type"`                // "create_game", "join_game", "start_game", "change_speed"
	RoomCode string  `json:"room_code,omitempty"` // join_game / start_game / change_speed
	Username string  `json:"username,omitempty"`  // join_game
	Change   float64 `json:"change,omitempty"`    // change_speed
}

// Messages sent to clients
type GameCreatedMessage struct {
	Type     string `json:"type"` // "game_created"
	RoomCode string `json:"room_code"`
}

type YouJoinedMessage struct {
	Type        string `json:"type"` // "you_joined"
	PlayerIndex int    `json:"player_index"`
}

// Sent to a single client when a join is rejected.
type JoinErrorMessage struct {
	Type    string `json:"type"`    // "join_error"
	Message string `json:"message"` // user-facing text
}

type RoomNames struct {
	P0 string `json:"p0"`
	P1 string `json:"p1"`
}

type PlayersReadyMessage struct {
	Type    string    `json:"type"` // "players_ready"
	Message string    `json:"message"`
	Names   RoomNames `json:"names"`
}

// SimpleMessage is for generic notifications ("status_update",
// "show_start_button", "error").
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// warServer translates inbound transport events into registry and session
// operations. Handlers never mutate hands; the turn loop owns those.
type warServer struct {
	cfg      *Config
	registry *Registry
}

func (s *warServer) handleMessage(id string, msg ClientMessage) {
	switch msg.Type {
	case "create_game":
		s.handleCreate(id)
	case "join_game":
		s.handleJoin(id, msg)
	case "start_game":
		s.handleStart(id, msg)
	case "change_speed":
		s.handleChangeSpeed(id, msg)
	default:
		// ignore unknown types
	}
}

func (s *warServer) disconnect(id string) {
	s.registry.dropSession(id)
}

func (s *warServer) handleCreate(id string) {
	code, err := s.registry.createGame()
	if err != nil {
		logf(s.cfg, "GAMES: Failed to create game for %s: %v", id, err)
		s.registry.transport.toClient(id, SimpleMessage{Type: "error", Message: "Failed to create game."})
		return
	}
	s.registry.transport.toClient(id, GameCreatedMessage{Type: "game_created", RoomCode: code})
}

func (s *warServer) handleJoin(id string, msg ClientMessage) {
	if msg.RoomCode == "" || msg.Username == "" {
		logf(s.cfg, "GAMES: Join request from %s missing room code or username", id)
		return
	}

	code := strings.ToLower(msg.RoomCode)
	t := s.registry.transport

	g := s.registry.getGame(code)
	if g == nil {
		logf(s.cfg, "GAMES: Client %s tried to join non-existent room %s", id, code)
		t.toClient(id, JoinErrorMessage{Type: "join_error", Message: "Game not found. It may have expired."})
		return
	}

	out := g.join(id, msg.Username)
	switch out.status {
	case joinGameOver:
		t.toClient(id, JoinErrorMessage{Type: "join_error", Message: "This game has already finished."})
		return
	case joinRoomFull:
		logf(s.cfg, "GAMES: Client %s tried to join full room %s", id, code)
		t.toClient(id, JoinErrorMessage{Type: "join_error", Message: "This game is already full."})
		return
	}

	t.join(code, id)
	t.toClient(id, YouJoinedMessage{Type: "you_joined", PlayerIndex: out.seat})
	logf(s.cfg, "GAMES: Player %q joined %s as player %d", msg.Username, code, out.seat+1)

	names := RoomNames{P0: out.names[0], P1: out.names[1]}

	switch {
	case out.occupants == 2 && out.running:
		// Reconnection into a running game: sync the rejoining client
		// without restarting anything.
		t.toRoom(code, PlayersReadyMessage{
			Type:    "players_ready",
			Message: fmt.Sprintf("Game in progress. %s reconnected.", msg.Username),
			Names:   names,
		})
		g.sendCatchUp(id, fmt.Sprintf("%s joined running game.", msg.Username))
	case out.occupants == 2:
		t.toRoom(code, PlayersReadyMessage{
			Type:    "players_ready",
			Message: "Both players are in the room. Press Start to begin!",
			Names:   names,
		})
		t.toRoom(code, SimpleMessage{Type: "show_start_button"})
	default:
		t.toClient(id, SimpleMessage{Type: "status_update", Message: "Waiting for Player 2 to join..."})
	}
}

func (s *warServer) handleStart(id string, msg ClientMessage) {
	if msg.RoomCode == "" {
		return
	}

	g := s.registry.getGame(msg.RoomCode)
	if g == nil {
		logf(s.cfg, "GAMES: Start request from %s for non-existent room %s", id, msg.RoomCode)
		return
	}
	if g.seatOf(id) == -1 {
		logf(s.cfg, "GAMES: Client %s tried to start game %s they aren't in", id, msg.RoomCode)
		return
	}

	g.start()
}

func (s *warServer) handleChangeSpeed(id string, msg ClientMessage) {
	if msg.RoomCode == "" {
		return
	}

	g := s.registry.getGame(msg.RoomCode)
	if g == nil {
		logf(s.cfg, "GAMES: Speed request from %s for non-existent room %s", id, msg.RoomCode)
		return
	}
	if g.seatOf(id) == -1 {
		logf(s.cfg, "GAMES: Client %s tried to change speed for game %s they aren't in", id, msg.RoomCode)
		return
	}

	g.changeSpeed(msg.Change)
}

// registerWarGame sets up routes so that:
//   - $path                  → game client
//   - $path/:roomcode        → game client for a specific room
//   - $path/:roomcode/qr     → PNG QR code for that room URL
//   - /ws                    → WebSocket carrying all game events
func registerWarGame(cfg *Config, path string, mux *httprouter.Router) {
	registry := newRegistry(cfg)
	hub := newWSHub()
	registry.attach(hub)

	if cfg.sessionTimeout > 0 {
		go registry.reaper()
	}

	srv := &warServer{cfg: cfg, registry: registry}

	mux.GET(cfg.prefix+path, serveWarPage(cfg))
	mux.GET(cfg.prefix+path+"/:roomcode", serveWarPage(cfg))
	mux.GET(cfg.prefix+path+"/:roomcode/qr", qrHandler)
	mux.GET(cfg.prefix+"/ws", serveWS(cfg, hub, srv))
}
