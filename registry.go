package main

import (
	"crypto/rand"
	"errors"
	"maps"
	"strings"
	"sync"
	"time"
)

// Room codes avoid visually confusable characters (no l/o/0/1/i) so they
// survive being read aloud or typed from a phone.
const (
	roomCodeAlphabet = "abcdefghjkmnpqrstuvwxyz23456789"
	roomCodeLength   = 4
)

var errNoTransport = errors.New("transport not attached")

// Registry owns the room-code-to-session mapping. It is constructed once at
// startup and injected into every handler; there is no ambient global state.
type Registry struct {
	cfg *Config

	mu        sync.Mutex
	games     map[string]*WarGame
	transport Transport
}

func newRegistry(cfg *Config) *Registry {
	return &Registry{
		cfg:   cfg,
		games: make(map[string]*WarGame),
	}
}

// attach wires in the delivery layer. Game creation fails until this has
// been called, so a session can never exist without a way to reach it.
func (r *Registry) attach(t Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.transport = t
}

func (r *Registry) createGame() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.transport == nil {
		return "", errNoTransport
	}

	code := r.newRoomCodeLocked()
	r.games[code] = newWarGame(code, r)
	logf(r.cfg, "GAMES: Created war game %s", code)

	return code, nil
}

// newRoomCodeLocked generates a crypto-random room code, retrying on
// collision with live games.
func (r *Registry) newRoomCodeLocked() string {
	for {
		buf := make([]byte, roomCodeLength)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, roomCodeLength)
		for i := range out {
			out[i] = roomCodeAlphabet[int(buf[i])%len(roomCodeAlphabet)]
		}
		code := string(out)
		if _, exists := r.games[code]; !exists {
			return code
		}
	}
}

// getGame is a pure lookup; codes are matched case-insensitively.
func (r *Registry) getGame(code string) *WarGame {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.games[strings.ToLower(code)]
}

// removeGame deletes the session and unsubscribes anyone still in its
// broadcast room. Idempotent.
func (r *Registry) removeGame(code string) {
	code = strings.ToLower(code)

	r.mu.Lock()
	_, ok := r.games[code]
	if ok {
		delete(r.games, code)
	}
	t := r.transport
	r.mu.Unlock()

	if !ok {
		return
	}
	if t != nil {
		t.closeRoom(code)
	}
	logf(r.cfg, "GAMES: Removed war game %s", code)
}

// removeAfter waits out the grace window before deleting the session, so
// clients can see the final state.
func (r *Registry) removeAfter(code string, d time.Duration) {
	time.Sleep(d)
	r.removeGame(code)
}

// dropSession handles a transport disconnect: it finds the room holding
// this session id (if any), vacates the seat, and deletes the room right
// away if it is now empty and no game is running.
func (r *Registry) dropSession(id string) {
	r.mu.Lock()
	games := make(map[string]*WarGame, len(r.games))
	maps.Copy(games, r.games)
	r.mu.Unlock()

	for code, g := range games {
		found, occupants, running := g.dropSeat(id)
		if !found {
			continue
		}
		logf(r.cfg, "GAMES: Client %s left %s", id, code)
		if occupants == 0 && !running {
			r.removeGame(code)
		}
		return
	}
}

// reaper periodically removes rooms that have been idle longer than the
// configured session timeout. Running games refresh their idle timestamp on
// every broadcast, so only abandoned rooms are collected.
func (r *Registry) reaper() {
	ticker := time.NewTicker(r.cfg.sessionTimeout / 2)
	for range ticker.C {
		cutoff := time.Now().Add(-r.cfg.sessionTimeout)

		r.mu.Lock()
		var stale []string
		for code, g := range r.games {
			if g.idleSince().Before(cutoff) {
				stale = append(stale, code)
			}
		}
		r.mu.Unlock()

		for _, code := range stale {
			logf(r.cfg, "GAMES: Reaping idle war game %s", code)
			r.removeGame(code)
		}
	}
}
