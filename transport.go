package main

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// Transport is the delivery layer the registry and game sessions broadcast
// through. The production implementation is wsHub; tests substitute an
// in-memory recorder.
type Transport interface {
	toClient(id string, msg any)
	toRoom(room string, msg any)
	join(room, id string)
	leave(room, id string)
	closeRoom(room string)
}

type Client struct {
	conn *websocket.Conn
	send chan any
	id   string
}

// wsHub fans JSON messages out to websocket clients, grouped into named
// rooms. A client belongs to at most one room at a time.
type wsHub struct {
	mu      sync.Mutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client
}

func newWSHub() *wsHub {
	return &wsHub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
	}
}

func (h *wsHub) registerClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c.id] = c
}

// dropLocked removes a client from the hub and every room, and closes its
// send channel. Safe to call more than once for the same client.
func (h *wsHub) dropLocked(c *Client) {
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	for room, members := range h.rooms {
		if _, ok := members[c.id]; ok {
			delete(members, c.id)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	close(c.send)
}

func (h *wsHub) dropClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.dropLocked(c)
}

func (h *wsHub) toClient(id string, msg any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[id]
	if !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
		h.dropLocked(c)
	}
}

func (h *wsHub) toRoom(room string, msg any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.rooms[room] {
		select {
		case c.send <- msg:
		default:
			h.dropLocked(c)
		}
	}
}

func (h *wsHub) join(room, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[id]
	if !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[room] = members
	}
	members[id] = c
}

func (h *wsHub) leave(room, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// closeRoom unsubscribes everyone still in the room. Connections stay open
// so lingering clients can create or join another game.
func (h *wsHub) closeRoom(room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.rooms, room)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// newSessionID generates the per-connection session identifier.
func newSessionID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		log.Println("rand.Read error:", err)
		return ""
	}
	return hex.EncodeToString(buf)
}

func serveWS(cfg *Config, hub *wsHub, srv *warServer) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		id := newSessionID()
		if id == "" {
			http.Error(w, "unable to assign session id", http.StatusInternalServerError)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn: conn,
			send: make(chan any, 8),
			id:   id,
		}

		hub.registerClient(client)
		logf(cfg, "GAMES: Client %s connected from %s", id, realIP(r))

		go client.writePump()
		client.readPump(cfg, hub, srv)
	}
}

func (c *Client) readPump(cfg *Config, hub *wsHub, srv *warServer) {
	defer func() {
		hub.dropClient(c)
		srv.disconnect(c.id)
		_ = c.conn.Close()
		logf(cfg, "GAMES: Client %s disconnected", c.id)
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		srv.handleMessage(c.id, msg)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}
