/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const (
	sendQueueSize  = 32
	maxMessageSize = 64 << 10
	minSweepPeriod = 10 * time.Millisecond
)

var errHubStopped = errors.New("hub stopped")

// Client is one websocket connection and its session state. roomID,
// playerID and playerSeq are only read or written from the hub goroutine.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	roomID    string
	playerID  string
	playerSeq uint64
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendQueueSize),
	}
}

type inbound struct {
	client *Client
	data   []byte
}

// Hub serialises every session event for every room. All room and player
// state is owned by the goroutine running Hub.run.
type Hub struct {
	cfg     *Config
	rooms   *Registry
	clients map[*Client]struct{}

	register chan *Client
	unreg    chan *Client
	messages chan inbound
	queries  chan func()

	done chan struct{}
}

func newHub(cfg *Config) *Hub {
	return &Hub{
		cfg:      cfg,
		rooms:    newRegistry(),
		clients:  make(map[*Client]struct{}),
		register: make(chan *Client),
		unreg:    make(chan *Client),
		messages: make(chan inbound),
		queries:  make(chan func()),
		done:     make(chan struct{}),
	}
}

func (h *Hub) run(ctx context.Context) {
	defer close(h.done)

	var sweep <-chan time.Time
	if h.cfg.roomTimeout > 0 {
		ticker := time.NewTicker(sweepPeriod(h.cfg.roomTimeout))
		defer ticker.Stop()

		sweep = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			h.closeAll()

			return

		case c := <-h.register:
			h.connect(c)

		case c := <-h.unreg:
			h.disconnect(c)

		case m := <-h.messages:
			h.handleMessage(m.client, m.data)

		case q := <-h.queries:
			q()

		case now := <-sweep:
			for _, id := range h.rooms.prune(now.Add(-h.cfg.roomTimeout)) {
				logf(h.cfg, "ROOMS: Pruned idle room %q", id)
			}
		}
	}
}

// sweepPeriod is how often idle rooms are checked for a given timeout.
func sweepPeriod(roomTimeout time.Duration) time.Duration {
	return max(roomTimeout/2, minSweepPeriod)
}

func (h *Hub) connect(c *Client) {
	h.clients[c] = struct{}{}

	logf(h.cfg, "ROOMS: Connection %s opened", c.id)
}

// disconnect drops the client and, if it registered a player, removes that
// player from its room.
func (h *Hub) disconnect(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	delete(h.clients, c)
	close(c.send)

	logf(h.cfg, "ROOMS: Connection %s closed", c.id)

	h.leave(c, true)
}

// leave removes the session's player from its room, optionally announcing the
// new leaderboard. The session keeps its room binding. An entry that another
// session has since registered under the same id is not touched.
func (h *Hub) leave(c *Client, announce bool) {
	if c.playerID == "" || c.roomID == "" {
		return
	}

	playerID, roomID, seq := c.playerID, c.roomID, c.playerSeq
	c.playerID, c.playerSeq = "", 0

	room, ok := h.rooms.get(roomID)
	if !ok || !room.release(playerID, seq) {
		return
	}

	logf(h.cfg, "ROOMS: Player %q left %q", playerID, roomID)

	if announce {
		h.publishLeaderboard(roomID)
	}
}

func (h *Hub) handleMessage(c *Client, data []byte) {
	ev, err := decodeEvent(data)
	if err != nil {
		logf(h.cfg, "ROOMS: Dropped malformed message from %s: %v", c.id, err)

		return
	}

	h.handle(c, ev)
}

func (h *Hub) handle(c *Client, ev Event) {
	switch ev := ev.(type) {
	case joinEvent:
		if ev.RoomID != c.roomID {
			h.leave(c, true)
		}

		h.rooms.ensure(ev.RoomID)
		c.roomID = ev.RoomID

		logf(h.cfg, "ROOMS: Connection %s joined %q", c.id, ev.RoomID)

	case registerEvent:
		roomID := ev.RoomID
		if roomID == "" {
			roomID = h.cfg.defaultRoom
		}

		switch {
		case c.roomID != roomID:
			h.leave(c, true)
		case c.playerID != ev.PlayerID:
			h.leave(c, false)
		}

		room := h.rooms.ensure(roomID)
		player := room.register(ev.PlayerID, ev.Name)

		c.roomID = roomID
		c.playerID = ev.PlayerID
		c.playerSeq = player.seq

		logf(h.cfg, "ROOMS: Player %q (%s) registered in %q", ev.Name, ev.PlayerID, roomID)

		h.publishLeaderboard(roomID)

	case updateEvent:
		room, ok := h.boundRoom(c)
		if !ok || !room.update(ev.PlayerID, ev.Score, ev.Bingo, ev.Rows) {
			return
		}

		h.publishLeaderboard(room.id)

	case resetEvent:
		room, ok := h.boundRoom(c)
		if !ok || !room.reset(ev.PlayerID) {
			return
		}

		h.publishLeaderboard(room.id)

	case ignoredEvent:
		logf(h.cfg, "ROOMS: Ignored message of type %q from %s", ev.Type, c.id)
	}
}

func (h *Hub) boundRoom(c *Client) (*Room, bool) {
	if c.roomID == "" {
		return nil, false
	}

	return h.rooms.get(c.roomID)
}

func (h *Hub) publishLeaderboard(roomID string) {
	var players []Player
	if room, ok := h.rooms.get(roomID); ok {
		players = room.leaderboard()
	}

	payload, err := encodeLeaderboard(players)
	if err != nil {
		logErr(err)

		return
	}

	h.broadcast(roomID, payload)
}

// broadcast queues payload for every client bound to roomID and returns how
// many accepted it. A client whose queue is full misses this message only.
func (h *Hub) broadcast(roomID string, payload []byte) int {
	delivered := 0

	for c := range h.clients {
		if c.roomID != roomID {
			continue
		}

		select {
		case c.send <- payload:
			delivered++
		default:
			logf(h.cfg, "ROOMS: Send queue full for %s, dropping message", c.id)
		}
	}

	return delivered
}

// closeAll disconnects every client (used on shutdown).
func (h *Hub) closeAll() {
	for c := range h.clients {
		close(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
		delete(h.clients, c)
	}
}

// roomSummaries lists every room along with the ids of the connections bound
// to it.
func (h *Hub) roomSummaries() []RoomSummary {
	out := h.rooms.summaries()

	bound := make(map[string][]string, len(out))
	for c := range h.clients {
		if c.roomID != "" {
			bound[c.roomID] = append(bound[c.roomID], c.id)
		}
	}

	for i := range out {
		out[i].Connections = cloneOrEmpty(bound[out[i].ID])
		slices.Sort(out[i].Connections)
	}

	return out
}

// summaries asks the hub goroutine for a snapshot of its rooms.
func (h *Hub) summaries(ctx context.Context) ([]RoomSummary, error) {
	reply := make(chan []RoomSummary, 1)

	select {
	case h.queries <- func() { reply <- h.roomSummaries() }:
	case <-h.done:
		return nil, errHubStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func serveWS(cfg *Config, h *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ROOMS: Upgrade failed for %s: %v", realIP(r), err)

			return
		}

		client := newClient(conn)

		select {
		case h.register <- client:
		case <-h.done:
			_ = conn.Close()

			return
		}

		logf(cfg, "SERVE: Websocket %s to %s", client.id, realIP(r))

		go client.writePump()
		client.readPump(h)
	}
}

func (c *Client) readPump(h *Hub) {
	c.conn.SetReadLimit(maxMessageSize)

	defer func() {
		select {
		case h.unreg <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		select {
		case h.messages <- inbound{client: c, data: data}:
		case <-h.done:
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))

		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
