/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"cmp"
	"encoding/json"
	"slices"
	"time"
)

const leaderboardSize = 10

// Lines records which rows, columns and diagonals of a board a player has
// completed. Line ids are opaque and kept exactly as the client sent them.
type Lines struct {
	Horizontal []json.RawMessage `json:"horizontal"`
	Vertical   []json.RawMessage `json:"vertical"`
	Diagonal   []json.RawMessage `json:"diagonal"`
}

// normalized returns a copy with nil sets replaced by empty ones, so they
// encode as [] rather than null.
func (l Lines) normalized() Lines {
	return Lines{
		Horizontal: cloneOrEmpty(l.Horizontal),
		Vertical:   cloneOrEmpty(l.Vertical),
		Diagonal:   cloneOrEmpty(l.Diagonal),
	}
}

func cloneOrEmpty[S ~[]E, E any](s S) S {
	if s == nil {
		return S{}
	}
	return slices.Clone(s)
}

type Player struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
	Bingo bool   `json:"bingo"`
	Rows  Lines  `json:"rows"`

	seq uint64
}

// Room holds the players registered under one room id. Rooms are only ever
// touched from the hub goroutine.
type Room struct {
	id         string
	players    map[string]*Player
	nextSeq    uint64
	lastActive time.Time
}

func newRoom(id string) *Room {
	return &Room{
		id:         id,
		players:    make(map[string]*Player),
		lastActive: time.Now(),
	}
}

// register inserts a fresh player, replacing any existing entry with the same id.
func (r *Room) register(playerID, name string) *Player {
	r.nextSeq++
	r.lastActive = time.Now()

	p := &Player{
		ID:   playerID,
		Name: name,
		Rows: Lines{}.normalized(),
		seq:  r.nextSeq,
	}
	r.players[playerID] = p

	return p
}

func (r *Room) update(playerID string, score int, bingo bool, rows Lines) bool {
	p, ok := r.players[playerID]
	if !ok {
		return false
	}

	r.lastActive = time.Now()

	p.Score = score
	p.Bingo = bingo
	p.Rows = rows.normalized()

	return true
}

func (r *Room) reset(playerID string) bool {
	return r.update(playerID, 0, false, Lines{})
}

func (r *Room) remove(playerID string) bool {
	if _, ok := r.players[playerID]; !ok {
		return false
	}

	r.lastActive = time.Now()
	delete(r.players, playerID)

	return true
}

// release removes playerID only if the entry is still the one created by the
// registration numbered seq. A newer registration under the same id belongs to
// another session and is left alone.
func (r *Room) release(playerID string, seq uint64) bool {
	p, ok := r.players[playerID]
	if !ok || p.seq != seq {
		return false
	}

	return r.remove(playerID)
}

func (r *Room) has(playerID string) bool {
	_, ok := r.players[playerID]
	return ok
}

func (r *Room) len() int {
	return len(r.players)
}

// leaderboard ranks players by score, highest first. Equal scores keep
// registration order. At most leaderboardSize entries are returned.
func (r *Room) leaderboard() []Player {
	ranked := make([]Player, 0, len(r.players))
	for _, p := range r.players {
		ranked = append(ranked, *p)
	}

	slices.SortFunc(ranked, func(a, b Player) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})

	if len(ranked) > leaderboardSize {
		ranked = ranked[:leaderboardSize]
	}

	return ranked
}

type RoomSummary struct {
	ID          string    `json:"id"`
	Players     int       `json:"players"`
	Connections []string  `json:"connections"`
	LastActive  time.Time `json:"last_active"`
}

// Registry maps room ids to rooms for the lifetime of the hub.
type Registry struct {
	rooms map[string]*Room
}

func newRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
	}
}

// ensure returns the room for id, creating it if it does not exist yet.
func (g *Registry) ensure(id string) *Room {
	room, ok := g.rooms[id]
	if !ok {
		room = newRoom(id)
		g.rooms[id] = room
	}

	room.lastActive = time.Now()

	return room
}

func (g *Registry) get(id string) (*Room, bool) {
	room, ok := g.rooms[id]
	return room, ok
}

func (g *Registry) len() int {
	return len(g.rooms)
}

// prune drops rooms without players that have been idle since before cutoff,
// returning the ids it removed.
func (g *Registry) prune(cutoff time.Time) []string {
	var pruned []string

	for id, room := range g.rooms {
		if room.len() > 0 || !room.lastActive.Before(cutoff) {
			continue
		}

		delete(g.rooms, id)
		pruned = append(pruned, id)
	}

	slices.Sort(pruned)

	return pruned
}

func (g *Registry) summaries() []RoomSummary {
	out := make([]RoomSummary, 0, len(g.rooms))
	for id, room := range g.rooms {
		out = append(out, RoomSummary{
			ID:         id,
			Players:    room.len(),
			LastActive: room.lastActive,
		})
	}

	slices.SortFunc(out, func(a, b RoomSummary) int {
		return cmp.Compare(a.ID, b.ID)
	})

	return out
}
