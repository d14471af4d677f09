/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lineIDs builds a line set from raw JSON values.
func lineIDs(raw ...string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(raw))
	for _, r := range raw {
		out = append(out, json.RawMessage(r))
	}

	return out
}

func TestRoom_RegisterCreatesFreshPlayer(t *testing.T) {
	room := newRoom("r1")

	p := room.register("p1", "Ann")

	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, "Ann", p.Name)
	assert.Zero(t, p.Score)
	assert.False(t, p.Bingo)
	assert.Equal(t, Lines{Horizontal: lineIDs(), Vertical: lineIDs(), Diagonal: lineIDs()}, p.Rows)
}

func TestRoom_RegisterTwiceReplaces(t *testing.T) {
	room := newRoom("r1")

	room.register("p1", "Ann")
	require.True(t, room.update("p1", 7, true, Lines{Horizontal: lineIDs("0")}))

	room.register("p1", "Annie")

	require.Equal(t, 1, room.len())
	board := room.leaderboard()
	require.Len(t, board, 1)
	assert.Equal(t, "Annie", board[0].Name)
	assert.Zero(t, board[0].Score)
	assert.False(t, board[0].Bingo)
}

func TestRoom_UpdateUnknownPlayer(t *testing.T) {
	room := newRoom("r1")

	assert.False(t, room.update("ghost", 3, false, Lines{}))
	assert.False(t, room.reset("ghost"))
	assert.Zero(t, room.len())
}

func TestRoom_ResetClearsProgress(t *testing.T) {
	room := newRoom("r1")
	room.register("p1", "Ann")
	require.True(t, room.update("p1", 12, true, Lines{Diagonal: lineIDs("0", "1")}))

	require.True(t, room.reset("p1"))

	p := room.players["p1"]
	assert.Zero(t, p.Score)
	assert.False(t, p.Bingo)
	assert.Empty(t, p.Rows.Diagonal)
	assert.NotNil(t, p.Rows.Diagonal)
}

func TestRoom_LeaderboardOrder(t *testing.T) {
	room := newRoom("r1")
	room.register("p1", "Ann")
	room.register("p2", "Bob")
	room.update("p1", 5, false, Lines{})
	room.update("p2", 9, false, Lines{})

	board := room.leaderboard()

	require.Len(t, board, 2)
	assert.Equal(t, "p2", board[0].ID)
	assert.Equal(t, "p1", board[1].ID)
}

func TestRoom_LeaderboardTiesKeepRegistrationOrder(t *testing.T) {
	room := newRoom("r1")
	for i := range 5 {
		room.register(fmt.Sprintf("p%d", i), "")
	}

	board := room.leaderboard()

	ids := make([]string, 0, len(board))
	for _, p := range board {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"p0", "p1", "p2", "p3", "p4"}, ids)
}

func TestRoom_LeaderboardTopTen(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	room := newRoom("r1")

	for i := range 25 {
		id := fmt.Sprintf("p%02d", i)
		room.register(id, id)
		room.update(id, rng.IntN(50), false, Lines{})
	}

	board := room.leaderboard()

	require.Len(t, board, leaderboardSize)
	for i := 1; i < len(board); i++ {
		assert.GreaterOrEqual(t, board[i-1].Score, board[i].Score)
	}
}

func TestRoom_Remove(t *testing.T) {
	room := newRoom("r1")
	room.register("p1", "Ann")

	assert.True(t, room.remove("p1"))
	assert.False(t, room.remove("p1"))
	assert.Empty(t, room.leaderboard())
}

func TestRoom_ReleaseOnlyRemovesOwnRegistration(t *testing.T) {
	room := newRoom("r1")

	first := room.register("p1", "Ann")
	second := room.register("p1", "Ann in another tab")

	assert.False(t, room.release("p1", first.seq))
	assert.True(t, room.has("p1"))

	assert.True(t, room.release("p1", second.seq))
	assert.False(t, room.has("p1"))
	assert.False(t, room.release("p1", second.seq))
}

func TestRegistry_EnsureIsIdempotent(t *testing.T) {
	reg := newRegistry()

	a := reg.ensure("r1")
	b := reg.ensure("r1")

	assert.Same(t, a, b)
	assert.Equal(t, 1, reg.len())
}

func TestRegistry_PruneOnlyIdleEmptyRooms(t *testing.T) {
	reg := newRegistry()
	old := time.Now().Add(-2 * time.Hour)

	reg.ensure("empty-idle").lastActive = old

	busy := reg.ensure("busy-idle")
	busy.register("p1", "Ann")
	busy.lastActive = old

	reg.ensure("empty-fresh")

	pruned := reg.prune(time.Now().Add(-time.Hour))

	assert.Equal(t, []string{"empty-idle"}, pruned)
	_, ok := reg.get("empty-idle")
	assert.False(t, ok)
	assert.Equal(t, 2, reg.len())
}

func TestRegistry_Summaries(t *testing.T) {
	reg := newRegistry()
	reg.ensure("b").register("p1", "Ann")
	reg.ensure("a")

	sums := reg.summaries()

	require.Len(t, sums, 2)
	assert.Equal(t, "a", sums[0].ID)
	assert.Equal(t, 0, sums[0].Players)
	assert.Equal(t, "b", sums[1].ID)
	assert.Equal(t, 1, sums[1].Players)
}
