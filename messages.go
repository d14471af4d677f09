/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	errMissingType   = errors.New("missing message type")
	errMissingRoom   = errors.New("missing roomId")
	errMissingPlayer = errors.New("missing playerId")
	errNegativeScore = errors.New("score must not be negative")
)

// Event is one decoded client message. The concrete types below are the only
// implementations.
type Event interface {
	kind() string
}

type joinEvent struct {
	RoomID string
}

type registerEvent struct {
	RoomID   string
	PlayerID string
	Name     string
}

type updateEvent struct {
	PlayerID string
	Score    int
	Bingo    bool
	Rows     Lines
}

type resetEvent struct {
	PlayerID string
}

// ignoredEvent is a well-formed message with a type the server does not handle.
type ignoredEvent struct {
	Type string
}

func (joinEvent) kind() string     { return "join" }
func (registerEvent) kind() string { return "register" }
func (updateEvent) kind() string   { return "update" }
func (resetEvent) kind() string    { return "reset" }
func (e ignoredEvent) kind() string {
	return e.Type
}

// Messages coming from clients
type clientMessage struct {
	Type     string `json:"type"`
	RoomID   string `json:"roomId,omitempty"`   // join / register
	PlayerID string `json:"playerId,omitempty"` // register / update / reset
	Name     string `json:"name,omitempty"`     // register
	Score    int    `json:"score,omitempty"`    // update
	Bingo    bool   `json:"bingo,omitempty"`    // update
	Rows     *Lines `json:"rows,omitempty"`     // update
}

// Messages sent to clients
type leaderboardMessage struct {
	Type string   `json:"type"` // "leaderboard"
	Data []Player `json:"data"`
}

func decodeEvent(data []byte) (Event, error) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}

	switch msg.Type {
	case "":
		return nil, errMissingType
	case "join":
		if msg.RoomID == "" {
			return nil, errMissingRoom
		}
		return joinEvent{RoomID: msg.RoomID}, nil
	case "register":
		if msg.PlayerID == "" {
			return nil, errMissingPlayer
		}
		return registerEvent{
			RoomID:   msg.RoomID,
			PlayerID: msg.PlayerID,
			Name:     msg.Name,
		}, nil
	case "update":
		if msg.PlayerID == "" {
			return nil, errMissingPlayer
		}
		if msg.Score < 0 {
			return nil, fmt.Errorf("%w: %d", errNegativeScore, msg.Score)
		}
		var rows Lines
		if msg.Rows != nil {
			rows = *msg.Rows
		}
		return updateEvent{
			PlayerID: msg.PlayerID,
			Score:    msg.Score,
			Bingo:    msg.Bingo,
			Rows:     rows,
		}, nil
	case "reset":
		if msg.PlayerID == "" {
			return nil, errMissingPlayer
		}
		return resetEvent{PlayerID: msg.PlayerID}, nil
	default:
		return ignoredEvent{Type: msg.Type}, nil
	}
}

func encodeLeaderboard(players []Player) ([]byte, error) {
	if players == nil {
		players = []Player{}
	}

	return json.Marshal(leaderboardMessage{
		Type: "leaderboard",
		Data: players,
	})
}
