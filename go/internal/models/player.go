package models

import (
	"encoding/json"
	"fmt"
)

// PlayerRole decides which actions a player may perform
type PlayerRole string

const (
	PlayerRoleAdmin  PlayerRole = "Admin"
	PlayerRolePlayer PlayerRole = "Player"
)

func (r *PlayerRole) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch PlayerRole(s) {
	case PlayerRoleAdmin, PlayerRolePlayer:
		*r = PlayerRole(s)
		return nil
	default:
		return fmt.Errorf("unknown player role %q", s)
	}
}

// Player is a user's membership in a game. Inactive players are disconnected
// but kept so their votes and history stay attached to them.
type Player struct {
	User   User       `json:"user"`
	Role   PlayerRole `json:"role"`
	Active bool       `json:"active"`
}

// NewPlayer creates an active player with the given role
func NewPlayer(user User, role PlayerRole) Player {
	return Player{
		User:   user,
		Role:   role,
		Active: true,
	}
}

// NewAdmin creates an active admin player
func NewAdmin(user User) Player {
	return NewPlayer(user, PlayerRoleAdmin)
}

func (p Player) IsAdmin() bool {
	return p.Role == PlayerRoleAdmin
}
