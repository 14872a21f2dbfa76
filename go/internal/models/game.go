package models

import (
	"slices"
)

// Game is the full state of one planning poker session
type Game struct {
	ID               GameID                     `json:"id"`
	Players          OrderedMap[UserID, Player] `json:"players"`
	BacklogStories   []BacklogStory             `json:"backlog_stories"`
	SelectedStory    *SelectedStory             `json:"selected_story"`
	EstimatedStories []EstimatedStory           `json:"estimated_stories"`
}

// NewGame creates a game with a fresh id and user seeded as its admin
func NewGame(user User) Game {
	g := Game{
		ID:               NewGameID(),
		BacklogStories:   []BacklogStory{},
		EstimatedStories: []EstimatedStory{},
	}
	g.Players.Set(user.ID, NewAdmin(user))
	return g
}

// Clone returns a deep copy of g
func (g Game) Clone() Game {
	out := Game{
		ID:               g.ID,
		Players:          g.Players.Clone(),
		BacklogStories:   slices.Clone(g.BacklogStories),
		EstimatedStories: slices.Clone(g.EstimatedStories),
	}
	if out.BacklogStories == nil {
		out.BacklogStories = []BacklogStory{}
	}
	if out.EstimatedStories == nil {
		out.EstimatedStories = []EstimatedStory{}
	}
	if g.SelectedStory != nil {
		selected := g.SelectedStory.Clone()
		out.SelectedStory = &selected
	}
	return out
}

// ActivePlayers returns the connected players in join order
func (g Game) ActivePlayers() []Player {
	var active []Player
	for _, p := range g.Players.Values() {
		if p.Active {
			active = append(active, p)
		}
	}
	return active
}

// BacklogIndex returns the position of id in the backlog, or -1
func (g Game) BacklogIndex(id StoryID) int {
	return slices.IndexFunc(g.BacklogStories, func(s BacklogStory) bool { return s.ID == id })
}

// HasStory reports whether id is anywhere in the game: backlog, selection or estimated
func (g Game) HasStory(id StoryID) bool {
	if g.BacklogIndex(id) >= 0 {
		return true
	}
	if g.SelectedStory != nil && g.SelectedStory.ID == id {
		return true
	}
	return slices.ContainsFunc(g.EstimatedStories, func(s EstimatedStory) bool { return s.ID == id })
}
