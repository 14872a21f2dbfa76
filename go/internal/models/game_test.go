package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGameSeedsAdmin(t *testing.T) {
	user := NewUser("alice")
	g := NewGame(user)

	require.Equal(t, 1, g.Players.Len())
	player, ok := g.Players.Get(user.ID)
	require.True(t, ok)
	assert.Equal(t, PlayerRoleAdmin, player.Role)
	assert.True(t, player.Active)
	assert.Empty(t, g.BacklogStories)
	assert.Nil(t, g.SelectedStory)
	assert.Empty(t, g.EstimatedStories)
}

func TestGameCloneIsDeep(t *testing.T) {
	user := NewUser("alice")
	g := NewGame(user)
	story := NewBacklogStory(StoryInfo{Title: "A"})
	g.BacklogStories = append(g.BacklogStories, story)
	selected := NewBacklogStory(StoryInfo{Title: "B"}).SelectForEstimation()
	selected.Votes.Set(user.ID, MustVote(3))
	g.SelectedStory = &selected

	clone := g.Clone()
	clone.BacklogStories[0].Info.Title = "changed"
	clone.SelectedStory.Votes.Set(user.ID, MustVote(8))
	clone.SelectedStory.VotesRevealed = true
	clone.Players.Set(NewUserID(), NewPlayer(NewUser("bob"), PlayerRolePlayer))

	assert.Equal(t, "A", g.BacklogStories[0].Info.Title)
	vote, _ := g.SelectedStory.Votes.Get(user.ID)
	assert.Equal(t, 3, vote.Value())
	assert.False(t, g.SelectedStory.VotesRevealed)
	assert.Equal(t, 1, g.Players.Len())
}

func TestGameJSONShape(t *testing.T) {
	user := User{ID: mustUserID(t, "11111111-1111-1111-1111-111111111111"), Name: "alice"}
	g := NewGame(user)

	data, err := json.Marshal(g)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.ElementsMatch(t,
		[]string{"id", "players", "backlog_stories", "selected_story", "estimated_stories"},
		keysOf(raw))
	assert.JSONEq(t,
		`{"11111111-1111-1111-1111-111111111111":{"user":{"id":"11111111-1111-1111-1111-111111111111","name":"alice"},"role":"Admin","active":true}}`,
		string(raw["players"]))
	assert.Equal(t, "null", string(raw["selected_story"]))
	assert.Equal(t, "[]", string(raw["backlog_stories"]))

	var decoded Game
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, g.ID, decoded.ID)
	player, ok := decoded.Players.Get(user.ID)
	require.True(t, ok)
	assert.Equal(t, "alice", player.User.Name)
}

func TestActivePlayers(t *testing.T) {
	admin := NewUser("alice")
	g := NewGame(admin)
	bob := NewPlayer(NewUser("bob"), PlayerRolePlayer)
	bob.Active = false
	g.Players.Set(bob.User.ID, bob)
	carol := NewPlayer(NewUser("carol"), PlayerRolePlayer)
	g.Players.Set(carol.User.ID, carol)

	active := g.ActivePlayers()
	require.Len(t, active, 2)
	assert.Equal(t, "alice", active[0].User.Name)
	assert.Equal(t, "carol", active[1].User.Name)
}

func TestSelectedStoryHelpers(t *testing.T) {
	s := NewBacklogStory(StoryInfo{Title: "A"}).SelectForEstimation()
	assert.False(t, s.CanReveal())
	assert.False(t, s.CanAccept())
	assert.False(t, s.CanPlayAgain())
	assert.Equal(t, 0.0, s.VotesAverage())

	s.Votes.Set(NewUserID(), MustVote(5))
	s.Votes.Set(NewUserID(), MustVote(8))
	assert.True(t, s.CanReveal())
	assert.False(t, s.CanAccept())
	assert.InDelta(t, 6.5, s.VotesAverage(), 1e-9)

	s.VotesRevealed = true
	assert.False(t, s.CanReveal())
	assert.True(t, s.CanAccept())
}

func TestParseIDs(t *testing.T) {
	id := NewGameID()
	parsed, err := ParseGameID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseGameID("nope")
	assert.ErrorIs(t, err, ErrInvalidID)
	_, err = ParseStoryID("")
	assert.ErrorIs(t, err, ErrInvalidID)
	_, err = ParseUserID("123")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func keysOf(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
