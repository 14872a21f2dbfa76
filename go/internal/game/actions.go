package game

import (
	"github.com/mcdev12/planningpoker/go/internal/models"
)

// ActionKind is the wire tag of an action
type ActionKind string

const (
	KindPlayerJoined         ActionKind = "PlayerJoined"
	KindPlayerLeft           ActionKind = "PlayerLeft"
	KindStoriesAdded         ActionKind = "StoriesAdded"
	KindStoryUpdated         ActionKind = "StoryUpdated"
	KindStoryPositionChanged ActionKind = "StoryPositionChanged"
	KindStoryRemoved         ActionKind = "StoryRemoved"
	KindVotingOpened         ActionKind = "VotingOpened"
	KindVotingClosed         ActionKind = "VotingClosed"
	KindVoteCasted           ActionKind = "VoteCasted"
	KindVotesRevealed        ActionKind = "VotesRevealed"
	KindVotesCleared         ActionKind = "VotesCleared"
	KindResultsApproved      ActionKind = "ResultsApproved"
)

// Action is one participant intent. The set of implementations is closed:
// every variant is declared in this file and handled by Reduce and the codec.
type Action interface {
	Kind() ActionKind
	isAction()
}

// PlayerJoined adds the user to the game or marks them active again
type PlayerJoined struct {
	User models.User
}

// PlayerLeft marks the acting player as disconnected
type PlayerLeft struct{}

// StoriesAdded appends stories to the backlog
type StoriesAdded struct {
	Stories []models.BacklogStory
}

// StoryUpdated replaces the info of a backlog story
type StoryUpdated struct {
	ID   models.StoryID
	Info models.StoryInfo
}

// StoryPositionChanged moves a backlog story to Index
type StoryPositionChanged struct {
	ID    models.StoryID
	Index int
}

// StoryRemoved deletes a backlog story
type StoryRemoved struct {
	ID models.StoryID
}

// VotingOpened selects a backlog story for a voting round
type VotingOpened struct {
	ID models.StoryID
}

// VotingClosed returns the selected story to the backlog
type VotingClosed struct{}

// VoteCasted records the acting player's vote on the selected story
type VoteCasted struct {
	Vote models.Vote
}

// VotesRevealed makes the cast votes visible
type VotesRevealed struct{}

// VotesCleared starts the round on the selected story over
type VotesCleared struct{}

// ResultsApproved finishes the round. A nil Estimate means the closest card
// to the average of the votes is used.
type ResultsApproved struct {
	Estimate *models.Vote
}

func (PlayerJoined) Kind() ActionKind         { return KindPlayerJoined }
func (PlayerLeft) Kind() ActionKind           { return KindPlayerLeft }
func (StoriesAdded) Kind() ActionKind         { return KindStoriesAdded }
func (StoryUpdated) Kind() ActionKind         { return KindStoryUpdated }
func (StoryPositionChanged) Kind() ActionKind { return KindStoryPositionChanged }
func (StoryRemoved) Kind() ActionKind         { return KindStoryRemoved }
func (VotingOpened) Kind() ActionKind         { return KindVotingOpened }
func (VotingClosed) Kind() ActionKind         { return KindVotingClosed }
func (VoteCasted) Kind() ActionKind           { return KindVoteCasted }
func (VotesRevealed) Kind() ActionKind        { return KindVotesRevealed }
func (VotesCleared) Kind() ActionKind         { return KindVotesCleared }
func (ResultsApproved) Kind() ActionKind      { return KindResultsApproved }

func (PlayerJoined) isAction()         {}
func (PlayerLeft) isAction()           {}
func (StoriesAdded) isAction()         {}
func (StoryUpdated) isAction()         {}
func (StoryPositionChanged) isAction() {}
func (StoryRemoved) isAction()         {}
func (VotingOpened) isAction()         {}
func (VotingClosed) isAction()         {}
func (VoteCasted) isAction()           {}
func (VotesRevealed) isAction()        {}
func (VotesCleared) isAction()         {}
func (ResultsApproved) isAction()      {}
