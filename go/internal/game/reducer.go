package game

import (
	"slices"

	"github.com/mcdev12/planningpoker/go/internal/models"
)

// Reduce applies action performed by actor to g and returns the new state.
//
// Reduce never fails and never modifies g. Actions that are malformed for the
// current state, or that actor is not allowed to perform, leave the state as
// it was; nothing is reported back to the actor. Apart from PlayerJoined every
// action requires actor to be a player of the game, and backlog and round
// control additionally require the admin role.
func Reduce(g models.Game, actor models.UserID, action Action) models.Game {
	if joined, ok := action.(PlayerJoined); ok {
		next := g.Clone()
		addPlayer(&next, joined.User)
		return next
	}

	player, ok := g.Players.Get(actor)
	if !ok {
		return g
	}
	isAdmin := player.IsAdmin()

	next := g.Clone()
	switch a := action.(type) {
	case PlayerLeft:
		removePlayer(&next, actor)
	case StoryPositionChanged:
		changeStoryPosition(&next, a.ID, a.Index)
	case VoteCasted:
		castVote(&next, actor, a.Vote)

	case StoriesAdded:
		if !isAdmin {
			return g
		}
		addStories(&next, a.Stories)
	case StoryUpdated:
		if !isAdmin {
			return g
		}
		updateStory(&next, a.ID, a.Info)
	case StoryRemoved:
		if !isAdmin {
			return g
		}
		removeStory(&next, a.ID)
	case VotingOpened:
		if !isAdmin {
			return g
		}
		openStoryForVoting(&next, a.ID)
	case VotingClosed:
		if !isAdmin {
			return g
		}
		closeStoryForVoting(&next)
	case VotesRevealed:
		if !isAdmin {
			return g
		}
		revealVotes(&next)
	case VotesCleared:
		if !isAdmin {
			return g
		}
		clearVotes(&next)
	case ResultsApproved:
		if !isAdmin {
			return g
		}
		acceptRound(&next, a.Estimate)

	default:
		return g
	}
	return next
}

func addPlayer(g *models.Game, user models.User) {
	if player, ok := g.Players.Get(user.ID); ok {
		player.Active = true
		g.Players.Set(user.ID, player)
		return
	}
	g.Players.Set(user.ID, models.NewPlayer(user, models.PlayerRolePlayer))
}

func removePlayer(g *models.Game, id models.UserID) {
	if player, ok := g.Players.Get(id); ok {
		player.Active = false
		g.Players.Set(id, player)
	}
}

// addStories appends in order, skipping ids already present anywhere in the game
func addStories(g *models.Game, stories []models.BacklogStory) {
	for _, story := range stories {
		if g.HasStory(story.ID) {
			continue
		}
		g.BacklogStories = append(g.BacklogStories, story)
	}
}

func updateStory(g *models.Game, id models.StoryID, info models.StoryInfo) {
	if idx := g.BacklogIndex(id); idx >= 0 {
		g.BacklogStories[idx].Info = info
	}
}

func changeStoryPosition(g *models.Game, id models.StoryID, newIdx int) {
	if newIdx < 0 || newIdx >= len(g.BacklogStories) {
		return
	}
	idx := g.BacklogIndex(id)
	if idx < 0 {
		return
	}
	story := g.BacklogStories[idx]
	g.BacklogStories = slices.Delete(g.BacklogStories, idx, idx+1)
	g.BacklogStories = slices.Insert(g.BacklogStories, newIdx, story)
}

func removeStory(g *models.Game, id models.StoryID) {
	g.BacklogStories = slices.DeleteFunc(g.BacklogStories, func(s models.BacklogStory) bool {
		return s.ID == id
	})
}

// openStoryForVoting requires id to be in the backlog. A story already
// selected goes back to the front of the backlog first.
func openStoryForVoting(g *models.Game, id models.StoryID) {
	if g.BacklogIndex(id) < 0 {
		return
	}

	closeStoryForVoting(g)

	idx := g.BacklogIndex(id)
	story := g.BacklogStories[idx]
	g.BacklogStories = slices.Delete(g.BacklogStories, idx, idx+1)
	selected := story.SelectForEstimation()
	g.SelectedStory = &selected
}

func closeStoryForVoting(g *models.Game) {
	if g.SelectedStory == nil {
		return
	}
	story := g.SelectedStory.MoveToBacklog()
	g.BacklogStories = slices.Insert(g.BacklogStories, 0, story)
	g.SelectedStory = nil
}

func castVote(g *models.Game, id models.UserID, vote models.Vote) {
	if g.SelectedStory == nil || g.SelectedStory.VotesRevealed {
		return
	}
	g.SelectedStory.Votes.Set(id, vote)
}

func revealVotes(g *models.Game) {
	if g.SelectedStory == nil || !g.SelectedStory.CanReveal() {
		return
	}
	g.SelectedStory.VotesRevealed = true
}

func clearVotes(g *models.Game) {
	if g.SelectedStory == nil {
		return
	}
	g.SelectedStory.Votes.Clear()
	g.SelectedStory.VotesRevealed = false
}

func acceptRound(g *models.Game, estimate *models.Vote) {
	if g.SelectedStory == nil || !g.SelectedStory.CanAccept() {
		return
	}

	final := models.ClosestVote(g.SelectedStory.Votes.Values())
	if estimate != nil {
		final = *estimate
	}
	g.EstimatedStories = append(g.EstimatedStories, g.SelectedStory.AcceptWithEstimate(final))
	g.SelectedStory = nil
}
