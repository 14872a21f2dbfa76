package models

// StoryInfo is the editable payload of a story
type StoryInfo struct {
	Title string `json:"title"`
}

// BacklogStory is waiting in the backlog to be selected for estimation
type BacklogStory struct {
	ID   StoryID   `json:"id"`
	Info StoryInfo `json:"info"`
}

// NewBacklogStory creates a backlog story with a fresh id
func NewBacklogStory(info StoryInfo) BacklogStory {
	return BacklogStory{
		ID:   NewStoryID(),
		Info: info,
	}
}

// SelectForEstimation opens the story for a voting round with no votes
func (s BacklogStory) SelectForEstimation() SelectedStory {
	return SelectedStory{
		ID:   s.ID,
		Info: s.Info,
	}
}

// SelectedStory is the story currently open for voting, or just voted on
type SelectedStory struct {
	ID            StoryID                  `json:"id"`
	Info          StoryInfo                `json:"info"`
	Votes         OrderedMap[UserID, Vote] `json:"votes"`
	VotesRevealed bool                     `json:"votes_revealed"`
}

func (s SelectedStory) CanReveal() bool {
	return !s.VotesRevealed && s.Votes.Len() > 0
}

func (s SelectedStory) CanAccept() bool {
	return s.VotesRevealed && s.Votes.Len() > 0
}

func (s SelectedStory) CanPlayAgain() bool {
	return s.Votes.Len() > 0
}

// VotesAverage returns the arithmetic mean of the cast votes, 0 when there are none
func (s SelectedStory) VotesAverage() float64 {
	if s.Votes.Len() == 0 {
		return 0
	}
	sum := 0
	for _, v := range s.Votes.Values() {
		sum += v.Value()
	}
	return float64(sum) / float64(s.Votes.Len())
}

// Clone returns a copy that shares no vote storage with s
func (s SelectedStory) Clone() SelectedStory {
	s.Votes = s.Votes.Clone()
	return s
}

// MoveToBacklog drops the votes and returns the story to backlog form
func (s SelectedStory) MoveToBacklog() BacklogStory {
	return BacklogStory{
		ID:   s.ID,
		Info: s.Info,
	}
}

// AcceptWithEstimate finishes the round with the given estimate
func (s SelectedStory) AcceptWithEstimate(estimate Vote) EstimatedStory {
	return EstimatedStory{
		ID:       s.ID,
		Info:     s.Info,
		Estimate: estimate,
	}
}

// EstimatedStory is a story whose round was approved
type EstimatedStory struct {
	ID       StoryID   `json:"id"`
	Info     StoryInfo `json:"info"`
	Estimate Vote      `json:"estimate"`
}
