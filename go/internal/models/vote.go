package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidVoteValue is returned when a vote is built from a value outside the deck
var ErrInvalidVoteValue = errors.New("invalid vote value")

// allowedVotes is the estimation deck, ascending
var allowedVotes = [...]int{0, 1, 2, 3, 5, 8, 13, 21, 40, 100}

// Vote is one card of the estimation deck
type Vote struct {
	value int
}

// NewVote validates value against the deck
func NewVote(value int) (Vote, error) {
	if !slices.Contains(allowedVotes[:], value) {
		return Vote{}, fmt.Errorf("%w: %d", ErrInvalidVoteValue, value)
	}
	return Vote{value: value}, nil
}

// MustVote is NewVote for values known to be valid. It panics otherwise.
func MustVote(value int) Vote {
	v, err := NewVote(value)
	if err != nil {
		panic(err)
	}
	return v
}

// Value returns the numeric value of the card
func (v Vote) Value() int {
	return v.value
}

func (v Vote) String() string {
	return fmt.Sprintf("%d", v.value)
}

// AllowedVotes returns every card of the deck in ascending order
func AllowedVotes() []Vote {
	votes := make([]Vote, len(allowedVotes))
	for i, value := range allowedVotes {
		votes[i] = Vote{value: value}
	}
	return votes
}

// ClosestVote returns the card nearest to the arithmetic mean of votes.
// Distances are compared exactly as |card*n - sum| so no rounding is involved;
// on a tie the smaller card wins. An empty slice yields the zero card.
func ClosestVote(votes []Vote) Vote {
	if len(votes) == 0 {
		return Vote{value: allowedVotes[0]}
	}

	n := len(votes)
	sum := 0
	for _, v := range votes {
		sum += v.value
	}

	best := allowedVotes[0]
	bestDist := absInt(best*n - sum)
	for _, candidate := range allowedVotes[1:] {
		// strictly less keeps the earlier, smaller card on ties
		if dist := absInt(candidate*n - sum); dist < bestDist {
			best, bestDist = candidate, dist
		}
	}
	return Vote{value: best}
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func (v Vote) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.value)
}

func (v *Vote) UnmarshalJSON(data []byte) error {
	var value int
	if err := json.Unmarshal(data, &value); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidVoteValue, data)
	}
	parsed, err := NewVote(value)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
