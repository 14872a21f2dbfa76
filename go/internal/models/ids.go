package models

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInvalidID is returned when an identifier cannot be parsed from text
var ErrInvalidID = errors.New("invalid identifier")

// GameID identifies one planning poker session
type GameID uuid.UUID

// NewGameID returns a fresh random GameID
func NewGameID() GameID {
	return GameID(uuid.New())
}

// ParseGameID parses the canonical text form of a GameID
func ParseGameID(s string) (GameID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return GameID{}, fmt.Errorf("%w: game id %q", ErrInvalidID, s)
	}
	return GameID(u), nil
}

func (id GameID) String() string {
	return uuid.UUID(id).String()
}

func (id GameID) IsZero() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id GameID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *GameID) UnmarshalText(data []byte) error {
	parsed, err := ParseGameID(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// StoryID identifies a story across backlog, selection and estimation
type StoryID uuid.UUID

// NewStoryID returns a fresh random StoryID
func NewStoryID() StoryID {
	return StoryID(uuid.New())
}

// ParseStoryID parses the canonical text form of a StoryID
func ParseStoryID(s string) (StoryID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return StoryID{}, fmt.Errorf("%w: story id %q", ErrInvalidID, s)
	}
	return StoryID(u), nil
}

func (id StoryID) String() string {
	return uuid.UUID(id).String()
}

func (id StoryID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *StoryID) UnmarshalText(data []byte) error {
	parsed, err := ParseStoryID(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// UserID identifies a user. Clients generate it once and keep it.
type UserID uuid.UUID

// NewUserID returns a fresh random UserID
func NewUserID() UserID {
	return UserID(uuid.New())
}

// ParseUserID parses the canonical text form of a UserID
func ParseUserID(s string) (UserID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, fmt.Errorf("%w: user id %q", ErrInvalidID, s)
	}
	return UserID(u), nil
}

func (id UserID) String() string {
	return uuid.UUID(id).String()
}

func (id UserID) IsZero() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id UserID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *UserID) UnmarshalText(data []byte) error {
	parsed, err := ParseUserID(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
