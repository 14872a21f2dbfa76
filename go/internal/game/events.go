package game

import (
	"encoding/json"
	"fmt"

	"github.com/mcdev12/planningpoker/go/internal/models"
)

// EventKind is the wire tag of a server/client event
type EventKind string

const (
	EventCurrentState EventKind = "CurrentState"
	EventGameNotFound EventKind = "GameNotFound"
	EventGameMessage  EventKind = "GameMessage"
)

// Event is a message exchanged over a game connection
type Event interface {
	EventKind() EventKind
	isEvent()
}

// CurrentState carries the full game snapshot sent once on join
type CurrentState struct {
	Game models.Game
}

// GameNotFound tells the client the requested game does not exist
type GameNotFound struct {
	GameID models.GameID
}

// GameMessage is an action performed by a user
type GameMessage struct {
	UserID models.UserID
	Action Action
}

func (CurrentState) EventKind() EventKind { return EventCurrentState }
func (GameNotFound) EventKind() EventKind { return EventGameNotFound }
func (GameMessage) EventKind() EventKind  { return EventGameMessage }

func (CurrentState) isEvent() {}
func (GameNotFound) isEvent() {}
func (GameMessage) isEvent()  {}

// MarshalEvent encodes an event in its wire form
func MarshalEvent(e Event) ([]byte, error) {
	switch e := e.(type) {
	case CurrentState:
		return marshalTagged(string(e.EventKind()), e.Game)
	case GameNotFound:
		return marshalTagged(string(e.EventKind()), e.GameID)
	case GameMessage:
		action, err := MarshalAction(e.Action)
		if err != nil {
			return nil, err
		}
		return marshalTagged(string(e.EventKind()), []any{e.UserID, json.RawMessage(action)})
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownEvent, e)
	}
}

// UnmarshalEvent decodes an event from its wire form
func UnmarshalEvent(data []byte) (Event, error) {
	tag, payload, err := splitTagged(data)
	if err != nil {
		return nil, err
	}

	switch EventKind(tag) {
	case EventCurrentState:
		var g models.Game
		if err := decodePayload(tag, payload, &g); err != nil {
			return nil, err
		}
		return CurrentState{Game: g}, nil

	case EventGameNotFound:
		var id models.GameID
		if err := decodePayload(tag, payload, &id); err != nil {
			return nil, err
		}
		return GameNotFound{GameID: id}, nil

	case EventGameMessage:
		var userID models.UserID
		var rawAction json.RawMessage
		if err := decodeTuple(tag, payload, &userID, &rawAction); err != nil {
			return nil, err
		}
		action, err := UnmarshalAction(rawAction)
		if err != nil {
			return nil, err
		}
		return GameMessage{UserID: userID, Action: action}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, tag)
	}
}

// ParseGameMessage decodes a client frame, accepting only GameMessage events
func ParseGameMessage(data []byte) (GameMessage, error) {
	event, err := UnmarshalEvent(data)
	if err != nil {
		return GameMessage{}, err
	}
	msg, ok := event.(GameMessage)
	if !ok {
		return GameMessage{}, fmt.Errorf("%w: expected %s, got %s", ErrMalformed, EventGameMessage, event.EventKind())
	}
	return msg, nil
}
