package game

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcdev12/planningpoker/go/internal/models"
)

var (
	// ErrUnknownAction is returned when an action tag is not recognised
	ErrUnknownAction = errors.New("unknown action")
	// ErrUnknownEvent is returned when an event tag is not recognised
	ErrUnknownEvent = errors.New("unknown event")
	// ErrMalformed is returned when a message has the right tag but a bad shape
	ErrMalformed = errors.New("malformed message")
)

// Messages are externally tagged: a variant without payload is encoded as its
// bare name, any other variant as a single key object whose value is the
// payload, or an array when the variant carries more than one field.

// MarshalAction encodes an action in its wire form
func MarshalAction(a Action) ([]byte, error) {
	var payload any
	switch a := a.(type) {
	case PlayerLeft, VotingClosed, VotesRevealed, VotesCleared:
		return json.Marshal(string(a.Kind()))
	case PlayerJoined:
		payload = a.User
	case StoriesAdded:
		stories := a.Stories
		if stories == nil {
			stories = []models.BacklogStory{}
		}
		payload = stories
	case StoryUpdated:
		payload = []any{a.ID, a.Info}
	case StoryPositionChanged:
		payload = []any{a.ID, a.Index}
	case StoryRemoved:
		payload = a.ID
	case VotingOpened:
		payload = a.ID
	case VoteCasted:
		payload = a.Vote
	case ResultsApproved:
		payload = a.Estimate
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownAction, a)
	}
	return marshalTagged(string(a.Kind()), payload)
}

// UnmarshalAction decodes an action from its wire form
func UnmarshalAction(data []byte) (Action, error) {
	tag, payload, err := splitTagged(data)
	if err != nil {
		return nil, err
	}

	switch ActionKind(tag) {
	case KindPlayerLeft:
		return unitAction(PlayerLeft{}, tag, payload)
	case KindVotingClosed:
		return unitAction(VotingClosed{}, tag, payload)
	case KindVotesRevealed:
		return unitAction(VotesRevealed{}, tag, payload)
	case KindVotesCleared:
		return unitAction(VotesCleared{}, tag, payload)

	case KindPlayerJoined:
		var user models.User
		if err := decodePayload(tag, payload, &user); err != nil {
			return nil, err
		}
		if user.ID.IsZero() {
			return nil, fmt.Errorf("%w: %s without user id", ErrMalformed, tag)
		}
		return PlayerJoined{User: user}, nil

	case KindStoriesAdded:
		var stories []models.BacklogStory
		if err := decodePayload(tag, payload, &stories); err != nil {
			return nil, err
		}
		return StoriesAdded{Stories: stories}, nil

	case KindStoryUpdated:
		var id models.StoryID
		var info models.StoryInfo
		if err := decodeTuple(tag, payload, &id, &info); err != nil {
			return nil, err
		}
		return StoryUpdated{ID: id, Info: info}, nil

	case KindStoryPositionChanged:
		var id models.StoryID
		var index int
		if err := decodeTuple(tag, payload, &id, &index); err != nil {
			return nil, err
		}
		if index < 0 {
			return nil, fmt.Errorf("%w: %s: negative index %d", ErrMalformed, tag, index)
		}
		return StoryPositionChanged{ID: id, Index: index}, nil

	case KindStoryRemoved:
		var id models.StoryID
		if err := decodePayload(tag, payload, &id); err != nil {
			return nil, err
		}
		return StoryRemoved{ID: id}, nil

	case KindVotingOpened:
		var id models.StoryID
		if err := decodePayload(tag, payload, &id); err != nil {
			return nil, err
		}
		return VotingOpened{ID: id}, nil

	case KindVoteCasted:
		var vote models.Vote
		if err := decodePayload(tag, payload, &vote); err != nil {
			return nil, err
		}
		return VoteCasted{Vote: vote}, nil

	case KindResultsApproved:
		if payload == nil {
			return nil, fmt.Errorf("%w: %s needs a payload", ErrMalformed, tag)
		}
		var estimate *models.Vote
		if err := json.Unmarshal(payload, &estimate); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, tag, err)
		}
		return ResultsApproved{Estimate: estimate}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, tag)
	}
}

func marshalTagged(tag string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", tag, err)
	}
	key, err := json.Marshal(tag)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	buf.Write(key)
	buf.WriteByte(':')
	buf.Write(body)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// splitTagged returns the tag and raw payload of an externally tagged value.
// A bare string yields a nil payload.
func splitTagged(data []byte) (string, json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return "", nil, fmt.Errorf("%w: empty message", ErrMalformed)
	}

	if trimmed[0] == '"' {
		var tag string
		if err := json.Unmarshal(trimmed, &tag); err != nil {
			return "", nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		return tag, nil, nil
	}

	var object map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &object); err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if len(object) != 1 {
		return "", nil, fmt.Errorf("%w: expected exactly one tag, got %d", ErrMalformed, len(object))
	}
	for tag, payload := range object {
		return tag, payload, nil
	}
	return "", nil, fmt.Errorf("%w: no tag", ErrMalformed)
}

func isNull(payload json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(payload), []byte("null"))
}

func unitAction(a Action, tag string, payload json.RawMessage) (Action, error) {
	if payload != nil && !isNull(payload) {
		return nil, fmt.Errorf("%w: %s takes no payload", ErrMalformed, tag)
	}
	return a, nil
}

func decodePayload(tag string, payload json.RawMessage, dst any) error {
	if payload == nil || isNull(payload) {
		return fmt.Errorf("%w: %s needs a payload", ErrMalformed, tag)
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformed, tag, err)
	}
	return nil
}

func decodeTuple(tag string, payload json.RawMessage, fields ...any) error {
	var parts []json.RawMessage
	if err := decodePayload(tag, payload, &parts); err != nil {
		return err
	}
	if len(parts) != len(fields) {
		return fmt.Errorf("%w: %s expects %d fields, got %d", ErrMalformed, tag, len(fields), len(parts))
	}
	for i, part := range parts {
		if isNull(part) {
			return fmt.Errorf("%w: %s field %d is null", ErrMalformed, tag, i)
		}
		if err := json.Unmarshal(part, fields[i]); err != nil {
			return fmt.Errorf("%w: %s field %d: %w", ErrMalformed, tag, i, err)
		}
	}
	return nil
}
