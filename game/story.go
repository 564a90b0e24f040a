package game

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const KindStory GameKind = "story"

const (
	storyDefaultMaxEntries = 40
	storyEntryMaxRunes     = 200
)

type story struct{}

func NewStory() Engine { return story{} }

type storyEntry struct {
	Actor string `json:"actor"`
	Text  string `json:"text"`
}

type storyState struct {
	Entries    []storyEntry `json:"entries"`
	MaxEntries int          `json:"max_entries"`
}

type storyConfig struct {
	MaxEntries int `json:"maxEntries"`
}

type storyMove struct {
	Text string `json:"text"`
}

func (story) Kind() GameKind { return KindStory }

func (story) Rules() Rules {
	return Rules{
		MinPlayers: 2,
		MaxPlayers: 10,
		TurnBased:  true,
		Retention:  12 * time.Hour,
	}
}

func (story) InitialState(config json.RawMessage) (json.RawMessage, error) {
	cfg := storyConfig{MaxEntries: storyDefaultMaxEntries}
	if len(config) > 0 {
		if err := json.Unmarshal(config, &cfg); err != nil {
			return nil, fmt.Errorf("%w: bad story config", ErrInvalidPayload)
		}
	}
	if cfg.MaxEntries < 1 {
		return nil, fmt.Errorf("%w: maxEntries must be positive", ErrInvalidPayload)
	}
	return json.Marshal(storyState{MaxEntries: cfg.MaxEntries})
}

func (e story) ValidateJoin(room *Room, actorID string, asSpectator bool) error {
	return validateJoinCommon(room, e.Rules(), actorID, asSpectator)
}

func (e story) ApplyMove(room *Room, actorID string, payload json.RawMessage) (json.RawMessage, *Outcome, error) {
	var st storyState
	if err := json.Unmarshal(room.State, &st); err != nil {
		return nil, nil, fmt.Errorf("decode story state: %w", err)
	}
	if err := requireTurn(room.TurnOrder, len(st.Entries), actorID); err != nil {
		return nil, nil, err
	}

	var mv storyMove
	if err := json.Unmarshal(payload, &mv); err != nil {
		return nil, nil, fmt.Errorf("%w: want {\"text\": \"...\"}", ErrInvalidPayload)
	}
	text := strings.TrimSpace(mv.Text)
	if text == "" {
		return nil, nil, fmt.Errorf("%w: empty entry", ErrInvalidPayload)
	}
	if utf8.RuneCountInString(text) > storyEntryMaxRunes {
		return nil, nil, fmt.Errorf("%w: entry longer than %d characters", ErrInvalidPayload, storyEntryMaxRunes)
	}
	st.Entries = append(st.Entries, storyEntry{Actor: actorID, Text: text})

	var outcome *Outcome
	if len(st.Entries) >= st.MaxEntries {
		outcome = &Outcome{Kind: OutcomeDraw}
	}

	newState, err := json.Marshal(st)
	if err != nil {
		return nil, nil, fmt.Errorf("encode story state: %w", err)
	}
	return newState, outcome, nil
}

func (story) IsTerminal(state json.RawMessage) bool {
	var st storyState
	if err := json.Unmarshal(state, &st); err != nil {
		return false
	}
	return st.MaxEntries > 0 && len(st.Entries) >= st.MaxEntries
}

func (story) CurrentActor(room *Room) string {
	var st storyState
	if err := json.Unmarshal(room.State, &st); err != nil {
		return ""
	}
	return expectedActor(room.TurnOrder, len(st.Entries))
}
