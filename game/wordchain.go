package game

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
)

const KindWordChain GameKind = "wordchain"

type wordChain struct{}

func NewWordChain() Engine { return wordChain{} }

type wordChainState struct {
	Words []string `json:"words"`
	// Target, when non-zero, completes the chain cooperatively once
	// reached. Zero means the chain runs until the room goes idle.
	Target int `json:"target,omitempty"`
}

type wordChainConfig struct {
	TargetLength int `json:"targetLength"`
}

type wordChainMove struct {
	Word string `json:"word"`
}

var wordPattern = regexp.MustCompile(`^[a-z]{2,24}$`)

func (wordChain) Kind() GameKind { return KindWordChain }

func (wordChain) Rules() Rules {
	return Rules{
		MinPlayers: 2,
		MaxPlayers: 8,
		TurnBased:  true,
		Retention:  2 * time.Hour,
	}
}

func (wordChain) InitialState(config json.RawMessage) (json.RawMessage, error) {
	var cfg wordChainConfig
	if len(config) > 0 {
		if err := json.Unmarshal(config, &cfg); err != nil {
			return nil, fmt.Errorf("%w: bad word chain config", ErrInvalidPayload)
		}
	}
	if cfg.TargetLength < 0 {
		return nil, fmt.Errorf("%w: negative target length", ErrInvalidPayload)
	}
	return json.Marshal(wordChainState{Target: cfg.TargetLength})
}

func (e wordChain) ValidateJoin(room *Room, actorID string, asSpectator bool) error {
	return validateJoinCommon(room, e.Rules(), actorID, asSpectator)
}

func (e wordChain) ApplyMove(room *Room, actorID string, payload json.RawMessage) (json.RawMessage, *Outcome, error) {
	var st wordChainState
	if err := json.Unmarshal(room.State, &st); err != nil {
		return nil, nil, fmt.Errorf("decode word chain state: %w", err)
	}
	if err := requireTurn(room.TurnOrder, len(st.Words), actorID); err != nil {
		return nil, nil, err
	}

	var mv wordChainMove
	if err := json.Unmarshal(payload, &mv); err != nil {
		return nil, nil, fmt.Errorf("%w: want {\"word\": \"...\"}", ErrInvalidPayload)
	}
	word := strings.ToLower(strings.TrimSpace(mv.Word))
	if !wordPattern.MatchString(word) {
		return nil, nil, fmt.Errorf("%w: %q is not a usable word", ErrInvalidPayload, mv.Word)
	}
	if len(st.Words) > 0 {
		prev := st.Words[len(st.Words)-1]
		required := prev[len(prev)-1]
		if word[0] != required {
			return nil, nil, fmt.Errorf("%w: word must start with %q", ErrInvalidPayload, string(required))
		}
	}
	if slices.Contains(st.Words, word) {
		return nil, nil, fmt.Errorf("%w: %q was already used", ErrInvalidPayload, word)
	}
	st.Words = append(st.Words, word)

	var outcome *Outcome
	if st.Target > 0 && len(st.Words) >= st.Target {
		outcome = &Outcome{Kind: OutcomeDraw}
	}

	newState, err := json.Marshal(st)
	if err != nil {
		return nil, nil, fmt.Errorf("encode word chain state: %w", err)
	}
	return newState, outcome, nil
}

func (wordChain) IsTerminal(state json.RawMessage) bool {
	var st wordChainState
	if err := json.Unmarshal(state, &st); err != nil {
		return false
	}
	return st.Target > 0 && len(st.Words) >= st.Target
}

func (wordChain) CurrentActor(room *Room) string {
	var st wordChainState
	if err := json.Unmarshal(room.State, &st); err != nil {
		return ""
	}
	return expectedActor(room.TurnOrder, len(st.Words))
}
