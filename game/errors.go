package game

import "errors"

// Every error below is an expected, user-recoverable condition and is
// returned as a value, never panicked. Handlers map them to HTTP statuses.
var (
	ErrRoomNotFound           = errors.New("room-not-found")
	ErrRoomFull               = errors.New("room-full")
	ErrAlreadyJoined          = errors.New("already-joined")
	ErrGameAlreadyInProgress  = errors.New("game-already-in-progress")
	ErrNotAMember             = errors.New("not-a-member")
	ErrNotYourTurn            = errors.New("not-your-turn")
	ErrInvalidPayload         = errors.New("invalid-payload")
	ErrOutOfBounds            = errors.New("out-of-bounds")
	ErrGameAlreadyOver        = errors.New("game-already-over")
	ErrConcurrentModification = errors.New("concurrent-modification")
	ErrUnknownGameKind        = errors.New("unknown-game-kind")
	ErrInvalidRoomID          = errors.New("invalid-room-id")
)
