package domain

import "errors"

// Infrastructure errors. Game-level errors live in the game package;
// everything here means "something around the core broke", never a rule
// violation by a player.
var (
	ErrStorageUnavailable = errors.New("storage-unavailable")
)

// Token errors, surfaced by the identity boundary.
var (
	ErrInvalidSigningAlg     = errors.New("invalid-signing-alg")
	ErrExpiredToken          = errors.New("expired-token")
	ErrInvalidTokenSignature = errors.New("invalid-token-signature")
	ErrCorruptedToken        = errors.New("corrupted-token")
)
