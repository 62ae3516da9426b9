package app

import "errors"

// Signaling-level error taxonomy. All of these are reported back to the
// originating connection only and never crash the coordinator.
var (
	ErrNotInAnyChannel    = errors.New("not in any channel")
	ErrSourceRoomMissing  = errors.New("source room missing")
	ErrCredentialIssuance = errors.New("credential issuance failed")
	ErrInvalidPayload     = errors.New("invalid payload")
	ErrRoomExists         = errors.New("room already exists")
)
