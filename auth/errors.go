package auth

import "errors"

// Grant failures are tagged outcomes. The HTTP boundary maps them to wire
// error codes; nothing below it inspects messages. Unknown client, inactive
// client, and wrong client secret all collapse into ErrInvalidClient, and
// every user-credential failure collapses into ErrInvalidGrant, so a caller
// cannot tell which check failed.
var (
	ErrInvalidClient      = errors.New("invalid client")
	ErrInvalidGrant       = errors.New("invalid grant")
	ErrUnauthorizedClient = errors.New("unauthorized client")
)
