package protocol

import "errors"

// Frame-level failures. All are replied to the client on an ErrorFrame and
// leave the connection open; only a missing API key at startup is fatal to
// the process.
var (
	ErrMalformedFrame = errors.New("invalid json")
	ErrNotIdentified  = errors.New("not identified")
	ErrMissingFields  = errors.New("missing required fields")
	ErrAuthMismatch   = errors.New("sender mismatch")
	ErrBadHistoryItem = errors.New("bad history item")
)
