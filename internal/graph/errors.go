package graph

import "errors"

// Error kinds surfaced by the build and validate phases. Callers branch on
// these with errors.Is; most are wrapped with context at the point of
// failure.
var (
	ErrIdOutOfRange        = errors.New("osm id out of range")
	ErrMalformedInput      = errors.New("malformed input")
	ErrClassifierFailure   = errors.New("tag classifier failure")
	ErrInvariantViolated   = errors.New("graph invariant violated")
	ErrConfigError         = errors.New("invalid configuration")
	ErrTileVersionMismatch = errors.New("tile version mismatch")
)
