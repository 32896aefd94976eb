package codec

import (
	"errors"

	"gridmap/models"
)

// Decode failures. Callers match them with errors.Is; the wrapped message carries the
// offending input.
var (
	ErrMalformedHex    = errors.New("malformed hex layer")
	ErrLayerTooLong    = errors.New("layer addresses more cells than the map holds")
	ErrMissingSentinel = errors.New("explored layer is missing its 11 framing")
	ErrLengthMismatch  = errors.New("obstacle layer does not match the explored layer")
	ErrMalformedChunk  = errors.New("malformed annotation chunk")
	ErrOutOfRange      = errors.New("annotation coordinate out of range")
	ErrBadTag          = models.ErrBadTag
)
