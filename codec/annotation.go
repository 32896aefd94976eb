package codec

import (
	"fmt"
	"strings"

	"gridmap/models"
)

// chunkLen is the width of one annotation on the wire: XXYYT, a two digit logical column,
// a two digit logical row, and the hex tag.
const chunkLen = 5

// EncodeAnnotations concatenates one chunk per annotation, in order.
func EncodeAnnotations(list []models.Annotation) string {
	var sb strings.Builder
	sb.Grow(len(list) * chunkLen)
	for _, a := range list {
		fmt.Fprintf(&sb, "%02d%02d%s", a.At.X, a.At.Y, a.Tag)
	}
	return sb.String()
}

// DecodeAnnotations splits s into chunks and decodes each. Any bad chunk, or a trailing
// fragment, fails the whole string. Duplicates are returned as sent; the session drops them.
func DecodeAnnotations(s string) ([]models.Annotation, error) {
	list := make([]models.Annotation, 0, len(s)/chunkLen)
	for i := 0; i < len(s); i += chunkLen {
		if len(s)-i < chunkLen {
			return nil, fmt.Errorf("%w: trailing fragment %q", ErrMalformedChunk, s[i:])
		}
		a, err := decodeChunk(s[i : i+chunkLen])
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, nil
}

func decodeChunk(chunk string) (models.Annotation, error) {
	x, okX := twoDigits(chunk[0:2])
	y, okY := twoDigits(chunk[2:4])
	if !okX || !okY {
		return models.Annotation{}, fmt.Errorf("%w: %q", ErrMalformedChunk, chunk)
	}
	at := models.Coord{X: x, Y: y}
	if !at.Valid() {
		return models.Annotation{}, fmt.Errorf("%w: %q addresses %v", ErrOutOfRange, chunk, at)
	}
	tag, err := models.ParseTag(chunk[4:])
	if err != nil {
		return models.Annotation{}, fmt.Errorf("chunk %q: %w", chunk, err)
	}
	return models.Annotation{At: at, Tag: tag}, nil
}

func twoDigits(s string) (int, bool) {
	if s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, false
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), true
}
