package models

import (
	"errors"
	"fmt"
	"strings"
)

// Tag is the one hex digit category of an image annotation, '1' through 'F'.
type Tag byte

var ErrBadTag = errors.New("annotation tag must be one hex digit 1-F")

// ParseTag accepts a single hex digit in either case and normalizes it to upper case.
// Zero is not a recognized category.
func ParseTag(s string) (Tag, error) {
	if len(s) != 1 {
		return 0, fmt.Errorf("%w: %q", ErrBadTag, s)
	}
	c := strings.ToUpper(s)[0]
	if (c >= '1' && c <= '9') || (c >= 'A' && c <= 'F') {
		return Tag(c), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrBadTag, s)
}

func (t Tag) String() string {
	return string(rune(t))
}

// Value is the tag's numeric value, 1 through 15.
func (t Tag) Value() int {
	if t >= 'A' {
		return int(t-'A') + 10
	}
	return int(t - '0')
}

// Icon names the category the tag stands for.
func (t Tag) Icon() string {
	switch t {
	case '1':
		return "up"
	case '2':
		return "down"
	case '3':
		return "right"
	case '4':
		return "left"
	case '5':
		return "circle"
	case '6':
		return "one"
	case '7':
		return "two"
	case '8':
		return "three"
	case '9':
		return "four"
	case 'A':
		return "five"
	case 'B':
		return "letter_a"
	case 'C':
		return "letter_b"
	case 'D':
		return "letter_c"
	case 'E':
		return "letter_d"
	case 'F':
		return "letter_e"
	}
	return "unknown"
}

// Annotation is a point marker (an "image") anchored to an obstacle cell.
type Annotation struct {
	At  Coord
	Tag Tag
}

func (a Annotation) String() string {
	return fmt.Sprintf("(%d, %d, %d)", a.At.X, a.At.Y, a.Tag.Value())
}
