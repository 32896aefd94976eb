package models

import (
	"errors"
	"fmt"
	"strings"
)

// Heading is the direction the robot faces.
type Heading uint8

const (
	HeadingNone Heading = iota
	Up
	Right
	Down
	Left
	// Fault is the sentinel entered when a rotation is requested without a usable heading.
	// The robot stays on the map; the fault is for the operator to see.
	Fault
)

var headingNames = [...]string{
	HeadingNone: "None",
	Up:          "up",
	Right:       "right",
	Down:        "down",
	Left:        "left",
	Fault:       "error",
}

func (h Heading) String() string {
	if int(h) < len(headingNames) {
		return headingNames[h]
	}
	return fmt.Sprintf("Heading(%d)", uint8(h))
}

// Cardinal reports whether h is one of the four compass headings.
func (h Heading) Cardinal() bool {
	return h >= Up && h <= Left
}

// Clockwise returns the heading after a right turn. The four cardinal headings form the
// cycle Up, Right, Down, Left.
func (h Heading) Clockwise() (Heading, bool) {
	switch h {
	case Up:
		return Right, true
	case Right:
		return Down, true
	case Down:
		return Left, true
	case Left:
		return Up, true
	}
	return Fault, false
}

// CounterClockwise returns the heading after a left turn.
func (h Heading) CounterClockwise() (Heading, bool) {
	switch h {
	case Up:
		return Left, true
	case Left:
		return Down, true
	case Down:
		return Right, true
	case Right:
		return Up, true
	}
	return Fault, false
}

// Delta returns the unit board displacement of one step forward along h.
func (h Heading) Delta() (dx, dy int) {
	switch h {
	case Up:
		return 0, 1
	case Down:
		return 0, -1
	case Right:
		return 1, 0
	case Left:
		return -1, 0
	}
	return 0, 0
}

var ErrUnknownHeading = errors.New("unknown heading")

// ParseHeading accepts a heading name as it appears in outbound messages.
func ParseHeading(s string) (Heading, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	case "none":
		return HeadingNone, nil
	}
	return HeadingNone, fmt.Errorf("%w: %q", ErrUnknownHeading, s)
}

// ParseHeadingDigit decodes the single decimal digit the peer sends for the robot's heading.
// The mapping is many-to-one: 0, 4 and 6 all mean up and 1, 5 and 7 all mean down. That is
// what the peer's encoder emits, so it is kept as is.
func ParseHeadingDigit(s string) (Heading, error) {
	switch s {
	case "0", "4", "6":
		return Up, nil
	case "1", "5", "7":
		return Down, nil
	case "2":
		return Right, nil
	case "3":
		return Left, nil
	}
	return HeadingNone, fmt.Errorf("%w: digit %q", ErrUnknownHeading, s)
}

// Command is a relative motion command.
type Command uint8

const (
	Forward Command = iota
	Back
	TurnLeft
	TurnRight
)

var commandNames = [...]string{
	Forward:   "forward",
	Back:      "back",
	TurnLeft:  "left",
	TurnRight: "right",
}

func (c Command) String() string {
	if int(c) < len(commandNames) {
		return commandNames[c]
	}
	return fmt.Sprintf("Command(%d)", uint8(c))
}

// Translates reports whether the command moves the robot rather than turning it.
func (c Command) Translates() bool {
	return c == Forward || c == Back
}

var ErrUnknownCommand = errors.New("unknown command")

func ParseCommand(s string) (Command, error) {
	for i, name := range commandNames {
		if strings.EqualFold(s, name) {
			return Command(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}
