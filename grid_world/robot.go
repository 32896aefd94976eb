package grid_world

import (
	"errors"
	"strings"

	"gridmap/models"
)

// Robot is the robot's pose. Position is the centre of its 3x3 footprint in board
// coordinates and is meaningful only once Placed. Fault holds the sentinel label
// (e.g. "error-none") while Heading is models.Fault.
type Robot struct {
	Position models.Board
	Heading  models.Heading
	Fault    string
	Placed   bool
}

// HeadingLabel is the heading as shown to the operator, including the fault label.
func (r Robot) HeadingLabel() string {
	if r.Heading == models.Fault {
		return r.Fault
	}
	return r.Heading.String()
}

// Blocked describes why a command did not translate the robot.
type Blocked uint8

const (
	NotBlocked Blocked = iota
	BlockedBoundary
	BlockedObstacle
	BlockedFault
)

func (b Blocked) String() string {
	switch b {
	case NotBlocked:
		return "none"
	case BlockedBoundary:
		return "boundary"
	case BlockedObstacle:
		return "obstacle"
	case BlockedFault:
		return "fault"
	}
	return "unknown"
}

// MoveResult is the outcome of one command.
type MoveResult struct {
	Command models.Command
	From    models.Board
	To      models.Board
	Heading models.Heading
	Moved   bool
	Blocked Blocked
}

var ErrRobotNotPlaced = errors.New("robot has not been placed")

// Move runs one transition of the robot's state machine. Turns only change the heading;
// forward and back translate one cell along the heading, unless the footprint would leave
// the map (a no-op) or overlap the obstacle set (rejected, pose unchanged). A successful
// translation leaves the old footprint as explored trail and marks the new one.
// A command issued without a cardinal heading puts the robot into the Fault heading.
func (s *Session) Move(cmd models.Command) (MoveResult, error) {
	if !s.robot.Placed {
		return MoveResult{Command: cmd}, ErrRobotNotPlaced
	}

	from := s.robot.Position
	next, blocked := step(s.robot, cmd)
	res := MoveResult{
		Command: cmd,
		From:    from,
		To:      from,
		Blocked: blocked,
	}

	switch {
	case blocked == BlockedFault:
		s.robot.Heading = next.Heading
		s.robot.Fault = next.Fault
	case blocked == BlockedBoundary:
	case cmd.Translates():
		if s.footprintBlocked(next.Position) {
			res.Blocked = BlockedObstacle
			break
		}
		s.grid.MarkFootprint(from, models.Explored)
		s.grid.MarkFootprint(next.Position, models.Robot)
		s.robot.Position = next.Position
		res.To = next.Position
		res.Moved = true
	default:
		s.robot.Heading = next.Heading
	}

	res.Heading = s.robot.Heading
	return res, nil
}

// step computes the candidate pose for cmd. It does not consult the obstacle set.
func step(r Robot, cmd models.Command) (Robot, Blocked) {
	if !r.Heading.Cardinal() {
		return faulted(r), BlockedFault
	}

	next := r
	switch cmd {
	case models.TurnRight:
		next.Heading, _ = r.Heading.Clockwise()
	case models.TurnLeft:
		next.Heading, _ = r.Heading.CounterClockwise()
	case models.Forward, models.Back:
		dx, dy := r.Heading.Delta()
		if cmd == models.Back {
			dx, dy = -dx, -dy
		}
		next.Position = models.Board{X: r.Position.X + dx, Y: r.Position.Y + dy}
		if !next.Position.FootprintFits() {
			return r, BlockedBoundary
		}
	default:
		return faulted(r), BlockedFault
	}
	return next, NotBlocked
}

// faulted moves r into the fault sentinel, labelled by the heading it faulted from.
// A robot already faulted keeps its original label.
func faulted(r Robot) Robot {
	if r.Heading != models.Fault {
		r.Fault = "error-" + strings.ToLower(r.Heading.String())
	}
	r.Heading = models.Fault
	return r
}

func (s *Session) footprintBlocked(center models.Board) bool {
	for _, b := range center.Footprint() {
		if s.IsObstacle(b) {
			return true
		}
	}
	return false
}
