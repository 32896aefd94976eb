package grid_world

import (
	"errors"
	"fmt"

	"gridmap/models"
)

// ErrOutOfBounds is returned when a coordinate from outside the core does not address a
// usable cell (or, for robot placement, does not leave room for the 3x3 footprint).
var ErrOutOfBounds = errors.New("coordinate out of bounds")

// DefaultEnd is the centre of the goal block in board coordinates, the north-east corner.
var DefaultEnd = models.Board{X: 14, Y: 19}

// DefaultStatus is the robot status text before the peer reports one.
const DefaultStatus = "None"

// Marker is the side-channel notification emitted when the operator commits a start
// coordinate (Flag "0") or a waypoint (Flag "1"). X and Y are the logical coordinate as
// two-digit, zero-padded decimal strings.
type Marker struct {
	Flag string `json:"flag"`
	X    string `json:"x"`
	Y    string `json:"y"`
}

const (
	StartFlag    = "0"
	WaypointFlag = "1"
)

func newMarker(flag string, b models.Board) Marker {
	c := b.Coord()
	return Marker{
		Flag: flag,
		X:    fmt.Sprintf("%02d", c.X),
		Y:    fmt.Sprintf("%02d", c.Y),
	}
}

// Session is the single aggregate of map state: the grid, the robot, the obstacle set, the
// annotation list, the start/waypoint/end markers, and the status text. Exactly one owner
// mutates a Session; it is not safe for concurrent use.
type Session struct {
	grid        Grid
	robot       Robot
	obstacles   []models.Board
	obstacleSet map[models.Board]struct{}
	annotations []models.Annotation
	start       *models.Board
	waypoint    *models.Board
	end         models.Board
	status      string
	onMarker    func(Marker)
}

// Option configures a Session.
type Option func(*Session)

// WithEnd places the goal block. Centres that would not fit the footprint are ignored.
func WithEnd(center models.Board) Option {
	return func(s *Session) {
		if center.FootprintFits() {
			s.end = center
		}
	}
}

// WithMarkers registers the side-channel callback for start and waypoint commits.
func WithMarkers(fn func(Marker)) Option {
	return func(s *Session) {
		s.onMarker = fn
	}
}

// NewSession returns a session in its virgin state.
func NewSession(opts ...Option) *Session {
	s := &Session{end: DefaultEnd}
	for _, opt := range opts {
		opt(s)
	}
	s.Reset()
	return s
}

// Reset returns the session to its virgin state: every cell unexplored, no robot, no
// obstacles, no annotations, no start or waypoint, and the goal block repainted.
func (s *Session) Reset() {
	s.grid.Reset()
	s.robot = Robot{}
	s.obstacles = nil
	s.obstacleSet = map[models.Board]struct{}{}
	s.annotations = nil
	s.start = nil
	s.waypoint = nil
	s.status = DefaultStatus
	s.grid.MarkFootprint(s.end, models.End)
}

// Grid returns the session's grid. The grid must only be read through this pointer.
func (s *Session) Grid() *Grid {
	return &s.grid
}

func (s *Session) Robot() Robot {
	return s.robot
}

// Obstacles returns the obstacle set in insertion order.
func (s *Session) Obstacles() []models.Board {
	return append([]models.Board(nil), s.obstacles...)
}

// IsObstacle reports whether b is in the obstacle set.
func (s *Session) IsObstacle(b models.Board) bool {
	_, ok := s.obstacleSet[b]
	return ok
}

// Annotations returns the annotation list in insertion order.
func (s *Session) Annotations() []models.Annotation {
	return append([]models.Annotation(nil), s.annotations...)
}

func (s *Session) Start() (models.Board, bool) {
	if s.start == nil {
		return models.Board{}, false
	}
	return *s.start, true
}

func (s *Session) Waypoint() (models.Board, bool) {
	if s.waypoint == nil {
		return models.Board{}, false
	}
	return *s.waypoint, true
}

func (s *Session) End() models.Board {
	return s.end
}

func (s *Session) Status() string {
	return s.status
}

func (s *Session) SetStatus(status string) {
	s.status = status
}

// PlaceStart commits the start coordinate and drops the robot there, facing right.
// A previous start block is cleared back to unexplored, and if the robot had already left
// it, the robot's last footprint is left as explored trail.
func (s *Session) PlaceStart(center models.Board) error {
	if !center.FootprintFits() {
		return fmt.Errorf("start %v: %w", center, ErrOutOfBounds)
	}

	if s.robot.Placed {
		if s.start != nil {
			s.grid.MarkFootprint(*s.start, models.Unexplored)
		}
		if s.start == nil || *s.start != s.robot.Position {
			s.grid.MarkFootprint(s.robot.Position, models.Explored)
		}
	}

	start := center
	s.start = &start
	s.robot = Robot{Position: center, Heading: models.Right, Placed: true}
	s.grid.MarkFootprint(center, models.Robot)
	s.emit(newMarker(StartFlag, center))
	return nil
}

// PlaceRobot applies an authoritative robot pose, e.g. one reported by the peer.
// The previous footprint becomes explored trail.
func (s *Session) PlaceRobot(center models.Board, heading models.Heading) error {
	if !center.FootprintFits() {
		return fmt.Errorf("robot %v: %w", center, ErrOutOfBounds)
	}
	if s.robot.Placed {
		s.grid.MarkFootprint(s.robot.Position, models.Explored)
	}
	s.robot = Robot{Position: center, Heading: heading, Placed: true}
	s.grid.MarkFootprint(center, models.Robot)
	return nil
}

// SetWaypoint moves the waypoint marker. The old waypoint cell is cleared to unexplored.
func (s *Session) SetWaypoint(b models.Board) error {
	if !b.Valid() {
		return fmt.Errorf("waypoint %v: %w", b, ErrOutOfBounds)
	}
	if s.waypoint != nil {
		s.grid.SetType(s.waypoint.Storage(), models.Unexplored)
	}
	wp := b
	s.waypoint = &wp
	s.grid.SetType(b.Storage(), models.Waypoint)
	s.emit(newMarker(WaypointFlag, b))
	return nil
}

// MarkObstacle adds b to the obstacle set and marks its cell.
func (s *Session) MarkObstacle(b models.Board) error {
	if !b.Valid() {
		return fmt.Errorf("obstacle %v: %w", b, ErrOutOfBounds)
	}
	s.markObstacle(b)
	return nil
}

// markObstacle adds b to the obstacle set. An Image cell is already an obstacle and keeps
// its annotation.
func (s *Session) markObstacle(b models.Board) {
	if _, ok := s.obstacleSet[b]; !ok {
		s.obstacleSet[b] = struct{}{}
		s.obstacles = append(s.obstacles, b)
	}
	if st := b.Storage(); s.grid.Type(st) != models.Image {
		s.grid.SetType(st, models.Obstacle)
	}
}

// MarkExplored marks a single cell explored.
func (s *Session) MarkExplored(b models.Board) error {
	if !b.Valid() {
		return fmt.Errorf("explored %v: %w", b, ErrOutOfBounds)
	}
	s.grid.SetType(b.Storage(), models.Explored)
	return nil
}

// UnsetCell clears a cell to unexplored. This is the only way the obstacle set shrinks
// outside of a reset; an annotation anchored to the cell goes with it.
func (s *Session) UnsetCell(b models.Board) error {
	if !b.Valid() {
		return fmt.Errorf("unset %v: %w", b, ErrOutOfBounds)
	}
	s.grid.SetType(b.Storage(), models.Unexplored)

	if _, ok := s.obstacleSet[b]; ok {
		delete(s.obstacleSet, b)
		for i, o := range s.obstacles {
			if o == b {
				s.obstacles = append(s.obstacles[:i], s.obstacles[i+1:]...)
				break
			}
		}
	}

	at := b.Coord()
	for i, a := range s.annotations {
		if a.At == at {
			s.annotations = append(s.annotations[:i], s.annotations[i+1:]...)
			break
		}
	}
	return nil
}

// AddAnnotation records an image annotation. It is accepted only if its cell currently holds
// an obstacle and no annotation exists at the same coordinate; rejected annotations are not
// an error. Accepted annotations turn their cell into an Image cell.
func (s *Session) AddAnnotation(a models.Annotation) (bool, error) {
	if !a.At.Valid() {
		return false, fmt.Errorf("annotation %v: %w", a.At, ErrOutOfBounds)
	}
	for _, existing := range s.annotations {
		if existing.At == a.At {
			return false, nil
		}
	}
	st := a.At.Storage()
	if s.grid.Type(st) != models.Obstacle {
		return false, nil
	}
	s.annotations = append(s.annotations, a)
	s.grid.SetType(st, models.Image)
	return true, nil
}

// ApplyScan applies decoded occupancy, one type per playable cell in scan order. Only
// Unexplored, Explored and Obstacle are meaningful here. Robot and Image cells are never
// overwritten; an annotated obstacle is only cleared by UnsetCell. Obstacles go through the
// obstacle set.
func (s *Session) ApplyScan(types []models.CellType) {
	for i, t := range types {
		st := models.ScanStorage(i)
		if cur := s.grid.Type(st); cur == models.Robot || cur == models.Image {
			continue
		}
		switch t {
		case models.Obstacle:
			s.markObstacle(st.Board())
		case models.Explored, models.Unexplored:
			s.grid.SetType(st, t)
		}
	}
}

func (s *Session) emit(m Marker) {
	if s.onMarker != nil {
		s.onMarker(m)
	}
}
