package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gridmap/codec"
	"gridmap/grid_world"
	"gridmap/models"
)

// ErrMissingExplored is returned for a map section without an explored layer.
var ErrMissingExplored = errors.New("map section has no explored field")

// DecodeError reports which section of an inbound message failed to decode.
type DecodeError struct {
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// looseInt accepts a JSON number or a string holding one; the peer sends both.
type looseInt int

func (n *looseInt) UnmarshalJSON(b []byte) error {
	v, err := strconv.Atoi(strings.Trim(string(b), `"`))
	if err != nil {
		return fmt.Errorf("not an integer: %s", b)
	}
	*n = looseInt(v)
	return nil
}

// looseString accepts a JSON string or a bare number, e.g. a heading digit.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	*s = looseString(strings.Trim(string(b), `"`))
	return nil
}

type inboundMap struct {
	Explored *string `json:"explored"`
	Length   *int    `json:"length"`
	Obstacle string  `json:"obstacle"`

	// Some peers fold the robot pose into the map section, as a logical centre.
	RobotX         *looseInt    `json:"robotX"`
	RobotY         *looseInt    `json:"robotY"`
	RobotDirection *looseString `json:"robotDirection"`
}

// inboundRobot has the shape of an outbound RobotPose, and like it is in board coordinates.
type inboundRobot struct {
	X         looseInt    `json:"x"`
	Y         looseInt    `json:"y"`
	Direction looseString `json:"direction"`
}

type inboundImage struct {
	ImageString string `json:"imageString"`
}

type inboundMessage struct {
	Map    []inboundMap   `json:"map"`
	Robot  []inboundRobot `json:"robot"`
	Image  []inboundImage `json:"image"`
	Status []StatusEntry  `json:"status"`
}

// Pose is a validated robot pose, centred in board coordinates.
type Pose struct {
	Center  models.Board
	Heading models.Heading
}

// Update is a fully decoded inbound message. Sections the peer did not send are nil.
// Cells holds one type per playable cell in scan order, possibly fewer than the map holds.
type Update struct {
	Robot  *Pose
	Cells  []models.CellType
	Images []models.Annotation
	Status *string
}

// Empty reports whether the update carries nothing to apply.
func (u Update) Empty() bool {
	return u.Robot == nil && u.Cells == nil && u.Images == nil && u.Status == nil
}

// ParseUpdate decodes and validates an inbound message. Nothing is applied here, so a
// message that fails any check can be dropped whole.
//
// A map section that carries a length is a descriptor in the outbound format and its
// obstacle layer is decoded along with the explored layer. Without a length, the explored
// field is the peer's two-bit pair stream, which carries obstacles itself; an obstacle
// field alongside it is only checked for well-formedness.
func ParseUpdate(raw []byte) (Update, error) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Update{}, &DecodeError{Field: "message", Err: err}
	}

	var u Update
	var err error

	if len(msg.Robot) > 0 {
		r := msg.Robot[0]
		center := models.Board{X: int(r.X), Y: int(r.Y)}
		if u.Robot, err = parsePose(center, string(r.Direction)); err != nil {
			return Update{}, &DecodeError{Field: "robot", Err: err}
		}
	} else if len(msg.Map) > 0 && msg.Map[0].RobotX != nil && msg.Map[0].RobotY != nil {
		m := msg.Map[0]
		dir := ""
		if m.RobotDirection != nil {
			dir = string(*m.RobotDirection)
		}
		center := models.Coord{X: int(*m.RobotX), Y: int(*m.RobotY)}.Board()
		if u.Robot, err = parsePose(center, dir); err != nil {
			return Update{}, &DecodeError{Field: "map.robot", Err: err}
		}
	}

	if len(msg.Map) > 0 {
		m := msg.Map[0]
		if m.Explored == nil {
			return Update{}, &DecodeError{Field: "map", Err: ErrMissingExplored}
		}
		if m.Length != nil {
			u.Cells, err = codec.DecodeMap(codec.MapDescriptor{
				Explored: *m.Explored,
				Length:   *m.Length,
				Obstacle: m.Obstacle,
			})
		} else {
			u.Cells, err = codec.DecodeExplored(*m.Explored)
			if err == nil && m.Obstacle != "" {
				err = codec.ValidateHex(m.Obstacle)
			}
		}
		if err != nil {
			return Update{}, &DecodeError{Field: "map", Err: err}
		}
	}

	for _, img := range msg.Image {
		list, err := codec.DecodeAnnotations(img.ImageString)
		if err != nil {
			return Update{}, &DecodeError{Field: "image", Err: err}
		}
		u.Images = append(u.Images, list...)
	}

	if len(msg.Status) > 0 {
		status := msg.Status[0].Status
		u.Status = &status
	}
	return u, nil
}

// parsePose validates a robot centre and a heading given as the peer's digit or as a
// heading name.
func parsePose(center models.Board, direction string) (*Pose, error) {
	if !center.FootprintFits() {
		return nil, fmt.Errorf("centre %v: %w", center, grid_world.ErrOutOfBounds)
	}
	heading, err := models.ParseHeadingDigit(direction)
	if err != nil {
		if heading, err = models.ParseHeading(direction); err != nil {
			return nil, err
		}
	}
	return &Pose{Center: center, Heading: heading}, nil
}

// Applied summarizes what an Update changed.
type Applied struct {
	RobotPlaced    bool
	Cells          int
	ImagesAccepted int
	ImagesRejected int
	Status         bool
}

// Apply mutates s with a parsed update: the robot pose first, then the map layer, then the
// images, then the status text. Annotations that do not land on an obstacle, or that repeat
// a coordinate, are counted as rejected.
func (u Update) Apply(s *grid_world.Session) Applied {
	var a Applied
	if u.Robot != nil {
		// The centre was validated by ParseUpdate.
		if err := s.PlaceRobot(u.Robot.Center, u.Robot.Heading); err == nil {
			a.RobotPlaced = true
		}
	}
	if u.Cells != nil {
		s.ApplyScan(u.Cells)
		a.Cells = len(u.Cells)
	}
	for _, img := range u.Images {
		if ok, err := s.AddAnnotation(img); ok && err == nil {
			a.ImagesAccepted++
		} else {
			a.ImagesRejected++
		}
	}
	if u.Status != nil {
		s.SetStatus(*u.Status)
		a.Status = true
	}
	return a
}
