package snapshot

import (
	"gridmap/codec"
	"gridmap/grid_world"
	"gridmap/models"
)

// Point is a board coordinate on the wire.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type RobotPose struct {
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Direction string `json:"direction"`
}

type ImageEntry struct {
	ImageX    int    `json:"imageX"`
	ImageY    int    `json:"imageY"`
	ImageType string `json:"imageType"`
}

type StatusEntry struct {
	Status string `json:"status"`
}

// Message is the outbound map snapshot. Every section is a JSON array, even those that
// only ever hold one element; the waypoint section is omitted until a waypoint is set.
type Message struct {
	Map      []codec.MapDescriptor `json:"map"`
	Robot    []RobotPose           `json:"robot"`
	Waypoint []Point               `json:"waypoint,omitempty"`
	Obstacle []Point               `json:"obstacle"`
	Image    []ImageEntry          `json:"image"`
	Status   []StatusEntry         `json:"status"`
}

// Build assembles the outbound snapshot of s. Coordinates are board coordinates.
func Build(s *grid_world.Session) Message {
	msg := Message{
		Map:      []codec.MapDescriptor{codec.EncodeMap(s.Grid())},
		Robot:    []RobotPose{},
		Obstacle: []Point{},
		Image:    []ImageEntry{},
		Status:   []StatusEntry{{Status: s.Status()}},
	}

	if r := s.Robot(); r.Placed {
		msg.Robot = append(msg.Robot, RobotPose{
			X:         r.Position.X,
			Y:         r.Position.Y,
			Direction: r.HeadingLabel(),
		})
	}
	if wp, ok := s.Waypoint(); ok {
		msg.Waypoint = []Point{toPoint(wp)}
	}
	for _, o := range s.Obstacles() {
		msg.Obstacle = append(msg.Obstacle, toPoint(o))
	}
	for _, a := range s.Annotations() {
		b := a.At.Board()
		msg.Image = append(msg.Image, ImageEntry{
			ImageX:    b.X,
			ImageY:    b.Y,
			ImageType: a.Tag.String(),
		})
	}
	return msg
}

func toPoint(b models.Board) Point {
	return Point{X: b.X, Y: b.Y}
}
