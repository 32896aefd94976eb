package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"gridmap/codec"
	"gridmap/grid_world"
	"gridmap/models"

	. "github.com/smartystreets/goconvey/convey"
)

func TestBuild(t *testing.T) {
	Convey("Given a fresh session", t, func() {
		s := grid_world.NewSession()

		Convey("The snapshot has an empty robot section and no waypoint", func() {
			raw, err := json.Marshal(Build(s))
			So(err, ShouldBeNil)

			var generic map[string]json.RawMessage
			So(json.Unmarshal(raw, &generic), ShouldBeNil)
			So(string(generic["robot"]), ShouldEqual, "[]")
			So(string(generic["obstacle"]), ShouldEqual, "[]")
			So(generic, ShouldNotContainKey, "waypoint")
			So(string(generic["status"]), ShouldEqual, `[{"status":"None"}]`)
		})

		Convey("With the robot placed, obstacles, an image and a waypoint", func() {
			So(s.PlaceStart(models.Board{X: 2, Y: 2}), ShouldBeNil)
			So(s.SetWaypoint(models.Board{X: 7, Y: 12}), ShouldBeNil)
			So(s.MarkObstacle(models.Board{X: 10, Y: 10}), ShouldBeNil)
			So(s.MarkObstacle(models.Board{X: 4, Y: 8}), ShouldBeNil)
			_, err := s.AddAnnotation(models.Annotation{At: models.Coord{X: 3, Y: 7}, Tag: 'C'})
			So(err, ShouldBeNil)

			msg := Build(s)

			So(msg.Robot, ShouldResemble, []RobotPose{{X: 2, Y: 2, Direction: "right"}})
			So(msg.Waypoint, ShouldResemble, []Point{{X: 7, Y: 12}})
			So(msg.Obstacle, ShouldResemble, []Point{{X: 10, Y: 10}, {X: 4, Y: 8}})
			So(msg.Image, ShouldResemble, []ImageEntry{{ImageX: 4, ImageY: 8, ImageType: "C"}})
			So(msg.Map[0], ShouldResemble, codec.EncodeMap(s.Grid()))
			So(msg.Map[0].Length, ShouldEqual, 11)
		})

		Convey("A faulted robot reports its fault label", func() {
			So(s.PlaceRobot(models.Board{X: 5, Y: 5}, models.HeadingNone), ShouldBeNil)
			_, err := s.Move(models.TurnLeft)
			So(err, ShouldBeNil)
			So(Build(s).Robot[0].Direction, ShouldEqual, "error-none")
		})
	})
}

func TestParseUpdate(t *testing.T) {
	Convey("When parsing inbound messages", t, func() {
		Convey("The robot pose is a board centre and the heading is a digit", func() {
			u, err := ParseUpdate([]byte(`{"robot":[{"x":5,"y":10,"direction":"5"}]}`))
			So(err, ShouldBeNil)
			So(u.Robot, ShouldResemble, &Pose{Center: models.Board{X: 5, Y: 10}, Heading: models.Down})
			So(u.Cells, ShouldBeNil)
		})

		Convey("Numbers may arrive as strings and headings as names", func() {
			u, err := ParseUpdate([]byte(`{"robot":[{"x":"2","y":"2","direction":"left"}]}`))
			So(err, ShouldBeNil)
			So(u.Robot.Heading, ShouldEqual, models.Left)
			So(u.Robot.Center, ShouldResemble, models.Board{X: 2, Y: 2})
		})

		Convey("The pose may be folded into the map section as a logical centre", func() {
			u, err := ParseUpdate([]byte(`{"map":[{"explored":"e4","robotX":6,"robotY":6,"robotDirection":2}]}`))
			So(err, ShouldBeNil)
			So(u.Robot.Heading, ShouldEqual, models.Right)
			So(u.Robot.Center, ShouldResemble, models.Board{X: 7, Y: 7})
			So(u.Cells, ShouldHaveLength, 4)
		})

		Convey("A map with a length is a descriptor", func() {
			s := grid_world.NewSession()
			So(s.MarkObstacle(models.Board{X: 3, Y: 3}), ShouldBeNil)
			d := codec.EncodeMap(s.Grid())
			raw := fmt.Sprintf(`{"map":[{"explored":%q,"length":%d,"obstacle":%q}]}`, d.Explored, d.Length, d.Obstacle)

			u, err := ParseUpdate([]byte(raw))
			So(err, ShouldBeNil)
			So(u.Cells, ShouldHaveLength, models.CELLS)
			So(u.Cells[2*models.COLS+2], ShouldEqual, models.Obstacle)
		})

		Convey("Image strings from every entry are collected", func() {
			u, err := ParseUpdate([]byte(`{"image":[{"imageString":"0102A0304b"},{"imageString":"05061"}]}`))
			So(err, ShouldBeNil)
			So(u.Images, ShouldHaveLength, 3)
			So(u.Images[1], ShouldResemble, models.Annotation{At: models.Coord{X: 3, Y: 4}, Tag: 'B'})
		})

		Convey("A message with nothing known in it is empty", func() {
			u, err := ParseUpdate([]byte(`{"hello":"world"}`))
			So(err, ShouldBeNil)
			So(u.Empty(), ShouldBeTrue)
		})

		Convey("Failures name the section", func() {
			cases := map[string]string{
				`not json`:                                    "message",
				`{"robot":[{"x":0,"y":5,"direction":"0"}]}`:   "robot",
				`{"robot":[{"x":4,"y":5,"direction":"9"}]}`:   "robot",
				`{"map":[{"explored":"zz"}]}`:                 "map",
				`{"map":[{"explored":"e4","obstacle":"q"}]}`:  "map",
				`{"map":[{"explored":"c3","length":0}]}`:      "map",
				`{"map":[{"obstacle":"ff"}]}`:                 "map",
				`{"map":[{"length":4}]}`:                      "map",
				`{"robot":[{"x":15,"y":10,"direction":"2"}]}`: "robot",
				`{"image":[{"imageString":"0102"}]}`:          "image",
				`{"image":[{"imageString":"01020"}]}`:         "image",
			}
			for raw, field := range cases {
				_, err := ParseUpdate([]byte(raw))
				var de *DecodeError
				So(errors.As(err, &de), ShouldBeTrue)
				So(de.Field, ShouldEqual, field)
			}

			_, err := ParseUpdate([]byte(`{"image":[{"imageString":"01020"}]}`))
			So(errors.Is(err, codec.ErrBadTag), ShouldBeTrue)

			_, err = ParseUpdate([]byte(`{"map":[{"obstacle":"ff"}]}`))
			So(errors.Is(err, ErrMissingExplored), ShouldBeTrue)
		})
	})
}

func TestApply(t *testing.T) {
	Convey("Given a session with a placed robot", t, func() {
		s := grid_world.NewSession()
		So(s.PlaceStart(models.Board{X: 2, Y: 2}), ShouldBeNil)

		Convey("A scan of obstacles never overwrites the robot", func() {
			u, err := ParseUpdate([]byte(`{"map":[{"explored":"555555"}]}`))
			So(err, ShouldBeNil)
			a := u.Apply(s)
			So(a.Cells, ShouldEqual, 12)
			So(s.Grid().Count(models.Robot), ShouldEqual, 9)
			So(s.Obstacles(), ShouldResemble, []models.Board{
				{X: 4, Y: 1}, {X: 5, Y: 1}, {X: 6, Y: 1}, {X: 7, Y: 1}, {X: 8, Y: 1},
				{X: 9, Y: 1}, {X: 10, Y: 1}, {X: 11, Y: 1}, {X: 12, Y: 1},
			})
		})

		Convey("The pose is applied before the map", func() {
			raw := `{"robot":[{"x":6,"y":2,"direction":"0"}],"map":[{"explored":"555555"}]}`
			u, err := ParseUpdate([]byte(raw))
			So(err, ShouldBeNil)
			a := u.Apply(s)
			So(a.RobotPlaced, ShouldBeTrue)
			So(s.Robot().Position, ShouldResemble, models.Board{X: 6, Y: 2})
			So(s.Robot().Heading, ShouldEqual, models.Up)
			So(s.IsObstacle(models.Board{X: 6, Y: 1}), ShouldBeFalse)
			So(s.IsObstacle(models.Board{X: 3, Y: 1}), ShouldBeTrue)
		})

		Convey("Images land after the map marks their obstacles", func() {
			// Obstacle pairs for the first four cells of the bottom row; the robot keeps three of them.
			raw := `{"map":[{"explored":"55"}],"image":[{"imageString":"0300F0300E1000A"}],"status":[{"status":"scanning"}]}`
			u, err := ParseUpdate([]byte(raw))
			So(err, ShouldBeNil)
			a := u.Apply(s)
			So(a.ImagesAccepted, ShouldEqual, 1)
			So(a.ImagesRejected, ShouldEqual, 2)
			So(s.Grid().Type(models.Coord{X: 3, Y: 0}.Storage()), ShouldEqual, models.Image)
			So(s.Status(), ShouldEqual, "scanning")
		})

		Convey("A malformed message leaves the session untouched", func() {
			before := Build(s)
			raw := `{"robot":[{"x":7,"y":7,"direction":"1"}],"map":[{"explored":"55"}],"image":[{"imageString":"030"}],"status":[{"status":"x"}]}`
			_, err := ParseUpdate([]byte(raw))
			So(err, ShouldNotBeNil)
			So(Build(s), ShouldResemble, before)
		})
	})
}

func TestEcho(t *testing.T) {
	Convey("Given a session whose snapshot is echoed back by the peer", t, func() {
		for _, center := range []models.Board{{X: 5, Y: 5}, {X: 14, Y: 10}, {X: 2, Y: 19}} {
			s := grid_world.NewSession()
			So(s.PlaceStart(center), ShouldBeNil)
			So(s.MarkObstacle(models.Board{X: 9, Y: 14}), ShouldBeNil)
			raw, err := json.Marshal(Build(s))
			So(err, ShouldBeNil)

			u, err := ParseUpdate(raw)
			So(err, ShouldBeNil)
			fresh := grid_world.NewSession()
			a := u.Apply(fresh)

			So(a.RobotPlaced, ShouldBeTrue)
			So(fresh.Robot().Position, ShouldResemble, center)
			So(fresh.Robot().Heading, ShouldEqual, models.Right)
			So(fresh.IsObstacle(models.Board{X: 9, Y: 14}), ShouldBeTrue)
			So(Build(fresh).Robot, ShouldResemble, Build(s).Robot)
		}
	})
}
