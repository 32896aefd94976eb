// cell_views contains views derived from the Cell view-model.
package cell_views

import (
	"gridmap/controller"
	"gridmap/grid_world"
	"gridmap/models"
)

// Cell is one playable map cell, oriented in the svg coordinate system such that [0][0] is
// the north-west cell, the one printed top left. As a rule of thumb, Cell fields should be
// immediately usable as view parameters.
type Cell struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Type  string `json:"type"`
	Fill  string `json:"fill"`
	Label string `json:"label,omitempty"`
}

// Convert transforms the grid into [x][y] cells. The y indices are flipped per the svg y-axis
// orientation, where 0 is the top of the coordinate system.
func Convert(g *grid_world.Grid) (cells [][]Cell) {
	cells = make([][]Cell, models.COLS)
	for x := range cells {
		cells[x] = make([]Cell, models.ROWS)
	}

	g.VisitPlayable(func(_ int, s models.Storage, t models.CellType) {
		c := s.Coord()
		svgY := models.ROWS - c.Y - 1
		cells[c.X][svgY] = Cell{
			X:    c.X,
			Y:    svgY,
			Type: t.String(),
			Fill: getFill(t),
		}
	})
	return
}

// MapModel is the view-model shared by the map page's views.
type MapModel struct {
	Cells      [][]Cell
	Direction  string
	Status     string
	Mode       string
	Pending    bool
	ConnStatus string
}

// FromFrame converts a published frame into the map page's view-model. Image cells are
// labelled with their annotation tag.
func FromFrame(f controller.Frame) MapModel {
	mm := MapModel{
		Cells:   Convert(f.Grid),
		Mode:    f.Mode.String(),
		Pending: f.Pending,

		ConnStatus: f.ConnStatus,
	}
	if len(f.Message.Robot) > 0 {
		mm.Direction = f.Message.Robot[0].Direction
	}
	if len(f.Message.Status) > 0 {
		mm.Status = f.Message.Status[0].Status
	}
	for _, img := range f.Message.Image {
		c := models.Board{X: img.ImageX, Y: img.ImageY}.Coord()
		if c.Valid() {
			mm.Cells[c.X][models.ROWS-c.Y-1].Label = img.ImageType
		}
	}
	return mm
}

func getFill(t models.CellType) (fill string) {
	switch t {
	case models.Unexplored:
		fill = "lightgray"
	case models.Explored:
		fill = "white"
	case models.Obstacle:
		fill = "black"
	case models.Robot:
		fill = "orange"
	case models.Start:
		fill = "lightblue"
	case models.End:
		fill = "lightyellow"
	case models.Waypoint:
		fill = "lightgreen"
	case models.Image:
		fill = "purple"
	case models.FastestPath:
		fill = "pink"
	}
	return
}
