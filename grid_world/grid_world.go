package grid_world

import (
	"strings"

	"gridmap/models"
)

// Grid is the cell array, indexed [x][y] in storage coordinates: column 0 is the label
// gutter, row 0 is the north edge, and row ROWS is the gutter below the south edge.
// The zero Grid is fully unexplored.
//
// Grid performs no validation of its own beyond the array extent. An out of range index
// is a programming error and panics; callers validate coordinates at the boundary.
type Grid struct {
	cells [models.COLS + 1][models.ROWS + 1]models.CellType
}

// Type returns the type of the cell at s.
func (g *Grid) Type(s models.Storage) models.CellType {
	return g.cells[s.X][s.Y]
}

// SetType sets the type of the cell at s.
func (g *Grid) SetType(s models.Storage, t models.CellType) {
	g.cells[s.X][s.Y] = t
}

// MarkFootprint sets the 3x3 block centred on the board coordinate to t.
// Callers keep the centre within the footprint margin, see models.Board.FootprintFits.
func (g *Grid) MarkFootprint(center models.Board, t models.CellType) {
	for _, b := range center.Footprint() {
		g.SetType(b.Storage(), t)
	}
}

// Reset reinitializes every cell, gutter included, to Unexplored.
func (g *Grid) Reset() {
	g.cells = [models.COLS + 1][models.ROWS + 1]models.CellType{}
}

// Clone returns an independent copy of the grid.
func (g *Grid) Clone() *Grid {
	clone := *g
	return &clone
}

// VisitPlayable calls fn for every playable cell in wire scan order (see models.ScanStorage).
func (g *Grid) VisitPlayable(fn func(i int, s models.Storage, t models.CellType)) {
	for i := 0; i < models.CELLS; i++ {
		s := models.ScanStorage(i)
		fn(i, s, g.Type(s))
	}
}

// Count returns the number of playable cells of type t.
func (g *Grid) Count(t models.CellType) (n int) {
	g.VisitPlayable(func(_ int, _ models.Storage, ct models.CellType) {
		if ct == t {
			n++
		}
	})
	return
}

// String renders the playable grid north-up, one rune per cell, for logs and test failures.
func (g *Grid) String() string {
	var sb strings.Builder
	for _, y := range models.Rev(models.ROWS) {
		for x := 0; x < models.COLS; x++ {
			sb.WriteRune(g.Type(models.Coord{X: x, Y: y}.Storage()).Rune())
			sb.WriteByte(' ')
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
