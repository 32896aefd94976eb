package models

import "fmt"

// There are three frames for a map position, each with its own type so that a conversion is
// never implicit:
//
//	Coord   - logical, 0-based: column [0,14], row [0,19], row 0 is the south edge.
//	Board   - logical, 1-based: column [1,15], row [1,20]. Robot positions, obstacles, the
//	          start and waypoint markers, and outbound wire coordinates use this frame.
//	Storage - the cell array index: column [0,15], row [0,20], row 0 is the north edge.
//	          Column 0 and row 20 are the non-playable label gutter.
//
// Board and Storage share their column; rows are reflected through ToStorageRow.

// Coord is a logical, 0-based map coordinate.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Board is a 1-based logical map coordinate.
type Board struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Storage is an index into the cell array.
type Storage struct {
	X, Y int
}

// ToStorageRow reflects a board row into a storage row. The reflection is its own inverse,
// so it also maps a storage row back to a board row. Nothing else computes 20 - row.
func ToStorageRow(row int) int {
	return ROWS - row
}

func (c Coord) Board() Board {
	return Board{X: c.X + 1, Y: c.Y + 1}
}

func (c Coord) Storage() Storage {
	return c.Board().Storage()
}

func (c Coord) Valid() bool {
	return c.X >= 0 && c.X < COLS && c.Y >= 0 && c.Y < ROWS
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

func (b Board) Coord() Coord {
	return Coord{X: b.X - 1, Y: b.Y - 1}
}

func (b Board) Storage() Storage {
	return Storage{X: b.X, Y: ToStorageRow(b.Y)}
}

func (b Board) Valid() bool {
	return b.X >= 1 && b.X <= COLS && b.Y >= 1 && b.Y <= ROWS
}

// FootprintFits reports whether the 3x3 block centred on b lies entirely on the map,
// e.g. column in [2,14] and row in [2,19].
func (b Board) FootprintFits() bool {
	return b.X >= 2 && b.X <= COLS-1 && b.Y >= 2 && b.Y <= ROWS-1
}

// Footprint returns the 3x3 block centred on b, row by row from the south.
func (b Board) Footprint() []Board {
	cells := make([]Board, 0, 9)
	for y := b.Y - 1; y <= b.Y+1; y++ {
		for x := b.X - 1; x <= b.X+1; x++ {
			cells = append(cells, Board{X: x, Y: y})
		}
	}
	return cells
}

func (b Board) String() string {
	return fmt.Sprintf("[%d,%d]", b.X, b.Y)
}

func (s Storage) Board() Board {
	return Board{X: s.X, Y: ToStorageRow(s.Y)}
}

func (s Storage) Coord() Coord {
	return s.Board().Coord()
}

// Playable reports whether s addresses a map cell rather than the label gutter.
func (s Storage) Playable() bool {
	return s.X >= 1 && s.X <= COLS && s.Y >= 0 && s.Y < ROWS
}

// ScanStorage returns the storage coordinate of the i'th playable cell in wire scan order:
// storage rows from ROWS-1 (the south edge) down to 0, and columns 1 through COLS within a row.
// Both layers of the map codec are laid out in this order.
func ScanStorage(i int) Storage {
	y := (ROWS - 1) - i/COLS
	x := 1 + i - ((ROWS-1)-y)*COLS
	return Storage{X: x, Y: y}
}
