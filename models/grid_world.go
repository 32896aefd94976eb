package models

import "fmt"

// Map dimensions, in playable cells. The storage array carries one extra column (the
// axis-label gutter at column 0) and one extra row (the gutter at row ROWS).
const (
	COLS = 15
	ROWS = 20
	// CELLS is the number of playable cells, e.g. the bit count of the explored layer.
	CELLS = COLS * ROWS
)

// CellType is the semantic type of a single map cell. The set is closed; every switch
// over it is expected to be exhaustive.
type CellType uint8

const (
	Unexplored CellType = iota
	Explored
	Obstacle
	Robot
	Start
	End
	Waypoint
	Image
	// FastestPath is reserved for a path overlay; nothing in this module computes one.
	FastestPath
)

var cellTypeNames = [...]string{
	Unexplored:  "unexplored",
	Explored:    "explored",
	Obstacle:    "obstacle",
	Robot:       "robot",
	Start:       "start",
	End:         "end",
	Waypoint:    "waypoint",
	Image:       "image",
	FastestPath: "fastestPath",
}

func (ct CellType) String() string {
	if int(ct) < len(cellTypeNames) {
		return cellTypeNames[ct]
	}
	return fmt.Sprintf("CellType(%d)", uint8(ct))
}

// Rune returns a single printable character for the cell type, for console dumps of the grid.
func (ct CellType) Rune() rune {
	switch ct {
	case Unexplored:
		return '.'
	case Explored:
		return 'o'
	case Obstacle:
		return 'W'
	case Robot:
		return 'R'
	case Start:
		return '-'
	case End:
		return '+'
	case Waypoint:
		return '*'
	case Image:
		return 'I'
	case FastestPath:
		return '~'
	}
	return '?'
}

// IsExplored reports whether the cell contributes a 1 to the explored layer.
func (ct CellType) IsExplored() bool {
	switch ct {
	case Explored, Robot, Obstacle, Image:
		return true
	}
	return false
}

// IsBlocked reports whether the cell contributes a 1 to the obstacle layer.
func (ct CellType) IsBlocked() bool {
	return ct == Obstacle || ct == Image
}

// Returns reversed indices of a slice, e.g. for ranging over.
func Rev(length int) []int {
	indices := make([]int, length)
	for i := 0; i < length; i++ {
		indices[i] = length - i - 1
	}
	return indices
}
