package codec

import (
	"fmt"
	"math/big"
	"strings"

	"gridmap/models"
)

// CellReader is the read side of a grid. grid_world.Grid satisfies it.
type CellReader interface {
	Type(models.Storage) models.CellType
}

// MapDescriptor is the outbound encoding of the map: the explored layer, the obstacle
// layer, and the number of meaningful bits in the obstacle layer before byte padding.
type MapDescriptor struct {
	Explored string `json:"explored"`
	Length   int    `json:"length"`
	Obstacle string `json:"obstacle,omitempty"`
}

const (
	sentinel = "11"
	// Bits in a framed explored layer.
	framedBits = models.CELLS + 2*len(sentinel)
	// Hex digits in the pair stream of a full map, two bits per cell.
	pairDigits = models.CELLS * 2 / 4
	// The peer's pair stream is prefixed with this digit before conversion so that leading
	// zero pairs survive the trip through an integer; its four bits are then dropped.
	guardDigit = "f"
	guardBits  = 4
)

// EncodeMap encodes the playable cells of g, in scan order, into a MapDescriptor.
//
// The explored layer has one bit per cell, set for explored, robot, obstacle and image cells,
// framed with "11" at both ends and rendered as lowercase hex. The framing guarantees the
// integer has no leading zeros, so the hex string is always 76 digits.
//
// The obstacle layer has one bit only for the cells the explored layer marks, 1 for obstacle
// and image cells. It is zero-padded on the right to a whole number of bytes and rendered as
// hex, left-padded to an even digit count. Length is the bit count before padding. An empty
// obstacle layer is the empty string.
func EncodeMap(g CellReader) MapDescriptor {
	var explored, obstacle strings.Builder
	explored.Grow(framedBits)
	explored.WriteString(sentinel)

	for i := 0; i < models.CELLS; i++ {
		ct := g.Type(models.ScanStorage(i))
		if !ct.IsExplored() {
			explored.WriteByte('0')
			continue
		}
		explored.WriteByte('1')
		if ct.IsBlocked() {
			obstacle.WriteByte('1')
		} else {
			obstacle.WriteByte('0')
		}
	}
	explored.WriteString(sentinel)

	desc := MapDescriptor{
		Explored: binToHex(explored.String()),
		Length:   obstacle.Len(),
	}
	if desc.Length == 0 {
		return desc
	}

	bits := obstacle.String()
	if rem := len(bits) % 8; rem != 0 {
		bits += strings.Repeat("0", 8-rem)
	}
	hex := binToHex(bits)
	if len(hex)%2 != 0 {
		hex = "0" + hex
	}
	desc.Obstacle = hex
	return desc
}

// DecodeMap is the inverse of EncodeMap. It returns one type per playable cell in scan
// order: Unexplored, Explored or Obstacle. Robot and image cells come back as Explored and
// Obstacle respectively, since the layers do not distinguish them.
func DecodeMap(d MapDescriptor) ([]models.CellType, error) {
	n, err := parseHex(d.Explored)
	if err != nil {
		return nil, fmt.Errorf("explored: %w", err)
	}
	bits := n.Text(2)
	if len(bits) > framedBits {
		return nil, fmt.Errorf("%w: explored layer holds %d bits", ErrLayerTooLong, len(bits))
	}
	if !strings.HasPrefix(bits, sentinel) || !strings.HasSuffix(bits, sentinel) {
		return nil, fmt.Errorf("%w: %q", ErrMissingSentinel, d.Explored)
	}
	if len(bits) != framedBits {
		return nil, fmt.Errorf("%w: explored layer holds %d bits, want %d", ErrLengthMismatch, len(bits), framedBits)
	}
	bits = bits[len(sentinel) : len(bits)-len(sentinel)]

	explored := strings.Count(bits, "1")
	if explored != d.Length {
		return nil, fmt.Errorf("%w: %d explored cells, length %d", ErrLengthMismatch, explored, d.Length)
	}

	var obstacles string
	if d.Length > 0 {
		if obstacles, err = obstacleBits(d.Obstacle, d.Length); err != nil {
			return nil, err
		}
	} else if d.Obstacle != "" {
		return nil, fmt.Errorf("%w: obstacle layer %q with zero length", ErrLengthMismatch, d.Obstacle)
	}

	types := make([]models.CellType, models.CELLS)
	k := 0
	for i := range types {
		switch {
		case bits[i] == '0':
			types[i] = models.Unexplored
		case obstacles[k] == '1':
			types[i] = models.Obstacle
			k++
		default:
			types[i] = models.Explored
			k++
		}
	}
	return types, nil
}

// obstacleBits restores the leading zeros the integer rendering dropped and returns the
// first length bits of the layer.
func obstacleBits(hex string, length int) (string, error) {
	n, err := parseHex(hex)
	if err != nil {
		return "", fmt.Errorf("obstacle: %w", err)
	}
	digits := (length + 7) / 8 * 2
	if len(hex) > digits {
		return "", fmt.Errorf("%w: %d obstacle digits for %d bits", ErrLengthMismatch, len(hex), length)
	}
	return leftPad(n.Text(2), digits*4)[:length], nil
}

// EncodeExplored renders g as the pair stream the peer sends: two bits per playable cell
// in scan order, 10 for explored and robot cells, 01 for obstacle and image cells, and 00
// for everything else. The hex string keeps its leading zeros.
func EncodeExplored(g CellReader) string {
	var sb strings.Builder
	sb.Grow(models.CELLS * 2)
	for i := 0; i < models.CELLS; i++ {
		switch ct := g.Type(models.ScanStorage(i)); {
		case ct.IsBlocked():
			sb.WriteString("01")
		case ct == models.Explored || ct == models.Robot:
			sb.WriteString("10")
		default:
			sb.WriteString("00")
		}
	}
	return leftPad(binToHex(sb.String()), pairDigits)
}

// DecodeExplored decodes the peer's pair stream. Pair k describes the k'th playable cell in
// scan order: 11 and 10 are explored, 01 is an obstacle, 00 is unexplored. A stream shorter
// than the map describes only its prefix of cells. A stream longer than the map, or any
// non-hex digit, is rejected as a whole.
func DecodeExplored(hex string) ([]models.CellType, error) {
	if hex == "" {
		return []models.CellType{}, nil
	}
	n, err := parseHex(guardDigit + hex)
	if err != nil {
		return nil, fmt.Errorf("explored: %w", err)
	}
	bits := n.Text(2)[guardBits:]
	pairs := len(bits) / 2
	if pairs > models.CELLS {
		return nil, fmt.Errorf("%w: %d pairs", ErrLayerTooLong, pairs)
	}

	types := make([]models.CellType, pairs)
	for k := range types {
		switch bits[2*k : 2*k+2] {
		case "11", "10":
			types[k] = models.Explored
		case "01":
			types[k] = models.Obstacle
		default:
			types[k] = models.Unexplored
		}
	}
	return types, nil
}

// parseHex accepts only hex digits; big.Int alone would also take a sign.
func parseHex(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrMalformedHex)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return nil, fmt.Errorf("%w: %q", ErrMalformedHex, s)
		}
	}
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMalformedHex, s)
	}
	return n, nil
}

func binToHex(bits string) string {
	n, _ := new(big.Int).SetString(bits, 2)
	return n.Text(16)
}

func leftPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// ValidateHex reports whether s is a non-empty run of hex digits.
func ValidateHex(s string) error {
	_, err := parseHex(s)
	return err
}
