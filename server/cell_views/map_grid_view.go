package cell_views

import (
	"fmt"
	"html/template"

	"gridmap/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// MapGrid is the svg map: one rect per playable cell, filled per its type, with the image
// tag printed over image cells.
type MapGrid struct {
	id      string
	updates <-chan []fastview.EleUpdate
	// The cells last sent, owned by the conversion goroutine.
	last [][]Cell
}

func NewMapGrid(
	done <-chan struct{},
	mapModels <-chan MapModel,
) (mg *MapGrid) {
	mg = &MapGrid{id: "mapgrid"}
	mg.updates = channerics.Convert(done, mapModels, mg.onUpdate)
	return
}

func (mg *MapGrid) Updates() <-chan []fastview.EleUpdate {
	return mg.updates
}

// onUpdate returns the ele-updates for the cells that changed since the last model.
func (mg *MapGrid) onUpdate(mm MapModel) (ops []fastview.EleUpdate) {
	for x, col := range mm.Cells {
		for y, cell := range col {
			if mg.last != nil && mg.last[x][y] == cell {
				continue
			}
			ops = append(ops,
				fastview.EleUpdate{
					EleId: cellId(cell),
					Ops:   []fastview.Op{{Key: "fill", Value: cell.Fill}},
				},
				fastview.EleUpdate{
					EleId: labelId(cell),
					Ops:   []fastview.Op{{Key: "textContent", Value: cell.Label}},
				})
		}
	}
	mg.last = mm.Cells
	return
}

func cellId(c Cell) string {
	return fmt.Sprintf("%d-%d-cell", c.X, c.Y)
}

func labelId(c Cell) string {
	return fmt.Sprintf("%d-%d-label", c.X, c.Y)
}

// Parse adds the map's template to parent. The template expects a MapModel.
func (mg *MapGrid) Parse(parent *template.Template) (name string, err error) {
	name = mg.id
	_, err = parent.Parse(`
	{{ define "` + name + `" }}
	<div id="` + name + `">
		{{ $cell_dim := 32 }}
		{{ $half_dim := div $cell_dim 2 }}
		{{ $width := mult $cell_dim (len .Cells) }}
		{{ $height := mult $cell_dim (len (index .Cells 0)) }}
		<svg width="{{ add $width 1 }}px" height="{{ add $height 1 }}px"
			style="shape-rendering: crispEdges;">
			{{ range $col := .Cells }}
				{{ range $cell := $col }}
				<g>
					<rect id="{{$cell.X}}-{{$cell.Y}}-cell"
						x="{{ mult $cell.X $cell_dim }}"
						y="{{ mult $cell.Y $cell_dim }}"
						width="{{ $cell_dim }}"
						height="{{ $cell_dim }}"
						fill="{{ $cell.Fill }}"
						stroke="gray"
						stroke-width="1"/>
					<text id="{{$cell.X}}-{{$cell.Y}}-label"
						x="{{ add (mult $cell.X $cell_dim) $half_dim }}"
						y="{{ add (mult $cell.Y $cell_dim) $half_dim }}"
						fill="white"
						dominant-baseline="central" text-anchor="middle"
						>{{ $cell.Label }}</text>
				</g>
				{{ end }}
			{{ end }}
		</svg>
	</div>
	{{ end }}`)
	return
}
