package cell_views

import (
	"html/template"
	"strconv"

	"gridmap/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// StatusPanel shows the robot direction, the peer's status text and connection, and the
// update mode.
type StatusPanel struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewStatusPanel(
	done <-chan struct{},
	mapModels <-chan MapModel,
) (sp *StatusPanel) {
	sp = &StatusPanel{id: "statuspanel"}
	sp.updates = channerics.Convert(done, mapModels, sp.onUpdate)
	return
}

func (sp *StatusPanel) Updates() <-chan []fastview.EleUpdate {
	return sp.updates
}

func (sp *StatusPanel) onUpdate(mm MapModel) []fastview.EleUpdate {
	text := func(id, value string) fastview.EleUpdate {
		return fastview.EleUpdate{
			EleId: id,
			Ops:   []fastview.Op{{Key: "textContent", Value: value}},
		}
	}
	return []fastview.EleUpdate{
		text("status-direction", mm.Direction),
		text("status-text", mm.Status),
		text("status-mode", mm.Mode),
		text("status-pending", strconv.FormatBool(mm.Pending)),
		text("status-conn", mm.ConnStatus),
	}
}

func (sp *StatusPanel) Parse(parent *template.Template) (name string, err error) {
	name = sp.id
	_, err = parent.Parse(`
	{{ define "` + name + `" }}
	<table id="` + name + `">
		<tr><td>Direction</td><td id="status-direction">{{ .Direction }}</td></tr>
		<tr><td>Status</td><td id="status-text">{{ .Status }}</td></tr>
		<tr><td>Mode</td><td id="status-mode">{{ .Mode }}</td></tr>
		<tr><td>Update pending</td><td id="status-pending">{{ .Pending }}</td></tr>
		<tr><td>Connection</td><td id="status-conn">{{ .ConnStatus }}</td></tr>
	</table>
	{{ end }}`)
	return
}
