package root_view

import (
	"bytes"
	"context"
	"html/template"
	"testing"
	"time"

	"gridmap/controller"
	"gridmap/grid_world"
	"gridmap/server/cell_views"
	"gridmap/server/fastview"
	"gridmap/snapshot"

	. "github.com/smartystreets/goconvey/convey"
)

func TestBatchify(t *testing.T) {
	Convey("Given a batched update channel", t, func() {
		done := make(chan struct{})
		Reset(func() { close(done) })
		source := make(chan []fastview.EleUpdate)
		batches := batchify(done, source, 10*time.Millisecond)

		Convey("Updates for the same element collapse to the latest", func() {
			source <- []fastview.EleUpdate{
				{EleId: "a", Ops: []fastview.Op{{Key: "fill", Value: "white"}}},
				{EleId: "a", Ops: []fastview.Op{{Key: "fill", Value: "black"}}},
			}

			select {
			case batch := <-batches:
				So(batch, ShouldHaveLength, 1)
				So(batch[0].Ops[0].Value, ShouldEqual, "black")
			case <-time.After(2 * time.Second):
				So("no batch", ShouldBeEmpty)
			}
		})

		Convey("The last batch is sent when the source closes", func() {
			source <- []fastview.EleUpdate{{EleId: "b"}}
			close(source)
			batch, ok := <-batches
			So(ok, ShouldBeTrue)
			So(batch[0].EleId, ShouldEqual, "b")
			_, ok = <-batches
			So(ok, ShouldBeFalse)
		})
	})
}

func TestRootView(t *testing.T) {
	Convey("Given a root view over a frame channel", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		Reset(cancel)
		frames := make(chan controller.Frame, 1)
		rv, err := NewRootView(ctx, frames)
		So(err, ShouldBeNil)

		s := grid_world.NewSession()
		frame := controller.Frame{Message: snapshot.Build(s), Grid: s.Grid().Clone()}

		Convey("The page renders both views and the websocket bootstrap", func() {
			page := template.New("index.html")
			name, err := rv.Parse(page, "/view/ws")
			So(err, ShouldBeNil)

			var buf bytes.Buffer
			So(page.ExecuteTemplate(&buf, name, cell_views.FromFrame(frame)), ShouldBeNil)
			So(buf.String(), ShouldContainSubstring, `id="mapgrid"`)
			So(buf.String(), ShouldContainSubstring, `id="statuspanel"`)
			So(buf.String(), ShouldContainSubstring, `/view/ws`)
		})

		Convey("A frame produces updates from every view", func() {
			frames <- frame
			ids := map[string]bool{}
			timeout := time.After(2 * time.Second)
			for !(ids["status-text"] && ids["0-0-cell"]) {
				select {
				case batch := <-rv.Updates():
					for _, u := range batch {
						ids[u.EleId] = true
					}
				case <-timeout:
					So(ids, ShouldContainKey, "status-text")
					So(ids, ShouldContainKey, "0-0-cell")
					return
				}
			}
			So(len(ids), ShouldBeGreaterThan, 2)
		})
	})
}
