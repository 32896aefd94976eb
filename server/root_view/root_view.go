package root_view

import (
	"context"
	"fmt"
	"html/template"
	"time"

	"gridmap/controller"
	"gridmap/server/cell_views"
	"gridmap/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// Updates from all views are collected for this long before being sent as one batch.
const batchRate = 20 * time.Millisecond

// RootView is the map page's index.html: the container for the view components and the
// wiring of their channels.
type RootView struct {
	views   []fastview.ViewComponent
	updates <-chan []fastview.EleUpdate
}

// NewRootView builds the page's views over frames. The views and their channels live until
// ctx is cancelled. A page that is only rendered may pass a nil frames channel.
func NewRootView(
	ctx context.Context,
	frames <-chan controller.Frame,
) (*RootView, error) {
	views, err := fastview.NewViewBuilder[controller.Frame, cell_views.MapModel]().
		WithContext(ctx).
		WithModel(frames, cell_views.FromFrame).
		WithView(func(
			done <-chan struct{},
			mapModels <-chan cell_views.MapModel) fastview.ViewComponent {
			return cell_views.NewMapGrid(done, mapModels)
		}).
		WithView(func(
			done <-chan struct{},
			mapModels <-chan cell_views.MapModel) fastview.ViewComponent {
			return cell_views.NewStatusPanel(done, mapModels)
		}).
		Build()
	if err != nil {
		return nil, fmt.Errorf("root view: %w", err)
	}

	return &RootView{
		views:   views,
		updates: fanIn(ctx.Done(), views),
	}, nil
}

// Updates returns the page's ele-update channel, merged over all the views.
func (rv *RootView) Updates() <-chan []fastview.EleUpdate {
	return rv.updates
}

// Parse builds the page template, with the websocket bootstrap code, and returns its name.
// It also sets up the func-map the child components depend on. The page's websocket is
// served at wsPath on the page's own host.
func (rv *RootView) Parse(
	parent *template.Template,
	wsPath string,
) (name string, err error) {
	rt := parent.Funcs(
		template.FuncMap{
			"add":  func(i, j int) int { return i + j },
			"sub":  func(i, j int) int { return i - j },
			"mult": func(i, j int) int { return i * j },
			"div":  func(i, j int) int { return i / j },
		})

	var bodySpec string
	for _, vc := range rv.views {
		tname, parseErr := vc.Parse(rt)
		if parseErr != nil {
			return "", parseErr
		}
		bodySpec += `{{ template "` + tname + `" . }}`
	}

	name = "mainpage"
	indexTemplate := `
	{{ define "` + name + `" }}
	<!DOCTYPE html>
	<html>
		<head>
			<link rel="icon" href="data:,">
			<script>
				const ws = new WebSocket("ws://" + location.host + "` + wsPath + `");
				ws.onopen = function (event) {
					console.log("Web socket opened")
				};

				ws.onerror = function (event) {
					console.log('WebSocket error: ', event);
				};

				// The server pushes batches of ele-updates; find these eles and update them.
				ws.onmessage = function (event) {
					items = JSON.parse(event.data)
					for (const update of items) {
						const ele = document.getElementById(update.EleId)
						if (ele === null) {
							continue
						}
						for (const op of update.Ops) {
							if (op.Key === "textContent") {
								ele.textContent = op.Value;
							} else {
								ele.setAttribute(op.Key, op.Value)
							}
						}
					}
				}
			</script>
		</head>
		<body>
		` + bodySpec + `
		</body></html>
	{{ end }}
	`

	_, err = rt.Parse(indexTemplate)
	return
}

// fanIn aggregates the views' ele-update channels into a single, batched channel.
func fanIn(
	done <-chan struct{},
	views []fastview.ViewComponent,
) <-chan []fastview.EleUpdate {
	inputs := make([]<-chan []fastview.EleUpdate, len(views))
	for i, view := range views {
		inputs[i] = view.Updates()
	}
	return batchify(
		done,
		channerics.Merge(done, inputs...),
		batchRate)
}

// batchify collects updates and sends them once per tick, over-writing previously received
// values for the same ele-id so only the latest value of each is sent. Nothing is sent on a
// tick with an empty batch. The last batch is sent when source closes.
func batchify(
	done <-chan struct{},
	source <-chan []fastview.EleUpdate,
	rate time.Duration,
) <-chan []fastview.EleUpdate {
	output := make(chan []fastview.EleUpdate)

	go func() {
		defer close(output)

		data := map[string]fastview.EleUpdate{}
		flush := channerics.NewTicker(done, rate)
		for {
			select {
			case <-done:
				return
			case updates, ok := <-source:
				if !ok {
					if len(data) > 0 {
						select {
						case output <- slicedVals(data):
						case <-done:
						}
					}
					return
				}
				for _, update := range updates {
					data[update.EleId] = update
				}
			case <-flush:
				if len(data) == 0 {
					continue
				}
				select {
				case output <- slicedVals(data):
					data = map[string]fastview.EleUpdate{}
				case <-done:
					return
				}
			}
		}
	}()

	return output
}

// returns the values of a map as a slice
func slicedVals[T1 comparable, T2 any](mp map[T1]T2) (sliced []T2) {
	for _, v := range mp {
		sliced = append(sliced, v)
	}
	return
}
