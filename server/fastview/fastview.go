// fastview builds server-side views: data items are converted to a view-model, the view-model
// is handed to each view, and each view turns it into element updates for the page.
package fastview

import (
	"html/template"
)

// EleUpdate is a page element id and the operations to apply to it.
type EleUpdate struct {
	EleId string
	Ops   []Op
}

// Op sets an attribute of an element, e.g. ("fill", "black"). The key "textContent" sets the
// element's text instead.
type Op struct {
	Key   string
	Value string
}

// ViewComponent is one view on a page.
type ViewComponent interface {
	// Updates returns the view's element updates.
	Updates() <-chan []EleUpdate
	// Parse defines the view's template in parent, which supplies the func-map, and returns
	// the name it defined.
	Parse(parent *template.Template) (string, error)
}
