package fastview

import (
	"context"
	"errors"

	channerics "github.com/niceyeti/channerics/channels"
)

// ViewBuilderFunc builds a view over a view-model channel. The view stops when done closes.
type ViewBuilderFunc[ViewModel any] func(done <-chan struct{}, viewModels <-chan ViewModel) ViewComponent

// ViewBuilder wires several views to a common view-model derived from one data source.
// Nothing is started until Build.
type ViewBuilder[DataModel any, ViewModel any] struct {
	source   <-chan DataModel
	convert  func(DataModel) ViewModel
	builders []ViewBuilderFunc[ViewModel]
	done     <-chan struct{}
}

func NewViewBuilder[DataModel any, ViewModel any]() *ViewBuilder[DataModel, ViewModel] {
	return &ViewBuilder[DataModel, ViewModel]{}
}

// WithModel sets the data source and the conversion of each item into the view-model.
func (vb *ViewBuilder[DataModel, ViewModel]) WithModel(
	source <-chan DataModel,
	convert func(DataModel) ViewModel,
) *ViewBuilder[DataModel, ViewModel] {
	vb.source = source
	vb.convert = convert
	return vb
}

// WithView adds a view. Build returns views in the order they were added.
func (vb *ViewBuilder[DataModel, ViewModel]) WithView(
	build ViewBuilderFunc[ViewModel],
) *ViewBuilder[DataModel, ViewModel] {
	vb.builders = append(vb.builders, build)
	return vb
}

// WithContext closes every channel Build creates once ctx is done. Without it the views
// live until the source closes.
func (vb *ViewBuilder[DataModel, ViewModel]) WithContext(
	ctx context.Context,
) *ViewBuilder[DataModel, ViewModel] {
	vb.done = ctx.Done()
	return vb
}

var (
	ErrNoViews = errors.New("no views to build: WithView must be called")
	ErrNoModel = errors.New("no model specified: WithModel must be called")
)

// Build converts the source once and broadcasts each view-model to every view. A slow
// view holds up the others.
func (vb *ViewBuilder[DataModel, ViewModel]) Build() ([]ViewComponent, error) {
	if len(vb.builders) == 0 {
		return nil, ErrNoViews
	}
	if vb.convert == nil {
		return nil, ErrNoModel
	}

	viewModels := channerics.Broadcast(
		vb.done,
		channerics.Convert(vb.done, vb.source, vb.convert),
		len(vb.builders))

	views := make([]ViewComponent, len(vb.builders))
	for i, build := range vb.builders {
		views[i] = build(vb.done, viewModels[i])
	}
	return views, nil
}
