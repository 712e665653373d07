package stoicheia

import (
	"context"

	"github.com/LDSLab/stoicheia/model"
)

// Quilt is a lightweight handle binding a quilt name, a tag and an axis
// order. Creating one is free; it merely pre-fills arguments of the
// catalog operations. The handle's axis order drives the axis order of
// the patches its fetches return.
type Quilt struct {
	cat  *Catalog
	name string
	tag  string
	axes []string
}

// Name returns the quilt name the handle is bound to.
func (q *Quilt) Name() string { return q.name }

// Tag returns the tag the handle reads from and commits to.
func (q *Quilt) Tag() string { return q.tag }

// Axes returns the handle's axis order.
func (q *Quilt) Axes() []string { return q.axes }

// Fetch assembles a slice, with output axes in the handle's order.
func (q *Quilt) Fetch(ctx context.Context, selectors map[string]model.Selector) (*model.Patch, error) {
	return q.cat.fetch(ctx, q.name, q.tag, q.axes, selectors)
}

// Commit writes a patch as a new commit on the handle's tag.
func (q *Quilt) Commit(ctx context.Context, message string, p *model.Patch) (int64, error) {
	return q.cat.Commit(ctx, q.name, q.tag, message, p)
}

// Untag removes the handle's tag, garbage-collecting unreachable
// commits.
func (q *Quilt) Untag(ctx context.Context) error {
	return q.cat.Untag(ctx, q.name, q.tag)
}
