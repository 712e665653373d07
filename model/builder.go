package model

// PatchBuilder accumulates axes and content for a patch with less typing.
//
// Example:
//
//	p, err := model.BuildPatch().
//	    Axis("itm", 10, 20).
//	    Axis("lct", 1, 2).
//	    Content([]float32{1, 2, 3, 4})
type PatchBuilder struct {
	axes []Axis
}

// BuildPatch starts an empty builder.
func BuildPatch() *PatchBuilder {
	return &PatchBuilder{}
}

// Axis appends an axis with the given labels.
func (b *PatchBuilder) Axis(name string, labels ...Label) *PatchBuilder {
	b.axes = append(b.axes, NewAxis(name, labels))
	return b
}

// AxisRange appends an axis with labels lo..hi (half-open).
func (b *PatchBuilder) AxisRange(name string, lo, hi Label) *PatchBuilder {
	b.axes = append(b.axes, AxisRange(name, lo, hi))
	return b
}

// Content finishes the builder with a row-major dense array. Pass nil to
// allocate a void (all-NaN) patch.
func (b *PatchBuilder) Content(data []float32) (*Patch, error) {
	return NewPatch(b.axes, data)
}
