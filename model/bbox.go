package model

// Interval is an inclusive [Min, Max] range of storage indices on one
// axis.
type Interval struct {
	Min, Max int
}

// Intersects reports whether two inclusive intervals overlap.
func (iv Interval) Intersects(other Interval) bool {
	return iv.Min <= other.Max && iv.Max >= other.Min
}

// BoundingBox is a rectangular region in storage-index space, one interval
// per axis in quilt axis order.
type BoundingBox []Interval

// Intersects reports whether two boxes overlap on every axis. Boxes of
// different dimensionality never intersect.
func (b BoundingBox) Intersects(other BoundingBox) bool {
	if len(b) != len(other) {
		return false
	}
	for i := range b {
		if !b[i].Intersects(other[i]) {
			return false
		}
	}
	return true
}
