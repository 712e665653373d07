package model

import (
	"fmt"
	"math"
)

// MaxDims is the maximum number of axes a patch (and therefore a quilt)
// can have.
const MaxDims = 4

// ElementSize is the byte size of one cell. The engine stores a single
// element type per deployment; this build uses 32-bit floats.
const ElementSize = 4

// ErrDimensionMismatch indicates that a patch's axis count, names or shape
// disagree with what its counterpart (a quilt, a dense buffer, another
// patch) expects.
type ErrDimensionMismatch struct {
	Expected string
	Actual   string
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// Patch is a dense rectangular region of a quilt: one label vector per
// axis, in quilt axis order, plus a row-major (outer-axis-first) float32
// array whose shape is the per-axis label counts.
//
// Invariants, enforced by NewPatch: 1 to MaxDims axes, distinct labels per
// axis, len(Data) equal to the product of the label counts. Data is
// exported for direct cell access by the assembler and the codec; holders
// that hand a patch to another owner must not mutate it afterwards.
type Patch struct {
	Axes []Axis
	Data []float32
}

// NewPatch creates a patch from axes and a dense row-major array.
// A nil data slice allocates the patch filled with NaN, which the
// in-memory algebra (Apply, MergePatches) treats as void.
func NewPatch(axes []Axis, data []float32) (*Patch, error) {
	if len(axes) == 0 || len(axes) > MaxDims {
		return nil, &ErrDimensionMismatch{
			Expected: fmt.Sprintf("1 to %d axes", MaxDims),
			Actual:   fmt.Sprintf("%d axes", len(axes)),
		}
	}

	n := 1
	for i := range axes {
		if !axes[i].Distinct() {
			return nil, fmt.Errorf("axis %q: %w", axes[i].Name, ErrDuplicateLabel)
		}
		n *= axes[i].Len()
	}

	if data == nil {
		data = make([]float32, n)
		for i := range data {
			data[i] = float32(math.NaN())
		}
	} else if len(data) != n {
		return nil, &ErrDimensionMismatch{
			Expected: fmt.Sprintf("%d elements", n),
			Actual:   fmt.Sprintf("%d elements", len(data)),
		}
	}

	owned := make([]Axis, len(axes))
	for i := range axes {
		owned[i] = axes[i].Clone()
	}

	return &Patch{Axes: owned, Data: data}, nil
}

// NDim returns the number of axes.
func (p *Patch) NDim() int {
	return len(p.Axes)
}

// Shape returns the per-axis label counts.
func (p *Patch) Shape() []int {
	shape := make([]int, len(p.Axes))
	for i := range p.Axes {
		shape[i] = p.Axes[i].Len()
	}
	return shape
}

// Len returns the total number of cells.
func (p *Patch) Len() int {
	n := 1
	for i := range p.Axes {
		n *= p.Axes[i].Len()
	}
	return n
}

// Strides returns the row-major stride of each axis in elements.
func (p *Patch) Strides() []int {
	strides := make([]int, len(p.Axes))
	acc := 1
	for i := len(p.Axes) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= p.Axes[i].Len()
	}
	return strides
}

// At returns the cell at the given per-axis positions.
func (p *Patch) At(pos ...int) float32 {
	return p.Data[p.offset(pos)]
}

// Set writes the cell at the given per-axis positions.
func (p *Patch) Set(v float32, pos ...int) {
	p.Data[p.offset(pos)] = v
}

func (p *Patch) offset(pos []int) int {
	if len(pos) != len(p.Axes) {
		panic(fmt.Sprintf("patch has %d axes, got %d positions", len(p.Axes), len(pos)))
	}
	off := 0
	for i, stride := range p.Strides() {
		if pos[i] < 0 || pos[i] >= p.Axes[i].Len() {
			panic(fmt.Sprintf("position %d out of range on axis %q", pos[i], p.Axes[i].Name))
		}
		off += pos[i] * stride
	}
	return off
}

// Apply overwrites the cells of p that other also covers, matching cells
// by label on every axis. Cells of other that are NaN are treated as void
// and skipped, so applying a sparse revision leaves the rest of p intact.
//
// Both patches must have the same axis names in the same order.
func (p *Patch) Apply(other *Patch) error {
	if len(p.Axes) != len(other.Axes) {
		return &ErrDimensionMismatch{
			Expected: fmt.Sprintf("%d axes", len(p.Axes)),
			Actual:   fmt.Sprintf("%d axes", len(other.Axes)),
		}
	}
	for i := range p.Axes {
		if p.Axes[i].Name != other.Axes[i].Name {
			return &ErrDimensionMismatch{Expected: p.Axes[i].Name, Actual: other.Axes[i].Name}
		}
	}

	// Per axis, the position in other of each of p's labels, or -1.
	shuffles := make([][]int, len(p.Axes))
	for i := range p.Axes {
		pos := make(map[Label]int, other.Axes[i].Len())
		for j, l := range other.Axes[i].Labels {
			pos[l] = j
		}
		shuffle := make([]int, p.Axes[i].Len())
		for j, l := range p.Axes[i].Labels {
			if k, ok := pos[l]; ok {
				shuffle[j] = k
			} else {
				shuffle[j] = -1
			}
		}
		shuffles[i] = shuffle
	}

	pStrides, oStrides := p.Strides(), other.Strides()
	var walk func(dim, pOff, oOff int)
	walk = func(dim, pOff, oOff int) {
		if dim == len(p.Axes) {
			v := other.Data[oOff]
			if !math.IsNaN(float64(v)) {
				p.Data[pOff] = v
			}
			return
		}
		for j, k := range shuffles[dim] {
			if k < 0 {
				continue
			}
			walk(dim+1, pOff+j*pStrides[dim], oOff+k*oStrides[dim])
		}
	}
	walk(0, 0, 0)
	return nil
}

// MergePatches merges the operands into one patch covering the union of
// their labels, applying them in order (later operands win). All operands
// must share axis names and order. The merge target starts as NaN, so
// cells no operand covers stay void.
func MergePatches(operands ...*Patch) (*Patch, error) {
	if len(operands) == 0 {
		return nil, fmt.Errorf("merge of zero patches has no defined axes")
	}

	axes := make([]Axis, len(operands[0].Axes))
	for i := range operands[0].Axes {
		axes[i] = operands[0].Axes[i].Clone()
	}
	for _, op := range operands[1:] {
		if len(op.Axes) != len(axes) {
			return nil, &ErrDimensionMismatch{
				Expected: fmt.Sprintf("%d axes", len(axes)),
				Actual:   fmt.Sprintf("%d axes", len(op.Axes)),
			}
		}
		for i := range op.Axes {
			if op.Axes[i].Name != axes[i].Name {
				return nil, &ErrDimensionMismatch{Expected: axes[i].Name, Actual: op.Axes[i].Name}
			}
			axes[i].Union(&op.Axes[i])
		}
	}

	target, err := NewPatch(axes, nil)
	if err != nil {
		return nil, err
	}
	for _, op := range operands {
		if err := target.Apply(op); err != nil {
			return nil, err
		}
	}
	return target, nil
}
