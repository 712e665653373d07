package stoicheia

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/LDSLab/stoicheia/codec"
	"github.com/LDSLab/stoicheia/model"
	"github.com/LDSLab/stoicheia/store"
)

// assembler stitches the patches visible from one commit into a dense
// output. It walks the commit ancestry newest-first and writes each cell
// at most once, which together implement last-writer-wins; cell-level
// tracking uses a roaring bitmap over linearized output offsets.
type assembler struct {
	tx   *store.Tx
	fill float32

	quiltAxes []string
	perm      []int // quilt dimension -> output dimension

	outAxes    []model.Axis
	outStrides []int
	data       []float32

	// Per quilt dimension: resolved output position by label, and the
	// request's storage-index bounds.
	outPosByLabel []map[model.Label]int
	bounds        model.BoundingBox

	written *roaring.Bitmap
	total   uint64
}

func newAssembler(ctx context.Context, tx *store.Tx, details store.QuiltDetails, perm []int, selectors map[string]model.Selector, fill float32) (*assembler, error) {
	ndim := len(details.Axes)
	a := &assembler{
		tx:            tx,
		fill:          fill,
		quiltAxes:     details.Axes,
		perm:          perm,
		outAxes:       make([]model.Axis, ndim),
		outPosByLabel: make([]map[model.Label]int, ndim),
		bounds:        make(model.BoundingBox, ndim),
		written:       roaring.New(),
	}

	outShape := make([]int, ndim)
	for q, name := range details.Axes {
		stored, err := tx.Axis(ctx, name)
		if err != nil {
			return nil, err
		}
		labels, indices, err := resolveSelector(stored, selectorFor(selectors, name))
		if err != nil {
			return nil, err
		}

		out := perm[q]
		a.outAxes[out] = model.NewAxis(name, labels)
		outShape[out] = len(labels)

		byLabel := make(map[model.Label]int, len(labels))
		for pos, l := range labels {
			byLabel[l] = pos
		}
		a.outPosByLabel[q] = byLabel

		if len(indices) == 0 {
			a.bounds[q] = model.Interval{Min: 0, Max: -1}
			continue
		}
		lo, hi := indices[0], indices[0]
		for _, idx := range indices[1:] {
			lo, hi = min(lo, idx), max(hi, idx)
		}
		a.bounds[q] = model.Interval{Min: lo, Max: hi}
	}

	total := uint64(1)
	for _, n := range outShape {
		total *= uint64(n)
	}
	if total > math.MaxUint32 {
		return nil, fmt.Errorf("requested slice has %d cells, the limit is %d", total, uint64(math.MaxUint32))
	}
	a.total = total

	a.outStrides = make([]int, ndim)
	acc := 1
	for i := ndim - 1; i >= 0; i-- {
		a.outStrides[i] = acc
		acc *= outShape[i]
	}

	a.data = make([]float32, total)
	if fill != 0 {
		for i := range a.data {
			a.data[i] = fill
		}
	}
	return a, nil
}

// selectorFor finds the selector for an axis, case-insensitively; absent
// means the whole axis.
func selectorFor(selectors map[string]model.Selector, axis string) model.Selector {
	for name, sel := range selectors {
		if strings.EqualFold(name, axis) {
			return sel
		}
	}
	return model.All()
}

// resolveSelector turns a selector into (a) the output label vector and
// (b) the matching storage-index vector, in the same order.
//
// Range selection filters on label value in [Lo, Hi) but emits in
// storage-index order; both properties hold at once.
func resolveSelector(axis *model.Axis, sel model.Selector) ([]model.Label, []int, error) {
	switch sel.Kind {
	case model.SelectAll:
		labels := make([]model.Label, axis.Len())
		indices := make([]int, axis.Len())
		for i, l := range axis.Labels {
			labels[i] = l
			indices[i] = i
		}
		return labels, indices, nil

	case model.SelectLabels:
		if len(sel.Labels) == 0 {
			return nil, nil, fmt.Errorf("axis %q: %w", axis.Name, model.ErrEmptySelector)
		}
		position := make(map[model.Label]int, axis.Len())
		for i, l := range axis.Labels {
			position[l] = i
		}
		labels := make([]model.Label, len(sel.Labels))
		indices := make([]int, len(sel.Labels))
		for i, l := range sel.Labels {
			idx, ok := position[l]
			if !ok {
				return nil, nil, &store.NotFoundError{
					Kind: "label",
					Name: fmt.Sprintf("%s[%d]", axis.Name, l),
				}
			}
			labels[i] = l
			indices[i] = idx
		}
		return labels, indices, nil

	case model.SelectRange:
		var (
			labels  []model.Label
			indices []int
		)
		for i, l := range axis.Labels {
			if l >= sel.Lo && l < sel.Hi {
				labels = append(labels, l)
				indices = append(indices, i)
			}
		}
		return labels, indices, nil

	default:
		return nil, nil, fmt.Errorf("unknown selector kind %d on axis %q", sel.Kind, axis.Name)
	}
}

// run walks the ancestry newest-first, applying overlapping patches until
// every output cell is written or the root is reached.
func (a *assembler) run(ctx context.Context, commID int64) error {
	if a.total == 0 {
		return nil
	}
	for id, err := range a.tx.Ancestors(ctx, commID) {
		if err != nil {
			return err
		}
		if err := a.applyCommit(ctx, id); err != nil {
			return err
		}
		if a.written.GetCardinality() == a.total {
			break
		}
	}
	return nil
}

// applyCommit merges the overlapping patches of one commit into the
// output. Cells already written by a newer commit are skipped; two
// patches of the same commit claiming one cell is a corrupt commit.
func (a *assembler) applyCommit(ctx context.Context, commID int64) error {
	refs, err := a.tx.OverlappingInCommit(ctx, commID, a.bounds)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return nil
	}

	commitCells := roaring.New()
	for _, ref := range refs {
		blob, err := a.tx.LoadPatchBlob(ctx, ref.ID)
		if err != nil {
			return err
		}
		p, err := codec.Decode(blob)
		if err != nil {
			return err
		}
		if err := a.checkPatch(&ref, p); err != nil {
			return err
		}

		// Per quilt dimension, the (output offset, patch offset) pairs of
		// the label intersection. Any empty axis means no overlap.
		ndim := len(a.quiltAxes)
		patchStrides := p.Strides()
		type pair struct{ out, patch int }
		pairs := make([][]pair, ndim)
		empty := false
		for q := 0; q < ndim; q++ {
			outStride := a.outStrides[a.perm[q]]
			for k, l := range p.Axes[q].Labels {
				if pos, ok := a.outPosByLabel[q][l]; ok {
					pairs[q] = append(pairs[q], pair{
						out:   pos * outStride,
						patch: k * patchStrides[q],
					})
				}
			}
			if len(pairs[q]) == 0 {
				empty = true
				break
			}
		}
		if empty {
			continue
		}

		var conflict bool
		var walk func(q, outOff, patchOff int)
		walk = func(q, outOff, patchOff int) {
			if conflict {
				return
			}
			if q == ndim {
				cell := uint32(outOff)
				if commitCells.Contains(cell) {
					conflict = true
					return
				}
				commitCells.Add(cell)
				if !a.written.Contains(cell) {
					a.written.Add(cell)
					a.data[outOff] = p.Data[patchOff]
				}
				return
			}
			for _, pr := range pairs[q] {
				walk(q+1, outOff+pr.out, patchOff+pr.patch)
			}
		}
		walk(0, 0, 0)
		if conflict {
			return fmt.Errorf("commit %d: patches overlap: %w", commID, ErrCorruptCommit)
		}
	}
	return nil
}

// checkPatch validates a decoded blob against its Patch row.
func (a *assembler) checkPatch(ref *store.PatchRef, p *model.Patch) error {
	if p.NDim() != len(a.quiltAxes) {
		return fmt.Errorf("%w: patch %d has %d axes, quilt has %d",
			ErrCorruptPatch, ref.ID, p.NDim(), len(a.quiltAxes))
	}
	for q, name := range a.quiltAxes {
		if !strings.EqualFold(p.Axes[q].Name, name) {
			return fmt.Errorf("%w: patch %d axis %d is %q, quilt has %q",
				ErrCorruptPatch, ref.ID, q, p.Axes[q].Name, name)
		}
	}
	if got := codec.DecodedSize(p); got != ref.DecompressedSize {
		return fmt.Errorf("%w: patch %d decompressed to %d bytes, row says %d",
			ErrCorruptPatch, ref.ID, got, ref.DecompressedSize)
	}
	return nil
}

// result packages the assembled cells as a patch.
func (a *assembler) result() (*model.Patch, error) {
	return model.NewPatch(a.outAxes, a.data)
}
