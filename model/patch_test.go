package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPatch_ShapeValidation(t *testing.T) {
	_, err := NewPatch([]Axis{NewAxis("a", []Label{1, 2})}, []float32{1, 2, 3})
	var dm *ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)

	_, err = NewPatch(nil, nil)
	require.ErrorAs(t, err, &dm)

	_, err = NewPatch([]Axis{
		NewAxis("a", []Label{1}),
		NewAxis("b", []Label{1}),
		NewAxis("c", []Label{1}),
		NewAxis("d", []Label{1}),
		NewAxis("e", []Label{1}),
	}, nil)
	require.ErrorAs(t, err, &dm)
}

func TestNewPatch_RejectsDuplicateLabels(t *testing.T) {
	_, err := NewPatch([]Axis{NewAxis("a", []Label{1, 1})}, []float32{1, 2})
	require.ErrorIs(t, err, ErrDuplicateLabel)
}

func TestNewPatch_NilContentIsVoid(t *testing.T) {
	p, err := NewPatch([]Axis{NewAxis("a", []Label{1, 2})}, nil)
	require.NoError(t, err)
	for _, v := range p.Data {
		require.True(t, math.IsNaN(float64(v)))
	}
}

func TestPatchAtSet_RowMajor(t *testing.T) {
	p, err := BuildPatch().
		Axis("itm", 10, 20).
		Axis("lct", 1, 2, 3).
		Content([]float32{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)

	require.Equal(t, []int{2, 3}, p.Shape())
	require.Equal(t, []int{3, 1}, p.Strides())
	require.Equal(t, float32(1), p.At(0, 0))
	require.Equal(t, float32(3), p.At(0, 2))
	require.Equal(t, float32(4), p.At(1, 0))

	p.Set(9, 1, 2)
	require.Equal(t, float32(9), p.At(1, 2))
}

func TestPatchApply_TotalOverlapSameOrder(t *testing.T) {
	base, err := BuildPatch().Axis("item", 1, 3).Content(nil)
	require.NoError(t, err)
	revision, err := BuildPatch().Axis("item", 1, 3).Content([]float32{100, 300})
	require.NoError(t, err)

	require.NoError(t, base.Apply(revision))
	require.Equal(t, float32(100), base.At(0))
	require.Equal(t, float32(300), base.At(1))
}

func TestPatchApply_SemiOverlap(t *testing.T) {
	base, err := BuildPatch().Axis("item", 1, 3).Content(nil)
	require.NoError(t, err)
	revision, err := BuildPatch().Axis("item", 1, 2).Content([]float32{100, 300})
	require.NoError(t, err)

	require.NoError(t, base.Apply(revision))
	require.Equal(t, float32(100), base.At(0))
	require.True(t, math.IsNaN(float64(base.At(1))))
}

func TestPatchApply_DifferentLabelOrder(t *testing.T) {
	base, err := BuildPatch().Axis("item", 30, 10).Content(nil)
	require.NoError(t, err)
	revision, err := BuildPatch().Axis("item", 10, 30).Content([]float32{300, 100})
	require.NoError(t, err)

	require.NoError(t, base.Apply(revision))
	require.Equal(t, float32(100), base.At(0))
	require.Equal(t, float32(300), base.At(1))
}

func TestPatchApply_2DSemiOverlapDifferentOrder(t *testing.T) {
	base, err := BuildPatch().
		Axis("item", 1, 3).
		Axis("store", 1, 3).
		Content(nil)
	require.NoError(t, err)
	revision, err := BuildPatch().
		Axis("item", 2, 3).
		Axis("store", 3, 1).
		Content([]float32{200, 100, 400, 300})
	require.NoError(t, err)

	require.NoError(t, base.Apply(revision))
	require.True(t, math.IsNaN(float64(base.At(0, 0))))
	require.True(t, math.IsNaN(float64(base.At(0, 1))))
	require.Equal(t, float32(300), base.At(1, 0))
	require.Equal(t, float32(400), base.At(1, 1))
}

func TestPatchApply_NaNCellsAreVoid(t *testing.T) {
	nan := float32(math.NaN())
	base, err := BuildPatch().Axis("x", 0, 1).Content([]float32{7, 8})
	require.NoError(t, err)
	revision, err := BuildPatch().Axis("x", 0, 1).Content([]float32{nan, 9})
	require.NoError(t, err)

	require.NoError(t, base.Apply(revision))
	require.Equal(t, float32(7), base.At(0))
	require.Equal(t, float32(9), base.At(1))
}

func TestPatchApply_AxisNameMismatch(t *testing.T) {
	base, err := BuildPatch().Axis("item", 1).Content([]float32{1})
	require.NoError(t, err)
	other, err := BuildPatch().Axis("store", 1).Content([]float32{2})
	require.NoError(t, err)

	var dm *ErrDimensionMismatch
	require.ErrorAs(t, base.Apply(other), &dm)
}

func TestMergePatches(t *testing.T) {
	nan := float32(math.NaN())
	pat1, err := BuildPatch().
		AxisRange("x", 0, 2).
		AxisRange("y", 0, 2).
		Content([]float32{nan, 2, 3, nan})
	require.NoError(t, err)
	pat2, err := BuildPatch().
		AxisRange("x", 0, 2).
		AxisRange("y", 0, 2).
		Content([]float32{1, nan, nan, 4})
	require.NoError(t, err)

	m, err := MergePatches(pat1, pat2)
	require.NoError(t, err)
	require.Equal(t, float32(1), m.At(0, 0))
	require.Equal(t, float32(2), m.At(0, 1))
	require.Equal(t, float32(3), m.At(1, 0))
	require.Equal(t, float32(4), m.At(1, 1))
}

func TestMergePatches_UnionsAxes(t *testing.T) {
	pat1, err := BuildPatch().Axis("x", 1, 2).Content([]float32{10, 20})
	require.NoError(t, err)
	pat2, err := BuildPatch().Axis("x", 2, 3).Content([]float32{99, 30})
	require.NoError(t, err)

	m, err := MergePatches(pat1, pat2)
	require.NoError(t, err)
	require.Equal(t, []Label{1, 2, 3}, m.Axes[0].Labels)
	require.Equal(t, float32(10), m.At(0))
	require.Equal(t, float32(99), m.At(1)) // later operand wins
	require.Equal(t, float32(30), m.At(2))
}

func TestBoundingBoxIntersects(t *testing.T) {
	a := BoundingBox{{Min: 0, Max: 4}, {Min: 2, Max: 2}}
	b := BoundingBox{{Min: 4, Max: 9}, {Min: 0, Max: 2}}
	c := BoundingBox{{Min: 5, Max: 9}, {Min: 0, Max: 2}}

	require.True(t, a.Intersects(b))
	require.True(t, b.Intersects(a))
	require.False(t, a.Intersects(c))
	require.False(t, a.Intersects(BoundingBox{{Min: 0, Max: 4}}))
}
