package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LDSLab/stoicheia/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_SchemaIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	db, err := Open(path, Options{})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Reopening applies the schema again without error.
	db, err = Open(path, Options{Synchronous: "full"})
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestAxisRegistry_ExtendAndTranslate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Update(ctx, func(tx *Tx) error {
		indices, err := tx.ExtendAxis(ctx, "itm", []model.Label{10, 20, 30})
		require.NoError(t, err)
		require.Equal(t, []int{0, 1, 2}, indices)

		// Existing labels keep their index; new ones append.
		indices, err = tx.ExtendAxis(ctx, "itm", []model.Label{20, 40})
		require.NoError(t, err)
		require.Equal(t, []int{1, 3}, indices)

		n, err := tx.AxisLen(ctx, "itm")
		require.NoError(t, err)
		require.Equal(t, 4, n)
		return nil
	}))

	// Append-only survives the transaction boundary.
	require.NoError(t, db.View(ctx, func(tx *Tx) error {
		indices, err := tx.LabelsToIndices(ctx, "itm", []model.Label{10, 40}, false)
		require.NoError(t, err)
		require.Equal(t, []int{0, 3}, indices)

		labels, err := tx.IndicesToLabels(ctx, "itm", []int{3, 0})
		require.NoError(t, err)
		require.Equal(t, []model.Label{40, 10}, labels)
		return nil
	}))
}

func TestAxisRegistry_UnknownLookups(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Update(ctx, func(tx *Tx) error {
		_, err := tx.ExtendAxis(ctx, "itm", []model.Label{10})
		require.NoError(t, err)

		_, err = tx.LabelsToIndices(ctx, "itm", []model.Label{99}, false)
		require.True(t, IsNotFound(err, "label"))

		_, err = tx.IndicesToLabels(ctx, "itm", []int{5})
		require.True(t, IsNotFound(err, "index"))

		_, err = tx.Axis(ctx, "nope")
		require.True(t, IsNotFound(err, "axis"))
		return nil
	}))
}

func TestAxisRegistry_DuplicateLabelInOneCall(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.Update(ctx, func(tx *Tx) error {
		_, err := tx.ExtendAxis(ctx, "itm", []model.Label{10, 10})
		return err
	})
	require.ErrorIs(t, err, ErrAxisConflict)
}

func TestAxisRegistry_IndicesArePerAxis(t *testing.T) {
	// The storage-index sequence is global, but each axis's indices rank
	// from zero within that axis.
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Update(ctx, func(tx *Tx) error {
		_, err := tx.ExtendAxis(ctx, "itm", []model.Label{10, 20})
		require.NoError(t, err)

		indices, err := tx.ExtendAxis(ctx, "lct", []model.Label{1, 2})
		require.NoError(t, err)
		require.Equal(t, []int{0, 1}, indices)
		return nil
	}))
}

func TestQuilts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Update(ctx, func(tx *Tx) error {
		created, err := tx.EnsureQuilt(ctx, "sales", []string{"itm", "lct", "day"})
		require.NoError(t, err)
		require.True(t, created)

		created, err = tx.EnsureQuilt(ctx, "sales", []string{"other"})
		require.NoError(t, err)
		require.False(t, created)

		d, err := tx.QuiltDetails(ctx, "sales")
		require.NoError(t, err)
		require.Equal(t, []string{"itm", "lct", "day"}, d.Axes)

		// Quilt names are case-insensitive.
		_, err = tx.QuiltDetails(ctx, "SALES")
		require.NoError(t, err)

		_, err = tx.QuiltDetails(ctx, "nope")
		require.True(t, IsNotFound(err, "quilt"))

		all, err := tx.ListQuilts(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		return nil
	}))
}

func TestPatchStore_InsertAndOverlap(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	blob := []byte("not a real blob, geometry only")
	require.NoError(t, db.Update(ctx, func(tx *Tx) error {
		commID, err := tx.NewCommit(ctx, nil, "geometry")
		require.NoError(t, err)

		// Two disjoint boxes on the first axis.
		a, err := tx.InsertPatch(ctx, commID, 16,
			model.BoundingBox{{Min: 0, Max: 4}, {Min: 0, Max: 1}}, blob)
		require.NoError(t, err)
		b, err := tx.InsertPatch(ctx, commID, 16,
			model.BoundingBox{{Min: 5, Max: 9}, {Min: 0, Max: 1}}, blob)
		require.NoError(t, err)
		require.NotEqual(t, a, b)

		// Overlap on every axis is required.
		refs, err := tx.OverlappingInCommit(ctx, commID,
			model.BoundingBox{{Min: 4, Max: 5}, {Min: 0, Max: 0}})
		require.NoError(t, err)
		require.Len(t, refs, 2)

		refs, err = tx.OverlappingInCommit(ctx, commID,
			model.BoundingBox{{Min: 0, Max: 9}, {Min: 2, Max: 3}})
		require.NoError(t, err)
		require.Empty(t, refs)

		refs, err = tx.OverlappingInCommit(ctx, commID,
			model.BoundingBox{{Min: 6, Max: 6}, {Min: 1, Max: 1}})
		require.NoError(t, err)
		require.Len(t, refs, 1)
		require.Equal(t, b, refs[0].ID)
		require.Equal(t, model.BoundingBox{{Min: 5, Max: 9}, {Min: 0, Max: 1}}, refs[0].Bounds)

		loaded, err := tx.LoadPatchBlob(ctx, a)
		require.NoError(t, err)
		require.Equal(t, blob, loaded)
		return nil
	}))
}

func TestCommitGraph_AncestorsAndHistory(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Update(ctx, func(tx *Tx) error {
		root, err := tx.NewCommit(ctx, nil, "root")
		require.NoError(t, err)
		mid, err := tx.NewCommit(ctx, &root, "mid")
		require.NoError(t, err)
		tip, err := tx.NewCommit(ctx, &mid, "tip")
		require.NoError(t, err)
		require.Greater(t, mid, root)
		require.Greater(t, tip, mid)

		var walked []int64
		for id, err := range tx.Ancestors(ctx, tip) {
			require.NoError(t, err)
			walked = append(walked, id)
		}
		require.Equal(t, []int64{tip, mid, root}, walked)

		// Lazy: a consumer can stop after the first ancestor.
		walked = walked[:0]
		for id, err := range tx.Ancestors(ctx, tip) {
			require.NoError(t, err)
			walked = append(walked, id)
			break
		}
		require.Equal(t, []int64{tip}, walked)

		chain, err := tx.History(ctx, tip)
		require.NoError(t, err)
		require.Len(t, chain, 3)
		require.Equal(t, "tip", chain[0].Message)
		require.Equal(t, "root", chain[2].Message)
		return nil
	}))
}

func TestTags_UpsertAndResolve(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Update(ctx, func(tx *Tx) error {
		_, err := tx.EnsureQuilt(ctx, "sales", []string{"itm"})
		require.NoError(t, err)
		c1, err := tx.NewCommit(ctx, nil, "one")
		require.NoError(t, err)
		c2, err := tx.NewCommit(ctx, &c1, "two")
		require.NoError(t, err)

		require.NoError(t, tx.SetTag(ctx, "sales", "latest", c1))
		require.NoError(t, tx.SetTag(ctx, "sales", "latest", c2))

		got, err := tx.ResolveTag(ctx, "sales", "latest")
		require.NoError(t, err)
		require.Equal(t, c2, got)

		// Tag names are case-insensitive and quilt-scoped.
		got, err = tx.ResolveTag(ctx, "sales", "LATEST")
		require.NoError(t, err)
		require.Equal(t, c2, got)

		_, err = tx.ResolveTag(ctx, "sales", "backup")
		require.True(t, IsNotFound(err, "tag"))
		return nil
	}))
}

func TestUntag_CollectsUnreachableChain(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Update(ctx, func(tx *Tx) error {
		_, err := tx.EnsureQuilt(ctx, "sales", []string{"itm"})
		require.NoError(t, err)

		root, err := tx.NewCommit(ctx, nil, "root")
		require.NoError(t, err)
		tip, err := tx.NewCommit(ctx, &root, "tip")
		require.NoError(t, err)
		_, err = tx.InsertPatch(ctx, tip, 4,
			model.BoundingBox{{Min: 0, Max: 0}}, []byte{1})
		require.NoError(t, err)
		require.NoError(t, tx.SetTag(ctx, "sales", "latest", tip))

		deleted, err := tx.Untag(ctx, "sales", "latest")
		require.NoError(t, err)
		require.Equal(t, []int64{tip, root}, deleted)

		_, err = tx.CommitByID(ctx, tip)
		require.True(t, IsNotFound(err, "commit"))
		_, err = tx.LoadPatchBlob(ctx, 1)
		require.True(t, IsNotFound(err, "patch"))
		return nil
	}))
}

func TestUntag_StopsAtTaggedAncestor(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Update(ctx, func(tx *Tx) error {
		_, err := tx.EnsureQuilt(ctx, "sales", []string{"itm"})
		require.NoError(t, err)

		root, err := tx.NewCommit(ctx, nil, "root")
		require.NoError(t, err)
		tip, err := tx.NewCommit(ctx, &root, "tip")
		require.NoError(t, err)
		require.NoError(t, tx.SetTag(ctx, "sales", "backup", root))
		require.NoError(t, tx.SetTag(ctx, "sales", "latest", tip))

		deleted, err := tx.Untag(ctx, "sales", "latest")
		require.NoError(t, err)
		require.Equal(t, []int64{tip}, deleted)

		// The tagged ancestor and its history survive.
		_, err = tx.CommitByID(ctx, root)
		require.NoError(t, err)
		return nil
	}))
}

func TestUntag_StopsAtSharedAncestorWithChildren(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Update(ctx, func(tx *Tx) error {
		_, err := tx.EnsureQuilt(ctx, "sales", []string{"itm"})
		require.NoError(t, err)

		base, err := tx.NewCommit(ctx, nil, "base")
		require.NoError(t, err)
		left, err := tx.NewCommit(ctx, &base, "left")
		require.NoError(t, err)
		right, err := tx.NewCommit(ctx, &base, "right")
		require.NoError(t, err)
		require.NoError(t, tx.SetTag(ctx, "sales", "left", left))
		require.NoError(t, tx.SetTag(ctx, "sales", "right", right))

		// Untagging one branch must not touch base: the other branch
		// still descends from it.
		deleted, err := tx.Untag(ctx, "sales", "left")
		require.NoError(t, err)
		require.Equal(t, []int64{left}, deleted)

		_, err = tx.CommitByID(ctx, base)
		require.NoError(t, err)
		_, err = tx.CommitByID(ctx, right)
		require.NoError(t, err)
		return nil
	}))
}
