package stoicheia

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LDSLab/stoicheia/archive"
	"github.com/LDSLab/stoicheia/model"
)

func TestArchiveRestore_RoundTrip(t *testing.T) {
	src := openTestCatalog(t)
	ctx := context.Background()

	_, err := src.Commit(ctx, "sales", "latest", "init", salesPatch(t))
	require.NoError(t, err)
	fix, err := model.BuildPatch().
		Axis("itm", 20).Axis("lct", 2).Axis("day", 100).
		Content([]float32{9})
	require.NoError(t, err)
	_, err = src.Commit(ctx, "sales", "latest", "fix", fix)
	require.NoError(t, err)

	cold := archive.NewLocalStore(t.TempDir())
	manifestKey, err := src.Archive(ctx, "sales", "latest", cold)
	require.NoError(t, err)
	require.Equal(t, "sales/latest/manifest.json", manifestKey)

	keys, err := cold.List(ctx, "sales/latest/")
	require.NoError(t, err)
	require.Len(t, keys, 3) // two patch blobs plus the manifest

	// Restore into a fresh catalog and compare the visible slice.
	dst, err := Open(filepath.Join(t.TempDir(), "restored.db"))
	require.NoError(t, err)
	defer dst.Close()

	require.NoError(t, dst.Restore(ctx, manifestKey, cold))

	sel := map[string]model.Selector{
		"itm": model.Labels(10, 20),
		"lct": model.Labels(1, 2),
		"day": model.Labels(100),
	}
	want, err := src.Fetch(ctx, "sales", "latest", sel)
	require.NoError(t, err)
	got, err := dst.Fetch(ctx, "sales", "latest", sel)
	require.NoError(t, err)
	require.Equal(t, want.Data, got.Data)
	require.Equal(t, []float32{1, 2, 3, 9}, got.Data)

	// The replayed chain preserves messages oldest-to-newest.
	chain, err := dst.History(ctx, "sales", "latest")
	require.NoError(t, err)
	require.Len(t, chain, 2)
	require.Equal(t, "fix", chain[0].Message)
	require.Equal(t, "init", chain[1].Message)
}

func TestArchive_UnknownTag(t *testing.T) {
	cat := openTestCatalog(t)
	ctx := context.Background()

	_, err := cat.Commit(ctx, "sales", "latest", "init", salesPatch(t))
	require.NoError(t, err)

	_, err = cat.Archive(ctx, "sales", "nope", archive.NewLocalStore(t.TempDir()))
	require.ErrorIs(t, err, ErrUnknownTag)
}

func TestRestore_MissingManifest(t *testing.T) {
	cat := openTestCatalog(t)
	err := cat.Restore(context.Background(), "nope/manifest.json",
		archive.NewLocalStore(t.TempDir()))
	require.ErrorIs(t, err, archive.ErrNotFound)
}
