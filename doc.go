// Package stoicheia is an embedded storage and retrieval engine for
// large, labeled, multi-dimensional numeric tensors.
//
// A tensor ("quilt") is usually too large to materialize, so callers work
// with rectangular sub-regions ("patches") addressed by per-axis integer
// labels, and accumulate revisions through an append-only commit graph
// with per-quilt tags, much like a source-control system.
//
// # Quick start
//
//	cat, _ := stoicheia.Open("sales.db")
//	defer cat.Close()
//
//	p, _ := model.BuildPatch().
//	    Axis("itm", 10, 20).
//	    Axis("lct", 1, 2).
//	    Axis("day", 100).
//	    Content([]float32{1, 2, 3, 4})
//
//	ctx := context.Background()
//	cat.Commit(ctx, "sales", "latest", "init", p)
//
//	out, _ := cat.Fetch(ctx, "sales", "latest", map[string]model.Selector{
//	    "itm": model.Labels(10, 20),
//	    "day": model.Range(100, 200),
//	})
//
// Patches are compressed (lz4 by default) and persisted in a single
// SQLite file. A fetch walks the tag's commit ancestry newest-first and
// stitches the overlapping patches into a dense result, last writer wins;
// cells no patch covers are filled with the configured fill value.
//
// # Durability model
//
// Every public call runs in exactly one transaction: a commit is atomic
// (a reader that observes the new tag observes all of its patches), and a
// fetch sees a consistent snapshot. Untagging a branch garbage-collects
// the commits only it could reach.
package stoicheia
