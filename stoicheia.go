package stoicheia

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/LDSLab/stoicheia/codec"
	"github.com/LDSLab/stoicheia/model"
	"github.com/LDSLab/stoicheia/store"
)

// DefaultTag is the tag used when a caller passes an empty tag name.
const DefaultTag = "latest"

// QuiltDetails re-exports the stored quilt metadata.
type QuiltDetails = store.QuiltDetails

// CommitInfo re-exports one node of the commit DAG.
type CommitInfo = store.CommitInfo

// Catalog is the public façade of the engine: one handle onto a stoicheia
// database. A Catalog is single-threaded; open one per goroutine. Several
// handles (or processes) may share a database file.
type Catalog struct {
	db   *store.DB
	opts options
}

// Open opens the database at path, creating it and applying the schema if
// necessary. Use ":memory:" for a private in-memory catalog.
func Open(path string, optFns ...Option) (*Catalog, error) {
	opts := applyOptions(optFns)

	db, err := store.Open(path, store.Options{
		Synchronous: string(opts.synchronous),
		BusyTimeout: opts.busyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}

	return &Catalog{db: db, opts: opts}, nil
}

// Close releases the catalog's store connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Quilt returns a lightweight handle caching (name, tag, axes) for
// subsequent fetches and commits. The handle's axis order drives the axis
// order of the patches it returns.
func (c *Catalog) Quilt(name, tag string, axes []string) *Quilt {
	if tag == "" {
		tag = DefaultTag
	}
	return &Quilt{cat: c, name: name, tag: tag, axes: axes}
}

// CreateQuilt creates a quilt with the given ordered axis list, creating
// any missing axes. Idempotent when the quilt already exists with the
// same axes; an existing quilt with a different axis list is an error,
// since the axis tuple is fixed at creation.
func (c *Catalog) CreateQuilt(ctx context.Context, name string, axes []string) error {
	if len(axes) == 0 || len(axes) > model.MaxDims {
		return &model.ErrDimensionMismatch{
			Expected: fmt.Sprintf("1 to %d axes", model.MaxDims),
			Actual:   fmt.Sprintf("%d axes", len(axes)),
		}
	}
	err := c.db.Update(ctx, func(tx *store.Tx) error {
		for _, ax := range axes {
			if err := tx.EnsureAxis(ctx, ax); err != nil {
				return err
			}
		}
		created, err := tx.EnsureQuilt(ctx, name, axes)
		if err != nil {
			return err
		}
		if !created {
			existing, err := tx.QuiltDetails(ctx, name)
			if err != nil {
				return err
			}
			if !equalAxisNames(existing.Axes, axes) {
				return fmt.Errorf("quilt %q already exists with axes %v: %w",
					name, existing.Axes, store.ErrConflict)
			}
		}
		return nil
	})
	return translateError(err)
}

// ListQuilts returns the details of every quilt in the catalog.
func (c *Catalog) ListQuilts(ctx context.Context) (map[string]QuiltDetails, error) {
	var quilts map[string]QuiltDetails
	err := c.db.View(ctx, func(tx *store.Tx) error {
		var err error
		quilts, err = tx.ListQuilts(ctx)
		return err
	})
	return quilts, translateError(err)
}

// Axis returns the full label vector of an axis in storage order.
func (c *Catalog) Axis(ctx context.Context, name string) (*model.Axis, error) {
	var ax model.Axis
	err := c.db.View(ctx, func(tx *store.Tx) error {
		stored, err := tx.Axis(ctx, name)
		if err != nil {
			return err
		}
		ax = stored.Clone()
		return nil
	})
	if err != nil {
		return nil, translateError(err)
	}
	return &ax, nil
}

// History returns the commit chain of a tag, child to root.
func (c *Catalog) History(ctx context.Context, quilt, tag string) ([]CommitInfo, error) {
	if tag == "" {
		tag = DefaultTag
	}
	var chain []CommitInfo
	err := c.db.View(ctx, func(tx *store.Tx) error {
		if _, err := tx.QuiltDetails(ctx, quilt); err != nil {
			return err
		}
		commID, err := tx.ResolveTag(ctx, quilt, tag)
		if err != nil {
			return err
		}
		chain, err = tx.History(ctx, commID)
		return err
	})
	return chain, translateError(err)
}

// Fetch assembles the requested slice of a quilt as seen from a tag.
// Axes absent from selectors are read whole. The returned patch's axes
// are the quilt's axes in declared order, carrying the resolved label
// vectors; cells no patch covers hold the configured fill value.
func (c *Catalog) Fetch(ctx context.Context, quilt, tag string, selectors map[string]model.Selector) (*model.Patch, error) {
	return c.fetch(ctx, quilt, tag, nil, selectors)
}

// Untag removes a tag and garbage-collects the commits (and their
// patches) that only this tag could reach.
func (c *Catalog) Untag(ctx context.Context, quilt, tag string) error {
	if tag == "" {
		tag = DefaultTag
	}
	start := time.Now()

	var removed []int64
	err := c.db.Update(ctx, func(tx *store.Tx) error {
		if _, err := tx.QuiltDetails(ctx, quilt); err != nil {
			return err
		}
		var err error
		removed, err = tx.Untag(ctx, quilt, tag)
		return err
	})
	err = translateError(err)

	c.opts.metrics.RecordUntag(len(removed), time.Since(start), err)
	c.opts.logger.LogUntag(ctx, quilt, tag, len(removed), err)
	return err
}

// Commit writes one patch as a new commit on (quilt, tag) and moves the
// tag to it, all in one transaction. The quilt is created on first commit
// with the patch's axis order; missing axis labels are appended to their
// axes. Returns the new commit id.
func (c *Catalog) Commit(ctx context.Context, quilt, tag, message string, p *model.Patch) (int64, error) {
	if tag == "" {
		tag = DefaultTag
	}
	start := time.Now()

	var commID int64
	err := c.db.Update(ctx, func(tx *store.Tx) error {
		var err error
		commID, err = c.commitInTx(ctx, tx, quilt, tag, message, p)
		return err
	})
	err = translateError(err)

	c.opts.metrics.RecordCommit(time.Since(start), err)
	c.opts.logger.LogCommit(ctx, quilt, tag, commID, err)
	if err != nil {
		return 0, err
	}
	return commID, nil
}

func (c *Catalog) commitInTx(ctx context.Context, tx *store.Tx, quilt, tag, message string, p *model.Patch) (int64, error) {
	patchAxes := make([]string, p.NDim())
	for i := range p.Axes {
		patchAxes[i] = p.Axes[i].Name
	}

	// First commit against an unknown quilt fixes its axis tuple from the
	// patch's axis order.
	for _, name := range patchAxes {
		if err := tx.EnsureAxis(ctx, name); err != nil {
			return 0, err
		}
	}
	if _, err := tx.EnsureQuilt(ctx, quilt, patchAxes); err != nil {
		return 0, err
	}
	details, err := tx.QuiltDetails(ctx, quilt)
	if err != nil {
		return 0, err
	}
	if !equalAxisNames(details.Axes, patchAxes) {
		return 0, &model.ErrDimensionMismatch{
			Expected: fmt.Sprintf("axes %v", details.Axes),
			Actual:   fmt.Sprintf("axes %v", patchAxes),
		}
	}

	// Label -> storage index, appending unseen labels, then require each
	// axis to cover a dense index range: patches are axis-aligned
	// rectangles in storage space.
	bounds := make(model.BoundingBox, p.NDim())
	for i := range p.Axes {
		indices, err := tx.ExtendAxis(ctx, p.Axes[i].Name, p.Axes[i].Labels)
		if err != nil {
			return 0, err
		}
		if len(indices) == 0 {
			bounds[i] = model.Interval{Min: 0, Max: -1}
			continue
		}
		lo, hi := indices[0], indices[0]
		for _, idx := range indices[1:] {
			lo, hi = min(lo, idx), max(hi, idx)
		}
		if hi-lo+1 != len(indices) {
			return 0, fmt.Errorf("axis %q: indices span [%d,%d] over %d labels: %w",
				p.Axes[i].Name, lo, hi, len(indices), ErrNonContiguousPatch)
		}
		bounds[i] = model.Interval{Min: lo, Max: hi}
	}

	var parent *int64
	switch parentID, err := tx.ResolveTag(ctx, quilt, tag); {
	case err == nil:
		parent = &parentID
	case store.IsNotFound(err, "tag"):
		// Root commit of this tag's history.
	default:
		return 0, err
	}

	commID, err := tx.NewCommit(ctx, parent, message)
	if err != nil {
		return 0, err
	}

	// A zero-extent patch records its labels and the commit, but there
	// are no cells to store.
	if p.Len() > 0 {
		blob, err := codec.Encode(p, c.opts.compression)
		if err != nil {
			return 0, err
		}
		if _, err := tx.InsertPatch(ctx, commID, codec.DecodedSize(p), bounds, blob); err != nil {
			return 0, err
		}
	}
	if err := tx.SetTag(ctx, quilt, tag, commID); err != nil {
		return 0, err
	}
	return commID, nil
}

// fetch resolves the request and runs the assembler. axisOrder lets a
// Quilt handle permute the output axes; nil means quilt order.
func (c *Catalog) fetch(ctx context.Context, quilt, tag string, axisOrder []string, selectors map[string]model.Selector) (*model.Patch, error) {
	if tag == "" {
		tag = DefaultTag
	}
	start := time.Now()

	var out *model.Patch
	err := c.db.View(ctx, func(tx *store.Tx) error {
		details, err := tx.QuiltDetails(ctx, quilt)
		if err != nil {
			return err
		}
		if axisOrder == nil {
			axisOrder = details.Axes
		}
		perm, err := axisPermutation(details.Axes, axisOrder)
		if err != nil {
			return err
		}
		for name := range selectors {
			if !slices.ContainsFunc(details.Axes, func(ax string) bool {
				return strings.EqualFold(ax, name)
			}) {
				return fmt.Errorf("quilt %q has no axis %q: %w", quilt, name, ErrUnknownAxis)
			}
		}

		commID, err := tx.ResolveTag(ctx, quilt, tag)
		if err != nil {
			return err
		}

		asm, err := newAssembler(ctx, tx, details, perm, selectors, c.opts.fillValue)
		if err != nil {
			return err
		}
		if err := asm.run(ctx, commID); err != nil {
			return err
		}
		out, err = asm.result()
		return err
	})
	err = translateError(err)

	cells := 0
	if out != nil {
		cells = out.Len()
	}
	c.opts.metrics.RecordFetch(cells, time.Since(start), err)
	c.opts.logger.LogFetch(ctx, quilt, tag, cells, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// axisPermutation maps each quilt dimension to its position in the
// requested output order. order must be a permutation of axes.
func axisPermutation(axes, order []string) ([]int, error) {
	if len(order) != len(axes) {
		return nil, &model.ErrDimensionMismatch{
			Expected: fmt.Sprintf("%d axes", len(axes)),
			Actual:   fmt.Sprintf("%d axes", len(order)),
		}
	}
	perm := make([]int, len(axes))
	used := make([]bool, len(order))
	for q, name := range axes {
		found := -1
		for j, candidate := range order {
			if !used[j] && strings.EqualFold(candidate, name) {
				found = j
				break
			}
		}
		if found < 0 {
			return nil, fmt.Errorf("axis %q missing from requested order: %w", name, ErrUnknownAxis)
		}
		used[found] = true
		perm[q] = found
	}
	return perm, nil
}

func equalAxisNames(a, b []string) bool {
	return slices.EqualFunc(a, b, strings.EqualFold)
}
