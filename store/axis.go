package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/LDSLab/stoicheia/model"
)

// EnsureAxis creates the named axis if absent. Idempotent.
func (t *Tx) EnsureAxis(ctx context.Context, name string) error {
	if _, err := t.tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO Axis(axis_name) VALUES (?)`, name); err != nil {
		return fmt.Errorf("ensure axis %q: %w", name, err)
	}
	return nil
}

// Axis returns the full label vector of an axis in storage order. The
// result is cached on the transaction; callers must not mutate it.
func (t *Tx) Axis(ctx context.Context, name string) (*model.Axis, error) {
	if ax, ok := t.axisCache[name]; ok {
		return ax, nil
	}

	var exists int
	err := t.tx.QueryRowContext(ctx,
		`SELECT 1 FROM Axis WHERE axis_name = ?`, name).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Kind: "axis", Name: name}
	}
	if err != nil {
		return nil, fmt.Errorf("read axis %q: %w", name, err)
	}

	rows, err := t.tx.QueryContext(ctx,
		`SELECT label FROM AxisContent WHERE axis_name = ? ORDER BY global_storage_index`,
		name)
	if err != nil {
		return nil, fmt.Errorf("read axis %q: %w", name, err)
	}
	defer rows.Close()

	var labels []model.Label
	for rows.Next() {
		var l int64
		if err := rows.Scan(&l); err != nil {
			return nil, fmt.Errorf("read axis %q: %w", name, err)
		}
		labels = append(labels, model.Label(l))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read axis %q: %w", name, err)
	}

	ax := &model.Axis{Name: name, Labels: labels}
	t.axisCache[name] = ax
	return ax, nil
}

// AxisLen returns the current number of labels on an axis.
func (t *Tx) AxisLen(ctx context.Context, name string) (int, error) {
	ax, err := t.Axis(ctx, name)
	if err != nil {
		return 0, err
	}
	return ax.Len(), nil
}

// ExtendAxis appends the labels not yet present, in the given order, and
// returns the storage index of every input label (one entry per input,
// existing labels keep their index). Supplying the same label twice in one
// call is an axis conflict: a dense patch axis has exactly one position
// per label.
func (t *Tx) ExtendAxis(ctx context.Context, name string, labels []model.Label) ([]int, error) {
	if err := t.EnsureAxis(ctx, name); err != nil {
		return nil, err
	}
	ax, err := t.Axis(ctx, name)
	if err != nil {
		return nil, err
	}

	position := make(map[model.Label]int, ax.Len())
	for i, l := range ax.Labels {
		position[l] = i
	}

	seen := make(map[model.Label]struct{}, len(labels))
	indices := make([]int, len(labels))
	for i, l := range labels {
		if _, dup := seen[l]; dup {
			return nil, fmt.Errorf("axis %q: label %d supplied twice: %w",
				name, l, ErrAxisConflict)
		}
		seen[l] = struct{}{}

		if idx, ok := position[l]; ok {
			indices[i] = idx
			continue
		}

		if _, err := t.tx.ExecContext(ctx,
			`INSERT INTO AxisContent(axis_name, label) VALUES (?, ?)`,
			name, int64(l)); err != nil {
			return nil, fmt.Errorf("extend axis %q: %w", name, err)
		}
		idx := len(ax.Labels)
		ax.Labels = append(ax.Labels, l)
		position[l] = idx
		indices[i] = idx
	}
	return indices, nil
}

// LabelsToIndices translates labels to storage indices. With extendOnMiss,
// unknown labels are appended (the commit path); otherwise they fail as
// unknown labels (the read path).
func (t *Tx) LabelsToIndices(ctx context.Context, name string, labels []model.Label, extendOnMiss bool) ([]int, error) {
	if extendOnMiss {
		return t.ExtendAxis(ctx, name, labels)
	}

	ax, err := t.Axis(ctx, name)
	if err != nil {
		return nil, err
	}
	position := make(map[model.Label]int, ax.Len())
	for i, l := range ax.Labels {
		position[l] = i
	}

	indices := make([]int, len(labels))
	for i, l := range labels {
		idx, ok := position[l]
		if !ok {
			return nil, &NotFoundError{Kind: "label", Name: fmt.Sprintf("%s[%d]", name, l)}
		}
		indices[i] = idx
	}
	return indices, nil
}

// IndicesToLabels is the inverse translation; unknown indices fail.
func (t *Tx) IndicesToLabels(ctx context.Context, name string, indices []int) ([]model.Label, error) {
	ax, err := t.Axis(ctx, name)
	if err != nil {
		return nil, err
	}
	labels := make([]model.Label, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= ax.Len() {
			return nil, &NotFoundError{Kind: "index", Name: fmt.Sprintf("%s[%d]", name, idx)}
		}
		labels[i] = ax.Labels[idx]
	}
	return labels, nil
}
