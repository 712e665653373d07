package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// QuiltDetails is the stored metadata of a quilt: its name and its
// ordered axis list, fixed at creation.
type QuiltDetails struct {
	Name string
	Axes []string
}

// EnsureQuilt creates the quilt if absent and reports whether it was
// created. The axis list of an existing quilt is never changed.
func (t *Tx) EnsureQuilt(ctx context.Context, name string, axes []string) (bool, error) {
	encoded, err := json.Marshal(axes)
	if err != nil {
		return false, fmt.Errorf("encode axes: %w", err)
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO Quilt(quilt_name, axes) VALUES (?, ?)`,
		name, string(encoded))
	if err != nil {
		return false, fmt.Errorf("create quilt %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create quilt %q: %w", name, err)
	}
	return n > 0, nil
}

// QuiltDetails looks up a quilt by name.
func (t *Tx) QuiltDetails(ctx context.Context, name string) (QuiltDetails, error) {
	var (
		d       QuiltDetails
		encoded string
	)
	err := t.tx.QueryRowContext(ctx,
		`SELECT quilt_name, axes FROM Quilt WHERE quilt_name = ?`, name).
		Scan(&d.Name, &encoded)
	if errors.Is(err, sql.ErrNoRows) {
		return QuiltDetails{}, &NotFoundError{Kind: "quilt", Name: name}
	}
	if err != nil {
		return QuiltDetails{}, fmt.Errorf("read quilt %q: %w", name, err)
	}
	if err := json.Unmarshal([]byte(encoded), &d.Axes); err != nil {
		return QuiltDetails{}, fmt.Errorf("decode axes of quilt %q: %w", name, err)
	}
	return d, nil
}

// ListQuilts returns every quilt keyed by stored name.
func (t *Tx) ListQuilts(ctx context.Context) (map[string]QuiltDetails, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT quilt_name, axes FROM Quilt`)
	if err != nil {
		return nil, fmt.Errorf("list quilts: %w", err)
	}
	defer rows.Close()

	quilts := make(map[string]QuiltDetails)
	for rows.Next() {
		var (
			d       QuiltDetails
			encoded string
		)
		if err := rows.Scan(&d.Name, &encoded); err != nil {
			return nil, fmt.Errorf("list quilts: %w", err)
		}
		if err := json.Unmarshal([]byte(encoded), &d.Axes); err != nil {
			return nil, fmt.Errorf("decode axes of quilt %q: %w", d.Name, err)
		}
		quilts[d.Name] = d
	}
	return quilts, rows.Err()
}
