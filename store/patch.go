package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/LDSLab/stoicheia/model"
)

// PatchRef is a Patch row: everything about a stored patch except its
// compressed content.
type PatchRef struct {
	ID               int64
	CommID           int64
	DecompressedSize int64
	Bounds           model.BoundingBox
}

// InsertPatch stores a Patch row and its PatchContent blob. Ids are
// allocated by the store; the row and the blob land in the same
// transaction, so a reader sees both or neither.
func (t *Tx) InsertPatch(ctx context.Context, commID int64, decompressedSize int64, bounds model.BoundingBox, blob []byte) (int64, error) {
	if len(bounds) == 0 || len(bounds) > model.MaxDims {
		return 0, fmt.Errorf("patch has %d dimensions", len(bounds))
	}

	dims := make([]any, 2*model.MaxDims)
	for i := range bounds {
		dims[2*i] = bounds[i].Min
		dims[2*i+1] = bounds[i].Max
	}

	args := append([]any{commID, decompressedSize}, dims...)
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO Patch(
			comm_id, decompressed_size,
			dim_0_min, dim_0_max,
			dim_1_min, dim_1_max,
			dim_2_min, dim_2_max,
			dim_3_min, dim_3_max
		) VALUES (?,?,?,?,?,?,?,?,?,?)`, args...)
	if err != nil {
		if isConstraintViolation(err) {
			return 0, fmt.Errorf("insert patch: %w", ErrConflict)
		}
		return 0, fmt.Errorf("insert patch: %w", err)
	}
	patchID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert patch: %w", err)
	}

	if _, err := t.tx.ExecContext(ctx,
		`INSERT INTO PatchContent(patch_id, content) VALUES (?, ?)`,
		patchID, blob); err != nil {
		if isConstraintViolation(err) {
			return 0, fmt.Errorf("insert patch content: %w", ErrConflict)
		}
		return 0, fmt.Errorf("insert patch content: %w", err)
	}
	return patchID, nil
}

// OverlappingInCommit returns the patches of one commit whose bounding box
// intersects bounds on every axis. The scan is a linear bounding-box
// predicate; any future spatial index must preserve exactly this
// geometry.
func (t *Tx) OverlappingInCommit(ctx context.Context, commID int64, bounds model.BoundingBox) ([]PatchRef, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT patch_id, comm_id, decompressed_size,
			dim_0_min, dim_0_max, dim_1_min, dim_1_max,
			dim_2_min, dim_2_max, dim_3_min, dim_3_max
		FROM Patch WHERE comm_id = ?`)
	args := []any{commID}
	for i := range bounds {
		fmt.Fprintf(&sb, " AND dim_%d_min <= ? AND dim_%d_max >= ?", i, i)
		args = append(args, bounds[i].Max, bounds[i].Min)
	}
	sb.WriteString(" ORDER BY patch_id")

	rows, err := t.tx.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("overlap query: %w", err)
	}
	defer rows.Close()

	return scanPatchRefs(rows, len(bounds))
}

// PatchesOfCommit returns every patch of one commit, regardless of
// geometry.
func (t *Tx) PatchesOfCommit(ctx context.Context, commID int64) ([]PatchRef, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT patch_id, comm_id, decompressed_size,
			dim_0_min, dim_0_max, dim_1_min, dim_1_max,
			dim_2_min, dim_2_max, dim_3_min, dim_3_max
		FROM Patch WHERE comm_id = ? ORDER BY patch_id`, commID)
	if err != nil {
		return nil, fmt.Errorf("patches of commit %d: %w", commID, err)
	}
	defer rows.Close()

	return scanPatchRefs(rows, 0)
}

func scanPatchRefs(rows *sql.Rows, ndim int) ([]PatchRef, error) {
	var refs []PatchRef
	for rows.Next() {
		var (
			ref  PatchRef
			dims [2 * model.MaxDims]sql.NullInt64
		)
		if err := rows.Scan(&ref.ID, &ref.CommID, &ref.DecompressedSize,
			&dims[0], &dims[1], &dims[2], &dims[3],
			&dims[4], &dims[5], &dims[6], &dims[7]); err != nil {
			return nil, fmt.Errorf("scan patch row: %w", err)
		}
		n := ndim
		if n == 0 {
			for n < model.MaxDims && dims[2*n].Valid {
				n++
			}
		}
		ref.Bounds = make(model.BoundingBox, n)
		for i := 0; i < n; i++ {
			ref.Bounds[i] = model.Interval{
				Min: int(dims[2*i].Int64),
				Max: int(dims[2*i+1].Int64),
			}
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// LoadPatchBlob fetches the compressed bytes of one patch.
func (t *Tx) LoadPatchBlob(ctx context.Context, patchID int64) ([]byte, error) {
	var blob []byte
	err := t.tx.QueryRowContext(ctx,
		`SELECT content FROM PatchContent WHERE patch_id = ?`, patchID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Kind: "patch", Name: fmt.Sprint(patchID)}
	}
	if err != nil {
		return nil, fmt.Errorf("load patch %d: %w", patchID, err)
	}
	return blob, nil
}

// DeletePatchesOfCommit removes the Patch and PatchContent rows of one
// commit. Only the garbage collector calls this; patches are otherwise
// immutable.
func (t *Tx) DeletePatchesOfCommit(ctx context.Context, commID int64) (int64, error) {
	if _, err := t.tx.ExecContext(ctx, `
		DELETE FROM PatchContent WHERE patch_id IN
			(SELECT patch_id FROM Patch WHERE comm_id = ?)`, commID); err != nil {
		return 0, fmt.Errorf("delete patch content of commit %d: %w", commID, err)
	}
	res, err := t.tx.ExecContext(ctx,
		`DELETE FROM Patch WHERE comm_id = ?`, commID)
	if err != nil {
		return 0, fmt.Errorf("delete patches of commit %d: %w", commID, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func isConstraintViolation(err error) bool {
	// modernc.org/sqlite surfaces SQLITE_CONSTRAINT_* in the message; no
	// typed error is exported for it.
	return err != nil && strings.Contains(err.Error(), "constraint")
}
