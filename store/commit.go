package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
)

// CommitInfo is one node of the commit DAG.
type CommitInfo struct {
	ID      int64
	Parent  *int64 // nil for a root commit
	Message string
}

// NewCommit appends a commit. Ids are allocated by the store and are
// monotone, which is what makes cycles structurally impossible: a parent
// link can only point at a pre-existing, smaller id.
func (t *Tx) NewCommit(ctx context.Context, parent *int64, message string) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO Comm(parent_comm_id, message) VALUES (?, ?)`,
		parent, message)
	if err != nil {
		return 0, fmt.Errorf("insert commit: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert commit: %w", err)
	}
	return id, nil
}

// CommitByID looks up one commit.
func (t *Tx) CommitByID(ctx context.Context, commID int64) (CommitInfo, error) {
	var (
		info   CommitInfo
		parent sql.NullInt64
	)
	err := t.tx.QueryRowContext(ctx,
		`SELECT comm_id, parent_comm_id, message FROM Comm WHERE comm_id = ?`,
		commID).Scan(&info.ID, &parent, &info.Message)
	if errors.Is(err, sql.ErrNoRows) {
		return CommitInfo{}, &NotFoundError{Kind: "commit", Name: fmt.Sprint(commID)}
	}
	if err != nil {
		return CommitInfo{}, fmt.Errorf("read commit %d: %w", commID, err)
	}
	if parent.Valid {
		p := parent.Int64
		info.Parent = &p
	}
	return info, nil
}

// Ancestors yields commID, then its parent, transitively, terminating at
// the root. The walk is lazy so a consumer that finishes early (a fully
// assembled fetch) stops issuing queries; it is iterative, so arbitrarily
// long chains cost no stack.
func (t *Tx) Ancestors(ctx context.Context, commID int64) iter.Seq2[int64, error] {
	return func(yield func(int64, error) bool) {
		next := &commID
		for next != nil {
			info, err := t.CommitByID(ctx, *next)
			if err != nil {
				yield(0, err)
				return
			}
			if !yield(info.ID, nil) {
				return
			}
			next = info.Parent
		}
	}
}

// History returns the commit chain child-to-root as a slice.
func (t *Tx) History(ctx context.Context, commID int64) ([]CommitInfo, error) {
	var chain []CommitInfo
	next := &commID
	for next != nil {
		info, err := t.CommitByID(ctx, *next)
		if err != nil {
			return nil, err
		}
		chain = append(chain, info)
		next = info.Parent
	}
	return chain, nil
}

// ResolveTag returns the commit a tag points at.
func (t *Tx) ResolveTag(ctx context.Context, quilt, tag string) (int64, error) {
	var commID int64
	err := t.tx.QueryRowContext(ctx,
		`SELECT comm_id FROM Tag WHERE quilt_name = ? AND tag_name = ?`,
		quilt, tag).Scan(&commID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &NotFoundError{Kind: "tag", Name: fmt.Sprintf("%s/%s", quilt, tag)}
	}
	if err != nil {
		return 0, fmt.Errorf("resolve tag %s/%s: %w", quilt, tag, err)
	}
	return commID, nil
}

// SetTag upserts a tag. Overwriting a tag does not delete the previously
// pointed-to commit; it merely leaves it eligible for collection on the
// next Untag that reaches it.
func (t *Tx) SetTag(ctx context.Context, quilt, tag string, commID int64) error {
	if _, err := t.tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO Tag(quilt_name, tag_name, comm_id) VALUES (?, ?, ?)`,
		quilt, tag, commID); err != nil {
		return fmt.Errorf("set tag %s/%s: %w", quilt, tag, err)
	}
	return nil
}

// Untag removes a tag and garbage-collects from the pointed-to commit
// toward the root: a commit is deletable iff no tag references it and no
// commit in any quilt has it as parent. Eligible commits (and their
// patches) are deleted child-to-parent; the walk stops at the first
// ancestor that is still referenced. Returns the ids of deleted commits.
func (t *Tx) Untag(ctx context.Context, quilt, tag string) ([]int64, error) {
	commID, err := t.ResolveTag(ctx, quilt, tag)
	if err != nil {
		return nil, err
	}
	if _, err := t.tx.ExecContext(ctx,
		`DELETE FROM Tag WHERE quilt_name = ? AND tag_name = ?`, quilt, tag); err != nil {
		return nil, fmt.Errorf("untag %s/%s: %w", quilt, tag, err)
	}

	var deleted []int64
	next := &commID
	for next != nil {
		id := *next

		var tags int
		if err := t.tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM Tag WHERE comm_id = ?`, id).Scan(&tags); err != nil {
			return nil, fmt.Errorf("gc commit %d: %w", id, err)
		}
		var children int
		if err := t.tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM Comm WHERE parent_comm_id = ?`, id).Scan(&children); err != nil {
			return nil, fmt.Errorf("gc commit %d: %w", id, err)
		}
		if tags > 0 || children > 0 {
			break
		}

		info, err := t.CommitByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if _, err := t.DeletePatchesOfCommit(ctx, id); err != nil {
			return nil, err
		}
		if _, err := t.tx.ExecContext(ctx,
			`DELETE FROM Comm WHERE comm_id = ?`, id); err != nil {
			return nil, fmt.Errorf("gc commit %d: %w", id, err)
		}
		deleted = append(deleted, id)
		next = info.Parent
	}
	return deleted, nil
}
