package stoicheia

import (
	"errors"
	"fmt"

	"github.com/LDSLab/stoicheia/codec"
	"github.com/LDSLab/stoicheia/store"
)

var (
	// ErrUnknownQuilt is returned when a named quilt does not exist.
	ErrUnknownQuilt = errors.New("unknown quilt")
	// ErrUnknownTag is returned when a quilt has no tag by that name.
	ErrUnknownTag = errors.New("unknown tag")
	// ErrUnknownAxis is returned when a selector names an axis the quilt
	// does not have, or an axis lookup misses.
	ErrUnknownAxis = errors.New("unknown axis")
	// ErrUnknownLabel is returned when a read-path selector names a label
	// the axis has never seen.
	ErrUnknownLabel = errors.New("unknown label")
	// ErrUnknownIndex is returned when a storage index is out of an
	// axis's current extent.
	ErrUnknownIndex = errors.New("unknown index")
	// ErrAxisConflict is returned when one call supplies the same label
	// twice with differing semantics.
	ErrAxisConflict = errors.New("axis conflict")
	// ErrNonContiguousPatch is returned when a committed patch's labels
	// map to a gapped storage-index range. Patches must be axis-aligned
	// dense rectangles in storage-index space.
	ErrNonContiguousPatch = errors.New("non-contiguous patch")
	// ErrCorruptCommit is returned when two patches of one commit claim
	// the same cell.
	ErrCorruptCommit = errors.New("corrupt commit")
	// ErrStore marks a failure to open the store, a store conflict, or a
	// lookup miss of a kind with no sentinel of its own. Other I/O failures
	// reported by the store carry the store's detail but do not match
	// ErrStore.
	ErrStore = errors.New("storage error")
)

// ErrCorruptPatch is returned when a stored blob fails validation; the
// fetch in progress aborts, the store is left intact.
var ErrCorruptPatch = codec.ErrCorruptPatch

// translateError maps subpackage errors onto the public error surface.
// Not-found kinds with a public sentinel become that sentinel; other
// not-found kinds and store conflicts become ErrStore; axis conflicts
// become ErrAxisConflict. Any other error, including an I/O failure
// reported by the store, is returned unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var nf *store.NotFoundError
	if errors.As(err, &nf) {
		switch nf.Kind {
		case "quilt":
			return fmt.Errorf("%w: %w", ErrUnknownQuilt, err)
		case "tag":
			return fmt.Errorf("%w: %w", ErrUnknownTag, err)
		case "axis":
			return fmt.Errorf("%w: %w", ErrUnknownAxis, err)
		case "label":
			return fmt.Errorf("%w: %w", ErrUnknownLabel, err)
		case "index":
			return fmt.Errorf("%w: %w", ErrUnknownIndex, err)
		}
		return fmt.Errorf("%w: %w", ErrStore, err)
	}

	if errors.Is(err, store.ErrAxisConflict) {
		return fmt.Errorf("%w: %w", ErrAxisConflict, err)
	}
	if errors.Is(err, store.ErrConflict) {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}

	return err
}
