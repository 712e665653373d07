package archive

import (
	"encoding/json"
	"fmt"
)

// ManifestVersion is bumped on any incompatible manifest change.
const ManifestVersion = 1

// Manifest describes one archived tag: the quilt, its axis order, and the
// commit chain root-to-child with the object keys of each commit's patch
// blobs.
type Manifest struct {
	Version int           `json:"version"`
	Quilt   string        `json:"quilt"`
	Tag     string        `json:"tag"`
	Axes    []string      `json:"axes"`
	Commits []CommitEntry `json:"commits"` // oldest first
}

// CommitEntry is one archived commit.
type CommitEntry struct {
	ID      int64        `json:"id"`
	Message string       `json:"message"`
	Patches []PatchEntry `json:"patches"`
}

// PatchEntry is one archived patch blob.
type PatchEntry struct {
	Key              string `json:"key"`
	DecompressedSize int64  `json:"decompressed_size"`
}

// Encode renders the manifest as JSON.
func (m *Manifest) Encode() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// DecodeManifest parses and version-checks a manifest.
func DecodeManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if m.Version != ManifestVersion {
		return nil, fmt.Errorf("unsupported manifest version %d", m.Version)
	}
	return &m, nil
}
