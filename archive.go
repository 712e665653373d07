package stoicheia

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/LDSLab/stoicheia/archive"
	"github.com/LDSLab/stoicheia/codec"
	"github.com/LDSLab/stoicheia/model"
	"github.com/LDSLab/stoicheia/store"
)

// archiveUploadConcurrency bounds parallel object uploads.
const archiveUploadConcurrency = 4

// Archive copies the full history reachable from (quilt, tag) into dst:
// every patch blob transcoded to brotli, plus a manifest describing the
// commit chain. Returns the manifest key.
//
// The source is read in one transaction, so the archive is a consistent
// snapshot; uploads run concurrently.
func (c *Catalog) Archive(ctx context.Context, quilt, tag string, dst archive.ObjectStore) (string, error) {
	if tag == "" {
		tag = DefaultTag
	}
	start := time.Now()
	patches := 0

	manifestKey, err := func() (string, error) {
		var (
			manifest archive.Manifest
			blobs    = make(map[string][]byte)
		)
		err := c.db.View(ctx, func(tx *store.Tx) error {
			details, err := tx.QuiltDetails(ctx, quilt)
			if err != nil {
				return err
			}
			commID, err := tx.ResolveTag(ctx, quilt, tag)
			if err != nil {
				return err
			}
			chain, err := tx.History(ctx, commID)
			if err != nil {
				return err
			}

			manifest = archive.Manifest{
				Version: archive.ManifestVersion,
				Quilt:   details.Name,
				Tag:     tag,
				Axes:    details.Axes,
			}
			// History is child-to-root; the manifest stores oldest first
			// so a restore can replay it in order.
			for i := len(chain) - 1; i >= 0; i-- {
				info := chain[i]
				refs, err := tx.PatchesOfCommit(ctx, info.ID)
				if err != nil {
					return err
				}
				entry := archive.CommitEntry{ID: info.ID, Message: info.Message}
				for _, ref := range refs {
					blob, err := tx.LoadPatchBlob(ctx, ref.ID)
					if err != nil {
						return err
					}
					p, err := codec.Decode(blob)
					if err != nil {
						return err
					}
					cold, err := codec.Encode(p, codec.CompressionBrotli)
					if err != nil {
						return err
					}
					key := fmt.Sprintf("%s/%s/%d/%d.stch", details.Name, tag, info.ID, ref.ID)
					blobs[key] = cold
					entry.Patches = append(entry.Patches, archive.PatchEntry{
						Key:              key,
						DecompressedSize: ref.DecompressedSize,
					})
				}
				manifest.Commits = append(manifest.Commits, entry)
			}
			return nil
		})
		if err != nil {
			return "", translateError(err)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(archiveUploadConcurrency)
		for key, data := range blobs {
			g.Go(func() error {
				return dst.Put(gctx, key, data)
			})
		}
		if err := g.Wait(); err != nil {
			return "", fmt.Errorf("upload archive: %w", err)
		}
		patches = len(blobs)

		encoded, err := manifest.Encode()
		if err != nil {
			return "", err
		}
		key := fmt.Sprintf("%s/%s/manifest.json", manifest.Quilt, tag)
		if err := dst.Put(ctx, key, encoded); err != nil {
			return "", fmt.Errorf("upload manifest: %w", err)
		}
		return key, nil
	}()

	c.opts.metrics.RecordArchive(patches, time.Since(start), err)
	c.opts.logger.LogArchive(ctx, "archive", quilt, tag, patches, err)
	return manifestKey, err
}

// Restore replays an archived manifest into the catalog, committing each
// archived patch oldest-first onto the manifest's (quilt, tag). New
// commit ids are allocated; messages and patch contents are preserved.
func (c *Catalog) Restore(ctx context.Context, manifestKey string, src archive.ObjectStore) error {
	start := time.Now()
	patches := 0

	err := func() error {
		raw, err := src.Get(ctx, manifestKey)
		if err != nil {
			return fmt.Errorf("fetch manifest: %w", err)
		}
		m, err := archive.DecodeManifest(raw)
		if err != nil {
			return err
		}

		for _, entry := range m.Commits {
			for _, pe := range entry.Patches {
				blob, err := src.Get(ctx, pe.Key)
				if err != nil {
					return fmt.Errorf("fetch %s: %w", pe.Key, err)
				}
				p, err := codec.Decode(blob)
				if err != nil {
					return err
				}
				if got := codec.DecodedSize(p); got != pe.DecompressedSize {
					return fmt.Errorf("%w: %s decompressed to %d bytes, manifest says %d",
						ErrCorruptPatch, pe.Key, got, pe.DecompressedSize)
				}
				if err := reorderForRestore(p, m.Axes); err != nil {
					return err
				}
				if _, err := c.Commit(ctx, m.Quilt, m.Tag, entry.Message, p); err != nil {
					return err
				}
				patches++
			}
		}
		return nil
	}()

	c.opts.metrics.RecordArchive(patches, time.Since(start), err)
	c.opts.logger.LogArchive(ctx, "restore", manifestKey, "", patches, err)
	return err
}

// reorderForRestore sanity-checks an archived patch against the manifest
// axis order. Blobs store quilt order, so a mismatch means the archive
// was tampered with or mixed between quilts.
func reorderForRestore(p *model.Patch, axes []string) error {
	if p.NDim() != len(axes) {
		return fmt.Errorf("%w: archived patch has %d axes, manifest says %d",
			ErrCorruptPatch, p.NDim(), len(axes))
	}
	for i := range axes {
		if !strings.EqualFold(p.Axes[i].Name, axes[i]) {
			return fmt.Errorf("%w: archived patch axis %q, manifest says %q",
				ErrCorruptPatch, p.Axes[i].Name, axes[i])
		}
	}
	return nil
}
