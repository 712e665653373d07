// Package archive moves quilt history to and from cold storage.
//
// An archive is a set of patch blobs, transcoded to brotli, plus a JSON
// manifest describing the commit chain they belong to. Blobs live in an
// ObjectStore; the local filesystem and any S3-compatible endpoint (via
// MinIO) are supported.
package archive
