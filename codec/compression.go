package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the algorithm applied to a blob's payload. The
// numeric values are part of the wire format.
type Compression uint8

const (
	// CompressionRaw stores the payload uncompressed.
	CompressionRaw Compression = 0
	// CompressionLZ4 is the write-path default (fast, hot data).
	CompressionLZ4 Compression = 1
	// CompressionBrotli trades speed for ratio; reserved for cold storage.
	CompressionBrotli Compression = 2
)

// ParseCompression maps a configuration string to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "raw":
		return CompressionRaw, nil
	case "lz4":
		return CompressionLZ4, nil
	case "brotli":
		return CompressionBrotli, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", s)
	}
}

func (c Compression) String() string {
	switch c {
	case CompressionRaw:
		return "raw"
	case CompressionLZ4:
		return "lz4"
	case CompressionBrotli:
		return "brotli"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// compress returns the payload bytes and the tag actually written. LZ4
// falls back to raw when the block is incompressible; the fallback is
// deterministic for a given input, so encode stays deterministic.
func compress(data []byte, algo Compression) ([]byte, Compression, error) {
	switch algo {
	case CompressionRaw:
		return data, CompressionRaw, nil

	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, dst, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("lz4 compress: %w", err)
		}
		if n == 0 {
			// Incompressible block.
			return data, CompressionRaw, nil
		}
		return dst[:n], CompressionLZ4, nil

	case CompressionBrotli:
		var buf bytes.Buffer
		w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
		if _, err := w.Write(data); err != nil {
			return nil, 0, fmt.Errorf("brotli compress: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, 0, fmt.Errorf("brotli compress: %w", err)
		}
		return buf.Bytes(), CompressionBrotli, nil

	default:
		return nil, 0, fmt.Errorf("unknown compression %d", algo)
	}
}

// decompress inflates payload into exactly size bytes.
func decompress(payload []byte, algo Compression, size int) ([]byte, error) {
	switch algo {
	case CompressionRaw:
		if len(payload) != size {
			return nil, fmt.Errorf("%w: raw payload is %d bytes, header says %d",
				ErrCorruptPatch, len(payload), size)
		}
		return payload, nil

	case CompressionLZ4:
		dst := make([]byte, size)
		n, err := lz4.UncompressBlock(payload, dst)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrCorruptPatch, err)
		}
		if n != size {
			return nil, fmt.Errorf("%w: lz4 inflated to %d bytes, header says %d",
				ErrCorruptPatch, n, size)
		}
		return dst, nil

	case CompressionBrotli:
		dst := make([]byte, 0, size)
		r := brotli.NewReader(bytes.NewReader(payload))
		dst, err := readAll(r, dst, size)
		if err != nil {
			return nil, fmt.Errorf("%w: brotli: %v", ErrCorruptPatch, err)
		}
		if len(dst) != size {
			return nil, fmt.Errorf("%w: brotli inflated to %d bytes, header says %d",
				ErrCorruptPatch, len(dst), size)
		}
		return dst, nil

	default:
		return nil, fmt.Errorf("%w: unknown compression tag %d", ErrCorruptPatch, algo)
	}
}

// readAll reads r to EOF into dst in 32 KiB chunks and stops as soon as
// dst exceeds limit, so a corrupt stream cannot balloon memory.
func readAll(r io.Reader, dst []byte, limit int) ([]byte, error) {
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		dst = append(dst, buf[:n]...)
		if len(dst) > limit {
			return dst, nil
		}
		if err == io.EOF {
			return dst, nil
		}
		if err != nil {
			return nil, err
		}
	}
}
