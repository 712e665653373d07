package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/LDSLab/stoicheia/model"
)

// ErrCorruptPatch is returned when a blob fails structural validation:
// bad magic, unknown version, truncated header, or a payload whose
// decompressed size disagrees with the header.
var ErrCorruptPatch = errors.New("corrupt patch blob")

// Blob layout, little-endian throughout:
//
//	magic "STCH" | version u16 | element tag u16
//	dimension count D u16
//	D × ( name length u16 | name bytes | label count u64 | count × label i64 )
//	compression tag u8 | compressed length u64 | payload
//
// The decompressed payload is prod(label counts) × 4 bytes of float32 in
// row-major (outer-axis-first) order.
const (
	formatVersion  = 1
	elementFloat32 = 1
)

var magic = [4]byte{'S', 'T', 'C', 'H'}

// Encode serializes a patch with the given compression. Deterministic for
// a given (patch, algo) pair.
func Encode(p *model.Patch, algo Compression) ([]byte, error) {
	payload := make([]byte, p.Len()*model.ElementSize)
	for i, v := range p.Data {
		binary.LittleEndian.PutUint32(payload[i*4:], math.Float32bits(v))
	}

	compressed, tag, err := compress(payload, algo)
	if err != nil {
		return nil, err
	}

	size := len(magic) + 2 + 2 + 2
	for i := range p.Axes {
		size += 2 + len(p.Axes[i].Name) + 8 + 8*p.Axes[i].Len()
	}
	size += 1 + 8 + len(compressed)

	buf := make([]byte, 0, size)
	buf = append(buf, magic[:]...)
	buf = binary.LittleEndian.AppendUint16(buf, formatVersion)
	buf = binary.LittleEndian.AppendUint16(buf, elementFloat32)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(p.NDim()))
	for i := range p.Axes {
		ax := &p.Axes[i]
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(ax.Name)))
		buf = append(buf, ax.Name...)
		buf = binary.LittleEndian.AppendUint64(buf, uint64(ax.Len()))
		for _, l := range ax.Labels {
			buf = binary.LittleEndian.AppendUint64(buf, uint64(l))
		}
	}
	buf = append(buf, byte(tag))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(compressed)))
	buf = append(buf, compressed...)

	return buf, nil
}

// Decode reconstructs a patch from a blob. Label vectors and cell values
// round-trip bit-exactly.
func Decode(blob []byte) (*model.Patch, error) {
	r := reader{buf: blob}

	var m [4]byte
	r.bytes(m[:])
	if m != magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorruptPatch, m[:])
	}
	if v := r.u16(); v != formatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrCorruptPatch, v)
	}
	if e := r.u16(); e != elementFloat32 {
		return nil, fmt.Errorf("%w: unsupported element type %d", ErrCorruptPatch, e)
	}

	ndim := int(r.u16())
	if ndim == 0 || ndim > model.MaxDims {
		return nil, fmt.Errorf("%w: %d dimensions", ErrCorruptPatch, ndim)
	}

	axes := make([]model.Axis, 0, ndim)
	cells := 1
	for i := 0; i < ndim; i++ {
		nameLen := int(r.u16())
		name := make([]byte, nameLen)
		r.bytes(name)
		count := r.u64()
		if r.err != nil || count > uint64(len(r.buf)-r.off)/8 {
			return nil, fmt.Errorf("%w: truncated axis header", ErrCorruptPatch)
		}
		labels := make([]model.Label, count)
		for j := range labels {
			labels[j] = model.Label(r.u64())
		}
		axes = append(axes, model.NewAxis(string(name), labels))
		cells *= int(count)
	}

	tag := Compression(r.u8())
	plen := r.u64()
	if r.err != nil {
		return nil, fmt.Errorf("%w: truncated header", ErrCorruptPatch)
	}
	if plen != uint64(len(r.buf)-r.off) {
		return nil, fmt.Errorf("%w: payload length %d, %d bytes remain",
			ErrCorruptPatch, plen, len(r.buf)-r.off)
	}

	payload, err := decompress(r.buf[r.off:], tag, cells*model.ElementSize)
	if err != nil {
		return nil, err
	}

	data := make([]float32, cells)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:]))
	}

	p, err := model.NewPatch(axes, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPatch, err)
	}
	return p, nil
}

// DecodedSize returns the decompressed payload size a patch will record,
// without encoding it.
func DecodedSize(p *model.Patch) int64 {
	return int64(p.Len()) * model.ElementSize
}

// reader is a bounds-checked little-endian cursor. After any read fails,
// err is set and subsequent reads return zero.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) bytes(dst []byte) {
	if r.err != nil || r.off+len(dst) > len(r.buf) {
		r.err = ErrCorruptPatch
		return
	}
	copy(dst, r.buf[r.off:])
	r.off += len(dst)
}

func (r *reader) u8() uint8 {
	if r.err != nil || r.off+1 > len(r.buf) {
		r.err = ErrCorruptPatch
		return 0
	}
	v := r.buf[r.off]
	r.off++
	return v
}

func (r *reader) u16() uint16 {
	if r.err != nil || r.off+2 > len(r.buf) {
		r.err = ErrCorruptPatch
		return 0
	}
	v := binary.LittleEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v
}

func (r *reader) u64() uint64 {
	if r.err != nil || r.off+8 > len(r.buf) {
		r.err = ErrCorruptPatch
		return 0
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v
}
