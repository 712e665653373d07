package codec

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LDSLab/stoicheia/model"
)

func samplePatch(t *testing.T) *model.Patch {
	t.Helper()
	p, err := model.BuildPatch().
		Axis("itm", 10, 20).
		Axis("lct", 1, 2).
		Axis("day", 100).
		Content([]float32{1, 2, 3, 4})
	require.NoError(t, err)
	return p
}

func TestRoundTrip_AllAlgorithms(t *testing.T) {
	for _, algo := range []Compression{CompressionRaw, CompressionLZ4, CompressionBrotli} {
		t.Run(algo.String(), func(t *testing.T) {
			p := samplePatch(t)

			blob, err := Encode(p, algo)
			require.NoError(t, err)

			got, err := Decode(blob)
			require.NoError(t, err)
			require.Equal(t, p.Axes, got.Axes)
			require.Equal(t, p.Data, got.Data)

			// Deterministic: re-encoding the decoded patch reproduces the
			// blob bit for bit.
			blob2, err := Encode(got, algo)
			require.NoError(t, err)
			require.Equal(t, blob, blob2)
		})
	}
}

func TestRoundTrip_PreservesBitPatterns(t *testing.T) {
	data := []float32{
		0,
		float32(math.Copysign(0, -1)),
		float32(math.NaN()),
		float32(math.Inf(1)),
		float32(math.Inf(-1)),
		math.MaxFloat32,
	}
	p, err := model.BuildPatch().Axis("x", 1, 2, 3, 4, 5, 6).Content(data)
	require.NoError(t, err)

	blob, err := Encode(p, CompressionLZ4)
	require.NoError(t, err)
	got, err := Decode(blob)
	require.NoError(t, err)

	for i := range data {
		require.Equal(t, math.Float32bits(data[i]), math.Float32bits(got.Data[i]),
			"bit pattern of cell %d", i)
	}
}

func TestRoundTrip_NegativeLabels(t *testing.T) {
	p, err := model.BuildPatch().Axis("x", -5, 0, 5).Content([]float32{1, 2, 3})
	require.NoError(t, err)

	blob, err := Encode(p, CompressionRaw)
	require.NoError(t, err)
	got, err := Decode(blob)
	require.NoError(t, err)
	require.Equal(t, []model.Label{-5, 0, 5}, got.Axes[0].Labels)
}

func TestDecode_BadMagic(t *testing.T) {
	blob, err := Encode(samplePatch(t), CompressionRaw)
	require.NoError(t, err)
	blob[0] = 'X'

	_, err = Decode(blob)
	require.ErrorIs(t, err, ErrCorruptPatch)
}

func TestDecode_Truncated(t *testing.T) {
	blob, err := Encode(samplePatch(t), CompressionLZ4)
	require.NoError(t, err)

	for _, cut := range []int{0, 3, 8, len(blob) / 2, len(blob) - 1} {
		_, err := Decode(blob[:cut])
		require.ErrorIs(t, err, ErrCorruptPatch, "cut at %d", cut)
	}
}

func TestDecode_PayloadSizeMismatch(t *testing.T) {
	p := samplePatch(t)
	blob, err := Encode(p, CompressionRaw)
	require.NoError(t, err)

	// Shrink the last axis's label count so the header expects fewer
	// cells than the payload carries.
	off := len(blob) - len(p.Data)*model.ElementSize - 1 - 8 // tag + payload length
	off -= 8                                                 // day label
	off -= 8                                                 // day label count
	binary.LittleEndian.PutUint64(blob[off:], 0)

	_, err = Decode(blob)
	require.ErrorIs(t, err, ErrCorruptPatch)
}

func TestDecode_UnknownCompressionTag(t *testing.T) {
	p := samplePatch(t)
	blob, err := Encode(p, CompressionRaw)
	require.NoError(t, err)

	off := len(blob) - len(p.Data)*model.ElementSize - 8 - 1
	blob[off] = 0x7f

	_, err = Decode(blob)
	require.ErrorIs(t, err, ErrCorruptPatch)
}

func TestParseCompression(t *testing.T) {
	for name, want := range map[string]Compression{
		"raw":    CompressionRaw,
		"lz4":    CompressionLZ4,
		"brotli": CompressionBrotli,
	} {
		got, err := ParseCompression(name)
		require.NoError(t, err)
		require.Equal(t, want, got)
		require.Equal(t, name, got.String())
	}

	_, err := ParseCompression("zstd")
	require.Error(t, err)
}

func TestDecodedSize(t *testing.T) {
	require.Equal(t, int64(16), DecodedSize(samplePatch(t)))
}
