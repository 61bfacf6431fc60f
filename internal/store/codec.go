package store

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/MeKo-Tech/cubeplanet/internal/colorize"
	"github.com/MeKo-Tech/cubeplanet/internal/mesh"
)

var meshMagic = [4]byte{'C', 'P', 'M', '1'}

// ErrBadBlob is returned for mesh blobs that cannot be decoded.
var ErrBadBlob = errors.New("invalid mesh blob")

const (
	flagColors uint32 = 1 << iota
	flagNormals
)

type blobHeader struct {
	Magic      [4]byte
	Resolution uint32
	Vertices   uint32
	Indices    uint32
	Flags      uint32
}

// EncodeMesh serializes a mesh as little-endian binary and gzips it.
func EncodeMesh(m *mesh.Mesh) ([]byte, error) {
	h := blobHeader{
		Magic:      meshMagic,
		Resolution: uint32(m.Resolution),
		Vertices:   uint32(len(m.Vertices)),
		Indices:    uint32(len(m.Triangles)),
	}
	if len(m.Colors) == len(m.Vertices) && len(m.Colors) > 0 {
		h.Flags |= flagColors
	}
	if len(m.Normals) == len(m.Vertices) && len(m.Normals) > 0 {
		h.Flags |= flagNormals
	}

	var raw bytes.Buffer
	write := func(v any) {
		// bytes.Buffer writes never fail.
		_ = binary.Write(&raw, binary.LittleEndian, v)
	}
	write(h)
	write(flattenVec3(m.Vertices))
	write(m.Triangles)
	if h.Flags&flagColors != 0 {
		flat := make([]float64, 0, 4*len(m.Colors))
		for _, c := range m.Colors {
			flat = append(flat, c.R, c.G, c.B, c.A)
		}
		write(flat)
	}
	if h.Flags&flagNormals != 0 {
		write(flattenVec3(m.Normals))
	}
	return gzipCompress(raw.Bytes())
}

// DecodeMesh reverses EncodeMesh.
func DecodeMesh(blob []byte) (*mesh.Mesh, error) {
	raw, err := gzipDecompress(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress mesh: %w", err)
	}
	r := bytes.NewReader(raw)

	var h blobHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadBlob, err)
	}
	if h.Magic != meshMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrBadBlob, h.Magic[:])
	}
	if uint64(h.Vertices)*8 > uint64(len(raw)) || uint64(h.Indices)*4 > uint64(len(raw)) {
		return nil, fmt.Errorf("%w: counts exceed blob size", ErrBadBlob)
	}

	m := &mesh.Mesh{Resolution: int(h.Resolution)}
	read := func(v any) error {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("%w: %v", ErrBadBlob, err)
		}
		return nil
	}

	positions := make([]float64, 3*h.Vertices)
	if err := read(positions); err != nil {
		return nil, err
	}
	m.Vertices = unflattenVec3(positions)

	m.Triangles = make([]uint32, h.Indices)
	if err := read(m.Triangles); err != nil {
		return nil, err
	}
	for _, idx := range m.Triangles {
		if idx >= h.Vertices {
			return nil, fmt.Errorf("%w: index %d out of range", ErrBadBlob, idx)
		}
	}

	if h.Flags&flagColors != 0 {
		flat := make([]float64, 4*h.Vertices)
		if err := read(flat); err != nil {
			return nil, err
		}
		m.Colors = make([]colorize.Color, h.Vertices)
		for i := range m.Colors {
			m.Colors[i] = colorize.Color{R: flat[4*i], G: flat[4*i+1], B: flat[4*i+2], A: flat[4*i+3]}
		}
	}
	if h.Flags&flagNormals != 0 {
		flat := make([]float64, 3*h.Vertices)
		if err := read(flat); err != nil {
			return nil, err
		}
		m.Normals = unflattenVec3(flat)
	}
	m.Bounds = mesh.BoundsOf(m.Vertices)
	return m, nil
}

func flattenVec3(vs []mgl64.Vec3) []float64 {
	out := make([]float64, 0, 3*len(vs))
	for _, v := range vs {
		out = append(out, v[0], v[1], v[2])
	}
	return out
}

func unflattenVec3(flat []float64) []mgl64.Vec3 {
	out := make([]mgl64.Vec3, len(flat)/3)
	for i := range out {
		out[i] = mgl64.Vec3{flat[3*i], flat[3*i+1], flat[3*i+2]}
	}
	return out
}

// gzipCompress compresses data with gzip.
func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)

	if _, err := gw.Write(data); err != nil {
		gw.Close()
		return nil, err
	}

	if err := gw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// gzipDecompress decompresses gzip data.
func gzipDecompress(data []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gr.Close()

	return io.ReadAll(gr)
}
