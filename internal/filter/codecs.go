package filter

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"

	binpkg "github.com/robert-malhotra/zsimview/internal/binary"
)

type deflate struct{ level int }

func (d deflate) decode(in []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(in))
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	return out, nil
}

func (d deflate) encode(in []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, d.level)
	if err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	if _, err := zw.Write(in); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	return buf.Bytes(), nil
}

// shuffle stores byte k of every element together. Bytes past the last
// whole element are left in place.
type shuffle struct{ width int }

func (s *shuffle) decode(in []byte) ([]byte, error) {
	return s.transpose(in, false), nil
}

func (s *shuffle) encode(in []byte) ([]byte, error) {
	return s.transpose(in, true), nil
}

func (s *shuffle) transpose(in []byte, forward bool) []byte {
	n := 0
	if s.width > 1 {
		n = len(in) / s.width
	}
	if n == 0 {
		return in
	}
	out := make([]byte, len(in))
	for e := 0; e < n; e++ {
		for k := 0; k < s.width; k++ {
			packed, planar := e*s.width+k, k*n+e
			if forward {
				out[planar] = in[packed]
			} else {
				out[packed] = in[planar]
			}
		}
	}
	copy(out[n*s.width:], in[n*s.width:])
	return out
}

var errChecksum = errors.New("fletcher32 checksum mismatch")

// fletcher32 appends the checksum to each chunk. Files from HDF5 releases
// before 1.6.3 hold it byte-swapped, so either order is accepted.
type fletcher32 struct{}

func (fletcher32) decode(in []byte) ([]byte, error) {
	if len(in) < 4 {
		return nil, fmt.Errorf("fletcher32: chunk of %d bytes has no checksum", len(in))
	}
	data := in[:len(in)-4]
	stored := binary.LittleEndian.Uint32(in[len(in)-4:])
	if sum := binpkg.Fletcher32(data); stored != sum && stored != bits.ReverseBytes32(sum) {
		return nil, fmt.Errorf("%w: stored %#08x, computed %#08x", errChecksum, stored, sum)
	}
	return data, nil
}

func (fletcher32) encode(in []byte) ([]byte, error) {
	out := make([]byte, len(in), len(in)+4)
	copy(out, in)
	return binary.LittleEndian.AppendUint32(out, binpkg.Fletcher32(in)), nil
}
