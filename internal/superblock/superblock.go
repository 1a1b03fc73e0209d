// Package superblock locates and decodes the HDF5 superblock, the block at
// the front of every file that records address widths and the root group.
//
// Versions 0 and 1 carry the root group as a symbol table entry with a
// cached B-tree and local heap. Versions 2 and 3 point straight at the root
// object header and end in a Jenkins lookup3 checksum. New files are always
// written as version 3.
package superblock

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	binpkg "github.com/robert-malhotra/zsimview/internal/binary"
)

// Signature is the eight byte magic that starts every superblock.
var Signature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

var (
	ErrNotHDF5            = errors.New("not an HDF5 file: signature not found")
	ErrUnsupportedVersion = errors.New("unsupported superblock version")
	ErrInvalidSuperblock  = errors.New("invalid superblock structure")
)

// The signature may sit at 0 or any power of two from 512 when a user block
// precedes it.
const maxSearch = 1 << 20

// Superblock is the decoded file header.
type Superblock struct {
	Version    uint8
	OffsetSize uint8
	LengthSize uint8
	Flags      uint32

	BaseAddress      uint64
	ExtensionAddress uint64
	EOFAddress       uint64
	RootGroupAddress uint64

	// Set only for version 0 and 1 files whose root entry caches its
	// symbol table.
	RootGroupBTreeAddress     uint64
	RootGroupLocalHeapAddress uint64

	GroupLeafK      uint16
	GroupInternalK  uint16
	IndexedStorageK uint16

	// Location is the file offset the signature was found at.
	Location int64
}

// New returns a version 3 superblock with eight byte offsets and lengths.
func New() *Superblock {
	return &Superblock{Version: 3, OffsetSize: 8, LengthSize: 8}
}

// Read searches r for the signature and decodes the superblock behind it.
func Read(r io.ReaderAt) (*Superblock, error) {
	sig := make([]byte, len(Signature)+1)
	for loc := int64(0); loc <= maxSearch; loc = nextLocation(loc) {
		if _, err := r.ReadAt(sig, loc); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, fmt.Errorf("reading signature at %d: %w", loc, err)
		}
		if !bytes.Equal(sig[:len(Signature)], Signature) {
			continue
		}
		sb, err := decode(r, loc, sig[len(Signature)])
		if err != nil {
			return nil, err
		}
		sb.Location = loc
		return sb, nil
	}
	return nil, ErrNotHDF5
}

func nextLocation(loc int64) int64 {
	if loc == 0 {
		return 512
	}
	return loc * 2
}

// ReaderConfig returns the address widths for readers of the rest of the file.
func (sb *Superblock) ReaderConfig() binpkg.Config {
	return binpkg.Config{
		ByteOrder:  binary.LittleEndian,
		OffsetSize: int(sb.OffsetSize),
		LengthSize: int(sb.LengthSize),
	}
}

func decode(r io.ReaderAt, loc int64, version uint8) (*Superblock, error) {
	if version > 3 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	// The cursor needs the widths before it can decode any address.
	var widths [2]byte
	at := loc + 13
	if version >= 2 {
		at = loc + 9
	}
	if _, err := r.ReadAt(widths[:], at); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSuperblock, err)
	}
	sb := &Superblock{Version: version, OffsetSize: widths[0], LengthSize: widths[1]}
	if !validWidth(sb.OffsetSize) || !validWidth(sb.LengthSize) {
		return nil, fmt.Errorf("%w: offset size %d, length size %d",
			ErrInvalidSuperblock, sb.OffsetSize, sb.LengthSize)
	}

	cur := binpkg.NewReader(r, sb.ReaderConfig()).At(loc + int64(len(Signature)) + 1)
	var err error
	if version >= 2 {
		err = sb.decodeV2(cur, loc)
	} else {
		err = sb.decodeV0(cur)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSuperblock, err)
	}
	return sb, nil
}

func validWidth(n uint8) bool {
	switch n {
	case 2, 4, 8, 16:
		return true
	}
	return false
}

func (sb *Superblock) decodeV0(cur *binpkg.Reader) error {
	// free-space version, root entry version, reserved, shared header
	// version, the two widths and a reserved byte.
	cur.Skip(7)
	var err error
	if sb.GroupLeafK, err = cur.ReadUint16(); err != nil {
		return err
	}
	if sb.GroupInternalK, err = cur.ReadUint16(); err != nil {
		return err
	}
	if sb.Flags, err = cur.ReadUint32(); err != nil {
		return err
	}
	if sb.Version == 1 {
		if sb.IndexedStorageK, err = cur.ReadUint16(); err != nil {
			return err
		}
		cur.Skip(2)
	}

	// base, free-space info, end of file, driver info
	var addrs [4]uint64
	for i := range addrs {
		if addrs[i], err = cur.ReadOffset(); err != nil {
			return err
		}
	}
	sb.BaseAddress, sb.EOFAddress = addrs[0], addrs[2]
	sb.ExtensionAddress = binpkg.Undefined(int(sb.OffsetSize))

	// Root symbol table entry: link name offset, header address, cache
	// type, reserved word and a sixteen byte scratch pad.
	cur.Skip(int64(sb.OffsetSize))
	if sb.RootGroupAddress, err = cur.ReadOffset(); err != nil {
		return err
	}
	cache, err := cur.ReadUint32()
	if err != nil {
		return err
	}
	cur.Skip(4)
	if cache == 1 {
		if sb.RootGroupBTreeAddress, err = cur.ReadOffset(); err != nil {
			return err
		}
		if sb.RootGroupLocalHeapAddress, err = cur.ReadOffset(); err != nil {
			return err
		}
	}
	return nil
}

func (sb *Superblock) decodeV2(cur *binpkg.Reader, loc int64) error {
	cur.Skip(2)
	flags, err := cur.ReadUint8()
	if err != nil {
		return err
	}
	sb.Flags = uint32(flags)
	for _, dst := range []*uint64{&sb.BaseAddress, &sb.ExtensionAddress, &sb.EOFAddress, &sb.RootGroupAddress} {
		if *dst, err = cur.ReadOffset(); err != nil {
			return err
		}
	}
	stored, err := cur.ReadUint32()
	if err != nil {
		return err
	}
	body, err := cur.At(loc).ReadBytes(sb.Size() - 4)
	if err != nil {
		return err
	}
	if sum := binpkg.Lookup3Checksum(body); sum != stored {
		return fmt.Errorf("checksum %#08x, stored %#08x", sum, stored)
	}
	return nil
}

// Size is the encoded length of a version 2 or 3 superblock.
func (sb *Superblock) Size() int {
	return len(Signature) + 4 + 4*int(sb.offsetSize()) + 4
}

func (sb *Superblock) offsetSize() uint8 {
	if sb.OffsetSize == 0 {
		return 8
	}
	return sb.OffsetSize
}

// Write encodes sb as a version 3 superblock at w's position and returns the
// number of bytes written. A zero extension address is written as undefined.
func (sb *Superblock) Write(w *binpkg.Writer) (int64, error) {
	osize := int(sb.offsetSize())
	lsize := sb.LengthSize
	if lsize == 0 {
		lsize = 8
	}
	buf := make([]byte, 0, sb.Size())
	buf = append(buf, Signature...)
	buf = append(buf, 3, uint8(osize), lsize, uint8(sb.Flags))

	ext := sb.ExtensionAddress
	if ext == 0 {
		ext = binpkg.Undefined(osize)
	}
	addr := make([]byte, osize)
	for _, v := range []uint64{sb.BaseAddress, ext, sb.EOFAddress, sb.RootGroupAddress} {
		binpkg.PutUint(binary.LittleEndian, addr, v)
		buf = append(buf, addr...)
	}
	buf = binary.LittleEndian.AppendUint32(buf, binpkg.Lookup3Checksum(buf))

	if err := w.WriteBytes(buf); err != nil {
		return 0, fmt.Errorf("writing superblock: %w", err)
	}
	return int64(len(buf)), nil
}
