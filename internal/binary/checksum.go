package binary

import (
	"encoding/binary"
	"math/bits"
)

// Lookup3Checksum is Bob Jenkins' hashlittle with a zero seed, the
// checksum of v2 metadata blocks (OHDR, BTHD, FAHD, ...).
func Lookup3Checksum(data []byte) uint32 {
	a := 0xdeadbeef + uint32(len(data))
	b, c := a, a

	for len(data) > 12 {
		a += binary.LittleEndian.Uint32(data)
		b += binary.LittleEndian.Uint32(data[4:])
		c += binary.LittleEndian.Uint32(data[8:])
		a, b, c = mix(a, b, c)
		data = data[12:]
	}
	if len(data) == 0 {
		return c
	}

	// The last block is zero padded, which is what the byte-wise tail
	// switch of the reference implementation adds up to.
	var tail [12]byte
	copy(tail[:], data)
	a += binary.LittleEndian.Uint32(tail[:])
	b += binary.LittleEndian.Uint32(tail[4:])
	c += binary.LittleEndian.Uint32(tail[8:])
	return final(a, b, c)
}

func mix(a, b, c uint32) (uint32, uint32, uint32) {
	rounds := [6]int{4, 6, 8, 16, 19, 4}
	x := [3]uint32{a, b, c}
	for i, k := range rounds {
		// each round updates one of a, b, c from the other two
		p, q, s := i%3, (i+2)%3, (i+1)%3
		x[p] -= x[q]
		x[p] ^= bits.RotateLeft32(x[q], k)
		x[q] += x[s]
	}
	return x[0], x[1], x[2]
}

func final(a, b, c uint32) uint32 {
	c = (c ^ b) - bits.RotateLeft32(b, 14)
	a = (a ^ c) - bits.RotateLeft32(c, 11)
	b = (b ^ a) - bits.RotateLeft32(a, 25)
	c = (c ^ b) - bits.RotateLeft32(b, 16)
	a = (a ^ c) - bits.RotateLeft32(c, 4)
	b = (b ^ a) - bits.RotateLeft32(a, 14)
	c = (c ^ b) - bits.RotateLeft32(b, 24)
	return c
}

// Fletcher32 is the checksum of the Fletcher-32 filter: ones' complement
// sums over big-endian 16-bit words, an odd last byte taken as the high
// half of a word.
func Fletcher32(data []byte) uint32 {
	var s1, s2 uint32
	fold := func() {
		s1 = s1&0xffff + s1>>16
		s2 = s2&0xffff + s2>>16
	}
	for len(data) >= 2 {
		n := min(len(data)/2, 360)
		for i := 0; i < n; i++ {
			s1 += uint32(data[2*i])<<8 | uint32(data[2*i+1])
			s2 += s1
		}
		data = data[2*n:]
		fold()
	}
	if len(data) == 1 {
		s1 += uint32(data[0]) << 8
		s2 += s1
		fold()
	}
	fold()
	return s2<<16 | s1
}
