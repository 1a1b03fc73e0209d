// Package alloc hands out file space to the HDF5 writer. Space is only
// ever appended at the end of the file; every span is recorded with a
// label so tests can check that no two structures overlap.
package alloc

import (
	"fmt"
	"slices"
	"sync"
)

// Span is one allocated region.
type Span struct {
	Addr, Size uint64
	Tag        string
}

func (s Span) end() uint64 { return s.Addr + s.Size }

// Allocator appends spans after a fixed base address.
type Allocator struct {
	mu    sync.Mutex
	base  uint64
	eof   uint64
	spans []Span
}

// New starts allocating at base, the first byte after the superblock.
func New(base uint64) *Allocator {
	return &Allocator{base: base, eof: base}
}

// Alloc reserves size bytes and returns their address. A zero size
// returns the current end of file without recording anything.
func (a *Allocator) Alloc(size uint64, tag string) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	addr := a.eof
	if size == 0 {
		return addr
	}
	a.eof += size
	a.spans = append(a.spans, Span{Addr: addr, Size: size, Tag: tag})
	return addr
}

// EOF is the address of the next allocation.
func (a *Allocator) EOF() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.eof
}

// Spans returns the recorded spans in address order.
func (a *Allocator) Spans() []Span {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := slices.Clone(a.spans)
	slices.SortFunc(out, func(x, y Span) int {
		switch {
		case x.Addr < y.Addr:
			return -1
		case x.Addr > y.Addr:
			return 1
		}
		return 0
	})
	return out
}

// Validate checks that every span lies in [base, eof) and that no two
// spans overlap.
func (a *Allocator) Validate() error {
	spans := a.Spans()
	base, eof := a.base, a.EOF()
	for i, s := range spans {
		if s.Addr < base || s.end() > eof {
			return fmt.Errorf("%s at 0x%x+%d outside [0x%x, 0x%x)", s.Tag, s.Addr, s.Size, base, eof)
		}
		if i > 0 && spans[i-1].end() > s.Addr {
			p := spans[i-1]
			return fmt.Errorf("%s at 0x%x+%d overlaps %s at 0x%x", p.Tag, p.Addr, p.Size, s.Tag, s.Addr)
		}
	}
	return nil
}
