// Package guestmem models the guest virtual address space the context
// loader populates: a paged, permission-tagged byte space plus the single
// moving boundary a process extends with brk(2), tracked the same way the
// teacher's arena allocator tracks a bump pointer against a high-water mark.
package guestmem

import (
	"fmt"
)

// PageSize is the guest page granularity; every Map call is rounded to it.
const PageSize = 0x1000

// Perm is a bitmask of page permissions, mirroring the ELF32 PF_* flags the
// loader derives them from.
type Perm uint8

const (
	PermInit Perm = 1 << iota
	PermRead
	PermWrite
	PermExec
)

// Memory is the guest address space the context loader writes into. It is
// consumed as an interface: the loader package owns no concrete allocator,
// only this contract.
type Memory interface {
	// Map reserves [addr, addr+size) with the given permissions, rounding
	// both addr and size out to page boundaries. It is idempotent within
	// overlapping regions: a page already mapped keeps its backing bytes
	// and simply gains perm OR-ed into its existing permissions.
	Map(addr, size uint32, perm Perm) error

	// Init copies data into already-mapped memory starting at addr. Unlike
	// Write it is meant for the loader's one-time segment population and
	// does not require PermWrite.
	Init(addr uint32, data []byte) error

	// Write copies data into memory starting at addr, requiring PermWrite
	// on every page touched.
	Write(addr uint32, data []byte) error

	// ReadString reads a NUL-terminated string starting at addr.
	ReadString(addr uint32) (string, error)

	// GrowHeapBreak extends the heap break by delta bytes (delta may be
	// negative) and returns the new break, mapping newly covered pages as
	// PermInit|PermRead|PermWrite.
	GrowHeapBreak(delta int32) (uint32, error)

	// SetHeapBreak sets the absolute heap break, used once after segment
	// loading establishes the initial value.
	SetHeapBreak(addr uint32)

	// HeapBreak returns the current heap break.
	HeapBreak() uint32

	// PageSize returns the page granularity, exposed so callers can align
	// addresses without hard-coding PageSize.
	PageSize() uint32
}

// page holds one page's backing bytes and permission bits.
type page struct {
	bytes [PageSize]byte
	perm  Perm
}

// Paged is a sparse, map-backed implementation of Memory suitable for both
// production loading and tests: unmapped pages simply don't exist in pages.
type Paged struct {
	pages     map[uint32]*page // keyed by page-aligned address
	heapBreak uint32
}

// New returns an empty Paged address space.
func New() *Paged {
	return &Paged{pages: make(map[uint32]*page)}
}

func pageAlignDown(addr uint32) uint32 { return addr &^ (PageSize - 1) }
func pageAlignUp(addr uint32) uint32   { return (addr + PageSize - 1) &^ (PageSize - 1) }

func (m *Paged) PageSize() uint32 { return PageSize }

func (m *Paged) Map(addr, size uint32, perm Perm) error {
	start := pageAlignDown(addr)
	end := pageAlignUp(addr + size)
	for p := start; p < end; p += PageSize {
		if pg, ok := m.pages[p]; ok {
			pg.perm |= perm
			continue
		}
		m.pages[p] = &page{perm: perm}
	}
	return nil
}

func (m *Paged) page(addr uint32) (*page, uint32, error) {
	base := pageAlignDown(addr)
	pg, ok := m.pages[base]
	if !ok {
		return nil, 0, fmt.Errorf("guestmem: address 0x%x not mapped", addr)
	}
	return pg, addr - base, nil
}

func (m *Paged) copyIn(addr uint32, data []byte, requireWrite bool) error {
	for len(data) > 0 {
		pg, off, err := m.page(addr)
		if err != nil {
			return err
		}
		if requireWrite && pg.perm&PermWrite == 0 {
			return fmt.Errorf("guestmem: address 0x%x not writable", addr)
		}
		n := copy(pg.bytes[off:], data)
		data = data[n:]
		addr += uint32(n)
	}
	return nil
}

func (m *Paged) Init(addr uint32, data []byte) error {
	return m.copyIn(addr, data, false)
}

func (m *Paged) Write(addr uint32, data []byte) error {
	return m.copyIn(addr, data, true)
}

func (m *Paged) ReadString(addr uint32) (string, error) {
	var out []byte
	for {
		pg, off, err := m.page(addr)
		if err != nil {
			return "", err
		}
		b := pg.bytes[off]
		if b == 0 {
			return string(out), nil
		}
		out = append(out, b)
		addr++
	}
}

func (m *Paged) GrowHeapBreak(delta int32) (uint32, error) {
	newBreak := uint32(int64(m.heapBreak) + int64(delta))
	if delta > 0 {
		oldTop := pageAlignUp(m.heapBreak)
		newTop := pageAlignUp(newBreak)
		if newTop > oldTop {
			if err := m.Map(oldTop, newTop-oldTop, PermInit|PermRead|PermWrite); err != nil {
				return 0, err
			}
		}
	}
	m.heapBreak = newBreak
	return m.heapBreak, nil
}

func (m *Paged) SetHeapBreak(addr uint32) { m.heapBreak = addr }

func (m *Paged) HeapBreak() uint32 { return m.heapBreak }
