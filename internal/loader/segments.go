package loader

import (
	"fmt"
	"os"

	"github.com/xyproto/ld86/internal/elf32"
	"github.com/xyproto/ld86/internal/guestmem"
)

// loadSegments implements step 3: mapping every PT_LOAD program header into
// guest memory at its own virtual address, with permissions from
// permFromFlags, and returns the highest address any segment reaches
// (rounded by the caller). A PT_INTERP header's path is also extracted here
// since the original loader reads it during this same pass, though the
// program-header-table pass that runs afterward takes priority.
func loadSegments(f *elf32.File, mem guestmem.Memory) (top uint32, interp string, err error) {
	for _, ph := range f.ProgramHeaders() {
		switch ph.Type {
		case elf32.PT_LOAD:
			perm := permFromFlags(ph.Flags)
			if err := mem.Map(ph.Vaddr, ph.Memsz, perm); err != nil {
				return 0, "", fmt.Errorf("loader: mapping segment at 0x%x: %w", ph.Vaddr, err)
			}
			if err := mem.Init(ph.Vaddr, ph.Bytes()); err != nil {
				return 0, "", fmt.Errorf("loader: initializing segment at 0x%x: %w", ph.Vaddr, err)
			}
			if Verbose {
				fmt.Fprintf(os.Stderr, "loader: mapped PT_LOAD vaddr=0x%x memsz=0x%x flags=0x%x\n",
					ph.Vaddr, ph.Memsz, ph.Flags)
			}
			if end := ph.Vaddr + ph.Memsz; end > top {
				top = end
			}

		case elf32.PT_INTERP:
			interp = trimNul(ph.Bytes())
		}
	}
	return top, interp, nil
}

// computeBottom returns the lowest non-zero SHF_ALLOC section address, used
// as the fallback placement for the program header table when no PT_PHDR
// segment is present. With no such section it returns the lowest PT_LOAD
// vaddr (0 when there is none).
func computeBottom(f *elf32.File) uint32 {
	bottom := ^uint32(0)
	for _, s := range f.Sections() {
		if s.Flags&elf32.SHF_ALLOC == 0 || s.Addr == 0 {
			continue
		}
		if s.Addr < bottom {
			bottom = s.Addr
		}
	}
	if bottom == ^uint32(0) {
		bottom = 0
		for _, ph := range f.ProgramHeaders() {
			if ph.Type == elf32.PT_LOAD && (bottom == 0 || ph.Vaddr < bottom) {
				bottom = ph.Vaddr
			}
		}
	}
	return bottom
}

// permFromFlags derives guest page permissions from a PT_LOAD header's
// PF_* flags. Per spec, every PT_LOAD region starts from Init|Read
// unconditionally (PF_R is not consulted) and gains Write/Exec from
// PF_W/PF_X.
func permFromFlags(flags uint32) guestmem.Perm {
	perm := guestmem.PermInit | guestmem.PermRead
	if flags&elf32.PF_W != 0 {
		perm |= guestmem.PermWrite
	}
	if flags&elf32.PF_X != 0 {
		perm |= guestmem.PermExec
	}
	return perm
}
