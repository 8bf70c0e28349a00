package loader

import (
	"fmt"

	"github.com/xyproto/ld86/internal/elf32"
	"github.com/xyproto/ld86/internal/guestmem"
)

// loadProgramHeaderTable implements step 4: placing a verbatim copy of the
// program header table into guest memory, at the address a PT_PHDR segment
// requests or, failing that, just below bottom (the lowest allocated
// section address computed in step 3). AT_PHDR points here.
//
// This pass also re-reads PT_INTERP and is authoritative over the value
// the section/segment scan may have already found: the original loader
// reads the interpreter path a second time at this point, and whichever
// value survives last is the one used for step 5.
func loadProgramHeaderTable(f *elf32.File, mem guestmem.Memory, bottom uint32) (phdrBase uint32, interp string, err error) {
	phdrSize := uint32(len(f.ProgramHeaders())) * elf32.ProgramHeaderSize

	phdrBase = 0
	for _, ph := range f.ProgramHeaders() {
		if ph.Type == elf32.PT_PHDR {
			phdrBase = ph.Vaddr
			break
		}
	}
	if phdrBase == 0 {
		phdrBase = bottom - phdrSize
	}

	if err := mem.Map(phdrBase, phdrSize, guestmem.PermInit|guestmem.PermRead); err != nil {
		return 0, "", fmt.Errorf("loader: mapping program header table at 0x%x: %w", phdrBase, err)
	}

	raw := make([]byte, 0, phdrSize)
	for _, ph := range f.ProgramHeaders() {
		raw = append(raw, ph.Raw()...)
		if ph.Type == elf32.PT_INTERP {
			interp = trimNul(ph.Bytes())
		}
	}
	if err := mem.Init(phdrBase, raw); err != nil {
		return 0, "", fmt.Errorf("loader: writing program header table: %w", err)
	}

	return phdrBase, interp, nil
}
