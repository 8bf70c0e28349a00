package loader

import (
	"fmt"

	"github.com/xyproto/ld86/internal/elf32"
	"github.com/xyproto/ld86/internal/guestmem"
	"github.com/xyproto/ld86/internal/hostio"
)

// loadInterpreter implements step 5: reading the dynamic linker named by
// PT_INTERP, rejecting it if it is implausibly large, stashing its raw
// bytes as an Init-only blob at the fixed InterpBase address, then decoding
// it as its own ELF32 object and running the same segment-loading procedure
// on it as step 3 uses for the main binary — at the interpreter's own
// vaddrs, unrebased. The returned entry point is the interpreter's own ELF
// entry, becoming EIP instead of the main binary's entry.
func loadInterpreter(path string, mem guestmem.Memory) (entry uint32, err error) {
	data, err := hostio.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidInterpreter, path, err)
	}
	if len(data) > InterpMaxSize {
		return 0, fmt.Errorf("%w: %s: %d bytes", ErrInterpreterTooLarge, path, len(data))
	}

	if err := mem.Map(InterpBase, uint32(len(data)), guestmem.PermInit); err != nil {
		return 0, fmt.Errorf("loader: mapping interpreter blob at 0x%x: %w", InterpBase, err)
	}
	if err := mem.Init(InterpBase, data); err != nil {
		return 0, fmt.Errorf("loader: writing interpreter blob: %w", err)
	}

	f, err := elf32.DecodeBytes(path, data)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidInterpreter, path, err)
	}

	if _, _, err := loadSegments(f, mem); err != nil {
		return 0, fmt.Errorf("loader: loading interpreter segments: %w", err)
	}

	return f.Entry, nil
}
