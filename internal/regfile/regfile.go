// Package regfile models the i386 register file the context loader
// initializes before the guest's first instruction executes.
package regfile

// Registers is the subset of the i386 register file the context loader
// initializes. Everything else (general-purpose registers, flags) is the
// emulator's concern, not the loader's; Go zero values are correct for the
// rest, matching the kernel's own exec behavior of zeroing the register
// file before jumping to the entry point.
type Registers interface {
	SetEip(addr uint32)
	SetEsp(addr uint32)
}

// File is a minimal concrete Registers implementation, useful for tests and
// for a standalone CLI that only needs to report the computed EIP/ESP.
type File struct {
	Eip uint32
	Esp uint32
}

func (f *File) SetEip(addr uint32) { f.Eip = addr }
func (f *File) SetEsp(addr uint32) { f.Esp = addr }
