// Package loader builds the initial guest virtual address space and
// register state for a 32-bit x86 ELF binary, following the System V i386
// ABI's process-startup contract: segment mapping, interpreter loading, and
// the argc/argv/envp/auxv stack image a freshly exec'd process expects.
//
// Guest memory, the register file, and the file-descriptor table are
// consumed as interfaces (internal/guestmem, internal/regfile,
// internal/fdtable); this package owns none of them.
package loader

import (
	"fmt"
	"os"
	"strings"

	"github.com/xyproto/ld86/internal/elf32"
	"github.com/xyproto/ld86/internal/fdtable"
	"github.com/xyproto/ld86/internal/guestmem"
	"github.com/xyproto/ld86/internal/hostio"
	"github.com/xyproto/ld86/internal/regfile"
)

// Verbose gates loader trace output, mirroring the original simulator's
// loader_debug trace stream. It is independent of elf32.Verbose so a
// caller can trace one layer without the other.
var Verbose = false

// Memory layout constants from the i386 Linux ABI this loader targets.
const (
	StackBase     = 0xc0000000
	StackSize     = 0x800000
	MaxEnviron    = 0x10000
	InterpBase    = 0xc0001000
	InterpMaxSize = 0x800000
)

// StdioRedirect names host files to redirect the guest's standard streams
// to. An empty string leaves the corresponding stream inherited from the
// host process, except that an empty Stderr with a non-empty Stdout makes
// guest fd 2 share the stdout file.
type StdioRedirect struct {
	Stdin  string
	Stdout string
	Stderr string
}

// Config describes one guest process to bootstrap.
type Config struct {
	Path   string // path to the ELF executable
	Argv   []string
	Envp   []string
	Stdio  StdioRedirect
}

// Result is what LoadBinary computed: the values the caller needs to hand
// off to an emulator core (or simply report, for this module's own CLI).
type Result struct {
	Entry     uint32 // EIP: interpreter entry if present, else the binary's own entry
	Esp       uint32
	Bottom    uint32
	Top       uint32
	HeapBreak uint32
	Interp    string // resolved interpreter path, empty if none
}

// Loader bootstraps guest processes into the supplied collaborators.
type Loader struct {
	Mem  guestmem.Memory
	Regs regfile.Registers
	FDs  fdtable.Table
}

// New returns a Loader writing into the given collaborators.
func New(mem guestmem.Memory, regs regfile.Registers, fds fdtable.Table) *Loader {
	return &Loader{Mem: mem, Regs: regs, FDs: fds}
}

// LoadBinary runs the full bootstrap sequence: stdio redirection, ELF
// decoding, segment mapping, program-header-table mapping, optional
// interpreter loading, stack construction, and register initialization.
func (l *Loader) LoadBinary(cfg Config) (*Result, error) {
	if err := l.redirectStdio(cfg.Stdio); err != nil {
		return nil, err
	}

	f, err := elf32.Decode(cfg.Path)
	if err != nil {
		return nil, err
	}

	top, interp, err := loadSegments(f, l.Mem)
	if err != nil {
		return nil, err
	}

	bottom := computeBottom(f)
	l.Mem.SetHeapBreak(roundUp(top, l.Mem.PageSize()))

	phdrBase, phdrInterp, err := loadProgramHeaderTable(f, l.Mem, bottom)
	if err != nil {
		return nil, err
	}
	// The program-header scan is authoritative over the segment scan per
	// the documented ambiguity in the original loader: it runs last, so a
	// non-empty value here always wins.
	if phdrInterp != "" {
		interp = phdrInterp
	}

	var interpEntry uint32
	var interpBase uint32
	if interp != "" {
		interpEntry, err = loadInterpreter(interp, l.Mem)
		if err != nil {
			return nil, err
		}
		interpBase = InterpBase
	}

	ids := hostio.CurrentIDs()
	random, err := hostio.RandomBytes(16)
	if err != nil {
		return nil, err
	}

	esp, err := buildStack(l.Mem, stackParams{
		Argv:       cfg.Argv,
		Envp:       cfg.Envp,
		Random:     random,
		PhdrAddr:   phdrBase,
		PhNum:      uint32(len(f.ProgramHeaders())),
		PageSize:   l.Mem.PageSize(),
		HasInterp:  interp != "",
		InterpBase: interpBase,
		Entry:      f.Entry,
		IDs:        ids,
	})
	if err != nil {
		return nil, err
	}

	entry := f.Entry
	if interp != "" {
		entry = interpEntry
	}

	l.Regs.SetEsp(esp)
	l.Regs.SetEip(entry)

	if Verbose {
		fmt.Fprintf(os.Stderr, "loader: entry=0x%x esp=0x%x bottom=0x%x top=0x%x interp=%q\n",
			entry, esp, bottom, top, interp)
	}

	return &Result{
		Entry:     entry,
		Esp:       esp,
		Bottom:    bottom,
		Top:       top,
		HeapBreak: l.Mem.HeapBreak(),
		Interp:    interp,
	}, nil
}

func roundUp(v, align uint32) uint32 {
	return (v + align - 1) &^ (align - 1)
}

func trimNul(b []byte) string {
	return strings.TrimRight(string(b), "\x00")
}
