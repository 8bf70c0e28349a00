package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xyproto/ld86/internal/elf32"
	"github.com/xyproto/ld86/internal/elf32/elf32test"
	"github.com/xyproto/ld86/internal/fdtable"
	"github.com/xyproto/ld86/internal/guestmem"
	"github.com/xyproto/ld86/internal/regfile"
)

func buildStatic(t *testing.T) string {
	t.Helper()
	b := elf32test.New()
	b.Entry = 0x8048080
	code := []byte{0x90, 0x90, 0xc3}
	b.AddSegment(elf32test.Segment{
		Type:  elf32.PT_LOAD,
		Vaddr: 0x8048000,
		Flags: elf32.PF_R | elf32.PF_X,
		Align: 0x1000,
		Data:  code,
	})
	b.AddSection(elf32test.SectionSpec{
		Name:  ".text",
		Type:  elf32.SHT_PROGBITS,
		Flags: elf32.SHF_ALLOC | elf32.SHF_EXECINSTR,
		Addr:  0x8048000,
		Data:  code,
	})

	path := filepath.Join(t.TempDir(), "static")
	if err := os.WriteFile(path, b.Build(), 0755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func newLoader() *Loader {
	mem := guestmem.New()
	regs := &regfile.File{}
	fds := fdtable.New(nil)
	return New(mem, regs, fds)
}

func TestLoadBinaryStaticScenario(t *testing.T) {
	path := buildStatic(t)
	l := newLoader()

	res, err := l.LoadBinary(Config{
		Path: path,
		Argv: []string{"static"},
		Envp: []string{"HOME=/root"},
	})
	if err != nil {
		t.Fatalf("LoadBinary: %v", err)
	}

	if res.Entry != 0x8048080 {
		t.Errorf("Entry = 0x%x, want 0x8048080", res.Entry)
	}
	if res.Interp != "" {
		t.Errorf("Interp = %q, want empty for a static binary", res.Interp)
	}
	if res.Esp != StackBase-MaxEnviron {
		t.Errorf("Esp = 0x%x, want 0x%x (StackBase-MaxEnviron, fixed per spec scenario A)", res.Esp, StackBase-MaxEnviron)
	}
	regs := l.Regs.(*regfile.File)
	if regs.Eip != res.Entry {
		t.Errorf("Regs.Eip = 0x%x, want 0x%x", regs.Eip, res.Entry)
	}
	if regs.Esp != res.Esp {
		t.Errorf("Regs.Esp = 0x%x, want 0x%x", regs.Esp, res.Esp)
	}
}

func TestLoadBinaryOverflowsStackOnHugeEnviron(t *testing.T) {
	path := buildStatic(t)
	l := newLoader()

	huge := make([]string, 0, 4096)
	for i := 0; i < 4096; i++ {
		huge = append(huge, "X=AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	}

	_, err := l.LoadBinary(Config{Path: path, Argv: []string{"static"}, Envp: huge})
	if err == nil {
		t.Fatal("expected a stack-overflow error for an oversized environment")
	}
}

func TestLoadBinaryRejectsMissingFile(t *testing.T) {
	l := newLoader()
	_, err := l.LoadBinary(Config{Path: filepath.Join(t.TempDir(), "nonexistent")})
	if err == nil {
		t.Fatal("expected error for missing executable")
	}
}

func TestLoadBinaryWithInterpreter(t *testing.T) {
	// Build a minimal interpreter image.
	ib := elf32test.New()
	ib.Entry = 0x1000
	icode := []byte{0xc3}
	ib.AddSegment(elf32test.Segment{
		Type:  elf32.PT_LOAD,
		Vaddr: 0x1000,
		Flags: elf32.PF_R | elf32.PF_X,
		Align: 0x1000,
		Data:  icode,
	})
	interpPath := filepath.Join(t.TempDir(), "ld.so")
	if err := os.WriteFile(interpPath, ib.Build(), 0755); err != nil {
		t.Fatalf("WriteFile interp: %v", err)
	}

	b := elf32test.New()
	b.Entry = 0x8048080
	code := []byte{0x90, 0x90, 0xc3}
	b.AddSegment(elf32test.Segment{
		Type:  elf32.PT_LOAD,
		Vaddr: 0x8048000,
		Flags: elf32.PF_R | elf32.PF_X,
		Align: 0x1000,
		Data:  code,
	})
	interpBytes := append([]byte(interpPath), 0)
	b.AddSegment(elf32test.Segment{
		Type:  elf32.PT_INTERP,
		Vaddr: 0x8048100,
		Flags: elf32.PF_R,
		Align: 1,
		Data:  interpBytes,
	})

	path := filepath.Join(t.TempDir(), "dynamic")
	if err := os.WriteFile(path, b.Build(), 0755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	l := newLoader()
	res, err := l.LoadBinary(Config{Path: path, Argv: []string{"dynamic"}})
	if err != nil {
		t.Fatalf("LoadBinary: %v", err)
	}
	if res.Interp != interpPath {
		t.Errorf("Interp = %q, want %q", res.Interp, interpPath)
	}
	if res.Entry != 0x1000 {
		t.Errorf("Entry = 0x%x, want 0x%x (interpreter's own unrebased entry)", res.Entry, 0x1000)
	}
}

func TestLoadBinaryStdoutRedirection(t *testing.T) {
	path := buildStatic(t)
	outPath := filepath.Join(t.TempDir(), "out.txt")

	l := newLoader()
	_, err := l.LoadBinary(Config{
		Path:  path,
		Argv:  []string{"static"},
		Stdio: StdioRedirect{Stdout: outPath},
	})
	if err != nil {
		t.Fatalf("LoadBinary: %v", err)
	}

	if _, err := os.Stat(outPath); err != nil {
		t.Errorf("expected redirected stdout file to exist: %v", err)
	}
	if fds, ok := l.FDs.(*fdtable.Default); ok {
		if fds.HostFD(1) == 1 {
			t.Error("guest fd 1 still points at the original host stdout")
		}
		if fds.HostFD(1) != fds.HostFD(2) {
			t.Errorf("guest fds 1 and 2 must share the same host descriptor, got %d and %d",
				fds.HostFD(1), fds.HostFD(2))
		}
	}
}
