package elf32

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xyproto/ld86/internal/elf32/elf32test"
)

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "a.out")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func simpleBuilder() *elf32test.Builder {
	b := elf32test.New()
	b.Entry = 0x8048080
	code := []byte{0x90, 0x90, 0xc3}
	b.AddSegment(elf32test.Segment{
		Type:  PT_LOAD,
		Vaddr: 0x8048000,
		Flags: PF_R | PF_X,
		Align: 0x1000,
		Data:  code,
	})
	b.AddSection(elf32test.SectionSpec{
		Name:  ".text",
		Type:  SHT_PROGBITS,
		Flags: SHF_ALLOC | SHF_EXECINSTR,
		Addr:  0x8048000,
		Data:  code,
	})
	return b
}

func TestDecodeRoundTrip(t *testing.T) {
	b := simpleBuilder()
	b.AddSymbol(elf32test.SymbolSpec{Name: "_start", Value: 0x8048000, Info: 1 << 4, Shndx: 1})
	path := writeTemp(t, b.Build())

	f, err := Decode(path)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if f.Entry != 0x8048080 {
		t.Errorf("Entry = 0x%x, want 0x8048080", f.Entry)
	}
	if len(f.ProgramHeaders()) != 1 {
		t.Fatalf("got %d program headers, want 1", len(f.ProgramHeaders()))
	}
	ph := f.ProgramHeaders()[0]
	if ph.Type != PT_LOAD || ph.Vaddr != 0x8048000 || ph.Flags != PF_R|PF_X {
		t.Errorf("program header = %+v", ph)
	}
	if string(ph.Bytes()) != "\x90\x90\xc3" {
		t.Errorf("segment bytes = %q", ph.Bytes())
	}

	var text *Section
	for _, s := range f.Sections() {
		if s.Name == ".text" {
			text = s
		}
	}
	if text == nil {
		t.Fatal(".text section not found")
	}
	if text.Addr != 0x8048000 {
		t.Errorf(".text addr = 0x%x", text.Addr)
	}

	if len(f.Symbols()) != 1 || f.Symbols()[0].Name != "_start" {
		t.Fatalf("symbols = %+v", f.Symbols())
	}
}

func TestDecodeRejects64Bit(t *testing.T) {
	data := simpleBuilder().Build()
	data[4] = ELFCLASS64
	path := writeTemp(t, data)

	_, err := Decode(path)
	if err == nil {
		t.Fatal("expected error for 64-bit ELF")
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	data := simpleBuilder().Build()
	data[1] = 'X'
	path := writeTemp(t, data)

	_, err := Decode(path)
	if err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestDecodeRejectsTruncatedFile(t *testing.T) {
	data := simpleBuilder().Build()
	path := writeTemp(t, data[:10])

	_, err := Decode(path)
	if err == nil {
		t.Fatal("expected error for truncated file")
	}
}

func TestSymbolSortOrder(t *testing.T) {
	// Three symbols where two share a value; binding must break the tie.
	symbols := []*Symbol{
		{Name: "a", Value: 0x100, Info: 1 << 4},
		{Name: "b", Value: 0x100, Info: 0},
		{Name: "c", Value: 0x200, Info: 0},
	}
	sortSymbols(symbols)

	got := []string{symbols[0].Name, symbols[1].Name, symbols[2].Name}
	want := []string{"b", "a", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sort order = %v, want %v", got, want)
		}
	}
}

func TestSymbolAt(t *testing.T) {
	f := &File{symbols: []*Symbol{
		{Name: "foo", Value: 0x1000, Size: 0x20},
		{Name: "bar", Value: 0x2000, Size: 0},
	}}

	if s, off, ok := f.SymbolAt(0x1010); !ok || s.Name != "foo" || off != 0x10 {
		t.Errorf("SymbolAt(0x1010) = %v, 0x%x, %v; want foo, 0x10, true", s, off, ok)
	}
	if s, off, ok := f.SymbolAt(0x2000); !ok || s.Name != "bar" || off != 0 {
		t.Errorf("SymbolAt(0x2000) = %v, 0x%x, %v; want bar, 0, true", s, off, ok)
	}
	if s, _, ok := f.SymbolAt(0x2fff); !ok || s.Name != "bar" {
		t.Errorf("SymbolAt(0x2fff) = %v, %v; want bar, true (size doesn't bound the lookup)", s, ok)
	}
	if _, _, ok := f.SymbolAt(0x0fff); ok {
		t.Errorf("SymbolAt(0x0fff) should be not-found (below smallest symbol value)")
	}
}
