package elf32

import (
	"fmt"
	"io"
)

// Dump writes a human-readable rendering of the file to w: the ELF header
// fields, then the section table, then the program header table, then the
// symbol table. The column layout is meant for a reviewer reading terminal
// output, not for machine parsing.
func (f *File) Dump(w io.Writer) {
	fmt.Fprintf(w, "ELF File: %s\n", f.Path)
	fmt.Fprintf(w, "  Class:      %d\n", f.Class)
	fmt.Fprintf(w, "  Type:       %d\n", f.Type)
	fmt.Fprintf(w, "  Machine:    %d\n", f.Machine)
	fmt.Fprintf(w, "  Entry:      0x%08x\n", f.Entry)
	fmt.Fprintf(w, "  PhOff:      0x%x (%d entries of %d bytes)\n", f.PhOff, f.PhNum, f.PhEntSize)
	fmt.Fprintf(w, "  ShOff:      0x%x (%d entries of %d bytes)\n", f.ShOff, f.ShNum, f.ShEntSize)

	fmt.Fprintf(w, "\nSection table:\n")
	fmt.Fprintf(w, "  [Nr] %-16s %-10s %-10s %-8s %-8s %s\n", "Name", "Type", "Addr", "Offset", "Size", "Flags")
	for i, s := range f.sections {
		fmt.Fprintf(w, "  [%2d] %-16s %-10s %08x %08x %08x %s\n",
			i, s.Name, SectionTypeName(s.Type), s.Addr, s.Offset, s.Size, sectionFlagsString(s.Flags))
	}

	fmt.Fprintf(w, "\nProgram header table:\n")
	fmt.Fprintf(w, "  %-10s %-8s %-10s %-10s %-8s %-8s %-5s %s\n",
		"Type", "Offset", "VirtAddr", "PhysAddr", "FileSz", "MemSz", "Flags", "Align")
	for _, p := range f.programHeaders {
		fmt.Fprintf(w, "  %-10s %08x %08x %08x %08x %08x %-5s %x\n",
			ProgramHeaderTypeName(p.Type), p.Offset, p.Vaddr, p.Paddr, p.Filesz, p.Memsz,
			programHeaderFlagsString(p.Flags), p.Align)
	}

	fmt.Fprintf(w, "\nSymbol table:\n")
	fmt.Fprintf(w, "  %-24s %-10s %-8s %s\n", "Name", "Value", "Size", "Section")
	for _, s := range f.symbols {
		fmt.Fprintf(w, "  %-24s %08x %08x %s\n", s.Name, s.Value, s.Size, s.Section.Name)
	}
}

func sectionFlagsString(flags uint32) string {
	var b []byte
	if flags&SHF_WRITE != 0 {
		b = append(b, 'W')
	}
	if flags&SHF_ALLOC != 0 {
		b = append(b, 'A')
	}
	if flags&SHF_EXECINSTR != 0 {
		b = append(b, 'X')
	}
	if len(b) == 0 {
		return "-"
	}
	return string(b)
}

func programHeaderFlagsString(flags uint32) string {
	r := "-"
	if flags&PF_R != 0 {
		r = "R"
	}
	w := "-"
	if flags&PF_W != 0 {
		w = "W"
	}
	x := "-"
	if flags&PF_X != 0 {
		x = "X"
	}
	return r + w + x
}
