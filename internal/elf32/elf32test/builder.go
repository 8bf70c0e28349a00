// Package elf32test builds synthetic ELF32 little-endian images in memory,
// for exercising internal/elf32 and internal/loader without needing real
// binaries checked into the tree. It follows the teacher's own low-level,
// manual-byte-writing style for ELF generation, aimed the opposite
// direction: producing the bytes a decoder must round-trip exactly.
package elf32test

import (
	"bytes"
	"encoding/binary"
)

const (
	headerSize  = 52
	phdrSize    = 32
	shdrSize    = 40
	symSize     = 16
)

// Segment describes one PT_LOAD (or other) program header to emit.
type Segment struct {
	Type   uint32
	Vaddr  uint32
	Flags  uint32
	Align  uint32
	Data   []byte // file-backed bytes; len(Data) becomes p_filesz
	MemSz  uint32 // if zero, defaults to len(Data)
}

// SectionSpec describes one section header to emit.
type SectionSpec struct {
	Name   string
	Type   uint32
	Flags  uint32
	Addr   uint32
	Link   uint32
	Info   uint32
	Entsz  uint32
	Data   []byte // with NoBits set, only len(Data) is used, as the size; no bytes are written
	NoBits bool
}

// SymbolSpec describes one symbol-table entry.
type SymbolSpec struct {
	Name  string
	Value uint32
	Size  uint32
	Info  uint8
	Other uint8
	Shndx uint16
}

// Builder assembles an ELF32 image section by section, resolving offsets
// and string-table indices as it goes.
type Builder struct {
	Entry    uint32
	Machine  uint16
	Type     uint16
	Segments []Segment

	sections []SectionSpec
	symbols  []SymbolSpec
}

// New returns an empty builder for an ET_EXEC, little-endian ELF32 image.
func New() *Builder {
	return &Builder{Type: 2 /* ET_EXEC */, Machine: 3 /* EM_386 */}
}

// AddSegment appends a program header.
func (b *Builder) AddSegment(s Segment) {
	if s.MemSz == 0 {
		s.MemSz = uint32(len(s.Data))
	}
	b.Segments = append(b.Segments, s)
}

// AddSection appends a section header.
func (b *Builder) AddSection(s SectionSpec) {
	b.sections = append(b.sections, s)
}

// AddSymbol appends a symbol to the image's single synthesized .symtab.
func (b *Builder) AddSymbol(s SymbolSpec) {
	b.symbols = append(b.symbols, s)
}

// Build lays out and serializes the full ELF32 image: header, program
// headers, section data (including a synthesized symbol table and two
// string tables — one for sections, one for symbols), and section headers.
//
// The layout is deliberately simple: everything is placed back-to-back with
// no alignment padding (Segment.Align is only recorded in the program
// header), since decoder tests care about correctness, not realism of
// spacing.
func (b *Builder) Build() []byte {
	// Serialize the symbol table and its string table first: both are
	// self-contained and must exist before the section-name string table
	// is finalized, since ".symtab"/".strtab"/".shstrtab" are themselves
	// sections needing names interned into it.
	var strtab bytes.Buffer
	strtab.WriteByte(0)
	symNameOff := make(map[string]uint32)
	internStr := func(name string) uint32 {
		if name == "" {
			return 0
		}
		if off, ok := symNameOff[name]; ok {
			return off
		}
		off := uint32(strtab.Len())
		strtab.WriteString(name)
		strtab.WriteByte(0)
		symNameOff[name] = off
		return off
	}

	var symtab bytes.Buffer
	symtab.Write(make([]byte, symSize)) // STN_UNDEF
	for _, s := range b.symbols {
		var rec [symSize]byte
		binary.LittleEndian.PutUint32(rec[0:4], internStr(s.Name))
		binary.LittleEndian.PutUint32(rec[4:8], s.Value)
		binary.LittleEndian.PutUint32(rec[8:12], s.Size)
		rec[12] = s.Info
		rec[13] = s.Other
		binary.LittleEndian.PutUint16(rec[14:16], s.Shndx)
		symtab.Write(rec[:])
	}

	type placed struct {
		spec   SectionSpec
		data   []byte
		offset uint32
		size   uint32
	}

	// Full section list, in final index order: NULL, caller sections,
	// .symtab, .strtab, .shstrtab. The symtab's Link points at .strtab's
	// index, computed now that the full order is fixed.
	all := []placed{{spec: SectionSpec{Name: ""}}}
	for _, sec := range b.sections {
		all = append(all, placed{spec: sec, data: sec.Data})
	}
	strtabIdx := uint32(len(all) + 1)
	symtabSpec := SectionSpec{Name: ".symtab", Type: 2, Entsz: symSize, Link: strtabIdx}
	all = append(all, placed{spec: symtabSpec, data: symtab.Bytes()})
	strtabSpec := SectionSpec{Name: ".strtab", Type: 3}
	all = append(all, placed{spec: strtabSpec, data: strtab.Bytes()})

	// Intern every section name into .shstrtab now that the section list
	// (minus .shstrtab itself) is final.
	var shstrtab bytes.Buffer
	shstrtab.WriteByte(0)
	shstrtabNameOff := make(map[string]uint32)
	internShstr := func(name string) uint32 {
		if off, ok := shstrtabNameOff[name]; ok {
			return off
		}
		off := uint32(shstrtab.Len())
		shstrtab.WriteString(name)
		shstrtab.WriteByte(0)
		shstrtabNameOff[name] = off
		return off
	}
	for _, p := range all {
		internShstr(p.spec.Name)
	}
	internShstr(".shstrtab")
	shstrtabSpec := SectionSpec{Name: ".shstrtab", Type: 3}
	all = append(all, placed{spec: shstrtabSpec, data: shstrtab.Bytes()})
	shStrNdx := uint16(len(all) - 1)

	// Now lay out file offsets: header, program headers, section data
	// (skipping NOBITS), segment data, section header table.
	phOff := uint32(headerSize)
	dataOff := phOff + uint32(len(b.Segments))*phdrSize

	var body bytes.Buffer
	for i := range all {
		p := &all[i]
		if p.spec.NoBits {
			p.offset = dataOff + uint32(body.Len())
			p.size = uint32(len(p.data))
			continue
		}
		p.offset = dataOff + uint32(body.Len())
		p.size = uint32(len(p.data))
		body.Write(p.data)
	}

	segOffsets := make([]uint32, len(b.Segments))
	for i, seg := range b.Segments {
		segOffsets[i] = dataOff + uint32(body.Len())
		body.Write(seg.Data)
	}

	shOff := dataOff + uint32(body.Len())

	var out bytes.Buffer

	// ELF header.
	var hdr [headerSize]byte
	copy(hdr[0:4], []byte{0x7f, 'E', 'L', 'F'})
	hdr[4] = 1 // ELFCLASS32
	hdr[5] = 1 // ELFDATA2LSB
	hdr[6] = 1 // EV_CURRENT
	binary.LittleEndian.PutUint16(hdr[16:18], b.Type)
	binary.LittleEndian.PutUint16(hdr[18:20], b.Machine)
	binary.LittleEndian.PutUint32(hdr[20:24], 1)
	binary.LittleEndian.PutUint32(hdr[24:28], b.Entry)
	binary.LittleEndian.PutUint32(hdr[28:32], phOff)
	binary.LittleEndian.PutUint32(hdr[32:36], shOff)
	binary.LittleEndian.PutUint16(hdr[42:44], phdrSize)
	binary.LittleEndian.PutUint16(hdr[44:46], uint16(len(b.Segments)))
	binary.LittleEndian.PutUint16(hdr[46:48], shdrSize)
	binary.LittleEndian.PutUint16(hdr[48:50], uint16(len(all)))
	binary.LittleEndian.PutUint16(hdr[50:52], shStrNdx)
	out.Write(hdr[:])

	// Program headers.
	for i, seg := range b.Segments {
		var rec [phdrSize]byte
		binary.LittleEndian.PutUint32(rec[0:4], seg.Type)
		binary.LittleEndian.PutUint32(rec[4:8], segOffsets[i])
		binary.LittleEndian.PutUint32(rec[8:12], seg.Vaddr)
		binary.LittleEndian.PutUint32(rec[12:16], seg.Vaddr)
		binary.LittleEndian.PutUint32(rec[16:20], uint32(len(seg.Data)))
		binary.LittleEndian.PutUint32(rec[20:24], seg.MemSz)
		binary.LittleEndian.PutUint32(rec[24:28], seg.Flags)
		binary.LittleEndian.PutUint32(rec[28:32], seg.Align)
		out.Write(rec[:])
	}

	// Section contents (everything between the program header table and
	// the section header table, exactly as computed above).
	out.Write(body.Bytes())

	// Section headers.
	for _, p := range all {
		var rec [shdrSize]byte
		binary.LittleEndian.PutUint32(rec[0:4], internShstr(p.spec.Name))
		binary.LittleEndian.PutUint32(rec[4:8], p.spec.Type)
		binary.LittleEndian.PutUint32(rec[8:12], p.spec.Flags)
		binary.LittleEndian.PutUint32(rec[12:16], p.spec.Addr)
		binary.LittleEndian.PutUint32(rec[16:20], p.offset)
		binary.LittleEndian.PutUint32(rec[20:24], p.size)
		binary.LittleEndian.PutUint32(rec[24:28], p.spec.Link)
		binary.LittleEndian.PutUint32(rec[28:32], p.spec.Info)
		binary.LittleEndian.PutUint32(rec[32:36], 1)
		binary.LittleEndian.PutUint32(rec[36:40], p.spec.Entsz)
		out.Write(rec[:])
	}

	return out.Bytes()
}
