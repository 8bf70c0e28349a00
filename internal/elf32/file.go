package elf32

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

// File is a decoded ELF32 little-endian object. It owns the byte buffer read
// from disk; every Section, ProgramHeader, and Symbol borrows a slice of
// that buffer and must not outlive the File.
type File struct {
	Path string
	data []byte

	Class          byte
	DataEncoding   byte
	Version        byte
	Type           uint16
	Machine        uint16
	Entry          uint32
	PhOff          uint32
	ShOff          uint32
	PhEntSize      uint16
	PhNum          uint16
	ShEntSize      uint16
	ShNum          uint16
	ShStrNdx       uint16

	sections        []*Section
	programHeaders  []*ProgramHeader
	symbols         []*Symbol
	stringTableSect *Section
}

// Section is a decoded ELF32 section header plus a borrowed view of its
// on-disk bytes (empty for SHT_NOBITS sections).
type Section struct {
	file *File

	Name   string
	Type   uint32
	Flags  uint32
	Addr   uint32
	Offset uint32
	Size   uint32
	Link   uint32
	Info   uint32
	Entsz  uint32

	nameOff uint32
	bytes   []byte
}

// Bytes returns the section's borrowed on-disk bytes. Always empty for
// SHT_NOBITS sections.
func (s *Section) Bytes() []byte { return s.bytes }

// ProgramHeader is a decoded ELF32 program header plus a borrowed view of
// the segment's file bytes, [Offset, Offset+Filesz).
type ProgramHeader struct {
	file *File

	Type   uint32
	Offset uint32
	Vaddr  uint32
	Paddr  uint32
	Filesz uint32
	Memsz  uint32
	Flags  uint32
	Align  uint32

	bytes     []byte
	rawOffset int
}

// Bytes returns the segment's borrowed file-backed bytes, of length Filesz.
func (p *ProgramHeader) Bytes() []byte { return p.bytes }

// Raw returns the 32 raw bytes of the on-disk program header record, used
// when copying the program header table verbatim into guest memory.
func (p *ProgramHeader) Raw() []byte {
	return p.file.data[p.rawOffset : p.rawOffset+ProgramHeaderSize]
}

// Symbol is a decoded ELF32 symbol-table entry with its name resolved
// through the owning symbol-table section's linked string table.
type Symbol struct {
	Section *Section // the owning SYMTAB/DYNSYM section
	Name    string
	Value   uint32
	Size    uint32
	Info    uint8
	Other   uint8
	Shndx   uint16
}

// Bind returns the ST_BIND field (bits 4-7 of Info).
func (s *Symbol) Bind() uint8 { return s.Info >> 4 }

// Type returns the ST_TYPE field (bits 0-3 of Info).
func (s *Symbol) Type() uint8 { return s.Info & 0xf }

// Decode reads path, decodes it as an ELF32 little-endian object, and
// returns a fully validated, immutable File. No partially constructed File
// is ever returned: any validation failure aborts before Decode returns.
func Decode(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return DecodeBytes(path, data)
}

// DecodeBytes decodes an already-read buffer as an ELF32 object, attributing
// errors to path (used for testing and for interpreter loading, where the
// bytes are already in memory).
func DecodeBytes(path string, data []byte) (*File, error) {
	f := &File{Path: path, data: data}

	if err := f.readHeader(); err != nil {
		return nil, err
	}
	if err := f.readSections(); err != nil {
		return nil, err
	}
	if err := f.readProgramHeaders(); err != nil {
		return nil, err
	}
	if err := f.readSymbols(); err != nil {
		return nil, err
	}

	if Verbose {
		fmt.Fprintf(os.Stderr, "elf32: decoded %s: entry=0x%x sections=%d phdrs=%d symbols=%d\n",
			path, f.Entry, len(f.sections), len(f.programHeaders), len(f.symbols))
	}

	return f, nil
}

func (f *File) readHeader() error {
	if len(f.data) < HeaderSize {
		return decodeError(f.Path, ErrInvalidELF, "file shorter than ELF header")
	}
	if !bytes.Equal(f.data[0:4], elfMagic[:]) {
		return decodeError(f.Path, ErrInvalidELF, "missing ELF magic")
	}

	f.Class = f.data[4]
	f.DataEncoding = f.data[5]
	f.Version = f.data[6]

	if f.Class == ELFCLASS64 {
		return decodeError(f.Path, ErrUnsupported64Bit, "")
	}

	f.Type = le16(f.data[16:18])
	f.Machine = le16(f.data[18:20])
	f.Entry = le32(f.data[24:28])
	f.PhOff = le32(f.data[28:32])
	f.ShOff = le32(f.data[32:36])
	f.PhEntSize = le16(f.data[42:44])
	f.PhNum = le16(f.data[44:46])
	f.ShEntSize = le16(f.data[46:48])
	f.ShNum = le16(f.data[48:50])
	f.ShStrNdx = le16(f.data[50:52])

	return nil
}

func (f *File) readSections() error {
	if f.ShNum == 0 || f.ShEntSize != SectionHeaderSize {
		return decodeError(f.Path, ErrMalformedSectionTable,
			fmt.Sprintf("shnum=%d shentsize=%d", f.ShNum, f.ShEntSize))
	}

	f.sections = make([]*Section, f.ShNum)
	for i := 0; i < int(f.ShNum); i++ {
		pos := int(f.ShOff) + i*SectionHeaderSize
		if pos < 0 || pos+SectionHeaderSize > len(f.data) {
			return decodeError(f.Path, ErrMalformedSectionTable,
				fmt.Sprintf("section header %d out of range", i))
		}
		hdr := f.data[pos : pos+SectionHeaderSize]

		s := &Section{
			file:    f,
			nameOff: le32(hdr[0:4]),
			Type:    le32(hdr[4:8]),
			Flags:   le32(hdr[8:12]),
			Addr:    le32(hdr[12:16]),
			Offset:  le32(hdr[16:20]),
			Size:    le32(hdr[20:24]),
			Link:    le32(hdr[24:28]),
			Info:    le32(hdr[28:32]),
			Entsz:   le32(hdr[36:40]),
		}

		if s.Type != SHT_NOBITS {
			end := uint64(s.Offset) + uint64(s.Size)
			if end > uint64(len(f.data)) {
				return decodeError(f.Path, ErrMalformedSectionTable,
					fmt.Sprintf("section %d out of range", i))
			}
			s.bytes = f.data[s.Offset : s.Offset+s.Size]
		}

		f.sections[i] = s
	}

	if int(f.ShStrNdx) >= len(f.sections) {
		return decodeError(f.Path, ErrInvalidStringTable, "index out of range")
	}
	strtab := f.sections[f.ShStrNdx]
	if strtab.Type != SHT_STRTAB {
		return decodeError(f.Path, ErrInvalidStringTable, "designated section is not STRTAB")
	}
	f.stringTableSect = strtab

	for _, s := range f.sections {
		name, err := lookupString(strtab, s.nameOff)
		if err != nil {
			return decodeError(f.Path, ErrInvalidStringTable, err.Error())
		}
		s.Name = name
	}

	return nil
}

func (f *File) readProgramHeaders() error {
	if f.PhEntSize != ProgramHeaderSize {
		return decodeError(f.Path, ErrMalformedProgramHeaderTable,
			fmt.Sprintf("phentsize=%d", f.PhEntSize))
	}

	f.programHeaders = make([]*ProgramHeader, f.PhNum)
	for i := 0; i < int(f.PhNum); i++ {
		pos := int(f.PhOff) + i*ProgramHeaderSize
		if pos < 0 || pos+ProgramHeaderSize > len(f.data) {
			return decodeError(f.Path, ErrMalformedProgramHeaderTable,
				fmt.Sprintf("program header %d out of range", i))
		}
		hdr := f.data[pos : pos+ProgramHeaderSize]

		p := &ProgramHeader{
			file:      f,
			Type:      le32(hdr[0:4]),
			Offset:    le32(hdr[4:8]),
			Vaddr:     le32(hdr[8:12]),
			Paddr:     le32(hdr[12:16]),
			Filesz:    le32(hdr[16:20]),
			Memsz:     le32(hdr[20:24]),
			Flags:     le32(hdr[24:28]),
			Align:     le32(hdr[28:32]),
			rawOffset: pos,
		}

		end := uint64(p.Offset) + uint64(p.Filesz)
		if end > uint64(len(f.data)) {
			return decodeError(f.Path, ErrMalformedProgramHeaderTable,
				fmt.Sprintf("program header %d out of range", i))
		}
		p.bytes = f.data[p.Offset : p.Offset+p.Filesz]

		f.programHeaders[i] = p
	}

	return nil
}

func (f *File) readSymbols() error {
	var symbols []*Symbol

	for _, sec := range f.sections {
		if sec.Type != SHT_SYMTAB && sec.Type != SHT_DYNSYM {
			continue
		}

		if sec.Entsz != 0 && sec.Entsz != SymbolSize {
			return decodeError(f.Path, ErrMalformedSymbolTable,
				fmt.Sprintf("section %q has entsize=%d", sec.Name, sec.Entsz))
		}
		if len(sec.bytes)%SymbolSize != 0 {
			return decodeError(f.Path, ErrMalformedSymbolTable,
				fmt.Sprintf("section %q size %d not a multiple of %d", sec.Name, len(sec.bytes), SymbolSize))
		}

		if int(sec.Link) >= len(f.sections) {
			return decodeError(f.Path, ErrMalformedSymbolTable,
				fmt.Sprintf("section %q has invalid string table link %d", sec.Name, sec.Link))
		}
		strtab := f.sections[sec.Link]
		if strtab.Type != SHT_STRTAB {
			return decodeError(f.Path, ErrMalformedSymbolTable,
				fmt.Sprintf("section %q's linked section is not STRTAB", sec.Name))
		}

		count := len(sec.bytes) / SymbolSize
		for i := 0; i < count; i++ {
			rec := sec.bytes[i*SymbolSize : (i+1)*SymbolSize]
			nameOff := le32(rec[0:4])

			name, err := lookupString(strtab, nameOff)
			if err != nil {
				return decodeError(f.Path, ErrMalformedSymbolTable, err.Error())
			}
			if name == "" {
				continue
			}

			symbols = append(symbols, &Symbol{
				Section: sec,
				Name:    name,
				Value:   le32(rec[4:8]),
				Size:    le32(rec[8:12]),
				Info:    rec[12],
				Other:   rec[13],
				Shndx:   le16(rec[14:16]),
			})
		}
	}

	sortSymbols(symbols)
	f.symbols = symbols
	return nil
}

// lookupString reads a NUL-terminated string starting at off within the
// string table section strtab.
func lookupString(strtab *Section, off uint32) (string, error) {
	if off >= uint32(len(strtab.bytes)) {
		return "", fmt.Errorf("string offset %d out of range in %q", off, strtab.Name)
	}
	data := strtab.bytes[off:]
	end := bytes.IndexByte(data, 0)
	if end < 0 {
		return "", fmt.Errorf("unterminated string at offset %d in %q", off, strtab.Name)
	}
	return string(data[:end]), nil
}

func le16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }
func le32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }

// Sections returns the ordered, indexable section table.
func (f *File) Sections() []*Section { return f.sections }

// ProgramHeaders returns the ordered program-header table.
func (f *File) ProgramHeaders() []*ProgramHeader { return f.programHeaders }

// Symbols returns the symbol table, sorted per the ordering in sortSymbols.
func (f *File) Symbols() []*Symbol { return f.symbols }

// Size returns the length of the underlying file buffer.
func (f *File) Size() int { return len(f.data) }
