package loader

import (
	"encoding/binary"
	"fmt"

	"github.com/xyproto/ld86/internal/elf32"
	"github.com/xyproto/ld86/internal/guestmem"
	"github.com/xyproto/ld86/internal/hostio"
)

// Auxiliary vector entry types the loader writes, per the i386 Linux ABI.
const (
	atNull     = 0
	atPhdr     = 3
	atPhent    = 4
	atPhnum    = 5
	atPagesz   = 6
	atBase     = 7
	atFlags    = 8
	atEntry    = 9
	atUID      = 11
	atEUID     = 12
	atGID      = 13
	atEGID     = 14
	atPlatform = 15
	atHWCap    = 16
	atClktck   = 17
	atSecure   = 23
	atRandom   = 25
)

const platformString = "i686\x00"

// hwcapDefault and clktckDefault match the values the original loader
// reports for a generic i686 guest; nothing in this module inspects the
// host's actual capabilities.
const (
	hwcapDefault  = 0x78bfbff
	clktckDefault = 100
)

type stackParams struct {
	Argv       []string
	Envp       []string
	Random     []byte
	PhdrAddr   uint32
	PhNum      uint32
	PageSize   uint32
	HasInterp  bool
	InterpBase uint32
	Entry      uint32
	IDs        hostio.IDs
}

type auxEntry struct {
	typ   uint32
	value uint32
	// fixup, if non-nil, computes the value once string addresses are
	// known, overriding the literal value above.
	fixup func(addrs stackAddrs) uint32
}

type stackAddrs struct {
	platform uint32
	random   uint32
}

// buildStack implements step 6: assembling the argc/argv/envp/auxv/strings
// stack image a freshly exec'd i386 process expects, writing it into guest
// memory just below StackBase, and returning the initial ESP.
func buildStack(mem guestmem.Memory, p stackParams) (uint32, error) {
	aux := []auxEntry{
		{typ: atPhdr, value: p.PhdrAddr},
		{typ: atPhent, value: elf32.ProgramHeaderSize},
		{typ: atPhnum, value: p.PhNum},
		{typ: atPagesz, value: p.PageSize},
	}
	if p.HasInterp {
		aux = append(aux, auxEntry{typ: atBase, value: p.InterpBase})
	}
	aux = append(aux,
		auxEntry{typ: atFlags, value: 0},
		auxEntry{typ: atEntry, value: p.Entry},
		auxEntry{typ: atUID, value: p.IDs.UID},
		auxEntry{typ: atEUID, value: p.IDs.EUID},
		auxEntry{typ: atGID, value: p.IDs.GID},
		auxEntry{typ: atEGID, value: p.IDs.EGID},
		auxEntry{typ: atPlatform, fixup: func(a stackAddrs) uint32 { return a.platform }},
		auxEntry{typ: atHWCap, value: hwcapDefault},
		auxEntry{typ: atClktck, value: clktckDefault},
		auxEntry{typ: atSecure, value: 0},
		auxEntry{typ: atRandom, fixup: func(a stackAddrs) uint32 { return a.random }},
		auxEntry{typ: atNull, value: 0},
	)

	// Layout, lowest address first: argc, argv pointers + NULL, envp
	// pointers + NULL, auxv, argv strings, envp strings, random bytes,
	// platform string.
	argvPtrsOff := uint32(4)
	envpPtrsOff := argvPtrsOff + uint32(len(p.Argv)+1)*4
	auxvOff := envpPtrsOff + uint32(len(p.Envp)+1)*4
	stringsOff := auxvOff + uint32(len(aux))*8

	off := stringsOff
	argvStrOff := make([]uint32, len(p.Argv))
	for i, s := range p.Argv {
		argvStrOff[i] = off
		off += uint32(len(s)) + 1
	}
	envpStrOff := make([]uint32, len(p.Envp))
	for i, s := range p.Envp {
		envpStrOff[i] = off
		off += uint32(len(s)) + 1
	}
	randomOff := off
	off += uint32(len(p.Random))
	platformOff := off
	off += uint32(len(platformString))

	total := off
	if total > MaxEnviron {
		return 0, fmt.Errorf("%w: stack image needs %d bytes, limit %d", ErrStackOverflow, total, MaxEnviron)
	}

	// sp (and the guest's initial ESP) is pinned to StackBase-MaxEnviron
	// regardless of how much of that reserved window the image actually
	// uses; only the overflow check above varies with content size.
	espStart := StackBase - MaxEnviron

	addrs := stackAddrs{
		platform: espStart + platformOff,
		random:   espStart + randomOff,
	}

	if err := mem.Map(StackBase-StackSize, StackSize, guestmem.PermRead|guestmem.PermWrite); err != nil {
		return 0, fmt.Errorf("loader: mapping stack: %w", err)
	}

	buf := make([]byte, total)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(p.Argv)))

	for i, o := range argvStrOff {
		binary.LittleEndian.PutUint32(buf[argvPtrsOff+uint32(i)*4:], espStart+o)
	}
	binary.LittleEndian.PutUint32(buf[argvPtrsOff+uint32(len(p.Argv))*4:], 0)

	for i, o := range envpStrOff {
		binary.LittleEndian.PutUint32(buf[envpPtrsOff+uint32(i)*4:], espStart+o)
	}
	binary.LittleEndian.PutUint32(buf[envpPtrsOff+uint32(len(p.Envp))*4:], 0)

	for i, e := range aux {
		val := e.value
		if e.fixup != nil {
			val = e.fixup(addrs)
		}
		rec := buf[auxvOff+uint32(i)*8:]
		binary.LittleEndian.PutUint32(rec[0:4], e.typ)
		binary.LittleEndian.PutUint32(rec[4:8], val)
	}

	for i, s := range p.Argv {
		copy(buf[argvStrOff[i]:], s)
		buf[argvStrOff[i]+uint32(len(s))] = 0
	}
	for i, s := range p.Envp {
		copy(buf[envpStrOff[i]:], s)
		buf[envpStrOff[i]+uint32(len(s))] = 0
	}
	copy(buf[randomOff:], p.Random)
	copy(buf[platformOff:], platformString)

	if err := mem.Write(espStart, buf); err != nil {
		return 0, fmt.Errorf("loader: writing stack image: %w", err)
	}

	return espStart, nil
}
