// Package fdtable models the guest file-descriptor table the context
// loader manipulates during stdio redirection, before any guest code runs.
package fdtable

// Kind classifies a guest descriptor's type as the guest sees it, matching
// the original loader's FileDesc type tags. Standard is the type installed
// for guest fd 0/1/2, whether inherited from the host process or redirected
// to a host file by the loader's stdio step; File is a general file
// descriptor opened by guest code at runtime (out of the loader's scope).
type Kind int

const (
	Standard Kind = iota
	File
)

// Table is the guest file-descriptor table consumed by the loader. It owns
// no knowledge of syscalls; it only tracks which host fd backs each guest
// fd, so that redirecting stdin/stdout can replace entry 0/1 cleanly.
type Table interface {
	// NewDescriptor installs hostFD as the host side of guest descriptor
	// guestFD, returning guestFD for chaining.
	NewDescriptor(guestFD, hostFD int, kind Kind) int

	// FreeDescriptor releases whatever host resource backs guestFD, if
	// any, e.g. closing the host file before a redirection replaces it.
	FreeDescriptor(guestFD int) error

	// HostFD returns the host descriptor number backing guestFD, or -1 if
	// guestFD is unmapped.
	HostFD(guestFD int) int
}

type entry struct {
	hostFD int
	kind   Kind
	// owned is true when this entry's hostFD was opened by a NewDescriptor
	// call and must be closed on free; it is false for the host process's
	// own inherited stdin/stdout/stderr, seeded by New and never closed.
	owned bool
}

// Default is a small, map-backed Table seeded with the standard 0/1/2
// descriptors pointing at the corresponding host descriptors.
type Default struct {
	closer  func(hostFD int) error
	entries map[int]entry
}

// New returns a Table pre-populated with guest 0/1/2 mapped to host 0/1/2.
// closer is invoked by FreeDescriptor to release a host descriptor a later
// NewDescriptor call installed; pass nil to skip closing.
func New(closer func(hostFD int) error) *Default {
	t := &Default{
		closer:  closer,
		entries: make(map[int]entry),
	}
	for fd := 0; fd <= 2; fd++ {
		t.entries[fd] = entry{hostFD: fd, kind: Standard}
	}
	return t
}

func (t *Default) NewDescriptor(guestFD, hostFD int, kind Kind) int {
	t.entries[guestFD] = entry{hostFD: hostFD, kind: kind, owned: true}
	return guestFD
}

func (t *Default) FreeDescriptor(guestFD int) error {
	e, ok := t.entries[guestFD]
	if !ok {
		return nil
	}
	delete(t.entries, guestFD)
	if e.owned && t.closer != nil {
		return t.closer(e.hostFD)
	}
	return nil
}

func (t *Default) HostFD(guestFD int) int {
	e, ok := t.entries[guestFD]
	if !ok {
		return -1
	}
	return e.hostFD
}
