// Package hostio is the context loader's only connection to the host
// operating system: reading the executable/interpreter bytes, producing the
// AT_RANDOM payload, and reporting the uid/gid quadruple the auxiliary
// vector carries into the guest.
package hostio

import (
	"crypto/rand"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ReadFile reads the entire contents of path, used for both the primary
// executable and, recursively, its ELF interpreter.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("hostio: %w", err)
	}
	return data, nil
}

// RandomBytes returns n cryptographically random bytes for the AT_RANDOM
// auxiliary vector entry. It prefers the raw getrandom(2) syscall, used by
// the reference kernel's own exec path, and falls back to crypto/rand on
// platforms where Getrandom is unavailable (e.g. a non-Linux development
// host exercising the loader in tests).
func RandomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := unix.Getrandom(buf, 0); err == nil {
		return buf, nil
	}
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("hostio: random bytes: %w", err)
	}
	return buf, nil
}

// IDs is the uid/euid/gid/egid quadruple the auxiliary vector reports to
// the guest process.
type IDs struct {
	UID, EUID, GID, EGID uint32
}

// CurrentIDs reports the calling process's real and effective user/group
// IDs via the raw unix syscalls, matching the host identity a real kernel
// exec would propagate into AT_UID/AT_EUID/AT_GID/AT_EGID.
func CurrentIDs() IDs {
	return IDs{
		UID:  uint32(unix.Getuid()),
		EUID: uint32(unix.Geteuid()),
		GID:  uint32(unix.Getgid()),
		EGID: uint32(unix.Getegid()),
	}
}
