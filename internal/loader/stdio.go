package loader

import (
	"fmt"
	"os"

	"github.com/xyproto/ld86/internal/fdtable"
)

// redirectStdio implements step 1: opening host files for stdin/stdout and
// installing them over the guest's standard descriptors. An empty path
// leaves the corresponding descriptor as the inherited standard stream.
//
// Matches the original loader opening stdout with
// O_CREAT|O_APPEND|O_TRUNC|O_WRONLY at mode 0660, then freeing guest FDs 1
// AND 2 and installing both against the single resulting host descriptor —
// stderr is not separately redirected unless the caller names its own path,
// in which case that path wins for FD 2 instead of mirroring stdout.
func (l *Loader) redirectStdio(r StdioRedirect) error {
	if r.Stdin != "" {
		f, err := os.OpenFile(r.Stdin, os.O_RDONLY, 0)
		if err != nil {
			return fmt.Errorf("%w: stdin: %v", ErrStdioRedirectionFailed, err)
		}
		if err := l.FDs.FreeDescriptor(0); err != nil {
			return fmt.Errorf("%w: stdin: %v", ErrStdioRedirectionFailed, err)
		}
		l.FDs.NewDescriptor(0, int(f.Fd()), fdtable.Standard)
	}

	if r.Stdout != "" {
		f, err := os.OpenFile(r.Stdout, os.O_CREATE|os.O_APPEND|os.O_TRUNC|os.O_WRONLY, 0660)
		if err != nil {
			return fmt.Errorf("%w: stdout: %v", ErrStdioRedirectionFailed, err)
		}
		if err := l.FDs.FreeDescriptor(1); err != nil {
			return fmt.Errorf("%w: stdout: %v", ErrStdioRedirectionFailed, err)
		}
		l.FDs.NewDescriptor(1, int(f.Fd()), fdtable.Standard)

		if r.Stderr == "" {
			if err := l.FDs.FreeDescriptor(2); err != nil {
				return fmt.Errorf("%w: stderr: %v", ErrStdioRedirectionFailed, err)
			}
			l.FDs.NewDescriptor(2, int(f.Fd()), fdtable.Standard)
		}
	}

	if r.Stderr != "" {
		f, err := os.OpenFile(r.Stderr, os.O_CREATE|os.O_APPEND|os.O_TRUNC|os.O_WRONLY, 0660)
		if err != nil {
			return fmt.Errorf("%w: stderr: %v", ErrStdioRedirectionFailed, err)
		}
		if err := l.FDs.FreeDescriptor(2); err != nil {
			return fmt.Errorf("%w: stderr: %v", ErrStdioRedirectionFailed, err)
		}
		l.FDs.NewDescriptor(2, int(f.Fd()), fdtable.Standard)
	}

	return nil
}
