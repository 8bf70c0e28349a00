package elf32

import (
	"errors"
	"fmt"
)

// Sentinel errors for the taxonomy in the decoder's failure semantics.
// Every decode failure is fatal for the File being constructed: Decode
// never returns a partially built *File.
var (
	ErrInvalidELF                  = errors.New("invalid ELF file")
	ErrUnsupported64Bit            = errors.New("64-bit ELF not supported")
	ErrMalformedSectionTable       = errors.New("malformed section table")
	ErrMalformedProgramHeaderTable = errors.New("malformed program header table")
	ErrMalformedSymbolTable        = errors.New("malformed symbol table")
	ErrInvalidStringTable          = errors.New("invalid string table")
)

// decodeError wraps a sentinel error with the path of the offending file,
// producing the path-qualified single-line message the spec requires.
func decodeError(path string, cause error, detail string) error {
	if detail == "" {
		return fmt.Errorf("%s: %w", path, cause)
	}
	return fmt.Errorf("%s: %w: %s", path, cause, detail)
}
