package loader

import "errors"

// Sentinel errors for the load-time failure taxonomy. Every one of these is
// fatal for the LoadBinary call in progress but is returned as a plain
// error, never a process exit: only the CLI entry point turns a loader
// error into os.Exit(1).
var (
	ErrInvalidInterpreter    = errors.New("invalid ELF interpreter")
	ErrInterpreterTooLarge   = errors.New("interpreter file too large")
	ErrStdioRedirectionFailed = errors.New("stdio redirection failed")
	ErrStackOverflow         = errors.New("initial stack overflow")
)
