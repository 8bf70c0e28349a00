// Command ld86 decodes and bootstraps 32-bit x86 ELF executables: it runs
// the same guest-process setup a kernel's own exec(2) would, then reports
// the computed entry point, stack pointer, and interpreter instead of
// handing off to an emulator core.
package main

import (
	"fmt"
	"os"

	"github.com/xyproto/env/v2"

	"github.com/xyproto/ld86/internal/elf32"
	"github.com/xyproto/ld86/internal/fdtable"
	"github.com/xyproto/ld86/internal/guestmem"
	"github.com/xyproto/ld86/internal/loader"
	"github.com/xyproto/ld86/internal/regfile"
)

const versionString = "ld86 0.1.0"

func main() {
	verbose := env.Bool("LD86_VERBOSE")
	elf32.Verbose = verbose
	loader.Verbose = verbose

	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return cmdHelp()
	}

	switch args[0] {
	case "dump":
		if len(args) < 2 {
			return fmt.Errorf("usage: ld86 dump <file>")
		}
		return cmdDump(args[1])

	case "load":
		if len(args) < 2 {
			return fmt.Errorf("usage: ld86 load <file> [guest-args...]")
		}
		return cmdLoad(args[1], args[2:])

	case "help", "--help", "-h":
		return cmdHelp()

	case "version", "--version", "-V":
		fmt.Println(versionString)
		return nil

	default:
		return fmt.Errorf("unknown command %q; try %q", args[0], "ld86 help")
	}
}

func cmdDump(path string) error {
	f, err := elf32.Decode(path)
	if err != nil {
		return err
	}
	f.Dump(os.Stdout)
	return nil
}

func cmdLoad(path string, guestArgs []string) error {
	argv := append([]string{path}, guestArgs...)
	envp := os.Environ()

	mem := guestmem.New()
	regs := &regfile.File{}
	fds := fdtable.New(func(hostFD int) error {
		return os.NewFile(uintptr(hostFD), "").Close()
	})

	l := loader.New(mem, regs, fds)
	res, err := l.LoadBinary(loader.Config{
		Path: path,
		Argv: argv,
		Envp: envp,
		Stdio: loader.StdioRedirect{
			Stdin:  env.Str("LD86_STDIN", ""),
			Stdout: env.Str("LD86_STDOUT", ""),
		},
	})
	if err != nil {
		return err
	}

	fmt.Printf("entry:  0x%08x\n", res.Entry)
	fmt.Printf("esp:    0x%08x\n", res.Esp)
	fmt.Printf("bottom: 0x%08x\n", res.Bottom)
	fmt.Printf("top:    0x%08x\n", res.Top)
	fmt.Printf("brk:    0x%08x\n", res.HeapBreak)
	if res.Interp != "" {
		fmt.Printf("interp: %s\n", res.Interp)
	}
	return nil
}

func cmdHelp() error {
	fmt.Println(versionString)
	fmt.Println(`
usage:
  ld86 dump <file>               decode and pretty-print an ELF32 file
  ld86 load <file> [args...]     bootstrap the guest process and report
                                  the computed entry point, stack, and heap
  ld86 help                      show this message
  ld86 version                   show the version string

environment:
  LD86_VERBOSE   enable loader trace output (default: false)
  LD86_STDIN     path to redirect the guest's stdin from
  LD86_STDOUT    path to redirect the guest's stdout to`)
	return nil
}
