// Package ida bridges recovered analysis results to IDA: locating the
// executable requested on the command line and emitting an IDAPython
// script that replays our symbol table inside an IDA database.
package ida

import (
	"fmt"
	"io"
	"os/exec"

	"github.com/karatemonkey63/bap-1/internal/options"
	"github.com/karatemonkey63/bap-1/internal/symbols"
)

// Locate resolves the requested IDA executable, either a bare name
// looked up on PATH or an explicit path.
func Locate(ida *options.IDA) (string, error) {
	if ida == nil {
		return "", fmt.Errorf("ida integration not requested")
	}
	path, err := exec.LookPath(ida.Path)
	if err != nil {
		return "", fmt.Errorf("locate ida: %w", err)
	}
	return path, nil
}

// EmitScript writes an IDAPython script that marks every recovered
// function start and applies our names over IDA's defaults.
func EmitScript(w io.Writer, path string, syms []symbols.Symbol) error {
	if _, err := fmt.Fprintf(w, "# IDAPython annotations for %s\n", path); err != nil {
		return err
	}
	fmt.Fprintf(w, "# %d functions recovered\n", len(syms))
	fmt.Fprintln(w, "from idaapi import *")
	fmt.Fprintln(w)
	for _, s := range syms {
		fmt.Fprintf(w, "MakeFunction(%#x)\n", s.VA)
		name := s.Demangled
		if name == "" {
			name = s.Name
		}
		fmt.Fprintf(w, "MakeName(%#x, %q)\n", s.VA, name)
	}
	_, err := fmt.Fprintln(w, "\nWait()")
	return err
}
