package options

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

// Parse assembles an Options value from raw argv (program name excluded).
// Plugin names are peeked first, plugin-namespaced tokens are filtered
// out, and the remainder is parsed against the schema. The result is
// either a complete Options or an error from the taxonomy in errors.go,
// never both and never anything partial.
func Parse(argv []string) (*Options, error) {
	filtered := FilterArgs(argv, PeekLoads(argv))

	fs := pflag.NewFlagSet("bap", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	Register(fs)
	if err := fs.Parse(filtered); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, fmt.Errorf("%w: help requested", ErrNoOptions)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return FromFlags(fs, fs.Args())
}

// FromFlags resolves a parsed flag set and its positional arguments into
// Options. The set must have been populated through Register. The cobra
// root command funnels through here as well, so both entry points agree
// on every default and check.
func FromFlags(fs *pflag.FlagSet, args []string) (*Options, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: no input file", ErrMissingArgument)
	}
	if len(args) > 1 {
		return nil, fmt.Errorf("%w: unexpected argument %q", ErrInvalidValue, args[1])
	}

	opts := &Options{Filename: args[0]}
	opts.Syms, _ = fs.GetString("syms")
	opts.Sigs, _ = fs.GetString("sigs")
	opts.Loader, _ = fs.GetString("loader")
	opts.Binary, _ = fs.GetString("binary")
	opts.NoResolve, _ = fs.GetBool("no-resolve")
	opts.KeepAlive, _ = fs.GetBool("keep-alive")
	opts.NoInline, _ = fs.GetBool("no-inline")
	opts.KeepConst, _ = fs.GetBool("keep-const")
	opts.NoOptimizations, _ = fs.GetBool("no-optimizations")
	opts.Verbose, _ = fs.GetBool("verbose")
	opts.NoByteweight, _ = fs.GetBool("no-byteweight")
	opts.ByteweightLength, _ = fs.GetInt("byteweight-length")
	opts.ByteweightThreshold, _ = fs.GetFloat64("byteweight-threshold")
	opts.EmitIDAScript, _ = fs.GetString("emit-ida-script")
	opts.Load, _ = fs.GetStringArray("load")
	opts.LoadPath, _ = fs.GetStringArray("load-path")

	opts.Dump = fs.Lookup("dump").Value.(*enumList[DumpFormat]).list()
	opts.PrintSymbols = fs.Lookup("print-symbols").Value.(*enumList[SymField]).list()

	opts.Labels = fs.Lookup("labels-with-name").Value.(*labelFlag).list()
	if len(opts.Labels) == 0 {
		opts.Labels = []Label{LabelName}
	}

	if fs.Changed("phoenix") {
		dir, _ := fs.GetString("phoenix")
		if dir == "" {
			dir = "."
		}
		opts.Phoenix = dir
	}
	if fs.Changed("demangle") {
		v, _ := fs.GetString("demangle")
		if v == demangleInternal {
			opts.Demangle = &Demangle{}
		} else {
			opts.Demangle = &Demangle{Program: v}
		}
	}
	if fs.Changed("use-ida") {
		v, _ := fs.GetString("use-ida")
		if v == "" {
			v = defaultIDAExe
		}
		opts.IDA = &IDA{Path: v}
	}

	if err := checkFile(opts.Filename); err != nil {
		return nil, err
	}
	if opts.Syms != "" {
		if err := checkFile(opts.Syms); err != nil {
			return nil, err
		}
	}
	if opts.Sigs != "" {
		if err := checkFile(opts.Sigs); err != nil {
			return nil, err
		}
	}
	return opts, nil
}

func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrFileNotFound, path)
	}
	return nil
}
