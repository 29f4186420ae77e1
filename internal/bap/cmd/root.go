package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/karatemonkey63/bap-1/internal/bap/log"
	"github.com/karatemonkey63/bap-1/internal/bil"
	"github.com/karatemonkey63/bap-1/internal/byteweight"
	"github.com/karatemonkey63/bap-1/internal/disasm"
	"github.com/karatemonkey63/bap-1/internal/ida"
	"github.com/karatemonkey63/bap-1/internal/image"
	"github.com/karatemonkey63/bap-1/internal/options"
	"github.com/karatemonkey63/bap-1/internal/phoenix"
	"github.com/karatemonkey63/bap-1/internal/plugin"
	"github.com/karatemonkey63/bap-1/internal/symbols"
	"github.com/karatemonkey63/bap-1/internal/ui/colorize"
)

func init() {
	options.Register(rootCmd.Flags())
}

var rootCmd = &cobra.Command{
	Use:   "bap [file]",
	Short: "Binary analysis platform",
	Long: `Bap disassembles and lifts binary programs into an analyzable form.
It recovers function symbols from the image, a symbol file, or a
byteweight signature search, then decodes and lifts each function.`,
	Example: `
# Disassemble a binary to stdout
bap -d /bin/ls

# Lifted form with demangled names
bap -d=bil --demangle /path/to/binary

# Export graphs for the phoenix decompiler
bap --phoenix=out --labels-with-asm /path/to/binary
  `,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := options.FromFlags(cmd.Flags(), args)
		if err != nil {
			return err
		}
		log.Setup(opts.Verbose)
		return run(opts)
	},
}

// fn is one recovered function with its decoded body.
type fn struct {
	sym  symbols.Symbol
	body disasm.Stream
}

// run drives the whole pipeline: load, recover symbols, disassemble,
// then emit whatever outputs were requested.
func run(opts *options.Options) error {
	img, err := image.Load(opts.Filename, opts.Loader)
	if err != nil {
		return err
	}
	defer img.Close()

	arch := img.Arch
	if opts.Binary != "" {
		arch = opts.Binary
	}
	dec, err := disasm.New(arch)
	if err != nil {
		return err
	}

	syms, err := recoverSymbols(img, arch, opts)
	if err != nil {
		return err
	}

	if opts.IDA != nil {
		if path, err := ida.Locate(opts.IDA); err != nil {
			slog.Warn("ida not available, continuing without it", "error", err)
		} else {
			slog.Debug("using ida", "path", path)
		}
	}

	fns := disassemble(dec, img, syms)

	for _, format := range opts.Dump {
		switch format {
		case options.DumpBIL:
			if err := dumpBIL(os.Stdout, arch, fns, syms, opts); err != nil {
				return err
			}
		default:
			dumpAsm(os.Stdout, arch, fns)
		}
	}

	if len(opts.PrintSymbols) > 0 {
		symbols.Print(os.Stdout, syms, opts.PrintSymbols)
	}

	if opts.Phoenix != "" {
		if err := exportPhoenix(arch, fns, syms, opts); err != nil {
			return err
		}
	}

	if opts.EmitIDAScript != "" {
		if err := emitIDAScript(opts.EmitIDAScript, opts.Filename, syms); err != nil {
			return err
		}
	}

	if len(opts.Load) > 0 {
		if found, err := plugin.Resolve(opts); err != nil {
			slog.Warn("plugin resolution incomplete", "error", err)
		} else {
			slog.Debug("plugins resolved", "count", len(found))
		}
	}
	return nil
}

// recoverSymbols merges the symbol sources in priority order and
// applies the demangling choice.
func recoverSymbols(img *image.Image, arch string, opts *options.Options) ([]symbols.Symbol, error) {
	var fromFile []symbols.Symbol
	if opts.Syms != "" {
		var err error
		fromFile, err = symbols.Load(opts.Syms)
		if err != nil {
			return nil, err
		}
	}

	var starts []uint64
	if !opts.NoByteweight {
		table := byteweight.Default()
		if opts.Sigs != "" {
			var err error
			table, err = byteweight.Load(opts.Sigs)
			if err != nil {
				return nil, err
			}
		}
		starts = table.FindStarts(img, opts.ByteweightLength, opts.ByteweightThreshold)
		slog.Debug("byteweight search done", "starts", len(starts), "arch", arch)
	}

	syms := symbols.Merge(fromFile, symbols.FromImage(img), starts)
	return symbols.Rename(syms, opts.Demangle), nil
}

// disassemble decodes every recovered function body. Functions that
// cannot be read are dropped with a warning.
func disassemble(dec disasm.Decoder, img *image.Image, syms []symbols.Symbol) []fn {
	fns := make([]fn, 0, len(syms))
	for _, s := range syms {
		if !img.InText(s.VA) {
			continue
		}
		body, err := disasm.Function(dec, img, s.VA, s.Size)
		if err != nil {
			slog.Warn("cannot disassemble", "symbol", s.Name, "va", s.VA, "error", err)
			continue
		}
		fns = append(fns, fn{sym: s, body: body})
	}
	return fns
}

func displayName(s symbols.Symbol) string {
	if s.Demangled != "" {
		return s.Demangled
	}
	return s.Name
}

// dumpAsm prints the decoded form of every function, objdump style.
func dumpAsm(w io.Writer, arch string, fns []fn) {
	color := !colorize.Disabled()
	for _, f := range fns {
		fmt.Fprintf(w, "%08x <%s>:\n", f.sym.VA, displayName(f.sym))
		for _, inst := range f.body {
			line := fmt.Sprintf("%x: %s", inst.VA, inst.Text)
			if color {
				line = colorize.ColorizeInstructionLine(line, arch)
			}
			fmt.Fprintf(w, "  %s\n", line)
		}
		fmt.Fprintln(w)
	}
}

// dumpBIL lifts every function and prints the optimized statements.
func dumpBIL(w io.Writer, arch string, fns []fn, syms []symbols.Symbol, opts *options.Options) error {
	color := !colorize.Disabled()
	for _, f := range fns {
		prog, err := liftBody(arch, f.body, syms, opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%08x <%s>:\n", f.sym.VA, displayName(f.sym))
		for _, stmt := range prog {
			line := stmt.String()
			if color {
				line, _ = colorize.ColorizeBIL(line)
				line = strings.TrimRight(line, "\n")
			}
			fmt.Fprintf(w, "  %s\n", line)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// liftBody lifts one function body into a single statement sequence and
// runs the optimization and resolution passes the flags allow.
func liftBody(arch string, body disasm.Stream, syms []symbols.Symbol, opts *options.Options) ([]bil.Stmt, error) {
	lifter, err := bil.NewLifter(arch)
	if err != nil {
		return nil, err
	}
	var prog []bil.Stmt
	for _, inst := range body {
		prog = append(prog, lifter.Lift(inst)...)
	}
	if !opts.NoOptimizations {
		prog = bil.Optimize(prog, bil.Tuning{
			KeepConst: opts.KeepConst,
			NoInline:  opts.NoInline,
			KeepAlive: opts.KeepAlive,
		})
	}
	if !opts.NoResolve {
		prog = bil.Resolve(prog, symbols.Lookup(syms))
	}
	return prog, nil
}

// exportPhoenix writes the per-function graphs. Lifted statements are
// only computed when a label asks for them.
func exportPhoenix(arch string, fns []fn, syms []symbols.Symbol, opts *options.Options) error {
	wantBIL := false
	for _, l := range opts.Labels {
		if l == options.LabelBIL {
			wantBIL = true
		}
	}

	pfns := make([]phoenix.Func, 0, len(fns))
	for _, f := range fns {
		pf := phoenix.Func{
			Name:   displayName(f.sym),
			Entry:  f.sym.VA,
			Blocks: disasm.Blocks(f.body),
		}
		if wantBIL {
			lifter, err := bil.NewLifter(arch)
			if err != nil {
				return err
			}
			pf.BIL = make(map[uint64][]bil.Stmt, len(f.body))
			for _, inst := range f.body {
				pf.BIL[inst.VA] = lifter.Lift(inst)
			}
		}
		pfns = append(pfns, pf)
	}
	return phoenix.Write(opts.Phoenix, pfns, opts.Labels)
}

func emitIDAScript(path, binary string, syms []symbols.Symbol) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create ida script: %w", err)
	}
	defer f.Close()
	return ida.EmitScript(f, binary, syms)
}

func Execute() {
	// The strict schema knows nothing about plugin flags, so plugin
	// namespaced tokens come out of argv before cobra sees it.
	plugins := options.PeekLoads(os.Args[1:])
	rootCmd.SetArgs(options.FilterArgs(os.Args[1:], plugins))

	// Bypass fang's markdown rendering when output is being piped, and
	// keep raw dumps uncolored.
	piped := !term.IsTerminal(os.Stdout.Fd())
	if piped {
		os.Setenv("BAP_NO_COLOR", "1")
	}

	if piped || colorize.Disabled() {
		if err := rootCmd.Execute(); err != nil {
			os.Exit(1)
		}
		return
	}

	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}
