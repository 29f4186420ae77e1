package options

import (
	"github.com/spf13/pflag"
)

// Register declares every recognized flag on fs. The root command and
// Parse both register through here, so the CLI surface is defined once.
//
// Flags carrying a NoOptDefVal are valid bare: the bare form binds the
// fixed default, while an explicit value must be glued with '='.
func Register(fs *pflag.FlagSet) {
	fs.StringP("syms", "s", "", "Use this file as the symbols source")
	fs.String("loader", DefaultLoader, "Image loader backend name")
	fs.String("binary", "", "Override the detected architecture")

	var labels []Label
	fs.Var(&labelFlag{LabelName, &labels}, "labels-with-name", "Put symbol names into exported vertex labels")
	fs.Var(&labelFlag{LabelAsm, &labels}, "labels-with-asm", "Put disassembly into exported vertex labels")
	fs.Var(&labelFlag{LabelBIL, &labels}, "labels-with-bil", "Put lifted code into exported vertex labels")
	fs.Lookup("labels-with-name").NoOptDefVal = "true"
	fs.Lookup("labels-with-asm").NoOptDefVal = "true"
	fs.Lookup("labels-with-bil").NoOptDefVal = "true"

	fs.String("phoenix", "", "Store output for the phoenix decompiler in this directory")
	fs.Lookup("phoenix").NoOptDefVal = "."

	var dump []DumpFormat
	fs.VarP(newEnumList(&dump, "format", DumpAsm, DumpBIL), "dump", "d", "Dump the program in the given format")
	fs.Lookup("dump").NoOptDefVal = string(DumpAsm)

	fs.String("demangle", "", "Demangle C++ symbols, internally or via an external program")
	fs.Lookup("demangle").NoOptDefVal = demangleInternal

	fs.BoolP("no-resolve", "n", false, "Do not resolve addresses to symbolic names")
	fs.Bool("keep-alive", false, "Keep unused temporary variables in lifted code")
	fs.Bool("no-inline", false, "Disable inlining of temporary variables")
	fs.Bool("keep-const", false, "Disable constant folding")
	fs.Bool("no-optimizations", false, "Disable all optimizations of lifted code")
	fs.BoolP("verbose", "v", false, "Verbose logging")
	fs.Bool("no-byteweight", false, "Disable the byteweight function start search")

	fs.Int("byteweight-length", DefaultByteweightLength, "Maximum signature prefix length")
	fs.Float64("byteweight-threshold", DefaultByteweightThreshold, "Minimum score accepted as a function start")
	fs.String("sigs", "", "Path to the byteweight signature file")

	var fields []SymField
	fs.VarP(newEnumList(&fields, "field", FieldName, FieldAddr, FieldSize), "print-symbols", "p", "Print found symbols with the given field")
	fs.Lookup("print-symbols").NoOptDefVal = string(FieldName)

	fs.String("use-ida", "", "Use IDA to extract symbols, searching $PATH when given bare")
	fs.Lookup("use-ida").NoOptDefVal = defaultIDAExe

	fs.String("emit-ida-script", "", "Write an IDAPython annotation script to this path")

	fs.StringArrayP("load", "l", nil, "Load the named plugin")
	fs.StringArrayP("load-path", "L", nil, "Add a directory to the plugin search path")
}
