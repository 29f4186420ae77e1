// Package options defines the command-line surface of bap: the flag
// schema, the plugin-aware argv filter, and the parser that assembles a
// validated Options value for the analysis pipeline.
package options

// DumpFormat is an output format accepted by --dump.
type DumpFormat string

const (
	DumpAsm DumpFormat = "asm"
	DumpBIL DumpFormat = "bil"
)

// SymField is a column selector accepted by --print-symbols.
type SymField string

const (
	FieldName SymField = "name"
	FieldAddr SymField = "addr"
	FieldSize SymField = "size"
)

// Label selects what goes into graph vertex labels on export.
type Label string

const (
	LabelName Label = "with-name"
	LabelAsm  Label = "with-asm"
	LabelBIL  Label = "with-bil"
)

// Demangle selects how symbol names are demangled. A nil *Demangle
// disables demangling. An empty Program selects the built-in demangler,
// otherwise Program names an external filter executable.
type Demangle struct {
	Program string `json:"program"`
}

// IDA requests symbol extraction through an IDA executable. Path is the
// program name or path to run; the bare flag form binds the default name
// "ida", which the consumer resolves against $PATH.
type IDA struct {
	Path string `json:"path"`
}

// Options is the fully resolved configuration produced by a successful
// parse. It is never constructed partially: every field holds either a
// command-line value or its declared default.
type Options struct {
	Filename            string       `json:"filename" jsonschema:"title=Input File,description=Path to the file to analyze"`
	Loader              string       `json:"loader" jsonschema:"title=Loader,description=Image loader backend name"`
	Syms                string       `json:"syms,omitempty" jsonschema:"title=Symbols File,description=External symbols source"`
	Sigs                string       `json:"sigs,omitempty" jsonschema:"title=Signatures File,description=Byteweight signature file"`
	Labels              []Label      `json:"labels" jsonschema:"title=Vertex Labels,description=Content of exported graph vertex labels"`
	Phoenix             string       `json:"phoenix,omitempty" jsonschema:"title=Phoenix Directory,description=Output directory for the phoenix decompiler"`
	Dump                []DumpFormat `json:"dump" jsonschema:"title=Dump Formats,description=Program representations printed to stdout"`
	Demangle            *Demangle    `json:"demangle,omitempty" jsonschema:"title=Demangling,description=Symbol demangling mode"`
	NoResolve           bool         `json:"no_resolve" jsonschema:"title=No Resolve,description=Do not resolve addresses to symbolic names"`
	KeepAlive           bool         `json:"keep_alive" jsonschema:"title=Keep Alive,description=Keep unused temporary variables"`
	NoInline            bool         `json:"no_inline" jsonschema:"title=No Inline,description=Disable temporary variable inlining"`
	KeepConst           bool         `json:"keep_const" jsonschema:"title=Keep Const,description=Disable constant folding"`
	NoOptimizations     bool         `json:"no_optimizations" jsonschema:"title=No Optimizations,description=Disable all lifted-code optimizations"`
	Verbose             bool         `json:"verbose" jsonschema:"title=Verbose,description=Verbose logging"`
	NoByteweight        bool         `json:"no_byteweight" jsonschema:"title=No Byteweight,description=Disable the byteweight function start search"`
	Binary              string       `json:"binary,omitempty" jsonschema:"title=Architecture,description=Override the detected architecture"`
	ByteweightLength    int          `json:"byteweight_length" jsonschema:"title=Byteweight Length,description=Maximum signature prefix length"`
	ByteweightThreshold float64      `json:"byteweight_threshold" jsonschema:"title=Byteweight Threshold,description=Minimum score accepted as a function start"`
	PrintSymbols        []SymField   `json:"print_symbols" jsonschema:"title=Print Symbols,description=Symbol table columns printed to stdout"`
	IDA                 *IDA         `json:"ida,omitempty" jsonschema:"title=IDA,description=IDA integration settings"`
	EmitIDAScript       string       `json:"emit_ida_script,omitempty" jsonschema:"title=IDA Script,description=Write an IDAPython annotation script to this path"`
	Load                []string     `json:"load" jsonschema:"title=Plugins,description=Plugins to load by name"`
	LoadPath            []string     `json:"load_path" jsonschema:"title=Plugin Search Path,description=Extra directories searched for plugins"`
}

// Defaults baked into the schema.
const (
	DefaultLoader              = "llvm"
	DefaultByteweightLength    = 16
	DefaultByteweightThreshold = 0.9

	defaultIDAExe    = "ida"
	demangleInternal = "internal"
)
