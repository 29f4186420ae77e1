// Package phoenix exports recovered control flow graphs in the layout
// the phoenix decompiler consumes: one Graphviz file per function plus
// an index naming them.
package phoenix

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/karatemonkey63/bap-1/internal/bil"
	"github.com/karatemonkey63/bap-1/internal/disasm"
	"github.com/karatemonkey63/bap-1/internal/options"
)

// Func is one disassembled function ready for export. BIL carries the
// lifted statements keyed by instruction address and may be nil when
// no label asks for them.
type Func struct {
	Name   string
	Entry  uint64
	Blocks []disasm.Block
	BIL    map[uint64][]bil.Stmt
}

// Write exports every function into dir, creating it if missing. Vertex
// labels carry the requested content in the order it was requested.
func Write(dir string, fns []Func, labels []options.Label) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create phoenix dir: %w", err)
	}

	var index strings.Builder
	used := make(map[string]bool)
	for _, fn := range fns {
		name := sanitize(fn.Name)
		if used[name] {
			name = fmt.Sprintf("%s_%x", name, fn.Entry)
		}
		used[name] = true
		file := name + ".dot"

		if err := os.WriteFile(filepath.Join(dir, file), []byte(dot(fn, labels)), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", file, err)
		}
		fmt.Fprintf(&index, "%#x %s\n", fn.Entry, file)
	}

	if err := os.WriteFile(filepath.Join(dir, "index"), []byte(index.String()), 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

func dot(fn Func, labels []options.Label) string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", fn.Name)
	b.WriteString("  node [shape=box, fontname=\"monospace\"];\n")
	for _, blk := range fn.Blocks {
		fmt.Fprintf(&b, "  \"%#x\" [label=\"%s\"];\n", blk.Start, vertexLabel(fn, blk, labels))
	}
	for _, blk := range fn.Blocks {
		for _, succ := range blk.Succ {
			fmt.Fprintf(&b, "  \"%#x\" -> \"%#x\";\n", blk.Start, succ)
		}
	}
	b.WriteString("}\n")
	return b.String()
}

// vertexLabel builds one block label from the requested content kinds,
// one line per entry, left justified the Graphviz way.
func vertexLabel(fn Func, blk disasm.Block, labels []options.Label) string {
	if len(labels) == 0 {
		labels = []options.Label{options.LabelName}
	}
	var lines []string
	for _, l := range labels {
		switch l {
		case options.LabelName:
			lines = append(lines, fmt.Sprintf("blk_%x", blk.Start))
		case options.LabelAsm:
			for _, inst := range blk.Insts {
				lines = append(lines, escape(inst.Text))
			}
		case options.LabelBIL:
			for _, inst := range blk.Insts {
				for _, stmt := range fn.BIL[inst.VA] {
					lines = append(lines, escape(stmt.String()))
				}
			}
		}
	}
	return strings.Join(lines, `\l`) + `\l`
}

func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "fn"
	}
	return b.String()
}

func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
