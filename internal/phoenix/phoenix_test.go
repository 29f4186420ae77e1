package phoenix

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/karatemonkey63/bap-1/internal/bil"
	"github.com/karatemonkey63/bap-1/internal/disasm"
	"github.com/karatemonkey63/bap-1/internal/options"
)

func sampleFunc() Func {
	return Func{
		Name:  "main",
		Entry: 0x1000,
		Blocks: []disasm.Block{
			{
				Start: 0x1000,
				Insts: disasm.Stream{
					{VA: 0x1000, Len: 4, Text: "cmp x0, x1"},
					{VA: 0x1004, Len: 4, Text: "b.ne .+0x8", Cond: true, Target: 0x100c},
				},
				Succ: []uint64{0x100c, 0x1008},
			},
			{
				Start: 0x1008,
				Insts: disasm.Stream{{VA: 0x1008, Len: 4, Text: "ret", Ret: true}},
			},
			{
				Start: 0x100c,
				Insts: disasm.Stream{{VA: 0x100c, Len: 4, Text: "ret", Ret: true}},
			},
		},
		BIL: map[uint64][]bil.Stmt{
			0x1008: {bil.Ret{}},
		},
	}
}

func TestWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "phoenix")
	err := Write(dir, []Func{sampleFunc()}, []options.Label{options.LabelName})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "main.dot"))
	if err != nil {
		t.Fatalf("read exported graph: %v", err)
	}
	got := string(data)
	for _, want := range []string{
		"digraph \"main\" {",
		`"0x1000" [label="blk_1000\l"];`,
		`"0x1000" -> "0x100c";`,
		`"0x1000" -> "0x1008";`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("graph missing %q:\n%s", want, got)
		}
	}

	index, err := os.ReadFile(filepath.Join(dir, "index"))
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	if string(index) != "0x1000 main.dot\n" {
		t.Errorf("index = %q", string(index))
	}
}

func TestVertexLabelOrder(t *testing.T) {
	fn := sampleFunc()
	blk := fn.Blocks[1]

	tests := []struct {
		name   string
		labels []options.Label
		want   string
	}{
		{
			"asm then name",
			[]options.Label{options.LabelAsm, options.LabelName},
			`ret\lblk_1008\l`,
		},
		{
			"name asm bil",
			[]options.Label{options.LabelName, options.LabelAsm, options.LabelBIL},
			`blk_1008\lret\lret\l`,
		},
		{
			"empty falls back to name",
			nil,
			`blk_1008\l`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := vertexLabel(fn, blk, tt.labels); got != tt.want {
				t.Errorf("vertexLabel = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteCollidingNames(t *testing.T) {
	dir := t.TempDir()
	fns := []Func{
		{Name: "operator<<", Entry: 0x1000},
		{Name: "operator>>", Entry: 0x2000},
	}
	if err := Write(dir, fns, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	// Both sanitize to operator__, so the second gets its address.
	for _, file := range []string{"operator__.dot", "operator___2000.dot"} {
		if _, err := os.Stat(filepath.Join(dir, file)); err != nil {
			t.Errorf("missing %s: %v", file, err)
		}
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"main", "main"},
		{"std::vector<int>::push_back(int&&)", "std__vector_int___push_back_int___"},
		{"", "fn"},
		{"_Z3foov", "_Z3foov"},
	}
	for _, tt := range tests {
		if got := sanitize(tt.in); got != tt.want {
			t.Errorf("sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEscape(t *testing.T) {
	if got := escape(`mov x0, "a\b"`); got != `mov x0, \"a\\b\"` {
		t.Errorf("escape = %q", got)
	}
}
