package symbols

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/karatemonkey63/bap-1/internal/image"
	"github.com/karatemonkey63/bap-1/internal/options"
)

func writeSyms(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "syms")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeSyms(t, `# functions recovered by hand
0x400100 0x400140 main

4194624 4194640 helper
0x400200 0x400200 empty_stub
`)
	syms, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []Symbol{
		{Name: "main", VA: 0x400100, Size: 0x40, Source: SourceFile},
		{Name: "helper", VA: 0x400140, Size: 0x10, Source: SourceFile},
		{Name: "empty_stub", VA: 0x400200, Size: 0, Source: SourceFile},
	}
	if len(syms) != len(want) {
		t.Fatalf("got %d symbols, want %d", len(syms), len(want))
	}
	for i, w := range want {
		if syms[i] != w {
			t.Errorf("symbol %d = %+v, want %+v", i, syms[i], w)
		}
	}
}

func TestLoadRejectsMalformedLines(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"too few fields", "0x400100 main"},
		{"too many fields", "0x400100 0x400140 main extra"},
		{"bad start", "zzz 0x400140 main"},
		{"bad end", "0x400100 zzz main"},
		{"end before start", "0x400140 0x400100 main"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSyms(t, tt.line+"\n")
			if _, err := Load(path); err == nil {
				t.Errorf("Load(%q) succeeded, want error", tt.line)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("Load of missing file succeeded")
	}
}

func TestFromImage(t *testing.T) {
	img := &image.Image{
		Syms: []image.Sym{
			{Name: "main", VA: 0x1000, Size: 32, Func: true},
			{Name: "global_counter", VA: 0x2000, Size: 8, Func: false},
			{Name: "helper", VA: 0x1040, Size: 16, Func: true},
		},
	}
	syms := FromImage(img)
	if len(syms) != 2 {
		t.Fatalf("got %d symbols, want 2", len(syms))
	}
	for _, s := range syms {
		if s.Source != SourceImage {
			t.Errorf("%s has source %q, want %q", s.Name, s.Source, SourceImage)
		}
		if s.Name == "global_counter" {
			t.Error("data symbol made it into the function table")
		}
	}
}

func TestMerge(t *testing.T) {
	fromFile := []Symbol{
		{Name: "entry", VA: 0x1000, Size: 64, Source: SourceFile},
	}
	fromImage := []Symbol{
		{Name: "_start", VA: 0x1000, Size: 48, Source: SourceImage},
		{Name: "main", VA: 0x1100, Size: 32, Source: SourceImage},
	}
	starts := []uint64{0x1100, 0x1200}

	syms := Merge(fromFile, fromImage, starts)
	if len(syms) != 3 {
		t.Fatalf("got %d symbols, want 3: %+v", len(syms), syms)
	}

	// File symbol wins the 0x1000 slot, heuristics only fill 0x1200.
	if syms[0].Name != "entry" || syms[0].Source != SourceFile {
		t.Errorf("symbol at 0x1000 = %+v, want the file's entry", syms[0])
	}
	if syms[1].Name != "main" || syms[1].Source != SourceImage {
		t.Errorf("symbol at 0x1100 = %+v, want the image's main", syms[1])
	}
	if syms[2].Name != "sub_1200" || syms[2].Source != SourceByteweight {
		t.Errorf("symbol at 0x1200 = %+v, want sub_1200", syms[2])
	}
}

func TestMergeSortsByAddress(t *testing.T) {
	syms := Merge(nil, []Symbol{
		{Name: "late", VA: 0x3000},
		{Name: "early", VA: 0x1000},
		{Name: "mid", VA: 0x2000},
	}, nil)
	var got []string
	for _, s := range syms {
		got = append(got, s.Name)
	}
	if strings.Join(got, ",") != "early,mid,late" {
		t.Errorf("merge order = %v", got)
	}
}

func TestPrint(t *testing.T) {
	syms := []Symbol{
		{Name: "_Z3foov", Demangled: "foo()", VA: 0x400100, Size: 64},
		{Name: "main", VA: 0x400200, Size: 32},
	}
	tests := []struct {
		name   string
		fields []options.SymField
		want   string
	}{
		{
			"name only",
			[]options.SymField{options.FieldName},
			"foo()\nmain\n",
		},
		{
			"addr then name",
			[]options.SymField{options.FieldAddr, options.FieldName},
			"0x400100 foo()\n0x400200 main\n",
		},
		{
			"repeated fields keep order",
			[]options.SymField{options.FieldName, options.FieldSize, options.FieldName},
			"foo() 64 foo()\nmain 32 main\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Print(&buf, syms, tt.fields)
			if buf.String() != tt.want {
				t.Errorf("Print = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	name := Lookup([]Symbol{
		{Name: "main", VA: 0x1000},
		{Name: "helper", VA: 0x1100},
	})
	if got := name(0x1100); got != "helper" {
		t.Errorf("name(0x1100) = %q, want helper", got)
	}
	if got := name(0x9999); got != "" {
		t.Errorf("name(0x9999) = %q, want empty", got)
	}
}
