package symbols

import (
	"os/exec"
	"testing"

	"github.com/karatemonkey63/bap-1/internal/options"
)

func TestCachedDemangle(t *testing.T) {
	tests := []struct {
		mangled string
		want    string
	}{
		{"_Z3foov", "foo()"},
		{"_ZN3bar3bazEi", "bar::baz(int)"},
		{"main", "main"},
		{"_start", "_start"},
	}
	for _, tt := range tests {
		if got := CachedDemangle(tt.mangled); got != tt.want {
			t.Errorf("CachedDemangle(%q) = %q, want %q", tt.mangled, got, tt.want)
		}
		// Second call answers from the cache.
		if got := CachedDemangle(tt.mangled); got != tt.want {
			t.Errorf("cached CachedDemangle(%q) = %q, want %q", tt.mangled, got, tt.want)
		}
	}
}

func TestRenamePassthrough(t *testing.T) {
	syms := Rename([]Symbol{{Name: "_Z3foov"}}, nil)
	if syms[0].Demangled != "_Z3foov" {
		t.Errorf("Demangled = %q, want the raw name", syms[0].Demangled)
	}
}

func TestRenameInternal(t *testing.T) {
	syms := Rename([]Symbol{
		{Name: "_Z3foov"},
		{Name: "main"},
	}, &options.Demangle{})
	if syms[0].Demangled != "foo()" {
		t.Errorf("Demangled = %q, want foo()", syms[0].Demangled)
	}
	if syms[1].Demangled != "main" {
		t.Errorf("Demangled = %q, want main", syms[1].Demangled)
	}
}

func TestRenameExternal(t *testing.T) {
	// cat is the identity demangler: every name comes back as itself.
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	syms := Rename([]Symbol{
		{Name: "_Z3foov"},
		{Name: "main"},
	}, &options.Demangle{Program: "cat"})
	if syms[0].Demangled != "_Z3foov" || syms[1].Demangled != "main" {
		t.Errorf("external rename changed names: %+v", syms)
	}
}

func TestRenameExternalFailure(t *testing.T) {
	syms := Rename([]Symbol{{Name: "_Z3foov"}}, &options.Demangle{Program: "/no/such/demangler"})
	if syms[0].Demangled != "_Z3foov" {
		t.Errorf("Demangled = %q, want passthrough on failure", syms[0].Demangled)
	}
}

func TestRenameExternalBadOutput(t *testing.T) {
	// true exits successfully without answering any lines, which is a
	// shape mismatch for two names.
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true not available")
	}
	syms := Rename([]Symbol{
		{Name: "_Z3foov"},
		{Name: "main"},
	}, &options.Demangle{Program: "true"})
	if syms[0].Demangled != "_Z3foov" || syms[1].Demangled != "main" {
		t.Errorf("bad output did not fall back to passthrough: %+v", syms)
	}
}
