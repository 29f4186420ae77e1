package symbols

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/ianlancetaylor/demangle"

	"github.com/karatemonkey63/bap-1/internal/options"
)

type demangleCache struct {
	mu    sync.RWMutex
	names map[string]string
}

var cache = &demangleCache{names: make(map[string]string)}

// CachedDemangle demangles a single name through the in-process
// demangler, memoizing results. Names the demangler does not
// recognize come back unchanged.
func CachedDemangle(mangled string) string {
	cache.mu.RLock()
	if d, ok := cache.names[mangled]; ok {
		cache.mu.RUnlock()
		return d
	}
	cache.mu.RUnlock()

	d := demangle.Filter(mangled, demangle.NoClones)

	cache.mu.Lock()
	cache.names[mangled] = d
	cache.mu.Unlock()
	return d
}

// Rename fills every symbol's Demangled field according to the
// selected tool. With no tool selected names pass through unchanged.
// An external tool receives all names on stdin, one per line, and
// must answer with one demangled name per line; if it fails or
// answers out of shape, names pass through and the failure is logged.
func Rename(syms []Symbol, tool *options.Demangle) []Symbol {
	switch {
	case tool == nil:
		for i := range syms {
			syms[i].Demangled = syms[i].Name
		}
	case tool.Program == "":
		for i := range syms {
			syms[i].Demangled = CachedDemangle(syms[i].Name)
		}
	default:
		names := make([]string, len(syms))
		for i, s := range syms {
			names[i] = s.Name
		}
		demangled, err := runTool(tool.Program, names)
		if err != nil {
			slog.Warn("external demangler failed, keeping raw names", "program", tool.Program, "error", err)
			demangled = names
		}
		for i := range syms {
			syms[i].Demangled = demangled[i]
		}
	}
	return syms
}

// runTool pipes names through an external demangler in one batch.
func runTool(program string, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	cmd := exec.Command(program)
	cmd.Stdin = strings.NewReader(strings.Join(names, "\n") + "\n")
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = io.Discard
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("run %s: %w", program, err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != len(names) {
		return nil, fmt.Errorf("%s answered %d lines for %d names", program, len(lines), len(names))
	}
	return lines, nil
}
