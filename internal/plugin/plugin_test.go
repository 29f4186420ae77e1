package plugin

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/karatemonkey63/bap-1/internal/options"
)

func touchPlugin(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name+".plugin")
	if err := os.WriteFile(path, []byte("#!plugin\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSearchPathOrder(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(PathEnv, "/env/a"+string(filepath.ListSeparator)+"/env/b")

	dirs := SearchPath([]string{"/flag/one"})
	want := []string{
		"/flag/one",
		"/env/a",
		"/env/b",
		filepath.Join(home, ".bap", "plugins"),
	}
	if len(dirs) != len(want) {
		t.Fatalf("got %d dirs %v, want %d", len(dirs), dirs, len(want))
	}
	for i := range want {
		if dirs[i] != want[i] {
			t.Errorf("dirs[%d] = %q, want %q", i, dirs[i], want[i])
		}
	}
}

func TestSearchPathSkipsEmptyEnvEntries(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(PathEnv, string(filepath.ListSeparator)+"/only")
	dirs := SearchPath(nil)
	if dirs[0] != "/only" {
		t.Errorf("dirs = %v, want /only first", dirs)
	}
}

func TestFind(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	touchPlugin(t, second, "llvm")
	wantPath := touchPlugin(t, first, "llvm")

	got, err := Find("llvm", []string{first, second})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got != wantPath {
		t.Errorf("Find = %q, want the first hit %q", got, wantPath)
	}

	if _, err := Find("missing", []string{first, second}); err == nil {
		t.Error("Find of a missing plugin succeeded")
	}
}

func TestFindIgnoresDirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "trap.plugin"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := Find("trap", []string{dir}); err == nil {
		t.Error("Find matched a directory")
	}
}

func TestResolve(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(PathEnv, "")
	dir := t.TempDir()
	touchPlugin(t, dir, "llvm")

	opts := &options.Options{
		Load:     []string{"llvm", "ghost", "phantom"},
		LoadPath: []string{dir},
	}
	found, err := Resolve(opts)
	if err == nil {
		t.Fatal("Resolve succeeded with missing plugins")
	}
	if !strings.Contains(err.Error(), "ghost") || !strings.Contains(err.Error(), "phantom") {
		t.Errorf("error does not name the misses: %v", err)
	}
	if len(found) != 1 || found["llvm"] == "" {
		t.Errorf("found = %v, want llvm only", found)
	}

	opts.Load = []string{"llvm"}
	found, err = Resolve(opts)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, ok := found["llvm"]; !ok {
		t.Errorf("found = %v", found)
	}
}
