// Package plugin resolves requested plugin names to files on the
// plugin search path. Loading and running plugins is somebody else's
// business; we only say where they are.
package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/karatemonkey63/bap-1/internal/options"
)

// PathEnv is the environment list of extra plugin directories.
const PathEnv = "BAP_PLUGIN_PATH"

// SearchPath returns the directories consulted in priority order:
// the --load-path flags, then PathEnv entries, then the user's
// ~/.bap/plugins.
func SearchPath(extra []string) []string {
	dirs := slices.Clone(extra)
	if env := os.Getenv(PathEnv); env != "" {
		for _, d := range strings.Split(env, string(filepath.ListSeparator)) {
			if d != "" {
				dirs = append(dirs, d)
			}
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".bap", "plugins"))
	}
	return dirs
}

// Find returns the file of the named plugin, taking the first
// <dir>/<name>.plugin that exists along the path.
func Find(name string, dirs []string) (string, error) {
	for _, d := range dirs {
		p := filepath.Join(d, name+".plugin")
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("plugin %q not found on search path", name)
}

// Resolve maps every requested plugin to its file. Plugins that were
// found are always returned; the names that were not are collected
// into one error.
func Resolve(opts *options.Options) (map[string]string, error) {
	dirs := SearchPath(opts.LoadPath)
	found := make(map[string]string, len(opts.Load))
	var missing []string
	for _, name := range opts.Load {
		p, err := Find(name, dirs)
		if err != nil {
			missing = append(missing, name)
			continue
		}
		found[name] = p
	}
	if len(missing) > 0 {
		return found, fmt.Errorf("plugins not found: %s", strings.Join(missing, ", "))
	}
	return found, nil
}
