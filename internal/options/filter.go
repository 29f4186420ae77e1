package options

import (
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
)

// PeekLoads extracts the plugin names requested with --load/-l from raw
// argv before the strict parse runs. Every other token is ignored and no
// validation is performed. The peek never fails: when it cannot determine
// the plugin list it logs a warning and reports an empty one.
func PeekLoads(argv []string) []string {
	fs := pflag.NewFlagSet("peek", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.SetOutput(io.Discard)
	loads := fs.StringArrayP("load", "l", nil, "")
	if err := fs.Parse(argv); err != nil {
		slog.Warn("could not peek plugin names, continuing without plugins", "error", err)
		return nil
	}
	if len(*loads) == 0 {
		slog.Warn("no plugins requested")
		return nil
	}
	return *loads
}

// FilterArgs returns a new token sequence with every plugin-namespaced
// token removed. A token belongs to plugin p when it is exactly, or
// starts with, "--p-". Matching is literal, not flag parsing: by this
// point the schema has no entries for plugin flags. A matched token
// without '=' also consumes an immediately following non-dash token as
// its argument. Survivors keep their relative order and argv itself is
// never modified, so running the filter twice changes nothing.
func FilterArgs(argv, plugins []string) []string {
	out := make([]string, 0, len(argv))
	prefixes := make([]string, len(plugins))
	for i, p := range plugins {
		prefixes[i] = "--" + p + "-"
	}
	for i := 0; i < len(argv); i++ {
		tok := argv[i]
		if !pluginToken(tok, prefixes) {
			out = append(out, tok)
			continue
		}
		if !strings.Contains(tok, "=") && i+1 < len(argv) && !strings.HasPrefix(argv[i+1], "-") {
			i++
		}
	}
	return out
}

func pluginToken(tok string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(tok, prefix) {
			return true
		}
	}
	return false
}
