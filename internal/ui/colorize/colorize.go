// Package colorize applies terminal syntax highlighting to
// disassembly and lifted code through chroma.
package colorize

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// Disabled reports whether color output is suppressed through the
// environment.
func Disabled() bool {
	return os.Getenv("BAP_NO_COLOR") != "" || os.Getenv("NO_COLOR") != ""
}

// getAssemblyLexer returns an assembly lexer for the architecture with
// fallbacks
func getAssemblyLexer(arch string) chroma.Lexer {
	// Try lexers in order of preference
	candidates := []string{"armasm", "gas", "nasm"}
	switch arch {
	case "x86_64", "x86-64", "amd64":
		candidates = []string{"nasm", "gas"}
	}
	for _, name := range candidates {
		if lexer := lexers.Get(name); lexer != nil {
			return lexer
		}
	}
	return nil
}

// getBILLexer returns a lexer for lifted statements with fallbacks
func getBILLexer() chroma.Lexer {
	// No dedicated lexer exists for the lifted form; nasm tokenizes
	// its names and numbers well enough.
	candidates := []string{"bil", "nasm", "gas"}
	for _, name := range candidates {
		if lexer := lexers.Get(name); lexer != nil {
			return lexer
		}
	}
	return nil
}

// getDisasmStyle returns the disassembly style with fallbacks
func getDisasmStyle() *chroma.Style {
	// Try our custom style first, then fallbacks
	candidates := []string{"disasm-dark", "dracula", "monokai"}
	for _, name := range candidates {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

// getTerminalFormatter returns an appropriate terminal formatter
func getTerminalFormatter() chroma.Formatter {
	// Try high-color first, then fallback
	candidates := []string{"terminal16m", "terminal256"}
	for _, name := range candidates {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

func render(code string, lexer chroma.Lexer) (string, error) {
	if Disabled() || lexer == nil {
		return code, nil
	}

	// Make sure our custom style is registered
	_ = DisasmDark

	style := getDisasmStyle()
	formatter := getTerminalFormatter()

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code, err
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code, err
	}
	return buf.String(), nil
}

// ColorizeAssembly applies syntax highlighting to disassembly text.
func ColorizeAssembly(code, arch string) (string, error) {
	return render(code, getAssemblyLexer(arch))
}

// ColorizeBIL applies syntax highlighting to lifted statements.
func ColorizeBIL(code string) (string, error) {
	return render(code, getBILLexer())
}

// ColorizeInstructionLine colorizes a single dump line while preserving
// its formatting. Lines look like "4003e0: mov x0, x1" with the address
// in plain hex, optionally followed by a colon. The result never gains
// a trailing newline, whatever the lexer appends.
func ColorizeInstructionLine(line, arch string) string {
	if Disabled() {
		return line
	}

	parts := strings.SplitN(line, " ", 2)
	if len(parts) < 2 {
		return colorizeWholeLine(line, arch)
	}

	addr := strings.TrimSuffix(parts[0], ":")
	if addr == "" {
		return colorizeWholeLine(line, arch)
	}
	for _, ch := range addr {
		if !isHexChar(byte(ch)) {
			return colorizeWholeLine(line, arch)
		}
	}

	// Address in gray, the rest through the lexer.
	addrColored := fmt.Sprintf("\033[38;2;79;79;79m%s\033[0m", parts[0])
	rest, _ := ColorizeAssembly(parts[1], arch)
	return fmt.Sprintf("%s %s", addrColored, strings.TrimRight(rest, "\n"))
}

func colorizeWholeLine(line, arch string) string {
	out, _ := ColorizeAssembly(line, arch)
	return strings.TrimRight(out, "\n")
}

// isHexChar checks if a character is a hexadecimal digit
func isHexChar(ch byte) bool {
	return (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

// StripANSI removes ANSI escape codes and returns the plain string
func StripANSI(s string) string {
	var result strings.Builder
	inEscape := false

	for _, r := range s {
		if r == '\x1b' {
			inEscape = true
		} else if inEscape {
			if r == 'm' {
				inEscape = false
			}
		} else {
			result.WriteRune(r)
		}
	}

	return result.String()
}
