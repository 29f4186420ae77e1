// Package symbols recovers function symbols from the available
// sources and names them: the image's own tables, a user-provided
// symbol file, and heuristic start addresses.
package symbols

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/karatemonkey63/bap-1/internal/image"
	"github.com/karatemonkey63/bap-1/internal/options"
)

// Source records where a symbol came from. File symbols override
// image symbols, which override heuristic starts.
type Source string

const (
	SourceImage      Source = "image"
	SourceFile       Source = "file"
	SourceByteweight Source = "byteweight"
)

type Symbol struct {
	Name      string
	Demangled string
	VA        uint64
	Size      uint64
	Source    Source
}

// FromImage extracts the function symbols of a loaded image.
func FromImage(img *image.Image) []Symbol {
	var out []Symbol
	for _, s := range img.Syms {
		if !s.Func {
			continue
		}
		out = append(out, Symbol{
			Name:   s.Name,
			VA:     s.VA,
			Size:   s.Size,
			Source: SourceImage,
		})
	}
	return out
}

// Load reads a symbol file: one symbol per line as
// "<start> <end> <name>", addresses in decimal or 0x hex. Blank lines
// and # comments are ignored.
func Load(path string) ([]Symbol, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open syms: %w", err)
	}
	defer f.Close()

	var out []Symbol
	sc := bufio.NewScanner(f)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("%s:%d: want \"<start> <end> <name>\", got %d fields", path, lineno, len(fields))
		}
		start, err := strconv.ParseUint(fields[0], 0, 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: bad start address %q", path, lineno, fields[0])
		}
		end, err := strconv.ParseUint(fields[1], 0, 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: bad end address %q", path, lineno, fields[1])
		}
		if end < start {
			return nil, fmt.Errorf("%s:%d: end %#x before start %#x", path, lineno, end, start)
		}
		out = append(out, Symbol{
			Name:   fields[2],
			VA:     start,
			Size:   end - start,
			Source: SourceFile,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read syms: %w", err)
	}
	return out, nil
}

// Merge combines the sources in priority order. File symbols win over
// image symbols at the same address, and heuristic starts only fill
// addresses nothing else names. The result is deduplicated by address
// and sorted.
func Merge(fromFile, fromImage []Symbol, starts []uint64) []Symbol {
	seen := make(map[uint64]bool)
	var out []Symbol
	for _, s := range fromFile {
		if seen[s.VA] {
			continue
		}
		seen[s.VA] = true
		out = append(out, s)
	}
	for _, s := range fromImage {
		if seen[s.VA] {
			continue
		}
		seen[s.VA] = true
		out = append(out, s)
	}
	for _, va := range starts {
		if seen[va] {
			continue
		}
		seen[va] = true
		out = append(out, Symbol{
			Name:   fmt.Sprintf("sub_%x", va),
			VA:     va,
			Source: SourceByteweight,
		})
	}
	slices.SortFunc(out, func(a, b Symbol) int {
		switch {
		case a.VA < b.VA:
			return -1
		case a.VA > b.VA:
			return 1
		}
		return 0
	})
	return out
}

// Print writes one line per symbol with the selected columns, in
// exactly the order they were requested. The name column prefers the
// demangled form when one has been filled in.
func Print(w io.Writer, syms []Symbol, fields []options.SymField) {
	for _, s := range syms {
		cols := make([]string, 0, len(fields))
		for _, f := range fields {
			switch f {
			case options.FieldAddr:
				cols = append(cols, fmt.Sprintf("%#x", s.VA))
			case options.FieldSize:
				cols = append(cols, strconv.FormatUint(s.Size, 10))
			default:
				name := s.Demangled
				if name == "" {
					name = s.Name
				}
				cols = append(cols, name)
			}
		}
		fmt.Fprintln(w, strings.Join(cols, " "))
	}
}

// Lookup returns a name-by-address function over the table, for
// callers that symbolize branch targets.
func Lookup(syms []Symbol) func(uint64) string {
	byVA := make(map[uint64]string, len(syms))
	for _, s := range syms {
		if _, ok := byVA[s.VA]; !ok {
			byVA[s.VA] = s.Name
		}
	}
	return func(va uint64) string { return byVA[va] }
}
