// Package image loads program images behind a registry of named loader
// backends and maps their contents for virtual-address access.
package image

import (
	"debug/elf"
	"fmt"
	"os"
	"sort"
	"strings"
	"syscall"
)

// Backend is a named image loader. Load must either return a fully
// initialized Image or an error, never both.
type Backend interface {
	Name() string
	Load(path string) (*Image, error)
}

var backends = map[string]Backend{}

// RegisterBackend makes a loader available under its name. Later
// registrations replace earlier ones.
func RegisterBackend(b Backend) {
	backends[b.Name()] = b
}

// Backends returns the registered loader names, sorted.
func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load opens path with the named loader backend.
func Load(path, loader string) (*Image, error) {
	b, ok := backends[loader]
	if !ok {
		return nil, fmt.Errorf("unknown loader %q, registered loaders: %s",
			loader, strings.Join(Backends(), ", "))
	}
	return b.Load(path)
}

// Image is a loaded program: the raw bytes mapped read-only, the
// loadable segments for address translation, the sections the pipeline
// cares about, and the defined symbols.
type Image struct {
	Path   string
	Arch   string
	Entry  uint64
	Loads  []Seg
	Text   Section
	Rodata Section
	Data   Section
	PLT    Section
	Syms   []Sym
	All    []byte

	f *os.File
}

// Seg is one loadable segment.
type Seg struct {
	VA, Off, Size uint64
	R, W, X       bool
}

// Section is a named address range with its file offset.
type Section struct {
	Name          string
	VA, Off, Size uint64
}

// Sym is a defined symbol. Func marks function symbols.
type Sym struct {
	Name     string
	VA, Size uint64
	Func     bool
}

// Close unmaps the file and releases the descriptor.
func (im *Image) Close() error {
	var err1, err2 error
	if im.All != nil {
		err1 = syscall.Munmap(im.All)
		im.All = nil
	}
	if im.f != nil {
		err2 = im.f.Close()
		im.f = nil
	}
	if err1 != nil {
		return err1
	}
	return err2
}

// VA2Off translates a virtual address into a file offset using the
// loadable segments. It returns false if va is unmapped.
func (im *Image) VA2Off(va uint64) (uint64, bool) {
	for _, l := range im.Loads {
		if va >= l.VA && va < l.VA+l.Size {
			return l.Off + (va - l.VA), true
		}
	}
	return 0, false
}

// SliceVA returns the mapped bytes for the range [va, va+size).
// It returns (nil, false) if the range is unmapped or out of bounds.
func (im *Image) SliceVA(va, size uint64) ([]byte, bool) {
	off, ok := im.VA2Off(va)
	if !ok {
		return nil, false
	}
	if size == 0 {
		return []byte{}, true
	}
	end := off + size
	if end > uint64(len(im.All)) {
		return nil, false
	}
	return im.All[off:end], true
}

// InText reports whether va lies within the executable section.
func (im *Image) InText(va uint64) bool {
	return im.Text.Size != 0 && va >= im.Text.VA && va < im.Text.VA+im.Text.Size
}

// InRodata reports whether va lies within the read-only data region.
func (im *Image) InRodata(va uint64) bool {
	return im.Rodata.Size != 0 && va >= im.Rodata.VA && va < im.Rodata.VA+im.Rodata.Size
}

// SymbolAt returns the symbol defined exactly at va.
func (im *Image) SymbolAt(va uint64) (Sym, bool) {
	for _, s := range im.Syms {
		if s.VA == va {
			return s, true
		}
	}
	return Sym{}, false
}

// FindSymbol returns the first symbol with the given name.
func (im *Image) FindSymbol(name string) (Sym, bool) {
	for _, s := range im.Syms {
		if s.Name == name {
			return s, true
		}
	}
	return Sym{}, false
}

// ExecRegions returns the executable segments, used when no section
// information narrows the search space.
func (im *Image) ExecRegions() []Seg {
	var regions []Seg
	for _, l := range im.Loads {
		if l.X && l.Size > 0 {
			regions = append(regions, l)
		}
	}
	return regions
}

func archName(m elf.Machine) string {
	switch m {
	case elf.EM_AARCH64:
		return "arm64"
	case elf.EM_X86_64:
		return "x86_64"
	case elf.EM_386:
		return "x86"
	case elf.EM_ARM:
		return "arm"
	default:
		return strings.ToLower(m.String())
	}
}
