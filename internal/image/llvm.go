package image

import (
	"debug/elf"
	"fmt"
	"os"
	"syscall"

	"github.com/karatemonkey63/bap-1/internal/logging"
)

// llvmBackend is the default loader. The name is what the command line
// expects for ELF input; the implementation is native.
type llvmBackend struct{}

func init() {
	RegisterBackend(llvmBackend{})
}

func (llvmBackend) Name() string { return "llvm" }

func (llvmBackend) Load(path string) (*Image, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open elf: %w", err)
	}
	defer f.Close()

	of, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	fi, err := of.Stat()
	if err != nil {
		of.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}

	all, err := syscall.Mmap(int(of.Fd()), 0, int(fi.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		of.Close()
		return nil, fmt.Errorf("mmap file: %w", err)
	}

	im := &Image{
		Path:  path,
		Arch:  archName(f.Machine),
		Entry: f.Entry,
		All:   all,
		f:     of,
	}

	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		im.Loads = append(im.Loads, Seg{
			VA:   p.Vaddr,
			Off:  p.Off,
			Size: p.Filesz,
			R:    p.Flags&elf.PF_R != 0,
			W:    p.Flags&elf.PF_W != 0,
			X:    p.Flags&elf.PF_X != 0,
		})
	}

	// Use true sections if present.
	for _, s := range f.Sections {
		switch s.Name {
		case ".text":
			im.Text = Section{s.Name, s.Addr, s.Offset, s.Size}
		case ".rodata", ".rodata.rel.ro":
			if im.Rodata.Size == 0 {
				im.Rodata = Section{s.Name, s.Addr, s.Offset, s.Size}
			}
		case ".data":
			im.Data = Section{s.Name, s.Addr, s.Offset, s.Size}
		case ".plt":
			im.PLT = Section{s.Name, s.Addr, s.Offset, s.Size}
		}
	}

	im.loadSymbols(f)

	// Fallbacks if stripped.
	if im.Text.Size == 0 {
		for _, l := range im.Loads {
			if l.X && l.Size > 0 {
				im.Text = Section{"LOAD(exec)", l.VA, l.Off, l.Size}
				break
			}
		}
	}
	if im.Rodata.Size == 0 {
		for _, l := range im.Loads {
			if l.R && !l.W && !l.X && l.Size > 0 {
				im.Rodata = Section{"LOAD(ro)", l.VA, l.Off, l.Size}
				break
			}
		}
	}

	if logging.IsDebug() {
		lg := logging.NewLogger()
		lg.Debug("loaded image",
			"path", path,
			"arch", im.Arch,
			"entry", fmt.Sprintf("0x%x", im.Entry),
			"segments", len(im.Loads),
			"symbols", len(im.Syms))
	}
	return im, nil
}

// loadSymbols merges the static and dynamic tables, keeping defined
// symbols only. Either table may be absent in stripped binaries.
func (im *Image) loadSymbols(f *elf.File) {
	seen := map[uint64]bool{}
	add := func(syms []elf.Symbol) {
		for _, sym := range syms {
			if sym.Value == 0 || sym.Name == "" {
				continue
			}
			if elf.ST_TYPE(sym.Info) == elf.STT_SECTION {
				continue
			}
			if seen[sym.Value] {
				continue
			}
			seen[sym.Value] = true
			im.Syms = append(im.Syms, Sym{
				Name: sym.Name,
				VA:   sym.Value,
				Size: sym.Size,
				Func: elf.ST_TYPE(sym.Info) == elf.STT_FUNC,
			})
		}
	}

	if syms, err := f.Symbols(); err == nil {
		add(syms)
	}
	if dyns, err := f.DynamicSymbols(); err == nil {
		add(dyns)
	}
}
