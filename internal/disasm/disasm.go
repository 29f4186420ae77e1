// Package disasm decodes machine code into a common instruction
// representation shared by the lifting and output stages.
package disasm

import (
	"fmt"

	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"

	"github.com/karatemonkey63/bap-1/internal/image"
)

// Inst is a decoded instruction. The architecture-specific form is kept
// alongside the rendered text so later stages can inspect operands
// without decoding again.
type Inst struct {
	VA     uint64  // virtual address of instruction
	Len    int     // encoding length in bytes
	Op     string  // mnemonic in lowercase
	Text   string  // formatted disassembly string
	Enc    [4]byte // leading raw bytes of the encoding
	Target uint64  // static transfer destination, 0 when unknown
	Call   bool    // transfers control and returns
	Jump   bool    // unconditional transfer
	Cond   bool    // conditional transfer
	Ret    bool
	Bad    bool // undecodable bytes

	A64 *arm64asm.Inst
	X86 *x86asm.Inst
}

// Stream is a linear sequence of instructions.
type Stream []Inst

// Decoder turns raw bytes at a virtual address into an Inst. Decode
// always makes progress: undecodable input yields a Bad instruction of
// the architecture's minimum width.
type Decoder interface {
	Arch() string
	Decode(b []byte, va uint64) Inst
}

// New returns the decoder for an architecture name as spelled by the
// image loader or the --binary override.
func New(arch string) (Decoder, error) {
	switch arch {
	case "arm64", "aarch64":
		return arm64Decoder{}, nil
	case "x86_64", "x86-64", "amd64":
		return x86Decoder{}, nil
	default:
		return nil, fmt.Errorf("unsupported architecture %q, supported: arm64, x86_64", arch)
	}
}

// Linear decodes exactly the byte range [va, va+size) from the image.
func Linear(d Decoder, img *image.Image, va, size uint64) (Stream, error) {
	data, ok := img.SliceVA(va, size)
	if !ok {
		return nil, fmt.Errorf("failed to read code at %x", va)
	}
	var out Stream
	for off := 0; off < len(data); {
		inst := d.Decode(data[off:], va+uint64(off))
		out = append(out, inst)
		off += inst.Len
	}
	return out, nil
}

// maxFuncInsts bounds decoding of functions with unknown size.
const maxFuncInsts = 4096

// Function decodes a function body. With a known size the range is
// decoded exactly; with size 0 decoding runs until the first return,
// undecodable word, or the instruction limit.
func Function(d Decoder, img *image.Image, va, size uint64) (Stream, error) {
	if size > 0 {
		return Linear(d, img, va, size)
	}
	var out Stream
	pc := va
	for len(out) < maxFuncInsts {
		data, ok := img.SliceVA(pc, 16)
		if !ok {
			if data, ok = img.SliceVA(pc, 4); !ok {
				break
			}
		}
		inst := d.Decode(data, pc)
		out = append(out, inst)
		pc += uint64(inst.Len)
		if inst.Ret || inst.Bad {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("failed to read code at %x", va)
	}
	return out, nil
}

// CallTargets collects the static call destinations of a stream, in
// order of appearance, without duplicates.
func CallTargets(s Stream) []uint64 {
	var out []uint64
	seen := map[uint64]bool{}
	for _, inst := range s {
		if inst.Call && inst.Target != 0 && !seen[inst.Target] {
			seen[inst.Target] = true
			out = append(out, inst.Target)
		}
	}
	return out
}
