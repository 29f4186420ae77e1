package disasm

import (
	"strings"

	"golang.org/x/arch/arm64/arm64asm"
)

type arm64Decoder struct{}

func (arm64Decoder) Arch() string { return "arm64" }

func (arm64Decoder) Decode(b []byte, va uint64) Inst {
	if len(b) < 4 {
		out := Inst{VA: va, Len: len(b), Op: "(bad)", Text: "(bad)", Bad: true}
		copy(out.Enc[:], b)
		return out
	}
	inst, err := arm64asm.Decode(b[:4])
	if err != nil {
		out := Inst{VA: va, Len: 4, Op: "(bad)", Text: "(bad)", Bad: true}
		copy(out.Enc[:], b[:4])
		return out
	}

	out := Inst{
		VA:   va,
		Len:  4,
		Op:   strings.ToLower(inst.Op.String()),
		Text: arm64asm.GNUSyntax(inst),
		A64:  &inst,
	}
	copy(out.Enc[:], b[:4])

	switch inst.Op {
	case arm64asm.B:
		// Plain b has the PC offset first; b.cond carries the
		// condition there instead.
		if _, ok := inst.Args[0].(arm64asm.PCRel); ok {
			out.Jump = true
		} else {
			out.Cond = true
		}
		out.Target, _ = pcRelTarget(inst, va)
	case arm64asm.BL:
		out.Call = true
		out.Target, _ = pcRelTarget(inst, va)
	case arm64asm.BLR:
		out.Call = true
	case arm64asm.BR:
		out.Jump = true
	case arm64asm.RET:
		out.Ret = true
	case arm64asm.CBZ, arm64asm.CBNZ, arm64asm.TBZ, arm64asm.TBNZ:
		out.Cond = true
		out.Target, _ = pcRelTarget(inst, va)
	}
	return out
}

func pcRelTarget(inst arm64asm.Inst, va uint64) (uint64, bool) {
	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		if rel, ok := arg.(arm64asm.PCRel); ok {
			return uint64(int64(va) + int64(rel)), true
		}
	}
	return 0, false
}
