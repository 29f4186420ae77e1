package disasm

import (
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

type x86Decoder struct{}

func (x86Decoder) Arch() string { return "x86_64" }

func (x86Decoder) Decode(b []byte, va uint64) Inst {
	inst, err := x86asm.Decode(b, 64)
	if err != nil {
		out := Inst{VA: va, Len: 1, Op: "(bad)", Text: "(bad)", Bad: true}
		if len(b) > 0 {
			out.Enc[0] = b[0]
		}
		return out
	}

	out := Inst{
		VA:   va,
		Len:  inst.Len,
		Op:   strings.ToLower(inst.Op.String()),
		Text: x86asm.GNUSyntax(inst, va, nil),
		X86:  &inst,
	}
	copy(out.Enc[:], b[:min(4, inst.Len)])

	switch inst.Op {
	case x86asm.CALL:
		out.Call = true
		out.Target, _ = relTarget(inst, va)
	case x86asm.JMP:
		out.Jump = true
		out.Target, _ = relTarget(inst, va)
	case x86asm.RET, x86asm.LRET:
		out.Ret = true
	default:
		// Every remaining j* mnemonic is a conditional jump, as are
		// the loop forms.
		if strings.HasPrefix(out.Op, "j") || strings.HasPrefix(out.Op, "loop") {
			out.Cond = true
			out.Target, _ = relTarget(inst, va)
		}
	}
	return out
}

func relTarget(inst x86asm.Inst, va uint64) (uint64, bool) {
	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		if rel, ok := arg.(x86asm.Rel); ok {
			return uint64(int64(va) + int64(inst.Len) + int64(rel)), true
		}
	}
	return 0, false
}
