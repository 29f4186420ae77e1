package bil

import (
	"strconv"
	"strings"

	"golang.org/x/arch/arm64/arm64asm"

	"github.com/karatemonkey63/bap-1/internal/disasm"
)

var arm64BinOps = map[arm64asm.Op]string{
	arm64asm.ADD:  "+",
	arm64asm.SUB:  "-",
	arm64asm.AND:  "&",
	arm64asm.ORR:  "|",
	arm64asm.EOR:  "^",
	arm64asm.MUL:  "*",
	arm64asm.UDIV: "/",
	arm64asm.SDIV: "/$",
	arm64asm.LSL:  "<<",
	arm64asm.LSR:  ">>",
	arm64asm.ASR:  "~>>",
}

func (l *Lifter) liftArm64(inst disasm.Inst) []Stmt {
	a := inst.A64
	if a == nil {
		return special(inst)
	}
	switch a.Op {
	case arm64asm.NOP:
		return nil

	case arm64asm.MOV, arm64asm.MOVZ:
		dst, ok := arm64RegVar(a.Args[0])
		if !ok {
			return special(inst)
		}
		if arm64IsZero(dst) {
			return nil
		}
		src := arm64Operand(a.Args[1], dst.Bits)
		if src == nil {
			return special(inst)
		}
		return []Stmt{Move{Var: dst, Exp: src}}

	case arm64asm.ADD, arm64asm.SUB, arm64asm.AND, arm64asm.ORR, arm64asm.EOR,
		arm64asm.MUL, arm64asm.UDIV, arm64asm.SDIV,
		arm64asm.LSL, arm64asm.LSR, arm64asm.ASR:
		dst, ok := arm64RegVar(a.Args[0])
		if !ok {
			return special(inst)
		}
		x := arm64Operand(a.Args[1], dst.Bits)
		y := arm64Operand(a.Args[2], dst.Bits)
		if x == nil || y == nil {
			return special(inst)
		}
		if arm64IsZero(dst) {
			return nil
		}
		return []Stmt{Move{Var: dst, Exp: BinOp{Op: arm64BinOps[a.Op], L: x, R: y}}}

	case arm64asm.CMP:
		x := arm64Operand(a.Args[0], 64)
		y := arm64Operand(a.Args[1], arm64OperandBits(x))
		if x == nil || y == nil {
			return special(inst)
		}
		return l.compare("-", x, y, arm64OperandBits(x), "ZF", "NF")

	case arm64asm.TST:
		x := arm64Operand(a.Args[0], 64)
		y := arm64Operand(a.Args[1], arm64OperandBits(x))
		if x == nil || y == nil {
			return special(inst)
		}
		return l.compare("&", x, y, arm64OperandBits(x), "ZF", "NF")

	case arm64asm.LDR, arm64asm.LDRB, arm64asm.LDRH, arm64asm.LDRSW:
		dst, ok := arm64RegVar(a.Args[0])
		if !ok || arm64IsZero(dst) {
			return special(inst)
		}
		m, ok := a.Args[1].(arm64asm.MemImmediate)
		if !ok {
			return special(inst)
		}
		addr, ok := arm64Addr(m)
		if !ok {
			return special(inst)
		}
		t := l.fresh(64)
		return []Stmt{
			Move{Var: t, Exp: addr},
			Move{Var: dst, Exp: Load{Mem: mem, Addr: t, Bits: arm64AccessBits(a.Op, dst)}},
		}

	case arm64asm.STR, arm64asm.STRB, arm64asm.STRH:
		src, ok := arm64RegVar(a.Args[0])
		if !ok {
			return special(inst)
		}
		m, ok := a.Args[1].(arm64asm.MemImmediate)
		if !ok {
			return special(inst)
		}
		addr, ok := arm64Addr(m)
		if !ok {
			return special(inst)
		}
		bits := arm64AccessBits(a.Op, src)
		var val Exp = src
		if arm64IsZero(src) {
			val = Int{Val: 0, Bits: bits}
		}
		t := l.fresh(64)
		return []Stmt{
			Move{Var: t, Exp: addr},
			Move{Var: mem, Exp: Store{Mem: mem, Addr: t, Val: val, Bits: bits}},
		}

	case arm64asm.ADR:
		dst, ok := arm64RegVar(a.Args[0])
		if !ok {
			return special(inst)
		}
		rel, ok := a.Args[1].(arm64asm.PCRel)
		if !ok {
			return special(inst)
		}
		return []Stmt{Move{Var: dst, Exp: Int{Val: uint64(int64(inst.VA) + int64(rel)), Bits: 64}}}

	case arm64asm.ADRP:
		dst, ok := arm64RegVar(a.Args[0])
		if !ok {
			return special(inst)
		}
		rel, ok := a.Args[1].(arm64asm.PCRel)
		if !ok {
			return special(inst)
		}
		return []Stmt{Move{Var: dst, Exp: Int{Val: (inst.VA &^ 0xfff) + uint64(int64(rel)), Bits: 64}}}
	}
	return special(inst)
}

// arm64Cond builds the condition of a conditional branch. For b.cond
// the condition name only shows up in the disassembly text, so it is
// parsed from there.
func (l *Lifter) arm64Cond(inst disasm.Inst) Exp {
	a := inst.A64
	if a == nil {
		return nil
	}
	switch a.Op {
	case arm64asm.CBZ, arm64asm.CBNZ:
		r := arm64Operand(a.Args[0], 64)
		if r == nil {
			return nil
		}
		op := "="
		if a.Op == arm64asm.CBNZ {
			op = "<>"
		}
		bits := arm64OperandBits(r)
		return BinOp{Op: op, L: r, R: Int{Val: 0, Bits: bits}}

	case arm64asm.TBZ, arm64asm.TBNZ:
		r := arm64Operand(a.Args[0], 64)
		bit, ok := arm64Imm(a.Args[1])
		if r == nil || !ok || bit > 63 {
			return nil
		}
		op := "="
		if a.Op == arm64asm.TBNZ {
			op = "<>"
		}
		bits := arm64OperandBits(r)
		masked := BinOp{Op: "&", L: r, R: Int{Val: 1 << bit, Bits: bits}}
		return BinOp{Op: op, L: masked, R: Int{Val: 0, Bits: bits}}

	case arm64asm.B:
		fields := strings.Fields(inst.Text)
		if len(fields) == 0 || !strings.HasPrefix(fields[0], "b.") {
			return nil
		}
		return arm64CondExp(strings.TrimPrefix(fields[0], "b."))
	}
	return nil
}

func arm64CondExp(name string) Exp {
	switch name {
	case "eq":
		return flagIs("ZF", 1)
	case "ne":
		return flagIs("ZF", 0)
	case "cs", "hs":
		return flagIs("CF", 1)
	case "cc", "lo":
		return flagIs("CF", 0)
	case "mi":
		return flagIs("NF", 1)
	case "pl":
		return flagIs("NF", 0)
	case "vs":
		return flagIs("VF", 1)
	case "vc":
		return flagIs("VF", 0)
	case "hi":
		return both(flagIs("CF", 1), flagIs("ZF", 0))
	case "ls":
		return either(flagIs("CF", 0), flagIs("ZF", 1))
	case "ge":
		return flagsMatch("NF", "VF")
	case "lt":
		return flagsDiffer("NF", "VF")
	case "gt":
		return both(flagIs("ZF", 0), flagsMatch("NF", "VF"))
	case "le":
		return either(flagIs("ZF", 1), flagsDiffer("NF", "VF"))
	case "al":
		return Int{Val: 1, Bits: 1}
	}
	return nil
}

// arm64RegVar extracts a plain register operand. The RegSP form keeps
// its own String method because the zero-register and stack-pointer
// encodings collide in the Reg numbering.
func arm64RegVar(arg arm64asm.Arg) (Var, bool) {
	switch a := arg.(type) {
	case arm64asm.Reg:
		name := strings.ToLower(a.String())
		return Var{Name: name, Bits: arm64RegBits(name)}, true
	case arm64asm.RegSP:
		name := strings.ToLower(a.String())
		return Var{Name: name, Bits: arm64RegBits(name)}, true
	}
	return Var{}, false
}

func arm64IsZero(v Var) bool { return v.Name == "xzr" || v.Name == "wzr" }

func arm64RegBits(name string) int {
	if strings.HasPrefix(name, "w") {
		return 32
	}
	return 64
}

// arm64Operand lifts a source operand: a register, the zero register,
// or an immediate of the destination's width.
func arm64Operand(arg arm64asm.Arg, bits int) Exp {
	if v, ok := arm64RegVar(arg); ok {
		if arm64IsZero(v) {
			return Int{Val: 0, Bits: v.Bits}
		}
		return v
	}
	if imm, ok := arm64Imm(arg); ok {
		return Int{Val: imm, Bits: bits}
	}
	return nil
}

func arm64OperandBits(e Exp) int {
	switch v := e.(type) {
	case Var:
		return v.Bits
	case Int:
		return v.Bits
	}
	return 64
}

// arm64Imm extracts an immediate. ImmShift keeps its fields to
// itself, so shifted forms come back through their printed
// representation and anything carrying an actual shift is rejected.
func arm64Imm(arg arm64asm.Arg) (uint64, bool) {
	switch a := arg.(type) {
	case arm64asm.Imm:
		return uint64(a.Imm), true
	case arm64asm.Imm64:
		return a.Imm, true
	case arm64asm.ImmShift:
		s := a.String()
		if !strings.HasPrefix(s, "#") || strings.Contains(s, ",") {
			return 0, false
		}
		v, err := strconv.ParseUint(strings.TrimPrefix(s, "#"), 0, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

func arm64AccessBits(op arm64asm.Op, reg Var) int {
	switch op {
	case arm64asm.LDRB, arm64asm.STRB:
		return 8
	case arm64asm.LDRH, arm64asm.STRH:
		return 16
	case arm64asm.LDRSW:
		return 32
	}
	return reg.Bits
}

// arm64Addr builds the effective address of a base-plus-offset
// operand. The displacement is only reachable through the printed
// form, like "[X1,#16]".
func arm64Addr(m arm64asm.MemImmediate) (Exp, bool) {
	if m.Mode != arm64asm.AddrOffset {
		return nil, false
	}
	base := Var{Name: strings.ToLower(m.Base.String()), Bits: 64}
	s := m.String()
	i := strings.Index(s, "#")
	if i < 0 {
		return base, true
	}
	s = s[i+1:]
	if j := strings.Index(s, "]"); j >= 0 {
		s = s[:j]
	}
	off, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return nil, false
	}
	switch {
	case off == 0:
		return base, true
	case off < 0:
		return BinOp{Op: "-", L: base, R: Int{Val: uint64(-off), Bits: 64}}, true
	}
	return BinOp{Op: "+", L: base, R: Int{Val: uint64(off), Bits: 64}}, true
}
