package bil

import (
	"strings"

	"golang.org/x/arch/x86/x86asm"

	"github.com/karatemonkey63/bap-1/internal/disasm"
)

var x86BinOps = map[x86asm.Op]string{
	x86asm.ADD:  "+",
	x86asm.SUB:  "-",
	x86asm.AND:  "&",
	x86asm.OR:   "|",
	x86asm.XOR:  "^",
	x86asm.SHL:  "<<",
	x86asm.SHR:  ">>",
	x86asm.SAR:  "~>>",
	x86asm.IMUL: "*",
}

func (l *Lifter) liftX86(inst disasm.Inst) []Stmt {
	x := inst.X86
	if x == nil {
		return special(inst)
	}
	switch x.Op {
	case x86asm.NOP:
		return nil

	case x86asm.MOV, x86asm.MOVZX:
		return l.x86Mov(inst)

	case x86asm.ADD, x86asm.SUB, x86asm.AND, x86asm.OR, x86asm.XOR,
		x86asm.SHL, x86asm.SHR, x86asm.SAR, x86asm.IMUL:
		return l.x86ALU(inst)

	case x86asm.INC, x86asm.DEC:
		d, ok := x.Args[0].(x86asm.Reg)
		if !ok {
			return special(inst)
		}
		dv := x86RegVar(d)
		op := "+"
		if x.Op == x86asm.DEC {
			op = "-"
		}
		one := Int{Val: 1, Bits: dv.Bits}
		return []Stmt{Move{Var: dv, Exp: BinOp{Op: op, L: dv, R: one}}}

	case x86asm.NEG:
		d, ok := x.Args[0].(x86asm.Reg)
		if !ok {
			return special(inst)
		}
		dv := x86RegVar(d)
		return []Stmt{Move{Var: dv, Exp: BinOp{Op: "-", L: Int{Val: 0, Bits: dv.Bits}, R: dv}}}

	case x86asm.LEA:
		d, ok := x.Args[0].(x86asm.Reg)
		if !ok {
			return special(inst)
		}
		m, ok := x.Args[1].(x86asm.Mem)
		if !ok {
			return special(inst)
		}
		addr := x86Addr(inst, m)
		if addr == nil {
			return special(inst)
		}
		return []Stmt{Move{Var: x86RegVar(d), Exp: addr}}

	case x86asm.PUSH:
		src, pre := l.x86Value(inst, x.Args[0])
		if src == nil {
			return special(inst)
		}
		n := x86StackBytes(x)
		rsp := Var{Name: "rsp", Bits: 64}
		return append(pre,
			Move{Var: rsp, Exp: BinOp{Op: "-", L: rsp, R: Int{Val: n, Bits: 64}}},
			Move{Var: mem, Exp: Store{Mem: mem, Addr: rsp, Val: src, Bits: int(n) * 8}},
		)

	case x86asm.POP:
		d, ok := x.Args[0].(x86asm.Reg)
		if !ok {
			return special(inst)
		}
		n := x86StackBytes(x)
		rsp := Var{Name: "rsp", Bits: 64}
		return []Stmt{
			Move{Var: x86RegVar(d), Exp: Load{Mem: mem, Addr: rsp, Bits: int(n) * 8}},
			Move{Var: rsp, Exp: BinOp{Op: "+", L: rsp, R: Int{Val: n, Bits: 64}}},
		}

	case x86asm.CMP, x86asm.TEST:
		a, pre1 := l.x86Value(inst, x.Args[0])
		b, pre2 := l.x86Value(inst, x.Args[1])
		if a == nil || b == nil {
			return special(inst)
		}
		op := "-"
		if x.Op == x86asm.TEST {
			op = "&"
		}
		bits := x.DataSize
		if bits == 0 {
			bits = 64
		}
		out := append(pre1, pre2...)
		return append(out, l.compare(op, a, b, bits, "ZF", "SF")...)
	}
	return special(inst)
}

func (l *Lifter) x86Mov(inst disasm.Inst) []Stmt {
	x := inst.X86
	switch d := x.Args[0].(type) {
	case x86asm.Reg:
		src, pre := l.x86Value(inst, x.Args[1])
		if src == nil {
			return special(inst)
		}
		return append(pre, Move{Var: x86RegVar(d), Exp: src})

	case x86asm.Mem:
		val, pre := l.x86Value(inst, x.Args[1])
		if val == nil {
			return special(inst)
		}
		addr := x86Addr(inst, d)
		if addr == nil {
			return special(inst)
		}
		bits := x.MemBytes * 8
		if bits == 0 {
			bits = 64
		}
		t := l.fresh(64)
		return append(pre,
			Move{Var: t, Exp: addr},
			Move{Var: mem, Exp: Store{Mem: mem, Addr: t, Val: val, Bits: bits}},
		)
	}
	return special(inst)
}

func (l *Lifter) x86ALU(inst disasm.Inst) []Stmt {
	x := inst.X86
	op := x86BinOps[x.Op]

	// imul has a three-operand immediate form.
	if x.Op == x86asm.IMUL && x.Args[2] != nil {
		d, ok := x.Args[0].(x86asm.Reg)
		if !ok {
			return special(inst)
		}
		a, pre := l.x86Value(inst, x.Args[1])
		b, _ := l.x86Value(inst, x.Args[2])
		if a == nil || b == nil {
			return special(inst)
		}
		return append(pre, Move{Var: x86RegVar(d), Exp: BinOp{Op: "*", L: a, R: b}})
	}

	d, ok := x.Args[0].(x86asm.Reg)
	if !ok {
		// Read-modify-write memory destinations are not modeled.
		return special(inst)
	}
	dv := x86RegVar(d)

	if x.Op == x86asm.XOR {
		if s, ok := x.Args[1].(x86asm.Reg); ok && s == d {
			return []Stmt{Move{Var: dv, Exp: Int{Val: 0, Bits: dv.Bits}}}
		}
	}

	src, pre := l.x86Value(inst, x.Args[1])
	if src == nil {
		return special(inst)
	}
	return append(pre, Move{Var: dv, Exp: BinOp{Op: op, L: dv, R: src}})
}

// x86Value lifts a register, immediate, or memory source operand.
// Memory operands come back as a Load through a fresh address
// temporary, with the prelude statements that set it up.
func (l *Lifter) x86Value(inst disasm.Inst, arg x86asm.Arg) (Exp, []Stmt) {
	x := inst.X86
	switch a := arg.(type) {
	case x86asm.Reg:
		return x86RegVar(a), nil
	case x86asm.Imm:
		bits := x.DataSize
		if bits == 0 {
			bits = 64
		}
		return Int{Val: uint64(a), Bits: bits}, nil
	case x86asm.Mem:
		addr := x86Addr(inst, a)
		if addr == nil {
			return nil, nil
		}
		bits := x.MemBytes * 8
		if bits == 0 {
			bits = 64
		}
		t := l.fresh(64)
		return Load{Mem: mem, Addr: t, Bits: bits}, []Stmt{Move{Var: t, Exp: addr}}
	}
	return nil, nil
}

// x86Addr builds the effective address of a memory operand. Segment
// overrides are not modeled. RIP-relative operands resolve to the
// absolute address since the instruction boundary is known.
func x86Addr(inst disasm.Inst, m x86asm.Mem) Exp {
	if m.Segment != 0 {
		return nil
	}
	if m.Base == x86asm.RIP {
		if m.Index != 0 {
			return nil
		}
		return Int{Val: uint64(int64(inst.VA) + int64(inst.Len) + m.Disp), Bits: 64}
	}
	var e Exp
	if m.Base != 0 {
		e = x86RegVar(m.Base)
	}
	if m.Index != 0 {
		var idx Exp = x86RegVar(m.Index)
		if m.Scale > 1 {
			idx = BinOp{Op: "*", L: idx, R: Int{Val: uint64(m.Scale), Bits: 64}}
		}
		if e == nil {
			e = idx
		} else {
			e = BinOp{Op: "+", L: e, R: idx}
		}
	}
	switch {
	case e == nil:
		return Int{Val: uint64(m.Disp), Bits: 64}
	case m.Disp > 0:
		return BinOp{Op: "+", L: e, R: Int{Val: uint64(m.Disp), Bits: 64}}
	case m.Disp < 0:
		return BinOp{Op: "-", L: e, R: Int{Val: uint64(-m.Disp), Bits: 64}}
	}
	return e
}

func x86StackBytes(x *x86asm.Inst) uint64 {
	if x.DataSize == 16 {
		return 2
	}
	return 8
}

func (l *Lifter) x86CondJump(inst disasm.Inst, target Int) []Stmt {
	rcx := Var{Name: "rcx", Bits: 64}
	switch inst.Op {
	case "loop", "loope", "loopne":
		dec := Move{Var: rcx, Exp: BinOp{Op: "-", L: rcx, R: Int{Val: 1, Bits: 64}}}
		var cond Exp = BinOp{Op: "<>", L: rcx, R: Int{Val: 0, Bits: 64}}
		switch inst.Op {
		case "loope":
			cond = both(cond, flagIs("ZF", 1))
		case "loopne":
			cond = both(cond, flagIs("ZF", 0))
		}
		return []Stmt{dec, CJmp{Cond: cond, Target: target}}
	case "jrcxz":
		return []Stmt{CJmp{Cond: BinOp{Op: "=", L: rcx, R: Int{Val: 0, Bits: 64}}, Target: target}}
	case "jecxz":
		ecx := Var{Name: "ecx", Bits: 32}
		return []Stmt{CJmp{Cond: BinOp{Op: "=", L: ecx, R: Int{Val: 0, Bits: 32}}, Target: target}}
	}
	cond := x86CondExp(strings.TrimPrefix(inst.Op, "j"))
	if cond == nil {
		return special(inst)
	}
	return []Stmt{CJmp{Cond: cond, Target: target}}
}

func x86CondExp(name string) Exp {
	switch name {
	case "e":
		return flagIs("ZF", 1)
	case "ne":
		return flagIs("ZF", 0)
	case "s":
		return flagIs("SF", 1)
	case "ns":
		return flagIs("SF", 0)
	case "o":
		return flagIs("OF", 1)
	case "no":
		return flagIs("OF", 0)
	case "p":
		return flagIs("PF", 1)
	case "np":
		return flagIs("PF", 0)
	case "b":
		return flagIs("CF", 1)
	case "ae":
		return flagIs("CF", 0)
	case "be":
		return either(flagIs("CF", 1), flagIs("ZF", 1))
	case "a":
		return both(flagIs("CF", 0), flagIs("ZF", 0))
	case "l":
		return flagsDiffer("SF", "OF")
	case "ge":
		return flagsMatch("SF", "OF")
	case "g":
		return both(flagIs("ZF", 0), flagsMatch("SF", "OF"))
	case "le":
		return either(flagIs("ZF", 1), flagsDiffer("SF", "OF"))
	}
	return nil
}

func x86RegVar(r x86asm.Reg) Var {
	name := strings.ToLower(r.String())
	return Var{Name: name, Bits: x86RegBits(name)}
}

func x86RegBits(name string) int {
	switch {
	case name == "rip":
		return 64
	case strings.HasPrefix(name, "r"):
		switch name[len(name)-1] {
		case 'b':
			return 8
		case 'w':
			return 16
		case 'd':
			return 32
		}
		return 64
	case strings.HasPrefix(name, "e"):
		return 32
	}
	switch name {
	case "al", "ah", "bl", "bh", "cl", "ch", "dl", "dh", "spl", "bpl", "sil", "dil":
		return 8
	}
	return 16
}
