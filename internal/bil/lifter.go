package bil

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"

	"github.com/karatemonkey63/bap-1/internal/disasm"
)

// mem is the flat memory state every load and store goes through.
var mem = Var{Name: "mem"}

// Lifter translates decoded instructions into bil statements. Machine
// state is one variable per architectural register, a single mem
// variable, and numbered temporaries for intermediate values.
type Lifter struct {
	arch  string
	ntemp int
}

// NewLifter returns a lifter for the named architecture. The accepted
// names match the ones the disassembler accepts.
func NewLifter(arch string) (*Lifter, error) {
	switch arch {
	case "arm64", "aarch64":
		return &Lifter{arch: "arm64"}, nil
	case "x86_64", "x86-64", "amd64":
		return &Lifter{arch: "x86_64"}, nil
	}
	return nil, fmt.Errorf("no lifter for architecture %q", arch)
}

func (l *Lifter) fresh(bits int) Var {
	v := Var{Name: fmt.Sprintf("#%d", l.ntemp), Bits: bits}
	l.ntemp++
	return v
}

func special(inst disasm.Inst) []Stmt {
	return []Stmt{Special{Text: inst.Text}}
}

// Lift translates one instruction. Control flow lifts from the
// decoded branch flags; data operations dispatch per architecture.
// Instructions outside the modeled subset lift to Special, so every
// instruction lifts to something.
func (l *Lifter) Lift(inst disasm.Inst) []Stmt {
	switch {
	case inst.Bad:
		return special(inst)
	case inst.Ret:
		return []Stmt{Ret{}}
	case inst.Call:
		t := l.branchTarget(inst)
		if t == nil {
			return special(inst)
		}
		return []Stmt{Call{Target: t}}
	case inst.Jump:
		t := l.branchTarget(inst)
		if t == nil {
			return special(inst)
		}
		return []Stmt{Jmp{Target: t}}
	case inst.Cond:
		return l.liftCond(inst)
	}
	if l.arch == "arm64" {
		return l.liftArm64(inst)
	}
	return l.liftX86(inst)
}

// branchTarget is the destination of a call or jump: the decoded
// absolute address when there is one, otherwise the register operand
// of an indirect branch. A nil return means the operand could not be
// modeled.
func (l *Lifter) branchTarget(inst disasm.Inst) Exp {
	if inst.Target != 0 {
		return Int{Val: inst.Target, Bits: 64}
	}
	if l.arch == "arm64" {
		if inst.A64 == nil {
			return nil
		}
		if v, ok := arm64RegVar(inst.A64.Args[0]); ok {
			return v
		}
		return nil
	}
	if inst.X86 == nil {
		return nil
	}
	switch a := inst.X86.Args[0].(type) {
	case x86asm.Reg:
		return x86RegVar(a)
	case x86asm.Mem:
		addr := x86Addr(inst, a)
		if addr == nil {
			return nil
		}
		return Load{Mem: mem, Addr: addr, Bits: 64}
	}
	return nil
}

func (l *Lifter) liftCond(inst disasm.Inst) []Stmt {
	if inst.Target == 0 {
		return special(inst)
	}
	target := Int{Val: inst.Target, Bits: 64}
	if l.arch == "arm64" {
		cond := l.arm64Cond(inst)
		if cond == nil {
			return special(inst)
		}
		return []Stmt{CJmp{Cond: cond, Target: target}}
	}
	return l.x86CondJump(inst, target)
}

func flagVar(name string) Var { return Var{Name: name, Bits: 1} }

func flagIs(name string, v uint64) Exp {
	return BinOp{Op: "=", L: flagVar(name), R: Int{Val: v, Bits: 1}}
}

func flagsMatch(a, b string) Exp {
	return BinOp{Op: "=", L: flagVar(a), R: flagVar(b)}
}

func flagsDiffer(a, b string) Exp {
	return BinOp{Op: "<>", L: flagVar(a), R: flagVar(b)}
}

func both(a, b Exp) Exp   { return BinOp{Op: "&", L: a, R: b} }
func either(a, b Exp) Exp { return BinOp{Op: "|", L: a, R: b} }

// compare lifts a flag-setting comparison: the intermediate result
// lands in a temporary, and the zero and negative flags derive from
// it. The carry and overflow flags are not modeled.
func (l *Lifter) compare(op string, x, y Exp, bits int, zf, nf string) []Stmt {
	t := l.fresh(bits)
	zero := Int{Val: 0, Bits: bits}
	return []Stmt{
		Move{Var: t, Exp: BinOp{Op: op, L: x, R: y}},
		Move{Var: flagVar(zf), Exp: BinOp{Op: "=", L: t, R: zero}},
		Move{Var: flagVar(nf), Exp: BinOp{Op: "<$", L: t, R: zero}},
	}
}
