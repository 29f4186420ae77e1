// Package bil defines a small register-transfer language for lifted
// machine code: moves, memory accesses, and control flow, plus the
// cleanup passes that run over lifted programs.
package bil

import (
	"fmt"
	"strings"
)

// Exp is an expression: a register, a constant, or a composition of
// them. Expressions are immutable values; rewriting builds new ones.
type Exp interface {
	String() string
	isExp()
}

// Var names a register or a lifter temporary. Temporaries use the
// "#n" naming convention and are fair game for the cleanup passes.
type Var struct {
	Name string
	Bits int
}

func (Var) isExp() {}

func (v Var) String() string { return v.Name }

// Temp reports whether the variable is a lifter-generated temporary.
func (v Var) Temp() bool { return strings.HasPrefix(v.Name, "#") }

// Int is a constant of a given width.
type Int struct {
	Val  uint64
	Bits int
}

func (Int) isExp() {}

func (i Int) String() string { return fmt.Sprintf("%#x:%d", i.Val, i.Bits) }

// BinOp applies a binary operator. Operators follow the usual BIL
// spellings: + - * / % & | ^ << >> ~>> = <> < <= and the signed
// variants /$ <$ <=$.
type BinOp struct {
	Op   string
	L, R Exp
}

func (BinOp) isExp() {}

func (b BinOp) String() string { return operand(b.L) + " " + b.Op + " " + operand(b.R) }

func operand(e Exp) string {
	if _, ok := e.(BinOp); ok {
		return "(" + e.String() + ")"
	}
	return e.String()
}

// Load reads Bits bits of memory at Addr.
type Load struct {
	Mem  Exp
	Addr Exp
	Bits int
}

func (Load) isExp() {}

func (l Load) String() string { return fmt.Sprintf("%s[%s]:u%d", l.Mem, l.Addr, l.Bits) }

// Store yields Mem updated with Val written at Addr.
type Store struct {
	Mem  Exp
	Addr Exp
	Val  Exp
	Bits int
}

func (Store) isExp() {}

func (s Store) String() string {
	return fmt.Sprintf("%s with [%s]:u%d <- %s", s.Mem, s.Addr, s.Bits, s.Val)
}

// Stmt is a single statement of a lifted program.
type Stmt interface {
	String() string
	isStmt()
}

// Move assigns an expression to a variable.
type Move struct {
	Var Var
	Exp Exp
}

func (Move) isStmt() {}

func (m Move) String() string { return m.Var.Name + " := " + m.Exp.String() }

// Jmp transfers control to Target. Sym, when set, carries the
// resolved name of the destination.
type Jmp struct {
	Target Exp
	Sym    string
}

func (Jmp) isStmt() {}

func (j Jmp) String() string {
	if j.Sym != "" {
		return "jmp @" + j.Sym
	}
	return "jmp " + j.Target.String()
}

// CJmp transfers control to Target when Cond is nonzero.
type CJmp struct {
	Cond   Exp
	Target Exp
	Sym    string
}

func (CJmp) isStmt() {}

func (j CJmp) String() string {
	t := j.Target.String()
	if j.Sym != "" {
		t = "@" + j.Sym
	}
	return fmt.Sprintf("if (%s) jmp %s", j.Cond, t)
}

// Call transfers control to a subroutine at Target.
type Call struct {
	Target Exp
	Sym    string
}

func (Call) isStmt() {}

func (c Call) String() string {
	if c.Sym != "" {
		return "call @" + c.Sym
	}
	return "call " + c.Target.String()
}

// Ret returns from the current subroutine.
type Ret struct{}

func (Ret) isStmt() {}

func (Ret) String() string { return "ret" }

// Special marks an instruction the lifter does not model. The text is
// the instruction's disassembly.
type Special struct {
	Text string
}

func (Special) isStmt() {}

func (s Special) String() string { return fmt.Sprintf("special (%q)", s.Text) }

// mapExp rewrites an expression bottom up.
func mapExp(e Exp, f func(Exp) Exp) Exp {
	switch v := e.(type) {
	case BinOp:
		v.L = mapExp(v.L, f)
		v.R = mapExp(v.R, f)
		return f(v)
	case Load:
		v.Mem = mapExp(v.Mem, f)
		v.Addr = mapExp(v.Addr, f)
		return f(v)
	case Store:
		v.Mem = mapExp(v.Mem, f)
		v.Addr = mapExp(v.Addr, f)
		v.Val = mapExp(v.Val, f)
		return f(v)
	default:
		return f(e)
	}
}

// mapStmt rewrites every expression inside a statement. The left-hand
// side of a Move is a definition, not a use, and stays untouched.
func mapStmt(s Stmt, f func(Exp) Exp) Stmt {
	switch v := s.(type) {
	case Move:
		v.Exp = mapExp(v.Exp, f)
		return v
	case Jmp:
		v.Target = mapExp(v.Target, f)
		return v
	case CJmp:
		v.Cond = mapExp(v.Cond, f)
		v.Target = mapExp(v.Target, f)
		return v
	case Call:
		v.Target = mapExp(v.Target, f)
		return v
	default:
		return s
	}
}

// walkExps calls f for every expression node read by a statement.
func walkExps(s Stmt, f func(Exp)) {
	mapStmt(s, func(e Exp) Exp { f(e); return e })
}
