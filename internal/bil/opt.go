package bil

import "slices"

// Tuning switches individual cleanup passes off. The zero value runs
// everything.
type Tuning struct {
	KeepConst bool
	NoInline  bool
	KeepAlive bool
}

// Optimize runs the cleanup passes over a lifted program: temporaries
// read once by the following statement fold back into their use site,
// constant subexpressions fold to constants, and assignments to
// temporaries nothing reads go away.
func Optimize(prog []Stmt, t Tuning) []Stmt {
	if !t.NoInline {
		prog = inlineTemps(prog)
	}
	if !t.KeepConst {
		prog = foldConsts(prog)
	}
	if !t.KeepAlive {
		prog = elimDeadTemps(prog)
	}
	return prog
}

// Resolve attaches symbol names to jumps and calls with constant
// targets. lookup returns the empty string for unknown addresses.
func Resolve(prog []Stmt, lookup func(uint64) string) []Stmt {
	out := slices.Clone(prog)
	for i, s := range out {
		switch v := s.(type) {
		case Jmp:
			if t, ok := v.Target.(Int); ok {
				if name := lookup(t.Val); name != "" {
					v.Sym = name
					out[i] = v
				}
			}
		case CJmp:
			if t, ok := v.Target.(Int); ok {
				if name := lookup(t.Val); name != "" {
					v.Sym = name
					out[i] = v
				}
			}
		case Call:
			if t, ok := v.Target.(Int); ok {
				if name := lookup(t.Val); name != "" {
					v.Sym = name
					out[i] = v
				}
			}
		}
	}
	return out
}

// inlineTemps folds a temporary that is written by one statement and
// read exactly once, by the statement immediately after it, back into
// that use site. Restricting the window to adjacent statements keeps
// the rewrite safe without data-flow analysis: nothing can intervene
// between the definition and the use.
func inlineTemps(prog []Stmt) []Stmt {
	prog = slices.Clone(prog)
	out := make([]Stmt, 0, len(prog))
	for i := 0; i < len(prog); i++ {
		m, ok := prog[i].(Move)
		if !ok || !m.Var.Temp() || i+1 == len(prog) {
			out = append(out, prog[i])
			continue
		}
		name := m.Var.Name
		if countUses(prog[i+1:], name) != 1 || expUses(prog[i+1], name) != 1 {
			out = append(out, prog[i])
			continue
		}
		rhs := m.Exp
		prog[i+1] = mapStmt(prog[i+1], func(e Exp) Exp {
			if v, ok := e.(Var); ok && v.Name == name {
				return rhs
			}
			return e
		})
	}
	return out
}

// foldConsts folds constant subexpressions bottom up and simplifies
// conditional jumps whose condition folded to a constant.
func foldConsts(prog []Stmt) []Stmt {
	out := make([]Stmt, 0, len(prog))
	for _, s := range prog {
		s = mapStmt(s, foldExp)
		if j, ok := s.(CJmp); ok {
			if c, ok := j.Cond.(Int); ok {
				if c.Val == 0 {
					continue
				}
				s = Jmp{Target: j.Target, Sym: j.Sym}
			}
		}
		out = append(out, s)
	}
	return out
}

func foldExp(e Exp) Exp {
	b, ok := e.(BinOp)
	if !ok {
		return e
	}
	x, ok := b.L.(Int)
	if !ok {
		return e
	}
	y, ok := b.R.(Int)
	if !ok {
		return e
	}
	bits := x.Bits
	if y.Bits > bits {
		bits = y.Bits
	}
	var v uint64
	switch b.Op {
	case "+":
		v = x.Val + y.Val
	case "-":
		v = x.Val - y.Val
	case "*":
		v = x.Val * y.Val
	case "&":
		v = x.Val & y.Val
	case "|":
		v = x.Val | y.Val
	case "^":
		v = x.Val ^ y.Val
	case "<<":
		if y.Val >= 64 {
			v = 0
		} else {
			v = x.Val << y.Val
		}
	case ">>":
		if y.Val >= 64 {
			v = 0
		} else {
			v = x.Val >> y.Val
		}
	case "/":
		if y.Val == 0 {
			return e
		}
		v = x.Val / y.Val
	case "%":
		if y.Val == 0 {
			return e
		}
		v = x.Val % y.Val
	case "=":
		return boolInt(x.Val == y.Val)
	case "<>":
		return boolInt(x.Val != y.Val)
	case "<":
		return boolInt(x.Val < y.Val)
	case "<=":
		return boolInt(x.Val <= y.Val)
	default:
		// Signed operators depend on width-aware reinterpretation
		// and stay as written.
		return e
	}
	return Int{Val: maskBits(v, bits), Bits: bits}
}

func boolInt(b bool) Int {
	if b {
		return Int{Val: 1, Bits: 1}
	}
	return Int{Val: 0, Bits: 1}
}

func maskBits(v uint64, bits int) uint64 {
	if bits <= 0 || bits >= 64 {
		return v
	}
	return v & (1<<uint(bits) - 1)
}

// elimDeadTemps drops assignments to temporaries that nothing reads.
// Removing one assignment can orphan another, so iterate to a fixed
// point.
func elimDeadTemps(prog []Stmt) []Stmt {
	for {
		used := map[string]bool{}
		for _, s := range prog {
			walkExps(s, func(e Exp) {
				if v, ok := e.(Var); ok && v.Temp() {
					used[v.Name] = true
				}
			})
		}
		out := make([]Stmt, 0, len(prog))
		removed := false
		for _, s := range prog {
			if m, ok := s.(Move); ok && m.Var.Temp() && !used[m.Var.Name] {
				removed = true
				continue
			}
			out = append(out, s)
		}
		prog = out
		if !removed {
			return prog
		}
	}
}

func countUses(prog []Stmt, name string) int {
	n := 0
	for _, s := range prog {
		n += expUses(s, name)
	}
	return n
}

func expUses(s Stmt, name string) int {
	n := 0
	walkExps(s, func(e Exp) {
		if v, ok := e.(Var); ok && v.Name == name {
			n++
		}
	})
	return n
}
