package options

import (
	"fmt"
	"strconv"
	"strings"
)

// enumList accumulates every occurrence of a repeatable enum flag, in
// argv order. Occurrences append, they never overwrite.
type enumList[T ~string] struct {
	dst     *[]T
	allowed []T
	typ     string
}

func newEnumList[T ~string](dst *[]T, typ string, allowed ...T) *enumList[T] {
	return &enumList[T]{dst: dst, allowed: allowed, typ: typ}
}

func (e *enumList[T]) Set(s string) error {
	for _, a := range e.allowed {
		if s == string(a) {
			*e.dst = append(*e.dst, a)
			return nil
		}
	}
	names := make([]string, len(e.allowed))
	for i, a := range e.allowed {
		names[i] = string(a)
	}
	return fmt.Errorf("must be one of %s", strings.Join(names, ", "))
}

func (e *enumList[T]) Type() string { return e.typ }

func (e *enumList[T]) String() string {
	parts := make([]string, len(*e.dst))
	for i, v := range *e.dst {
		parts[i] = string(v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func (e *enumList[T]) list() []T { return *e.dst }

// labelFlag is one spelling of the labels-with-* family. All spellings
// append to the same backing slice so the combined order matches the
// command line.
type labelFlag struct {
	tag Label
	dst *[]Label
}

func (l *labelFlag) Set(s string) error {
	on, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	if on {
		*l.dst = append(*l.dst, l.tag)
	}
	return nil
}

func (l *labelFlag) Type() string { return "bool" }

func (l *labelFlag) String() string { return "false" }

func (l *labelFlag) list() []Label { return *l.dst }
