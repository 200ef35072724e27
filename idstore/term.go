package idstore

import (
	"fmt"
	"strconv"
	"strings"
)

// BuiltinOp enumerates the builtin term operators of spec.md §3: comparisons,
// arithmetic, and aggregate functions.
type BuiltinOp int

const (
	OpEq BuiltinOp = iota
	OpNeq
	OpLt
	OpLeq
	OpGt
	OpGeq
	OpMul
	OpAdd
	OpSub
	OpDiv
	OpMod
	OpCount
	OpMin
	OpMax
	OpSum
	OpTimes
	OpAvg
	OpAny
	OpInt
	OpSucc
)

var builtinSymbols = map[BuiltinOp]string{
	OpEq: "=", OpNeq: "<>", OpLt: "<", OpLeq: "<=", OpGt: ">", OpGeq: ">=",
	OpMul: "*", OpAdd: "+", OpSub: "-", OpDiv: "/", OpMod: "%",
	OpCount: "#count", OpMin: "#min", OpMax: "#max", OpSum: "#sum",
	OpTimes: "#times", OpAvg: "#avg", OpAny: "#any", OpInt: "#int", OpSucc: "#succ",
}

func (op BuiltinOp) String() string {
	if s, ok := builtinSymbols[op]; ok {
		return s
	}
	return fmt.Sprintf("builtin(%d)", int(op))
}

// IsAggregate reports whether op is an aggregate function rather than a
// comparison or arithmetic operator.
func (op BuiltinOp) IsAggregate() bool {
	switch op {
	case OpCount, OpMin, OpMax, OpSum, OpTimes, OpAvg, OpAny:
		return true
	default:
		return false
	}
}

// Term is the value payload behind a term Id. Exactly one of the fields is
// meaningful, selected by Kind. Integers are never stored in the term
// arena: their value lives directly in the Id's address field (see
// Store.InternInteger). Store.LookupTerm synthesizes a TermInteger Term for
// them, carrying the decimal value in Constant.
type Term struct {
	Kind Kind // one of TermConstant, TermVariable, TermBuiltin, TermNested; TermInteger only as built by LookupTerm

	// TermConstant
	Constant string
	Quoted   bool

	// TermVariable
	VarName   string
	Anonymous bool

	// TermBuiltin
	Op BuiltinOp

	// TermNested: a function-symbol id applied to argument ids
	Functor Id
	Args    []Id
}

// repr returns the canonical printable form used as the interning key: two
// terms with equal printable form must share an id (spec.md §3 invariant).
func (t Term) repr(s *Store) string {
	switch t.Kind {
	case TermConstant:
		if t.Quoted {
			return strconv.Quote(t.Constant)
		}
		return t.Constant
	case TermVariable:
		if t.Anonymous {
			return "_"
		}
		return "_" + t.VarName
	case TermBuiltin:
		return t.Op.String()
	case TermNested:
		var b strings.Builder
		b.WriteString(s.Print(t.Functor))
		b.WriteByte('(')
		for i, a := range t.Args {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(s.Print(a))
		}
		b.WriteByte(')')
		return b.String()
	default:
		return fmt.Sprintf("<bad-term-kind %v>", t.Kind)
	}
}
