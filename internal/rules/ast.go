package rules

import (
	"fmt"
	"math"
	"strings"
)

// Node is a parsed rule expression.
type Node interface {
	Eval(ctx Context) Value
	String() string
}

// FieldRef looks a name up in the context.
type FieldRef struct {
	Name string
}

func (n *FieldRef) Eval(ctx Context) Value {
	v, ok := ctx[n.Name]
	if !ok {
		return undefined
	}
	return valueOf(v)
}

func (n *FieldRef) String() string { return n.Name }

// Literal is a constant operand.
type Literal struct {
	Value Value
}

func (n *Literal) Eval(Context) Value { return n.Value }
func (n *Literal) String() string     { return n.Value.String() }

// Abs yields the absolute value of a numeric operand.
type Abs struct {
	Arg Node
}

func (n *Abs) Eval(ctx Context) Value {
	v := n.Arg.Eval(ctx)
	if v.Kind != Number {
		return undefined
	}
	return numberValue(math.Abs(v.Num))
}

func (n *Abs) String() string { return fmt.Sprintf("abs(%s)", n.Arg) }

// Arithmetic combines two numeric operands. Anything non-numeric yields
// undefined.
type Arithmetic struct {
	Op          string
	Left, Right Node
}

func (n *Arithmetic) Eval(ctx Context) Value {
	l, r := n.Left.Eval(ctx), n.Right.Eval(ctx)
	if l.Kind != Number || r.Kind != Number {
		return undefined
	}
	switch n.Op {
	case "+":
		return numberValue(l.Num + r.Num)
	case "-":
		return numberValue(l.Num - r.Num)
	case "*":
		return numberValue(l.Num * r.Num)
	case "/":
		return numberValue(l.Num / r.Num)
	}
	return undefined
}

func (n *Arithmetic) String() string {
	return fmt.Sprintf("(%s %s %s)", n.Left, n.Op, n.Right)
}

// Comparison applies a relational operator.
type Comparison struct {
	Op          string
	Left, Right Node
}

func (n *Comparison) Eval(ctx Context) Value {
	return boolValue(compare(n.Op, n.Left.Eval(ctx), n.Right.Eval(ctx)))
}

func (n *Comparison) String() string {
	return fmt.Sprintf("(%s %s %s)", n.Left, n.Op, n.Right)
}

// Between is an inclusive range check.
type Between struct {
	Subject, Low, High Node
}

func (n *Between) Eval(ctx Context) Value {
	v := n.Subject.Eval(ctx)
	return boolValue(compare(">=", v, n.Low.Eval(ctx)) && compare("<=", v, n.High.Eval(ctx)))
}

func (n *Between) String() string {
	return fmt.Sprintf("(%s between %s and %s)", n.Subject, n.Low, n.High)
}

// Membership tests whether the subject equals one of a list of strings.
// Items are always strings, so numeric subjects never match.
type Membership struct {
	Subject Node
	Items   []string
}

func (n *Membership) Eval(ctx Context) Value {
	s, ok := n.Subject.Eval(ctx).text()
	if !ok {
		return boolValue(false)
	}
	for _, item := range n.Items {
		if item == s {
			return boolValue(true)
		}
	}
	return boolValue(false)
}

func (n *Membership) String() string {
	return fmt.Sprintf("(%s in [%s])", n.Subject, strings.Join(n.Items, ", "))
}

// Logical joins two conditions with "and" or "or".
type Logical struct {
	Op          string
	Left, Right Node
}

func (n *Logical) Eval(ctx Context) Value {
	l := n.Left.Eval(ctx).truthy()
	if n.Op == "and" {
		return boolValue(l && n.Right.Eval(ctx).truthy())
	}
	return boolValue(l || n.Right.Eval(ctx).truthy())
}

func (n *Logical) String() string {
	return fmt.Sprintf("(%s %s %s)", n.Left, n.Op, n.Right)
}

// Truthy turns a bare operand into a condition.
type Truthy struct {
	Operand Node
}

func (n *Truthy) Eval(ctx Context) Value { return boolValue(n.Operand.Eval(ctx).truthy()) }
func (n *Truthy) String() string         { return n.Operand.String() }
