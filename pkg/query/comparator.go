package query

import "fmt"

// Comparator is one of the six ordering operators.
type Comparator int

const (
	LessThan Comparator = iota + 1
	LessOrEqual
	Equal
	NotEqual
	GreaterOrEqual
	GreaterThan
)

func (c Comparator) Valid() bool {
	return c >= LessThan && c <= GreaterThan
}

func (c Comparator) String() string {
	switch c {
	case LessThan:
		return "<"
	case LessOrEqual:
		return "<="
	case Equal:
		return "="
	case NotEqual:
		return "!="
	case GreaterOrEqual:
		return ">="
	case GreaterThan:
		return ">"
	default:
		return fmt.Sprintf("Comparator(%d)", int(c))
	}
}

// ParseComparator accepts the operator symbols.
func ParseComparator(s string) (Comparator, bool) {
	for c := LessThan; c <= GreaterThan; c++ {
		if c.String() == s {
			return c, true
		}
	}
	if s == "<>" {
		return NotEqual, true
	}
	return 0, false
}

// expr renders column op value. Callers validate c first, so any other value
// means the comparator was corrupted.
func (c Comparator) expr(cond conditions, column string, value any) string {
	switch c {
	case LessThan:
		return cond.LessThan(column, value)
	case LessOrEqual:
		return cond.LessEqualThan(column, value)
	case Equal:
		return cond.Equal(column, value)
	case NotEqual:
		return cond.NotEqual(column, value)
	case GreaterOrEqual:
		return cond.GreaterEqualThan(column, value)
	case GreaterThan:
		return cond.GreaterThan(column, value)
	default:
		panic(fmt.Sprintf("query: invalid comparator %d", int(c)))
	}
}
