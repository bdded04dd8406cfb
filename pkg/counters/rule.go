package counters

// Rule selects how two values of the same counter are combined.
type Rule string

const (
	// Add sums: self + coeff*other. A missing operand yields the other one.
	Add Rule = "add"
	// None replaces: other, unless other is missing.
	None Rule = "none"
	// Min and Max keep the smaller or larger present operand.
	Min Rule = "min"
	Max Rule = "max"
)

func (r Rule) validFor(t FieldType) bool {
	switch r {
	case None:
		return true
	case Add, Min, Max:
		return t.kind != Text
	}
	return false
}

// combine applies the rule to two canonical values of type t.
func (r Rule) combine(t FieldType, self, other any, coeff int64) any {
	switch r {
	case None:
		if other == nil {
			return self
		}
		return other
	}

	if self == nil {
		return other
	}
	if other == nil {
		return self
	}

	switch r {
	case Add:
		switch t.kind {
		case Unsigned:
			return t.wrapUnsigned(self.(uint64) + uint64(coeff)*other.(uint64))
		case Signed:
			return t.wrapSigned(self.(int64) + coeff*other.(int64))
		case Float:
			return self.(float64) + float64(coeff)*other.(float64)
		}
	case Min:
		if less(t, other, self) {
			return other
		}
		return self
	case Max:
		if less(t, self, other) {
			return other
		}
		return self
	}
	return self
}

func less(t FieldType, a, b any) bool {
	switch t.kind {
	case Unsigned:
		return a.(uint64) < b.(uint64)
	case Signed:
		return a.(int64) < b.(int64)
	case Float:
		return a.(float64) < b.(float64)
	default:
		return a.(string) < b.(string)
	}
}
