package expr

import (
	"sort"

	"github.com/open-assess/qtiproc/internal/qti/value"
)

// singlesMatch compares two scalars; numeric comparison routes through the
// numeric engine, everything else is exact value equality.
func singlesMatch(a, b value.Scalar) bool {
	return a.Equal(b)
}

// multipleMatch is the order-insensitive container comparison: both sides
// are sorted by canonical key, then compared element-wise.
func multipleMatch(a, b []value.Scalar) bool {
	if len(a) != len(b) {
		return false
	}
	as := sortedCopy(a)
	bs := sortedCopy(b)
	for i := range as {
		if !singlesMatch(as[i], bs[i]) {
			return false
		}
	}
	return true
}

// orderedMatch is the order-sensitive container comparison.
func orderedMatch(a, b []value.Scalar) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !singlesMatch(a[i], b[i]) {
			return false
		}
	}
	return true
}

func sortedCopy(scalars []value.Scalar) []value.Scalar {
	out := make([]value.Scalar, len(scalars))
	copy(out, scalars)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// valuesMatch compares two values of agreeing cardinality. The second return
// is false when the shapes are incompatible, which callers surface as null.
func valuesMatch(a, b value.Value) (matched, ok bool) {
	if a.Cardinality() != b.Cardinality() {
		return false, false
	}
	switch a.Cardinality() {
	case value.Single:
		as, _ := a.Single()
		bs, _ := b.Single()
		return singlesMatch(as, bs), true
	case value.Multiple:
		al, _ := a.List()
		bl, _ := b.List()
		return multipleMatch(al, bl), true
	case value.Ordered:
		al, _ := a.List()
		bl, _ := b.List()
		return orderedMatch(al, bl), true
	}
	return false, false
}
