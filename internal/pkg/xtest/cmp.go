package xtest

import (
	"encoding/json"
	"time"

	"github.com/google/go-cmp/cmp"
)

// Custom comparator for json.RawMessage that compares semantic equality.
func jsonRawMessageComparer(x, y json.RawMessage) bool {
	if len(x) == 0 && len(y) == 0 {
		return true
	}

	if len(x) == 0 || len(y) == 0 {
		return false
	}

	var xVal, yVal any
	if err := json.Unmarshal(x, &xVal); err != nil {
		return false
	}

	if err := json.Unmarshal(y, &yVal); err != nil {
		return false
	}

	return cmp.Equal(xVal, yVal)
}

func nilString(x *string) string {
	if x == nil {
		return ""
	}

	return *x
}

func timeComparer(x, y time.Time) bool {
	return x.Equal(y)
}

// IgnoreTimestamps drops the CreatedAt and UpdatedAt bookkeeping fields of any struct.
var IgnoreTimestamps = cmp.FilterPath(func(p cmp.Path) bool {
	sf, ok := p.Last().(cmp.StructField)
	if !ok {
		return false
	}

	return sf.Name() == "CreatedAt" || sf.Name() == "UpdatedAt"
}, cmp.Ignore())

func options(opts []cmp.Option) []cmp.Option {
	return append(opts,
		cmp.Transformer("", nilString),
		cmp.Comparer(timeComparer),
		cmp.Comparer(jsonRawMessageComparer),
	)
}

// Equal provides semantic equality comparison with custom transformers and comparers.
func Equal(a, b any, opts ...cmp.Option) bool {
	return cmp.Equal(a, b, options(opts)...)
}

// Diff reports the differences Equal would see, empty when equal.
func Diff(a, b any, opts ...cmp.Option) string {
	return cmp.Diff(a, b, options(opts)...)
}
