package fields

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cast"
	"github.com/tidwall/gjson"

	"github.com/looplj/auditflow/internal/pkg/xerrors"
)

// Value is a patch value, a key missing from the patch means unchanged,
// an explicit null means clear.
type Value struct {
	res gjson.Result
}

// Set returns a string value.
func Set(s string) Value {
	return Value{res: gjson.Result{Type: gjson.String, Str: s, Raw: strconv.Quote(s)}}
}

// Null returns an explicit null value.
func Null() Value {
	return Value{res: gjson.Result{Type: gjson.Null, Raw: "null"}}
}

func (v Value) IsNull() bool {
	return v.res.Type == gjson.Null
}

func (v Value) Raw() string {
	if v.res.Raw == "" {
		return "null"
	}

	return v.res.Raw
}

// Text returns the value as text, null clears to the empty string.
func (v Value) Text() (string, error) {
	switch v.res.Type {
	case gjson.Null:
		return "", nil
	case gjson.JSON:
		return "", fmt.Errorf("expected a scalar, got %s", v.res.Raw)
	default:
		return cast.ToStringE(v.res.Value())
	}
}

// Date parses an ISO date or timestamp, null clears.
func (v Value) Date() (*time.Time, error) {
	switch v.res.Type {
	case gjson.Null:
		return nil, nil
	case gjson.String:
		s := strings.TrimSpace(v.res.Str)
		if s == "" {
			return nil, nil
		}

		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			t = t.UTC()
			return &t, nil
		}

		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return nil, fmt.Errorf("expected an ISO date, got %q", s)
		}

		return &t, nil
	default:
		return nil, fmt.Errorf("expected an ISO date string, got %s", v.res.Raw)
	}
}

// Patch is a partial update keyed by field name.
type Patch map[Field]Value

// ParsePatch parses a JSON object into a patch, every key is kept, known or not.
func ParsePatch(data []byte) (Patch, error) {
	if !gjson.ValidBytes(data) {
		return nil, xerrors.Validation("patch is not valid JSON")
	}

	res := gjson.ParseBytes(data)
	if !res.IsObject() {
		return nil, xerrors.Validation("patch must be a JSON object")
	}

	patch := Patch{}

	res.ForEach(func(key, value gjson.Result) bool {
		patch[Field(key.String())] = Value{res: value}
		return true
	})

	return patch, nil
}

// Keys returns the patch keys in a stable order.
func (p Patch) Keys() []Field {
	keys := lo.Keys(map[Field]Value(p))
	slices.Sort(keys)

	return keys
}

// Only returns the subset of p whose keys are in allowed.
func (p Patch) Only(allowed []Field) Patch {
	return lo.PickByKeys(p, allowed)
}

func (p Patch) MarshalJSON() ([]byte, error) {
	raw := make(map[string]json.RawMessage, len(p))
	for k, v := range p {
		raw[string(k)] = json.RawMessage(v.Raw())
	}

	return json.Marshal(raw)
}
