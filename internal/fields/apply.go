package fields

import (
	"slices"
	"time"

	"github.com/samber/lo"
	"github.com/tidwall/sjson"

	"github.com/looplj/auditflow/internal/objects"
	"github.com/looplj/auditflow/internal/pkg/xerrors"
)

// Change is the before and after value of one field.
type Change struct {
	Before any `json:"before"`
	After  any `json:"after"`
}

// Diff holds the fields a patch actually changed.
type Diff map[Field]Change

// JSON renders the diff as {"field":{"before":..,"after":..}}.
func (d Diff) JSON() []byte {
	out := []byte("{}")

	for _, f := range d.Keys() {
		// Field names are plain identifiers, so the path is always valid.
		if next, err := sjson.SetBytes(out, string(f), d[f]); err == nil {
			out = next
		}
	}

	return out
}

// Result is the outcome of applying a patch.
type Result struct {
	// Columns maps storage columns to new values, *time.Time for dates and string otherwise.
	Columns map[string]any
	Diff    Diff
}

// Apply validates every value of patch and then applies them to obs.
// obs is left untouched when any value is invalid.
func Apply(obs *objects.Observation, patch Patch) (*Result, error) {
	next := *obs
	result := &Result{Columns: map[string]any{}, Diff: Diff{}}

	for _, f := range patch.Keys() {
		before, after, column, err := applyField(&next, f, patch[f])
		if err != nil {
			return nil, err
		}

		result.Columns[column] = after
		if !equalValues(before, after) {
			result.Diff[f] = Change{Before: display(before), After: display(after)}
		}
	}

	*obs = next

	return result, nil
}

func applyField(obs *objects.Observation, f Field, v Value) (before, after any, column string, err error) {
	column = f.Column()

	if f == TargetDate {
		date, err := v.Date()
		if err != nil {
			return nil, nil, "", xerrors.Validation("invalid %s: %v", f, err)
		}

		before, obs.TargetDate = obs.TargetDate, date

		return before, date, column, nil
	}

	text, err := v.Text()
	if err != nil {
		return nil, nil, "", xerrors.Validation("invalid %s: %v", f, err)
	}

	switch f {
	case ObservationText:
		before, obs.ObservationText = obs.ObservationText, text
	case RiskCategory:
		if text != "" && !objects.RiskCategory(text).Valid() {
			return nil, nil, "", xerrors.Validation("invalid %s: %q is not one of A, B, C", f, text)
		}

		before, obs.RiskCategory = string(obs.RiskCategory), objects.RiskCategory(text)
	case LikelyImpact:
		before, obs.LikelyImpact = obs.LikelyImpact, text
	case ConcernedProcess:
		before, obs.ConcernedProcess = obs.ConcernedProcess, text
	case AuditorPersonID:
		before, obs.AuditorPersonID = obs.AuditorPersonID, text
	case AuditeeFeedback:
		before, obs.AuditeeFeedback = obs.AuditeeFeedback, text
	case ActionPlanText:
		before, obs.ActionPlanText = obs.ActionPlanText, text
	case ResponsiblePerson:
		before, obs.ResponsiblePerson = obs.ResponsiblePerson, text
	case CurrentStatus:
		if !objects.CurrentStatus(text).Valid() {
			return nil, nil, "", xerrors.Validation("invalid %s: %q", f, text)
		}

		before, obs.CurrentStatus = string(obs.CurrentStatus), objects.CurrentStatus(text)
	default:
		return nil, nil, "", xerrors.Validation("unknown field %s", f)
	}

	return before, text, column, nil
}

func equalValues(before, after any) bool {
	bt, bok := before.(*time.Time)
	at, aok := after.(*time.Time)

	if bok || aok {
		if bt == nil || at == nil {
			return bt == nil && at == nil
		}

		return bt.Equal(*at)
	}

	return before == after
}

func display(v any) any {
	if t, ok := v.(*time.Time); ok {
		if t == nil {
			return nil
		}

		return t.Format(time.DateOnly)
	}

	return v
}

// Keys returns the changed fields in a stable order.
func (d Diff) Keys() []Field {
	keys := lo.Keys(map[Field]Change(d))
	slices.Sort(keys)

	return keys
}
