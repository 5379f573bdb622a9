package scopes

import (
	entsql "entgo.io/ent/dialect/sql"
	"github.com/samber/lo"
)

// Filter is the disjunction "id in ObservationIDs OR audit_id in AuditIDs".
type Filter struct {
	ObservationIDs []string
	AuditIDs       []string
}

// BuildFilter returns the visibility filter of grant, an empty filter grants nothing extra.
func BuildFilter(grant *Grant) Filter {
	if grant.Empty() {
		return Filter{}
	}

	return Filter{
		ObservationIDs: grant.ObservationIDs,
		AuditIDs:       grant.AuditIDs,
	}
}

func (f Filter) Empty() bool {
	return len(f.ObservationIDs) == 0 && len(f.AuditIDs) == 0
}

// Predicate renders the filter against the given columns, nil when empty.
func (f Filter) Predicate(idColumn, auditColumn string) *entsql.Predicate {
	var preds []*entsql.Predicate

	if len(f.ObservationIDs) > 0 {
		preds = append(preds, entsql.In(idColumn, toArgs(f.ObservationIDs)...))
	}

	if len(f.AuditIDs) > 0 {
		preds = append(preds, entsql.In(auditColumn, toArgs(f.AuditIDs)...))
	}

	switch len(preds) {
	case 0:
		return nil
	case 1:
		return preds[0]
	default:
		return entsql.Or(preds...)
	}
}

func toArgs(ids []string) []any {
	return lo.Map(ids, func(id string, _ int) any { return id })
}
