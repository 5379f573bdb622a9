package fields

import (
	"slices"

	"github.com/samber/lo"

	"github.com/looplj/auditflow/internal/authz"
)

// Field is the API name of an observation content field.
type Field string

// Auditor owned fields.
const (
	ObservationText  Field = "observationText"
	RiskCategory     Field = "riskCategory"
	LikelyImpact     Field = "likelyImpact"
	ConcernedProcess Field = "concernedProcess"
	AuditorPersonID  Field = "auditorPersonId"
)

// Auditee owned fields.
const (
	AuditeeFeedback   Field = "auditeeFeedback"
	ActionPlanText    Field = "actionPlanText"
	TargetDate        Field = "targetDate"
	ResponsiblePerson Field = "responsiblePerson"
	CurrentStatus     Field = "currentStatus"
)

var (
	auditorFields = []Field{ObservationText, RiskCategory, LikelyImpact, ConcernedProcess, AuditorPersonID}
	auditeeFields = []Field{AuditeeFeedback, ActionPlanText, TargetDate, ResponsiblePerson, CurrentStatus}
)

var columns = map[Field]string{
	ObservationText:   "observation_text",
	RiskCategory:      "risk_category",
	LikelyImpact:      "likely_impact",
	ConcernedProcess:  "concerned_process",
	AuditorPersonID:   "auditor_person_id",
	AuditeeFeedback:   "auditee_feedback",
	ActionPlanText:    "action_plan_text",
	TargetDate:        "target_date",
	ResponsiblePerson: "responsible_person",
	CurrentStatus:     "current_status",
}

func AuditorFields() []Field {
	return slices.Clone(auditorFields)
}

func AuditeeFields() []Field {
	return slices.Clone(auditeeFields)
}

// AllFields is the allow-list of every writable content field.
func AllFields() []Field {
	return append(AuditorFields(), auditeeFields...)
}

func IsAuditorField(f Field) bool {
	return lo.Contains(auditorFields, f)
}

func IsAuditeeField(f Field) bool {
	return lo.Contains(auditeeFields, f)
}

func IsKnown(f Field) bool {
	_, ok := columns[f]
	return ok
}

// Column returns the storage column of f.
func (f Field) Column() string {
	return columns[f]
}

// AllowedFor returns the fields role may write directly.
func AllowedFor(role authz.Role) []Field {
	switch {
	case authz.IsCFO(role):
		return AllFields()
	case authz.IsAuditorLike(role):
		return AuditorFields()
	case authz.IsAuditee(role):
		return AuditeeFields()
	default:
		return nil
	}
}

// ParseList validates field names, used for the per-observation locked field list.
func ParseList(names []string) ([]Field, []string) {
	var (
		known   []Field
		unknown []string
	)

	for _, name := range lo.Uniq(names) {
		f := Field(name)
		if IsKnown(f) {
			known = append(known, f)
		} else {
			unknown = append(unknown, name)
		}
	}

	return known, unknown
}
