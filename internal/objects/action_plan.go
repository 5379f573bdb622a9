package objects

import (
	"time"

	"github.com/samber/lo"
)

type RetestStatus string

const (
	RetestNone RetestStatus = ""
	RetestDue  RetestStatus = "RETEST_DUE"
	RetestPass RetestStatus = "PASS"
	RetestFail RetestStatus = "FAIL"
)

func (s RetestStatus) Valid() bool {
	return lo.Contains([]RetestStatus{RetestNone, RetestDue, RetestPass, RetestFail}, s)
}

// ActionPlanCompleted is the free-text status that makes a retest due.
const ActionPlanCompleted = "Completed"

type ActionPlan struct {
	ID            string       `json:"id"`
	ObservationID string       `json:"observationId"`
	Plan          string       `json:"plan"`
	Owner         string       `json:"owner,omitempty"`
	TargetDate    *time.Time   `json:"targetDate,omitempty"`
	Status        string       `json:"status,omitempty"`
	Retest        RetestStatus `json:"retest,omitempty"`
	CreatedBy     string       `json:"createdBy"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}
