package objects

import (
	"time"

	"github.com/samber/lo"
)

type ApprovalStatus string

const (
	ApprovalDraft     ApprovalStatus = "DRAFT"
	ApprovalSubmitted ApprovalStatus = "SUBMITTED"
	ApprovalApproved  ApprovalStatus = "APPROVED"
	ApprovalRejected  ApprovalStatus = "REJECTED"
)

func (s ApprovalStatus) Valid() bool {
	return lo.Contains([]ApprovalStatus{ApprovalDraft, ApprovalSubmitted, ApprovalApproved, ApprovalRejected}, s)
}

// CurrentStatus is the remediation status, independent of the approval status.
type CurrentStatus string

const (
	CurrentPending    CurrentStatus = "PENDING"
	CurrentInProgress CurrentStatus = "IN_PROGRESS"
	CurrentResolved   CurrentStatus = "RESOLVED"
	CurrentClosed     CurrentStatus = "CLOSED"
)

func (s CurrentStatus) Valid() bool {
	return lo.Contains([]CurrentStatus{CurrentPending, CurrentInProgress, CurrentResolved, CurrentClosed}, s)
}

type RiskCategory string

const (
	RiskA RiskCategory = "A"
	RiskB RiskCategory = "B"
	RiskC RiskCategory = "C"
)

func (c RiskCategory) Valid() bool {
	return lo.Contains([]RiskCategory{RiskA, RiskB, RiskC}, c)
}

// Observation is a single audit finding.
type Observation struct {
	ID      string `json:"id"`
	AuditID string `json:"auditId"`
	PlantID string `json:"plantId"`

	// Auditor owned.
	ObservationText  string       `json:"observationText"`
	RiskCategory     RiskCategory `json:"riskCategory,omitempty"`
	LikelyImpact     string       `json:"likelyImpact"`
	ConcernedProcess string       `json:"concernedProcess"`
	AuditorPersonID  string       `json:"auditorPersonId,omitempty"`

	// Auditee owned.
	AuditeeFeedback   string        `json:"auditeeFeedback"`
	ActionPlanText    string        `json:"actionPlanText"`
	TargetDate        *time.Time    `json:"targetDate,omitempty"`
	ResponsiblePerson string        `json:"responsiblePerson"`
	CurrentStatus     CurrentStatus `json:"currentStatus"`

	ApprovalStatus ApprovalStatus `json:"approvalStatus"`
	IsPublished    bool           `json:"isPublished"`
	LockedFields   []string       `json:"lockedFields"`

	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Approval is one immutable row of the approval history.
type Approval struct {
	ID            string         `json:"id"`
	ObservationID string         `json:"observationId"`
	Status        ApprovalStatus `json:"status"`
	ActorID       string         `json:"actorId"`
	Comment       string         `json:"comment,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// ObservationFilter narrows list queries.
type ObservationFilter struct {
	AuditID        string
	ApprovalStatus ApprovalStatus
	IsPublished    *bool
	Limit          int
	Offset         int
}
