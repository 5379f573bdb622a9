package objects

import (
	"encoding/json"
	"time"
)

type ChangeRequestStatus string

const (
	ChangeRequestPending  ChangeRequestStatus = "PENDING"
	ChangeRequestApproved ChangeRequestStatus = "APPROVED"
	ChangeRequestDenied   ChangeRequestStatus = "DENIED"
)

// ChangeRequest proposes a patch against an observation.
type ChangeRequest struct {
	ID              string              `json:"id"`
	ObservationID   string              `json:"observationId"`
	RequesterID     string              `json:"requesterId"`
	RequesterRole   string              `json:"requesterRole"`
	Patch           json.RawMessage     `json:"patch"`
	Reason          string              `json:"reason,omitempty"`
	Status          ChangeRequestStatus `json:"status"`
	DecidedBy       string              `json:"decidedBy,omitempty"`
	DecidedAt       *time.Time          `json:"decidedAt,omitempty"`
	DecisionComment string              `json:"decisionComment,omitempty"`
	Diff            json.RawMessage     `json:"diff,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
}
