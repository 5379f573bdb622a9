package objects

import "time"

// Audit is one audit engagement, observations belong to exactly one audit.
type Audit struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	PlantID     string     `json:"plantId"`
	AuditHeadID string     `json:"auditHeadId,omitempty"`
	IsLocked    bool       `json:"isLocked"`
	LockedAt    *time.Time `json:"lockedAt,omitempty"`
	LockedBy    string     `json:"lockedBy,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CompletedBy string     `json:"completedBy,omitempty"`
	CreatedBy   string     `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (a *Audit) IsCompleted() bool {
	return a.CompletedAt != nil
}
