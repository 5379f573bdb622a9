package objects

import (
	"encoding/json"
	"time"
)

// Invite grants a restricted user its role and scope once redeemed.
type Invite struct {
	ID         string          `json:"id"`
	Token      string          `json:"token,omitempty"`
	Email      string          `json:"email"`
	Role       string          `json:"role"`
	Scope      json.RawMessage `json:"scope,omitempty"`
	CreatedBy  string          `json:"createdBy"`
	CreatedAt  time.Time       `json:"createdAt"`
	ExpiresAt  *time.Time      `json:"expiresAt,omitempty"`
	RedeemedBy string          `json:"redeemedBy,omitempty"`
	RedeemedAt *time.Time      `json:"redeemedAt,omitempty"`
}

func (i *Invite) IsRedeemed() bool {
	return i.RedeemedAt != nil
}

func (i *Invite) IsExpired(now time.Time) bool {
	return i.ExpiresAt != nil && now.After(*i.ExpiresAt)
}
