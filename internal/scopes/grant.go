package scopes

import (
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"github.com/looplj/auditflow/internal/authz"
	"github.com/looplj/auditflow/internal/objects"
)

// Grant lists what a restricted user may see on top of published observations.
type Grant struct {
	ObservationIDs []string `json:"observationIds,omitempty"`
	AuditIDs       []string `json:"auditIds,omitempty"`
}

func (g *Grant) Empty() bool {
	return g == nil || (len(g.ObservationIDs) == 0 && len(g.AuditIDs) == 0)
}

func (g *Grant) JSON() []byte {
	if g == nil {
		return []byte("{}")
	}

	data, _ := json.Marshal(g)

	return data
}

// ParseGrant parses a stored grant, anything but {"observationIds":[..],"auditIds":[..]} is rejected.
func ParseGrant(raw []byte) (*Grant, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("scope grant is not valid JSON")
	}

	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return nil, fmt.Errorf("scope grant must be an object")
	}

	var (
		grant Grant
		err   error
	)

	doc.ForEach(func(key, value gjson.Result) bool {
		switch key.String() {
		case "observationIds":
			grant.ObservationIDs, err = parseIDs(key.String(), value)
		case "auditIds":
			grant.AuditIDs, err = parseIDs(key.String(), value)
		default:
			err = fmt.Errorf("unknown scope grant key %q", key.String())
		}

		return err == nil
	})

	if err != nil {
		return nil, err
	}

	return &grant, nil
}

func parseIDs(key string, value gjson.Result) ([]string, error) {
	if value.Type == gjson.Null {
		return nil, nil
	}

	if !value.IsArray() {
		return nil, fmt.Errorf("%s must be an array of strings", key)
	}

	var (
		ids []string
		err error
	)

	value.ForEach(func(_, item gjson.Result) bool {
		if item.Type != gjson.String || item.Str == "" {
			err = fmt.Errorf("%s must contain non-empty strings, got %s", key, item.Raw)
			return false
		}

		ids = append(ids, item.Str)

		return true
	})

	if err != nil {
		return nil, err
	}

	return lo.Uniq(ids), nil
}

// Contains reports whether obs is inside grant.
func Contains(obs *objects.Observation, grant *Grant) bool {
	if grant.Empty() || obs == nil {
		return false
	}

	return lo.Contains(grant.ObservationIDs, obs.ID) || lo.Contains(grant.AuditIDs, obs.AuditID)
}

// CanRead applies the read rule: unrestricted roles read everything,
// restricted roles read published approved observations and their grant.
func CanRead(role authz.Role, obs *objects.Observation, grant *Grant) bool {
	if !authz.IsRestricted(role) {
		return true
	}

	if obs.ApprovalStatus == objects.ApprovalApproved && obs.IsPublished {
		return true
	}

	return Contains(obs, grant)
}
