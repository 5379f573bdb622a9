package workflow

import (
	"github.com/looplj/auditflow/internal/authz"
	"github.com/looplj/auditflow/internal/objects"
	"github.com/looplj/auditflow/internal/pkg/xerrors"
)

// Target is one item of a bulk transition, Observation is nil when the id does not exist.
type Target struct {
	ID          string
	Observation *objects.Observation
	Audit       *objects.Audit
}

// CheckAll validates every target before anything changes.
// It returns nil only when all targets pass.
func CheckAll(p authz.Principal, t Transition, targets []Target) error {
	bulkErr := &xerrors.BulkError{Operation: "bulk " + string(t)}

	if len(targets) == 0 {
		return xerrors.Validation("bulk %s needs at least one observation", t)
	}

	seen := make(map[string]struct{}, len(targets))

	for _, target := range targets {
		if _, dup := seen[target.ID]; dup {
			bulkErr.Add(target.ID, xerrors.Validation("duplicate observation id"))
			continue
		}

		seen[target.ID] = struct{}{}

		if target.Observation == nil {
			bulkErr.Add(target.ID, xerrors.NotFound("observation", target.ID))
			continue
		}

		if err := Check(p, t, target.Observation, target.Audit); err != nil {
			bulkErr.Add(target.ID, err)
		}
	}

	return bulkErr.ErrorOrNil()
}
