package fields

import (
	"strings"

	"github.com/samber/lo"

	"github.com/looplj/auditflow/internal/authz"
	"github.com/looplj/auditflow/internal/pkg/xerrors"
)

// Partition keeps the part of patch that role may write and reports the dropped keys.
// Dropping is not an error, an empty result is.
func Partition(role authz.Role, patch Patch) (Patch, []Field, error) {
	allowed := AllowedFor(role)
	kept := patch.Only(allowed)

	dropped := lo.Filter(patch.Keys(), func(f Field, _ int) bool {
		_, ok := kept[f]
		return !ok
	})

	if len(kept) == 0 {
		return nil, dropped, xerrors.Validation("no permitted fields")
	}

	return kept, dropped, nil
}

// RequireSubset rejects a patch carrying any key outside allowed.
func RequireSubset(patch Patch, allowed []Field) error {
	if len(patch) == 0 {
		return xerrors.Validation("patch is empty")
	}

	offending := lo.Filter(patch.Keys(), func(f Field, _ int) bool {
		return !lo.Contains(allowed, f)
	})
	if len(offending) > 0 {
		names := lo.Map(offending, func(f Field, _ int) string { return string(f) })
		return xerrors.Validation("fields not allowed: %s", strings.Join(names, ", "))
	}

	return nil
}

// LockedIn returns the patch keys listed in locked.
func LockedIn(patch Patch, locked []string) []Field {
	return lo.Filter(patch.Keys(), func(f Field, _ int) bool {
		return lo.Contains(locked, string(f))
	})
}
