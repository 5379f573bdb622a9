package biz

import (
	"errors"

	"github.com/looplj/auditflow/internal/pkg/xerrors"
	"github.com/looplj/auditflow/internal/store"
)

var ErrConcurrentTransition = xerrors.Validation("observation status changed concurrently, reload and retry")

// notFound translates store.ErrNotFound into the domain error of entity.
func notFound(err error, entity, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return xerrors.NotFound(entity, id)
	}

	return err
}
