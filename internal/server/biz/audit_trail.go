package biz

import (
	"context"

	"go.uber.org/fx"

	"github.com/looplj/auditflow/internal/audittrail"
	"github.com/looplj/auditflow/internal/authz"
)

type AuditTrailServiceParams struct {
	fx.In

	Reader audittrail.Reader
}

type AuditTrailService struct {
	reader audittrail.Reader
}

func NewAuditTrailService(params AuditTrailServiceParams) *AuditTrailService {
	return &AuditTrailService{reader: params.Reader}
}

// QueryEntries returns audit trail entries, newest first.
func (s *AuditTrailService) QueryEntries(ctx context.Context, filter audittrail.Filter) ([]audittrail.Entry, error) {
	p, err := authz.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}

	if err := authz.AssertCFOOrCXOTeam(p, "read the audit trail"); err != nil {
		return nil, err
	}

	return s.reader.QueryEntries(ctx, filter)
}
