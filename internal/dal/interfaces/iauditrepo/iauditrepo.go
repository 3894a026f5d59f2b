package iauditrepo

import (
	"context"

	"github.com/corray333/backend-labs/checkout/internal/service/models/auditlog"
)

// IAuditRepository stores the trail of privileged order updates.
type IAuditRepository interface {
	Insert(ctx context.Context, entry auditlog.OrderStatusAudit) error
	ListByOrder(ctx context.Context, orderID int64) ([]auditlog.OrderStatusAudit, error)
}
