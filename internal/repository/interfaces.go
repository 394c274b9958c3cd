package repository

import "context"

// Store exposes the repository for each aggregate root.
type Store interface {
	Orders() OrderRepository
	RemediationCandidates() RemediationCandidateRepository
}

// OrderRepository defines order data access. All payment-state mutation goes
// through UpdatePaymentStatus, which is the single optimistic-concurrency
// write path.
type OrderRepository interface {
	Create(ctx context.Context, order *Order) (*Order, error)
	FindByID(ctx context.Context, id int64) (*Order, error)
	FindByOrderNumber(ctx context.Context, number string) (*Order, error)
	FindByAppTransID(ctx context.Context, appTransID string) (*Order, error)
	// AssignAppTransID sets the gateway correlation key, only if none is
	// assigned yet or the same key is re-assigned. Returns false otherwise.
	AssignAppTransID(ctx context.Context, orderID int64, appTransID string, updatedAt int64) (bool, error)
	// UpdatePaymentStatus performs the conditional write described by upd and
	// reports whether the guarded row matched.
	UpdatePaymentStatus(ctx context.Context, upd PaymentStatusUpdate) (bool, error)
	ListPendingOlderThan(ctx context.Context, method string, createdBefore int64, limit int) ([]*Order, error)
	ListRemediationTargets(ctx context.Context, filter RemediationFilter) ([]*Order, error)
}

// RemediationCandidateRepository manages the manual-review worklist.
type RemediationCandidateRepository interface {
	Upsert(ctx context.Context, candidate *RemediationCandidate) error
	ListOpen(ctx context.Context) ([]*RemediationCandidate, error)
	Resolve(ctx context.Context, appTransID string, resolvedAt int64) error
}
