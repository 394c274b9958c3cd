package service

import (
	"context"
	"sync"

	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/gateway/zalopay"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/notifier"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/repository"
)

// fakeOrderRepo is an in-memory OrderRepository with the same conditional
// write semantics as the sqlite implementation.
type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[int64]*repository.Order
	nextID int64

	updateCalls int
	// beforeUpdate runs under the lock right before the guarded write,
	// simulating a concurrent writer that slips in between read and update.
	beforeUpdate func(*fakeOrderRepo)
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[int64]*repository.Order), nextID: 1}
}

func (f *fakeOrderRepo) add(order *repository.Order) *repository.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *order
	clone.ID = f.nextID
	f.nextID++
	f.orders[clone.ID] = &clone
	return &clone
}

func (f *fakeOrderRepo) Create(ctx context.Context, order *repository.Order) (*repository.Order, error) {
	return f.add(order), nil
}

func (f *fakeOrderRepo) FindByID(ctx context.Context, id int64) (*repository.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.orders[id]; ok {
		clone := *o
		return &clone, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeOrderRepo) FindByOrderNumber(ctx context.Context, number string) (*repository.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.OrderNumber == number {
			clone := *o
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeOrderRepo) FindByAppTransID(ctx context.Context, appTransID string) (*repository.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.AppTransID == appTransID {
			clone := *o
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeOrderRepo) AssignAppTransID(ctx context.Context, orderID int64, appTransID string, updatedAt int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if o.AppTransID != "" && o.AppTransID != appTransID {
		return false, nil
	}
	o.AppTransID = appTransID
	o.UpdatedAt = updatedAt
	return true, nil
}

func (f *fakeOrderRepo) UpdatePaymentStatus(ctx context.Context, upd repository.PaymentStatusUpdate) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.beforeUpdate != nil {
		hook := f.beforeUpdate
		f.beforeUpdate = nil
		hook(f)
	}
	for _, o := range f.orders {
		if o.AppTransID != upd.AppTransID {
			continue
		}
		if o.PaymentStatus != upd.FromStatus {
			return false, nil
		}
		o.PaymentStatus = upd.ToStatus
		if upd.GatewayTransID != nil {
			o.GatewayTransID = upd.GatewayTransID
		}
		if upd.AdvanceOrder && o.OrderStatus == repository.OrderStatusPending {
			o.OrderStatus = repository.OrderStatusProcessing
		}
		o.UpdatedAt = upd.UpdatedAt
		return true, nil
	}
	return false, nil
}

func (f *fakeOrderRepo) ListPendingOlderThan(ctx context.Context, method string, createdBefore int64, limit int) ([]*repository.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*repository.Order
	for _, o := range f.orders {
		if o.PaymentMethod == method && o.PaymentStatus == repository.PaymentStatusPending && o.CreatedAt < createdBefore {
			clone := *o
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) ListRemediationTargets(ctx context.Context, filter repository.RemediationFilter) ([]*repository.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*repository.Order
	for _, o := range f.orders {
		if o.PaymentMethod != filter.PaymentMethod || o.AppTransID == "" {
			continue
		}
		inconsistent := o.GatewayTransID != nil && o.PaymentStatus != repository.PaymentStatusPaid
		stale := o.PaymentStatus == repository.PaymentStatusPending && o.CreatedAt < filter.PendingCreatedLT
		if inconsistent || stale {
			clone := *o
			out = append(out, &clone)
		}
	}
	return out, nil
}

// setStatus mutates an order directly, bypassing the guarded write path.
func (f *fakeOrderRepo) setStatus(appTransID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.AppTransID == appTransID {
			o.PaymentStatus = status
		}
	}
}

type fakeCandidateRepo struct {
	mu         sync.Mutex
	candidates map[string]*repository.RemediationCandidate
}

func newFakeCandidateRepo() *fakeCandidateRepo {
	return &fakeCandidateRepo{candidates: make(map[string]*repository.RemediationCandidate)}
}

func (f *fakeCandidateRepo) Upsert(ctx context.Context, candidate *repository.RemediationCandidate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *candidate
	f.candidates[candidate.AppTransID] = &clone
	return nil
}

func (f *fakeCandidateRepo) ListOpen(ctx context.Context) ([]*repository.RemediationCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*repository.RemediationCandidate
	for _, c := range f.candidates {
		if !c.Resolved {
			clone := *c
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeCandidateRepo) Resolve(ctx context.Context, appTransID string, resolvedAt int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.candidates[appTransID]; ok {
		c.Resolved = true
		c.UpdatedAt = resolvedAt
	}
	return nil
}

// fakeGateway answers status queries from a canned table and counts calls.
type fakeGateway struct {
	mu       sync.Mutex
	statuses map[string]zalopay.Status
	errs     map[string][]error
	queries  int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{statuses: make(map[string]zalopay.Status), errs: make(map[string][]error)}
}

func (f *fakeGateway) QueryOrder(ctx context.Context, appTransID string) (zalopay.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if queue := f.errs[appTransID]; len(queue) > 0 {
		err := queue[0]
		f.errs[appTransID] = queue[1:]
		return zalopay.Status{}, err
	}
	return f.statuses[appTransID], nil
}

func (f *fakeGateway) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries
}

type fakeRefunder struct {
	mu     sync.Mutex
	inputs []zalopay.RefundInput
	err    error
}

func (f *fakeRefunder) RefundTransaction(ctx context.Context, input zalopay.RefundInput) (*zalopay.RefundResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.inputs = append(f.inputs, input)
	return &zalopay.RefundResult{RefundID: "260314_2553_refund", Code: zalopay.CodeSuccess}, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notifier.EmailRequest
	err  error
}

func (f *fakeNotifier) SendEmail(ctx context.Context, req notifier.EmailRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, req)
	return nil
}

func (f *fakeNotifier) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func pendingOrder(number, appTransID string, total int64) *repository.Order {
	return &repository.Order{
		OrderNumber:   number,
		Total:         total,
		PaymentMethod: repository.PaymentMethodZaloPay,
		PaymentStatus: repository.PaymentStatusPending,
		OrderStatus:   repository.OrderStatusPending,
		AppTransID:    appTransID,
		CustomerEmail: "khach@example.com",
		CreatedAt:     1700000000,
	}
}
