package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/gateway/zalopay"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/repository"
)

// ErrWrongPaymentMethod rejects gateway operations on orders that are not
// paying through this integration.
var ErrWrongPaymentMethod = errors.New("service: order does not use zalopay")

// ErrAlreadySettled rejects starting a payment on a non-pending order.
var ErrAlreadySettled = errors.New("service: order payment already settled")

// OrderCreator is the create slice of the gateway client.
type OrderCreator interface {
	CreateOrder(ctx context.Context, input zalopay.CreateOrderInput) (*zalopay.CreateOrderResult, error)
}

// PaymentAttempt is what the storefront needs to send the customer to the
// gateway.
type PaymentAttempt struct {
	AppTransID string
	OrderURL   string
	TransToken string
}

// CheckoutService begins payment attempts. The correlation key is assigned at
// most once per order; a retried attempt on the same day reuses it, so the
// gateway never sees a duplicate order.
type CheckoutService interface {
	StartPayment(ctx context.Context, orderNumber string) (*PaymentAttempt, error)
}

type checkoutService struct {
	orders  repository.OrderRepository
	gateway OrderCreator
	logger  *slog.Logger
	now     func() time.Time
}

// NewCheckoutService constructs the checkout flow.
func NewCheckoutService(orders repository.OrderRepository, gateway OrderCreator, logger *slog.Logger) CheckoutService {
	if logger == nil {
		logger = slog.Default()
	}
	return &checkoutService{orders: orders, gateway: gateway, logger: logger, now: time.Now}
}

func (s *checkoutService) StartPayment(ctx context.Context, orderNumber string) (*PaymentAttempt, error) {
	order, err := s.orders.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != repository.PaymentMethodZaloPay {
		return nil, ErrWrongPaymentMethod
	}
	if order.PaymentStatus != repository.PaymentStatusPending {
		return nil, ErrAlreadySettled
	}

	customerRef := order.CustomerPhone
	if customerRef == "" {
		customerRef = order.CustomerEmail
	}

	result, err := s.gateway.CreateOrder(ctx, zalopay.CreateOrderInput{
		OrderRef:    order.OrderNumber,
		Amount:      order.Total,
		Description: fmt.Sprintf("Thanh toan don hang %s", order.OrderNumber),
		CustomerRef: customerRef,
		EmbedData:   map[string]any{"order_number": order.OrderNumber},
	})
	if err != nil {
		return nil, err
	}

	assigned, err := s.orders.AssignAppTransID(ctx, order.ID, result.AppTransID, s.now().Unix())
	if err != nil {
		return nil, fmt.Errorf("assign app_trans_id: %w", err)
	}
	if !assigned {
		// A different key is already recorded; that earlier attempt owns the
		// gateway order and this one must not supersede it.
		return nil, fmt.Errorf("order %s already correlated with another gateway order", orderNumber)
	}

	return &PaymentAttempt{
		AppTransID: result.AppTransID,
		OrderURL:   result.OrderURL,
		TransToken: result.TransToken,
	}, nil
}
