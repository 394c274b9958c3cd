package repository

// Payment status values. Transitions pending->paid, pending->failed and
// paid->refunded are legal; refunded is terminal.
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// Order status values. Payment writes may advance pending->processing but
// never regress this state machine.
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// PaymentMethodZaloPay marks orders paid through the ZaloPay integration.
// Reconciliation only applies to orders with this method.
const PaymentMethodZaloPay = "zalopay"

// Order is the authoritative local record of an order's commercial and
// payment state. Amounts are VND (integer minor units); comparisons are
// exact-integer, never floating point.
type Order struct {
	ID             int64
	OrderNumber    string
	Total          int64
	PaymentMethod  string
	PaymentStatus  string
	OrderStatus    string
	AppTransID     string
	GatewayTransID *string
	CustomerName   string
	CustomerEmail  string
	CustomerPhone  string
	CreatedAt      int64
	UpdatedAt      int64
}

// RemediationCandidate records an order the remediator could not repair;
// entries require human review before any refund is submitted.
type RemediationCandidate struct {
	ID             int64
	AppTransID     string
	OrderNumber    string
	LocalStatus    string
	GatewayTransID *string
	Reason         string
	Resolved       bool
	CreatedAt      int64
	UpdatedAt      int64
}
