package repository

// PaymentStatusUpdate describes a conditional payment-state write. The update
// only lands if the row still carries FromStatus; callers re-read and retry on
// a miss.
type PaymentStatusUpdate struct {
	AppTransID     string
	FromStatus     string
	ToStatus       string
	GatewayTransID *string
	AdvanceOrder   bool
	UpdatedAt      int64
}

// RemediationFilter constrains the remediation scan.
type RemediationFilter struct {
	PaymentMethod    string
	PendingCreatedLT int64 // pending orders created before this unix time
	Limit            int
}
