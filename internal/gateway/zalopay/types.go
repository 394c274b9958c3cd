package zalopay

import (
	"fmt"
	"strings"
)

// Config carries the gateway credentials and endpoints. Key1 signs outbound
// requests; Key2 verifies inbound callbacks and redirect checksums. The two
// keys are distinct and must never be swapped.
type Config struct {
	AppID           int
	Key1            string
	Key2            string
	Endpoint        string
	CreatePath      string
	QueryPath       string
	RefundPath      string
	QueryRefundPath string
	CallbackURL     string
	RedirectURL     string
}

// Validate fails fast on missing credentials so misconfiguration surfaces at
// startup instead of on the first customer payment.
func (c Config) Validate() error {
	var missing []string
	if c.AppID <= 0 {
		missing = append(missing, "app_id")
	}
	if c.Key1 == "" {
		missing = append(missing, "key1")
	}
	if c.Key2 == "" {
		missing = append(missing, "key2")
	}
	if c.Endpoint == "" {
		missing = append(missing, "endpoint")
	}
	if c.CallbackURL == "" {
		missing = append(missing, "callback_url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrNotConfigured, strings.Join(missing, ", "))
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.CreatePath == "" {
		c.CreatePath = "/v2/create"
	}
	if c.QueryPath == "" {
		c.QueryPath = "/v2/query"
	}
	if c.RefundPath == "" {
		c.RefundPath = "/v2/refund"
	}
	if c.QueryRefundPath == "" {
		c.QueryRefundPath = "/v2/query_refund"
	}
	return c
}

// Item is one purchasable line serialized into the create request.
type Item struct {
	ID       string `json:"itemid"`
	Name     string `json:"itemname"`
	Price    int64  `json:"itemprice"`
	Quantity int    `json:"itemquantity"`
}

// CreateOrderInput collects everything needed for the create operation.
type CreateOrderInput struct {
	OrderRef    string
	Amount      int64
	Description string
	CustomerRef string
	Items       []Item
	EmbedData   map[string]any
}

// CreateOrderResult is the successful outcome of CreateOrder.
type CreateOrderResult struct {
	AppTransID string
	OrderURL   string
	TransToken string
}

// Gateway status codes shared by the query and refund operations.
const (
	CodeSuccess    = 1
	CodeFailure    = 2
	CodeProcessing = 3
)

// Status is the gateway's answer to a query. A non-success code is a valid
// answer (not found, still pending), not an error.
type Status struct {
	Code    int
	SubCode int
	Message string
	TransID string
	Amount  int64
}

// Paid reports whether the gateway confirms money moved.
func (s Status) Paid() bool { return s.Code == CodeSuccess }

// Final reports whether the gateway considers the transaction settled either
// way; processing answers are neither.
func (s Status) Final() bool { return s.Code == CodeSuccess || s.Code == CodeFailure }

// RefundResult is the outcome of a refund submission.
type RefundResult struct {
	RefundID string
	Code     int
	Message  string
}

// RefundStatus is the gateway's answer to a refund query.
type RefundStatus struct {
	Code    int
	Message string
}

// CallbackEnvelope is the webhook body: an opaque JSON string plus its MAC.
// This exact shape is the gateway's contract.
type CallbackEnvelope struct {
	Data string `json:"data"`
	MAC  string `json:"mac"`
	Type int    `json:"type"`
}

// CallbackAck is the webhook response: 1 accepts, 2 rejects (gateway retries).
type CallbackAck struct {
	ReturnCode    int    `json:"return_code"`
	ReturnMessage string `json:"return_message"`
}

// CallbackData is the parsed callback payload. The notification does not
// reliably carry an explicit success code; see SuccessClassifier.
type CallbackData struct {
	AppID         int    `json:"app_id"`
	AppTransID    string `json:"app_trans_id"`
	AppUser       string `json:"app_user"`
	Amount        int64  `json:"amount"`
	ZpTransID     int64  `json:"zp_trans_id"`
	Status        int    `json:"status"`
	SubReturnCode int    `json:"sub_return_code"`
	EmbedData     string `json:"embed_data"`
	Item          string `json:"item"`
	ServerTime    int64  `json:"server_time"`
	Channel       int    `json:"channel"`
}

// SuccessClassifier decides whether a verified callback reports a successful
// payment. The inference rule is gateway-specific and deliberately pluggable.
type SuccessClassifier func(CallbackData) bool

// DefaultClassifier reproduces the production rule for this integration: an
// explicit negative status or sub code always means failure; otherwise success
// is inferred from the presence of a transaction id. Do not "improve" this
// without confirming against the live gateway contract.
func DefaultClassifier(data CallbackData) bool {
	if data.Status < 0 || data.SubReturnCode < 0 {
		return false
	}
	return data.ZpTransID != 0
}
