package zalopay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const requestTimeout = 30 * time.Second

// Client talks to the gateway's HTTP API. It is stateless and safe for
// concurrent use. The client never retries on its own: retrying create could
// double-charge, so retry policy lives in the reconciler.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
	now    func() time.Time
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New validates the configuration and constructs a client. Construct once at
// process start and share by reference.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		cfg:    cfg.withDefaults(),
		http:   &http.Client{Timeout: requestTimeout},
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// AppTransID derives the gateway correlation key for an order: a yymmdd date
// prefix followed by the folded, uppercased order reference, truncated to the
// gateway's 40-character limit. Deterministic for a given (orderRef, day), so
// a retried create reuses the same id and cannot open a duplicate gateway
// order.
func AppTransID(orderRef string, at time.Time) string {
	ref := foldASCII(orderRef)
	var b strings.Builder
	b.WriteString(at.Format("060102"))
	for _, r := range ref {
		if b.Len() >= 40 {
			break
		}
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= 'a' && r <= 'z':
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// foldASCII strips Vietnamese diacritics so gateway identifier fields stay in
// the accepted character set.
func foldASCII(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case 'Đ':
			return 'D'
		case 'đ':
			return 'd'
		}
		return r
	}, s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// normalizeAppUser maps the customer contact to a gateway-accepted identifier:
// a phone-digit string or an email, falling back to a fixed placeholder.
func normalizeAppUser(ref string) string {
	ref = strings.TrimSpace(ref)
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, ref)
	if len(digits) >= 9 && len(digits) <= 12 && len(digits) >= len(ref)-4 {
		return digits
	}
	if at := strings.Index(ref, "@"); at > 0 && at < len(ref)-3 && !strings.ContainsAny(ref, " |") {
		return ref
	}
	return "guest"
}

// CreateOrder opens a payment attempt at the gateway and returns the order
// URL the customer pays on. amount is VND; it must be positive.
func (c *Client) CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	if input.Amount <= 0 {
		return nil, fmt.Errorf("zalopay: amount must be positive, got %d", input.Amount)
	}
	now := c.now()
	appTransID := AppTransID(input.OrderRef, now)
	appUser := normalizeAppUser(input.CustomerRef)
	appTime := now.UnixMilli()

	embed := map[string]any{"redirecturl": c.cfg.RedirectURL}
	for k, v := range input.EmbedData {
		embed[k] = v
	}
	embedJSON, err := json.Marshal(embed)
	if err != nil {
		return nil, fmt.Errorf("zalopay: marshal embed_data: %w", err)
	}
	items := input.Items
	if items == nil {
		items = []Item{}
	}
	itemJSON, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("zalopay: marshal item: %w", err)
	}

	appID := strconv.Itoa(c.cfg.AppID)
	body := map[string]any{
		"app_id":       c.cfg.AppID,
		"app_trans_id": appTransID,
		"app_user":     appUser,
		"app_time":     appTime,
		"amount":       input.Amount,
		"item":         string(itemJSON),
		"embed_data":   string(embedJSON),
		"description":  foldASCII(input.Description),
		"bank_code":    "",
		"callback_url": c.cfg.CallbackURL,
	}
	body["mac"] = Sign(c.cfg.Key1,
		appID,
		appTransID,
		appUser,
		strconv.FormatInt(input.Amount, 10),
		strconv.FormatInt(appTime, 10),
		string(embedJSON),
		string(itemJSON),
	)

	var resp struct {
		ReturnCode    int    `json:"return_code"`
		ReturnMessage string `json:"return_message"`
		SubReturnCode int    `json:"sub_return_code"`
		OrderURL      string `json:"order_url"`
		ZpTransToken  string `json:"zp_trans_token"`
	}
	if err := c.post(ctx, c.cfg.CreatePath, body, &resp); err != nil {
		return nil, err
	}
	if resp.ReturnCode != CodeSuccess {
		return nil, &RejectedError{Code: resp.ReturnCode, SubCode: resp.SubReturnCode, Message: resp.ReturnMessage}
	}
	return &CreateOrderResult{
		AppTransID: appTransID,
		OrderURL:   resp.OrderURL,
		TransToken: resp.ZpTransToken,
	}, nil
}

// QueryOrder asks the gateway for the authoritative state of a transaction.
// Pure read; safe to repeat and to run concurrently with itself. Non-success
// return codes are answers, not errors.
func (c *Client) QueryOrder(ctx context.Context, appTransID string) (Status, error) {
	appID := strconv.Itoa(c.cfg.AppID)
	body := map[string]any{
		"app_id":       c.cfg.AppID,
		"app_trans_id": appTransID,
		"mac":          Sign(c.cfg.Key1, appID, appTransID, c.cfg.Key1),
	}

	var resp struct {
		ReturnCode    int    `json:"return_code"`
		ReturnMessage string `json:"return_message"`
		SubReturnCode int    `json:"sub_return_code"`
		ZpTransID     int64  `json:"zp_trans_id"`
		Amount        int64  `json:"amount"`
	}
	if err := c.post(ctx, c.cfg.QueryPath, body, &resp); err != nil {
		return Status{}, err
	}
	status := Status{
		Code:    resp.ReturnCode,
		SubCode: resp.SubReturnCode,
		Message: resp.ReturnMessage,
		Amount:  resp.Amount,
	}
	if resp.ZpTransID != 0 {
		status.TransID = strconv.FormatInt(resp.ZpTransID, 10)
	}
	return status, nil
}

// RefundInput collects everything needed for a refund submission. OrderTotal
// caps the refundable amount and is checked before any network call.
type RefundInput struct {
	TransID     string
	Amount      int64
	OrderTotal  int64
	Description string
}

// RefundTransaction submits a refund. The locally generated refund id lets a
// client-side retry of a failed network call be distinguished from a second,
// independent refund.
func (c *Client) RefundTransaction(ctx context.Context, input RefundInput) (*RefundResult, error) {
	if input.Amount <= 0 {
		return nil, fmt.Errorf("zalopay: refund amount must be positive, got %d", input.Amount)
	}
	if input.Amount > input.OrderTotal {
		return nil, fmt.Errorf("%w: %d > %d", ErrRefundExceedsTotal, input.Amount, input.OrderTotal)
	}

	now := c.now()
	refundID := fmt.Sprintf("%s_%d_%s", now.Format("060102"), c.cfg.AppID, strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
	timestamp := now.UnixMilli()
	appID := strconv.Itoa(c.cfg.AppID)
	description := foldASCII(input.Description)

	body := map[string]any{
		"app_id":      c.cfg.AppID,
		"m_refund_id": refundID,
		"zp_trans_id": input.TransID,
		"amount":      input.Amount,
		"timestamp":   timestamp,
		"description": description,
	}
	body["mac"] = Sign(c.cfg.Key1,
		appID,
		input.TransID,
		strconv.FormatInt(input.Amount, 10),
		description,
		strconv.FormatInt(timestamp, 10),
	)

	var resp struct {
		ReturnCode    int    `json:"return_code"`
		ReturnMessage string `json:"return_message"`
		SubReturnCode int    `json:"sub_return_code"`
	}
	if err := c.post(ctx, c.cfg.RefundPath, body, &resp); err != nil {
		return nil, err
	}
	if resp.ReturnCode == CodeFailure {
		return nil, &RejectedError{Code: resp.ReturnCode, SubCode: resp.SubReturnCode, Message: resp.ReturnMessage}
	}
	return &RefundResult{RefundID: refundID, Code: resp.ReturnCode, Message: resp.ReturnMessage}, nil
}

// QueryRefund asks the gateway for the state of a previously submitted refund.
func (c *Client) QueryRefund(ctx context.Context, refundID string) (RefundStatus, error) {
	timestamp := c.now().UnixMilli()
	appID := strconv.Itoa(c.cfg.AppID)
	body := map[string]any{
		"app_id":      c.cfg.AppID,
		"m_refund_id": refundID,
		"timestamp":   timestamp,
		"mac":         Sign(c.cfg.Key1, appID, refundID, strconv.FormatInt(timestamp, 10)),
	}

	var resp struct {
		ReturnCode    int    `json:"return_code"`
		ReturnMessage string `json:"return_message"`
	}
	if err := c.post(ctx, c.cfg.QueryRefundPath, body, &resp); err != nil {
		return RefundStatus{}, err
	}
	return RefundStatus{Code: resp.ReturnCode, Message: resp.ReturnMessage}, nil
}

// VerifyCallback checks the webhook MAC with the callback key (key2).
func (c *Client) VerifyCallback(data, mac string) bool {
	return Verify(c.cfg.Key2, data, mac)
}

// VerifyRedirect checks the checksum of the browser return leg with key2.
func (c *Client) VerifyRedirect(params url.Values) bool {
	fields := []string{
		params.Get("appid"),
		params.Get("apptransid"),
		params.Get("pmcid"),
		params.Get("bankcode"),
		params.Get("amount"),
		params.Get("discountamount"),
		params.Get("status"),
	}
	return Verify(c.cfg.Key2, strings.Join(fields, "|"), params.Get("checksum"))
}

// RedirectURL exposes the storefront return URL for the handler layer.
func (c *Client) RedirectURL() string { return c.cfg.RedirectURL }

func (c *Client) post(ctx context.Context, path string, body map[string]any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("zalopay: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("zalopay: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: unexpected http status %d", ErrNetwork, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrNetwork, err)
	}
	return nil
}
