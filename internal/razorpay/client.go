// Package razorpay implements the payment gateway contract against the
// Razorpay Orders API.
package razorpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/openkiosk/storefront/internal/domain/payment"
)

// DefaultBaseURL is the production Razorpay API endpoint.
const DefaultBaseURL = "https://api.razorpay.com"

var minorUnits = decimal.NewFromInt(100)

var _ payment.Gateway = (*Client)(nil)

// Client talks to the Razorpay REST API. The base URL is injectable so
// tests can point it at a local server.
type Client struct {
	http    *http.Client
	baseURL string
	keyID   string
	secret  []byte
}

// Config holds the provider credentials and client tuning.
type Config struct {
	KeyID   string
	Secret  string
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a Razorpay API client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		keyID:   cfg.KeyID,
		secret:  []byte(cfg.Secret),
	}
}

// CreateIntent registers a provider-side order for the given major-unit
// amount. The amount is converted to the provider's minor-unit integer
// (multiply by 100, round) to avoid floating point drift.
func (c *Client) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, notes map[string]string) (*payment.Intent, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, payment.ErrInvalidAmount
	}

	minor := amount.Mul(minorUnits).Round(0).IntPart()
	receipt := fmt.Sprintf("receipt_%d", time.Now().UnixMilli())

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("amount")
	e.Int64(minor)
	e.FieldStart("currency")
	e.Str(currency)
	e.FieldStart("receipt")
	e.Str(receipt)
	e.FieldStart("notes")
	e.ObjStart()
	for k, v := range notes {
		e.FieldStart(k)
		e.Str(v)
	}
	e.ObjEnd()
	e.ObjEnd()

	body, err := c.post(ctx, "/v1/orders", e.Bytes())
	if err != nil {
		return nil, err
	}

	intent := &payment.Intent{KeyID: c.keyID}
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			s, err := d.Str()
			intent.ID = s
			return err
		case "amount":
			n, err := d.Int64()
			intent.Amount = n
			return err
		case "currency":
			s, err := d.Str()
			intent.Currency = s
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, &payment.UpstreamError{Op: "create order", Err: errors.Wrap(err, "decode response")}
	}
	if intent.ID == "" {
		return nil, &payment.UpstreamError{Op: "create order", Err: errors.New("response missing order id")}
	}

	return intent, nil
}

// VerifySignature reports whether signature is exactly the lowercase hex
// HMAC-SHA256 of "<orderID>|<paymentID>" under the provider secret. The
// provider emits lowercase hex, so any deviation, including a case change,
// is a plain false, never an error. The comparison is constant-time.
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))

	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// FetchPayment returns the provider's raw payment record.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/payments/"+paymentID, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	return c.do(req, "fetch payment")
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, "create order")
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	req.SetBasicAuth(c.keyID, string(c.secret))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &payment.UpstreamError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &payment.UpstreamError{Op: op, Err: errors.Wrap(err, "read response")}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &payment.UpstreamError{
			Op:  op,
			Err: errors.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 256)),
		}
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
