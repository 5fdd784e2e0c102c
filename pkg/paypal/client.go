package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/GoStans-Co/gostans-backend/pkg/config"
	pkgerrors "github.com/GoStans-Co/gostans-backend/pkg/errors"
	"github.com/GoStans-Co/gostans-backend/pkg/logger"
)

const (
	sandboxEnv = "sandbox"
	liveEnv    = "live"

	tokenExpirySlack        = 30 * time.Second
	responseBodyLimit int64 = 1 << 20
)

var (
	errClientIDRequired = errors.New("paypal client id is required")
	errSecretRequired   = errors.New("paypal secret is required")
	errInvalidEnv       = fmt.Errorf("paypal environment must be %q or %q", sandboxEnv, liveEnv)
)

var baseURLs = map[string]string{
	sandboxEnv: "https://api-m.sandbox.paypal.com",
	liveEnv:    "https://api-m.paypal.com",
}

// Client wraps the PayPal Orders API used by the redirect payment strategy.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	clientID    string
	secret      string
	environment string
	logger      *logger.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the environment-derived base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient initializes the PayPal wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.PayPalConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, errClientIDRequired
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errSecretRequired
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		baseURL:     baseURLs[env],
		clientID:    clientID,
		secret:      secret,
		environment: env,
		logger:      logg,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("paypal client initialized (%s)", env))
	}
	return c, nil
}

// Environment reports the normalized PayPal environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// CreateOrderInput describes the pending payment to create.
type CreateOrderInput struct {
	Amount      decimal.Decimal
	Currency    string
	Description string
	ReferenceID string
	ReturnURL   string
	CancelURL   string
}

// OrderResult carries the correlation id and the external approval URL.
type OrderResult struct {
	OrderID     string
	ApprovalURL string
	Status      string
}

// CaptureResult is the outcome of completing an approved order.
type CaptureResult struct {
	OrderID   string
	CaptureID string
	Status    string
	Amount    decimal.Decimal
	Currency  string
}

// CreateOrder creates a pending order and returns the approval link the
// buyer must be redirected to.
func (c *Client) CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderResult, error) {
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order amount must be positive")
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "USD"
	}

	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"reference_id": input.ReferenceID,
			"description":  input.Description,
			"amount": map[string]any{
				"currency_code": currency,
				"value":         input.Amount.StringFixed(2),
			},
		}},
		"application_context": map[string]any{
			"return_url": input.ReturnURL,
			"cancel_url": input.CancelURL,
		},
	}

	var resp orderResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v2/checkout/orders", payload, &resp); err != nil {
		return nil, err
	}

	approval := resp.linkByRel("approve")
	if resp.ID == "" || approval == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paypal order response missing id or approval link")
	}

	c.log(ctx, "order created", map[string]any{"order_id": resp.ID, "status": resp.Status})
	return &OrderResult{OrderID: resp.ID, ApprovalURL: approval, Status: resp.Status}, nil
}

// CaptureOrder completes the payment once the buyer has approved it
// externally. The payer id comes from the return-URL query parameters.
func (c *Client) CaptureOrder(ctx context.Context, orderID, payerID string) (*CaptureResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	path := fmt.Sprintf("/v2/checkout/orders/%s/capture", url.PathEscape(orderID))
	body := map[string]any{}
	if payerID = strings.TrimSpace(payerID); payerID != "" {
		body["payer_id"] = payerID
	}

	var resp orderResponse
	if err := c.doJSON(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}

	result := &CaptureResult{OrderID: resp.ID, Status: resp.Status}
	if cap := resp.firstCapture(); cap != nil {
		result.CaptureID = cap.ID
		result.Currency = cap.Amount.CurrencyCode
		if amount, err := decimal.NewFromString(cap.Amount.Value); err == nil {
			result.Amount = amount
		}
	}

	if !strings.EqualFold(result.Status, "COMPLETED") {
		return nil, pkgerrors.New(pkgerrors.CodePayment, fmt.Sprintf("paypal capture ended in status %s", result.Status)).WithDetails(map[string]any{
			"order_id": orderID,
			"status":   result.Status,
		})
	}

	c.log(ctx, "order captured", map[string]any{"order_id": resp.ID, "capture_id": result.CaptureID})
	return result, nil
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []captureDetail `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

type captureDetail struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount struct {
		CurrencyCode string `json:"currency_code"`
		Value        string `json:"value"`
	} `json:"amount"`
}

func (o orderResponse) linkByRel(rel string) string {
	for _, link := range o.Links {
		if strings.EqualFold(link.Rel, rel) {
			return link.Href
		}
	}
	return ""
}

func (o orderResponse) firstCapture() *captureDetail {
	for _, unit := range o.PurchaseUnits {
		if len(unit.Payments.Captures) > 0 {
			cap := unit.Payments.Captures[0]
			return &cap
		}
	}
	return nil
}

type errorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Details []struct {
		Issue       string `json:"issue"`
		Description string `json:"description"`
	} `json:"details"`
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode paypal request")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build paypal request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call paypal")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read paypal response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.mapError(resp.StatusCode, raw)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode paypal response")
		}
	}
	return nil
}

func (c *Client) mapError(status int, raw []byte) error {
	var parsed errorResponse
	_ = json.Unmarshal(raw, &parsed)

	msg := parsed.Message
	if msg == "" {
		msg = fmt.Sprintf("paypal returned status %d", status)
	}

	code := pkgerrors.CodeDependency
	if status >= 400 && status < 500 {
		code = pkgerrors.CodePayment
	}

	details := map[string]any{"name": parsed.Name}
	for _, d := range parsed.Details {
		details["issue"] = d.Issue
		if d.Description != "" {
			details["description"] = d.Description
		}
		break
	}
	return pkgerrors.New(code, msg).WithDetails(details)
}

// token returns a cached OAuth access token, refreshing it when expired.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build paypal token request")
	}
	req.SetBasicAuth(c.clientID, c.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch paypal token")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read paypal token response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("paypal token endpoint returned %d", resp.StatusCode))
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode paypal token response")
	}
	if parsed.AccessToken == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "paypal token response missing access_token")
	}

	c.accessToken = parsed.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(parsed.ExpiresIn)*time.Second - tokenExpirySlack)
	return c.accessToken, nil
}

func (c *Client) log(ctx context.Context, msg string, fields map[string]any) {
	if c.logger == nil {
		return
	}
	c.logger.Info(c.logger.WithFields(ctx, fields), "paypal "+msg)
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidEnv
	}
}
