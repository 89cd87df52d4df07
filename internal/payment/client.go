package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// Client implements Gateway against a Stripe-style charges API:
// authorize is an uncaptured charge, capture finalizes it, reversal is a
// refund against the charge id.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func NewClient(baseURL, secretKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Authorize(ctx context.Context, token string, amountInCents int64, currency, description string, metadata map[string]string) (AuthResult, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountInCents, 10))
	form.Set("currency", currency)
	form.Set("source", token)
	form.Set("description", description)
	form.Set("capture", "false")
	for k, v := range metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	raw, err := c.post(ctx, "authorize", "/v1/charges", form)
	if err != nil {
		return AuthResult{}, err
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.ID == "" {
		return AuthResult{}, &Error{Op: "authorize", Message: "response missing charge id", Code: "invalid_response"}
	}
	return AuthResult{ExternalID: body.ID, Raw: raw}, nil
}

func (c *Client) Capture(ctx context.Context, externalID string) (CaptureResult, error) {
	raw, err := c.post(ctx, "capture", "/v1/charges/"+url.PathEscape(externalID)+"/capture", url.Values{})
	if err != nil {
		return CaptureResult{}, err
	}
	return CaptureResult{Raw: raw}, nil
}

func (c *Client) Reverse(ctx context.Context, externalID string) error {
	form := url.Values{}
	form.Set("charge", externalID)
	_, err := c.post(ctx, "reverse", "/v1/refunds", form)
	return err
}

func (c *Client) post(ctx context.Context, op, path string, form url.Values) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Includes timeouts. The caller treats these as transient gateway
		// failures, never as success.
		return nil, &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		gwErr := &Error{Op: op, StatusCode: resp.StatusCode}
		var body struct {
			Error struct {
				Type    string `json:"type"`
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if jsonErr := json.Unmarshal(raw, &body); jsonErr == nil {
			gwErr.Code = body.Error.Code
			gwErr.Message = body.Error.Message
			gwErr.Declined = body.Error.Type == "card_error"
		}
		if gwErr.Message == "" {
			gwErr.Message = http.StatusText(resp.StatusCode)
		}
		return nil, gwErr
	}
	return raw, nil
}
