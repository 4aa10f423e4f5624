package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the provider's API root.
const DefaultBaseURL = "https://api.razorpay.com/v1"

// HTTPClient talks to a Razorpay-style REST API using basic auth.
type HTTPClient struct {
	baseURL string
	keyID   string
	secret  string
	client  *http.Client
}

var _ Gateway = (*HTTPClient)(nil)

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithBaseURL overrides the API root.
func WithBaseURL(u string) ClientOption {
	return func(c *HTTPClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) { c.client = hc }
}

// NewHTTPClient returns a client authenticating with keyID and secret.
func NewHTTPClient(keyID, secret string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: DefaultBaseURL,
		keyID:   keyID,
		secret:  secret,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type planItem struct {
	Name        string `json:"name"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
}

type planBody struct {
	Period   string            `json:"period"`
	Interval int               `json:"interval"`
	Item     planItem          `json:"item"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type errorBody struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreatePlan implements Gateway.
func (c *HTTPClient) CreatePlan(ctx context.Context, req PlanRequest) (*Plan, error) {
	interval := req.Interval
	if interval <= 0 {
		interval = 1
	}
	body, err := json.Marshal(planBody{
		Period:   string(req.Period),
		Interval: interval,
		Item: planItem{
			Name:        req.Name,
			Amount:      req.Amount.Amount,
			Currency:    strings.ToUpper(req.Amount.Currency),
			Description: req.Description,
		},
		Notes: req.Metadata,
	})
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("encode plan: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/plans", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("build request: %v", err)}
	}
	httpReq.SetBasicAuth(c.keyID, c.secret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &Error{Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &Error{Status: resp.StatusCode, Message: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(raw, &eb) == nil && eb.Error.Description != "" {
			msg = eb.Error.Description
		}
		return nil, &Error{Status: resp.StatusCode, Message: msg}
	}

	var plan Plan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, &Error{Status: resp.StatusCode, Message: fmt.Sprintf("decode response: %v", err)}
	}
	if plan.ID == "" {
		return nil, &Error{Status: resp.StatusCode, Message: "response has no plan id"}
	}
	return &plan, nil
}
