package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.stripe.com"

type stripeLine struct {
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	Amount      int64  `json:"amount"`
	Price       *struct {
		UnitAmount *int64 `json:"unit_amount"`
	} `json:"price"`
}

type stripeInvoice struct {
	ID                string `json:"id"`
	Customer          string `json:"customer"`
	Status            string `json:"status"`
	AmountDue         int64  `json:"amount_due"`
	AmountPaid        int64  `json:"amount_paid"`
	Currency          string `json:"currency"`
	HostedInvoiceURL  string `json:"hosted_invoice_url"`
	DueDate           *int64 `json:"due_date"`
	StatusTransitions struct {
		PaidAt *int64 `json:"paid_at"`
	} `json:"status_transitions"`
	Lines struct {
		Data []stripeLine `json:"data"`
	} `json:"lines"`
}

type stripeObject struct {
	ID string `json:"id"`
}

type stripeErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// StripeClient implements Gateway over the Stripe REST API
type StripeClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// StripeConfig configures a StripeClient
type StripeConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// NewStripeClient creates a client. Every request is bounded by cfg.Timeout.
func NewStripeClient(cfg StripeConfig, logger *zap.Logger) *StripeClient {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return &StripeClient{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *StripeClient) GetInvoice(ctx context.Context, id string) (*Invoice, error) {
	var inv stripeInvoice
	if err := c.doRequest(ctx, http.MethodGet, "/v1/invoices/"+url.PathEscape(id), nil, "", &inv); err != nil {
		return nil, err
	}
	return inv.toInvoice()
}

func (c *StripeClient) VoidInvoice(ctx context.Context, id string) (*Invoice, error) {
	var inv stripeInvoice
	if err := c.doRequest(ctx, http.MethodPost, "/v1/invoices/"+url.PathEscape(id)+"/void", url.Values{}, "void:"+id, &inv); err != nil {
		return nil, err
	}
	return inv.toInvoice()
}

// CreateInvoice adds one pending invoice item per line, creates the invoice that
// collects them and finalizes it so it gets a hosted URL.
func (c *StripeClient) CreateInvoice(ctx context.Context, params CreateInvoiceParams) (*Invoice, error) {
	if params.CustomerID == "" {
		return nil, errors.New("gateway customer id is required")
	}
	currency := strings.ToLower(params.Currency)
	keyPrefix := params.IdempotencyKey

	var draft stripeObject
	values := url.Values{}
	values.Set("customer", params.CustomerID)
	values.Set("collection_method", "send_invoice")
	values.Set("pending_invoice_items_behavior", "exclude")
	if params.DaysUntilDue > 0 {
		values.Set("days_until_due", strconv.Itoa(params.DaysUntilDue))
	}
	if params.Description != "" {
		values.Set("description", params.Description)
	}
	setMetadata(values, params.Metadata)
	if err := c.doRequest(ctx, http.MethodPost, "/v1/invoices", values, idempotencyKey(keyPrefix, "invoice"), &draft); err != nil {
		return nil, err
	}
	if draft.ID == "" {
		return nil, ErrInvalidResponse
	}

	for i, line := range params.Lines {
		item := url.Values{}
		item.Set("customer", params.CustomerID)
		item.Set("invoice", draft.ID)
		item.Set("currency", currency)
		item.Set("amount", strconv.FormatInt(line.Amount, 10))
		item.Set("description", line.Description)
		var created stripeObject
		if err := c.doRequest(ctx, http.MethodPost, "/v1/invoiceitems", item, idempotencyKey(keyPrefix, "item:"+strconv.Itoa(i)), &created); err != nil {
			return nil, err
		}
	}

	var finalized stripeInvoice
	if err := c.doRequest(ctx, http.MethodPost, "/v1/invoices/"+url.PathEscape(draft.ID)+"/finalize", url.Values{}, idempotencyKey(keyPrefix, "finalize"), &finalized); err != nil {
		return nil, err
	}
	return finalized.toInvoice()
}

func (c *StripeClient) doRequest(
	ctx context.Context,
	method string,
	path string,
	values url.Values,
	idempotencyKey string,
	out interface{},
) error {
	if c.apiKey == "" {
		return ErrNotConfigured
	}

	var bodyReader *strings.Reader
	if values != nil {
		bodyReader = strings.NewReader(values.Encode())
	} else {
		bodyReader = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if values != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" && method == http.MethodPost {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("gateway request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug("gateway request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		upstream := &UpstreamError{StatusCode: resp.StatusCode, Message: "gateway request failed"}
		var stripeErr stripeErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&stripeErr); err == nil {
			upstream.Code = stripeErr.Error.Code
			if msg := strings.TrimSpace(stripeErr.Error.Message); msg != "" {
				upstream.Message = msg
			}
		}
		return upstream
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Join(ErrInvalidResponse, err)
	}
	return nil
}

func (s stripeInvoice) toInvoice() (*Invoice, error) {
	if s.ID == "" {
		return nil, ErrInvalidResponse
	}
	inv := &Invoice{
		ID:         s.ID,
		CustomerID: s.Customer,
		Status:     InvoiceStatus(s.Status),
		AmountDue:  s.AmountDue,
		AmountPaid: s.AmountPaid,
		Currency:   strings.ToUpper(s.Currency),
		HostedURL:  s.HostedInvoiceURL,
		DueDate:    unixTime(s.DueDate),
		PaidAt:     unixTime(s.StatusTransitions.PaidAt),
	}
	for _, l := range s.Lines.Data {
		line := Line{
			Description: l.Description,
			Quantity:    l.Quantity,
			Amount:      l.Amount,
		}
		if line.Quantity <= 0 {
			line.Quantity = 1
		}
		if l.Price != nil && l.Price.UnitAmount != nil {
			line.UnitAmount = *l.Price.UnitAmount
		} else {
			line.UnitAmount = l.Amount / line.Quantity
		}
		inv.Lines = append(inv.Lines, line)
	}
	return inv, nil
}

func unixTime(ts *int64) *time.Time {
	if ts == nil || *ts == 0 {
		return nil
	}
	t := time.Unix(*ts, 0).UTC()
	return &t
}

func setMetadata(values url.Values, metadata map[string]string) {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		values.Set("metadata["+k+"]", metadata[k])
	}
}

func idempotencyKey(prefix, suffix string) string {
	if prefix == "" {
		return ""
	}
	return prefix + ":" + suffix
}
