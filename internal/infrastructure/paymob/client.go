package paymob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"edulearn-backend/internal/domain"
	"edulearn-backend/pkg/logger"
)

const (
	authAttempts     = 3
	authBackoffBase  = 2 * time.Second
	paymentKeyExpiry = 3600 // seconds; sessions are time-boxed to one hour
)

// Client wraps the Paymob Accept REST API. All calls are blocking with a
// bounded timeout; retries are capped and only applied where the provider
// call is safe to repeat (auth tokens).
type Client struct {
	baseURL             string
	apiKey              string
	cardIntegrationID   int
	walletIntegrationID int
	iframeID            string
	httpClient          *http.Client
}

type Options struct {
	BaseURL             string
	APIKey              string
	CardIntegrationID   int
	WalletIntegrationID int
	IframeID            string
	Timeout             time.Duration
}

func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:             opts.BaseURL,
		apiKey:              opts.APIKey,
		cardIntegrationID:   opts.CardIntegrationID,
		walletIntegrationID: opts.WalletIntegrationID,
		iframeID:            opts.IframeID,
		httpClient:          &http.Client{Timeout: timeout},
	}
}

// statically assert the domain boundary is satisfied
var _ domain.PaymentGateway = (*Client)(nil)

// --- Auth ---

type authRequest struct {
	APIKey string `json:"api_key"`
}

type authResponse struct {
	Token string `json:"token"`
}

// authenticate obtains a bearer token, retrying transient failures with
// exponential backoff. The final error message distinguishes network-layer
// trouble from an invalid key (a configuration fault) and from provider
// 5xx, since only the invalid key is worth paging someone over.
func (c *Client) authenticate(ctx context.Context) (string, error) {
	body, _ := json.Marshal(authRequest{APIKey: c.apiKey})

	var lastErr error
	for attempt := 0; attempt < authAttempts; attempt++ {
		if attempt > 0 {
			backoff := authBackoffBase * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		var auth authResponse
		status, err := c.postJSON(ctx, "/auth/tokens", bytes.NewReader(body), &auth)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				lastErr = fmt.Errorf("gateway auth timed out: %w", err)
			} else {
				lastErr = fmt.Errorf("gateway unreachable: %w", err)
			}
			continue
		}

		switch {
		case status == http.StatusCreated || status == http.StatusOK:
			if auth.Token == "" {
				lastErr = errors.New("gateway auth returned empty token")
				continue
			}
			return auth.Token, nil
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			// Configuration fault. Retrying with the same key cannot help.
			return "", fmt.Errorf("gateway rejected API key (status %d)", status)
		case status >= 500:
			lastErr = fmt.Errorf("gateway server error (status %d)", status)
		default:
			lastErr = fmt.Errorf("unexpected gateway auth status %d", status)
		}
	}

	return "", lastErr
}

// --- Order registration ---

type orderItem struct {
	Name        string `json:"name"`
	AmountCents int64  `json:"amount_cents"`
	Quantity    int    `json:"quantity"`
}

type orderRequest struct {
	AuthToken       string      `json:"auth_token"`
	DeliveryNeeded  bool        `json:"delivery_needed"`
	AmountCents     int64       `json:"amount_cents"`
	Currency        string      `json:"currency"`
	MerchantOrderID string      `json:"merchant_order_id"`
	Items           []orderItem `json:"items"`
}

type orderResponse struct {
	ID int64 `json:"id"`
}

func (c *Client) registerOrder(ctx context.Context, token string, order domain.PaymentOrder) (int64, error) {
	req := orderRequest{
		AuthToken:       token,
		AmountCents:     toCents(order.Total),
		Currency:        order.Currency,
		MerchantOrderID: order.MerchantOrderID,
	}
	for _, it := range order.Items {
		req.Items = append(req.Items, orderItem{
			Name:        it.Title,
			AmountCents: toCents(it.Price),
			Quantity:    it.Quantity,
		})
	}

	body, _ := json.Marshal(req)
	var resp orderResponse
	status, err := c.postJSON(ctx, "/ecommerce/orders", bytes.NewReader(body), &resp)
	if err != nil {
		return 0, fmt.Errorf("gateway order creation failed: %w", err)
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return 0, fmt.Errorf("gateway order creation returned status %d", status)
	}
	if resp.ID == 0 {
		return 0, errors.New("gateway order creation returned no order id")
	}
	return resp.ID, nil
}

// --- Payment key ---

type billingData struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Street      string `json:"street"`
	City        string `json:"city"`
	Country     string `json:"country"`
	Building    string `json:"building"`
	Floor       string `json:"floor"`
	Apartment   string `json:"apartment"`
}

type paymentKeyRequest struct {
	AuthToken     string      `json:"auth_token"`
	AmountCents   int64       `json:"amount_cents"`
	Expiration    int         `json:"expiration"`
	OrderID       int64       `json:"order_id"`
	BillingData   billingData `json:"billing_data"`
	Currency      string      `json:"currency"`
	IntegrationID int         `json:"integration_id"`
}

type paymentKeyResponse struct {
	Token string `json:"token"`
}

func (c *Client) paymentKey(ctx context.Context, token string, orderID int64, order domain.PaymentOrder, billing domain.BillingDetails, integrationID int) (string, error) {
	req := paymentKeyRequest{
		AuthToken:     token,
		AmountCents:   toCents(order.Total),
		Expiration:    paymentKeyExpiry,
		OrderID:       orderID,
		Currency:      order.Currency,
		IntegrationID: integrationID,
		BillingData: billingData{
			FirstName:   orNA(billing.FirstName),
			LastName:    orNA(billing.LastName),
			Email:       orNA(billing.Email),
			PhoneNumber: orNA(billing.Phone),
			Street:      orNA(billing.Street),
			City:        orNA(billing.City),
			Country:     orNA(billing.Country),
			Building:    "NA",
			Floor:       "NA",
			Apartment:   "NA",
		},
	}

	body, _ := json.Marshal(req)
	var resp paymentKeyResponse
	status, err := c.postJSON(ctx, "/acceptance/payment_keys", bytes.NewReader(body), &resp)
	if err != nil {
		return "", fmt.Errorf("gateway payment key failed: %w", err)
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return "", fmt.Errorf("gateway payment key returned status %d", status)
	}
	if resp.Token == "" {
		return "", errors.New("gateway payment key returned empty token")
	}
	return resp.Token, nil
}

// --- Public API ---

// CreatePaymentSession runs the auth -> order -> payment key chain and
// composes the iframe URL the client is redirected into.
func (c *Client) CreatePaymentSession(ctx context.Context, order domain.PaymentOrder, billing domain.BillingDetails, method string) (*domain.PaymentSession, error) {
	integrationID := c.cardIntegrationID
	if method == domain.PaymentMethodWallet {
		integrationID = c.walletIntegrationID
	}
	if integrationID == 0 {
		return nil, fmt.Errorf("no gateway integration configured for method %q", method)
	}

	token, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	orderID, err := c.registerOrder(ctx, token, order)
	if err != nil {
		return nil, err
	}

	payToken, err := c.paymentKey(ctx, token, orderID, order, billing, integrationID)
	if err != nil {
		return nil, err
	}

	return &domain.PaymentSession{
		IframeURL:      fmt.Sprintf("%s/acceptance/iframes/%s?payment_token=%s", c.baseURL, c.iframeID, payToken),
		GatewayOrderID: strconv.FormatInt(orderID, 10),
		PaymentToken:   payToken,
	}, nil
}

type inquiryRequest struct {
	AuthToken       string `json:"auth_token"`
	MerchantOrderID string `json:"merchant_order_id"`
}

// InquireTransaction re-queries the provider for the transaction correlated
// to merchantOrderID and runs the answer through the same normalization as
// the webhook path.
func (c *Client) InquireTransaction(ctx context.Context, merchantOrderID string) (*domain.CallbackResult, error) {
	token, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	body, _ := json.Marshal(inquiryRequest{AuthToken: token, MerchantOrderID: merchantOrderID})

	raw, status, err := c.post(ctx, "/ecommerce/orders/transaction_inquiry", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("transaction inquiry failed: %w", err)
	}
	if status == http.StatusNotFound {
		// No transaction yet: the payer may never have reached the iframe.
		return &domain.CallbackResult{MerchantOrderID: merchantOrderID, IsPending: true, RawPayload: raw}, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("transaction inquiry returned status %d", status)
	}

	result, err := ProcessCallbackPayload(raw, nil)
	if err != nil {
		return nil, err
	}
	if result.MerchantOrderID == "" {
		result.MerchantOrderID = merchantOrderID
	}
	return result, nil
}

// --- HTTP plumbing ---

func (c *Client) post(ctx context.Context, path string, body io.Reader) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return raw, resp.StatusCode, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body io.Reader, out interface{}) (int, error) {
	raw, status, err := c.post(ctx, path, body)
	if err != nil {
		return status, err
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			logger.Warn().Str("path", path).Int("status", status).Msg("Gateway returned non-JSON body")
		}
	}
	return status, nil
}

func toCents(amount float64) int64 {
	return int64(amount*100 + 0.5)
}

func orNA(s string) string {
	if s == "" {
		return "NA"
	}
	return s
}
