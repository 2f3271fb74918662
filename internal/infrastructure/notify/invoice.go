package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"edulearn-backend/internal/domain"
	"edulearn-backend/pkg/logger"
)

// InvoiceNotifier pushes purchase invoices to the parent-facing delivery
// service (FCM relay). Dispatch is asynchronous and best-effort: a failed
// send is logged and dropped, never surfaced to the payment path.
type InvoiceNotifier struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewInvoiceNotifier returns nil when the endpoint is not configured;
// a nil notifier silently no-ops.
func NewInvoiceNotifier(endpoint, apiKey string) *InvoiceNotifier {
	if endpoint == "" {
		logger.Info().Msg("Invoice notification endpoint not configured. Dispatch disabled.")
		return nil
	}
	return &InvoiceNotifier{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

var _ domain.InvoiceNotifier = (*InvoiceNotifier)(nil)

type invoiceItem struct {
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type invoicePayload struct {
	UserID      string        `json:"user_id"`
	PurchaseID  string        `json:"purchase_id"`
	OrderNumber string        `json:"order_number"`
	Total       float64       `json:"total"`
	Discount    float64       `json:"discount"`
	Currency    string        `json:"currency"`
	Items       []invoiceItem `json:"items"`
	CompletedAt int64         `json:"completed_at"`
}

// SendPurchaseInvoice dispatches asynchronously so the caller's response is
// never blocked on the notification channel.
func (n *InvoiceNotifier) SendPurchaseInvoice(userID string, purchase *domain.Purchase) {
	if n == nil {
		return
	}

	payload := invoicePayload{
		UserID:      userID,
		PurchaseID:  purchase.ID,
		OrderNumber: purchase.OrderNumber,
		Total:       purchase.Total,
		Discount:    purchase.DiscountAmount,
		Currency:    purchase.Currency,
		CompletedAt: time.Now().Unix(),
	}
	for _, it := range purchase.Items {
		payload.Items = append(payload.Items, invoiceItem{Title: it.Title, Price: it.Price, Quantity: it.Quantity})
	}

	go func() {
		if err := n.send(payload); err != nil {
			logger.Error().Err(err).Str("purchase_id", purchase.ID).Msg("Invoice notification failed")
		}
	}()
}

func (n *InvoiceNotifier) send(payload invoicePayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal invoice payload: %w", err)
	}

	var lastErr error
	for i := 0; i < 3; i++ {
		req, err := http.NewRequest(http.MethodPost, n.endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if n.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+n.apiKey)
		}

		resp, err := n.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("invoice dispatch request failed: %w", err)
			time.Sleep(time.Duration(i+1) * time.Second)
			continue
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusAccepted {
			logger.Info().Str("purchase_id", payload.PurchaseID).Msg("Invoice notification dispatched")
			return nil
		}

		lastErr = fmt.Errorf("invoice dispatch error (status %d): %s", resp.StatusCode, string(respBody))

		// 4xx other than 429 means the payload itself is wrong; retrying
		// cannot help.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			break
		}
		time.Sleep(time.Duration(i+1) * time.Second)
	}

	return lastErr
}
