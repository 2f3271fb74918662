package domain

import "context"

// --- Payment Gateway Boundary ---

// PaymentOrder is the request to open a gateway-side payment session.
type PaymentOrder struct {
	MerchantOrderID string
	Total           float64
	Currency        string
	Items           []PurchaseItem
}

// BillingDetails is the payer information the gateway requires for a
// payment key.
type BillingDetails struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Street    string `json:"street"`
	City      string `json:"city"`
	Country   string `json:"country"`
}

// PaymentSession is the result of a successful session creation: the
// client is redirected into IframeURL to pay.
type PaymentSession struct {
	IframeURL      string
	GatewayOrderID string
	PaymentToken   string
}

// CallbackResult is the normalized tri-state verdict extracted from a
// webhook body, a redirect query bag, or a transaction-inquiry response.
// At most one of IsSuccess/IsFailed is set; when neither signal is present
// the payload is ambiguous and IsPending is true. Ambiguous never resolves
// to success: granting unpaid access is the one unrecoverable mistake.
type CallbackResult struct {
	MerchantOrderID string
	TransactionID   string
	IsSuccess       bool
	IsFailed        bool
	IsPending       bool
	FailureReason   string
	RawPayload      []byte
}

// PaymentGateway wraps the third-party payment provider.
type PaymentGateway interface {
	CreatePaymentSession(ctx context.Context, order PaymentOrder, billing BillingDetails, method string) (*PaymentSession, error)
	// InquireTransaction re-queries the provider for the transaction tied
	// to a merchant order id and normalizes the answer the same way the
	// webhook path does.
	InquireTransaction(ctx context.Context, merchantOrderID string) (*CallbackResult, error)
}

// --- Other collaborator boundaries ---

// TransactionManager runs fn inside a database transaction carried in ctx.
type TransactionManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// InvoiceNotifier dispatches the purchase invoice to the parent-facing
// channel. Fire-and-forget: failure is logged by the implementation and
// never surfaces to the payment path.
type InvoiceNotifier interface {
	SendPurchaseInvoice(userID string, purchase *Purchase)
}

// PayloadArchiver stores raw gateway payloads for audit. Best-effort.
type PayloadArchiver interface {
	ArchivePayload(ctx context.Context, purchaseID string, payload []byte)
}
