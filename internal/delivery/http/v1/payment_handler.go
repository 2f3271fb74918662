package v1

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"edulearn-backend/config"
	"edulearn-backend/internal/domain"
	"edulearn-backend/internal/infrastructure/paymob"
	"edulearn-backend/internal/usecase"
	"edulearn-backend/pkg/logger"
	"edulearn-backend/pkg/utils"
)

// maxWebhookBody caps the webhook read; gateway payloads are a few KB.
const maxWebhookBody = 1 << 20

// PaymentHandler receives the gateway's asynchronous webhook and the
// user's synchronous redirect landing. The webhook is signature-verified
// and its verdict drives the transition directly; the landing only names a
// purchase and a gateway inquiry supplies the verdict.
type PaymentHandler struct {
	checkoutUC *usecase.CheckoutUsecase
	cfg        *config.Config
}

func NewPaymentHandler(uc *usecase.CheckoutUsecase, cfg *config.Config) *PaymentHandler {
	return &PaymentHandler{checkoutUC: uc, cfg: cfg}
}

// Webhook handles the server-to-server transaction callback.
//
// Response codes are chosen for the gateway's retry logic: 2xx stops
// retries, so every outcome that cannot improve on retry (already
// resolved, ambiguous payload) returns 200. Only an unverifiable signature
// (401), a missing merchant order id (400) or an unknown purchase (404)
// reject the delivery.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	log := logger.WithContext(r.Context())

	rawBody, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	// Signature covers the raw bytes exactly as received; any re-encoding
	// before verification would break it.
	if !h.verifySignature(r, rawBody) {
		if h.cfg.IsProduction() {
			log.Warn().Msg("webhook rejected: bad or missing signature")
			utils.WriteError(w, http.StatusUnauthorized, "Invalid signature")
			return
		}
		log.Warn().Msg("webhook signature missing or invalid, accepted outside production")
	}

	result, err := paymob.ProcessCallbackPayload(rawBody, r.URL.Query())
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Malformed payload")
		return
	}

	h.resolve(w, r, result)
}

// Landing handles the browser redirect back from the hosted payment page.
// The query string is whatever the user's browser carried, so its verdict
// is ignored: only the merchant order id is read, the purchase is settled
// via a transaction inquiry, and the user is bounced to the frontend result
// page for whatever status that produced.
func (h *PaymentHandler) Landing(w http.ResponseWriter, r *http.Request) {
	log := logger.WithContext(r.Context())

	intentID := r.URL.Query().Get("merchant_order_id")
	if intentID == "" {
		http.Redirect(w, r, h.cfg.FrontendURL+"/payment/failed", http.StatusSeeOther)
		return
	}

	purchase, err := h.checkoutUC.ResolveFromLanding(r.Context(), intentID)
	if err != nil && !errors.Is(err, usecase.ErrPurchaseNotFound) {
		log.Error().Err(err).Str("intent_id", intentID).Msg("landing resolution failed")
	}

	dest := h.cfg.FrontendURL + "/payment/failed"
	if purchase != nil {
		switch purchase.Status {
		case domain.PurchaseStatusCompleted:
			dest = fmt.Sprintf("%s/payment/success?order=%s", h.cfg.FrontendURL, purchase.OrderNumber)
		case domain.PurchaseStatusPending:
			// Verdict still ambiguous; the sweep will settle it.
			dest = fmt.Sprintf("%s/payment/processing?order=%s", h.cfg.FrontendURL, purchase.OrderNumber)
		}
	}
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

func (h *PaymentHandler) resolve(w http.ResponseWriter, r *http.Request, result *domain.CallbackResult) {
	log := logger.WithContext(r.Context())

	purchase, err := h.checkoutUC.HandleGatewaySignal(r.Context(), result)
	switch {
	case errors.Is(err, usecase.ErrMissingMerchantOrder):
		utils.WriteError(w, http.StatusBadRequest, "Missing merchant order id")
		return
	case errors.Is(err, usecase.ErrPurchaseNotFound):
		log.Warn().Str("intent_id", result.MerchantOrderID).Msg("webhook for unknown purchase")
		utils.WriteError(w, http.StatusNotFound, "Purchase not found")
		return
	case err != nil:
		// The transition itself may have succeeded with a follow-up step
		// failing. A retry is safe either way.
		log.Error().Err(err).Str("intent_id", result.MerchantOrderID).Msg("webhook resolution failed")
		utils.WriteError(w, http.StatusInternalServerError, "Failed to process callback")
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Callback processed",
		"status":  purchase.Status,
	})
}

func (h *PaymentHandler) verifySignature(r *http.Request, rawBody []byte) bool {
	if h.cfg.PaymobHMACSecret == "" {
		return false
	}

	signature := ""
	for _, header := range paymob.SignatureHeaders {
		if v := r.Header.Get(header); v != "" {
			signature = v
			break
		}
	}
	if signature == "" {
		signature = r.URL.Query().Get("hmac")
	}
	if signature == "" {
		return false
	}

	return paymob.VerifySignature(h.cfg.PaymobHMACSecret, rawBody, signature)
}
