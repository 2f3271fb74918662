package v1

import (
	"errors"
	"net/http"
	"strings"

	"edulearn-backend/internal/delivery/http/middleware"
	"edulearn-backend/internal/usecase"
	"edulearn-backend/pkg/logger"
	"edulearn-backend/pkg/utils"

	"github.com/goccy/go-json"
)

type CheckoutHandler struct {
	checkoutUC *usecase.CheckoutUsecase
}

func NewCheckoutHandler(uc *usecase.CheckoutUsecase) *CheckoutHandler {
	return &CheckoutHandler{checkoutUC: uc}
}

func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req usecase.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Billing falls back to the token identity when the client sends none.
	if req.Billing.Email == "" {
		req.Billing.Email = user.Email
	}
	if req.Billing.FirstName == "" {
		req.Billing.FirstName = user.FirstName
	}
	if req.Billing.LastName == "" {
		req.Billing.LastName = user.LastName
	}
	if req.Billing.Phone == "" {
		req.Billing.Phone = user.Phone
	}

	resp, err := h.checkoutUC.Checkout(r.Context(), user.ID, req)
	if err != nil {
		logger.WithContext(r.Context()).Error().Err(err).Str("user_id", user.ID).Msg("Checkout failed")
		utils.WriteError(w, checkoutErrStatus(err), err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

func (h *CheckoutHandler) GetMyPurchases(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	purchases, err := h.checkoutUC.GetMyPurchases(r.Context(), user.ID)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to load purchases")
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"purchases": purchases})
}

func (h *CheckoutHandler) GetMyPurchase(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	purchase, err := h.checkoutUC.GetMyPurchase(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, usecase.ErrPurchaseNotFound) {
			utils.WriteError(w, http.StatusNotFound, "Purchase not found")
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, "Failed to load purchase")
		return
	}
	utils.WriteJSON(w, http.StatusOK, purchase)
}

func checkoutErrStatus(err error) int {
	if errors.Is(err, usecase.ErrDirectNotAllowed) {
		return http.StatusBadRequest
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "cart is empty"),
		strings.Contains(msg, "unsupported payment method"),
		strings.Contains(msg, "promo code rejected"):
		return http.StatusBadRequest
	case strings.Contains(msg, "payment session"):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
