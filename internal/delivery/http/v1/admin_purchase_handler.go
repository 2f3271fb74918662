package v1

import (
	"errors"
	"net/http"

	"edulearn-backend/internal/domain"
	"edulearn-backend/internal/usecase"
	"edulearn-backend/pkg/utils"
)

// AdminPurchaseHandler is the back-office view over purchase records.
type AdminPurchaseHandler struct {
	checkoutUC *usecase.CheckoutUsecase
}

func NewAdminPurchaseHandler(uc *usecase.CheckoutUsecase) *AdminPurchaseHandler {
	return &AdminPurchaseHandler{checkoutUC: uc}
}

func (h *AdminPurchaseHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.PurchaseFilter{
		Page:          utils.ParseInt(q.Get("page"), 1),
		Limit:         utils.ParseInt(q.Get("limit"), 20),
		Status:        q.Get("status"),
		PaymentMethod: q.Get("paymentMethod"),
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}

	purchases, total, err := h.checkoutUC.GetAllPurchases(r.Context(), filter)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to list purchases")
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"purchases": purchases,
		"total":     total,
		"page":      filter.Page,
		"limit":     filter.Limit,
	})
}

func (h *AdminPurchaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	purchase, err := h.checkoutUC.GetPurchase(r.Context(), r.PathValue("id"))
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
