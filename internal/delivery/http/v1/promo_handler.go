package v1

import (
	"net/http"

	"edulearn-backend/internal/delivery/http/middleware"
	"edulearn-backend/internal/usecase"
	"edulearn-backend/pkg/utils"

	"github.com/goccy/go-json"
)

// PromoHandler exposes promo validation to checkout clients. The validate
// endpoint is read-only: redemption is only recorded once the purchase
// completes.
type PromoHandler struct {
	promoUC *usecase.PromoUsecase
	cartUC  *usecase.CartUsecase
}

func NewPromoHandler(promoUC *usecase.PromoUsecase, cartUC *usecase.CartUsecase) *PromoHandler {
	return &PromoHandler{promoUC: promoUC, cartUC: cartUC}
}

type applyPromoReq struct {
	Code string `json:"code"`
}

func (h *PromoHandler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req applyPromoReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	cart, err := h.cartUC.GetMyCart(r.Context(), user.ID)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to load cart")
		return
	}

	result, err := h.promoUC.Validate(r.Context(), user.ID, req.Code, cart)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to validate promo code")
		return
	}
	// Invalid codes are a 200 with valid=false, not an error status: the
	// client renders Message inline.
	utils.WriteJSON(w, http.StatusOK, result)
}
