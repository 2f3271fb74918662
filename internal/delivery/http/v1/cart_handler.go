package v1

import (
	"net/http"
	"strings"

	"edulearn-backend/internal/delivery/http/middleware"
	"edulearn-backend/internal/usecase"
	"edulearn-backend/pkg/logger"
	"edulearn-backend/pkg/utils"

	"github.com/goccy/go-json"
)

type CartHandler struct {
	cartUC *usecase.CartUsecase
}

func NewCartHandler(uc *usecase.CartUsecase) *CartHandler {
	return &CartHandler{cartUC: uc}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	cart, err := h.cartUC.GetMyCart(r.Context(), user.ID)
	if err != nil {
		logger.WithContext(r.Context()).Error().Err(err).Str("user_id", user.ID).Msg("GetCart failed")
		utils.WriteError(w, http.StatusInternalServerError, "Failed to load cart")
		return
	}
	utils.WriteJSON(w, http.StatusOK, cart)
}

type addToCartReq struct {
	ItemID   string `json:"itemId"`
	ItemType string `json:"itemType"`
}

func (h *CartHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req addToCartReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if req.ItemID == "" {
		utils.WriteError(w, http.StatusBadRequest, "itemId is required")
		return
	}

	cart, err := h.cartUC.AddToCart(r.Context(), user.ID, req.ItemID, req.ItemType)
	if err != nil {
		logger.WithContext(r.Context()).Warn().Err(err).Str("user_id", user.ID).Str("item_id", req.ItemID).Msg("AddToCart rejected")
		utils.WriteError(w, cartErrStatus(err), err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	itemID := r.PathValue("itemId")
	if itemID == "" {
		utils.WriteError(w, http.StatusBadRequest, "Item ID required")
		return
	}

	cart, err := h.cartUC.RemoveFromCart(r.Context(), user.ID, itemID)
	if err != nil {
		logger.WithContext(r.Context()).Error().Err(err).Str("user_id", user.ID).Str("item_id", itemID).Msg("RemoveFromCart failed")
		utils.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := h.cartUC.ClearCart(r.Context(), user.ID); err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Cart cleared"})
}

// cartErrStatus maps user-caused cart errors to 400; everything else is a
// server fault.
func cartErrStatus(err error) int {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "not found"),
		strings.Contains(msg, "not available"),
		strings.Contains(msg, "already purchased"),
		strings.Contains(msg, "cart is full"),
		strings.Contains(msg, "must be"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
