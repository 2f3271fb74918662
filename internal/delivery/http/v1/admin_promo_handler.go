package v1

import (
	"net/http"
	"strings"

	"edulearn-backend/internal/usecase"
	"edulearn-backend/pkg/utils"

	"github.com/goccy/go-json"
)

// AdminPromoHandler is the admin CRUD surface for promo codes.
type AdminPromoHandler struct {
	promoUC *usecase.PromoUsecase
}

func NewAdminPromoHandler(uc *usecase.PromoUsecase) *AdminPromoHandler {
	return &AdminPromoHandler{promoUC: uc}
}

func (h *AdminPromoHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req usecase.PromoCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	promo, err := h.promoUC.CreatePromo(r.Context(), req)
	if err != nil {
		utils.WriteError(w, promoErrStatus(err), err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusCreated, promo)
}

func (h *AdminPromoHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := utils.ParseInt(r.URL.Query().Get("limit"), 20)
	page := utils.ParseInt(r.URL.Query().Get("page"), 1)
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	promos, total, err := h.promoUC.ListPromos(r.Context(), limit, offset)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to list promo codes")
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"promoCodes": promos,
		"total":      total,
		"page":       page,
		"limit":      limit,
	})
}

func (h *AdminPromoHandler) Get(w http.ResponseWriter, r *http.Request) {
	promo, err := h.promoUC.GetPromo(r.Context(), r.PathValue("id"))
	if err != nil {
		utils.WriteError(w, promoErrStatus(err), err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, promo)
}

func (h *AdminPromoHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req usecase.PromoCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	promo, err := h.promoUC.UpdatePromo(r.Context(), r.PathValue("id"), req)
	if err != nil {
		utils.WriteError(w, promoErrStatus(err), err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, promo)
}

func (h *AdminPromoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.promoUC.DeletePromo(r.Context(), r.PathValue("id")); err != nil {
		utils.WriteError(w, promoErrStatus(err), err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Promo code deleted"})
}

func promoErrStatus(err error) int {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "not found"):
		return http.StatusNotFound
	case strings.Contains(msg, "already exists"),
		strings.Contains(msg, "required"),
		strings.Contains(msg, "must be"),
		strings.Contains(msg, "cannot exceed"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
