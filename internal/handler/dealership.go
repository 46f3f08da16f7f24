package handler

import (
	"net/http"
	"strconv"

	"lotorder-engine/internal/repository"
	"lotorder-engine/pkg/apierror"
	"lotorder-engine/pkg/response"

	"github.com/go-chi/chi/v5"
)

// DealershipHandler serves dealership configuration lookups.
type DealershipHandler struct {
	dealerships repository.DealershipRepository
}

// NewDealershipHandler creates a new dealership handler.
func NewDealershipHandler(dealerships repository.DealershipRepository) *DealershipHandler {
	return &DealershipHandler{dealerships: dealerships}
}

// List handles GET /api/v1/dealerships
func (h *DealershipHandler) List(w http.ResponseWriter, r *http.Request) {
	configs, err := h.dealerships.List(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]interface{}{
		"dealerships": configs,
		"count":       len(configs),
	})
}

// Get handles GET /api/v1/dealerships/{dealership_id}
func (h *DealershipHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "dealership_id"), 10, 64)
	if err != nil {
		response.Error(w, apierror.BadRequest("dealership_id must be an integer"))
		return
	}

	cfg, err := h.dealerships.GetByID(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}
	if cfg == nil {
		response.Error(w, apierror.UnknownDealership(""))
		return
	}
	response.OK(w, cfg)
}
