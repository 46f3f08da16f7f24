package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"lotorder-engine/internal/model"
	"lotorder-engine/internal/normalize"
	"lotorder-engine/internal/service"
	"lotorder-engine/pkg/apierror"
	"lotorder-engine/pkg/response"

	"github.com/go-chi/chi/v5"
)

// OrderHandler handles order submission and status lookups.
type OrderHandler struct {
	orderService *service.OrderService
	statusStore  service.StatusStore
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(orderService *service.OrderService, statusStore service.StatusStore) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		statusStore:  statusStore,
	}
}

// submitOrderRequest is the POST /orders payload. The snapshot carries raw
// scraper records; normalization happens here so callers never need to know
// the canonical field names.
type submitOrderRequest struct {
	DealershipID int64           `json:"dealership_id"`
	Mode         model.OrderMode `json:"mode"`
	VINList      []string        `json:"vin_list,omitempty"`
	Snapshot     []normalize.Raw `json:"snapshot"`
}

// SubmitOrder handles POST /api/v1/orders. The job runs synchronously: the
// response is the finalized order result or a structured failure.
func (h *OrderHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON body"))
		return
	}
	defer r.Body.Close()

	if req.DealershipID == 0 {
		response.Error(w, apierror.ValidationError("dealership_id is required",
			apierror.FieldError{Field: "dealership_id", Message: "must be a positive integer"}))
		return
	}
	if req.Mode == "" {
		req.Mode = model.ModeCAO
	}
	if req.Mode == model.ModeList && len(req.VINList) == 0 {
		response.Error(w, apierror.ValidationError("vin_list is required for list mode",
			apierror.FieldError{Field: "vin_list", Message: "must contain at least one VIN"}))
		return
	}

	observedAt := time.Now().UTC()
	snapshot := make([]model.VehicleRecord, 0, len(req.Snapshot))
	rejected := 0
	for _, raw := range req.Snapshot {
		rec, err := normalize.Vehicle(raw, req.DealershipID, observedAt)
		if err != nil {
			rejected++
			continue
		}
		snapshot = append(snapshot, rec)
	}

	result, err := h.orderService.Execute(r.Context(), service.OrderRequest{
		DealershipID: req.DealershipID,
		Mode:         req.Mode,
		VINList:      req.VINList,
		Snapshot:     snapshot,
	})
	if err != nil {
		response.Error(w, mapOrderError(err))
		return
	}

	payload := map[string]interface{}{
		"result":           result,
		"rejected_records": rejected + result.ErrorCount,
	}
	if len(result.QRFailures) > 0 {
		payload["warning"] = "PARTIAL_QR_FAILURE"
	}
	response.OK(w, payload)
}

// GetJobStatus handles GET /api/v1/orders/{job_id}
func (h *OrderHandler) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		response.Error(w, apierror.BadRequest("job_id is required"))
		return
	}
	if h.statusStore == nil {
		response.Error(w, apierror.ServiceUnavailable("job status store is not configured"))
		return
	}

	status, err := h.statusStore.Get(r.Context(), jobID)
	if err != nil {
		response.Error(w, err)
		return
	}
	if status == nil {
		response.Error(w, apierror.NotFound("unknown or expired job"))
		return
	}
	response.OK(w, status)
}

// mapOrderError translates job-level errors into structured API errors.
func mapOrderError(err error) error {
	switch {
	case errors.Is(err, service.ErrUnknownDealership), errors.Is(err, service.ErrInactiveDealership):
		return apierror.UnknownDealership(err.Error())
	case errors.Is(err, service.ErrEmptyOrder):
		return apierror.EmptyOrder(err.Error())
	case errors.Is(err, service.ErrOrderInProgress):
		return apierror.OrderInProgress(err.Error())
	default:
		return apierror.InternalError(err.Error())
	}
}
