package adaptor

import (
	"fmt"
	"net/http"
	"strconv"

	"carwash-payments/internal/dto/request"
	"carwash-payments/internal/usecase"
	"carwash-payments/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type InvoiceHandler struct {
	service usecase.InvoiceService
	log     *zap.Logger
}

func NewInvoiceHandler(service usecase.InvoiceService, log *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		service: service,
		log:     log.With(zap.String("handler", "invoice")),
	}
}

// CreateInvoice handles POST /api/invoices (staff)
func (h *InvoiceHandler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req request.CreateInvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	invoice, created, err := h.service.CreateInvoice(r.Context(), &req)
	if err != nil {
		handleServiceError(w, h.log, err, "create invoice")
		return
	}

	if !created {
		utils.ResponseSuccess(w, "Invoice already exists", invoice)
		return
	}
	utils.ResponseCreated(w, "Invoice created", invoice)
}

// ListInvoices handles GET /api/invoices?page=&per_page=&status= (staff)
func (h *InvoiceHandler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := &request.ListInvoicesRequest{
		PaginatedRequest: request.PaginatedRequest{
			Page:    utils.ParseInt(query.Get("page"), 1),
			PerPage: utils.ParseInt(query.Get("per_page"), 10),
		},
		Status: query.Get("status"),
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	invoices, err := h.service.ListInvoices(r.Context(), req)
	if err != nil {
		handleServiceError(w, h.log, err, "list invoices")
		return
	}

	utils.ResponseSuccess(w, "success", invoices)
}

// ListMyInvoices handles GET /api/invoices/me?page=&per_page=&status= (protected)
func (h *InvoiceHandler) ListMyInvoices(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := &request.ListInvoicesRequest{
		PaginatedRequest: request.PaginatedRequest{
			Page:    utils.ParseInt(query.Get("page"), 1),
			PerPage: utils.ParseInt(query.Get("per_page"), 10),
		},
		Status: query.Get("status"),
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	invoices, err := h.service.ListMyInvoices(r.Context(), req)
	if err != nil {
		handleServiceError(w, h.log, err, "list my invoices")
		return
	}

	utils.ResponseSuccess(w, "success", invoices)
}

// ListOverdue handles GET /api/invoices/overdue (staff)
func (h *InvoiceHandler) ListOverdue(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.service.ListOverdue(r.Context())
	if err != nil {
		handleServiceError(w, h.log, err, "list overdue invoices")
		return
	}

	utils.ResponseSuccess(w, "success", invoices)
}

// SweepOverdue handles PATCH /api/invoices/overdue/update (internal token or admin)
func (h *InvoiceHandler) SweepOverdue(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.SweepOverdue(r.Context())
	if err != nil {
		handleServiceError(w, h.log, err, "sweep overdue invoices")
		return
	}

	utils.ResponseSuccess(w, "Overdue invoices updated", res)
}

// GetStats handles GET /api/invoices/stats (staff)
func (h *InvoiceHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context())
	if err != nil {
		handleServiceError(w, h.log, err, "invoice stats")
		return
	}

	utils.ResponseSuccess(w, "success", stats)
}

// GetInvoice handles GET /api/invoices/{id} (protected)
func (h *InvoiceHandler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.service.GetInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.log, err, "get invoice")
		return
	}

	utils.ResponseSuccess(w, "success", invoice)
}

// GetInvoiceByNumber handles GET /api/invoices/number/{number} (protected)
func (h *InvoiceHandler) GetInvoiceByNumber(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.service.GetInvoiceByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		handleServiceError(w, h.log, err, "get invoice by number")
		return
	}

	utils.ResponseSuccess(w, "success", invoice)
}

// GetInvoiceByBooking handles GET /api/invoices/booking/{bookingId} (protected)
func (h *InvoiceHandler) GetInvoiceByBooking(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.service.GetInvoiceByBooking(r.Context(), chi.URLParam(r, "bookingId"))
	if err != nil {
		handleServiceError(w, h.log, err, "get invoice by booking")
		return
	}

	utils.ResponseSuccess(w, "success", invoice)
}

// UpdateInvoice handles PATCH /api/invoices/{id} (staff)
func (h *InvoiceHandler) UpdateInvoice(w http.ResponseWriter, r *http.Request) {
	var req request.UpdateInvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	invoice, err := h.service.UpdateInvoice(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(w, h.log, err, "update invoice")
		return
	}

	utils.ResponseSuccess(w, "Invoice updated", invoice)
}

// MarkPaid handles PATCH /api/invoices/{id}/paid (staff). The body is optional.
func (h *InvoiceHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	var req request.MarkInvoicePaidRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	invoice, err := h.service.MarkInvoicePaid(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(w, h.log, err, "mark invoice paid")
		return
	}

	utils.ResponseSuccess(w, "Invoice paid", invoice)
}

// MarkSent handles PATCH /api/invoices/{id}/send (staff)
func (h *InvoiceHandler) MarkSent(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.service.MarkSent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.log, err, "send invoice")
		return
	}

	utils.ResponseSuccess(w, "Invoice sent", invoice)
}

// CancelInvoice handles PATCH /api/invoices/{id}/cancel (staff)
func (h *InvoiceHandler) CancelInvoice(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.service.CancelInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.log, err, "cancel invoice")
		return
	}

	utils.ResponseSuccess(w, "Invoice cancelled", invoice)
}

// DownloadPDF handles GET /api/invoices/{id}/pdf (protected)
func (h *InvoiceHandler) DownloadPDF(w http.ResponseWriter, r *http.Request) {
	doc, filename, err := h.service.RenderPDF(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.log, err, "render invoice pdf")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc); err != nil {
		h.log.Warn("Failed to write invoice pdf", zap.Error(err))
	}
}
