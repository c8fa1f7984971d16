package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	billingapp "github.com/erp/salesops/internal/application/billing"
	"github.com/erp/salesops/internal/domain/billing"
)

// InvoiceHandler handles invoice-related API endpoints
type InvoiceHandler struct {
	BaseHandler
	invoiceService *billingapp.InvoiceService
	now            func() time.Time
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoiceService *billingapp.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
		now:            time.Now,
	}
}

// Create handles POST /invoices
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req billingapp.CreateInvoiceRequest
	if !h.bindJSON(c, &req) {
		return
	}
	invoice, err := h.invoiceService.Create(c.Request.Context(), req, getActor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, invoice)
}

// CreateFromQuote handles POST /invoices/from-quote/:quote_id.
// The body is optional.
func (h *InvoiceHandler) CreateFromQuote(c *gin.Context) {
	quoteID, ok := h.parseID(c, "quote_id")
	if !ok {
		return
	}
	var req billingapp.CreateFromQuoteRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	invoice, err := h.invoiceService.CreateFromQuote(c.Request.Context(), quoteID, req, getActor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, invoice)
}

// GetByID handles GET /invoices/:id
func (h *InvoiceHandler) GetByID(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	invoice, err := h.invoiceService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// GetByNumber handles GET /invoices/number/:number
func (h *InvoiceHandler) GetByNumber(c *gin.Context) {
	invoice, err := h.invoiceService.GetByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// ForQuote handles GET /invoices/by-quote/:quote_id
func (h *InvoiceHandler) ForQuote(c *gin.Context) {
	quoteID, ok := h.parseID(c, "quote_id")
	if !ok {
		return
	}
	invoices, err := h.invoiceService.ForQuote(c.Request.Context(), quoteID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoices)
}

// List handles GET /invoices
func (h *InvoiceHandler) List(c *gin.Context) {
	var filter billingapp.InvoiceListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	var ok bool
	if filter.ClientID, ok = h.queryUUID(c, "client_id"); !ok {
		return
	}
	if filter.QuoteID, ok = h.queryUUID(c, "quote_id"); !ok {
		return
	}
	page, err := h.invoiceService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Update handles PUT /invoices/:id
func (h *InvoiceHandler) Update(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	var req billingapp.UpdateInvoiceRequest
	if !h.bindJSON(c, &req) {
		return
	}
	invoice, err := h.invoiceService.Update(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// Transition handles POST /invoices/:id/status
func (h *InvoiceHandler) Transition(c *gin.Context) {
	var req billingapp.TransitionInvoiceRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.transition(c, billing.InvoiceStatus(req.Status))
}

// Send handles POST /invoices/:id/send
func (h *InvoiceHandler) Send(c *gin.Context) {
	h.transition(c, billing.InvoiceStatusSent)
}

// Pay handles POST /invoices/:id/pay
func (h *InvoiceHandler) Pay(c *gin.Context) {
	h.transition(c, billing.InvoiceStatusPaid)
}

// Cancel handles POST /invoices/:id/cancel
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	h.transition(c, billing.InvoiceStatusCancelled)
}

func (h *InvoiceHandler) transition(c *gin.Context, target billing.InvoiceStatus) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	invoice, err := h.invoiceService.Transition(c.Request.Context(), id, target)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// Delete handles DELETE /invoices/:id
func (h *InvoiceHandler) Delete(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	if err := h.invoiceService.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// MarkOverdue handles POST /invoices/overdue-sweep, running the same
// sweep as the scheduled job on demand.
func (h *InvoiceHandler) MarkOverdue(c *gin.Context) {
	result, err := h.invoiceService.MarkOverdue(c.Request.Context(), h.now())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
