package handler

import (
	"github.com/gin-gonic/gin"

	salesapp "github.com/erp/salesops/internal/application/sales"
	"github.com/erp/salesops/internal/domain/sales"
)

// QuoteHandler handles quote-related API endpoints
type QuoteHandler struct {
	BaseHandler
	quoteService *salesapp.QuoteService
}

// NewQuoteHandler creates a new QuoteHandler
func NewQuoteHandler(quoteService *salesapp.QuoteService) *QuoteHandler {
	return &QuoteHandler{quoteService: quoteService}
}

// Create handles POST /quotes.
// Reservations for stock-linked lines are taken as part of creation.
func (h *QuoteHandler) Create(c *gin.Context) {
	var req salesapp.CreateQuoteRequest
	if !h.bindJSON(c, &req) {
		return
	}
	quote, err := h.quoteService.Create(c.Request.Context(), req, getActor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, quote)
}

// GetByID handles GET /quotes/:id
func (h *QuoteHandler) GetByID(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	quote, err := h.quoteService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, quote)
}

// GetByNumber handles GET /quotes/number/:number
func (h *QuoteHandler) GetByNumber(c *gin.Context) {
	quote, err := h.quoteService.GetByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, quote)
}

// List handles GET /quotes
func (h *QuoteHandler) List(c *gin.Context) {
	var filter salesapp.QuoteListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	var ok bool
	if filter.ClientID, ok = h.queryUUID(c, "client_id"); !ok {
		return
	}
	page, err := h.quoteService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Update handles PUT /quotes/:id
func (h *QuoteHandler) Update(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	var req salesapp.UpdateQuoteRequest
	if !h.bindJSON(c, &req) {
		return
	}
	quote, err := h.quoteService.Update(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, quote)
}

// Transition handles POST /quotes/:id/status
func (h *QuoteHandler) Transition(c *gin.Context) {
	var req salesapp.TransitionQuoteRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.transition(c, sales.QuoteStatus(req.Status))
}

// Send handles POST /quotes/:id/send
func (h *QuoteHandler) Send(c *gin.Context) {
	h.transition(c, sales.QuoteStatusSent)
}

// Accept handles POST /quotes/:id/accept
func (h *QuoteHandler) Accept(c *gin.Context) {
	h.transition(c, sales.QuoteStatusAccepted)
}

// Reject handles POST /quotes/:id/reject. Active reservations are released.
func (h *QuoteHandler) Reject(c *gin.Context) {
	h.transition(c, sales.QuoteStatusRejected)
}

func (h *QuoteHandler) transition(c *gin.Context, target sales.QuoteStatus) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	quote, err := h.quoteService.Transition(c.Request.Context(), id, target)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, quote)
}

// Delete handles DELETE /quotes/:id
func (h *QuoteHandler) Delete(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	if err := h.quoteService.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Duplicate handles POST /quotes/:id/duplicate
func (h *QuoteHandler) Duplicate(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	quote, err := h.quoteService.Duplicate(c.Request.Context(), id, getActor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, quote)
}

// Reservations handles GET /quotes/:id/reservations
func (h *QuoteHandler) Reservations(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	reservations, err := h.quoteService.Reservations(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, reservations)
}
