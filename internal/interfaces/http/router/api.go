package router

import (
	"github.com/erp/salesops/internal/interfaces/http/handler"
)

// Handlers bundles the HTTP handlers served under the API prefix.
// Nil handlers leave their group out.
type Handlers struct {
	Clients   *handler.ClientHandler
	Inventory *handler.InventoryHandler
	Quotes    *handler.QuoteHandler
	Invoices  *handler.InvoiceHandler
	System    *handler.SystemHandler
}

// APIGroups returns one DomainGroup per bounded context
func APIGroups(h Handlers) []*DomainGroup {
	var groups []*DomainGroup

	if h.Clients != nil {
		clients := NewDomainGroup("partner", "/clients")
		clients.GET("", h.Clients.List).
			POST("", h.Clients.Create).
			GET("/:id", h.Clients.GetByID).
			PUT("/:id", h.Clients.Update).
			POST("/:id/activate", h.Clients.Activate).
			POST("/:id/deactivate", h.Clients.Deactivate)
		groups = append(groups, clients)
	}

	if h.Inventory != nil {
		inventory := NewDomainGroup("inventory", "/inventory")
		items := inventory.Group("items", "/items")
		items.GET("", h.Inventory.ListItems).
			POST("", h.Inventory.CreateItem).
			GET("/:id", h.Inventory.GetItem).
			PUT("/:id", h.Inventory.UpdateItem).
			DELETE("/:id", h.Inventory.DeleteItem).
			POST("/:id/adjust", h.Inventory.AdjustStock).
			GET("/:id/reservations", h.Inventory.ListReservations)
		groups = append(groups, inventory)
	}

	if h.Quotes != nil {
		quotes := NewDomainGroup("sales", "/quotes")
		quotes.GET("", h.Quotes.List).
			POST("", h.Quotes.Create).
			GET("/number/:number", h.Quotes.GetByNumber).
			GET("/:id", h.Quotes.GetByID).
			PUT("/:id", h.Quotes.Update).
			DELETE("/:id", h.Quotes.Delete).
			POST("/:id/status", h.Quotes.Transition).
			POST("/:id/send", h.Quotes.Send).
			POST("/:id/accept", h.Quotes.Accept).
			POST("/:id/reject", h.Quotes.Reject).
			POST("/:id/duplicate", h.Quotes.Duplicate).
			GET("/:id/reservations", h.Quotes.Reservations)
		groups = append(groups, quotes)
	}

	if h.Invoices != nil {
		invoices := NewDomainGroup("billing", "/invoices")
		invoices.GET("", h.Invoices.List).
			POST("", h.Invoices.Create).
			POST("/from-quote/:quote_id", h.Invoices.CreateFromQuote).
			GET("/by-quote/:quote_id", h.Invoices.ForQuote).
			POST("/overdue-sweep", h.Invoices.MarkOverdue).
			GET("/number/:number", h.Invoices.GetByNumber).
			GET("/:id", h.Invoices.GetByID).
			PUT("/:id", h.Invoices.Update).
			DELETE("/:id", h.Invoices.Delete).
			POST("/:id/status", h.Invoices.Transition).
			POST("/:id/send", h.Invoices.Send).
			POST("/:id/pay", h.Invoices.Pay).
			POST("/:id/cancel", h.Invoices.Cancel)
		groups = append(groups, invoices)
	}

	if h.System != nil {
		system := NewDomainGroup("system", "/system")
		system.GET("/info", h.System.GetSystemInfo).
			GET("/ping", h.System.Ping).
			GET("/health", h.System.Health).
			GET("/jobs", h.System.ListJobs).
			POST("/jobs/:name/run", h.System.RunJob).
			GET("/reservations/drift", h.System.ReservationDrift).
			POST("/reservations/repair", h.System.RepairReservations)
		groups = append(groups, system)
	}

	return groups
}

// RegisterAPI registers every group from APIGroups on r
func (r *Router) RegisterAPI(h Handlers) *Router {
	for _, group := range APIGroups(h) {
		r.Register(group)
	}
	return r
}
