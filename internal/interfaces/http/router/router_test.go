package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/salesops/internal/interfaces/http/handler"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "v1", r.apiVersion)
	assert.Equal(t, "/api/v1", r.BasePath())
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "/api/v2", r.BasePath())
}

func TestDomainGroup_Methods(t *testing.T) {
	register := map[string]func(*DomainGroup, string, ...gin.HandlerFunc) *DomainGroup{
		http.MethodGet:    (*DomainGroup).GET,
		http.MethodPost:   (*DomainGroup).POST,
		http.MethodPut:    (*DomainGroup).PUT,
		http.MethodPatch:  (*DomainGroup).PATCH,
		http.MethodDelete: (*DomainGroup).DELETE,
	}

	for method, add := range register {
		t.Run(method, func(t *testing.T) {
			engine := gin.New()
			g := NewDomainGroup("sales", "/quotes")
			add(g, "/:id", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) })
			g.RegisterRoutes(engine.Group("/api/v1"))

			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(method, "/api/v1/quotes/q-1", nil))
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "q-1", w.Body.String())
		})
	}
}

func TestDomainGroup_MiddlewareAndSubgroups(t *testing.T) {
	engine := gin.New()
	g := NewDomainGroup("inventory", "/inventory").Use(func(c *gin.Context) {
		c.Header("X-Group", "inventory")
		c.Next()
	})
	g.Group("items", "/items").GET("", func(c *gin.Context) { c.String(http.StatusOK, "items") })
	g.RegisterRoutes(engine.Group("/api/v1"))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/inventory/items", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "items", w.Body.String())
	assert.Equal(t, "inventory", w.Header().Get("X-Group"))

	assert.Equal(t, []RouteInfo{{Method: http.MethodGet, Path: "/inventory/items"}}, g.Routes())
}

func TestRouter_UseAppliesToAPIOnly(t *testing.T) {
	engine := gin.New()
	engine.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	r := NewRouter(engine).Use(func(c *gin.Context) {
		c.AbortWithStatus(http.StatusTeapot)
	})
	r.Register(NewDomainGroup("system", "/system").GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) }))
	r.Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/system/ping", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegisterAPI_Routes(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)
	require.NotPanics(t, func() {
		r.RegisterAPI(Handlers{
			Clients:   &handler.ClientHandler{},
			Inventory: &handler.InventoryHandler{},
			Quotes:    &handler.QuoteHandler{},
			Invoices:  &handler.InvoiceHandler{},
			System:    &handler.SystemHandler{},
		}).Setup()
	})

	registered := map[string]bool{}
	for _, route := range engine.Routes() {
		registered[route.Method+" "+route.Path] = true
	}

	for _, want := range []string{
		"POST /api/v1/clients",
		"POST /api/v1/clients/:id/deactivate",
		"POST /api/v1/inventory/items/:id/adjust",
		"GET /api/v1/inventory/items/:id/reservations",
		"POST /api/v1/quotes",
		"PUT /api/v1/quotes/:id",
		"POST /api/v1/quotes/:id/reject",
		"DELETE /api/v1/quotes/:id",
		"GET /api/v1/quotes/number/:number",
		"POST /api/v1/invoices/from-quote/:quote_id",
		"GET /api/v1/invoices/by-quote/:quote_id",
		"POST /api/v1/invoices/overdue-sweep",
		"POST /api/v1/invoices/:id/pay",
		"GET /api/v1/system/health",
		"POST /api/v1/system/jobs/:name/run",
		"POST /api/v1/system/reservations/repair",
	} {
		assert.True(t, registered[want], "missing route %s", want)
	}
}

func TestAPIGroups_SkipsNilHandlers(t *testing.T) {
	groups := APIGroups(Handlers{Quotes: &handler.QuoteHandler{}})
	require.Len(t, groups, 1)
	assert.Equal(t, "sales", groups[0].Name())
	assert.Equal(t, "/quotes", groups[0].Prefix())
}
