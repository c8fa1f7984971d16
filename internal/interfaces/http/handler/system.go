package handler

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	inventoryapp "github.com/erp/salesops/internal/application/inventory"
	"github.com/erp/salesops/internal/infrastructure/scheduler"
	"github.com/erp/salesops/internal/interfaces/http/dto"
)

// HealthCheck reports whether one dependency is usable
type HealthCheck func(ctx context.Context) error

// JobRunner is the part of the periodic runner exposed over HTTP
type JobRunner interface {
	States() []scheduler.JobState
	RunOnce(ctx context.Context, name string) error
}

// DriftChecker compares reservation counters with the active reservations
type DriftChecker interface {
	ReconcileAll(ctx context.Context, repair bool) ([]inventoryapp.DriftReport, error)
}

// SystemHandler handles system-related API endpoints
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	startTime time.Time
	checks    map[string]HealthCheck
	jobs      JobRunner
	drift     DriftChecker
}

// SystemOption configures a SystemHandler
type SystemOption func(*SystemHandler)

// WithHealthCheck adds a named dependency check to /system/health
func WithHealthCheck(name string, check HealthCheck) SystemOption {
	return func(h *SystemHandler) {
		h.checks[name] = check
	}
}

// WithJobRunner exposes scheduled jobs
func WithJobRunner(jobs JobRunner) SystemOption {
	return func(h *SystemHandler) {
		h.jobs = jobs
	}
}

// WithDriftChecker exposes the reservation reconciliation report
func WithDriftChecker(drift DriftChecker) SystemOption {
	return func(h *SystemHandler) {
		h.drift = drift
	}
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(name, version string, opts ...SystemOption) *SystemHandler {
	h := &SystemHandler{
		name:      name,
		version:   version,
		startTime: time.Now(),
		checks:    make(map[string]HealthCheck),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// GetSystemInfo handles GET /system/info
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

// PingResponse represents the ping response
type PingResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Ping handles GET /system/ping
func (h *SystemHandler) Ping(c *gin.Context) {
	h.Success(c, PingResponse{
		Message:   "pong",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// HealthResponse lists the outcome of every registered check
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health handles GET /system/health. Any failing check turns the
// response into a 503.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			resp.Status = "degraded"
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, dto.NewSuccessResponse(resp))
}

// ListJobs handles GET /system/jobs
func (h *SystemHandler) ListJobs(c *gin.Context) {
	if h.jobs == nil {
		h.Success(c, []scheduler.JobState{})
		return
	}
	states := h.jobs.States()
	sort.Slice(states, func(i, j int) bool { return states[i].Name < states[j].Name })
	h.Success(c, states)
}

// RunJob handles POST /system/jobs/:name/run
func (h *SystemHandler) RunJob(c *gin.Context) {
	name := c.Param("name")
	if h.jobs == nil {
		h.NotFound(c, "Job not found: "+name)
		return
	}
	err := h.jobs.RunOnce(c.Request.Context(), name)
	if errors.Is(err, scheduler.ErrJobNotFound) {
		h.NotFound(c, "Job not found: "+name)
		return
	}
	if err != nil {
		h.ErrorWithCode(c, dto.ErrCodeInternal, err.Error())
		return
	}
	for _, state := range h.jobs.States() {
		if state.Name == name {
			h.Success(c, state)
			return
		}
	}
	h.NoContent(c)
}

// ReservationDrift handles GET /system/reservations/drift
func (h *SystemHandler) ReservationDrift(c *gin.Context) {
	h.reconcile(c, false)
}

// RepairReservations handles POST /system/reservations/repair, rewriting
// drifted counters from the active reservations.
func (h *SystemHandler) RepairReservations(c *gin.Context) {
	h.reconcile(c, true)
}

func (h *SystemHandler) reconcile(c *gin.Context, repair bool) {
	if h.drift == nil {
		h.Success(c, []inventoryapp.DriftReport{})
		return
	}
	reports, err := h.drift.ReconcileAll(c.Request.Context(), repair)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if reports == nil {
		reports = []inventoryapp.DriftReport{}
	}
	h.Success(c, reports)
}
