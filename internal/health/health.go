package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/matrixise/token-ledger/internal/storage"
)

// Checker performs health checks on application dependencies
type Checker struct {
	store          storage.Store
	lastRunTime    time.Time
	lastRunSuccess bool
	lastRunClean   bool
	interval       time.Duration
	mu             sync.RWMutex
}

// NewChecker creates a new health checker. A zero interval means one-shot
// mode and disables the audit staleness check.
func NewChecker(store storage.Store, interval time.Duration) *Checker {
	return &Checker{
		store:    store,
		interval: interval,
	}
}

// UpdateLastRun records the outcome of the last audit sweep. success is
// false when the sweep itself errored; clean is false when it completed
// but found violations.
func (c *Checker) UpdateLastRun(success, clean bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastRunTime = time.Now()
	c.lastRunSuccess = success
	c.lastRunClean = clean
}

// CheckStatus represents the health status of a component
type CheckStatus string

const (
	StatusOK       CheckStatus = "ok"
	StatusDegraded CheckStatus = "degraded"
	StatusError    CheckStatus = "error"
)

// HealthResponse is the JSON response structure
type HealthResponse struct {
	Status    CheckStatus            `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckDetail `json:"checks"`
	Uptime    string                 `json:"uptime,omitempty"`
}

// CheckDetail contains details about a specific health check
type CheckDetail struct {
	Status  CheckStatus `json:"status"`
	Message string      `json:"message,omitempty"`
}

var startTime = time.Now()

// Check performs all health checks and returns the aggregated status
func (c *Checker) Check(ctx context.Context) HealthResponse {
	checks := make(map[string]CheckDetail)
	overallStatus := StatusOK

	// Check 1: Database connectivity
	dbCheck := c.checkDatabase(ctx)
	checks["database"] = dbCheck
	if dbCheck.Status != StatusOK {
		overallStatus = StatusError
	}

	// Check 2: Audit sweep freshness (daemon mode only)
	if c.interval > 0 {
		auditCheck := c.checkAudit()
		checks["audit"] = auditCheck
		if auditCheck.Status != StatusOK && overallStatus == StatusOK {
			overallStatus = StatusDegraded
		}
	}

	return HealthResponse{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Checks:    checks,
		Uptime:    time.Since(startTime).Round(time.Second).String(),
	}
}

// checkDatabase verifies PostgreSQL connectivity
func (c *Checker) checkDatabase(ctx context.Context) CheckDetail {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.store.Ping(ctx); err != nil {
		slog.Error("Health check: database ping failed", "error", err)
		return CheckDetail{
			Status:  StatusError,
			Message: "database unreachable: " + err.Error(),
		}
	}

	return CheckDetail{
		Status:  StatusOK,
		Message: "database connection healthy",
	}
}

// checkAudit verifies sweeps are executing on schedule and coming back
// clean.
func (c *Checker) checkAudit() CheckDetail {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// If we've never run, that's OK (might be starting up)
	if c.lastRunTime.IsZero() {
		return CheckDetail{
			Status:  StatusOK,
			Message: "audit not yet executed (startup)",
		}
	}

	if !c.lastRunSuccess {
		return CheckDetail{
			Status:  StatusDegraded,
			Message: "last audit sweep failed",
		}
	}

	if !c.lastRunClean {
		return CheckDetail{
			Status:  StatusDegraded,
			Message: "last audit sweep found violations",
		}
	}

	// Allow a 2x interval grace period before flagging staleness.
	timeSinceLastRun := time.Since(c.lastRunTime)
	graceThreshold := c.interval * 2

	if timeSinceLastRun > graceThreshold {
		return CheckDetail{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("no sweep in %s (expected every %s)", timeSinceLastRun.Round(time.Second), c.interval),
		}
	}

	return CheckDetail{
		Status:  StatusOK,
		Message: fmt.Sprintf("last swept %s ago", timeSinceLastRun.Round(time.Second)),
	}
}

// Handler returns an http.HandlerFunc for the health endpoint
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := c.Check(r.Context())

		statusCode := http.StatusOK
		if status.Status == StatusError {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)

		if err := json.NewEncoder(w).Encode(status); err != nil {
			slog.Error("Failed to encode health response", "error", err)
		}
	}
}
