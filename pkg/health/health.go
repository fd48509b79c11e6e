// Package health serves liveness and readiness probes. Readiness runs every
// registered dependency check concurrently.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Checker reports whether a dependency is usable.
type Checker func(ctx context.Context) error

// Status of a single check or of the whole service.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// DefaultTimeout bounds each check unless overridden with WithTimeout.
const DefaultTimeout = 3 * time.Second

// CheckResult is the outcome of one check.
type CheckResult struct {
	Status    Status  `json:"status"`
	Critical  bool    `json:"critical"`
	LatencyMs float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

// Report is the body of both probes.
type Report struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

type check struct {
	fn       Checker
	critical bool
	timeout  time.Duration
}

// Option tunes a registered check.
type Option func(*check)

// NonCritical marks a check whose failure degrades the service but keeps it
// ready.
func NonCritical() Option {
	return func(c *check) { c.critical = false }
}

// WithTimeout overrides DefaultTimeout for one check.
func WithTimeout(d time.Duration) Option {
	return func(c *check) { c.timeout = d }
}

// Handler holds the registered checks.
type Handler struct {
	mu     sync.RWMutex
	checks map[string]check
	now    func() time.Time
}

// NewHandler returns a handler with no checks; readiness is then always up.
func NewHandler() *Handler {
	return &Handler{checks: make(map[string]check), now: time.Now}
}

// Register adds or replaces the check called name. Checks are critical
// unless NonCritical is given.
func (h *Handler) Register(name string, fn Checker, opts ...Option) {
	c := check{fn: fn, critical: true, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&c)
	}

	h.mu.Lock()
	h.checks[name] = c
	h.mu.Unlock()
}

// Live answers 200 while the process is serving.
func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	write(w, http.StatusOK, Report{Status: StatusUp, Timestamp: h.now().UTC()})
}

// Ready answers 503 when a critical check fails and 200 otherwise.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	rep := h.Check(r.Context())

	status := http.StatusOK
	if rep.Status == StatusDown {
		status = http.StatusServiceUnavailable
	}
	write(w, status, rep)
}

// Check runs every registered check and aggregates the results.
func (h *Handler) Check(ctx context.Context) Report {
	h.mu.RLock()
	checks := make(map[string]check, len(h.checks))
	for name, c := range h.checks {
		checks[name] = c
	}
	h.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, c := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := h.run(ctx, c)
			mu.Lock()
			results[name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	rep := Report{Status: StatusUp, Timestamp: h.now().UTC(), Checks: results}
	for _, res := range results {
		if res.Status == StatusUp {
			continue
		}
		if res.Critical {
			rep.Status = StatusDown
			break
		}
		rep.Status = StatusDegraded
	}
	return rep
}

func (h *Handler) run(ctx context.Context, c check) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := h.now()
	err := c.fn(ctx)
	res := CheckResult{
		Status:    StatusUp,
		Critical:  c.critical,
		LatencyMs: float64(h.now().Sub(start).Microseconds()) / 1000,
	}
	if err != nil {
		res.Status = StatusDown
		res.Error = err.Error()
	}
	return res
}

func write(w http.ResponseWriter, status int, rep Report) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rep)
}
