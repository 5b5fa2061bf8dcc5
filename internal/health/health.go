// Package health aggregates dependency checks for the readiness endpoints.
//
// Checks are registered once at startup and run together per request.
// A check that returns an error marks the whole report degraded; its
// error text becomes the reported detail.
package health

import (
	"context"
	"sync"
)

// Check inspects one dependency. The detail string is informational and
// is reported even on success. A non-nil error marks the dependency down.
type Check func(ctx context.Context) (detail string, err error)

// Status is the outcome of running a single check.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Registry holds named checks and runs them on demand.
type Registry struct {
	mu     sync.Mutex
	order  []string
	checks map[string]Check
}

// NewRegistry creates an empty check registry.
func NewRegistry() *Registry {
	return &Registry{checks: make(map[string]Check)}
}

// Register adds a check under name. Registering the same name again
// replaces the earlier check without changing its position.
func (r *Registry) Register(name string, check Check) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.checks[name]; !ok {
		r.order = append(r.order, name)
	}
	r.checks[name] = check
}

// Run executes every check in registration order and reports the
// aggregate: true only when all checks pass.
func (r *Registry) Run(ctx context.Context) (bool, []Status) {
	r.mu.Lock()
	order := append([]string(nil), r.order...)
	checks := make(map[string]Check, len(r.checks))
	for name, c := range r.checks {
		checks[name] = c
	}
	r.mu.Unlock()

	ok := true
	statuses := make([]Status, 0, len(order))
	for _, name := range order {
		detail, err := checks[name](ctx)
		st := Status{Name: name, Healthy: err == nil, Detail: detail}
		if err != nil {
			st.Detail = err.Error()
			ok = false
		}
		statuses = append(statuses, st)
	}
	return ok, statuses
}
