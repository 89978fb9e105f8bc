package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/polygonid/academic-bridge/internal/log"
)

// Component names reported by the health endpoint
const (
	Agent  = "agent"
	Ledger = "ledger"
	DB     = "db"
	Cache  = "cache"
)

const defaultTimeout = 5 * time.Second

// Ping interface
type Ping interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Ping
type PingFunc func(ctx context.Context) error

// Ping calls f
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Status probes the collaborators of the service
type Status struct {
	pingers map[string]Ping
	timeout time.Duration
}

// New returns a Health instance with the given named pingers. Nil pingers are ignored.
func New(pingers map[string]Ping) *Status {
	m := make(map[string]Ping, len(pingers))
	for name, p := range pingers {
		if p != nil {
			m[name] = p
		}
	}
	return &Status{pingers: m, timeout: defaultTimeout}
}

// Status pings every component concurrently and returns whether each one is reachable
func (h *Status) Status(ctx context.Context) map[string]bool {
	var mu sync.Mutex
	m := make(map[string]bool, len(h.pingers))

	g, gctx := errgroup.WithContext(ctx)
	for name, p := range h.pingers {
		name, p := name, p
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(gctx, h.timeout)
			defer cancel()
			err := p.Ping(pctx)
			if err != nil {
				log.Warn(ctx, "health check failed", "component", name, "err", err)
			}
			mu.Lock()
			m[name] = err == nil
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return m
}

// Healthy is true when every component answered
func Healthy(status map[string]bool) bool {
	for _, ok := range status {
		if !ok {
			return false
		}
	}
	return true
}
