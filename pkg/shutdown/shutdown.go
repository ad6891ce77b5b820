package shutdown

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/psantana5/chromactl/pkg/logging"
)

// Manager runs cleanup hooks when a command finishes.
// Hooks run in reverse registration order (LIFO) and only once.
type Manager struct {
	mu      sync.Mutex
	hooks   []hook
	timeout time.Duration
	logger  *logging.Logger
	done    bool
}

type hook struct {
	name string
	fn   func(context.Context) error
}

// New creates a new shutdown manager
func New(timeout time.Duration, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Manager{
		timeout: timeout,
		logger:  logger,
	}
}

// Register adds a named shutdown function
func (m *Manager) Register(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook{name: name, fn: fn})
}

// Shutdown executes all registered hooks and returns the first error.
// Every hook runs even if an earlier one fails.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.done {
		return nil
	}
	m.done = true

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	var firstErr error
	for i := len(m.hooks) - 1; i >= 0; i-- {
		h := m.hooks[i]
		if err := h.fn(ctx); err != nil {
			m.logger.Warn("shutdown hook failed", logging.Fields{"hook": h.name, "error": err.Error()})
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", h.name, err)
			}
			continue
		}
		m.logger.Debug("shutdown hook done", logging.Fields{"hook": h.name})
	}
	return firstErr
}

// CloseResource creates a shutdown function for io.Closer
func CloseResource(closer interface{ Close() error }) func(context.Context) error {
	return func(ctx context.Context) error {
		return closer.Close()
	}
}
