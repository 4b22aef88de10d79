/**
 * @description
 * Durable storage for the merchant API key. The dashboard persists exactly one
 * value: the bearer token. Absence of the value means "not logged in".
 *
 * Three backends are available and selected by configuration:
 * - file: a single 0600 file in the user's home directory (default).
 * - redis: one key in Redis, for deployments where the BFF runs in a container.
 * - memory: process memory only, used by tests and ephemeral runs.
 */
package tokenstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/joelwasike/globpay-crypto-dash/pkg/gatewayclient"
)

// Memory keeps the token in process memory.
type Memory struct {
	mu    sync.RWMutex
	token string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Token(ctx context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == "" {
		return "", gatewayclient.ErrNoToken
	}
	return m.token, nil
}

func (m *Memory) SetToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("refusing to store empty token")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *Memory) ClearToken(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}
