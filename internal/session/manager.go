// Package session issues the opaque token that groups suggest and retrieve
// calls into one provider search session.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Policy decides when the current token is replaced automatically.
type Policy string

const (
	// PolicyNever keeps one token until Rotate is called explicitly.
	PolicyNever Policy = "never"
	// PolicyAfterRoute rotates once a route has been rendered.
	PolicyAfterRoute Policy = "after_route"
)

// ParsePolicy maps a configuration value onto a Policy.
func ParsePolicy(raw string) (Policy, error) {
	switch Policy(raw) {
	case PolicyNever, PolicyAfterRoute:
		return Policy(raw), nil
	case "":
		return PolicyNever, nil
	}
	return "", fmt.Errorf("unknown session rotation policy %q", raw)
}

// Token is one search session.
type Token struct {
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"createdAt"`
}

// Manager holds the current token. Reads vastly outnumber rotations, and a
// rotation replaces the whole Token at once.
type Manager struct {
	mu      sync.RWMutex
	current *Token
	policy  Policy
	now     func() time.Time
	newID   func() string
}

// NewManager creates a manager. No token exists until first use.
func NewManager(policy Policy) *Manager {
	return &Manager{
		policy: policy,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Current returns the active token, minting one on first use.
func (m *Manager) Current() Token {
	m.mu.RLock()
	if m.current != nil {
		t := *m.current
		m.mu.RUnlock()
		return t
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		m.current = m.mint()
	}
	return *m.current
}

// Rotate discards the current token and returns a fresh one.
func (m *Manager) Rotate() Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.mint()
	return *m.current
}

// AfterRoute applies the rotation policy after a successful route render.
// It reports whether a rotation happened.
func (m *Manager) AfterRoute() (Token, bool) {
	if m.policy != PolicyAfterRoute {
		return m.Current(), false
	}
	return m.Rotate(), true
}

// Policy returns the configured rotation policy.
func (m *Manager) Policy() Policy { return m.policy }

func (m *Manager) mint() *Token {
	return &Token{Value: m.newID(), CreatedAt: m.now()}
}
