// Package service owns session-scoped cart lifecycles: one cart per
// session, one writer at a time.
package service

import (
	"log/slog"
	"sync"

	"github.com/mkarlsen/njord/internal/cart"
)

// CartFactory builds a fresh cart bound to a session. Called once per
// session, under the registry lock.
type CartFactory func(sessionID string) *cart.Cart

// Sessions maps session ids to carts and serializes access per session.
// Every public cart operation runs under the owning session's lock, so
// the cart itself needs no internal locking and recomputation can never
// interleave with a mutation on the same cart.
type Sessions struct {
	mu      sync.Mutex
	factory CartFactory
	carts   map[string]*session
	logger  *slog.Logger
}

type session struct {
	mu   sync.Mutex
	cart *cart.Cart
}

// NewSessions creates a session registry.
func NewSessions(factory CartFactory, logger *slog.Logger) *Sessions {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sessions{
		factory: factory,
		carts:   make(map[string]*session),
		logger:  logger,
	}
}

// With runs fn with exclusive access to the session's cart, creating the
// cart on first use. The cart must not escape fn.
func (s *Sessions) With(sessionID string, fn func(*cart.Cart) error) error {
	sess := s.get(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return fn(sess.cart)
}

func (s *Sessions) get(sessionID string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.carts[sessionID]
	if !ok {
		sess = &session{cart: s.factory(sessionID)}
		s.carts[sessionID] = sess
		s.logger.Debug("cart created", slog.String("session_id", sessionID))
	}
	return sess
}

// Drop discards a session's cart, if any.
func (s *Sessions) Drop(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, sessionID)
}

// Len returns the number of live carts.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.carts)
}
