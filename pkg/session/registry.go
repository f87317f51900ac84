package session

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/lilwiggy/ex-act/internal/config"
	"github.com/lilwiggy/ex-act/pkg/errors"
	"github.com/lilwiggy/ex-act/pkg/venue"
)

// AdapterFactory builds a venue.Adapter for one account, given its
// config-supplied endpoints and credentials.
type AdapterFactory func(account config.Account, endpoints config.Endpoints) (venue.Adapter, error)

// Registry is the process-wide collection of open sessions, keyed by a
// stable client handle (clientId) returned to the RPC caller. This
// replaces the original's global mutable latches: callers that need
// process-scoped state thread a *Registry through explicitly instead of
// reaching for package-level variables.
type Registry struct {
	factory AdapterFactory
	config  config.Config

	mu             sync.RWMutex
	byClientID     map[string]*Session
	byAccountName  map[string]*Session // find-or-create dedupe
}

// NewRegistry creates a Registry bound to a loaded configuration and an
// adapter factory (normally the per-venue constructors in internal/driver).
func NewRegistry(cfg config.Config, factory AdapterFactory) *Registry {
	return &Registry{
		factory:       factory,
		config:        cfg,
		byClientID:    make(map[string]*Session),
		byAccountName: make(map[string]*Session),
	}
}

// OpenClientConnection implements the façade's find-or-create-by-account
// semantics: the first open for an account calls Load; subsequent opens
// for the same account reuse the existing session.
func (r *Registry) OpenClientConnection(ctx context.Context, accountName string) (*Session, error) {
	r.mu.Lock()
	if sess, ok := r.byAccountName[accountName]; ok {
		r.mu.Unlock()
		return sess, nil
	}
	r.mu.Unlock()

	account, ok := r.config.Account(accountName)
	if !ok {
		return nil, errors.NewNotFoundError("account", accountName)
	}
	endpoints, ok := r.config.Endpoint(account.Exchange)
	if !ok {
		return nil, errors.NewNotFoundError("endpoint", account.Exchange)
	}

	adapter, err := r.factory(account, endpoints)
	if err != nil {
		return nil, errors.NewExchangeError(account.Exchange, "open", "failed to build adapter", err)
	}

	clientID := uuid.NewString()
	sess := New(clientID, accountName, adapter.Tag(), adapter)

	if err := sess.Load(ctx); err != nil {
		adapter.Close()
		return nil, err
	}

	r.mu.Lock()
	r.byClientID[clientID] = sess
	r.byAccountName[accountName] = sess
	r.mu.Unlock()

	return sess, nil
}

// Get returns the session for clientID, or an error if unknown — this
// is the unknown-account/missing-key AuthOrConfig failure mode every
// unary RPC checks first.
func (r *Registry) Get(clientID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.byClientID[clientID]
	if !ok {
		return nil, errors.NewNotFoundError("session", clientID)
	}
	return sess, nil
}

// Close tears down every open session.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, sess := range r.byClientID {
		sess.Close()
		delete(r.byClientID, id)
	}
	r.byAccountName = make(map[string]*Session)
}
