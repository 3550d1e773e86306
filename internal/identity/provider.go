// ABOUTME: Identity provider interface and startup selection
// ABOUTME: Resolves the external identity of an HTTP caller from provider session cookies

package identity

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/constructhub/hub/internal/config"
)

// ErrNoIdentity is returned when a request carries no identity at all.
var ErrNoIdentity = errors.New("no identity present")

// ErrInvalidSession is returned when a request carries an identity session
// that fails verification.
var ErrInvalidSession = errors.New("invalid identity session")

// Identity is the provider-issued view of a caller. Key is the provider's
// stable user identifier and survives profile changes.
type Identity struct {
	Key           string
	Username      string
	Email         string
	FirstName     string
	LastName      string
	PhotoURL      string
	EmailVerified bool
}

// Provider resolves the identity of an HTTP caller. Implementations are
// selected once at startup and never swapped at runtime.
type Provider interface {
	// CurrentCaller returns the identity attached to the request, or
	// ErrNoIdentity when the request is anonymous. ErrInvalidSession means a
	// session was presented but failed verification.
	CurrentCaller(r *http.Request) (*Identity, error)
}

// NewProvider builds the provider named by the configuration.
func NewProvider(cfg config.IdentityConfig) (Provider, error) {
	switch cfg.Provider {
	case "jwt":
		return NewJWTProvider([]byte(cfg.SigningSecret), cfg.SessionCookie), nil
	case "mock":
		return &MockProvider{
			Identity: Identity{
				Key:           cfg.MockKey,
				Username:      cfg.MockUsername,
				Email:         cfg.MockEmail,
				EmailVerified: true,
			},
		}, nil
	default:
		return nil, fmt.Errorf("unknown identity provider %q", cfg.Provider)
	}
}

// MockProvider returns a fixed identity for every request. Used in local
// development and tests where no real identity provider is available.
type MockProvider struct {
	Identity Identity
}

// CurrentCaller returns the configured fixed identity.
func (m *MockProvider) CurrentCaller(_ *http.Request) (*Identity, error) {
	id := m.Identity
	return &id, nil
}
