// ABOUTME: Admin session manager handling login, validation, and logout
// ABOUTME: Credentials come from config as a bcrypt hash; tokens are opaque crypto/rand hex

package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/constructhub/hub/internal/config"
	"github.com/constructhub/hub/internal/store"
)

// Session errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("not authenticated")
)

// dummyHash is compared against when the email doesn't match, so login takes
// the same time whether or not the email exists.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Manager owns admin session lifecycle: credential checks, token issuance,
// validation, and logout.
type Manager struct {
	store  store.Store
	cfg    config.AdminConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a session manager.
func NewManager(st store.Store, cfg config.AdminConfig) *Manager {
	return &Manager{
		store:  st,
		cfg:    cfg,
		logger: slog.Default().With("component", "session"),
		now:    time.Now,
	}
}

// adminIdentityKey is the synthetic identity key under which the config-provisioned
// super admin is stored. It never collides with provider-issued keys.
func (m *Manager) adminIdentityKey() string {
	return "admin:" + m.cfg.Email
}

// Login checks the submitted credentials against the configured super admin,
// provisions the admin principal if needed, and issues a fresh session token.
func (m *Manager) Login(ctx context.Context, email, password, sourceAddr string) (token string, expiry time.Time, err error) {
	hash := dummyHash
	if email == m.cfg.Email {
		hash = m.cfg.PasswordHash
	}

	// Always run the comparison so a wrong email costs the same as a wrong
	// password.
	if bcryptErr := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); bcryptErr != nil || email != m.cfg.Email {
		m.logger.Warn("failed login attempt", "email", email, "source", sourceAddr)
		return "", time.Time{}, ErrInvalidCredentials
	}

	principal, err := m.ensureAdminPrincipal(ctx)
	if err != nil {
		return "", time.Time{}, err
	}

	token, err = generateSecureToken()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generating session token: %w", err)
	}

	expiry = m.now().Add(m.cfg.SessionTTL)
	if err := m.store.SetPrincipalSession(ctx, principal.IdentityKey, token, expiry); err != nil {
		return "", time.Time{}, fmt.Errorf("storing session: %w", err)
	}

	if err := m.store.AppendActivity(ctx, &store.ActivityEntry{
		ActorKey:   principal.IdentityKey,
		ActorEmail: principal.Email,
		Action:     store.ActionLogin,
		SourceAddr: sourceAddr,
	}); err != nil {
		m.logger.Error("recording login activity", "error", err)
	}

	m.logger.Info("admin logged in", "email", email, "source", sourceAddr)
	return token, expiry, nil
}

// ensureAdminPrincipal returns the super-admin principal, creating or
// re-promoting it as needed. The config-provisioned admin always has the
// admin role and a verified email.
func (m *Manager) ensureAdminPrincipal(ctx context.Context) (*store.Principal, error) {
	key := m.adminIdentityKey()

	p, err := m.store.GetPrincipalByIdentityKey(ctx, key)
	if errors.Is(err, store.ErrPrincipalNotFound) {
		p = &store.Principal{
			IdentityKey: key,
			Username:    m.cfg.Username,
			Email:       m.cfg.Email,
			Role:        store.RoleAdmin,
			Verified:    true,
		}
		if err := m.store.UpsertPrincipal(ctx, p); err != nil {
			return nil, fmt.Errorf("provisioning admin principal: %w", err)
		}
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up admin principal: %w", err)
	}

	if !p.IsAdmin() {
		if err := m.store.SetPrincipalRole(ctx, key, store.RoleAdmin); err != nil {
			return nil, fmt.Errorf("restoring admin role: %w", err)
		}
		p.Role = store.RoleAdmin
	}
	return p, nil
}

// Validate returns the admin principal owning a live session token, or
// ErrUnauthenticated if the token is unknown, expired, or not an admin's.
func (m *Manager) Validate(ctx context.Context, token string) (*store.Principal, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	p, err := m.store.GetPrincipalBySession(ctx, token, m.now())
	if errors.Is(err, store.ErrPrincipalNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("validating session: %w", err)
	}
	return p, nil
}

// Logout clears the session owning the token. Unknown tokens are a no-op, so
// logout is idempotent and clears expired sessions too.
func (m *Manager) Logout(ctx context.Context, token, sourceAddr string) error {
	if token == "" {
		return nil
	}

	p, err := m.store.GetPrincipalByToken(ctx, token)
	if errors.Is(err, store.ErrPrincipalNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("looking up session: %w", err)
	}

	if err := m.store.ClearPrincipalSession(ctx, p.IdentityKey); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}

	if err := m.store.AppendActivity(ctx, &store.ActivityEntry{
		ActorKey:   p.IdentityKey,
		ActorEmail: p.Email,
		Action:     store.ActionLogout,
		SourceAddr: sourceAddr,
	}); err != nil {
		m.logger.Error("recording logout activity", "error", err)
	}

	m.logger.Info("admin logged out", "email", p.Email, "source", sourceAddr)
	return nil
}

// generateSecureToken creates a 64-character hex token from 32 random bytes.
func generateSecureToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
