// ABOUTME: Role escalation workflow: request admin access, approve via emailed token
// ABOUTME: Tokens are single-use and expire; approval promotes the subject to admin

package escalation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/constructhub/hub/internal/identity"
	"github.com/constructhub/hub/internal/mailer"
	"github.com/constructhub/hub/internal/store"
)

// Workflow errors
var (
	ErrUnauthenticated = errors.New("identity required to request escalation")
	ErrNotFound        = errors.New("escalation token not found")
	ErrExpired         = errors.New("escalation token expired")
	ErrAlreadyApproved = errors.New("escalation token already used")
	ErrInconsistent    = errors.New("escalation subject no longer exists")
)

// requestTTL is how long an approval token stays valid.
const requestTTL = 24 * time.Hour

// approvedRedirect is where a successful approval sends the browser.
const approvedRedirect = "/admin/approved"

// Result describes a successful approval.
type Result struct {
	SubjectKey   string
	SubjectEmail string
	RedirectPath string
}

// Workflow coordinates escalation requests and approvals.
type Workflow struct {
	store      store.Store
	sender     mailer.Sender
	baseURL    string
	notifyAddr string
	logger     *slog.Logger
	now        func() time.Time
	newToken   func() (string, error)
}

// NewWorkflow creates a workflow. Approval links are built against baseURL
// and notifications go to notifyAddr.
func NewWorkflow(st store.Store, sender mailer.Sender, baseURL, notifyAddr string) *Workflow {
	return &Workflow{
		store:      st,
		sender:     sender,
		baseURL:    baseURL,
		notifyAddr: notifyAddr,
		logger:     slog.Default().With("component", "escalation"),
		now:        time.Now,
		newToken:   generateToken,
	}
}

// Request records an escalation request for the identified caller and
// notifies the operator. A repeat request supersedes the prior token. The
// request is durable even when the notification fails to send.
func (w *Workflow) Request(ctx context.Context, ident *identity.Identity, sourceAddr string) error {
	if ident == nil || ident.Key == "" {
		return ErrUnauthenticated
	}

	principal, err := w.ensurePrincipal(ctx, ident)
	if err != nil {
		return err
	}

	// Nothing to escalate for an existing admin.
	if principal.IsAdmin() {
		w.logger.Info("escalation request from existing admin ignored", "identity_key", principal.IdentityKey)
		return nil
	}

	token, err := w.newToken()
	if err != nil {
		return fmt.Errorf("generating escalation token: %w", err)
	}

	expiresAt := w.now().Add(requestTTL)
	if err := w.store.UpsertEscalation(ctx, &store.EscalationRequest{
		SubjectKey: principal.IdentityKey,
		Email:      principal.Email,
		Token:      token,
		ExpiresAt:  expiresAt,
	}); err != nil {
		return fmt.Errorf("recording escalation request: %w", err)
	}

	if err := w.notify(ctx, principal, token, expiresAt); err != nil {
		w.logger.Error("sending escalation notification", "error", err, "subject", principal.IdentityKey)
	}

	if err := w.store.AppendActivity(ctx, &store.ActivityEntry{
		ActorKey:   principal.IdentityKey,
		ActorEmail: principal.Email,
		Action:     store.ActionRequestEscalation,
		SourceAddr: sourceAddr,
	}); err != nil {
		w.logger.Error("recording escalation request activity", "error", err)
	}

	return nil
}

// ensurePrincipal returns the stored principal for an identity, creating it
// on first contact.
func (w *Workflow) ensurePrincipal(ctx context.Context, ident *identity.Identity) (*store.Principal, error) {
	p, err := w.store.GetPrincipalByIdentityKey(ctx, ident.Key)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, store.ErrPrincipalNotFound) {
		return nil, fmt.Errorf("looking up principal: %w", err)
	}

	p = &store.Principal{
		IdentityKey: ident.Key,
		Username:    ident.Username,
		Email:       ident.Email,
		FirstName:   ident.FirstName,
		LastName:    ident.LastName,
		PhotoURL:    ident.PhotoURL,
		Role:        store.RoleUser,
		Verified:    ident.EmailVerified,
	}
	if err := w.store.UpsertPrincipal(ctx, p); err != nil {
		return nil, fmt.Errorf("creating principal: %w", err)
	}
	return p, nil
}

func (w *Workflow) notify(ctx context.Context, p *store.Principal, token string, expiresAt time.Time) error {
	approvalURL := fmt.Sprintf("%s/api/admin/verify?token=%s", w.baseURL, token)
	msg, err := mailer.EscalationApproval(w.notifyAddr, p.Username, p.Email, approvalURL, expiresAt)
	if err != nil {
		return err
	}
	return w.sender.Send(ctx, msg)
}

// Approve consumes an approval token and promotes its subject to admin.
// Expired tokens are deleted on sight, so a second visit reports not-found.
// A token that has already been consumed reports ErrAlreadyApproved.
func (w *Workflow) Approve(ctx context.Context, token, sourceAddr string) (*Result, error) {
	req, err := w.store.GetEscalationByToken(ctx, token)
	if errors.Is(err, store.ErrEscalationNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up escalation request: %w", err)
	}

	if !w.now().Before(req.ExpiresAt) {
		if err := w.store.DeleteEscalationByToken(ctx, token); err != nil {
			w.logger.Error("deleting expired escalation request", "error", err)
		}
		return nil, ErrExpired
	}

	if req.Approved {
		return nil, ErrAlreadyApproved
	}

	// Conditional update; losing a concurrent approval race surfaces as
	// already-approved.
	switch err := w.store.ApproveEscalation(ctx, token, w.now()); {
	case err == nil:
	case errors.Is(err, store.ErrEscalationApproved):
		return nil, ErrAlreadyApproved
	case errors.Is(err, store.ErrEscalationExpired):
		return nil, ErrExpired
	case errors.Is(err, store.ErrEscalationNotFound):
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("approving escalation request: %w", err)
	}

	// Drop any session the subject held before promotion took effect.
	if err := w.store.ClearPrincipalSession(ctx, req.SubjectKey); err != nil {
		w.logger.Error("clearing subject session", "error", err)
	}

	if err := w.store.SetPrincipalRole(ctx, req.SubjectKey, store.RoleAdmin); err != nil {
		if errors.Is(err, store.ErrPrincipalNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrInconsistent, req.SubjectKey)
		}
		return nil, fmt.Errorf("promoting subject: %w", err)
	}

	if err := w.store.AppendActivity(ctx, &store.ActivityEntry{
		ActorKey:   req.SubjectKey,
		ActorEmail: req.Email,
		Action:     store.ActionApproveEscalation,
		SourceAddr: sourceAddr,
	}); err != nil {
		w.logger.Error("recording approval activity", "error", err)
	}

	w.logger.Info("escalation approved", "subject", req.SubjectKey)
	return &Result{
		SubjectKey:   req.SubjectKey,
		SubjectEmail: req.Email,
		RedirectPath: approvedRedirect,
	}, nil
}

// generateToken creates a 64-character hex token from 32 random bytes.
func generateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
