// ABOUTME: Store interface and data types for hub persistence
// ABOUTME: Defines Principal, EscalationRequest, ActivityEntry, Project and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrPrincipalNotFound is returned when a principal doesn't exist.
var ErrPrincipalNotFound = errors.New("principal not found")

// ErrEscalationNotFound is returned when an escalation request doesn't exist.
var ErrEscalationNotFound = errors.New("escalation request not found")

// ErrEscalationApproved is returned when trying to approve an already-approved request.
var ErrEscalationApproved = errors.New("escalation request already approved")

// ErrEscalationExpired is returned when an escalation request has expired.
var ErrEscalationExpired = errors.New("escalation request expired")

// ErrVerificationNotFound is returned when no verification code exists for an email.
var ErrVerificationNotFound = errors.New("verification code not found")

// ErrDuplicate is returned when a unique field (username, email) collides.
var ErrDuplicate = errors.New("duplicate value for unique field")

// Role values for principals.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Principal represents a person known to the system. The identity key is
// issued by the external identity provider and is stable across profile
// updates. Admin session fields are set only while an admin session is live;
// token and expiry are always written together.
type Principal struct {
	ID          string
	IdentityKey string
	Username    string
	Email       string
	FirstName   string
	LastName    string
	PhotoURL    string
	Role        string // "user" or "admin"
	Verified    bool

	SessionToken  *string
	SessionExpiry *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAdmin returns true if the principal's stored role is admin.
func (p *Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// EscalationRequest represents a pending request to promote a principal to
// admin. At most one row exists per subject; re-requesting overwrites the
// previous token.
type EscalationRequest struct {
	SubjectKey string
	Email      string
	Token      string
	Approved   bool
	ExpiresAt  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// VerificationCode is a short-lived email ownership challenge. At most one
// code exists per email; re-sending overwrites the previous code.
type VerificationCode struct {
	Email     string
	Code      string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ActivityEntry represents a single append-only activity log entry.
type ActivityEntry struct {
	ID         string
	ActorKey   string
	ActorEmail string
	Action     string
	Detail     string
	SourceAddr string
	CreatedAt  time.Time
}

// Activity action labels.
const (
	ActionLogin             = "login"
	ActionLogout            = "logout"
	ActionViewUsers         = "view_users"
	ActionViewUser          = "view_user"
	ActionViewActivities    = "view_activities"
	ActionDeleteUser        = "delete_user"
	ActionRequestEscalation = "request_escalation"
	ActionApproveEscalation = "approve_escalation"
)

// ActivityFilter specifies filtering options for listing activity entries.
type ActivityFilter struct {
	ActorKey *string
	Action   *string
	Since    *time.Time
	Limit    int // max results (default 100, max 1000)
}

// Project status values.
const (
	ProjectStatusPlanning   = "planning"
	ProjectStatusInProgress = "in_progress"
	ProjectStatusCompleted  = "completed"
)

// Project represents a construction project owned by a principal.
type Project struct {
	ID           string
	OwnerKey     string
	Title        string
	Description  string
	Location     string
	Status       string
	FloorPlanURL string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Store defines the interface for hub persistence.
type Store interface {
	// Principals
	UpsertPrincipal(ctx context.Context, p *Principal) error
	GetPrincipal(ctx context.Context, id string) (*Principal, error)
	GetPrincipalByIdentityKey(ctx context.Context, key string) (*Principal, error)
	GetPrincipalByEmail(ctx context.Context, email string) (*Principal, error)
	GetPrincipalBySession(ctx context.Context, token string, now time.Time) (*Principal, error)
	GetPrincipalByToken(ctx context.Context, token string) (*Principal, error)
	SetPrincipalSession(ctx context.Context, identityKey, token string, expiry time.Time) error
	ClearPrincipalSession(ctx context.Context, identityKey string) error
	ClearAllSessions(ctx context.Context) (int64, error)
	SetPrincipalRole(ctx context.Context, identityKey, role string) error
	MarkPrincipalVerified(ctx context.Context, email string) error
	ListPrincipals(ctx context.Context, limit int) ([]*Principal, error)
	DeletePrincipal(ctx context.Context, id string) error
	DeletePrincipalByIdentityKey(ctx context.Context, key string) error

	// Escalation requests
	UpsertEscalation(ctx context.Context, e *EscalationRequest) error
	GetEscalationByToken(ctx context.Context, token string) (*EscalationRequest, error)
	ApproveEscalation(ctx context.Context, token string, now time.Time) error
	DeleteEscalationByToken(ctx context.Context, token string) error

	// Verification codes
	UpsertVerificationCode(ctx context.Context, v *VerificationCode) error
	GetVerificationCode(ctx context.Context, email string) (*VerificationCode, error)
	DeleteVerificationCode(ctx context.Context, email string) error

	// Activity log
	AppendActivity(ctx context.Context, e *ActivityEntry) error
	ListActivity(ctx context.Context, f ActivityFilter) ([]ActivityEntry, error)

	// Projects
	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context, ownerKey string, limit int) ([]*Project, error)
	UpdateProject(ctx context.Context, p *Project) error
	DeleteProject(ctx context.Context, id string) error

	// Ping verifies the underlying database is reachable
	Ping(ctx context.Context) error

	// Close releases any resources held by the store
	Close() error
}
