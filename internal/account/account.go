// Package account registers users, opens and closes sessions and resolves
// the lifecycle actor behind an authenticated user id.
package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/auth"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/lifecycle"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/storage"
)

const minPasswordLength = 8

type Store interface {
	RegisterUser(ctx context.Context, user *storage.User, donor *storage.Donor, org *storage.Organization, audit storage.AuditEntry) error
	UserByEmail(ctx context.Context, email string) (*storage.User, error)
	UserByID(ctx context.Context, id int64) (*storage.User, error)
	DonorByUserID(ctx context.Context, userID int64) (*storage.Donor, error)
	OrganizationByUserID(ctx context.Context, userID int64) (*storage.Organization, error)
	AppendAudit(ctx context.Context, entry storage.AuditEntry) error
	RevokeSession(ctx context.Context, session storage.RevokedSession, audit storage.AuditEntry) error
	SessionRevoked(ctx context.Context, sessionID string) (bool, error)
}

type Tokens interface {
	Issue(user *storage.User, ttl time.Duration) (string, time.Time, error)
}

type Service struct {
	store       Store
	tokens      Tokens
	sessionTTL  time.Duration
	rememberTTL time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

type Option func(*Service)

func WithSessionTTL(session, remember time.Duration) Option {
	return func(s *Service) {
		s.sessionTTL = session
		s.rememberTTL = remember
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(store Store, tokens Tokens, opts ...Option) *Service {
	s := &Service{
		store:       store,
		tokens:      tokens,
		sessionTTL:  12 * time.Hour,
		rememberTTL: 7 * 24 * time.Hour,
		now:         time.Now,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterRequest keeps the field names of the registration form.
type RegisterRequest struct {
	Type         storage.Role `json:"type"`
	Email        string       `json:"email"`
	Password     string       `json:"password"`
	FirstName    string       `json:"firstName"`
	LastName     string       `json:"lastName"`
	Phone        string       `json:"phone"`
	BusinessName string       `json:"businessName"`
	DonationType string       `json:"donationType"`
	City         string       `json:"city"`
	Description  string       `json:"description"`
	OrgName      string       `json:"orgName"`
	OrgType      string       `json:"orgType"`
	OrgCity      string       `json:"orgCity"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

// Session is an issued token together with the user it belongs to.
type Session struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      *storage.User `json:"user"`
}

// Dashboard is the profile of the logged in user.
type Dashboard struct {
	User         *storage.User         `json:"user"`
	Donor        *storage.Donor        `json:"donor,omitempty"`
	Organization *storage.Organization `json:"organization,omitempty"`
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

func (r *RegisterRequest) normalize() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Phone = strings.TrimSpace(r.Phone)

	if r.Email == "" || r.Password == "" || r.FirstName == "" || r.LastName == "" || r.Type == "" {
		return apperr.Validation("missing_fields", "email, password, firstName, lastName and type are required")
	}
	if !r.Type.Valid() {
		return apperr.Validation("invalid_type", fmt.Sprintf("unknown account type %q", r.Type))
	}
	// ParseAddress also accepts display-name forms like "Bob <bob@x.co>";
	// only a bare address may be stored.
	if addr, err := mail.ParseAddress(r.Email); err != nil || addr.Address != r.Email {
		return apperr.Validation("invalid_email", "email address is malformed")
	}
	if len(r.Password) < minPasswordLength {
		return apperr.Validation("password_too_short", fmt.Sprintf("password must have at least %d characters", minPasswordLength))
	}

	switch r.Type {
	case storage.RoleDonor:
		if r.DonationType == "" {
			r.DonationType = string(storage.DonorOther)
		}
		if !storage.DonorKind(r.DonationType).Valid() {
			return apperr.Validation("invalid_donor_kind", fmt.Sprintf("unknown donor kind %q", r.DonationType))
		}
		if strings.TrimSpace(r.City) == "" {
			return apperr.Validation("missing_city", "city is required")
		}
	case storage.RoleOrganization:
		if strings.TrimSpace(r.OrgName) == "" {
			return apperr.Validation("missing_org_name", "orgName is required")
		}
		if r.OrgType == "" {
			r.OrgType = string(storage.OrganizationOther)
		}
		if !storage.OrganizationKind(r.OrgType).Valid() {
			return apperr.Validation("invalid_org_kind", fmt.Sprintf("unknown organization kind %q", r.OrgType))
		}
		if strings.TrimSpace(r.OrgCity) == "" {
			return apperr.Validation("missing_city", "orgCity is required")
		}
	}
	return nil
}

// Register creates a user with its donor or organization profile.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*storage.User, error) {
	const op = "register"
	if err := req.normalize(); err != nil {
		return nil, s.fail(op, err)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, s.fail(op, apperr.Internal("failed to hash password", err))
	}

	now := s.clock()
	user := &storage.User{
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Role:         req.Type,
		Active:       true,
		RegisteredAt: now,
	}

	var (
		donor *storage.Donor
		org   *storage.Organization
	)
	switch req.Type {
	case storage.RoleDonor:
		donor = &storage.Donor{
			BusinessName: strings.TrimSpace(req.BusinessName),
			Kind:         storage.DonorKind(req.DonationType),
			City:         strings.TrimSpace(req.City),
			Description:  strings.TrimSpace(req.Description),
			CreatedAt:    now,
		}
	case storage.RoleOrganization:
		org = &storage.Organization{
			Name:        strings.TrimSpace(req.OrgName),
			Kind:        storage.OrganizationKind(req.OrgType),
			City:        strings.TrimSpace(req.OrgCity),
			Description: strings.TrimSpace(req.Description),
			CreatedAt:   now,
		}
	}

	audit := storage.AuditEntry{
		Action:      storage.ActionCreateUser,
		Description: "New user registered - " + user.Email,
		Details:     map[string]any{"role": string(user.Role)},
		OccurredAt:  now,
	}
	err = s.store.RegisterUser(ctx, user, donor, org, audit)
	if errors.Is(err, repository.ErrConflict) {
		return nil, s.fail(op, apperr.Validation("email_taken", "email is already registered"))
	}
	if err != nil {
		return nil, s.fail(op, apperr.Internal("failed to register user", err))
	}

	s.logger.Info("user registered",
		zap.Int64("user_id", user.ID),
		zap.String("role", string(user.Role)),
	)
	return user, nil
}

// Login checks credentials and issues a session token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	const op = "login"
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, s.fail(op, apperr.Validation("missing_credentials", "email and password are required"))
	}

	invalid := apperr.Unauthenticated("invalid_credentials", "invalid email or password")
	user, err := s.store.UserByEmail(ctx, email)
	if errors.Is(err, repository.ErrObjectNotFound) {
		return nil, s.fail(op, invalid)
	}
	if err != nil {
		return nil, s.fail(op, apperr.Internal("failed to load user", err))
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, s.fail(op, invalid)
		}
		return nil, s.fail(op, apperr.Internal("failed to check password", err))
	}
	if !user.Active {
		return nil, s.fail(op, apperr.Permission("inactive_user", "user is inactive"))
	}

	ttl := s.sessionTTL
	if req.Remember {
		ttl = s.rememberTTL
	}
	token, expiresAt, err := s.tokens.Issue(user, ttl)
	if err != nil {
		return nil, s.fail(op, apperr.Internal("failed to issue token", err))
	}

	err = s.store.AppendAudit(ctx, storage.AuditEntry{
		ActorUserID: &user.ID,
		Action:      storage.ActionLogin,
		Description: "Logged in - " + user.Email,
		OccurredAt:  s.clock(),
	})
	if err != nil {
		return nil, s.fail(op, apperr.Internal("failed to record login", err))
	}

	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Logout revokes the session the request was authenticated with. The token
// is rejected by Authenticate from then on.
func (s *Service) Logout(ctx context.Context, actor lifecycle.Actor) error {
	const op = "logout"
	user, err := userOf(actor)
	if err != nil {
		return s.fail(op, err)
	}
	claims, ok := auth.SessionFromContext(ctx)
	if !ok || claims.SessionID() == "" {
		return s.fail(op, apperr.Unauthenticated("missing_session", "no session to close"))
	}
	now := s.clock()
	err = s.store.RevokeSession(ctx, storage.RevokedSession{
		ID:        claims.SessionID(),
		UserID:    user.ID,
		ExpiresAt: claims.ExpiresAtTime(),
		RevokedAt: now,
	}, storage.AuditEntry{
		ActorUserID: &user.ID,
		Action:      storage.ActionLogout,
		Description: "Logged out - " + user.Email,
		Details:     map[string]any{"session_id": claims.SessionID()},
		OccurredAt:  now,
	})
	if err != nil {
		return s.fail(op, apperr.Internal("failed to record logout", err))
	}
	return nil
}

func (s *Service) Dashboard(_ context.Context, actor lifecycle.Actor) (*Dashboard, error) {
	switch a := actor.(type) {
	case lifecycle.DonorActor:
		return &Dashboard{User: a.User, Donor: a.Donor}, nil
	case lifecycle.OrganizationActor:
		return &Dashboard{User: a.User, Organization: a.Organization}, nil
	default:
		return nil, s.fail("dashboard", apperr.Permission("wrong_role", "no dashboard for this actor"))
	}
}

// Authenticate turns verified token claims into an actor. Revoked sessions
// are rejected.
func (s *Service) Authenticate(ctx context.Context, claims *auth.Claims) (lifecycle.Actor, error) {
	userID, err := claims.UserID()
	if err != nil || claims.SessionID() == "" {
		return nil, apperr.Unauthenticated("invalid_token", "invalid session token")
	}
	revoked, err := s.store.SessionRevoked(ctx, claims.SessionID())
	if err != nil {
		return nil, s.fail("authenticate", apperr.Internal("failed to check session", err))
	}
	if revoked {
		return nil, apperr.Unauthenticated("session_revoked", "session ended, log in again")
	}
	return s.ActorFor(ctx, userID)
}

// ActorFor loads the user and its profile and wraps them in the matching
// actor. Unknown or inactive users are unauthenticated.
func (s *Service) ActorFor(ctx context.Context, userID int64) (lifecycle.Actor, error) {
	user, err := s.store.UserByID(ctx, userID)
	if errors.Is(err, repository.ErrObjectNotFound) {
		return nil, apperr.Unauthenticated("unknown_user", "session user no longer exists")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load user", err)
	}
	if !user.Active {
		return nil, apperr.Unauthenticated("inactive_user", "user is inactive")
	}

	switch user.Role {
	case storage.RoleDonor:
		donor, err := s.store.DonorByUserID(ctx, user.ID)
		if err != nil {
			return nil, apperr.Internal("failed to load donor profile", err)
		}
		return lifecycle.DonorActor{User: user, Donor: donor}, nil
	case storage.RoleOrganization:
		org, err := s.store.OrganizationByUserID(ctx, user.ID)
		if err != nil {
			return nil, apperr.Internal("failed to load organization profile", err)
		}
		return lifecycle.OrganizationActor{User: user, Organization: org}, nil
	default:
		return nil, apperr.Unauthenticated("invalid_role", fmt.Sprintf("unknown role %q", user.Role))
	}
}

func userOf(actor lifecycle.Actor) (*storage.User, error) {
	switch a := actor.(type) {
	case lifecycle.DonorActor:
		return a.User, nil
	case lifecycle.OrganizationActor:
		return a.User, nil
	default:
		return nil, apperr.Permission("wrong_role", "only users have sessions")
	}
}

func (s *Service) fail(op string, err error) error {
	kind := apperr.KindOf(err)
	metrics.OperationErrorsTotal.WithLabelValues(op, string(kind)).Inc()
	if kind == apperr.KindInternal {
		s.logger.Error("account operation failed", zap.String("op", op), zap.Error(err))
	}
	return err
}
