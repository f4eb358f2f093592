package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"custodia/internal/audit"
	"custodia/internal/identity/models"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/requestcontext"
	"custodia/pkg/secrets"
)

// AccountStore is the persistence surface for provisioned accounts.
type AccountStore interface {
	Create(ctx context.Context, account *models.Account) error
	FindByID(ctx context.Context, id domain.AccountID) (*models.Account, error)
	FindByUsername(ctx context.Context, username string) (*models.Account, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
}

// TokenIssuer mints a session token for an authenticated actor.
type TokenIssuer interface {
	IssueToken(actor domain.Actor) (string, time.Time, error)
}

// AuditPublisher records timeline events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the credential issuer and authenticator. Temporary secrets are
// generated here, hashed here, and returned in plaintext exactly once from
// Provision; no read path exists for them afterwards.
type Service struct {
	accounts       AccountStore
	tokens         TokenIssuer
	logger         *slog.Logger
	auditPublisher AuditPublisher
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func New(accounts AccountStore, tokens TokenIssuer, opts ...Option) *Service {
	s := &Service{accounts: accounts, tokens: tokens}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProvisionInput carries the identity attributes of a new account.
type ProvisionInput struct {
	Username    string
	FullName    string
	BadgeNumber string
	Role        domain.Role
	Department  string
}

// Provision creates an account with a freshly generated temporary secret and
// returns the plaintext alongside it. The caller's response is the only place
// the plaintext ever appears. Honors a transaction in context.
func (s *Service) Provision(ctx context.Context, in ProvisionInput) (*models.Account, string, error) {
	account, err := models.NewAccount(domain.AccountID(uuid.New()), in.Username, in.Role, in.Department, requestcontext.Now(ctx))
	if err != nil {
		return nil, "", err
	}
	account.FullName = strings.TrimSpace(in.FullName)
	account.BadgeNumber = strings.TrimSpace(in.BadgeNumber)
	account.MustChangeSecret = true

	plaintext, err := secrets.GenerateTemp()
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate temporary secret")
	}
	account.SecretHash, err = secrets.Hash(plaintext)
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash temporary secret")
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, "", dErrors.Newf(dErrors.CodeUsernameTaken, "username %s is already taken", account.Username)
		}
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to create account")
	}
	return account, plaintext, nil
}

// UsernameExists reports whether a username already maps to an account.
func (s *Service) UsernameExists(ctx context.Context, username string) (bool, error) {
	exists, err := s.accounts.UsernameExists(ctx, strings.ToLower(strings.TrimSpace(username)))
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check username")
	}
	return exists, nil
}

// LoginResult is the session handed back on successful authentication.
type LoginResult struct {
	Token            string       `json:"token"`
	ExpiresAt        time.Time    `json:"expires_at"`
	Actor            domain.Actor `json:"-"`
	MustChangeSecret bool         `json:"must_change_secret"`
}

// Authenticate verifies credentials and mints a session token. Unknown
// username and wrong secret are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, username, secret string) (*LoginResult, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	account, err := s.accounts.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.emitLogin(ctx, audit.EventLoginFailed, username)
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	if !account.Active {
		s.emitLogin(ctx, audit.EventLoginFailed, username)
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	if err := secrets.Verify(secret, account.SecretHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			s.emitLogin(ctx, audit.EventLoginFailed, username)
		}
		return nil, err
	}

	actor := account.Actor()
	token, expiresAt, err := s.tokens.IssueToken(actor)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}
	s.emitLogin(ctx, audit.EventLoginSucceeded, username)
	return &LoginResult{
		Token:            token,
		ExpiresAt:        expiresAt,
		Actor:            actor,
		MustChangeSecret: account.MustChangeSecret,
	}, nil
}

func (s *Service) emitLogin(ctx context.Context, action, username string) {
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:    action,
		Actor:     username,
		RequestID: requestcontext.RequestID(ctx),
	})
	if err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "timeline emit failed", "action", action, "error", err)
	}
}
