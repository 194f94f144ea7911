package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/account/entity"
	accountrepo "github.com/ovaphlow/pitchfork/service-auth-go/internal/account/repo"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/reset"
	resetentity "github.com/ovaphlow/pitchfork/service-auth-go/internal/reset/entity"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

// AccountStore is the credential store used by the service.
type AccountStore interface {
	FindByIdentifier(ctx context.Context, identifier string) (*entity.Account, error)
	Create(ctx context.Context, a *entity.Account) error
	UpdatePasswordHash(ctx context.Context, identifier, hash, algo string, at time.Time) error
	UpgradePasswordHash(ctx context.Context, identifier, oldHash, newHash, algo string, at time.Time) error
	TouchLastLogin(ctx context.Context, identifier string, at time.Time) error
}

// TokenStore is the subset of *reset.Store needed to redeem tokens.
type TokenStore interface {
	FindByToken(ctx context.Context, token string) (*resetentity.ResetToken, error)
	Consume(ctx context.Context, token string) (*resetentity.ResetToken, error)
	Restore(ctx context.Context, t *resetentity.ResetToken) error
}

// ResetSender issues a reset token and delivers it; see *reset.Issuer.
type ResetSender interface {
	Send(ctx context.Context, identifier, to string) (*resetentity.ResetToken, error)
}

// Service implements signup, login and the password reset flow.
type Service struct {
	accounts  AccountStore
	tokens    TokenStore
	sender    ResetSender
	hasher    PasswordHasher
	clock     clockwork.Clock
	logger    *zap.SugaredLogger
	ids       *utilities.IDGenerator
	dummyHash string
}

type Option func(*Service)

func WithClock(c clockwork.Clock) Option { return func(s *Service) { s.clock = c } }

func WithLogger(l *zap.SugaredLogger) Option { return func(s *Service) { s.logger = l } }

func WithIDGenerator(g *utilities.IDGenerator) Option { return func(s *Service) { s.ids = g } }

func NewService(accounts AccountStore, tokens TokenStore, sender ResetSender, hasher PasswordHasher, opts ...Option) (*Service, error) {
	if accounts == nil || tokens == nil || sender == nil || hasher == nil {
		return nil, errors.New("auth service requires accounts, tokens, sender and hasher")
	}
	s := &Service{accounts: accounts, tokens: tokens, sender: sender, hasher: hasher}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.logger == nil {
		s.logger = zap.NewNop().Sugar()
	}
	if s.ids == nil {
		g, err := utilities.NewIDGenerator(1)
		if err != nil {
			return nil, err
		}
		s.ids = g
	}
	// verified against when the identifier is unknown so both failure paths
	// pay for one hash comparison
	dummy, _, err := hasher.Hash(utilities.NewKSUID())
	if err != nil {
		return nil, err
	}
	s.dummyHash = dummy
	return s, nil
}

type SignupInput struct {
	Identifier  string
	Password    string
	Email       string
	DisplayName string
}

// Signup creates an account. It does not start a session.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*entity.Account, error) {
	const op = "signup"
	identifier := strings.TrimSpace(in.Identifier)
	if identifier == "" || in.Password == "" {
		return nil, validationError(op, "identifier and password are required")
	}

	if _, err := s.accounts.FindByIdentifier(ctx, identifier); err == nil {
		return nil, kindError(op, ErrAlreadyExists)
	} else if !errors.Is(err, accountrepo.ErrNotFound) {
		return nil, dependencyError(op, err)
	}

	hash, algo, err := s.hashPassword(op, in.Password)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	a := &entity.Account{
		ID:                s.ids.Next(),
		Identifier:        identifier,
		Email:             optional(in.Email),
		DisplayName:       optional(in.DisplayName),
		PasswordHash:      hash,
		PasswordAlgo:      algo,
		PasswordUpdatedAt: &now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		if errors.Is(err, accountrepo.ErrAlreadyExists) {
			return nil, kindError(op, ErrAlreadyExists)
		}
		return nil, dependencyError(op, err)
	}
	s.logger.Infow("account created", "id", a.ID, "identifier", utilities.MaskEmail(identifier))
	return a, nil
}

// Login verifies a password. Unknown identifiers and wrong passwords are
// indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, identifier, password string) (*entity.Account, error) {
	const op = "login"
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, validationError(op, "identifier and password are required")
	}

	a, err := s.accounts.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, accountrepo.ErrNotFound) {
			s.hasher.Verify(s.dummyHash, password)
			s.logger.Debugw("login failed", "identifier", utilities.MaskEmail(identifier))
			return nil, kindError(op, ErrInvalidCredentials)
		}
		return nil, dependencyError(op, err)
	}
	if !s.hasher.Verify(a.PasswordHash, password) {
		s.logger.Debugw("login failed", "identifier", utilities.MaskEmail(identifier))
		return nil, kindError(op, ErrInvalidCredentials)
	}

	now := s.clock.Now().UTC()
	if err := s.accounts.TouchLastLogin(ctx, identifier, now); err != nil {
		return nil, dependencyError(op, err)
	}
	a.LastLoginAt = &now

	if s.hasher.NeedsRehash(a.PasswordHash) {
		if hash, algo, err := s.hasher.Hash(password); err == nil {
			err := s.accounts.UpgradePasswordHash(ctx, identifier, a.PasswordHash, hash, algo, now)
			switch {
			case errors.Is(err, accountrepo.ErrNotFound):
				s.logger.Debugw("password rehash skipped, hash changed concurrently", "id", a.ID)
			case err != nil:
				s.logger.Warnw("password rehash failed", "id", a.ID, "err", err)
			default:
				a.PasswordHash, a.PasswordAlgo, a.PasswordUpdatedAt = hash, algo, &now
			}
		}
	}
	return a, nil
}

// ForgotPassword sends a reset link when identifier names an account and
// silently succeeds otherwise.
func (s *Service) ForgotPassword(ctx context.Context, identifier string) error {
	const op = "forgot password"
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return validationError(op, "identifier is required")
	}

	a, err := s.accounts.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, accountrepo.ErrNotFound) {
			s.logger.Debugw("reset requested for unknown account", "identifier", utilities.MaskEmail(identifier))
			return nil
		}
		return dependencyError(op, err)
	}
	if _, err := s.sender.Send(ctx, a.Identifier, a.ContactAddress()); err != nil {
		return dependencyError(op, err)
	}
	return nil
}

// ResetPassword redeems token once and replaces the account's password.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	const op = "reset password"
	if newPassword == "" {
		return validationError(op, "newPassword is required")
	}
	token = strings.TrimSpace(token)

	if _, err := s.tokens.FindByToken(ctx, token); err != nil {
		if errors.Is(err, reset.ErrNotFound) {
			return kindError(op, ErrInvalidOrExpiredToken)
		}
		return dependencyError(op, err)
	}

	hash, algo, err := s.hashPassword(op, newPassword)
	if err != nil {
		return err
	}

	rec, err := s.tokens.Consume(ctx, token)
	if err != nil {
		if errors.Is(err, reset.ErrNotFound) {
			return kindError(op, ErrInvalidOrExpiredToken)
		}
		return dependencyError(op, err)
	}

	now := s.clock.Now().UTC()
	if err := s.accounts.UpdatePasswordHash(ctx, rec.Identifier, hash, algo, now); err != nil {
		if errors.Is(err, accountrepo.ErrNotFound) {
			s.logger.Warnw("reset token for missing account", "id", rec.ID)
			return kindError(op, ErrInvalidOrExpiredToken)
		}
		if rerr := s.tokens.Restore(context.WithoutCancel(ctx), rec); rerr != nil {
			s.logger.Errorw("restore reset token failed", "id", rec.ID, "err", rerr)
		}
		return dependencyError(op, err)
	}
	s.logger.Infow("password reset", "id", rec.ID, "identifier", utilities.MaskEmail(rec.Identifier))
	return nil
}

func (s *Service) hashPassword(op, pw string) (string, string, error) {
	hash, algo, err := s.hasher.Hash(pw)
	if err != nil {
		if errors.Is(err, ErrEmptyPassword) || errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", "", validationError(op, err.Error())
		}
		return "", "", dependencyError(op, err)
	}
	return hash, algo, nil
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
