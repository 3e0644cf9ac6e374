package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sirpyerre/account-api/internal/api/metrics"
	"github.com/sirpyerre/account-api/internal/core/domain"
	"github.com/sirpyerre/account-api/internal/core/ports"
)

const TokenTypeBearer = "bearer"

// fallbackDigest is used for unknown usernames when the hasher could not
// produce a digest of its own at construction.
const fallbackDigest = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z2Zq8RBO0Ie1ZeYf2P3vBeeS"

// AuthService implements registration, login and token-based identity resolution.
type AuthService struct {
	repo     ports.UserRepository
	hasher   ports.PasswordHasher
	tokens   ports.TokenIssuer
	throttle ports.LoginThrottle
	audit    ports.AuditRecorder
	logger   zerolog.Logger
	now      func() time.Time

	// dummyDigest is compared against when the username is unknown so a
	// failed login costs one hash comparison either way.
	dummyDigest string
}

// Option configures optional collaborators of AuthService.
type Option func(*AuthService)

// WithThrottle enables per-username lockout after repeated failed logins.
func WithThrottle(t ports.LoginThrottle) Option {
	return func(s *AuthService) { s.throttle = t }
}

// WithAudit sends authentication events to rec.
func WithAudit(rec ports.AuditRecorder) Option {
	return func(s *AuthService) { s.audit = rec }
}

func NewAuthService(
	repo ports.UserRepository,
	hasher ports.PasswordHasher,
	tokens ports.TokenIssuer,
	logger zerolog.Logger,
	opts ...Option,
) *AuthService {
	s := &AuthService{
		repo:   repo,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.dummyDigest = fallbackDigest
	if d, err := hasher.Hash("timing-equaliser"); err == nil {
		s.dummyDigest = d
	}
	return s
}

// Register creates an account with the default role. The response never
// carries the password hash.
func (s *AuthService) Register(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		metrics.RegistrationsTotal.WithLabelValues("invalid").Inc()
		return nil, domain.ErrInvalidInput
	}

	user, err := s.create(ctx, username, password, domain.RoleUser)
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			metrics.RegistrationsTotal.WithLabelValues("duplicate").Inc()
			return nil, err
		}
		if errors.Is(err, domain.ErrInvalidInput) {
			metrics.RegistrationsTotal.WithLabelValues("invalid").Inc()
			return nil, err
		}
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.RegistrationsTotal.WithLabelValues("success").Inc()
	s.logger.Info().Str("username", user.Username).Msg("user registered")
	s.record(domain.AuditUserRegistered, user.Username, "")
	return user, nil
}

// EnsureAdmin creates an admin account unless username already exists.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return domain.ErrInvalidInput
	}

	existing, err := s.repo.FindByUsername(ctx, username)
	if err == nil {
		if existing.Role != domain.RoleAdmin {
			s.logger.Warn().Str("username", username).Str("role", existing.Role).Msg("admin account name is taken by a non-admin user")
		}
		return nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return fmt.Errorf("ensure admin: %w", err)
	}

	if _, err := s.create(ctx, username, password, domain.RoleAdmin); err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return nil
		}
		return fmt.Errorf("ensure admin: %w", err)
	}
	s.logger.Info().Str("username", username).Msg("admin account created")
	return nil
}

func (s *AuthService) create(ctx context.Context, username, password, role string) (*domain.User, error) {
	start := time.Now()
	hash, err := s.hasher.Hash(password)
	metrics.PasswordHashDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	return s.repo.Create(ctx, &domain.User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    s.now().UTC(),
	})
}

// Login verifies credentials and issues an access token. Unknown usernames and
// wrong passwords both yield domain.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (*ports.LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, domain.ErrInvalidCredentials
	}

	if s.throttle != nil {
		ok, err := s.throttle.Allowed(ctx, username)
		if err != nil {
			s.logger.Warn().Err(err).Str("username", username).Msg("login throttle check failed, allowing attempt")
		} else if !ok {
			metrics.LoginsTotal.WithLabelValues("throttled").Inc()
			s.logger.Warn().Str("username", username).Msg("login throttled")
			s.record(domain.AuditLoginThrottled, username, "")
			return nil, domain.ErrTooManyAttempts
		}
	}

	user, err := s.checkCredentials(ctx, username, password)
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidCredentials) {
			metrics.LoginsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
		s.logger.Warn().Str("username", username).Msg("login failed")
		s.record(domain.AuditLoginFailed, username, "")
		if s.throttle != nil {
			if terr := s.throttle.RecordFailure(ctx, username); terr != nil {
				s.logger.Warn().Err(terr).Str("username", username).Msg("failed to record login failure")
			}
		}
		return nil, domain.ErrInvalidCredentials
	}

	token, claims, err := s.tokens.Issue(user.Username)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("issue token: %w", err)
	}

	if s.throttle != nil {
		if terr := s.throttle.Reset(ctx, user.Username); terr != nil {
			s.logger.Warn().Err(terr).Str("username", username).Msg("failed to reset login throttle")
		}
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	s.logger.Info().Str("username", user.Username).Msg("user logged in")
	s.record(domain.AuditLoginSucceeded, user.Username, "")

	return &ports.LoginResult{
		AccessToken: token,
		TokenType:   TokenTypeBearer,
		ExpiresAt:   claims.ExpiresAt,
		User:        user,
	}, nil
}

func (s *AuthService) checkCredentials(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			_ = s.hasher.Compare(password, s.dummyDigest)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := s.hasher.Compare(password, user.PasswordHash); err != nil {
		if errors.Is(err, domain.ErrInvalidDigest) {
			s.logger.Error().Err(err).Str("username", username).Msg("stored password digest is malformed")
		}
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

// Authenticate resolves the account a bearer token speaks for. Token errors
// are returned as-is; a valid token for a vanished account yields
// domain.ErrUnauthenticated.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		metrics.AuthFailuresTotal.WithLabelValues("missing").Inc()
		return nil, domain.ErrUnauthenticated
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		reason := "invalid"
		if errors.Is(err, domain.ErrTokenExpired) {
			reason = "expired"
		}
		metrics.AuthFailuresTotal.WithLabelValues(reason).Inc()
		return nil, err
	}

	user, err := s.repo.FindByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			metrics.AuthFailuresTotal.WithLabelValues("unknown_user").Inc()
			return nil, domain.ErrUnauthenticated
		}
		return nil, fmt.Errorf("resolve identity: %w", err)
	}
	return user, nil
}

// ListUsers returns every account, for administrators.
func (s *AuthService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// RecordDenied notes that username was refused access to path.
func (s *AuthService) RecordDenied(username, path string) {
	metrics.AuthFailuresTotal.WithLabelValues("forbidden").Inc()
	s.record(domain.AuditAccessDenied, username, path)
}

func (s *AuthService) record(typ domain.AuditEventType, username, detail string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(domain.AuditEvent{
		Type:       typ,
		Username:   username,
		Detail:     detail,
		OccurredAt: s.now().UTC(),
	})
}
