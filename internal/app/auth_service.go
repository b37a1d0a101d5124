/**
 * @description
 * AuthService runs one login attempt end to end: load the account, ask the lockout
 * state machine for the outcome, persist the resulting lock state with a version
 * check, and issue a session token on success.
 *
 * @notes
 * - Unknown emails never touch any account. They still pay for one bcrypt comparison
 *   so response time does not reveal which emails exist.
 * - A version conflict means another attempt for the same account committed first;
 *   the attempt is re-evaluated against the fresh row.
 */
package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/payflow/approval-service/internal/domain"
	"github.com/payflow/approval-service/internal/lockout"
	"github.com/payflow/approval-service/internal/metrics"
	"github.com/payflow/approval-service/internal/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const maxLockStateRetries = 5

// unknownAccountHash is compared against when no account matches the email.
var unknownAccountHash = sync.OnceValue(func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte("unknown-account-placeholder"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return hash
})

// CredentialStore is the account storage the login flow needs.
type CredentialStore interface {
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateLockState(ctx context.Context, id uuid.UUID, expectedVersion int64, state domain.LockState) error
}

// LockEventPublisher is notified when an account enters a lockout phase.
type LockEventPublisher interface {
	PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error
}

// LoginResult is either a success carrying Token and User, or a rejection described by Outcome.
type LoginResult struct {
	Outcome   lockout.Outcome
	Token     string
	ExpiresAt time.Time
	User      *domain.UserProfile
}

// AuthService implements the login flow.
type AuthService struct {
	store  CredentialStore
	tokens *TokenIssuer
	policy lockout.Policy
	events LockEventPublisher
	logger *zap.Logger
	now    func() time.Time

	compare func(hash, password []byte) error
}

// NewAuthService creates an AuthService. events may be nil.
func NewAuthService(store CredentialStore, tokens *TokenIssuer, policy lockout.Policy, events LockEventPublisher, logger *zap.Logger) *AuthService {
	return &AuthService{
		store:  store,
		tokens: tokens,
		policy: policy.Normalize(),
		events: events,
		logger: logger.Named("auth"),
		now:    time.Now,

		compare: bcrypt.CompareHashAndPassword,
	}
}

// Login evaluates one attempt. Expected rejections are returned in the Outcome, never as errors.
func (s *AuthService) Login(ctx context.Context, email, password string) LoginResult {
	email = normalizeEmail(email)

	for attempt := 0; attempt < maxLockStateRetries; attempt++ {
		user, err := s.store.FindUserByEmail(ctx, email)
		if errors.Is(err, store.ErrUserNotFound) {
			_ = s.compare(unknownAccountHash(), []byte(password))
			return s.finish(LoginResult{Outcome: lockout.Unknown()})
		}
		if err != nil {
			s.logger.Error("failed to load account", zap.Error(err))
			return s.finish(LoginResult{Outcome: lockout.Internal()})
		}

		now := s.now()
		if out, blocked := s.policy.Gate(user.LockState, now); blocked {
			return s.finish(LoginResult{Outcome: out})
		}

		result := lockout.ResultMismatch
		if s.compare([]byte(user.PasswordHash), []byte(password)) == nil {
			result = lockout.ResultMatch
		}

		next, out := s.policy.Transition(user.LockState, result, now)
		if out.Changed {
			err := s.store.UpdateLockState(ctx, user.ID, user.Version, next)
			if errors.Is(err, store.ErrVersionConflict) {
				metrics.LockStateConflicts.Inc()
				s.logger.Debug("lock state changed concurrently; re-evaluating", zap.String("user_id", user.ID.String()), zap.Int("attempt", attempt+1))
				continue
			}
			if err != nil {
				s.logger.Error("failed to persist lock state", zap.String("user_id", user.ID.String()), zap.Error(err))
				return s.finish(LoginResult{Outcome: lockout.Internal()})
			}
		}

		if out.Event != lockout.EventNone {
			s.announceLock(ctx, user, next, out.Event)
		}

		if !out.Succeeded() {
			return s.finish(LoginResult{Outcome: out})
		}

		token, expiresAt, err := s.tokens.Issue(user)
		if err != nil {
			s.logger.Error("failed to issue token", zap.String("user_id", user.ID.String()), zap.Error(err))
			return s.finish(LoginResult{Outcome: lockout.Internal()})
		}
		profile := user.Profile()
		return s.finish(LoginResult{Outcome: out, Token: token, ExpiresAt: expiresAt, User: &profile})
	}

	s.logger.Error("gave up persisting lock state after repeated conflicts", zap.Int("retries", maxLockStateRetries))
	return s.finish(LoginResult{Outcome: lockout.Internal()})
}

func (s *AuthService) finish(result LoginResult) LoginResult {
	metrics.LoginAttempts.WithLabelValues(string(result.Outcome.Kind)).Inc()
	return result
}

func (s *AuthService) announceLock(ctx context.Context, user *domain.User, next domain.LockState, event lockout.Event) {
	permanent := event == lockout.EventPermanentLock
	kind := "temporary"
	if permanent {
		kind = "permanent"
	}
	metrics.AccountLocks.WithLabelValues(kind).Inc()
	s.logger.Warn("account locked", zap.String("user_id", user.ID.String()), zap.String("kind", kind))

	if s.events == nil {
		return
	}
	err := s.events.PublishAccountLocked(ctx, domain.AccountLockedEvent{
		UserID:    user.ID,
		Email:     user.Email,
		Permanent: permanent,
		LockUntil: next.TempLockUntil,
		Timestamp: s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn("failed to publish account locked event", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
