package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/payflow/approval-service/internal/domain"
	"github.com/payflow/approval-service/internal/lockout"
	"github.com/payflow/approval-service/internal/store"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type memoryCredentialStore struct {
	mu           sync.Mutex
	users        map[string]*domain.User
	updates      int
	findErr      error
	updateErr    error
	beforeUpdate func(u *domain.User)
}

func newMemoryCredentialStore(users ...*domain.User) *memoryCredentialStore {
	s := &memoryCredentialStore{users: map[string]*domain.User{}}
	for _, u := range users {
		s.users[u.Email] = u
	}
	return s
}

func (s *memoryCredentialStore) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	u, ok := s.users[email]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	clone := *u
	if u.TempLockUntil != nil {
		until := *u.TempLockUntil
		clone.TempLockUntil = &until
	}
	return &clone, nil
}

func (s *memoryCredentialStore) UpdateLockState(ctx context.Context, id uuid.UUID, expectedVersion int64, state domain.LockState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	for _, u := range s.users {
		if u.ID != id {
			continue
		}
		if hook := s.beforeUpdate; hook != nil {
			s.beforeUpdate = nil
			hook(u)
		}
		if u.Version != expectedVersion {
			return store.ErrVersionConflict
		}
		u.LockState = state
		u.Version++
		s.updates++
		return nil
	}
	return store.ErrVersionConflict
}

type recordingLockEvents struct {
	events []domain.AccountLockedEvent
}

func (r *recordingLockEvents) PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error {
	r.events = append(r.events, event)
	return nil
}

func newTestUser(t *testing.T, password string) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &domain.User{
		ID:           uuid.New(),
		Name:         "Ana Requester",
		Email:        "ana@example.com",
		PasswordHash: string(hash),
		Role:         domain.RoleRequester,
	}
}

func newTestAuthService(st CredentialStore, events LockEventPublisher, now time.Time) *AuthService {
	svc := NewAuthService(st, NewTokenIssuer("test-secret", 8*time.Hour), lockout.DefaultPolicy(), events, zap.NewNop())
	svc.now = func() time.Time { return now }
	svc.tokens.now = svc.now
	return svc
}

var loginNow = time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)

func TestLogin_UnknownEmailDoesNotMutate(t *testing.T) {
	st := newMemoryCredentialStore(newTestUser(t, "correct-horse"))
	svc := newTestAuthService(st, nil, loginNow)

	res := svc.Login(context.Background(), "nobody@example.com", "whatever")

	require.Equal(t, lockout.KindInvalidCredentials, res.Outcome.Kind)
	require.Equal(t, lockout.MessageInvalidCredentials, res.Outcome.Message)
	require.Empty(t, res.Token)
	require.Zero(t, st.updates)
}

func TestLogin_UnknownEmailStillComparesPassword(t *testing.T) {
	st := newMemoryCredentialStore(newTestUser(t, "correct-horse"))
	svc := newTestAuthService(st, nil, loginNow)
	var hashes [][]byte
	svc.compare = func(hash, password []byte) error {
		hashes = append(hashes, hash)
		return bcrypt.CompareHashAndPassword(hash, password)
	}

	res := svc.Login(context.Background(), "nobody@example.com", "whatever")

	require.Equal(t, lockout.KindInvalidCredentials, res.Outcome.Kind)
	require.Len(t, hashes, 1)
	cost, err := bcrypt.Cost(hashes[0])
	require.NoError(t, err)
	require.Equal(t, bcrypt.DefaultCost, cost)
}

func TestLogin_SuccessIssuesTokenAndResetsCounters(t *testing.T) {
	user := newTestUser(t, "correct-horse")
	user.FailedAttempts = 2
	st := newMemoryCredentialStore(user)
	svc := newTestAuthService(st, nil, loginNow)

	res := svc.Login(context.Background(), "  ANA@example.com ", "correct-horse")

	require.True(t, res.Outcome.Succeeded())
	require.NotEmpty(t, res.Token)
	require.Equal(t, loginNow.Add(8*time.Hour), res.ExpiresAt)
	require.NotNil(t, res.User)
	require.Equal(t, user.ID, res.User.ID)
	require.Equal(t, domain.LockState{}, st.users[user.Email].LockState)
	require.Equal(t, 1, st.updates)

	claims, err := svc.tokens.Parse(res.Token)
	require.NoError(t, err)
	require.Equal(t, user.ID.String(), claims.Subject)
	require.Equal(t, user.ID.String(), claims.UserID)
	require.Equal(t, user.Email, claims.Email)
	require.Equal(t, domain.RoleRequester, claims.Role)
}

func TestLogin_CleanSuccessSkipsWrite(t *testing.T) {
	st := newMemoryCredentialStore(newTestUser(t, "correct-horse"))
	svc := newTestAuthService(st, nil, loginNow)

	res := svc.Login(context.Background(), "ana@example.com", "correct-horse")

	require.True(t, res.Outcome.Succeeded())
	require.Zero(t, st.updates)
}

func TestLogin_EscalatesToTemporaryLock(t *testing.T) {
	user := newTestUser(t, "correct-horse")
	st := newMemoryCredentialStore(user)
	events := &recordingLockEvents{}
	svc := newTestAuthService(st, events, loginNow)

	first := svc.Login(context.Background(), user.Email, "nope")
	require.Equal(t, "Invalid credentials. Attempt 1 of 3.", first.Outcome.Message)
	second := svc.Login(context.Background(), user.Email, "nope")
	require.Equal(t, "Invalid credentials. Attempt 2 of 3.", second.Outcome.Message)
	third := svc.Login(context.Background(), user.Email, "nope")
	require.Equal(t, lockout.KindTemporarilyLocked, third.Outcome.Kind)

	stored := st.users[user.Email]
	require.Equal(t, 3, stored.FailedAttempts)
	require.True(t, stored.TempLockActivated)
	require.NotNil(t, stored.TempLockUntil)
	require.True(t, stored.TempLockUntil.Equal(loginNow.Add(15*time.Second)))
	require.Len(t, events.events, 1)
	require.False(t, events.events[0].Permanent)
}

func TestLogin_TemporaryLockIgnoresCorrectPassword(t *testing.T) {
	user := newTestUser(t, "correct-horse")
	until := loginNow.Add(10 * time.Second)
	user.LockState = domain.LockState{FailedAttempts: 3, TempLockUntil: &until, TempLockActivated: true}
	st := newMemoryCredentialStore(user)
	svc := newTestAuthService(st, nil, loginNow)

	res := svc.Login(context.Background(), user.Email, "correct-horse")

	require.Equal(t, lockout.KindTemporarilyLocked, res.Outcome.Kind)
	require.Equal(t, 10, res.Outcome.RetryAfter)
	require.Empty(t, res.Token)
	require.Zero(t, st.updates)
}

func TestLogin_FailureAfterExpiredLockIsPermanent(t *testing.T) {
	user := newTestUser(t, "correct-horse")
	until := loginNow.Add(-time.Second)
	user.LockState = domain.LockState{FailedAttempts: 3, TempLockUntil: &until, TempLockActivated: true}
	st := newMemoryCredentialStore(user)
	events := &recordingLockEvents{}
	svc := newTestAuthService(st, events, loginNow)

	res := svc.Login(context.Background(), user.Email, "nope")

	require.Equal(t, lockout.KindPermanentlyLocked, res.Outcome.Kind)
	require.Equal(t, domain.LockState{PermanentlyLocked: true}, st.users[user.Email].LockState)
	require.Len(t, events.events, 1)
	require.True(t, events.events[0].Permanent)

	again := svc.Login(context.Background(), user.Email, "correct-horse")
	require.Equal(t, lockout.KindPermanentlyLocked, again.Outcome.Kind)
	require.Equal(t, lockout.MessagePermanentlyLocked, again.Outcome.Message)
}

func TestLogin_VersionConflictReevaluatesFreshState(t *testing.T) {
	user := newTestUser(t, "correct-horse")
	user.FailedAttempts = 1
	st := newMemoryCredentialStore(user)
	// A concurrent failed attempt commits between our read and our write.
	st.beforeUpdate = func(u *domain.User) {
		u.FailedAttempts = 2
		u.Version++
	}
	svc := newTestAuthService(st, nil, loginNow)

	res := svc.Login(context.Background(), user.Email, "nope")

	require.Equal(t, lockout.KindTemporarilyLocked, res.Outcome.Kind)
	require.Equal(t, 3, st.users[user.Email].FailedAttempts)
	require.True(t, st.users[user.Email].TempLockActivated)
}

func TestLogin_StoreFailuresAreInternalErrors(t *testing.T) {
	t.Run("read", func(t *testing.T) {
		st := newMemoryCredentialStore(newTestUser(t, "correct-horse"))
		st.findErr = errors.New("connection refused")
		svc := newTestAuthService(st, nil, loginNow)

		res := svc.Login(context.Background(), "ana@example.com", "correct-horse")
		require.Equal(t, lockout.KindInternalError, res.Outcome.Kind)
		require.Empty(t, res.Token)
	})

	t.Run("write", func(t *testing.T) {
		user := newTestUser(t, "correct-horse")
		user.FailedAttempts = 1
		st := newMemoryCredentialStore(user)
		st.updateErr = errors.New("connection reset")
		svc := newTestAuthService(st, nil, loginNow)

		res := svc.Login(context.Background(), user.Email, "correct-horse")
		require.Equal(t, lockout.KindInternalError, res.Outcome.Kind)
		require.Empty(t, res.Token)
		require.Equal(t, 1, st.users[user.Email].FailedAttempts)
	})
}

func TestLogin_PersistentConflictsGiveUp(t *testing.T) {
	user := newTestUser(t, "correct-horse")
	st := &alwaysConflictStore{user: user}
	svc := newTestAuthService(st, nil, loginNow)

	res := svc.Login(context.Background(), user.Email, "nope")

	require.Equal(t, lockout.KindInternalError, res.Outcome.Kind)
	require.Equal(t, maxLockStateRetries, st.calls)
}

type alwaysConflictStore struct {
	user  *domain.User
	calls int
}

func (s *alwaysConflictStore) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	clone := *s.user
	return &clone, nil
}

func (s *alwaysConflictStore) UpdateLockState(ctx context.Context, id uuid.UUID, expectedVersion int64, state domain.LockState) error {
	s.calls++
	return store.ErrVersionConflict
}
