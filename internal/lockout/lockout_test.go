package lockout

import (
	"testing"
	"time"

	"github.com/payflow/approval-service/internal/domain"
)

var testNow = time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC)

func timePtr(t time.Time) *time.Time { return &t }

func TestTransition_WrongPasswordBelowThresholdIncrementsOnly(t *testing.T) {
	p := DefaultPolicy()

	for start := 0; start < p.MaxTempAttempts-1; start++ {
		next, out := p.Transition(domain.LockState{FailedAttempts: start}, ResultMismatch, testNow)

		if next.FailedAttempts != start+1 {
			t.Fatalf("start=%d: expected counter %d, got %d", start, start+1, next.FailedAttempts)
		}
		if next.TempLockUntil != nil || next.TempLockActivated || next.PermanentlyLocked {
			t.Fatalf("start=%d: expected no lock, got %+v", start, next)
		}
		if out.Kind != KindInvalidCredentials || !out.Changed {
			t.Fatalf("start=%d: unexpected outcome %+v", start, out)
		}
	}
}

func TestTransition_AttemptMessageCitesCounter(t *testing.T) {
	p := DefaultPolicy()

	_, out := p.Transition(domain.LockState{FailedAttempts: 1}, ResultMismatch, testNow)
	if out.Message != "Invalid credentials. Attempt 2 of 3." {
		t.Fatalf("unexpected message %q", out.Message)
	}
}

func TestTransition_ReachingMaxTempLocksTemporarily(t *testing.T) {
	p := DefaultPolicy()

	next, out := p.Transition(domain.LockState{FailedAttempts: p.MaxTempAttempts - 1}, ResultMismatch, testNow)

	if !next.TempLockActivated {
		t.Fatalf("expected temp lock to be activated")
	}
	if next.TempLockUntil == nil || !next.TempLockUntil.Equal(testNow.Add(p.LockDuration)) {
		t.Fatalf("expected lock until %s, got %v", testNow.Add(p.LockDuration), next.TempLockUntil)
	}
	if next.FailedAttempts != p.MaxTempAttempts {
		t.Fatalf("expected counter %d to be persisted, got %d", p.MaxTempAttempts, next.FailedAttempts)
	}
	if out.Kind != KindTemporarilyLocked || out.Event != EventTemporaryLock {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if out.Message != "Account temporarily locked for 15 seconds." || out.RetryAfter != 15 {
		t.Fatalf("unexpected message %q retry=%d", out.Message, out.RetryAfter)
	}
}

func TestTransition_FailureAfterTempLockLocksPermanently(t *testing.T) {
	p := DefaultPolicy()
	expired := testNow.Add(-time.Second)
	state := domain.LockState{FailedAttempts: 3, TempLockUntil: &expired, TempLockActivated: true}

	next, out := p.Transition(state, ResultMismatch, testNow)

	want := domain.LockState{PermanentlyLocked: true}
	if !equal(next, want) {
		t.Fatalf("expected %+v, got %+v", want, next)
	}
	if out.Kind != KindPermanentlyLocked || out.Event != EventPermanentLock || !out.Changed {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestTransition_FinalAttemptWarningWhenBudgetRemains(t *testing.T) {
	p := Policy{MaxTempAttempts: 3, MaxPermAttempts: 2, LockDuration: time.Minute}
	state := domain.LockState{FailedAttempts: 0, TempLockActivated: true}

	next, out := p.Transition(state, ResultMismatch, testNow)

	if next.FailedAttempts != 1 || next.PermanentlyLocked {
		t.Fatalf("unexpected state %+v", next)
	}
	if out.Kind != KindInvalidCredentials || out.Message != "Invalid credentials. Final attempt before permanent lock." {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestTransition_CorrectPasswordResetsFromAnyUnlockedState(t *testing.T) {
	p := DefaultPolicy()
	expired := testNow.Add(-time.Minute)

	cases := []struct {
		name  string
		state domain.LockState
	}{
		{name: "clean", state: domain.LockState{}},
		{name: "two failures", state: domain.LockState{FailedAttempts: 2}},
		{name: "expired temp lock", state: domain.LockState{FailedAttempts: 3, TempLockUntil: &expired, TempLockActivated: true}},
		{name: "activated without lock", state: domain.LockState{FailedAttempts: 3, TempLockActivated: true}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, out := p.Transition(tc.state, ResultMatch, testNow)
			if !equal(next, domain.LockState{}) {
				t.Fatalf("expected reset state, got %+v", next)
			}
			if !out.Succeeded() {
				t.Fatalf("expected success, got %+v", out)
			}
			if out.Changed != !equal(tc.state, domain.LockState{}) {
				t.Fatalf("unexpected Changed=%v for %+v", out.Changed, tc.state)
			}
		})
	}
}

func TestTransition_UnexpiredTempLockNeverMutates(t *testing.T) {
	p := DefaultPolicy()
	until := testNow.Add(4200 * time.Millisecond)
	state := domain.LockState{FailedAttempts: 3, TempLockUntil: &until, TempLockActivated: true}

	for _, r := range []Result{ResultMatch, ResultMismatch} {
		next, out := p.Transition(state, r, testNow)
		if !equal(next, state) {
			t.Fatalf("result=%d: state mutated to %+v", r, next)
		}
		if out.Changed {
			t.Fatalf("result=%d: expected no persistence", r)
		}
		if out.Kind != KindTemporarilyLocked || out.RetryAfter != 5 {
			t.Fatalf("result=%d: unexpected outcome %+v", r, out)
		}
		if out.Message != "Account temporarily locked. Try again in 5 seconds." {
			t.Fatalf("unexpected message %q", out.Message)
		}
	}
}

func TestTransition_PermanentLockShortCircuits(t *testing.T) {
	p := DefaultPolicy()
	state := domain.LockState{PermanentlyLocked: true}

	for _, r := range []Result{ResultMatch, ResultMismatch} {
		next, out := p.Transition(state, r, testNow)
		if !equal(next, state) || out.Changed {
			t.Fatalf("permanent lock must not mutate, got %+v", next)
		}
		if out.Kind != KindPermanentlyLocked || out.Message != MessagePermanentlyLocked {
			t.Fatalf("unexpected outcome %+v", out)
		}
	}
}

func TestTransition_ExpiredLockIsClearedBeforeCounting(t *testing.T) {
	p := Policy{MaxTempAttempts: 3, MaxPermAttempts: 5, LockDuration: 15 * time.Second}
	state := domain.LockState{FailedAttempts: 3, TempLockUntil: timePtr(testNow), TempLockActivated: true}

	next, out := p.Transition(state, ResultMismatch, testNow)

	if next.TempLockUntil != nil {
		t.Fatalf("expected expired lock to be cleared, got %v", next.TempLockUntil)
	}
	if next.FailedAttempts != 4 || !next.TempLockActivated {
		t.Fatalf("expected counter and activation to carry over, got %+v", next)
	}
	if out.Kind != KindInvalidCredentials {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestTransition_FullEscalationSequence(t *testing.T) {
	p := DefaultPolicy()
	state := domain.LockState{}
	now := testNow

	wantKinds := []Kind{KindInvalidCredentials, KindInvalidCredentials, KindTemporarilyLocked}
	for i, want := range wantKinds {
		var out Outcome
		state, out = p.Transition(state, ResultMismatch, now)
		if out.Kind != want {
			t.Fatalf("attempt %d: expected %s, got %s", i+1, want, out.Kind)
		}
	}

	_, out := p.Transition(state, ResultMatch, now.Add(5*time.Second))
	if out.Kind != KindTemporarilyLocked {
		t.Fatalf("expected lock to hold a correct password, got %s", out.Kind)
	}

	state, out = p.Transition(state, ResultMismatch, now.Add(16*time.Second))
	if out.Kind != KindPermanentlyLocked || !state.PermanentlyLocked {
		t.Fatalf("expected permanent lock after post-lock failure, got %+v", out)
	}
}

func TestPolicy_NormalizeFillsDefaults(t *testing.T) {
	p := Policy{}.Normalize()
	if p != DefaultPolicy() {
		t.Fatalf("expected defaults, got %+v", p)
	}
}

func TestPhaseOf(t *testing.T) {
	p := DefaultPolicy()
	if got := p.PhaseOf(domain.LockState{}, testNow); got != PhaseActive {
		t.Fatalf("expected active, got %s", got)
	}
	if got := p.PhaseOf(domain.LockState{TempLockUntil: timePtr(testNow.Add(time.Second))}, testNow); got != PhaseTempLocked {
		t.Fatalf("expected temp locked, got %s", got)
	}
	if got := p.PhaseOf(domain.LockState{TempLockUntil: timePtr(testNow)}, testNow); got != PhaseActive {
		t.Fatalf("lock ending exactly now should be expired, got %s", got)
	}
	if got := p.PhaseOf(domain.LockState{PermanentlyLocked: true}, testNow); got != PhasePermLocked {
		t.Fatalf("expected perm locked, got %s", got)
	}
}
