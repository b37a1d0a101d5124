/**
 * @description
 * Package lockout decides the outcome of a single login attempt and the lock state
 * that must be persisted for it. It is a pure state machine: no store, no clock,
 * no hashing. Callers feed in the current state, whether the password matched,
 * and the current time.
 *
 * @notes
 * - Phases: Active, TempLocked (unexpired temp_lock_until), PermLocked.
 * - An expired temporary lock behaves like Active and is cleared in the returned state.
 */

package lockout

import (
	"fmt"
	"math"
	"time"

	"github.com/payflow/approval-service/internal/domain"
)

const (
	DefaultMaxTempAttempts = 3
	DefaultMaxPermAttempts = 1
	DefaultLockDuration    = 15 * time.Second
)

// Phase is the login-relevant state of an account at a point in time.
type Phase int

const (
	PhaseActive Phase = iota
	PhaseTempLocked
	PhasePermLocked
)

func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "active"
	case PhaseTempLocked:
		return "temp_locked"
	case PhasePermLocked:
		return "perm_locked"
	}
	return "unknown"
}

// Result is the outcome of comparing the submitted password with the stored hash.
type Result int

const (
	ResultMismatch Result = iota
	ResultMatch
)

// Kind classifies an attempt outcome. Everything except KindSuccess is a rejected login.
type Kind string

const (
	KindSuccess            Kind = "success"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindTemporarilyLocked  Kind = "temporarily_locked"
	KindPermanentlyLocked  Kind = "permanently_locked"
	KindInternalError      Kind = "internal_error"
)

// Event marks a transition into a locked phase.
type Event int

const (
	EventNone Event = iota
	EventTemporaryLock
	EventPermanentLock
)

const (
	MessageInvalidCredentials = "Invalid credentials."
	MessagePermanentlyLocked  = "Account permanently locked. Contact the administrator."
	MessageInternalError      = "Internal server error."

	messageEscalatedToPermanent = "Account permanently locked after repeated failed attempts. Contact the administrator."
	messageFinalAttempt         = "Invalid credentials. Final attempt before permanent lock."
)

// Outcome describes the reply for one attempt and whether the lock state changed.
type Outcome struct {
	Kind    Kind
	Message string
	// RetryAfter is the whole number of seconds until a temporary lock expires.
	RetryAfter int
	Event      Event
	// Changed reports that the returned state differs from the input and must be persisted.
	Changed bool
}

// Succeeded reports whether the attempt authenticated the account.
func (o Outcome) Succeeded() bool {
	return o.Kind == KindSuccess
}

// Unknown is the outcome for an email that matches no account.
func Unknown() Outcome {
	return Outcome{Kind: KindInvalidCredentials, Message: MessageInvalidCredentials}
}

// Internal is the outcome when the store could not be read or written.
func Internal() Outcome {
	return Outcome{Kind: KindInternalError, Message: MessageInternalError}
}

// Policy holds the lockout thresholds.
type Policy struct {
	// MaxTempAttempts failed attempts trigger the first temporary lock.
	MaxTempAttempts int
	// MaxPermAttempts is compared against the failure counter once a temporary lock has been activated.
	MaxPermAttempts int
	LockDuration    time.Duration
}

// DefaultPolicy returns the 3 / 1 / 15s policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxTempAttempts: DefaultMaxTempAttempts,
		MaxPermAttempts: DefaultMaxPermAttempts,
		LockDuration:    DefaultLockDuration,
	}
}

// Normalize replaces non-positive thresholds with the defaults.
func (p Policy) Normalize() Policy {
	if p.MaxTempAttempts <= 0 {
		p.MaxTempAttempts = DefaultMaxTempAttempts
	}
	if p.MaxPermAttempts <= 0 {
		p.MaxPermAttempts = DefaultMaxPermAttempts
	}
	if p.LockDuration <= 0 {
		p.LockDuration = DefaultLockDuration
	}
	return p
}

// PhaseOf classifies s at now.
func (p Policy) PhaseOf(s domain.LockState, now time.Time) Phase {
	if s.PermanentlyLocked {
		return PhasePermLocked
	}
	if s.TempLockUntil != nil && s.TempLockUntil.After(now) {
		return PhaseTempLocked
	}
	return PhaseActive
}

// Gate returns the rejection for a locked account without looking at the password.
// The boolean is false when the account is in the Active phase and the password must be checked.
func (p Policy) Gate(s domain.LockState, now time.Time) (Outcome, bool) {
	switch p.PhaseOf(s, now) {
	case PhasePermLocked:
		return Outcome{Kind: KindPermanentlyLocked, Message: MessagePermanentlyLocked}, true
	case PhaseTempLocked:
		secs := ceilSeconds(s.TempLockUntil.Sub(now))
		return Outcome{
			Kind:       KindTemporarilyLocked,
			Message:    fmt.Sprintf("Account temporarily locked. Try again in %d seconds.", secs),
			RetryAfter: secs,
		}, true
	}
	return Outcome{}, false
}

// Transition applies one attempt to s and returns the state to persist with the reply.
func (p Policy) Transition(s domain.LockState, r Result, now time.Time) (domain.LockState, Outcome) {
	if out, blocked := p.Gate(s, now); blocked {
		return s, out
	}

	next := s
	next.TempLockUntil = nil

	if r == ResultMatch {
		next = domain.LockState{}
		return next, Outcome{Kind: KindSuccess, Changed: !equal(s, next)}
	}

	next.FailedAttempts++

	if next.TempLockActivated {
		if next.FailedAttempts > p.MaxPermAttempts {
			next = domain.LockState{PermanentlyLocked: true}
			return next, Outcome{
				Kind:    KindPermanentlyLocked,
				Message: messageEscalatedToPermanent,
				Event:   EventPermanentLock,
				Changed: true,
			}
		}
		return next, Outcome{Kind: KindInvalidCredentials, Message: messageFinalAttempt, Changed: true}
	}

	if next.FailedAttempts >= p.MaxTempAttempts {
		until := now.Add(p.LockDuration)
		next.TempLockUntil = &until
		next.TempLockActivated = true
		secs := ceilSeconds(p.LockDuration)
		return next, Outcome{
			Kind:       KindTemporarilyLocked,
			Message:    fmt.Sprintf("Account temporarily locked for %d seconds.", secs),
			RetryAfter: secs,
			Event:      EventTemporaryLock,
			Changed:    true,
		}
	}

	return next, Outcome{
		Kind:    KindInvalidCredentials,
		Message: fmt.Sprintf("Invalid credentials. Attempt %d of %d.", next.FailedAttempts, p.MaxTempAttempts),
		Changed: true,
	}
}

func ceilSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

func equal(a, b domain.LockState) bool {
	if a.FailedAttempts != b.FailedAttempts || a.TempLockActivated != b.TempLockActivated || a.PermanentlyLocked != b.PermanentlyLocked {
		return false
	}
	if a.TempLockUntil == nil || b.TempLockUntil == nil {
		return a.TempLockUntil == nil && b.TempLockUntil == nil
	}
	return a.TempLockUntil.Equal(*b.TempLockUntil)
}
