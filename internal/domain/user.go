/**
 * @description
 * Core account models for the approval service. An account carries its role and
 * the login lockout fields that the login state machine reads and writes.
 *
 * @notes
 * - Version is bumped on every lock-state write and guards concurrent login attempts.
 * - The password hash is never serialized.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies what an account is allowed to do with payment requests.
type Role string

const (
	RoleRequester Role = "requester"
	RoleApprover  Role = "approver"
	RoleBankPayer Role = "bank_payer"
	RoleAdmin     Role = "admin"
)

// Roles lists every known role in display order.
var Roles = []Role{RoleRequester, RoleApprover, RoleBankPayer, RoleAdmin}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleRequester, RoleApprover, RoleBankPayer, RoleAdmin:
		return true
	}
	return false
}

// LockState is the persisted lockout portion of an account.
type LockState struct {
	FailedAttempts    int        `json:"failed_attempts"`
	TempLockUntil     *time.Time `json:"temp_lock_until,omitempty"`
	TempLockActivated bool       `json:"temp_lock_activated"`
	PermanentlyLocked bool       `json:"permanently_locked"`
}

// User maps to the `users` table.
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	LockState
	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Profile returns the public identity fields of the account.
func (u *User) Profile() UserProfile {
	return UserProfile{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}
}

// UserProfile is what a successful login returns alongside the token.
type UserProfile struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  Role      `json:"role"`
}

// CreateUserRequest is the DTO for provisioning an account.
type CreateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

// UpdateUserRequest is the DTO for editing an account. An empty password keeps the current one.
type UpdateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
	Role     Role   `json:"role"`
}

// LoginRequest is the DTO for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
