package auth

import (
	"errors"
	"fmt"
)

var (
	ErrNoSession = errors.New("authentication required")
	ErrForbidden = errors.New("role is not allowed to perform this action")
)

// Role is a staff role as issued in the token.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleAccountant Role = "accountant"
	RoleTeacher    Role = "teacher"
	RoleParent     Role = "parent"
)

// Session is the authenticated caller. It is passed explicitly to
// anything that needs it rather than read from ambient state.
type Session struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}

// Validate checks that the session names a user and a known role.
func (s Session) Validate() error {
	if s.UserID == "" {
		return ErrNoSession
	}
	switch s.Role {
	case RoleAdmin, RoleAccountant, RoleTeacher, RoleParent:
		return nil
	}
	return fmt.Errorf("unknown role %q", s.Role)
}

// CanCollectFees reports whether the session may record or edit payments
// and update fee statuses.
func (s Session) CanCollectFees() bool {
	return s.Role == RoleAdmin || s.Role == RoleAccountant
}

// CanManageFees reports whether the session may change fee structures,
// assignments and late-fee rules.
func (s Session) CanManageFees() bool {
	return s.Role == RoleAdmin
}

// RequireCollector returns ErrForbidden unless the session can collect fees.
func (s Session) RequireCollector() error {
	if err := s.Validate(); err != nil {
		return err
	}
	if !s.CanCollectFees() {
		return fmt.Errorf("%w: %s", ErrForbidden, s.Role)
	}
	return nil
}

// RequireManager returns ErrForbidden unless the session can manage fees.
func (s Session) RequireManager() error {
	if err := s.Validate(); err != nil {
		return err
	}
	if !s.CanManageFees() {
		return fmt.Errorf("%w: %s", ErrForbidden, s.Role)
	}
	return nil
}
