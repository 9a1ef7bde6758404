package shared

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying every failure the core can surface.
// Callers branch with errors.Is; the stable machine-readable code
// travels on the wrapping Error value.
var (
	// ErrValidation indicates a malformed request rejected before any store access.
	ErrValidation = errors.New("validation failed")
	// ErrAuthorization indicates the actor lacks a required permission.
	ErrAuthorization = errors.New("insufficient permissions")
	// ErrNotFound indicates a role, user or assignment is absent.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a duplicate assignment or concurrent-update clash.
	ErrConflict = errors.New("conflict")
	// ErrSystem indicates a store or infrastructure fault.
	ErrSystem = errors.New("system error")
)

// Stable error codes crossing the core boundary. No stack traces or
// internal detail accompany them.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeMissingTenant       = "MISSING_TENANT"
	CodeTenantMismatch      = "TENANT_MISMATCH"
	CodeInsufficientPerms   = "INSUFFICIENT_PERMISSIONS"
	CodeRoleNotFound        = "ROLE_NOT_FOUND"
	CodeUserNotFound        = "USER_NOT_FOUND"
	CodeAssignmentNotFound  = "ASSIGNMENT_NOT_FOUND"
	CodeRoleAlreadyAssigned = "ROLE_ALREADY_ASSIGNED"
	CodeGrantNotFound       = "GRANT_NOT_FOUND"
	CodePermissionNotFound  = "PERMISSION_NOT_FOUND"
	CodeResourceCheckDenied = "RESOURCE_CHECK_UNSUPPORTED"
	CodeConditionNotMet     = "CONDITION_NOT_MET"
	CodeScopeMismatch       = "SCOPE_MISMATCH"
	CodeSystemError         = "SYSTEM_ERROR"
)

// Error carries a classification sentinel, a stable code and a
// human-readable message.
type Error struct {
	kind    error
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target matches the error's classification sentinel.
func (e *Error) Is(target error) bool { return target == e.kind }

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// NewValidationError builds a request-shape rejection.
func NewValidationError(code, message string) *Error {
	return &Error{kind: ErrValidation, Code: code, Message: message}
}

// NewAuthorizationError builds a permission denial.
func NewAuthorizationError(code, message string) *Error {
	return &Error{kind: ErrAuthorization, Code: code, Message: message}
}

// NewNotFoundError builds a missing-entity error.
func NewNotFoundError(code, message string) *Error {
	return &Error{kind: ErrNotFound, Code: code, Message: message}
}

// NewConflictError builds a duplicate/clash error.
func NewConflictError(code, message string) *Error {
	return &Error{kind: ErrConflict, Code: code, Message: message}
}

// NewSystemError wraps an infrastructure fault. The cause is retained
// for logging but never serialized across the boundary.
func NewSystemError(message string, cause error) *Error {
	return &Error{kind: ErrSystem, Code: CodeSystemError, Message: message, cause: cause}
}

// CodeOf extracts the stable code from err, falling back to SYSTEM_ERROR.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeSystemError
}
