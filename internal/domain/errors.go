package domain

import (
	"errors"
	"fmt"
)

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

var (
	ErrIdentityRequired       = errors.New("identity required")
	ErrInvalidAddress         = errors.New("invalid wallet address")
	ErrNotRatable             = errors.New("url is not ratable")
	ErrEmptyComment           = errors.New("comment is empty")
	ErrCommentTooLong         = errors.New("comment is too long")
	ErrInvalidVote            = errors.New("vote must be +1 or -1")
	ErrSignatureMismatch      = errors.New("signature does not match author")
	ErrUnauthorizedDelegation = errors.New("author may not attest on behalf of another identity")
	ErrUnsupportedSchema      = errors.New("unsupported schema")
	ErrInvalidDocument        = errors.New("invalid document")
	ErrConflict               = errors.New("conflict")
	ErrPolicyDenied           = errors.New("denied by node policy")
)

// StoreError wraps a failure reported by a persistence collaborator.
type StoreError struct {
	Op    string
	Write bool
	Err   error
}

func (e *StoreError) Error() string {
	kind := "read"
	if e.Write {
		kind = "write"
	}
	return fmt.Sprintf("store %s failed (%s): %v", kind, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func WriteFailure(op string, err error) error {
	if err == nil || classified(err) {
		return err
	}
	return &StoreError{Op: op, Write: true, Err: err}
}

func ReadFailure(op string, err error) error {
	if err == nil || classified(err) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// classified errors already carry their meaning and pass through unwrapped.
func classified(err error) bool {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return true
	}
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrIdentityRequired) ||
		errors.Is(err, ErrUnauthorizedDelegation) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrPolicyDenied) ||
		IsValidation(err)
}

// IsValidation reports whether err was caused by bad caller input.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidAddress,
		ErrNotRatable,
		ErrEmptyComment,
		ErrCommentTooLong,
		ErrInvalidVote,
		ErrSignatureMismatch,
		ErrUnsupportedSchema,
		ErrInvalidDocument,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
