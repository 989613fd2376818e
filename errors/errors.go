// Package errors defines the error taxonomy shared by the chat engine.
//
// The sentinels classify failures the way the HTTP layer reports them:
// validation, not-found, forbidden, conflict, generation. Components wrap
// a sentinel with %w and callers test with the predicate helpers, so the
// classification survives any amount of wrapping.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input. No state change happened.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a missing chat, group, message or session.
	ErrNotFound = errors.New("not found")
	// ErrForbidden marks an authenticated but unauthorized access.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict marks a second Start while a session is already live.
	// The caller should attach instead of retrying.
	ErrConflict = errors.New("conflict")
	// ErrGeneration marks a backend failure mid-stream. No partial
	// assistant message has been committed.
	ErrGeneration = errors.New("generation failed")
	// ErrUnauthenticated marks a request carrying no usable identity.
	ErrUnauthenticated = errors.New("unauthenticated")

	ErrWorkerPanic = errors.New("worker panic")
	ErrEmptyWords  = errors.New("no words have been found")
)

func Validationf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrValidation)...)
}

func NotFoundf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

func Forbiddenf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrForbidden)...)
}

func Conflictf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrConflict)...)
}

func Generationf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrGeneration)...)
}

func IsValidation(err error) bool      { return errors.Is(err, ErrValidation) }
func IsNotFound(err error) bool        { return errors.Is(err, ErrNotFound) }
func IsForbidden(err error) bool       { return errors.Is(err, ErrForbidden) }
func IsConflict(err error) bool        { return errors.Is(err, ErrConflict) }
func IsGeneration(err error) bool      { return errors.Is(err, ErrGeneration) }
func IsUnauthenticated(err error) bool { return errors.Is(err, ErrUnauthenticated) }
