package pinpost

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAttemptStarted is returned when an attempt is run more than once.
var ErrAttemptStarted = errors.New("publish attempt already started")

// ValidationError is a missing or malformed field caught before any I/O.
type ValidationError struct {
	Provider string
	Reason   string
}

func (e ValidationError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("%s validation failed: %s", e.Provider, e.Reason)
}

// ConfigurationError is returned when a required deployment setting is missing.
type ConfigurationError struct {
	Provider  string
	Variables []string
	Reason    string
}

func (e ConfigurationError) Error() string {
	switch {
	case e.Reason != "":
		return fmt.Sprintf("%s not configured: %s", e.Provider, e.Reason)
	case len(e.Variables) == 0:
		return fmt.Sprintf("%s credentials not configured", e.Provider)
	}
	return fmt.Sprintf("%s credentials not configured (missing %s)", e.Provider, strings.Join(e.Variables, ", "))
}

// StorageError wraps a failed object-store write.
type StorageError struct {
	Key string
	Err error
}

func (e StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage put failed: %v", e.Err)
	}
	return fmt.Sprintf("storage put %s failed: %v", e.Key, e.Err)
}

func (e StorageError) Unwrap() error { return e.Err }

// UpstreamError carries a non-success reply from a remote platform API.
type UpstreamError struct {
	Platform string
	Status   int
	Message  string
}

func (e UpstreamError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Platform, e.Status, e.Message)
}

// NotImplementedError marks a platform that has no wired publisher.
type NotImplementedError struct {
	Platform string
}

func (e NotImplementedError) Error() string {
	return fmt.Sprintf("%s is not implemented", e.Platform)
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

// IsConfiguration reports whether err is or wraps a ConfigurationError.
func IsConfiguration(err error) bool {
	var target ConfigurationError
	return errors.As(err, &target)
}

// IsStorage reports whether err is or wraps a StorageError.
func IsStorage(err error) bool {
	var target StorageError
	return errors.As(err, &target)
}

// IsNotImplemented reports whether err is or wraps a NotImplementedError.
func IsNotImplemented(err error) bool {
	var target NotImplementedError
	return errors.As(err, &target)
}
