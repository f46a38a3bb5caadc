// Package faults classifies failure causes as transient (safe to retry the
// same operation) or permanent (needs user correction).
package faults

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
)

// Class is the retry classification of an error.
type Class int

const (
	// ClassPermanent errors must not be retried.
	ClassPermanent Class = iota
	// ClassTransient errors can be retried without user intervention.
	ClassTransient
)

func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	default:
		return "permanent"
	}
}

// TransientError marks an error as retry-able.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// PermanentError marks an error as not retry-able.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Transient wraps err so that Classify reports ClassTransient. A nil err stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// Permanent wraps err so that Classify reports ClassPermanent. A nil err stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Classify returns the class of err. Explicit markers win over everything
// else; the outermost marker wins when both are present.
func Classify(err error) Class {
	if err == nil {
		return ClassPermanent
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		switch e.(type) {
		case *TransientError:
			return ClassTransient
		case *PermanentError:
			return ClassPermanent
		}
	}

	if errors.Is(err, context.Canceled) {
		return ClassPermanent
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}
	if errors.Is(err, os.ErrPermission) || errors.Is(err, os.ErrNotExist) {
		return ClassPermanent
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return ClassTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTransient
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ClassTransient
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ETIMEDOUT) {
		return ClassTransient
	}

	// Default to permanent so callers never retry blindly.
	return ClassPermanent
}

// IsTransient reports whether err is classified as transient.
func IsTransient(err error) bool {
	return err != nil && Classify(err) == ClassTransient
}
