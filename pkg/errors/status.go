/*
 * Copyright 2026 The Ferry Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package errors provides structured error management with status codes for
// the replication service and its administrative surface.
package errors

import "fmt"

// StatusCode represents the error codes used throughout the server. The
// numbering follows gRPC/Connect codes so the admin surface can map them to
// HTTP statuses consistently.
type StatusCode int

const (
	// ErrCodeInvalidArgument indicates that the client specified an invalid
	// argument, problematic regardless of the state of the system.
	ErrCodeInvalidArgument StatusCode = 3

	// ErrCodeDeadlineExceeded indicates that a deadline expired before the
	// operation could complete.
	ErrCodeDeadlineExceeded StatusCode = 4

	// ErrCodeNotFound indicates that some requested entity was not found.
	ErrCodeNotFound StatusCode = 5

	// ErrCodeAlreadyExists indicates that the entity a client attempted to
	// create already exists.
	ErrCodeAlreadyExists StatusCode = 6

	// ErrCodeFailedPrecondition indicates that the operation was rejected
	// because the system is not in a state required for its execution.
	ErrCodeFailedPrecondition StatusCode = 9

	// ErrCodeInternal indicates that some invariants expected by the
	// underlying system have been broken.
	ErrCodeInternal StatusCode = 13

	// ErrCodeUnavailable indicates that a collaborator is currently
	// unavailable. This is usually temporary, so callers can back off and
	// retry idempotent operations.
	ErrCodeUnavailable StatusCode = 14
)

// String returns the string representation of the error code.
func (c StatusCode) String() string {
	switch c {
	case ErrCodeInvalidArgument:
		return "invalid_argument"
	case ErrCodeDeadlineExceeded:
		return "deadline_exceeded"
	case ErrCodeNotFound:
		return "not_found"
	case ErrCodeAlreadyExists:
		return "already_exists"
	case ErrCodeFailedPrecondition:
		return "failed_precondition"
	case ErrCodeInternal:
		return "internal"
	case ErrCodeUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("code_%d", int(c))
	}
}

// IsClientError returns true if the error code represents a client-side error.
func (c StatusCode) IsClientError() bool {
	switch c {
	case ErrCodeInvalidArgument, ErrCodeNotFound, ErrCodeAlreadyExists,
		ErrCodeFailedPrecondition:
		return true
	default:
		return false
	}
}

// IsServerError returns true if the error code represents a server-side error.
func (c StatusCode) IsServerError() bool {
	switch c {
	case ErrCodeInternal, ErrCodeUnavailable, ErrCodeDeadlineExceeded:
		return true
	default:
		return false
	}
}

// IsRetryable returns true if an operation failing with this code may
// succeed when retried after a backoff.
func (c StatusCode) IsRetryable() bool {
	return c == ErrCodeUnavailable || c == ErrCodeDeadlineExceeded
}
