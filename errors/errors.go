/*
 * MIT License
 *
 * Copyright (c) 2022-2025  Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrCandidateRequired is returned when an election engine is created without a candidate.
	ErrCandidateRequired = errors.New("candidate is required")

	// ErrClientRequired is returned when an election engine is created without a backend client or connection.
	ErrClientRequired = errors.New("backend client is required")

	// ErrInvalidConfig is returned when an election engine configuration does not pass validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrShutdownTimeout is returned when an election engine could not release its leadership
	// within the configured shutdown timeout.
	ErrShutdownTimeout = errors.New("shutdown timed out")

	// ErrStillStopping is returned by Start while the loop of a timed out Stop has not returned yet.
	// Calling Stop again waits for it.
	ErrStillStopping = errors.New("election loop is still stopping")

	// ErrNotStarted indicates that an operation requires a started backend connection.
	ErrNotStarted = errors.New("not started")

	// ErrInvalidLogLevel is returned when a logging level name cannot be resolved.
	ErrInvalidLogLevel = errors.New("invalid log level")
)

// NewErrInvalidConfig wraps a validation error with ErrInvalidConfig.
func NewErrInvalidConfig(err error) error {
	return errors.Join(ErrInvalidConfig, err)
}

// NewErrInvalidLogLevel formats an ErrInvalidLogLevel with the given level name.
func NewErrInvalidLogLevel(level string) error {
	return fmt.Errorf("level=(%s) %w", level, ErrInvalidLogLevel)
}

// PanicError wraps the value recovered from a panicking candidate callback
// or event listener.
type PanicError struct {
	err error
}

// enforce compilation error
var _ error = (*PanicError)(nil)

// NewPanicError creates an instance of PanicError from a recovered value
func NewPanicError(recovered any) *PanicError {
	if err, ok := recovered.(error); ok {
		return &PanicError{err}
	}
	return &PanicError{fmt.Errorf("%v", recovered)}
}

// Error implements the standard error interface
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.err)
}

func (e *PanicError) Unwrap() error {
	return e.err
}
