// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package migrate

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this package matches exactly one of
// them with errors.Is. All of them abort the run.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrConnectivity  = errors.New("connectivity error")
	ErrTransfer      = errors.New("transfer error")
	ErrProbe         = errors.New("probe error")
)

// Error describes a failed migration step.
type Error struct {
	Kind        error  // One of the Err* kinds above
	Op          string // Failed operation, e.g. "send"
	Destination string // Empty for run-level failures
	Err         error
}

func (e *Error) Error() string {
	if e.Destination == "" {
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%v: %s %q: %v", e.Kind, e.Op, e.Destination, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func newError(kind error, op, destination string, err error) *Error {
	return &Error{Kind: kind, Op: op, Destination: destination, Err: err}
}

// ConfigurationError wraps err as a configuration failure.
func ConfigurationError(op string, err error) error {
	return newError(ErrConfiguration, op, "", err)
}

// ConnectivityError wraps err as a connectivity failure.
func ConnectivityError(op string, err error) error {
	return newError(ErrConnectivity, op, "", err)
}
