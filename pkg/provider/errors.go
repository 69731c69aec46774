/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package provider

import (
	"errors"
	"fmt"
)

// The driver error taxonomy follows sigs.k8s.io/karpenter/pkg/cloudprovider's
// NodeClaimNotFoundError / InsufficientCapacityError pattern: an
// error-embedding struct, a constructor, Error()/Unwrap(), and an
// errors.As-backed IsX helper (there are no IgnoreX helpers). §7 of the spec assigns each kind a
// distinct recovery rule; the orchestrator switches on these helpers rather
// than on error strings.

// NoneExistError is returned when the backing pool is provably empty for the
// requested identity. Terminal for the request.
type NoneExistError struct{ error }

func NewNoneExistError(err error) *NoneExistError { return &NoneExistError{error: err} }
func (e *NoneExistError) Error() string           { return fmt.Sprintf("no resources exist, %s", e.error) }
func (e *NoneExistError) Unwrap() error            { return e.error }

func IsNoneExistError(err error) bool {
	if err == nil {
		return false
	}
	var target *NoneExistError
	return errors.As(err, &target)
}

// NotAvailableError is returned when the pool is non-empty but nothing freed
// in time. Retried inside the driver loop, then inside the orchestrator loop,
// until the relevant deadline fires.
type NotAvailableError struct{ error }

func NewNotAvailableError(err error) *NotAvailableError { return &NotAvailableError{error: err} }
func (e *NotAvailableError) Error() string {
	return fmt.Sprintf("no resources available, %s", e.error)
}
func (e *NotAvailableError) Unwrap() error { return e.error }

func IsNotAvailableError(err error) bool {
	if err == nil {
		return false
	}
	var target *NotAvailableError
	return errors.As(err, &target)
}

// CheckoutFailedError is returned when a provider reports a terminal error
// while checking out a resource. Terminal for the request.
type CheckoutFailedError struct{ error }

func NewCheckoutFailedError(err error) *CheckoutFailedError {
	return &CheckoutFailedError{error: err}
}
func (e *CheckoutFailedError) Error() string { return fmt.Sprintf("checkout failed, %s", e.error) }
func (e *CheckoutFailedError) Unwrap() error  { return e.error }

func IsCheckoutFailedError(err error) bool {
	if err == nil {
		return false
	}
	var target *CheckoutFailedError
	return errors.As(err, &target)
}

// CheckinFailedError is returned when a provider refuses to release a
// resource. Never terminal: checkin_all logs and continues, and the Releaser
// aggregates failures across kinds instead of stopping at the first one.
type CheckinFailedError struct{ error }

func NewCheckinFailedError(err error) *CheckinFailedError {
	return &CheckinFailedError{error: err}
}
func (e *CheckinFailedError) Error() string { return fmt.Sprintf("checkin failed, %s", e.error) }
func (e *CheckinFailedError) Unwrap() error  { return e.error }

func IsCheckinFailedError(err error) bool {
	if err == nil {
		return false
	}
	var target *CheckinFailedError
	return errors.As(err, &target)
}

// ConfigError is returned when a driver's own configuration (or ruleset) is
// rejected by the backend. Terminal; an operator must fix the configuration.
type ConfigError struct{ error }

func NewConfigError(err error) *ConfigError { return &ConfigError{error: err} }
func (e *ConfigError) Error() string        { return fmt.Sprintf("invalid provider configuration, %s", e.error) }
func (e *ConfigError) Unwrap() error         { return e.error }

func IsConfigError(err error) bool {
	if err == nil {
		return false
	}
	var target *ConfigError
	return errors.As(err, &target)
}

// TimeoutError is returned when a driver or the orchestrator's own deadline
// elapses before a resource could be reserved. Terminal.
type TimeoutError struct{ error }

func NewTimeoutError(err error) *TimeoutError { return &TimeoutError{error: err} }
func (e *TimeoutError) Error() string         { return fmt.Sprintf("timed out, %s", e.error) }
func (e *TimeoutError) Unwrap() error          { return e.error }

func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	var target *TimeoutError
	return errors.As(err, &target)
}

// NotConfiguredError is returned by the Registry before any checkout is
// attempted for a testrun that never completed Configure. Terminal; the HTTP
// boundary surfaces this as 4xx.
type NotConfiguredError struct{ error }

func NewNotConfiguredError(err error) *NotConfiguredError {
	return &NotConfiguredError{error: err}
}
func (e *NotConfiguredError) Error() string { return fmt.Sprintf("testrun not configured, %s", e.error) }
func (e *NotConfiguredError) Unwrap() error  { return e.error }

func IsNotConfiguredError(err error) bool {
	if err == nil {
		return false
	}
	var target *NotConfiguredError
	return errors.As(err, &target)
}

// IsTerminal reports whether err is one of the kinds §7 marks terminal for a
// checkout request (everything except NotAvailable, which is retried).
func IsTerminal(err error) bool {
	return err != nil && !IsNotAvailableError(err)
}
