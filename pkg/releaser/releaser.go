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

// Package releaser implements the Releaser (§4.8): releasing one
// previously-published environment, or every environment belonging to a
// testrun, resolving each resource's issuing provider and calling checkin.
package releaser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/eiffel-community/etos-environment-provider/pkg/metrics"
	"github.com/eiffel-community/etos-environment-provider/pkg/provider"
	"github.com/eiffel-community/etos-environment-provider/pkg/registry"
	"github.com/eiffel-community/etos-environment-provider/pkg/resource"
	"github.com/eiffel-community/etos-environment-provider/pkg/subsuite"
)

// DriverFactory resolves a provider id and resource kind to a live Driver
// (cmd/environment-provider builds it from the provider's catalog
// registration). The Releaser has no opinion on whether that driver is local
// or remote.
type DriverFactory func(ctx context.Context, kind resource.Kind, providerID string) (provider.Driver, error)

// store is the subset of *registry.Registry the Releaser needs; accepting it
// as an interface lets tests exercise the partial-failure aggregation below
// with an in-memory fake instead of a live etcd client.
type store interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	GetPrefix(ctx context.Context, prefix string) (map[string][]byte, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// Releaser releases previously-published sub-suites.
type Releaser struct {
	registry store
	drivers  DriverFactory
}

// New builds a Releaser.
func New(reg *registry.Registry, drivers DriverFactory) *Releaser {
	return &Releaser{registry: reg, drivers: drivers}
}

// ReleaseError aggregates the per-kind checkin failures from one
// ReleaseEnvironment call, mirroring the "ExceptionGroup-equivalent" the
// spec calls for (§4.8): all three kinds are attempted even if one fails.
type ReleaseError struct {
	Failures []error
}

func (e *ReleaseError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, err := range e.Failures {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("releasing environment: %s", strings.Join(msgs, "; "))
}

func (e *ReleaseError) Unwrap() []error { return e.Failures }

// ReleaseEnvironment loads the persisted sub-suite for envID, resolves a
// driver for each stored descriptor from its ProviderID, and calls
// checkin on each with the stored descriptor. All three are attempted even
// if one fails.
func (r *Releaser) ReleaseEnvironment(ctx context.Context, testrunID, suiteID, envID string) error {
	key := registry.SubSuiteKey(testrunID, suiteID, envID)
	var suite subsuite.SubSuite
	ok, err := r.registry.GetJSON(ctx, key, &suite)
	if err != nil {
		return fmt.Errorf("releaser: loading sub-suite %s: %w", envID, err)
	}
	if !ok {
		// already released or never existed: idempotent success (§8
		// "release idempotence").
		return nil
	}

	type checkinTarget struct {
		kind resource.Kind
		desc *resource.Descriptor
	}
	targets := []checkinTarget{
		{resource.KindIUT, suite.IUT},
		{resource.KindExecutionSpace, suite.Executor.Descriptor},
		{resource.KindLogArea, suite.LogArea},
	}

	var failures []error
	for _, t := range targets {
		if t.desc == nil {
			continue
		}
		driver, err := r.drivers(ctx, t.kind, t.desc.ProviderID())
		if err != nil {
			failures = append(failures, fmt.Errorf("resolving %s driver %s: %w", t.kind, t.desc.ProviderID(), err))
			metrics.ReleasesTotal.WithLabelValues(string(t.kind), "resolve_failed").Inc()
			continue
		}
		if err := driver.Checkin(ctx, t.desc); err != nil {
			failures = append(failures, fmt.Errorf("checking in %s: %w", t.kind, err))
			metrics.ReleasesTotal.WithLabelValues(string(t.kind), "checkin_failed").Inc()
			continue
		}
		metrics.ReleasesTotal.WithLabelValues(string(t.kind), "success").Inc()
	}

	if len(failures) > 0 {
		return &ReleaseError{Failures: failures}
	}

	return r.registry.Delete(ctx, key)
}

// ReleaseBySingleID resolves envID to its owning testrun/suite via the
// Registry's environment location index and releases it, matching the HTTP
// boundary's `single_release=<env_id>` query parameter (§6.1).
func (r *Releaser) ReleaseBySingleID(ctx context.Context, envID string) error {
	var loc registry.EnvironmentLocation
	ok, err := r.registry.GetJSON(ctx, registry.EnvironmentLocationKey(envID), &loc)
	if err != nil {
		return fmt.Errorf("releaser: resolving environment %s: %w", envID, err)
	}
	if !ok {
		// already released or never existed: idempotent success.
		return nil
	}
	if err := r.ReleaseEnvironment(ctx, loc.TestrunID, loc.SuiteID, envID); err != nil {
		return err
	}
	return r.registry.Delete(ctx, registry.EnvironmentLocationKey(envID))
}

// ReleaseFullTestrun iterates every persisted sub-suite under
// /testrun/{id}/suite/, releases each, then deletes the whole prefix. It
// returns success=false if any sub-suite release failed; message
// concatenates every failure.
func (r *Releaser) ReleaseFullTestrun(ctx context.Context, testrunID string) (bool, string) {
	prefix := fmt.Sprintf("/testrun/%s/suite/", testrunID)
	entries, err := r.registry.GetPrefix(ctx, prefix)
	if err != nil {
		return false, fmt.Sprintf("releaser: listing sub-suites for %s: %s", testrunID, err)
	}

	var failures []string
	for key, value := range entries {
		var suite subsuite.SubSuite
		if err := json.Unmarshal(value, &suite); err != nil {
			failures = append(failures, fmt.Sprintf("releaser: decoding sub-suite at %s: %s", key, err))
			continue
		}
		if err := r.ReleaseEnvironment(ctx, testrunID, suite.SuiteID, suite.EnvironmentID()); err != nil {
			failures = append(failures, err.Error())
		}
	}

	if err := r.registry.DeletePrefix(ctx, prefix); err != nil {
		failures = append(failures, fmt.Sprintf("deleting prefix %s: %s", prefix, err))
	}

	if len(failures) > 0 {
		return false, strings.Join(failures, "; ")
	}
	return true, ""
}
