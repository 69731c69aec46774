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

// Package provider defines the uniform Driver contract (§4.2) implemented by
// the two concrete provider kinds (local rule-evaluated, remote HTTP) for
// each of the three resource kinds (IUT, ExecutionSpace, LogArea).
package provider

import (
	"context"

	"github.com/eiffel-community/etos-environment-provider/pkg/resource"
)

// Driver is implemented once per (provider kind, resource kind) pair. Every
// method is safe to call concurrently by at most one goroutine per request;
// a single Driver instance must not be shared across concurrent requests
// (§5: "each request owns its own ... Registry handle").
type Driver interface {
	// Kind reports which of the three resource pools this driver issues from.
	Kind() resource.Kind
	// ID is this driver's provider id, as recorded in the Registry catalog.
	ID() string
	// WaitAndCheckout blocks up to the kind-specific timeout and returns
	// between min and max resources inclusive on success.
	WaitAndCheckout(ctx context.Context, min, max int) ([]*resource.Descriptor, error)
	// Checkin returns a single resource. Idempotent.
	Checkin(ctx context.Context, d *resource.Descriptor) error
	// CheckinAll releases every resource this driver currently tracks as
	// checked out. Best-effort: per-resource failures are logged, never
	// returned, so cleanup fan-out in the orchestrator can't itself fail.
	CheckinAll(ctx context.Context)
}
