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

// Package local implements the rule-evaluated provider driver (§4.2.1): a
// Driver backed by a declarative four-slot ruleset evaluated against a
// dataset, instead of talking to a remote provider backend over HTTP.
package local

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/eiffel-community/etos-environment-provider/pkg/provider"
	"github.com/eiffel-community/etos-environment-provider/pkg/resource"
	"github.com/eiffel-community/etos-environment-provider/pkg/ruleset"
)

// pollPeriod is the interval between list/checkout attempts while waiting
// for the pool to free up enough resources.
const pollPeriod = 5 * time.Second

// idKey is the attribute every descriptor produced by the list ruleset node
// must carry; it is how the driver tracks which resources it has checked out
// without needing a second, provider-specific identity scheme.
const idKey = "id"

// Driver is the local, rule-evaluated implementation of provider.Driver.
// One Driver instance belongs to exactly one request; it must not be shared
// across concurrent checkouts (see pkg/provider.Driver's contract).
type Driver struct {
	kind       resource.Kind
	id         string
	rules      ruleset.Ruleset
	evaluate   ruleset.Evaluator
	timeout    time.Duration
	maxWorkers int

	// mu guards both checkedOut and any clone of dataset handed to a
	// prepare worker, per §9's "clone under a mutex" discipline.
	mu         sync.Mutex
	dataset    *resource.Dataset
	checkedOut map[string]*resource.Descriptor
}

// New builds a local Driver. dataset is the request dataset; it is read
// (via Copy) during IUT preparation and otherwise left untouched by this
// driver. maxWorkers bounds the prepare worker pool and is only meaningful
// for kind == resource.KindIUT; it is ignored for the other two kinds.
func New(kind resource.Kind, id string, rules ruleset.Ruleset, dataset *resource.Dataset, timeout time.Duration, maxWorkers int) *Driver {
	return &Driver{
		kind:       kind,
		id:         id,
		rules:      rules,
		evaluate:   ruleset.JMESPathEvaluator,
		timeout:    timeout,
		maxWorkers: maxWorkers,
		dataset:    dataset,
		checkedOut: map[string]*resource.Descriptor{},
	}
}

// WithEvaluator overrides the default JMESPath evaluator, used by tests to
// stub deterministic ruleset results.
func (d *Driver) WithEvaluator(eval ruleset.Evaluator) *Driver {
	d.evaluate = eval
	return d
}

func (d *Driver) Kind() resource.Kind { return d.kind }
func (d *Driver) ID() string          { return d.id }

// WaitAndCheckout implements §4.2.1's loop: evaluate list, then checkout,
// then (IUT only) prepare, retrying on NotAvailable every pollPeriod until
// d.timeout elapses.
func (d *Driver) WaitAndCheckout(ctx context.Context, min, max int) ([]*resource.Descriptor, error) {
	logger := log.FromContext(ctx).WithValues("provider", d.id, "kind", string(d.kind))
	deadline := time.Now().Add(d.timeout)

	for {
		descriptors, err := d.attempt(ctx, min, max, logger)
		if err == nil {
			return descriptors, nil
		}
		if provider.IsTerminal(err) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, provider.NewTimeoutError(fmt.Errorf("%s: no resources available after %s", d.id, d.timeout))
		}
		logger.V(1).Info("resources not yet available, retrying", "error", err.Error())
		select {
		case <-ctx.Done():
			return nil, provider.NewTimeoutError(ctx.Err())
		case <-time.After(pollPeriod):
		}
	}
}

// attempt runs one list/checkout/(prepare) cycle. It returns a
// *provider.NotAvailableError for conditions the caller should retry and any
// other error type for conditions that are terminal for the whole checkout.
func (d *Driver) attempt(ctx context.Context, min, max int, logger logr.Logger) ([]*resource.Descriptor, error) {
	listed, err := d.evaluate(d.rules.List, d.dataset.AsMap())
	if err != nil {
		return nil, provider.NewConfigError(err)
	}
	result, err := ruleset.ParseListResult(listed)
	if err != nil {
		return nil, provider.NewConfigError(err)
	}
	if len(result.Possible) == 0 {
		return nil, provider.NewNoneExistError(fmt.Errorf("%s: no %s resources exist", d.id, d.kind))
	}
	if len(result.Available) < min {
		return nil, provider.NewNotAvailableError(fmt.Errorf("%s: only %d of %d required %s resources available", d.id, len(result.Available), min, d.kind))
	}

	candidates := result.Available
	if len(candidates) > max {
		candidates = candidates[:max]
	}

	checkedOut, err := d.checkoutCandidates(candidates)
	if err != nil {
		return nil, err
	}
	if len(checkedOut) == 0 {
		return nil, provider.NewCheckoutFailedError(fmt.Errorf("%s: every checkout attempt failed", d.id))
	}

	if d.kind == resource.KindIUT {
		checkedOut, err = d.prepare(ctx, checkedOut)
		if err != nil {
			return nil, err
		}
		if len(checkedOut) < min {
			return nil, provider.NewNotAvailableError(fmt.Errorf("%s: only %d of %d IUTs survived preparation", d.id, len(checkedOut), min))
		}
	}

	d.mu.Lock()
	for _, desc := range checkedOut {
		if id, ok := desc.Get(idKey); ok {
			d.checkedOut[fmt.Sprint(id)] = desc
		}
	}
	d.mu.Unlock()

	return checkedOut, nil
}

// checkoutCandidates evaluates the checkout node for each candidate in
// reverse order (§4.2.1's stable tie-break for preference-ordered pools),
// merging dict results into the descriptor and dropping candidates whose
// checkout node returns anything else.
func (d *Driver) checkoutCandidates(candidates []map[string]any) ([]*resource.Descriptor, error) {
	var out []*resource.Descriptor
	for i := len(candidates) - 1; i >= 0; i-- {
		data := map[string]any{"candidate": candidates[i]}
		for k, v := range d.dataset.AsMap() {
			data[k] = v
		}
		raw, err := d.evaluate(d.rules.Checkout, data)
		if err != nil {
			return nil, provider.NewConfigError(err)
		}
		merged, ok := raw.(map[string]any)
		if !ok {
			// non-dict result is a failure message; drop this candidate.
			continue
		}
		attrs := make(map[string]any, len(candidates[i])+len(merged))
		for k, v := range candidates[i] {
			attrs[k] = v
		}
		for k, v := range merged {
			attrs[k] = v
		}
		out = append(out, resource.NewDescriptor(d.id, attrs))
	}
	return out, nil
}

// prepare runs the IUT-only preparation ruleset across a bounded worker
// pool, one task per IUT, each given its own dataset clone per §9's
// clone-under-mutex discipline. IUTs whose preparation produces any falsy
// step result are checked back in and dropped from the returned list.
func (d *Driver) prepare(ctx context.Context, descriptors []*resource.Descriptor) ([]*resource.Descriptor, error) {
	if len(d.rules.Prepare) == 0 {
		return descriptors, nil
	}

	workers := d.maxWorkers
	if workers <= 0 {
		workers = 10
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	survived := make([]*resource.Descriptor, len(descriptors))
	for i, desc := range descriptors {
		i, desc := i, desc
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			d.mu.Lock()
			clone := d.dataset.Copy()
			d.mu.Unlock()
			clone.Merge(desc.AsMap())

			ok, err := d.runPrepareSteps(clone)
			if err != nil {
				return provider.NewConfigError(err)
			}
			if ok {
				survived[i] = desc
			} else {
				_ = d.Checkin(ctx, desc)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*resource.Descriptor, 0, len(survived))
	for _, desc := range survived {
		if desc != nil {
			out = append(out, desc)
		}
	}
	return out, nil
}

func (d *Driver) runPrepareSteps(dataset *resource.Dataset) (bool, error) {
	for _, step := range d.rules.Prepare {
		result, err := d.evaluate(step, dataset.AsMap())
		if err != nil {
			return false, err
		}
		if ruleset.IsFalsy(result) {
			return false, nil
		}
	}
	return true, nil
}

// Checkin evaluates the checkin node for a single descriptor and, once that
// evaluation succeeds, removes it from the checked-out set; a failed
// evaluation leaves it tracked. A descriptor that is not tracked is checked in
// the same way, so repeated checkins are harmless (the spec's "idempotent"
// requirement).
func (d *Driver) Checkin(ctx context.Context, desc *resource.Descriptor) error {
	data := map[string]any{"resource": desc.AsMap()}
	for k, v := range d.dataset.AsMap() {
		data[k] = v
	}
	if _, err := d.evaluate(d.rules.Checkin, data); err != nil {
		return provider.NewCheckinFailedError(err)
	}

	d.mu.Lock()
	if id, ok := desc.Get(idKey); ok {
		delete(d.checkedOut, fmt.Sprint(id))
	}
	d.mu.Unlock()
	return nil
}

// CheckinAll releases every resource this driver currently tracks as
// checked out, logging and continuing past individual failures.
func (d *Driver) CheckinAll(ctx context.Context) {
	logger := log.FromContext(ctx).WithValues("provider", d.id, "kind", string(d.kind))

	d.mu.Lock()
	pending := make([]*resource.Descriptor, 0, len(d.checkedOut))
	for _, desc := range d.checkedOut {
		pending = append(pending, desc)
	}
	d.mu.Unlock()

	for _, desc := range pending {
		if err := d.Checkin(ctx, desc); err != nil {
			logger.Error(err, "checkin failed during checkin_all", "resource", desc.AsMap())
		}
	}
}
