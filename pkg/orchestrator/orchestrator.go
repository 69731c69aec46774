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

// Package orchestrator implements the Checkout Orchestrator state machine
// (§4.7): the core loop that coordinates the three provider drivers, the
// Splitter, the sub-suite Builder, and the Publisher until every requested
// sub-suite has been published or the overall deadline elapses.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/eiffel-community/etos-environment-provider/api/v1alpha1"
	"github.com/eiffel-community/etos-environment-provider/pkg/backoff"
	"github.com/eiffel-community/etos-environment-provider/pkg/metrics"
	"github.com/eiffel-community/etos-environment-provider/pkg/provider"
	"github.com/eiffel-community/etos-environment-provider/pkg/publisher"
	"github.com/eiffel-community/etos-environment-provider/pkg/splitter"
	"github.com/eiffel-community/etos-environment-provider/pkg/subsuite"
)

// iterationSleep is the pause between two checkout loop iterations (§4.7).
const iterationSleep = 5 * time.Second

// deadlineSlack is added on top of the three driver timeouts to derive the
// orchestrator's own deadline.
const deadlineSlack = 10 * time.Second

// publishing is the subset of *publisher.Publisher the Orchestrator calls;
// accepting it as an interface lets Checkout's iteration/timeout/cleanup
// paths be tested with an in-memory fake instead of a live etcd- and
// k8s-backed Publisher.
type publishing interface {
	Publish(ctx context.Context, testrunID string, suite subsuite.SubSuite, owner *v1alpha1.EnvironmentRequest) error
}

// Orchestrator runs one request's checkout loop end to end. One instance is
// built per request; it must not be reused across requests (§5: "each
// request owns its own ... Registry handle").
type Orchestrator struct {
	IUTDriver            provider.Driver
	ExecutionSpaceDriver provider.Driver
	LogAreaDriver        provider.Driver
	Publisher            publishing

	// drivers lists every driver registered for this request, for the
	// cleanup fan-out; it always contains the three fields above.
	drivers []provider.Driver

	// unavailable remembers which drivers recently reported NotAvailable, so
	// a loop iteration can skip straight to the sleep instead of re-issuing
	// a doomed WaitAndCheckout.
	unavailable *backoff.Unavailable

	// MaxParallelIUTs caps how many IUTs a single WaitAndCheckout call may
	// request, regardless of how many tests are still unsplit (§4.7 step 2,
	// MAX_PARALLEL_IUTS). Zero means uncapped.
	MaxParallelIUTs int

	// testIterationSleep overrides iterationSleep when set; tests use this to
	// avoid waiting out the real 5s pause between loop iterations.
	testIterationSleep time.Duration
}

func (o *Orchestrator) iterationSleep() time.Duration {
	if o.testIterationSleep > 0 {
		return o.testIterationSleep
	}
	return iterationSleep
}

// New builds an Orchestrator from its three drivers, a publisher, and the
// MAX_PARALLEL_IUTS cap (§9) to apply to every checkout iteration.
func New(iut, execSpace, logArea provider.Driver, pub *publisher.Publisher, maxParallelIUTs int) *Orchestrator {
	return &Orchestrator{
		IUTDriver:            iut,
		ExecutionSpaceDriver: execSpace,
		LogAreaDriver:        logArea,
		Publisher:            pub,
		drivers:              []provider.Driver{iut, execSpace, logArea},
		unavailable:          backoff.New(),
		MaxParallelIUTs:      maxParallelIUTs,
	}
}

// group is the mutable, per-iteration TestRunnerGroup plus the subset of
// request-level data Build needs to materialize a sub-suite for it.
type group struct {
	*splitter.TestRunnerGroup
	priority int
}

// Checkout runs the full checkout loop for request, publishing one
// sub-suite per (test_runner, IUT) pair until every recipe has a home or the
// deadline fires. owner is the originating EnvironmentRequest, threaded
// through to the Publisher for orchestrated-mode owner references; it may
// be nil in upload mode.
func (o *Orchestrator) Checkout(ctx context.Context, request *v1alpha1.EnvironmentRequest, owner *v1alpha1.EnvironmentRequest, iutTimeout, execTimeout, logTimeout time.Duration) (err error) {
	defer func() { metrics.CheckoutsTotal.WithLabelValues(checkoutOutcome(err)).Inc() }()

	logger := log.FromContext(ctx).WithValues("testrun", request.Spec.Identifier, "request", request.Spec.ID)

	deadline := time.Now().Add(iutTimeout + execTimeout + logTimeout + deadlineSlack)
	groups := seedGroups(request)
	contextID := uuid.NewString()

	first := true
	for {
		if !first {
			select {
			case <-ctx.Done():
				o.cleanup(ctx)
				return provider.NewTimeoutError(ctx.Err())
			case <-time.After(o.iterationSleep()):
			}
		}
		first = false

		if time.Now().After(deadline) {
			o.cleanup(ctx)
			return provider.NewTimeoutError(fmt.Errorf("checkout of %s exceeded deadline", request.Spec.Identifier))
		}

		totalTestCount := totalUnsplit(groups)
		if totalTestCount == 0 {
			return nil
		}

		max := totalTestCount
		if o.MaxParallelIUTs > 0 && o.MaxParallelIUTs < max {
			max = o.MaxParallelIUTs
		}
		if request.Spec.MaxAmount > 0 && request.Spec.MaxAmount < max {
			max = request.Spec.MaxAmount
		}

		if o.unavailable.IsUnavailable(o.IUTDriver.Kind(), o.IUTDriver.ID()) {
			logger.V(1).Info("iut driver recently reported not available, skipping this iteration")
			continue
		}

		iuts, err := o.IUTDriver.WaitAndCheckout(ctx, request.Spec.MinAmount, max)
		if err != nil {
			if provider.IsNotAvailableError(err) {
				logger.V(1).Info("iuts not yet available, retrying next iteration")
				o.unavailable.MarkUnavailable(o.IUTDriver.Kind(), o.IUTDriver.ID())
				continue
			}
			o.cleanup(ctx)
			return fmt.Errorf("checkout out iuts: %w", err)
		}
		o.unavailable.Clear(o.IUTDriver.Kind(), o.IUTDriver.ID())

		pending := pendingGroups(groups)
		leftover := splitter.AssignIUTs(testRunnerGroupsOf(pending), iuts, totalTestCount)
		if len(leftover) > 0 {
			logger.V(1).Info("more iuts checked out than assigned this iteration", "leftover", len(leftover))
		}

		for _, g := range pending {
			if len(g.IUTs) == 0 {
				continue
			}
			if err := o.checkoutExecutionSpacesAndLogAreas(ctx, g.TestRunnerGroup); err != nil {
				o.cleanup(ctx)
				return fmt.Errorf("checking out execution spaces/log areas for %s: %w", g.TestRunner, err)
			}

			splitter.Split(g.TestRunnerGroup)

			if err := o.publishGroup(ctx, request, owner, g, contextID); err != nil {
				o.cleanup(ctx)
				return fmt.Errorf("publishing sub-suites for %s: %w", g.TestRunner, err)
			}
		}

		groups = remainingGroups(groups)
		if len(groups) == 0 {
			return nil
		}
	}
}

// checkoutExecutionSpacesAndLogAreas reserves exactly one execution space and
// one log area per IUT slot in g (§4.7 step 4), generating a fresh
// sub-suite id for each.
func (o *Orchestrator) checkoutExecutionSpacesAndLogAreas(ctx context.Context, g *splitter.TestRunnerGroup) error {
	for _, slot := range g.IUTs {
		execSpaces, err := o.ExecutionSpaceDriver.WaitAndCheckout(ctx, 1, 1)
		if err != nil {
			return fmt.Errorf("execution space: %w", err)
		}
		logAreas, err := o.LogAreaDriver.WaitAndCheckout(ctx, 1, 1)
		if err != nil {
			return fmt.Errorf("log area: %w", err)
		}
		slot.Executor = execSpaces[0]
		slot.LogArea = logAreas[0]
		slot.SubSuiteID = uuid.NewString()
	}
	return nil
}

// publishGroup materializes and publishes one sub-suite per IUT in g.
// contextID correlates every event emitted across the whole checkout
// (§3/glossary "context"); it is distinct from testSuiteStartedID, which
// identifies the originating sub-request.
func (o *Orchestrator) publishGroup(ctx context.Context, request *v1alpha1.EnvironmentRequest, owner *v1alpha1.EnvironmentRequest, g *group, contextID string) error {
	for _, slot := range g.IUTs {
		recipes := make([]v1alpha1.Test, 0, len(slot.Recipes))
		for _, r := range slot.Recipes {
			if t, ok := r.Opaque.(v1alpha1.Test); ok {
				recipes = append(recipes, t)
			}
		}

		suite := subsuite.Build(
			request.Spec.Identifier,
			g.TestRunner,
			g.priority,
			request.Spec.ID,
			nil,
			contextID,
			slot.IUT,
			slot.Executor,
			slot.LogArea,
			recipes,
		)
		if err := o.Publisher.Publish(ctx, request.Spec.Identifier, suite, owner); err != nil {
			return err
		}
	}
	return nil
}

// cleanup fans out checkin_all to every registered driver, swallowing
// individual failures (they are logged inside each driver's CheckinAll).
func (o *Orchestrator) cleanup(ctx context.Context) {
	for _, d := range o.drivers {
		d.CheckinAll(ctx)
	}
}

// seedGroups builds one group per distinct test runner, in the order each
// runner first appears in request.Spec.Tests. A plain slice (rather than
// ranging over a map) keeps that order stable across calls, which
// splitter.AssignIUTs relies on to round-robin deterministically — matching
// original_source/src/environment_provider/splitter/split.py's
// insertion-ordered dict of test runners.
func seedGroups(request *v1alpha1.EnvironmentRequest) []*group {
	index := map[string]*group{}
	out := make([]*group, 0)
	for _, test := range request.Spec.Tests {
		runner := test.Execution.TestRunner
		g, ok := index[runner]
		if !ok {
			g = &group{TestRunnerGroup: &splitter.TestRunnerGroup{TestRunner: runner}}
			index[runner] = g
			out = append(out, g)
		}
		g.UnsplitRecipes = append(g.UnsplitRecipes, splitter.Recipe{ID: test.ID, Opaque: test})
	}
	return out
}

func totalUnsplit(groups []*group) int {
	total := 0
	for _, g := range groups {
		total += len(g.UnsplitRecipes)
	}
	return total
}

func pendingGroups(groups []*group) []*group {
	out := make([]*group, 0, len(groups))
	for _, g := range groups {
		if len(g.UnsplitRecipes) > 0 {
			out = append(out, g)
		}
	}
	return out
}

func testRunnerGroupsOf(groups []*group) []*splitter.TestRunnerGroup {
	out := make([]*splitter.TestRunnerGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.TestRunnerGroup)
	}
	return out
}

// checkoutOutcome labels a finished Checkout call for CheckoutsTotal.
func checkoutOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case provider.IsTimeoutError(err):
		return "timeout"
	case provider.IsNoneExistError(err):
		return "none_exist"
	case provider.IsCheckoutFailedError(err):
		return "checkout_failed"
	case provider.IsConfigError(err):
		return "config_error"
	default:
		return "error"
	}
}

// remainingGroups drops any group whose recipes have all been split and
// published (§4.7 step 7, "mark the runner complete and drop it"), keeping
// the surviving groups in their original relative order.
func remainingGroups(groups []*group) []*group {
	out := make([]*group, 0, len(groups))
	for _, g := range groups {
		if len(g.UnsplitRecipes) > 0 {
			out = append(out, g)
		}
	}
	return out
}
