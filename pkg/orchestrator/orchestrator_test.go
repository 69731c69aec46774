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

package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eiffel-community/etos-environment-provider/api/v1alpha1"
	"github.com/eiffel-community/etos-environment-provider/pkg/backoff"
	"github.com/eiffel-community/etos-environment-provider/pkg/provider"
	"github.com/eiffel-community/etos-environment-provider/pkg/resource"
	"github.com/eiffel-community/etos-environment-provider/pkg/subsuite"
)

// fakeDriver is a scriptable provider.Driver: each call to WaitAndCheckout
// pops the next scripted response off results, so a test can simulate a
// driver that is unavailable for a few iterations before succeeding.
type fakeDriver struct {
	kind    resource.Kind
	id      string
	results []fakeResult

	mu         sync.Mutex
	calls      int
	checkedIn  []*resource.Descriptor
	checkedAll int32
}

type fakeResult struct {
	descs []*resource.Descriptor
	err   error
}

func (f *fakeDriver) Kind() resource.Kind { return f.kind }
func (f *fakeDriver) ID() string          { return f.id }

func (f *fakeDriver) WaitAndCheckout(ctx context.Context, min, max int) ([]*resource.Descriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls >= len(f.results) {
		// repeat the last scripted result once the script runs out.
		r := f.results[len(f.results)-1]
		f.calls++
		return r.descs, r.err
	}
	r := f.results[f.calls]
	f.calls++
	return r.descs, r.err
}

func (f *fakeDriver) Checkin(_ context.Context, d *resource.Descriptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkedIn = append(f.checkedIn, d)
	return nil
}

func (f *fakeDriver) CheckinAll(context.Context) {
	atomic.AddInt32(&f.checkedAll, 1)
}

func alwaysOneDescriptor(kind resource.Kind) *fakeDriver {
	return &fakeDriver{kind: kind, id: string(kind) + "-1", results: []fakeResult{
		{descs: []*resource.Descriptor{resource.NewDescriptor(string(kind)+"-1", nil)}},
	}}
}

// fakePublisher records every suite handed to Publish and never touches a
// live registry, k8s client, or event bus.
type fakePublisher struct {
	mu       sync.Mutex
	suites   []subsuite.SubSuite
	failWith error
}

func (p *fakePublisher) Publish(_ context.Context, _ string, suite subsuite.SubSuite, _ *v1alpha1.EnvironmentRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return p.failWith
	}
	p.suites = append(p.suites, suite)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.suites)
}

func requestWithTests(testRunner string, n int) *v1alpha1.EnvironmentRequest {
	tests := make([]v1alpha1.Test, n)
	for i := range tests {
		tests[i] = v1alpha1.Test{
			ID:        "test-" + string(rune('a'+i)),
			Execution: v1alpha1.Execution{TestRunner: testRunner},
		}
	}
	return &v1alpha1.EnvironmentRequest{
		Spec: v1alpha1.EnvironmentRequestSpec{
			Identifier: "testrun-1",
			ID:         "req-1",
			MinAmount:  1,
			MaxAmount:  10,
			Tests:      tests,
		},
	}
}

func TestCheckoutPublishesOneSubSuitePerIUT(t *testing.T) {
	iut := alwaysOneDescriptor(resource.KindIUT)
	exec := alwaysOneDescriptor(resource.KindExecutionSpace)
	logArea := alwaysOneDescriptor(resource.KindLogArea)
	pub := &fakePublisher{}

	o := &Orchestrator{
		IUTDriver:            iut,
		ExecutionSpaceDriver: exec,
		LogAreaDriver:        logArea,
		Publisher:            pub,
		drivers:              []provider.Driver{iut, exec, logArea},
		unavailable:          backoff.New(),
	}

	request := requestWithTests("default", 1)
	err := o.Checkout(context.Background(), request, request, time.Second, time.Second, time.Second)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if pub.count() != 1 {
		t.Fatalf("expected exactly 1 published sub-suite, got %d", pub.count())
	}
}

// TestCheckoutContinuesAcrossIterationsWhenIUTsAreScarce builds two
// test-runner groups that each need one IUT but only one IUT is available
// per iteration: the first iteration satisfies only one group, and the
// second (triggered by the iteration loop, not an error) picks up the other.
func TestCheckoutContinuesAcrossIterationsWhenIUTsAreScarce(t *testing.T) {
	iut := &fakeDriver{kind: resource.KindIUT, id: "iut-1", results: []fakeResult{
		{descs: []*resource.Descriptor{resource.NewDescriptor("iut-1", nil)}},
		{descs: []*resource.Descriptor{resource.NewDescriptor("iut-2", nil)}},
	}}
	exec := alwaysOneDescriptor(resource.KindExecutionSpace)
	logArea := alwaysOneDescriptor(resource.KindLogArea)
	pub := &fakePublisher{}

	o := &Orchestrator{
		IUTDriver:            iut,
		ExecutionSpaceDriver: exec,
		LogAreaDriver:        logArea,
		Publisher:            pub,
		drivers:              []provider.Driver{iut, exec, logArea},
		unavailable:          backoff.New(),
	}
	// avoid the real 5s iteration sleep in this test binary.
	o.testIterationSleep = time.Millisecond

	request := &v1alpha1.EnvironmentRequest{
		Spec: v1alpha1.EnvironmentRequestSpec{
			Identifier: "testrun-1",
			ID:         "req-1",
			MinAmount:  1,
			MaxAmount:  10,
			Tests: []v1alpha1.Test{
				{ID: "test-a", Execution: v1alpha1.Execution{TestRunner: "runner-a"}},
				{ID: "test-b", Execution: v1alpha1.Execution{TestRunner: "runner-b"}},
			},
		},
	}

	if err := o.Checkout(context.Background(), request, request, time.Minute, time.Minute, time.Minute); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if pub.count() != 2 {
		t.Fatalf("expected both groups to eventually publish a sub-suite, got %d", pub.count())
	}
	if iut.calls < 2 {
		t.Fatalf("expected at least 2 WaitAndCheckout attempts across iterations, got %d", iut.calls)
	}
}

func TestCheckoutReturnsTimeoutErrorAndCleansUpWhenDeadlineElapses(t *testing.T) {
	iut := &fakeDriver{kind: resource.KindIUT, id: "iut-1", results: []fakeResult{
		{err: provider.NewNotAvailableError(errors.New("no capacity"))},
	}}
	exec := alwaysOneDescriptor(resource.KindExecutionSpace)
	logArea := alwaysOneDescriptor(resource.KindLogArea)
	pub := &fakePublisher{}

	o := &Orchestrator{
		IUTDriver:            iut,
		ExecutionSpaceDriver: exec,
		LogAreaDriver:        logArea,
		Publisher:            pub,
		drivers:              []provider.Driver{iut, exec, logArea},
		unavailable:          backoff.New(),
	}
	o.testIterationSleep = time.Millisecond

	request := requestWithTests("default", 1)
	// zero timeouts plus deadlineSlack=10s would be too slow for a unit test,
	// so this exercises the ctx-cancellation branch of the loop instead.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	err := o.Checkout(ctx, request, request, time.Hour, time.Hour, time.Hour)
	if !provider.IsTimeoutError(err) {
		t.Fatalf("expected a TimeoutError once the context is canceled, got %v", err)
	}
	if pub.count() != 0 {
		t.Fatalf("expected no sub-suite to be published once checkout times out, got %d", pub.count())
	}
	for _, d := range []*fakeDriver{iut, exec, logArea} {
		if atomic.LoadInt32(&d.checkedAll) == 0 {
			t.Fatalf("expected cleanup to call CheckinAll on every driver, %s driver was not called", d.kind)
		}
	}
}

func TestCheckoutCapsIterationSizeAtMaxParallelIUTs(t *testing.T) {
	var requestedMax int
	iut := &recordingDriver{kind: resource.KindIUT, id: "iut-1", onCheckout: func(min, max int) {
		requestedMax = max
	}}
	exec := alwaysOneDescriptor(resource.KindExecutionSpace)
	logArea := alwaysOneDescriptor(resource.KindLogArea)
	pub := &fakePublisher{}

	o := &Orchestrator{
		IUTDriver:            iut,
		ExecutionSpaceDriver: exec,
		LogAreaDriver:        logArea,
		Publisher:            pub,
		drivers:              []provider.Driver{iut, exec, logArea},
		unavailable:          backoff.New(),
		MaxParallelIUTs:      2,
	}

	request := requestWithTests("default", 10)
	request.Spec.MaxAmount = 100
	if err := o.Checkout(context.Background(), request, request, time.Second, time.Second, time.Second); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if requestedMax != 2 {
		t.Fatalf("expected MaxParallelIUTs=2 to cap the requested amount below the 10 unsplit tests, got %d", requestedMax)
	}
}

// recordingDriver checks out exactly one descriptor per call and records the
// max argument WaitAndCheckout was invoked with.
type recordingDriver struct {
	kind       resource.Kind
	id         string
	onCheckout func(min, max int)
}

func (d *recordingDriver) Kind() resource.Kind { return d.kind }
func (d *recordingDriver) ID() string          { return d.id }
func (d *recordingDriver) WaitAndCheckout(_ context.Context, min, max int) ([]*resource.Descriptor, error) {
	if d.onCheckout != nil {
		d.onCheckout(min, max)
	}
	return []*resource.Descriptor{resource.NewDescriptor(d.id, nil)}, nil
}
func (d *recordingDriver) Checkin(context.Context, *resource.Descriptor) error { return nil }
func (d *recordingDriver) CheckinAll(context.Context)                         {}
