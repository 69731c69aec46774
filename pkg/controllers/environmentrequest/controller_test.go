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

package environmentrequest_test

import (
	"context"
	"errors"
	"testing"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/eiffel-community/etos-environment-provider/api/v1alpha1"
	"github.com/eiffel-community/etos-environment-provider/pkg/controllers/environmentrequest"
	"github.com/eiffel-community/etos-environment-provider/pkg/orchestrator"
)

func newScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	scheme := runtime.NewScheme()
	if err := v1alpha1.AddToScheme(scheme); err != nil {
		t.Fatalf("adding scheme: %v", err)
	}
	return scheme
}

func newRequest(name string) *v1alpha1.EnvironmentRequest {
	return &v1alpha1.EnvironmentRequest{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "default"},
		Spec: v1alpha1.EnvironmentRequestSpec{
			Identifier: "testrun-1",
			ID:         "request-1",
			MinAmount:  1,
			MaxAmount:  1,
		},
	}
}

func TestReconcileFailsWhenOrchestratorFactoryErrors(t *testing.T) {
	req := newRequest("req-1")
	kubeClient := fake.NewClientBuilder().WithScheme(newScheme(t)).WithObjects(req).WithStatusSubresource(req).Build()

	factoryErr := errors.New("resolving provider failed")
	c := environmentrequest.NewController(kubeClient, func(ctx context.Context, r *v1alpha1.EnvironmentRequest) (*orchestrator.Orchestrator, error) {
		return nil, factoryErr
	}, 0, 0, 0)

	_, err := c.Reconcile(context.Background(), req)
	if err == nil {
		t.Fatal("expected Reconcile to propagate the factory error")
	}

	var got v1alpha1.EnvironmentRequest
	if err := kubeClient.Get(context.Background(), client.ObjectKeyFromObject(req), &got); err != nil {
		t.Fatalf("getting request: %v", err)
	}
	if got.Status.Phase != environmentrequest.PhaseFailed {
		t.Fatalf("expected phase %q, got %q", environmentrequest.PhaseFailed, got.Status.Phase)
	}
	if got.Status.Message == "" {
		t.Fatal("expected a failure message to be recorded")
	}
}

func TestReconcileSkipsTerminalPhases(t *testing.T) {
	req := newRequest("req-2")
	req.Status.Phase = environmentrequest.PhaseDone

	kubeClient := fake.NewClientBuilder().WithScheme(newScheme(t)).WithObjects(req).WithStatusSubresource(req).Build()
	called := false
	c := environmentrequest.NewController(kubeClient, func(ctx context.Context, r *v1alpha1.EnvironmentRequest) (*orchestrator.Orchestrator, error) {
		called = true
		return nil, nil
	}, 0, 0, 0)

	if _, err := c.Reconcile(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Fatal("expected Reconcile to skip building an orchestrator for an already-Done request")
	}
}
