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

package publisher

import (
	"context"
	"testing"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/eiffel-community/etos-environment-provider/api/v1alpha1"
	"github.com/eiffel-community/etos-environment-provider/pkg/resource"
	"github.com/eiffel-community/etos-environment-provider/pkg/subsuite"
)

func newScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	scheme := runtime.NewScheme()
	if err := v1alpha1.AddToScheme(scheme); err != nil {
		t.Fatalf("adding scheme: %v", err)
	}
	return scheme
}

// TestPublishOrchestratedCreatesOwnedEnvironment exercises the orchestrated
// half of §4.6 directly: publishOrchestrated and publishUpload are the only
// two Publish strategies, and publishOrchestrated is the one that doesn't
// also require a live etcd-backed Registry to run (see DESIGN.md for why
// publishUpload isn't exercised the same way).
func TestPublishOrchestratedCreatesOwnedEnvironment(t *testing.T) {
	kubeClient := fake.NewClientBuilder().WithScheme(newScheme(t)).Build()
	p := New(ModeOrchestrated, nil, nil, nil, kubeClient, "https://etos.example.test")

	owner := &v1alpha1.EnvironmentRequest{
		ObjectMeta: metav1.ObjectMeta{Name: "req-1", UID: "req-1-uid"},
		Spec:       v1alpha1.EnvironmentRequestSpec{ID: "req-1", Identifier: "testrun-1"},
	}
	suite := subsuite.Build("testrun-1", "default", 1, "req-1", nil, "ctx-1",
		resource.NewDescriptor("local-1", nil),
		resource.NewDescriptor("local-1", nil),
		resource.NewDescriptor("local-1", nil),
		nil,
	)

	uri, err := p.publishOrchestrated(context.Background(), suite, owner)
	if err != nil {
		t.Fatalf("publishOrchestrated: %v", err)
	}
	if uri == "" {
		t.Fatal("expected a non-empty URI")
	}

	var env v1alpha1.Environment
	if err := kubeClient.Get(context.Background(), client.ObjectKey{Name: suite.EnvironmentID()}, &env); err != nil {
		t.Fatalf("expected the Environment resource to exist: %v", err)
	}
	if env.Spec.SuiteID != suite.SuiteID {
		t.Fatalf("expected SuiteID %q, got %q", suite.SuiteID, env.Spec.SuiteID)
	}
	if len(env.OwnerReferences) != 1 || env.OwnerReferences[0].Name != "req-1" {
		t.Fatalf("expected an owner reference to req-1, got %+v", env.OwnerReferences)
	}
}

func TestPublishOrchestratedWithoutOwnerLeavesNoOwnerReferences(t *testing.T) {
	kubeClient := fake.NewClientBuilder().WithScheme(newScheme(t)).Build()
	p := New(ModeOrchestrated, nil, nil, nil, kubeClient, "https://etos.example.test")

	suite := subsuite.Build("testrun-1", "default", 1, "req-1", nil, "ctx-1",
		resource.NewDescriptor("local-1", nil),
		resource.NewDescriptor("local-1", nil),
		resource.NewDescriptor("local-1", nil),
		nil,
	)

	if _, err := p.publishOrchestrated(context.Background(), suite, nil); err != nil {
		t.Fatalf("publishOrchestrated: %v", err)
	}

	var env v1alpha1.Environment
	if err := kubeClient.Get(context.Background(), client.ObjectKey{Name: suite.EnvironmentID()}, &env); err != nil {
		t.Fatalf("expected the Environment resource to exist: %v", err)
	}
	if len(env.OwnerReferences) != 0 {
		t.Fatalf("expected no owner references when Publish is called without an owner, got %+v", env.OwnerReferences)
	}
}
