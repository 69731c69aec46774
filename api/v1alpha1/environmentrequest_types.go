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

package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// ProviderRefs names the three providers a checkout must resolve through the Registry.
type ProviderRefs struct {
	// IUT is the provider id of the Item Under Test provider.
	// +required
	IUT string `json:"iut"`
	// ExecutionSpace is the provider id of the execution space provider.
	// +required
	ExecutionSpace string `json:"executionSpace"`
	// LogArea is the provider id of the log area provider.
	// +required
	LogArea string `json:"logArea"`
}

// TestCase identifies the origin of a Test within an external test case tracker.
type TestCase struct {
	ID      string `json:"id"`
	Tracker string `json:"tracker"`
	URL     string `json:"url"`
}

// ExecutionStep is one shell-like step a test runner performs before (Checkout)
// or after (Execute) running the test Command. Carried over from
// original_source/src/environment_provider/lib/test_suite.py, which builds this
// structure explicitly per recipe; the distilled spec leaves it an opaque map.
type ExecutionStep struct {
	Name string   `json:"name,omitempty"`
	Run  []string `json:"run,omitempty"`
}

// Execution describes how a test runner is meant to execute one Test.
type Execution struct {
	Checkout    []ExecutionStep   `json:"checkout,omitempty"`
	Command     string            `json:"command"`
	Execute     []ExecutionStep   `json:"execute,omitempty"`
	TestRunner  string            `json:"testRunner"`
	Environment map[string]string `json:"environment,omitempty"`
	Parameters  map[string]string `json:"parameters,omitempty"`
}

// Test is one recipe requested for execution; tests are distributed across
// reserved IUTs by the Splitter.
type Test struct {
	ID        string    `json:"id"`
	TestCase  TestCase  `json:"testCase"`
	Execution Execution `json:"execution"`
}

// EnvironmentRequestSpec is the desired checkout: reserve an IUT, an execution
// space, and a log area per sub-suite, and split Tests across them.
type EnvironmentRequestSpec struct {
	// Identifier is the testrun id this request belongs to.
	// +required
	Identifier string `json:"identifier"`
	// ID is this sub-request's own id.
	// +required
	ID string `json:"id"`
	// Name is a human-readable label for the request, used as a sub-suite name prefix.
	Name string `json:"name,omitempty"`
	// Identity is a package URL identifying the artifact under test.
	// +required
	Identity string `json:"identity"`
	// Artifact is an opaque description of the artifact under test, forwarded to providers.
	Artifact runtime.RawExtension `json:"artifact,omitempty"`
	// Dataset is the opaque key/value bag forwarded to every provider and prepare step.
	Dataset runtime.RawExtension `json:"dataset,omitempty"`
	// MinAmount is the minimum number of IUTs (and therefore sub-suites) required.
	// +kubebuilder:validation:Minimum=1
	MinAmount int `json:"minAmount"`
	// MaxAmount is the maximum number of IUTs to reserve in a single checkout iteration.
	MaxAmount int `json:"maxAmount"`
	// Providers names the provider id this request resolves through the Registry for each kind.
	// +required
	Providers ProviderRefs `json:"providers"`
	// Tests enumerates every recipe that must appear in exactly one sub-suite.
	Tests []Test `json:"tests"`
}

// EnvironmentRequestStatus reports checkout progress.
type EnvironmentRequestStatus struct {
	// Phase is one of Pending, Checking, Done, Failed.
	Phase string `json:"phase,omitempty"`
	// Message carries the formatted error on Failed.
	Message string `json:"message,omitempty"`
	// SubSuiteIDs lists the environment ids published so far.
	SubSuiteIDs []string `json:"subSuiteIds,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:printcolumn:name="Phase",type="string",JSONPath=".status.phase"
// +kubebuilder:printcolumn:name="Age",type="date",JSONPath=".metadata.creationTimestamp"

// EnvironmentRequest is the checkout request for one testrun's sub-suites.
type EnvironmentRequest struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   EnvironmentRequestSpec   `json:"spec"`
	Status EnvironmentRequestStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// EnvironmentRequestList contains a list of EnvironmentRequest.
type EnvironmentRequestList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []EnvironmentRequest `json:"items"`
}

func init() {
	SchemeBuilder.Register(&EnvironmentRequest{}, &EnvironmentRequestList{})
}
