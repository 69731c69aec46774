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

// EnvironmentRequestKind is the owner-reference Kind recorded on every
// orchestrated-mode Environment resource.
const EnvironmentRequestKind = "EnvironmentRequest"

// LabelSuiteID and LabelSubSuiteID are the labels the Publisher attaches to
// every orchestrated-mode Environment resource it creates.
const (
	LabelSuiteID    = "etos.eiffel-community.github.io/suite-id"
	LabelSubSuiteID = "etos.eiffel-community.github.io/sub-suite-id"
)

// EnvironmentSpec is the immutable, materialized sub-suite: exactly one IUT,
// executor, and log area, bound to a set of recipes.
type EnvironmentSpec struct {
	SuiteID            string               `json:"suiteId"`
	SubSuiteID         string               `json:"subSuiteId"`
	Name               string               `json:"name"`
	TestSuiteStartedID string               `json:"testSuiteStartedId,omitempty"`
	Priority           int                  `json:"priority"`
	TestRunner         string               `json:"testRunner"`
	Recipes            []Test               `json:"recipes"`
	Suite              runtime.RawExtension `json:"suite"`
}

// EnvironmentStatus reports the outcome of the cluster-resource create.
type EnvironmentStatus struct {
	URI string `json:"uri,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:printcolumn:name="SubSuite",type="string",JSONPath=".spec.subSuiteId"
// +kubebuilder:printcolumn:name="Age",type="date",JSONPath=".metadata.creationTimestamp"

// Environment is the orchestrated-mode cluster resource created once per
// sub-suite by the Publisher. Its name equals the sub-suite's environment id,
// giving the at-most-once guarantee for free: a second create for the same
// name is rejected by the API server.
type Environment struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   EnvironmentSpec   `json:"spec"`
	Status EnvironmentStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// EnvironmentList contains a list of Environment.
type EnvironmentList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Environment `json:"items"`
}

func init() {
	SchemeBuilder.Register(&Environment{}, &EnvironmentList{})
}
