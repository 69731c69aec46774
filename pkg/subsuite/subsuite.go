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

// Package subsuite builds the SubSuite record the Publisher persists and
// announces, from a checked-out IUT/executor/log-area slot (§4.5). Build is
// pure: no I/O, no provider calls.
package subsuite

import (
	"github.com/google/uuid"

	"github.com/eiffel-community/etos-environment-provider/api/v1alpha1"
	"github.com/eiffel-community/etos-environment-provider/pkg/resource"
)

// Environment is the instructions block handed to the test runner: it
// carries the environment id that also serves as the published event's
// unique event_id (§8's "uniqueness of environment id" invariant).
type Environment struct {
	EnvironmentID string            `json:"ENVIRONMENT_ID"`
	Variables     map[string]string `json:"variables,omitempty"`
}

// Instructions wraps the executor's environment variables in the shape the
// original test runner expects.
type Instructions struct {
	Environment Environment `json:"environment"`
}

// Executor pairs a checked-out execution space descriptor with the
// instructions the test runner reads its environment id from.
type Executor struct {
	Descriptor   *resource.Descriptor `json:"descriptor"`
	Instructions Instructions         `json:"instructions"`
}

// SubSuite is one fully materialized sub-suite (§3's SubSuite entity).
type SubSuite struct {
	Name               string               `json:"name"`
	SuiteID            string               `json:"suite_id"`
	SubSuiteID         string               `json:"sub_suite_id"`
	TestSuiteStartedID string               `json:"test_suite_started_id"`
	Priority           int                  `json:"priority"`
	TestRunner         string               `json:"test_runner"`
	Recipes            []v1alpha1.Test      `json:"recipes"`
	IUT                *resource.Descriptor `json:"iut"`
	Executor           Executor             `json:"executor"`
	LogArea            *resource.Descriptor `json:"log_area"`
	Artifact           map[string]any       `json:"artifact,omitempty"`
	Context            string               `json:"context,omitempty"`
}

// EnvironmentID returns the sub-suite's unique environment id, equal to
// Executor.Instructions.Environment.EnvironmentID per §8.
func (s SubSuite) EnvironmentID() string {
	return s.Executor.Instructions.Environment.EnvironmentID
}

// Build materializes one SubSuite for a single IUT slot within a test-runner
// group. suiteID is the testrun identifier (request.Identifier);
// testSuiteStartedID and artifact come from the orchestrator's own
// configuration and are copied in verbatim.
func Build(
	suiteID string,
	testRunner string,
	priority int,
	testSuiteStartedID string,
	artifact map[string]any,
	contextID string,
	iut *resource.Descriptor,
	executor *resource.Descriptor,
	logArea *resource.Descriptor,
	recipes []v1alpha1.Test,
) SubSuite {
	envID := uuid.NewString()
	subSuiteID := uuid.NewString()

	return SubSuite{
		Name:               testRunner + "_" + subSuiteID,
		SuiteID:            suiteID,
		SubSuiteID:         subSuiteID,
		TestSuiteStartedID: testSuiteStartedID,
		Priority:           priority,
		TestRunner:         testRunner,
		Recipes:            recipes,
		IUT:                iut,
		Executor: Executor{
			Descriptor: executor,
			Instructions: Instructions{
				Environment: Environment{EnvironmentID: envID},
			},
		},
		LogArea:  logArea,
		Artifact: artifact,
		Context:  contextID,
	}
}
