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

// Package publisher implements the Environment Publisher (§4.6): it
// persists a SubSuite and announces it, in one of two modes chosen when the
// Publisher is constructed (New's mode argument).
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/eiffel-community/etos-environment-provider/api/v1alpha1"
	"github.com/eiffel-community/etos-environment-provider/pkg/blob"
	"github.com/eiffel-community/etos-environment-provider/pkg/eventbus"
	"github.com/eiffel-community/etos-environment-provider/pkg/registry"
	"github.com/eiffel-community/etos-environment-provider/pkg/subsuite"
)

// Mode selects which of the two publication strategies a Publisher uses.
type Mode string

const (
	// ModeUpload serializes the sub-suite to blob storage and persists its
	// URI in the Registry.
	ModeUpload Mode = "upload"
	// ModeOrchestrated creates an Environment cluster resource per sub-suite
	// instead of uploading a blob.
	ModeOrchestrated Mode = "orchestrated"
)

// Publisher writes a SubSuite into persistent storage, emits an
// EnvironmentDefined event, and — in orchestrated mode — creates the
// corresponding Environment cluster resource.
type Publisher struct {
	mode     Mode
	registry *registry.Registry
	events   eventbus.Client
	blobs    blob.Client
	k8s      client.Client
	apiBase  string
}

// New builds a Publisher. blobs/k8s may be nil for the mode that does not
// use them (ModeUpload never touches k8s, ModeOrchestrated never touches
// blobs); apiBase is the deterministic API root orchestrated mode embeds
// into its URI (`{apiBase}/v1alpha/testrun/{env_id}`).
func New(mode Mode, reg *registry.Registry, events eventbus.Client, blobs blob.Client, k8s client.Client, apiBase string) *Publisher {
	return &Publisher{mode: mode, registry: reg, events: events, blobs: blobs, k8s: k8s, apiBase: apiBase}
}

// Publish writes suite and emits its EnvironmentDefined event. testrunID is
// request.Identifier (the owning testrun); owner is the originating
// EnvironmentRequest, used to build the owner reference in orchestrated mode.
func (p *Publisher) Publish(ctx context.Context, testrunID string, suite subsuite.SubSuite, owner *v1alpha1.EnvironmentRequest) error {
	var uri string
	var err error

	switch p.mode {
	case ModeOrchestrated:
		uri, err = p.publishOrchestrated(ctx, suite, owner)
	default:
		uri, err = p.publishUpload(ctx, testrunID, suite)
	}
	if err != nil {
		return fmt.Errorf("publisher: %w", err)
	}

	location := registry.EnvironmentLocation{TestrunID: testrunID, SuiteID: suite.SuiteID}
	if err := p.registry.PutJSON(ctx, registry.EnvironmentLocationKey(suite.EnvironmentID()), location, 0); err != nil {
		return fmt.Errorf("publisher: indexing environment location for %s: %w", suite.SubSuiteID, err)
	}

	event := eventbus.NewEnvironmentDefined(suite.EnvironmentID(), suite.Context, suite.Name, uri)
	if err := p.events.Publish(ctx, event); err != nil {
		return fmt.Errorf("publisher: publishing EnvironmentDefined for %s: %w", suite.SubSuiteID, err)
	}
	return nil
}

// publishUpload implements the upload-mode half of §4.6: serialize to a
// temp file, hand it to the Blob client, always clean up the temp file, then
// persist the sub-suite JSON under its Registry key.
func (p *Publisher) publishUpload(ctx context.Context, testrunID string, suite subsuite.SubSuite) (string, error) {
	data, err := json.Marshal(suite)
	if err != nil {
		return "", fmt.Errorf("marshalling sub-suite %s: %w", suite.SubSuiteID, err)
	}

	tmp, err := os.CreateTemp("", "subsuite-*.json")
	if err != nil {
		return "", fmt.Errorf("creating temp file for sub-suite %s: %w", suite.SubSuiteID, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing temp file for sub-suite %s: %w", suite.SubSuiteID, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing temp file for sub-suite %s: %w", suite.SubSuiteID, err)
	}

	uri, err := p.blobs.Upload(ctx, tmpPath, suite.Name, suite.SuiteID, suite.SubSuiteID)
	if err != nil {
		return "", fmt.Errorf("uploading sub-suite %s: %w", suite.SubSuiteID, err)
	}

	key := registry.SubSuiteKey(testrunID, suite.SuiteID, suite.EnvironmentID())
	if err := p.registry.Put(ctx, key, data, 0); err != nil {
		return "", fmt.Errorf("persisting sub-suite %s: %w", suite.SubSuiteID, err)
	}
	return uri, nil
}

// publishOrchestrated implements the orchestrated-mode half of §4.6: build
// and create an Environment resource whose name equals the sub-suite's
// environment id, giving at-most-once creation for free (a duplicate create
// is rejected by the API server as AlreadyExists).
func (p *Publisher) publishOrchestrated(ctx context.Context, suite subsuite.SubSuite, owner *v1alpha1.EnvironmentRequest) (string, error) {
	raw, err := json.Marshal(suite)
	if err != nil {
		return "", fmt.Errorf("marshalling sub-suite %s: %w", suite.SubSuiteID, err)
	}

	env := &v1alpha1.Environment{
		ObjectMeta: metav1.ObjectMeta{
			Name: suite.EnvironmentID(),
			Labels: map[string]string{
				v1alpha1.LabelSuiteID:    suite.SuiteID,
				v1alpha1.LabelSubSuiteID: suite.SubSuiteID,
			},
		},
		Spec: v1alpha1.EnvironmentSpec{
			SuiteID:            suite.SuiteID,
			SubSuiteID:         suite.SubSuiteID,
			Name:               suite.Name,
			TestSuiteStartedID: suite.TestSuiteStartedID,
			Priority:           suite.Priority,
			TestRunner:         suite.TestRunner,
			Recipes:            suite.Recipes,
			Suite:              runtime.RawExtension{Raw: raw},
		},
	}
	if owner != nil {
		env.OwnerReferences = append(env.OwnerReferences, *metav1.NewControllerRef(owner, v1alpha1.GroupVersion.WithKind(v1alpha1.EnvironmentRequestKind)))
	}

	if err := p.k8s.Create(ctx, env); err != nil {
		return "", fmt.Errorf("creating Environment resource for %s: %w", suite.SubSuiteID, err)
	}

	return fmt.Sprintf("%s/v1alpha/testrun/%s", p.apiBase, suite.EnvironmentID()), nil
}
