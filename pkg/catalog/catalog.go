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

// Package catalog resolves a provider id, as registered under
// /environment/provider/{kind}/{id} by the Register boundary operation
// (§6.1), into a live provider.Driver. It is the one place that decides
// whether a given provider id means "evaluate these rules locally" or "poll
// this HTTP endpoint".
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/eiffel-community/etos-environment-provider/pkg/provider"
	"github.com/eiffel-community/etos-environment-provider/pkg/provider/local"
	"github.com/eiffel-community/etos-environment-provider/pkg/provider/remote"
	"github.com/eiffel-community/etos-environment-provider/pkg/registry"
	"github.com/eiffel-community/etos-environment-provider/pkg/resource"
	"github.com/eiffel-community/etos-environment-provider/pkg/ruleset"
	"github.com/eiffel-community/etos-environment-provider/pkg/secret"
)

// DriverType selects which concrete Driver a Registration resolves to.
type DriverType string

const (
	DriverTypeLocal  DriverType = "local"
	DriverTypeRemote DriverType = "remote"
)

// Registration is the JSON document stored at a provider's catalog key.
type Registration struct {
	Type DriverType `json:"type"`

	// Local fields, used when Type == DriverTypeLocal.
	Rules      ruleset.Ruleset `json:"rules,omitempty"`
	Dataset    map[string]any  `json:"dataset,omitempty"`
	MaxWorkers int             `json:"maxWorkers,omitempty"`

	// Remote fields, used when Type == DriverTypeRemote.
	BaseURL string `json:"baseUrl,omitempty"`
	// Credentials are forwarded to the remote backend on every start
	// request, sealed under the process's ENCRYPTION_KEY if one is
	// configured (§6.5). Stored in the clear here: the catalog entry itself
	// is only as sensitive as the provider id it is keyed by, and re-sealing
	// happens fresh on every checkout rather than once at registration time.
	Credentials map[string]string `json:"credentials,omitempty"`
}

// Put persists registration at kind/id's catalog key.
func Put(ctx context.Context, reg *registry.Registry, kind resource.Kind, id string, registration Registration) error {
	return reg.PutJSON(ctx, registry.ProviderCatalogKey(string(kind), id), registration, 0)
}

// Resolve loads the registration for kind/id and builds the matching Driver.
// testrunID is only used by the remote driver, which sends it as the
// X-ETOS-ID header on every request. encryptor may be nil
// (ENCRYPTION_KEY unset); the remote driver then sends credentials
// unencrypted, matching §6.5's "if set" qualifier.
func Resolve(ctx context.Context, reg *registry.Registry, kind resource.Kind, id, testrunID string, timeout time.Duration, maxParallelIUTs int, encryptor *secret.Encryptor) (provider.Driver, error) {
	var registration Registration
	ok, err := reg.GetJSON(ctx, registry.ProviderCatalogKey(string(kind), id), &registration)
	if err != nil {
		return nil, fmt.Errorf("catalog: loading provider %s/%s: %w", kind, id, err)
	}
	if !ok {
		return nil, provider.NewNotConfiguredError(fmt.Errorf("provider %s/%s is not registered", kind, id))
	}

	switch registration.Type {
	case DriverTypeRemote:
		return remote.New(remote.Config{
			Kind:        kind,
			ProviderID:  id,
			BaseURL:     registration.BaseURL,
			TestrunID:   testrunID,
			Timeout:     timeout,
			Credentials: registration.Credentials,
			Encryptor:   encryptor,
		}), nil
	default:
		maxWorkers := registration.MaxWorkers
		if maxWorkers <= 0 {
			maxWorkers = maxParallelIUTs
		}
		dataset := resource.NewDataset(registration.Dataset)
		return local.New(kind, id, registration.Rules, dataset, timeout, maxWorkers), nil
	}
}
