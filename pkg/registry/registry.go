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

// Package registry persists provider bindings, datasets, and sub-suite
// payloads in an etcd-style strongly-consistent key/value store (§4.3).
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/eiffel-community/etos-environment-provider/pkg/provider"
)

// Registry wraps an etcd v3 client with the key layout and helper
// operations the checkout pipeline needs.
type Registry struct {
	client *clientv3.Client
}

// New builds a Registry from an already-dialed etcd client. Dialing (host,
// port, dial timeout) is the caller's concern — cmd/environment-provider
// constructs the client from ETCD_HOST/ETCD_PORT per §6.5.
func New(client *clientv3.Client) *Registry {
	return &Registry{client: client}
}

// Key builders. These are the only place the literal layout from §4.3/§6.3
// is allowed to appear; every caller goes through them instead of
// constructing paths by hand.
func ProviderCatalogKey(kind, id string) string {
	return fmt.Sprintf("/environment/provider/%s/%s", kind, id)
}

func TestrunProviderKey(testrunID, field string) string {
	return fmt.Sprintf("/testrun/%s/provider/%s", testrunID, field)
}

func TestrunProviderPrefix(testrunID string) string {
	return fmt.Sprintf("/testrun/%s/provider/", testrunID)
}

func SubSuiteKey(testrunID, subID, envID string) string {
	return fmt.Sprintf("/testrun/%s/suite/%s/subsuite/%s/suite", testrunID, subID, envID)
}

func TaskIDKey(testrunID string) string {
	return fmt.Sprintf("/testrun/%s/environment-provider/task-id", testrunID)
}

func EnvironmentLocationKey(envID string) string {
	return fmt.Sprintf("/environment/%s/location", envID)
}

// Put writes value under key. A ttl of zero means no expiration.
func (r *Registry) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		_, err := r.client.Put(ctx, key, string(value))
		return err
	}
	lease, err := r.client.Grant(ctx, int64(ttl.Seconds()))
	if err != nil {
		return fmt.Errorf("registry: granting lease for %s: %w", key, err)
	}
	_, err = r.client.Put(ctx, key, string(value), clientv3.WithLease(lease.ID))
	return err
}

// PutJSON marshals v and writes it under key.
func (r *Registry) PutJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("registry: marshalling value for %s: %w", key, err)
	}
	return r.Put(ctx, key, data, ttl)
}

// Get returns the value stored at key, or ok=false if it does not exist.
func (r *Registry) Get(ctx context.Context, key string) ([]byte, bool, error) {
	resp, err := r.client.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if len(resp.Kvs) == 0 {
		return nil, false, nil
	}
	return resp.Kvs[0].Value, true, nil
}

// GetJSON reads key and unmarshals it into out.
func (r *Registry) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	data, ok, err := r.Get(ctx, key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return true, fmt.Errorf("registry: unmarshalling value for %s: %w", key, err)
	}
	return true, nil
}

// GetPrefix returns every key/value pair under prefix.
func (r *Registry) GetPrefix(ctx context.Context, prefix string) (map[string][]byte, error) {
	resp, err := r.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		out[string(kv.Key)] = kv.Value
	}
	return out, nil
}

// Delete removes a single key. Deleting an absent key is not an error.
func (r *Registry) Delete(ctx context.Context, key string) error {
	_, err := r.client.Delete(ctx, key)
	return err
}

// DeletePrefix removes every key under prefix in one best-effort range
// delete, matching §4.3's "range deletes are best-effort bulk".
func (r *Registry) DeletePrefix(ctx context.Context, prefix string) error {
	_, err := r.client.Delete(ctx, prefix, clientv3.WithPrefix())
	return err
}

// Watch streams updates to a single key.
func (r *Registry) Watch(ctx context.Context, key string) clientv3.WatchChan {
	return r.client.Watch(ctx, key)
}

// WatchPrefix streams updates to every key under prefix.
func (r *Registry) WatchPrefix(ctx context.Context, prefix string) clientv3.WatchChan {
	return r.client.Watch(ctx, prefix, clientv3.WithPrefix())
}

// waitForConfigurationInitialBackoff/Max bound the exponential backoff
// wait_for_configuration uses between get_prefix polls.
const (
	waitForConfigurationInitialBackoff = 200 * time.Millisecond
	waitForConfigurationMaxBackoff     = 5 * time.Second
)

// WaitForConfiguration polls the per-testrun provider binding prefix with
// exponential backoff until at least one key exists, or deadline elapses —
// in which case it returns a *provider.NotConfiguredError (§7).
func (r *Registry) WaitForConfiguration(ctx context.Context, testrunID string, deadline time.Time) error {
	backoff := waitForConfigurationInitialBackoff
	prefix := TestrunProviderPrefix(testrunID)
	for {
		entries, err := r.GetPrefix(ctx, prefix)
		if err != nil {
			return fmt.Errorf("registry: polling %s: %w", prefix, err)
		}
		if len(entries) > 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return provider.NewNotConfiguredError(fmt.Errorf("testrun %s never completed configure", testrunID))
		}
		select {
		case <-ctx.Done():
			return provider.NewNotConfiguredError(ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > waitForConfigurationMaxBackoff {
			backoff = waitForConfigurationMaxBackoff
		}
	}
}

// EnvironmentLocation is the reverse index the HTTP boundary's
// `single_release` endpoint needs: given only an environment id, find the
// testrun and sub-suite it belongs to so the Releaser can resolve its
// provider bindings.
type EnvironmentLocation struct {
	TestrunID string `json:"testrun_id"`
	SuiteID   string `json:"suite_id"`
}

// Binding is the per-testrun ProviderBinding record (§3's ProviderBinding
// entity): the three provider ids plus the dataset, all written together by
// Configure and read back together by the HTTP boundary's configure-status
// and checkout handlers.
type Binding struct {
	IUT            string         `json:"iut"`
	ExecutionSpace string         `json:"execution_space"`
	LogArea        string         `json:"log_area"`
	Dataset        map[string]any `json:"dataset"`
}

// PutBinding writes all four fields of a Binding as separate keys, matching
// the `/testrun/{id}/provider/{field}` layout rather than one combined blob
// — each field is independently readable/watchable.
func (r *Registry) PutBinding(ctx context.Context, testrunID string, b Binding) error {
	fields := map[string]any{
		"iut":             b.IUT,
		"execution_space": b.ExecutionSpace,
		"log_area":        b.LogArea,
		"dataset":         b.Dataset,
	}
	for field, value := range fields {
		if err := r.PutJSON(ctx, TestrunProviderKey(testrunID, field), value, 0); err != nil {
			return fmt.Errorf("registry: writing provider binding field %s for %s: %w", field, testrunID, err)
		}
	}
	return nil
}

// GetBinding reads all four fields of a testrun's ProviderBinding. Returns
// *provider.NotConfiguredError if none of the fields exist yet.
func (r *Registry) GetBinding(ctx context.Context, testrunID string) (Binding, error) {
	entries, err := r.GetPrefix(ctx, TestrunProviderPrefix(testrunID))
	if err != nil {
		return Binding{}, err
	}
	if len(entries) == 0 {
		return Binding{}, provider.NewNotConfiguredError(fmt.Errorf("testrun %s has no provider binding", testrunID))
	}

	var b Binding
	prefix := TestrunProviderPrefix(testrunID)
	for key, value := range entries {
		switch key[len(prefix):] {
		case "iut":
			_ = json.Unmarshal(value, &b.IUT)
		case "execution_space":
			_ = json.Unmarshal(value, &b.ExecutionSpace)
		case "log_area":
			_ = json.Unmarshal(value, &b.LogArea)
		case "dataset":
			_ = json.Unmarshal(value, &b.Dataset)
		}
	}
	return b, nil
}
