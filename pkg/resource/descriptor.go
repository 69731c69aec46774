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

// Package resource holds the value types threaded through the checkout
// pipeline: the extensible attribute map every IUT / ExecutionSpace / LogArea
// is represented as, and the Dataset passed through drivers and prepare steps.
package resource

import (
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
)

// Kind identifies which of the three resource pools a Descriptor belongs to.
type Kind string

const (
	KindIUT            Kind = "iut"
	KindExecutionSpace Kind = "execution-space"
	KindLogArea        Kind = "log-area"
)

// Descriptor is an extensible attribute map plus a non-empty provider id.
// Once constructed, its ProviderID is immutable: Update only ever merges
// additional attributes, it never touches the provider id.
type Descriptor struct {
	providerID string
	attrs      map[string]any
}

// NewDescriptor builds a Descriptor for the given provider id. providerID
// must be non-empty; NewDescriptor does not check this, so callers that
// violate the invariant get a descriptor whose ProviderID() is empty.
func NewDescriptor(providerID string, attrs map[string]any) *Descriptor {
	return &Descriptor{
		providerID: providerID,
		attrs:      lo.Assign(map[string]any{}, attrs),
	}
}

// ProviderID returns the id of the driver that issued this resource.
func (d *Descriptor) ProviderID() string {
	if d == nil {
		return ""
	}
	return d.providerID
}

// AsMap returns a shallow copy of the descriptor's attributes.
func (d *Descriptor) AsMap() map[string]any {
	if d == nil {
		return map[string]any{}
	}
	return lo.Assign(map[string]any{}, d.attrs)
}

// Update shallow-merges patch into the descriptor's attributes. Keys in patch
// win on conflict; the provider id is never touched.
func (d *Descriptor) Update(patch map[string]any) {
	if d == nil || len(patch) == 0 {
		return
	}
	d.attrs = lo.Assign(d.attrs, patch)
}

// Get returns an attribute by key.
func (d *Descriptor) Get(key string) (any, bool) {
	if d == nil {
		return nil, false
	}
	v, ok := d.attrs[key]
	return v, ok
}

func (d *Descriptor) MarshalJSON() ([]byte, error) {
	m := d.AsMap()
	m["provider_id"] = d.providerID
	return json.Marshal(m)
}

func (d *Descriptor) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("unmarshalling resource descriptor: %w", err)
	}
	id, _ := m["provider_id"].(string)
	delete(m, "provider_id")
	d.providerID = id
	d.attrs = m
	return nil
}
