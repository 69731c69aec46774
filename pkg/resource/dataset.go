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

package resource

import (
	"encoding/json"

	"github.com/imdario/mergo"
)

// Dataset is the ordered key/value attribute bag forwarded to every provider
// and prepare step. keys records insertion order, but lookups and JSON
// encoding both go through the values map (encoding/json writes map keys in
// sorted order), so the recorded order does not affect the wire form.
type Dataset struct {
	keys   []string
	values map[string]any
}

// NewDataset builds a Dataset from an initial map. Key order is the order
// Go's map iteration happens to produce; callers that need stable ordering
// should build up a Dataset with repeated Add calls instead.
func NewDataset(values map[string]any) *Dataset {
	d := &Dataset{values: map[string]any{}}
	for k, v := range values {
		d.Add(k, v)
	}
	return d
}

// Add appends or overwrites a single key.
func (d *Dataset) Add(key string, value any) {
	if _, exists := d.values[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

// Merge layers another map on top of the dataset, overwriting on conflict.
func (d *Dataset) Merge(patch map[string]any) {
	for k, v := range patch {
		d.Add(k, v)
	}
}

// Get returns a single attribute.
func (d *Dataset) Get(key string) (any, bool) {
	v, ok := d.values[key]
	return v, ok
}

// AsMap returns a shallow copy of every key/value pair.
func (d *Dataset) AsMap() map[string]any {
	out := make(map[string]any, len(d.values))
	for k, v := range d.values {
		out[k] = v
	}
	return out
}

// Copy performs a deep copy of the dataset via a JSON round-trip, matching
// the original implementation's contract that every worker in the IUT
// prepare pool receives its own independent clone (§5, §9). Callers that
// clone concurrently must serialize the call with a mutex: Copy itself does
// not synchronize access to the receiver.
func (d *Dataset) Copy() *Dataset {
	raw, err := json.Marshal(d.values)
	if err != nil {
		// values are always JSON-serializable provider/dataset attributes;
		// a marshal failure here means a caller stashed something it
		// shouldn't have, which is a programmer error, not a runtime one.
		panic("dataset: values not JSON-serializable: " + err.Error())
	}
	var cloned map[string]any
	if err := json.Unmarshal(raw, &cloned); err != nil {
		panic("dataset: round-trip clone failed: " + err.Error())
	}
	out := &Dataset{values: cloned, keys: append([]string(nil), d.keys...)}
	return out
}

// MergeInto returns a copy of dst with src merged over it using mergo with
// WithOverride: on a conflicting key, src's value wins. dst itself is not
// modified.
func MergeInto(dst, src map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(dst))
	for k, v := range dst {
		out[k] = v
	}
	if err := mergo.Map(&out, src, mergo.WithOverride); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Dataset) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.values)
}

func (d *Dataset) UnmarshalJSON(data []byte) error {
	var values map[string]any
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	d.values = values
	d.keys = nil
	for k := range values {
		d.keys = append(d.keys, k)
	}
	return nil
}
