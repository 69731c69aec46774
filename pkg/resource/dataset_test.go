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

package resource_test

import (
	"testing"

	"github.com/eiffel-community/etos-environment-provider/pkg/resource"
)

func TestAddAndGet(t *testing.T) {
	d := resource.NewDataset(nil)
	d.Add("region", "eu-west")

	v, ok := d.Get("region")
	if !ok || v != "eu-west" {
		t.Fatalf("expected region=eu-west, got %v, ok=%v", v, ok)
	}
}

func TestAddOverwritesExistingKey(t *testing.T) {
	d := resource.NewDataset(map[string]any{"region": "eu-west"})
	d.Add("region", "us-east")

	v, _ := d.Get("region")
	if v != "us-east" {
		t.Fatalf("expected Add to overwrite an existing key, got %v", v)
	}
}

func TestMergeLayersOnTopAndAddsNewKeys(t *testing.T) {
	d := resource.NewDataset(map[string]any{"region": "eu-west", "zone": "a"})
	d.Merge(map[string]any{"region": "us-east", "shard": "3"})

	m := d.AsMap()
	if m["region"] != "us-east" {
		t.Fatalf("expected region to be overwritten to us-east, got %v", m["region"])
	}
	if m["zone"] != "a" {
		t.Fatalf("expected zone to survive the merge untouched, got %v", m["zone"])
	}
	if m["shard"] != "3" {
		t.Fatalf("expected shard to be added by the merge, got %v", m["shard"])
	}
}

func TestAsMapReturnsAShallowCopy(t *testing.T) {
	d := resource.NewDataset(map[string]any{"region": "eu-west"})
	m := d.AsMap()
	m["region"] = "mutated"

	v, _ := d.Get("region")
	if v != "eu-west" {
		t.Fatalf("expected mutating AsMap's result not to affect the dataset, got %v", v)
	}
}

func TestCopyIsIndependentOfTheOriginal(t *testing.T) {
	d := resource.NewDataset(map[string]any{"region": "eu-west", "nested": map[string]any{"k": "v"}})
	clone := d.Copy()

	clone.Add("region", "us-east")

	original, _ := d.Get("region")
	cloned, _ := clone.Get("region")
	if original != "eu-west" {
		t.Fatalf("expected the original dataset to be unaffected by mutating the clone, got %v", original)
	}
	if cloned != "us-east" {
		t.Fatalf("expected the clone to carry the mutation, got %v", cloned)
	}
}

func TestCopyPanicsOnNonSerializableValue(t *testing.T) {
	d := resource.NewDataset(map[string]any{"fn": func() {}})

	defer func() {
		if recover() == nil {
			t.Fatal("expected Copy to panic on a non-JSON-serializable value")
		}
	}()
	d.Copy()
}

func TestMergeIntoOverridesDestinationKeys(t *testing.T) {
	dst := map[string]any{"region": "eu-west", "zone": "a"}
	src := map[string]any{"region": "us-east"}

	merged, err := resource.MergeInto(dst, src)
	if err != nil {
		t.Fatalf("MergeInto: %v", err)
	}
	if merged["region"] != "us-east" {
		t.Fatalf("expected src to override region, got %v", merged["region"])
	}
	if merged["zone"] != "a" {
		t.Fatalf("expected zone to survive untouched, got %v", merged["zone"])
	}
	if dst["region"] != "eu-west" {
		t.Fatal("expected MergeInto not to mutate its dst argument in place")
	}
}

func TestDatasetJSONRoundTrip(t *testing.T) {
	d := resource.NewDataset(map[string]any{"region": "eu-west", "shard": float64(3)})

	data, err := d.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded resource.Dataset
	if err := decoded.UnmarshalJSON(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	v, ok := decoded.Get("region")
	if !ok || v != "eu-west" {
		t.Fatalf("expected decoded region=eu-west, got %v, ok=%v", v, ok)
	}
}
