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

// Package ruleset implements the small declarative DSL the local,
// rule-evaluated provider driver (§4.2.1) runs against a dataset: four named
// slots (list, checkout, checkin, and — IUT only — prepare), each a JMESPath
// expression evaluated against a JSON-shaped view of the dataset. §9 of the
// spec calls this out as "an interface with one implementation per DSL node
// and a variant type for results, plus a pluggable function eval(node,
// dataset) → value" — Evaluator below is that pluggable function, defaulted
// to a JMESPath-backed implementation.
package ruleset

import (
	"fmt"

	"github.com/jmespath/go-jmespath"
)

// Node is one named JMESPath expression within a Ruleset.
type Node struct {
	Name       string
	Expression string
}

// Evaluator evaluates a Node's expression against data and returns the
// result. The default, JMESPathEvaluator, is swappable so tests can stub
// deterministic results without depending on expression syntax.
type Evaluator func(node Node, data map[string]any) (any, error)

// JMESPathEvaluator compiles and evaluates node.Expression as a JMESPath
// query. An empty expression is a configuration error: every slot must be
// explicit in a ruleset, even if it is the literal `null`.
func JMESPathEvaluator(node Node, data map[string]any) (any, error) {
	if node.Expression == "" {
		return nil, fmt.Errorf("ruleset: node %q has no expression", node.Name)
	}
	result, err := jmespath.Search(node.Expression, data)
	if err != nil {
		return nil, fmt.Errorf("ruleset: evaluating node %q: %w", node.Name, err)
	}
	return result, nil
}

// Ruleset is the four (or, for non-IUT kinds, three) slots a local driver
// evaluates. Prepare is only ever populated for the IUT ruleset; evaluating
// it for ExecutionSpace/LogArea rulesets is a programmer error.
type Ruleset struct {
	List     Node
	Checkout Node
	Checkin  Node
	Prepare  []Node
}

// ListResult is the shape the `list` slot must produce: every candidate the
// pool could in principle offer, and the subset currently free.
type ListResult struct {
	Possible  []map[string]any
	Available []map[string]any
}

// ParseListResult coerces the raw JMESPath result of the list slot into a
// ListResult. The expression is expected to produce an object with
// `possible` and `available` keys, each a list of descriptor attribute maps.
func ParseListResult(raw any) (ListResult, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return ListResult{}, fmt.Errorf("ruleset: list result is not an object: %#v", raw)
	}
	possible, err := toMapSlice(m["possible"])
	if err != nil {
		return ListResult{}, fmt.Errorf("ruleset: list.possible: %w", err)
	}
	available, err := toMapSlice(m["available"])
	if err != nil {
		return ListResult{}, fmt.Errorf("ruleset: list.available: %w", err)
	}
	return ListResult{Possible: possible, Available: available}, nil
}

func toMapSlice(raw any) ([]map[string]any, error) {
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("not a list: %#v", raw)
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("list item is not an object: %#v", item)
		}
		out = append(out, m)
	}
	return out, nil
}

// IsFalsy mirrors the Python-ism §4.2.1 step 3 leans on: a prepare step
// "producing any falsy step result fails that IUT". Go has no universal
// truthiness, so this enumerates the values a JMESPath expression can
// produce that the ruleset language treats as failure.
func IsFalsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case string:
		return t == ""
	case float64:
		return t == 0
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}
