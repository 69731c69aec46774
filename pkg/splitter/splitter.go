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

// Package splitter assigns freshly checked-out IUTs to test-runner groups
// and distributes each group's recipes round-robin across its IUTs (§4.4).
package splitter

import (
	"math"

	"github.com/eiffel-community/etos-environment-provider/pkg/resource"
)

// IUTSlot tracks one IUT's assignment within a TestRunnerGroup for the
// duration of a single checkout iteration.
type IUTSlot struct {
	IUT        *resource.Descriptor
	Executor   *resource.Descriptor
	LogArea    *resource.Descriptor
	SubSuiteID string
	Recipes    []Recipe
}

// Recipe is the minimal shape the splitter needs from a request's test; the
// orchestrator supplies the concrete api/v1alpha1.Test values.
type Recipe struct {
	ID string
	// Opaque carries whatever the caller needs to round-trip back into a
	// full api/v1alpha1.Test once split; the splitter never looks inside it.
	Opaque any
}

// TestRunnerGroup is the internal per-iteration grouping (§3's
// TestRunnerGroup entity): one test runner's still-unsplit recipes plus
// whatever IUTs have been assigned to it so far.
type TestRunnerGroup struct {
	TestRunner     string
	Priority       int
	UnsplitRecipes []Recipe
	IUTs           []*IUTSlot
}

// NumberOfIUTs returns how many IUTs this group should receive out of total,
// given totalTestCount across every group in this iteration: §4.4 step 2,
// max(1, round(len(iuts) * percentage)), clamped to the group's own recipe
// count so a group is never assigned more IUTs than it has work for.
func (g *TestRunnerGroup) NumberOfIUTs(availableIUTs, totalTestCount int) int {
	if totalTestCount == 0 || len(g.UnsplitRecipes) == 0 {
		return 0
	}
	percentage := float64(len(g.UnsplitRecipes)) / float64(totalTestCount)
	n := int(math.Round(float64(availableIUTs) * percentage))
	if n < 1 {
		n = 1
	}
	if n > len(g.UnsplitRecipes) {
		n = len(g.UnsplitRecipes)
	}
	return n
}

// AssignIUTs distributes iuts across groups round robin, one IUT per
// still-unsatisfied group per pass, until every group has its NumberOfIUTs or
// the supply runs out (§4.4 step 3), matching
// original_source/src/environment_provider/splitter/split.py's
// `assign_iuts`: that function computes each test runner's `number_of_iuts`
// up front, then loops handing out `iuts.pop(0)` one at a time to every
// runner that still needs one, round robin, rather than filling one runner
// to completion before moving to the next. Caller must pass groups in a
// stable order (the orchestrator iterates its seeded slice, never a map) so
// repeated runs distribute identically. A group that cannot get any IUTs
// this round keeps its UnsplitRecipes intact and waits for the next
// orchestrator iteration. Returns the leftover, unassigned IUTs.
func AssignIUTs(groups []*TestRunnerGroup, iuts []*resource.Descriptor, totalTestCount int) []*resource.Descriptor {
	remaining := append([]*resource.Descriptor(nil), iuts...)

	targets := make([]int, len(groups))
	for i, group := range groups {
		targets[i] = group.NumberOfIUTs(len(iuts), totalTestCount)
	}

	for {
		progressed := false
		satisfied := true
		for i, group := range groups {
			if len(group.IUTs) < targets[i] {
				satisfied = false
				if len(remaining) == 0 {
					continue
				}
				group.IUTs = append(group.IUTs, &IUTSlot{IUT: remaining[0]})
				remaining = remaining[1:]
				progressed = true
			}
		}
		if satisfied || !progressed {
			break
		}
	}
	return remaining
}

// Split distributes group.UnsplitRecipes round-robin across group.IUTs
// (§4.4 step 4): pop one recipe, append to the next IUT's Recipes, repeat
// until exhausted. A no-op if the group has no IUTs yet.
func Split(group *TestRunnerGroup) {
	if len(group.IUTs) == 0 {
		return
	}
	for i, recipe := range group.UnsplitRecipes {
		slot := group.IUTs[i%len(group.IUTs)]
		slot.Recipes = append(slot.Recipes, recipe)
	}
	group.UnsplitRecipes = nil
}
