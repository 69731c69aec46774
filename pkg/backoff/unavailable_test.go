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

package backoff_test

import (
	"testing"

	"github.com/eiffel-community/etos-environment-provider/pkg/backoff"
	"github.com/eiffel-community/etos-environment-provider/pkg/resource"
)

func TestUnavailable(t *testing.T) {
	u := backoff.New()

	if u.IsUnavailable(resource.KindIUT, "local-1") {
		t.Fatal("expected a fresh tracker to report nothing unavailable")
	}

	u.MarkUnavailable(resource.KindIUT, "local-1")
	if !u.IsUnavailable(resource.KindIUT, "local-1") {
		t.Fatal("expected local-1 to be marked unavailable")
	}
	if u.IsUnavailable(resource.KindExecutionSpace, "local-1") {
		t.Fatal("marking an IUT provider unavailable must not affect other kinds sharing its id")
	}

	u.Clear(resource.KindIUT, "local-1")
	if u.IsUnavailable(resource.KindIUT, "local-1") {
		t.Fatal("expected Clear to forget the unavailable mark")
	}
}
