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

package v1alpha1_test

import (
	"testing"

	"github.com/eiffel-community/etos-environment-provider/api/v1alpha1"
)

func TestValidateIdentity(t *testing.T) {
	cases := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"empty", "", true},
		{"not a purl", "not-a-purl", true},
		{"valid purl", "pkg:golang/github.com/eiffel-community/etos-environment-provider@1.0.0", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			spec := v1alpha1.EnvironmentRequestSpec{Identity: c.id}
			err := spec.ValidateIdentity()
			if (err != nil) != c.wantErr {
				t.Fatalf("ValidateIdentity(%q): got err=%v, want error=%v", c.id, err, c.wantErr)
			}
		})
	}
}
