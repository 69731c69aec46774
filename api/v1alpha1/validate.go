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

package v1alpha1

import (
	"fmt"

	"github.com/package-url/packageurl-go"
)

// ValidateIdentity checks that Identity is a well-formed package URL, per
// the EnvironmentRequest entity's "identity (package URL)" field.
func (s EnvironmentRequestSpec) ValidateIdentity() error {
	if s.Identity == "" {
		return fmt.Errorf("identity must be set")
	}
	if _, err := packageurl.FromString(s.Identity); err != nil {
		return fmt.Errorf("identity %q is not a valid package url: %w", s.Identity, err)
	}
	return nil
}
