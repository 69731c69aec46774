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

// Package blob is the opaque log-area upload transport collaborator (§1 Out
// of scope), used by the Publisher's upload mode to hand a serialized
// sub-suite payload to whatever storage backend the deployment uses.
package blob

import "context"

// Client uploads a file at path, returning the URI it can later be fetched
// from. suiteID/subSuiteID name the upload for the backend's own indexing;
// the Publisher does not interpret the returned URI beyond embedding it in
// the EnvironmentDefined event.
type Client interface {
	Upload(ctx context.Context, path, name, suiteID, subSuiteID string) (uri string, err error)
}
