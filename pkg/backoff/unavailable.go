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

// Package backoff remembers which providers recently reported NotAvailable,
// so an orchestrator iteration can skip re-issuing WaitAndCheckout against a
// provider it already knows is dry, instead of burning an HTTP/rule
// evaluation on every 5s tick (§4.5 "Cancellation & timeouts").
package backoff

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/eiffel-community/etos-environment-provider/pkg/resource"
)

// UnavailableTTL is how long a provider is remembered as unavailable before
// it is given another chance.
const UnavailableTTL = 10 * time.Second

// CleanupInterval is how often expired entries are purged.
const CleanupInterval = time.Minute

// Unavailable tracks (kind, providerID) pairs that most recently returned a
// NotAvailable error.
type Unavailable struct {
	cache *cache.Cache
}

// New builds an empty Unavailable tracker.
func New() *Unavailable {
	return &Unavailable{cache: cache.New(UnavailableTTL, CleanupInterval)}
}

// MarkUnavailable records that kind/providerID just reported NotAvailable.
func (u *Unavailable) MarkUnavailable(kind resource.Kind, providerID string) {
	u.cache.SetDefault(key(kind, providerID), struct{}{})
}

// IsUnavailable reports whether kind/providerID was marked unavailable
// within the last UnavailableTTL.
func (u *Unavailable) IsUnavailable(kind resource.Kind, providerID string) bool {
	_, found := u.cache.Get(key(kind, providerID))
	return found
}

// Clear forgets kind/providerID, used once a checkout for it succeeds.
func (u *Unavailable) Clear(kind resource.Kind, providerID string) {
	u.cache.Delete(key(kind, providerID))
}

func key(kind resource.Kind, providerID string) string {
	return fmt.Sprintf("%s:%s", kind, providerID)
}
