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

package remote_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eiffel-community/etos-environment-provider/pkg/provider"
	"github.com/eiffel-community/etos-environment-provider/pkg/provider/remote"
	"github.com/eiffel-community/etos-environment-provider/pkg/resource"
)

func TestWaitAndCheckoutPollsUntilDone(t *testing.T) {
	var statusCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/start":
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "checkout-1"})
		case r.Method == http.MethodGet && r.URL.Path == "/status":
			statusCalls++
			if statusCalls < 2 {
				_ = json.NewEncoder(w).Encode(map[string]any{"status": "PENDING"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status":    "DONE",
				"resources": []map[string]any{{"id": "iut-1"}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	d := remote.New(remote.Config{
		Kind:       resource.KindIUT,
		ProviderID: "remote-1",
		BaseURL:    srv.URL,
		Timeout:    5 * time.Second,
		Dataset:    resource.NewDataset(nil),
	})

	got, err := d.WaitAndCheckout(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("WaitAndCheckout: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 descriptor, got %d", len(got))
	}
	if statusCalls < 2 {
		t.Fatalf("expected WaitAndCheckout to poll past the initial PENDING status, got %d calls", statusCalls)
	}
}

func TestWaitAndCheckoutReturnsCheckoutFailedOnFailedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/start":
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "checkout-1"})
		case r.URL.Path == "/status":
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "FAILED", "description": "backend out of capacity"})
		}
	}))
	defer srv.Close()

	d := remote.New(remote.Config{
		Kind:       resource.KindIUT,
		ProviderID: "remote-1",
		BaseURL:    srv.URL,
		Timeout:    5 * time.Second,
		Dataset:    resource.NewDataset(nil),
	})

	_, err := d.WaitAndCheckout(context.Background(), 1, 1)
	if !provider.IsCheckoutFailedError(err) {
		t.Fatalf("expected a CheckoutFailedError, got %v", err)
	}
}

func TestStartRejectsWithConfigErrorOn400(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("invalid dataset"))
		}
	}))
	defer srv.Close()

	d := remote.New(remote.Config{
		Kind:       resource.KindIUT,
		ProviderID: "remote-1",
		BaseURL:    srv.URL,
		Timeout:    5 * time.Second,
		Dataset:    resource.NewDataset(nil),
	})

	_, err := d.WaitAndCheckout(context.Background(), 1, 1)
	if !provider.IsConfigError(err) {
		t.Fatalf("expected a ConfigError, got %v", err)
	}
}

func TestCheckinSendsStopAndIsIdempotent(t *testing.T) {
	var stopCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/stop" {
			stopCalls++
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	d := remote.New(remote.Config{
		Kind:       resource.KindIUT,
		ProviderID: "remote-1",
		BaseURL:    srv.URL,
		Timeout:    5 * time.Second,
		Dataset:    resource.NewDataset(nil),
	})

	desc := resource.NewDescriptor("remote-1", map[string]any{"id": "iut-1"})
	if err := d.Checkin(context.Background(), desc); err != nil {
		t.Fatalf("first checkin: %v", err)
	}
	if err := d.Checkin(context.Background(), desc); err != nil {
		t.Fatalf("second checkin should also succeed (idempotent): %v", err)
	}
	if stopCalls != 2 {
		t.Fatalf("expected both checkins to reach the backend, got %d calls", stopCalls)
	}
}

// TestCheckinRetriesOnTransientFailureThenSucceeds exercises the retry-go
// backoff Checkin relies on for transient backend errors: the first stop
// call fails with a 500, the second succeeds.
func TestCheckinRetriesOnTransientFailureThenSucceeds(t *testing.T) {
	var stopCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/stop" {
			stopCalls++
			if stopCalls == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	d := remote.New(remote.Config{
		Kind:       resource.KindIUT,
		ProviderID: "remote-1",
		BaseURL:    srv.URL,
		Timeout:    5 * time.Second,
		Dataset:    resource.NewDataset(nil),
	})

	desc := resource.NewDescriptor("remote-1", map[string]any{"id": "iut-1"})
	if err := d.Checkin(context.Background(), desc); err != nil {
		t.Fatalf("expected Checkin to recover after one transient failure, got %v", err)
	}
	if stopCalls != 2 {
		t.Fatalf("expected exactly 2 stop attempts, got %d", stopCalls)
	}
}

// TestCheckinReturnsTimeoutWhenContextExpiresDuringRetry confirms a canceled
// context surfaces as a TimeoutError rather than a bare CheckinFailedError,
// per §7's terminal-error taxonomy.
func TestCheckinReturnsTimeoutWhenContextExpiresDuringRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := remote.New(remote.Config{
		Kind:       resource.KindIUT,
		ProviderID: "remote-1",
		BaseURL:    srv.URL,
		Timeout:    5 * time.Second,
		Dataset:    resource.NewDataset(nil),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	desc := resource.NewDescriptor("remote-1", map[string]any{"id": "iut-1"})
	err := d.Checkin(ctx, desc)
	if !provider.IsTimeoutError(err) {
		t.Fatalf("expected a TimeoutError once the context expires mid-retry, got %v", err)
	}
}
