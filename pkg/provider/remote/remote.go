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

// Package remote implements the HTTP provider driver (§4.2.2): a Driver that
// drives a remote provider backend's start/status/stop endpoints instead of
// evaluating a local ruleset.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/eiffel-community/etos-environment-provider/pkg/provider"
	"github.com/eiffel-community/etos-environment-provider/pkg/resource"
	"github.com/eiffel-community/etos-environment-provider/pkg/secret"
)

// statusPollPeriod is the sleep between two status polls while a checkout is
// PENDING on the remote side.
const statusPollPeriod = 2 * time.Second

// statusRetries/retryBackoffFactor bound the retry loops around the start and
// stop calls: up to statusRetries attempts, with retry-go's default growing
// delay starting at retryBackoffFactor. Every failed attempt is retried
// (transport errors and any unexpected status code) except a 400 from start.
// Status polls are not retried: a failed status call ends the checkout.
const (
	statusRetries      = 10
	retryBackoffFactor = time.Second
)

// checkedOutKey is the dataset key the remote driver records the resources it
// has handed out under. The local driver does not write it, and CheckinAll in
// both drivers releases from the driver's in-memory checkedOut map, not from
// this key.
const checkedOutKey = "checked_out_resources"

// status values the provider backend's status endpoint may report.
const (
	statusPending = "PENDING"
	statusDone    = "DONE"
	statusFailed  = "FAILED"
)

// Driver is the HTTP implementation of provider.Driver. One Driver instance
// belongs to exactly one request and must not be shared across concurrent
// checkouts.
type Driver struct {
	kind       resource.Kind
	id         string
	baseURL    string
	testrunID  string
	httpClient *http.Client
	timeout    time.Duration

	identity   string
	artifact   map[string]any
	dataset    *resource.Dataset
	context    map[string]any
	testRunner string
	environ    map[string]string

	// credentials and encryptor implement §6.5's ENCRYPTION_KEY behavior:
	// credentials are sealed under encryptor, if one is configured, before
	// every start request.
	credentials map[string]string
	encryptor   *secret.Encryptor

	mu         sync.Mutex
	checkedOut map[string]*resource.Descriptor
}

// Config carries everything the remote driver needs to build start requests;
// it is distinct from the driver itself so tests can construct a Driver
// without reaching into unexported fields.
type Config struct {
	Kind        resource.Kind
	ProviderID  string
	BaseURL     string
	TestrunID   string
	HTTPClient  *http.Client
	Timeout     time.Duration
	Identity    string
	Artifact    map[string]any
	Dataset     *resource.Dataset
	Context     map[string]any
	TestRunner  string
	Environment map[string]string
	Credentials map[string]string
	Encryptor   *secret.Encryptor
}

// New builds a remote Driver from cfg. A nil HTTPClient defaults to
// http.DefaultClient.
func New(cfg Config) *Driver {
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &Driver{
		kind:        cfg.Kind,
		id:          cfg.ProviderID,
		baseURL:     cfg.BaseURL,
		testrunID:   cfg.TestrunID,
		httpClient:  client,
		timeout:     cfg.Timeout,
		identity:    cfg.Identity,
		artifact:    cfg.Artifact,
		dataset:     cfg.Dataset,
		context:     cfg.Context,
		testRunner:  cfg.TestRunner,
		environ:     cfg.Environment,
		credentials: cfg.Credentials,
		encryptor:   cfg.Encryptor,
		checkedOut:  map[string]*resource.Descriptor{},
	}
}

func (d *Driver) Kind() resource.Kind { return d.kind }
func (d *Driver) ID() string          { return d.id }

type startRequest struct {
	Min         int               `json:"min"`
	Max         int               `json:"max"`
	Identity    string            `json:"identity"`
	Artifact    map[string]any    `json:"artifact"`
	Dataset     map[string]any    `json:"dataset"`
	Context     map[string]any    `json:"context"`
	TestRunner  string            `json:"test_runner"`
	Environment map[string]string `json:"environment"`
	// Credentials carries per-request secrets (e.g. upstream API tokens);
	// sealed under ENCRYPTION_KEY when one is configured (§6.5).
	Credentials map[string]string `json:"credentials,omitempty"`
}

type startResponse struct {
	ID string `json:"id"`
}

type statusResponse struct {
	Status      string           `json:"status"`
	Description string           `json:"description"`
	Resources   []map[string]any `json:"resources"`
}

// WaitAndCheckout implements the start/poll cycle of §4.2.2.
func (d *Driver) WaitAndCheckout(ctx context.Context, min, max int) ([]*resource.Descriptor, error) {
	logger := log.FromContext(ctx).WithValues("provider", d.id, "kind", string(d.kind))
	deadline := time.Now().Add(d.timeout)

	checkoutID, err := d.start(ctx, min, max)
	if err != nil {
		return nil, err
	}

	for {
		descriptors, done, err := d.pollStatus(ctx, checkoutID)
		if err != nil {
			return nil, err
		}
		if done {
			d.mu.Lock()
			for _, desc := range descriptors {
				if id, ok := desc.Get("id"); ok {
					d.checkedOut[fmt.Sprint(id)] = desc
				}
			}
			d.mu.Unlock()
			d.recordCheckedOut()
			return descriptors, nil
		}
		if time.Now().After(deadline) {
			return nil, provider.NewTimeoutError(fmt.Errorf("%s: checkout %s still pending after %s", d.id, checkoutID, d.timeout))
		}
		logger.V(1).Info("checkout pending", "checkout_id", checkoutID)
		select {
		case <-ctx.Done():
			return nil, provider.NewTimeoutError(ctx.Err())
		case <-time.After(statusPollPeriod):
		}
	}
}

func (d *Driver) start(ctx context.Context, min, max int) (string, error) {
	credentials, err := secret.EncryptCredentials(d.encryptor, d.credentials)
	if err != nil {
		return "", provider.NewConfigError(err)
	}

	body, err := json.Marshal(startRequest{
		Min:         min,
		Max:         max,
		Identity:    d.identity,
		Artifact:    d.artifact,
		Dataset:     d.dataset.AsMap(),
		Context:     d.context,
		TestRunner:  d.testRunner,
		Environment: d.environ,
		Credentials: credentials,
	})
	if err != nil {
		return "", provider.NewConfigError(err)
	}

	var out startResponse
	err = retry.Do(
		func() error {
			resp, err := d.doRequest(ctx, http.MethodPost, "start", body)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			switch resp.StatusCode {
			case http.StatusOK, http.StatusCreated, http.StatusAccepted:
				return json.NewDecoder(resp.Body).Decode(&out)
			case http.StatusBadRequest:
				return retry.Unrecoverable(provider.NewConfigError(fmt.Errorf("%s: start rejected: %s", d.id, readBody(resp))))
			default:
				return fmt.Errorf("%s: start returned %d", d.id, resp.StatusCode)
			}
		},
		retry.Attempts(statusRetries),
		retry.Delay(retryBackoffFactor),
		retry.Context(ctx),
		retry.RetryIf(retry.IsRecoverable),
	)
	if err != nil {
		if provider.IsConfigError(err) {
			return "", err
		}
		return "", provider.NewCheckoutFailedError(err)
	}
	return out.ID, nil
}

// pollStatus issues a single status call and translates the response into
// either a terminal outcome (done=true with descriptors, or an error) or a
// request to keep polling (done=false, err=nil).
func (d *Driver) pollStatus(ctx context.Context, checkoutID string) ([]*resource.Descriptor, bool, error) {
	resp, err := d.doRequest(ctx, http.MethodGet, "status?id="+checkoutID, nil)
	if err != nil {
		return nil, false, provider.NewCheckoutFailedError(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, false, provider.NewNotAvailableError(fmt.Errorf("%s: checkout %s not found", d.id, checkoutID))
	case http.StatusBadRequest:
		return nil, false, provider.NewConfigError(fmt.Errorf("%s: %s", d.id, readBody(resp)))
	case http.StatusOK:
		// fall through
	default:
		return nil, false, provider.NewCheckoutFailedError(fmt.Errorf("%s: status returned %d", d.id, resp.StatusCode))
	}

	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, false, provider.NewCheckoutFailedError(err)
	}

	switch status.Status {
	case statusPending:
		return nil, false, nil
	case statusFailed:
		return nil, false, provider.NewCheckoutFailedError(fmt.Errorf("%s: %s", d.id, status.Description))
	case statusDone:
		out := make([]*resource.Descriptor, 0, len(status.Resources))
		for _, attrs := range status.Resources {
			out = append(out, resource.NewDescriptor(d.id, attrs))
		}
		return out, true, nil
	default:
		return nil, false, provider.NewCheckoutFailedError(fmt.Errorf("%s: unknown status %q", d.id, status.Status))
	}
}

// Checkin POSTs the descriptor to stop. Idempotent: a descriptor already
// absent from checkedOut is still sent, since the backend is the source of
// truth for whether it was already released.
func (d *Driver) Checkin(ctx context.Context, desc *resource.Descriptor) error {
	body, err := json.Marshal([]map[string]any{desc.AsMap()})
	if err != nil {
		return provider.NewCheckinFailedError(err)
	}

	err = retry.Do(
		func() error {
			resp, err := d.doRequest(ctx, http.MethodPost, "stop", body)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
				return nil
			}
			return fmt.Errorf("%s: stop returned %d: %s", d.id, resp.StatusCode, readBody(resp))
		},
		retry.Attempts(statusRetries),
		retry.Delay(retryBackoffFactor),
		retry.Context(ctx),
		retry.RetryIf(retry.IsRecoverable),
	)
	if err != nil {
		if ctx.Err() != nil {
			return provider.NewTimeoutError(err)
		}
		return provider.NewCheckinFailedError(err)
	}

	d.mu.Lock()
	if id, ok := desc.Get("id"); ok {
		delete(d.checkedOut, fmt.Sprint(id))
	}
	d.mu.Unlock()
	return nil
}

// CheckinAll releases every resource this driver currently tracks,
// logging and continuing past individual failures.
func (d *Driver) CheckinAll(ctx context.Context) {
	logger := log.FromContext(ctx).WithValues("provider", d.id, "kind", string(d.kind))

	d.mu.Lock()
	pending := make([]*resource.Descriptor, 0, len(d.checkedOut))
	for _, desc := range d.checkedOut {
		pending = append(pending, desc)
	}
	d.mu.Unlock()

	for _, desc := range pending {
		if err := d.Checkin(ctx, desc); err != nil {
			logger.Error(err, "checkin failed during checkin_all", "resource", desc.AsMap())
		}
	}
}

// recordCheckedOut persists the driver's checked-out set into the request
// dataset under checkedOutKey, replacing whatever was stored there before.
// It runs after every successful checkout; Checkin does not update it.
func (d *Driver) recordCheckedOut() {
	d.mu.Lock()
	defer d.mu.Unlock()
	entries := make([]map[string]any, 0, len(d.checkedOut))
	for _, desc := range d.checkedOut {
		entries = append(entries, desc.AsMap())
	}
	d.dataset.Add(checkedOutKey, entries)
}

func (d *Driver) doRequest(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+"/"+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-ETOS-ID", d.testrunID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return d.httpClient.Do(req)
}

func readBody(resp *http.Response) string {
	data, _ := io.ReadAll(resp.Body)
	return string(data)
}
