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

// Package httpapi implements the boundary HTTP surface (§6.1): register,
// configure, checkout, and release. It is a thin translation layer — every
// endpoint either reads/writes the Registry directly or creates/reads an
// EnvironmentRequest cluster resource; all checkout/release semantics live in
// pkg/orchestrator and pkg/releaser.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/mitchellh/hashstructure/v2"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/yaml"

	"github.com/eiffel-community/etos-environment-provider/api/v1alpha1"
	"github.com/eiffel-community/etos-environment-provider/pkg/catalog"
	"github.com/eiffel-community/etos-environment-provider/pkg/controllers/environmentrequest"
	"github.com/eiffel-community/etos-environment-provider/pkg/metrics"
	"github.com/eiffel-community/etos-environment-provider/pkg/registry"
	"github.com/eiffel-community/etos-environment-provider/pkg/releaser"
	"github.com/eiffel-community/etos-environment-provider/pkg/resource"
)

// Server wires the Registry, Kubernetes client, and Releaser the boundary
// handlers need. One Server answers every request; it holds no per-request
// state.
type Server struct {
	registry  *registry.Registry
	k8s       client.Client
	releaser  *releaser.Releaser
	namespace string
}

// New builds a Server. namespace is where checkout requests create their
// EnvironmentRequest cluster resources.
func New(reg *registry.Registry, k8s client.Client, rel *releaser.Releaser, namespace string) *Server {
	return &Server{registry: reg, k8s: k8s, releaser: rel, namespace: namespace}
}

// Router builds the chi router this server answers on, matching the route
// table of §6.1.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(instrument)
	r.Post("/register", s.handleRegister)
	r.Post("/configure", s.handleConfigurePost)
	r.Get("/configure", s.handleConfigureGet)
	r.Post("/", s.handleCheckout)
	r.Get("/", s.handleRoot)
	return r
}

// instrument records HTTPRequestDuration for every request, labeled by route
// pattern (not raw path, to keep cardinality bounded) and response status.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		metrics.HTTPRequestDuration.WithLabelValues(route, r.Method, fmt.Sprint(ww.Status())).Observe(time.Since(start).Seconds())
	})
}

// decodeBody unmarshals r's body into v. sigs.k8s.io/yaml round-trips YAML
// through JSON, so the same struct tags serve both; the caller is a bench
// operator posting either a JSON tool payload or a hand-edited YAML file.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("empty request body")
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("reading request body: %w", err)
	}
	if len(data) == 0 {
		return errors.New("empty request body")
	}
	if ct := r.Header.Get("Content-Type"); ct == "application/yaml" || ct == "text/yaml" {
		return yaml.Unmarshal(data, v)
	}
	return json.Unmarshal(data, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// providerEntry is one of the three optional registrations a /register
// request body may carry.
type providerEntry struct {
	ID string `json:"id"`
	catalog.Registration
}

type registerRequest struct {
	IUTProvider            *providerEntry `json:"iut_provider,omitempty"`
	LogAreaProvider        *providerEntry `json:"log_area_provider,omitempty"`
	ExecutionSpaceProvider *providerEntry `json:"execution_space_provider,omitempty"`
}

// handleRegister implements POST /register: persist any of the three
// provider registrations present in the body. At least one is required.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	type candidate struct {
		kind  resource.Kind
		field string
		entry *providerEntry
	}
	candidates := []candidate{
		{resource.KindIUT, "iut_provider", req.IUTProvider},
		{resource.KindExecutionSpace, "execution_space_provider", req.ExecutionSpaceProvider},
		{resource.KindLogArea, "log_area_provider", req.LogAreaProvider},
	}

	registered := 0
	for _, c := range candidates {
		if c.entry == nil {
			continue
		}
		if c.entry.ID == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%s: id is required", c.field))
			return
		}
		if err := catalog.Put(ctx, s.registry, c.kind, c.entry.ID, c.entry.Registration); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Errorf("registering %s: %w", c.field, err))
			return
		}
		registered++
	}
	if registered == 0 {
		writeError(w, http.StatusBadRequest, errors.New("at least one of iut_provider, log_area_provider, execution_space_provider is required"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// configureRequest is the body of POST /configure: bind one testrun (carried
// in SuiteID, matching the spec's field name) to its three resolved provider
// ids plus a shared dataset.
type configureRequest struct {
	SuiteID         string         `json:"suite_id"`
	IUTProvider     string         `json:"iut_provider"`
	ExecutionSpace  string         `json:"execution_space_provider"`
	LogAreaProvider string         `json:"log_area_provider"`
	Dataset         map[string]any `json:"dataset"`
}

// handleConfigurePost implements POST /configure: validate the four required
// fields and that every provider id is already registered, then persist the
// binding. Hashing the body with hashstructure lets a byte-identical repeat
// configure skip the write entirely instead of re-issuing three Puts.
func (s *Server) handleConfigurePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req configureRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.SuiteID == "" || req.IUTProvider == "" || req.ExecutionSpace == "" || req.LogAreaProvider == "" {
		writeError(w, http.StatusBadRequest, errors.New("suite_id, iut_provider, execution_space_provider, and log_area_provider are required"))
		return
	}

	for kind, id := range map[resource.Kind]string{
		resource.KindIUT:            req.IUTProvider,
		resource.KindExecutionSpace: req.ExecutionSpace,
		resource.KindLogArea:        req.LogAreaProvider,
	} {
		_, ok, err := s.registry.Get(ctx, registry.ProviderCatalogKey(string(kind), id))
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Errorf("looking up %s provider %s: %w", kind, id, err))
			return
		}
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%s provider %q is not registered", kind, id))
			return
		}
	}

	hash, err := hashstructure.Hash(req, hashstructure.FormatV2, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("hashing configure request: %w", err))
		return
	}
	hashKey := registry.TestrunProviderKey(req.SuiteID, "hash")
	stored, ok, err := s.registry.Get(ctx, hashKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("reading previous configure hash: %w", err))
		return
	}
	if ok && string(stored) == fmt.Sprint(hash) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "unchanged"})
		return
	}

	binding := registry.Binding{
		IUT:            req.IUTProvider,
		ExecutionSpace: req.ExecutionSpace,
		LogArea:        req.LogAreaProvider,
		Dataset:        req.Dataset,
	}
	if err := s.registry.PutBinding(ctx, req.SuiteID, binding); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("persisting provider binding: %w", err))
		return
	}
	if err := s.registry.Put(ctx, hashKey, []byte(fmt.Sprint(hash)), 0); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("persisting configure hash: %w", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "configured"})
}

// handleConfigureGet implements GET /configure?suite_id=…: read back the
// binding written by handleConfigurePost.
func (s *Server) handleConfigureGet(w http.ResponseWriter, r *http.Request) {
	suiteID := r.URL.Query().Get("suite_id")
	if suiteID == "" {
		writeError(w, http.StatusBadRequest, errors.New("suite_id is required"))
		return
	}

	binding, err := s.registry.GetBinding(r.Context(), suiteID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"iut_provider":             binding.IUT,
		"execution_space_provider": binding.ExecutionSpace,
		"log_area_provider":        binding.LogArea,
		"dataset":                  binding.Dataset,
	})
}

// checkoutRequest is the body of POST /: trigger a checkout for suite_id's
// configured providers, one sub-suite per entry in suite_runner_ids.
type checkoutRequest struct {
	SuiteID        string   `json:"suite_id"`
	SuiteRunnerIDs []string `json:"suite_runner_ids"`
}

// handleCheckout implements POST /: resolve suite_id's provider binding,
// build an EnvironmentRequest carrying one placeholder Test per
// suite_runner_id (full recipe/TERCC sourcing is out of this system's
// scope), and create it. The controller in pkg/controllers/environmentrequest
// drives the actual checkout asynchronously; this handler only kicks it off
// and hands back the resulting cluster-resource name as the task id.
func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req checkoutRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.SuiteID == "" || len(req.SuiteRunnerIDs) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("suite_id and suite_runner_ids are required"))
		return
	}

	binding, err := s.registry.GetBinding(ctx, req.SuiteID)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("suite %s is not configured: %w", req.SuiteID, err))
		return
	}

	tests := make([]v1alpha1.Test, 0, len(req.SuiteRunnerIDs))
	for _, runnerID := range req.SuiteRunnerIDs {
		tests = append(tests, v1alpha1.Test{
			ID: uuid.NewString(),
			Execution: v1alpha1.Execution{
				TestRunner: runnerID,
			},
		})
	}

	taskID := uuid.NewString()
	env := &v1alpha1.EnvironmentRequest{
		ObjectMeta: metav1.ObjectMeta{
			Name:      taskID,
			Namespace: s.namespace,
		},
		Spec: v1alpha1.EnvironmentRequestSpec{
			Identifier: req.SuiteID,
			ID:         taskID,
			MinAmount:  1,
			MaxAmount:  len(req.SuiteRunnerIDs),
			Providers: v1alpha1.ProviderRefs{
				IUT:            binding.IUT,
				ExecutionSpace: binding.ExecutionSpace,
				LogArea:        binding.LogArea,
			},
			Tests: tests,
		},
	}
	if err := s.k8s.Create(ctx, env); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("creating checkout request: %w", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"result": "success",
		"data":   map[string]string{"id": taskID},
	})
}

// handleRoot implements the three GET / query-parameter forms: `?id=` status,
// `?release=` full-testrun release, and `?single_release=` single-environment
// release.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case q.Has("id"):
		s.handleStatus(w, r, q.Get("id"))
	case q.Has("release"):
		s.handleReleaseTask(w, r, q.Get("release"))
	case q.Has("single_release"):
		s.handleSingleRelease(w, r, q.Get("single_release"))
	default:
		writeError(w, http.StatusBadRequest, errors.New("one of id, release, single_release is required"))
	}
}

// handleStatus implements GET /?id=<task>: read back the EnvironmentRequest
// named taskID and translate its Status.Phase into the boundary's vocabulary.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, taskID string) {
	var env v1alpha1.EnvironmentRequest
	if err := s.k8s.Get(r.Context(), types.NamespacedName{Name: taskID, Namespace: s.namespace}, &env); err != nil {
		if apierrors.IsNotFound(err) {
			writeError(w, http.StatusNotFound, fmt.Errorf("task %s not found", taskID))
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	status := "PENDING"
	switch env.Status.Phase {
	case environmentrequest.PhaseDone:
		status = "DONE"
	case environmentrequest.PhaseFailed:
		status = "FAILED"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": status,
		"result": map[string]any{
			"description":   env.Status.Message,
			"sub_suite_ids": env.Status.SubSuiteIDs,
		},
	})
}

// handleReleaseTask implements GET /?release=<task>: resolve the task's
// owning testrun from its EnvironmentRequest and release every sub-suite
// belonging to it.
func (s *Server) handleReleaseTask(w http.ResponseWriter, r *http.Request, taskID string) {
	ctx := r.Context()

	var env v1alpha1.EnvironmentRequest
	if err := s.k8s.Get(ctx, types.NamespacedName{Name: taskID, Namespace: s.namespace}, &env); err != nil {
		if apierrors.IsNotFound(err) {
			writeError(w, http.StatusNotFound, fmt.Errorf("task %s not found", taskID))
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	success, message := s.releaser.ReleaseFullTestrun(ctx, env.Spec.Identifier)
	status := "DONE"
	if !success {
		status = "FAILED"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status, "message": message})
}

// handleSingleRelease implements GET /?single_release=<env_id>: release one
// previously published environment by id, per §6.1's canonical release path
// (see DESIGN.md's Open Question resolution).
func (s *Server) handleSingleRelease(w http.ResponseWriter, r *http.Request, envID string) {
	status := "DONE"
	if err := s.releaser.ReleaseBySingleID(r.Context(), envID); err != nil {
		status = "FAILED"
		writeJSON(w, http.StatusOK, map[string]string{"status": status, "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}
