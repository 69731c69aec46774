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

// Package environmentrequest reconciles EnvironmentRequest resources in
// orchestrated mode (§4.6): each reconcile drives one Orchestrator.Checkout
// call to completion and records the outcome in status, mirroring how the
// teacher's NodeClaim controllers drive one cloud-provider operation per
// reconcile and report it back onto the resource.
package environmentrequest

import (
	"context"
	"fmt"
	"time"

	"k8s.io/client-go/util/workqueue"
	controllerruntime "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/manager"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	"github.com/eiffel-community/etos-environment-provider/api/v1alpha1"
	"github.com/eiffel-community/etos-environment-provider/pkg/orchestrator"
	"github.com/eiffel-community/etos-environment-provider/pkg/provider"
)

// Phase values recorded onto EnvironmentRequest.Status.Phase.
const (
	PhasePending  = "Pending"
	PhaseChecking = "Checking"
	PhaseDone     = "Done"
	PhaseFailed   = "Failed"
)

// OrchestratorFactory builds the per-request Orchestrator (and its three
// drivers) for req, resolving req.Spec.Providers through the Registry.
type OrchestratorFactory func(ctx context.Context, req *v1alpha1.EnvironmentRequest) (*orchestrator.Orchestrator, error)

// Controller reconciles EnvironmentRequest objects by running one
// Orchestrator.Checkout per generation and recording the result onto status.
type Controller struct {
	kubeClient client.Client
	orch       OrchestratorFactory

	iutTimeout, execTimeout, logTimeout time.Duration
}

// NewController builds a Controller. The three timeouts are the
// kind-specific WaitAndCheckout deadlines Checkout sums, plus slack, to
// derive its own overall deadline (§4.5).
func NewController(kubeClient client.Client, orch OrchestratorFactory, iutTimeout, execTimeout, logTimeout time.Duration) *Controller {
	return &Controller{kubeClient: kubeClient, orch: orch, iutTimeout: iutTimeout, execTimeout: execTimeout, logTimeout: logTimeout}
}

func (c *Controller) Name() string {
	return "environmentrequest.checkout"
}

func (c *Controller) Reconcile(ctx context.Context, req *v1alpha1.EnvironmentRequest) (reconcile.Result, error) {
	logger := log.FromContext(ctx).WithValues("testrun", req.Spec.Identifier, "request", req.Spec.ID)

	if req.Status.Phase == PhaseDone || req.Status.Phase == PhaseFailed {
		return reconcile.Result{}, nil
	}

	stored := req.DeepCopy()
	req.Status.Phase = PhaseChecking
	if err := c.kubeClient.Status().Patch(ctx, req, client.MergeFrom(stored)); err != nil {
		return reconcile.Result{}, client.IgnoreNotFound(err)
	}

	o, err := c.orch(ctx, req)
	if err != nil {
		return c.fail(ctx, req, fmt.Errorf("building orchestrator: %w", err))
	}

	if err := o.Checkout(ctx, req, req, c.iutTimeout, c.execTimeout, c.logTimeout); err != nil {
		if provider.IsNotAvailableError(err) {
			logger.V(1).Info("resources not yet available, requeuing")
			return reconcile.Result{RequeueAfter: 5 * time.Second}, nil
		}
		return c.fail(ctx, req, err)
	}

	stored = req.DeepCopy()
	req.Status.Phase = PhaseDone
	if err := c.kubeClient.Status().Patch(ctx, req, client.MergeFrom(stored)); err != nil {
		return reconcile.Result{}, client.IgnoreNotFound(err)
	}
	return reconcile.Result{}, nil
}

func (c *Controller) fail(ctx context.Context, req *v1alpha1.EnvironmentRequest, cause error) (reconcile.Result, error) {
	stored := req.DeepCopy()
	req.Status.Phase = PhaseFailed
	req.Status.Message = cause.Error()
	if err := c.kubeClient.Status().Patch(ctx, req, client.MergeFrom(stored)); err != nil {
		return reconcile.Result{}, client.IgnoreNotFound(err)
	}
	return reconcile.Result{}, cause
}

func (c *Controller) Register(ctx context.Context, m manager.Manager) error {
	return controllerruntime.NewControllerManagedBy(m).
		Named(c.Name()).
		For(&v1alpha1.EnvironmentRequest{}).
		WithOptions(controller.Options{
			RateLimiter:             workqueue.DefaultTypedControllerRateLimiter[reconcile.Request](),
			MaxConcurrentReconciles: 10,
		}).
		Complete(reconcile.AsReconciler(m.GetClient(), c))
}
