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

// Package metrics declares the process's Prometheus vectors, registered
// against controller-runtime's shared registry so they are served from the
// same /metrics endpoint the manager already exposes. Grounded on the
// promauto.NewCounterVec/NewHistogramVec pattern the pack's own
// server-go/pkg/syshealth/metrics.go uses for its gauges and counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	crmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

const namespace = "environment_provider"

var factory = promauto.With(crmetrics.Registry)

var (
	// HTTPRequestDuration times every boundary HTTP request (§6.1), labeled
	// by route and outcome status code.
	HTTPRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP boundary requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method", "status"})

	// CheckoutsTotal counts checkout loop outcomes per terminal error kind
	// ("" for success), keeping §7's error taxonomy visible as a metric.
	CheckoutsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "total",
		Help:      "Checkout attempts by terminal outcome",
	}, []string{"outcome"})

	// ReleasesTotal counts release outcomes, per kind (iut/execution-space/log-area).
	ReleasesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "release",
		Name:      "total",
		Help:      "Release attempts by resource kind and outcome",
	}, []string{"kind", "outcome"})
)
