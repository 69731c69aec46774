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

// Package config resolves the environment-provider's process-level
// configuration (§6.5), following the FlagSet-wrapping-flag.FlagSet,
// env-defaulted pattern of sigs.k8s.io/karpenter/pkg/operator/options: flags
// fall back to environment variables, Parse validates, and the resolved
// *Config is threaded through context.Context rather than kept as a package
// global.
package config

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/eiffel-community/etos-environment-provider/pkg/env"
)

// FlagSet wraps flag.FlagSet the way karpenter's operator/options.FlagSet
// does, giving Config.AddFlags a place to hang env-defaulted flag
// definitions off of.
type FlagSet struct {
	*flag.FlagSet
}

// Config holds every environment variable recognized by the environment
// provider (§6.5).
type Config struct {
	// WaitForIUTTimeout bounds how long the IUT driver's WaitAndCheckout may
	// retry before the orchestrator gives up (§4.5 "Cancellation & timeouts").
	WaitForIUTTimeout time.Duration
	// WaitForExecutionSpaceTimeout is the Execution Space driver's equivalent.
	WaitForExecutionSpaceTimeout time.Duration
	// WaitForLogAreaTimeout is the Log Area driver's equivalent.
	WaitForLogAreaTimeout time.Duration
	// EventDataTimeout holds EVENT_DATA_TIMEOUT. It is parsed and validated
	// here, but no other component of this module reads it.
	EventDataTimeout time.Duration
	// MaxParallelIUTs bounds the local driver's prepare worker pool (§4.2).
	MaxParallelIUTs int
	// EncryptionKey, if set, causes the remote driver to symmetric-encrypt
	// credentials before sending them (fernet, §6.5).
	EncryptionKey string
	// Request is the orchestrated-mode EnvironmentRequest cluster-resource
	// name.
	Request string
	// Testrun is the orchestrated-mode testrun cluster-resource name.
	Testrun string
	// EtcdHost/EtcdPort address the Registry's etcd cluster.
	EtcdHost string
	EtcdPort int
	// EtosAPI is the deterministic API root embedded into orchestrated-mode
	// environment URIs.
	EtosAPI string
	// EtosGraphQLServer is the event-lookup GraphQL endpoint.
	EtosGraphQLServer string
	// HTTPBindAddress is the address the boundary HTTP server (§6.1) listens
	// on.
	HTTPBindAddress string
	// Namespace is where the HTTP boundary creates EnvironmentRequest cluster
	// resources.
	Namespace string
}

// AddFlags registers every flag on fs, each defaulted from its environment
// variable (§6.5).
func (c *Config) AddFlags(fs *FlagSet) {
	fs.DurationVar(&c.WaitForIUTTimeout, "wait-for-iut-timeout", env.WithDefaultDuration("WAIT_FOR_IUT_TIMEOUT", 3600*time.Second), "How long to retry checking out IUTs before giving up.")
	fs.DurationVar(&c.WaitForExecutionSpaceTimeout, "wait-for-execution-space-timeout", env.WithDefaultDuration("WAIT_FOR_EXECUTION_SPACE_TIMEOUT", 3600*time.Second), "How long to retry checking out execution spaces before giving up.")
	fs.DurationVar(&c.WaitForLogAreaTimeout, "wait-for-log-area-timeout", env.WithDefaultDuration("WAIT_FOR_LOG_AREA_TIMEOUT", 3600*time.Second), "How long to retry checking out log areas before giving up.")
	fs.DurationVar(&c.EventDataTimeout, "event-data-timeout", env.WithDefaultDuration("EVENT_DATA_TIMEOUT", 10*time.Second), "Event data timeout (EVENT_DATA_TIMEOUT); not read by any component.")
	fs.IntVar(&c.MaxParallelIUTs, "max-parallel-iuts", env.WithDefaultInt("MAX_PARALLEL_IUTS", 10), "Maximum number of IUT prepare steps to run concurrently.")
	fs.StringVar(&c.EncryptionKey, "encryption-key", env.WithDefaultString("ENCRYPTION_KEY", ""), "Fernet key used to encrypt remote-driver credentials before sending, if set.")
	fs.StringVar(&c.Request, "request", env.WithDefaultString("REQUEST", ""), "Name of the EnvironmentRequest cluster resource, in orchestrated mode.")
	fs.StringVar(&c.Testrun, "testrun", env.WithDefaultString("TESTRUN", ""), "Name of the testrun cluster resource, in orchestrated mode.")
	fs.StringVar(&c.EtcdHost, "etcd-host", env.WithDefaultString("ETCD_HOST", "localhost"), "Hostname of the Registry's etcd cluster.")
	fs.IntVar(&c.EtcdPort, "etcd-port", env.WithDefaultInt("ETCD_PORT", 2379), "Port of the Registry's etcd cluster.")
	fs.StringVar(&c.EtosAPI, "etos-api", env.WithDefaultString("ETOS_API", ""), "API root embedded into orchestrated-mode environment URIs.")
	fs.StringVar(&c.EtosGraphQLServer, "etos-graphql-server", env.WithDefaultString("ETOS_GRAPHQL_SERVER", ""), "GraphQL endpoint used for event lookups.")
	fs.StringVar(&c.HTTPBindAddress, "http-bind-address", env.WithDefaultString("HTTP_BIND_ADDRESS", ":8080"), "Address the boundary HTTP server listens on.")
	fs.StringVar(&c.Namespace, "namespace", env.WithDefaultString("POD_NAMESPACE", "default"), "Namespace the HTTP boundary creates EnvironmentRequest resources in.")
}

// Parse parses args against fs and validates the result.
func (c *Config) Parse(fs *FlagSet, args ...string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		return fmt.Errorf("parsing flags: %w", err)
	}
	if c.MaxParallelIUTs <= 0 {
		return fmt.Errorf("validating flags/env vars: MAX_PARALLEL_IUTS must be positive, got %d", c.MaxParallelIUTs)
	}
	if c.WaitForIUTTimeout <= 0 || c.WaitForExecutionSpaceTimeout <= 0 || c.WaitForLogAreaTimeout <= 0 {
		return errors.New("validating flags/env vars: wait-for-*-timeout durations must be positive")
	}
	return nil
}

type configKey struct{}

// ToContext returns a copy of ctx carrying c.
func ToContext(ctx context.Context, c *Config) context.Context {
	return context.WithValue(ctx, configKey{}, c)
}

// FromContext returns the Config stored in ctx. It panics if none is
// present, matching karpenter's own operator/options.FromContext: missing
// configuration at this point is a wiring bug, not a recoverable condition.
func FromContext(ctx context.Context) *Config {
	v := ctx.Value(configKey{})
	if v == nil {
		panic("config doesn't exist in context")
	}
	return v.(*Config)
}
