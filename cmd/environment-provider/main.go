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

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-logr/zapr"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	controllerruntime "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/eiffel-community/etos-environment-provider/api/v1alpha1"
	"github.com/eiffel-community/etos-environment-provider/internal/httpapi"
	"github.com/eiffel-community/etos-environment-provider/pkg/catalog"
	"github.com/eiffel-community/etos-environment-provider/pkg/config"
	"github.com/eiffel-community/etos-environment-provider/pkg/controllers/environmentrequest"
	"github.com/eiffel-community/etos-environment-provider/pkg/eventbus"
	"github.com/eiffel-community/etos-environment-provider/pkg/orchestrator"
	"github.com/eiffel-community/etos-environment-provider/pkg/provider"
	"github.com/eiffel-community/etos-environment-provider/pkg/publisher"
	"github.com/eiffel-community/etos-environment-provider/pkg/registry"
	"github.com/eiffel-community/etos-environment-provider/pkg/releaser"
	"github.com/eiffel-community/etos-environment-provider/pkg/resource"
	"github.com/eiffel-community/etos-environment-provider/pkg/secret"
)

var scheme = runtime.NewScheme()

func init() {
	must(clientgoscheme.AddToScheme(scheme))
	must(v1alpha1.AddToScheme(scheme))
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// newOrchestratorFactory resolves req.Spec.Providers through reg and builds
// the Orchestrator that will drive its checkout (§4.7). encryptor may be nil
// when ENCRYPTION_KEY is unset.
func newOrchestratorFactory(reg *registry.Registry, pub *publisher.Publisher, cfg *config.Config, encryptor *secret.Encryptor) environmentrequest.OrchestratorFactory {
	return func(ctx context.Context, req *v1alpha1.EnvironmentRequest) (*orchestrator.Orchestrator, error) {
		if err := req.Spec.ValidateIdentity(); err != nil {
			return nil, provider.NewConfigError(err)
		}

		testrunID := req.Spec.Identifier

		iut, err := catalog.Resolve(ctx, reg, resource.KindIUT, req.Spec.Providers.IUT, testrunID, cfg.WaitForIUTTimeout, cfg.MaxParallelIUTs, encryptor)
		if err != nil {
			return nil, fmt.Errorf("resolving iut provider: %w", err)
		}
		execSpace, err := catalog.Resolve(ctx, reg, resource.KindExecutionSpace, req.Spec.Providers.ExecutionSpace, testrunID, cfg.WaitForExecutionSpaceTimeout, cfg.MaxParallelIUTs, encryptor)
		if err != nil {
			return nil, fmt.Errorf("resolving execution space provider: %w", err)
		}
		logArea, err := catalog.Resolve(ctx, reg, resource.KindLogArea, req.Spec.Providers.LogArea, testrunID, cfg.WaitForLogAreaTimeout, cfg.MaxParallelIUTs, encryptor)
		if err != nil {
			return nil, fmt.Errorf("resolving log area provider: %w", err)
		}
		return orchestrator.New(iut, execSpace, logArea, pub, cfg.MaxParallelIUTs), nil
	}
}

func main() {
	cfg := &config.Config{}
	fs := &config.FlagSet{FlagSet: flag.NewFlagSet("environment-provider", flag.ExitOnError)}
	cfg.AddFlags(fs)
	if err := cfg.Parse(fs, os.Args[1:]...); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	zapLog, err := zap.NewProduction()
	must(err)
	defer zapLog.Sync() //nolint:errcheck
	logger := zapr.NewLogger(zapLog)
	log.SetLogger(logger)
	ctx := log.IntoContext(config.ToContext(context.Background(), cfg), logger)

	etcdClient, err := clientv3.New(clientv3.Config{
		Endpoints:   []string{fmt.Sprintf("%s:%d", cfg.EtcdHost, cfg.EtcdPort)},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		logger.Error(err, "unable to connect to etcd")
		os.Exit(1)
	}
	defer etcdClient.Close() //nolint:errcheck
	reg := registry.New(etcdClient)

	mgr, err := controllerruntime.NewManager(controllerruntime.GetConfigOrDie(), controllerruntime.Options{
		Scheme:                  scheme,
		LeaderElection:          true,
		LeaderElectionID:        "environment-provider-leader-election",
		LeaderElectionNamespace: os.Getenv("POD_NAMESPACE"),
	})
	if err != nil {
		logger.Error(err, "unable to start manager")
		os.Exit(1)
	}

	var encryptor *secret.Encryptor
	if cfg.EncryptionKey != "" {
		encryptor, err = secret.New(cfg.EncryptionKey)
		if err != nil {
			logger.Error(err, "unable to build credential encryptor")
			os.Exit(1)
		}
	}

	events := eventbus.NewGraphQLClient(cfg.EtosGraphQLServer, func(ctx context.Context, event eventbus.EnvironmentDefined) error {
		return nil
	})
	pub := publisher.New(publisher.ModeOrchestrated, reg, events, nil, mgr.GetClient(), cfg.EtosAPI)

	ctrl := environmentrequest.NewController(
		mgr.GetClient(),
		newOrchestratorFactory(reg, pub, cfg, encryptor),
		cfg.WaitForIUTTimeout, cfg.WaitForExecutionSpaceTimeout, cfg.WaitForLogAreaTimeout,
	)
	if err := ctrl.Register(ctx, mgr); err != nil {
		logger.Error(err, "unable to register environmentrequest controller")
		os.Exit(1)
	}

	rel := releaser.New(reg, func(ctx context.Context, kind resource.Kind, providerID string) (provider.Driver, error) {
		return catalog.Resolve(ctx, reg, kind, providerID, "", cfg.WaitForIUTTimeout, cfg.MaxParallelIUTs, encryptor)
	})
	boundary := httpapi.New(reg, mgr.GetClient(), rel, cfg.Namespace)
	go func() {
		logger.Info("starting http boundary", "address", cfg.HTTPBindAddress)
		if err := http.ListenAndServe(cfg.HTTPBindAddress, boundary.Router()); err != nil {
			logger.Error(err, "http boundary server exited")
			os.Exit(1)
		}
	}()

	logger.Info("starting manager")
	if err := mgr.Start(controllerruntime.SetupSignalHandler()); err != nil {
		logger.Error(err, "problem running manager")
		os.Exit(1)
	}
}
