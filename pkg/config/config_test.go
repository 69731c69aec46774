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

package config_test

import (
	"context"
	"flag"
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eiffel-community/etos-environment-provider/pkg/config"
)

func TestAPIs(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config")
}

var _ = Describe("Config", func() {
	var envState map[string]string
	var environmentVariables = []string{
		"WAIT_FOR_IUT_TIMEOUT",
		"WAIT_FOR_EXECUTION_SPACE_TIMEOUT",
		"WAIT_FOR_LOG_AREA_TIMEOUT",
		"EVENT_DATA_TIMEOUT",
		"MAX_PARALLEL_IUTS",
		"ENCRYPTION_KEY",
		"ETCD_HOST",
		"ETCD_PORT",
		"ETOS_API",
		"ETOS_GRAPHQL_SERVER",
	}

	var fs *config.FlagSet
	var cfg *config.Config

	BeforeEach(func() {
		envState = map[string]string{}
		for _, ev := range environmentVariables {
			if val, ok := os.LookupEnv(ev); ok {
				envState[ev] = val
			}
			os.Unsetenv(ev)
		}
		fs = &config.FlagSet{FlagSet: flag.NewFlagSet("environment-provider", flag.ContinueOnError)}
		cfg = &config.Config{}
		cfg.AddFlags(fs)
	})

	AfterEach(func() {
		for _, ev := range environmentVariables {
			os.Unsetenv(ev)
		}
		for ev, val := range envState {
			os.Setenv(ev, val)
		}
	})

	It("should fall back to defaults when nothing is set", func() {
		Expect(cfg.Parse(fs)).To(Succeed())
		Expect(cfg.WaitForIUTTimeout).To(Equal(3600 * time.Second))
		Expect(cfg.MaxParallelIUTs).To(Equal(10))
		Expect(cfg.EtcdHost).To(Equal("localhost"))
		Expect(cfg.EtcdPort).To(Equal(2379))
		Expect(cfg.EncryptionKey).To(Equal(""))
	})

	It("should fall back to env vars when flags aren't set", func() {
		os.Setenv("WAIT_FOR_IUT_TIMEOUT", "10s")
		os.Setenv("MAX_PARALLEL_IUTS", "3")
		os.Setenv("ETCD_HOST", "etcd.example.com")
		os.Setenv("ENCRYPTION_KEY", "some-fernet-key")
		fs = &config.FlagSet{FlagSet: flag.NewFlagSet("environment-provider", flag.ContinueOnError)}
		cfg = &config.Config{}
		cfg.AddFlags(fs)

		Expect(cfg.Parse(fs)).To(Succeed())
		Expect(cfg.WaitForIUTTimeout).To(Equal(10 * time.Second))
		Expect(cfg.MaxParallelIUTs).To(Equal(3))
		Expect(cfg.EtcdHost).To(Equal("etcd.example.com"))
		Expect(cfg.EncryptionKey).To(Equal("some-fernet-key"))
	})

	It("should prefer a CLI flag over its env var fallback", func() {
		os.Setenv("MAX_PARALLEL_IUTS", "3")
		fs = &config.FlagSet{FlagSet: flag.NewFlagSet("environment-provider", flag.ContinueOnError)}
		cfg = &config.Config{}
		cfg.AddFlags(fs)

		Expect(cfg.Parse(fs, "--max-parallel-iuts", "7")).To(Succeed())
		Expect(cfg.MaxParallelIUTs).To(Equal(7))
	})

	It("should reject a non-positive MAX_PARALLEL_IUTS", func() {
		Expect(cfg.Parse(fs, "--max-parallel-iuts", "0")).To(HaveOccurred())
	})

	It("should reject a non-positive wait-for timeout", func() {
		Expect(cfg.Parse(fs, "--wait-for-iut-timeout", "0s")).To(HaveOccurred())
	})

	It("round-trips through ToContext/FromContext", func() {
		Expect(cfg.Parse(fs)).To(Succeed())
		ctx := config.ToContext(context.Background(), cfg)
		Expect(config.FromContext(ctx)).To(BeIdenticalTo(cfg))
	})

	It("panics if nothing was stored in context", func() {
		Expect(func() { config.FromContext(context.Background()) }).To(Panic())
	})
})
