package config

import (
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "config")
}

type sampleConfig struct {
	Name     string   `env:"SAMPLE_NAME" default:"anon"`
	Count    int      `env:"SAMPLE_COUNT" default:"1"`
	Ratio    float64  `env:"SAMPLE_RATIO" default:"0.5"`
	Enabled  bool     `env:"SAMPLE_ENABLED" default:"false"`
	Hosts    []string `env:"SAMPLE_HOSTS"`
	Required string   `env:"SAMPLE_REQUIRED" validate:"required"`
}

func clearSampleEnv() {
	for _, k := range []string{"SAMPLE_NAME", "SAMPLE_COUNT", "SAMPLE_RATIO", "SAMPLE_ENABLED", "SAMPLE_HOSTS", "SAMPLE_REQUIRED"} {
		os.Unsetenv(k)
	}
}

var _ = Describe("Load", func() {
	AfterEach(clearSampleEnv)

	It("falls back to struct tag defaults when the environment is unset", func() {
		clearSampleEnv()
		os.Setenv("SAMPLE_REQUIRED", "x")
		cfg := &sampleConfig{}
		Expect(Load(cfg)).To(Succeed())
		Expect(cfg.Name).To(Equal("anon"))
		Expect(cfg.Count).To(Equal(1))
		Expect(cfg.Ratio).To(Equal(0.5))
		Expect(cfg.Enabled).To(BeFalse())
	})

	It("overrides defaults from the environment", func() {
		clearSampleEnv()
		os.Setenv("SAMPLE_NAME", "explicit")
		os.Setenv("SAMPLE_COUNT", "42")
		os.Setenv("SAMPLE_ENABLED", "true")
		os.Setenv("SAMPLE_REQUIRED", "x")
		cfg := &sampleConfig{}
		Expect(Load(cfg)).To(Succeed())
		Expect(cfg.Name).To(Equal("explicit"))
		Expect(cfg.Count).To(Equal(42))
		Expect(cfg.Enabled).To(BeTrue())
	})

	It("splits a comma/semicolon separated list", func() {
		clearSampleEnv()
		os.Setenv("SAMPLE_HOSTS", "a.com, b.com; c.com")
		os.Setenv("SAMPLE_REQUIRED", "x")
		cfg := &sampleConfig{}
		Expect(Load(cfg)).To(Succeed())
		Expect(cfg.Hosts).To(Equal([]string{"a.com", "b.com", "c.com"}))
	})

	It("fails when a required field is left empty", func() {
		clearSampleEnv()
		cfg := &sampleConfig{}
		Expect(Load(cfg)).To(HaveOccurred())
	})

	It("rejects a non-pointer-to-struct argument", func() {
		Expect(Load(sampleConfig{})).To(HaveOccurred())
	})
})

var _ = Describe("Default", func() {
	It("populates Settings purely from tag defaults", func() {
		s := Default()
		Expect(s.Mode).To(Equal("single"))
		Expect(s.MaxWorkers).To(Equal(120))
		Expect(s.BasePort).To(Equal(20000))
		Expect(s.EnableCache).To(BeTrue())
	})
})
