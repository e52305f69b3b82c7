// Package config reads the pipeline configuration and wires the error
// logging chain.
package config

import (
	"io/ioutil"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/probewatch/probewatch/store"
)

const (
	StorePass = "STORE_PASS"
)

type Sentry struct {
	Enabled bool   `yaml:"enabled"`
	Dsn     string `yaml:"dsn"`
}

type Netinfo struct {
	Path      string `yaml:"path"`
	CacheSize int    `yaml:"cache-size"`
}

type Fingerprints struct {
	Path string `yaml:"path"`
}

type Processing struct {
	Parallelism    int    `yaml:"parallelism"`
	MeasurementDir string `yaml:"measurement-dir"`
	QuarantineDir  string `yaml:"quarantine-dir"`
}

type config struct {
	Store        store.Config `yaml:"store"`
	Sentry       Sentry       `yaml:"sentry"`
	Netinfo      Netinfo      `yaml:"netinfo"`
	Fingerprints Fingerprints `yaml:"fingerprints"`
	Processing   Processing   `yaml:"processing"`
}

func ReadConfig(path string) (config, error) {
	var conf config
	f, err := ioutil.ReadFile(path)
	if err != nil {
		return conf, err
	}
	if err := yaml.Unmarshal(f, &conf); err != nil {
		return conf, err
	}

	if pass := os.Getenv(StorePass); pass != "" {
		conf.Store.Password = pass
	}

	for _, env := range []string{StorePass} {
		os.Setenv(env, "")
	}

	return conf, nil
}
