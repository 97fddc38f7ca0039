package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// duration accepts the human-readable forms ("5m", "30s") in YAML.
type duration time.Duration

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = duration(parsed)
	return nil
}

type yamlSession struct {
	RefreshInterval duration `yaml:"refresh_interval"`
	CheckInterval   duration `yaml:"check_interval"`
	ExpiryMargin    duration `yaml:"expiry_margin"`
}

type yamlConfig struct {
	API     API         `yaml:"api"`
	Session yamlSession `yaml:"session"`
	Store   Store       `yaml:"store"`
}

// Load returns the defaults overlaid with values from the YAML file at
// path. A missing file is not an error; the defaults stand.
func Load(path string) (*Config, error) {
	cfg, err := New()
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	var overlay yamlConfig
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return nil, err
	}

	applyString(&cfg.API.BaseURL, overlay.API.BaseURL)
	applyString(&cfg.API.SessionPath, overlay.API.SessionPath)
	applyString(&cfg.API.SignInPath, overlay.API.SignInPath)
	applyString(&cfg.API.CallbackPath, overlay.API.CallbackPath)
	applyString(&cfg.API.DefaultProvider, overlay.API.DefaultProvider)

	applyDuration(&cfg.Session.RefreshInterval, time.Duration(overlay.Session.RefreshInterval))
	applyDuration(&cfg.Session.CheckInterval, time.Duration(overlay.Session.CheckInterval))
	applyDuration(&cfg.Session.ExpiryMargin, time.Duration(overlay.Session.ExpiryMargin))

	applyString(&cfg.Store.Backend, overlay.Store.Backend)
	applyString(&cfg.Store.Path, overlay.Store.Path)
	applyString(&cfg.Store.Redis.Addr, overlay.Store.Redis.Addr)
	applyString(&cfg.Store.Redis.Password, overlay.Store.Redis.Password)
	applyString(&cfg.Store.Redis.Prefix, overlay.Store.Redis.Prefix)

	return cfg, nil
}

func applyString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func applyDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
