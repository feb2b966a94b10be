// Package config loads the security configuration of the API from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	pkgconfig "food-diary/pkg/config"
	"food-diary/pkg/security/csp"
	"food-diary/pkg/security/gate"
	"food-diary/pkg/security/origin"
	"food-diary/pkg/security/token"
)

// SecurityConfig represents security configuration.
type SecurityConfig struct {
	Security struct {
		Origins struct {
			Allowed []string `yaml:"allowed"`
			// Bypass lets requests with neither Origin nor Referer through.
			Bypass bool `yaml:"bypass"`
		} `yaml:"origins"`
		CSP struct {
			ImageHosts    []string `yaml:"image_hosts"`
			DatabaseHosts []string `yaml:"database_hosts"`
			ReportOnly    bool     `yaml:"report_only"`
			ReportURI     string   `yaml:"report_uri"`
		} `yaml:"csp"`
		Gate struct {
			Limit            int           `yaml:"limit"`
			Window           time.Duration `yaml:"window"`
			RequireToken     bool          `yaml:"require_token"`
			RequireSignature bool          `yaml:"require_signature"`
			Burst            struct {
				Enabled bool    `yaml:"enabled"`
				RPS     float64 `yaml:"rps"`
				Size    int     `yaml:"size"`
			} `yaml:"burst"`
		} `yaml:"gate"`
		Upload struct {
			Limit            int           `yaml:"limit"`
			Window           time.Duration `yaml:"window"`
			SignatureTimeout time.Duration `yaml:"signature_timeout"`
		} `yaml:"upload"`
		TrustedProxies struct {
			Enabled bool     `yaml:"enabled"`
			CIDRs   []string `yaml:"cidrs"`
		} `yaml:"trusted_proxies"`
		JWT struct {
			SecretEnv string `yaml:"secret_env"`
			Issuer    string `yaml:"issuer"`
		} `yaml:"jwt"`
	} `yaml:"security"`
}

// DefaultSecurityConfig returns the configuration used when no file is given.
// It allows no cross-origin callers.
func DefaultSecurityConfig() *SecurityConfig {
	var c SecurityConfig
	c.Security.Gate.Limit = 100
	c.Security.Gate.Window = 15 * time.Minute
	c.Security.Gate.RequireSignature = true
	c.Security.Gate.Burst.RPS = 5
	c.Security.Gate.Burst.Size = 20
	c.Security.Upload.Limit = 10
	c.Security.Upload.Window = time.Minute
	c.Security.Upload.SignatureTimeout = 2 * time.Second
	c.Security.JWT.SecretEnv = "JWT_SECRET"
	return &c
}

// LoadSecurityConfig loads security configuration from a YAML file, applies
// environment overrides and validates the result. An empty path starts from
// DefaultSecurityConfig.
func LoadSecurityConfig(path string) (*SecurityConfig, error) {
	config := DefaultSecurityConfig()

	if path != "" {
		// #nosec G304 -- path is provided by trusted source (CLI flag or env), not user input
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.applyEnv()

	if err := validateSecurityConfig(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

// applyEnv lets deployments override the file without editing it.
func (c *SecurityConfig) applyEnv() {
	s := &c.Security
	s.Origins.Allowed = pkgconfig.GetEnvStringList("ALLOWED_ORIGINS", s.Origins.Allowed)
	s.Origins.Bypass = pkgconfig.GetEnvBool("ORIGIN_BYPASS", s.Origins.Bypass)
	s.CSP.ImageHosts = pkgconfig.GetEnvStringList("CSP_IMAGE_HOSTS", s.CSP.ImageHosts)
	s.CSP.DatabaseHosts = pkgconfig.GetEnvStringList("CSP_DATABASE_HOSTS", s.CSP.DatabaseHosts)
	s.CSP.ReportOnly = pkgconfig.GetEnvBool("CSP_REPORT_ONLY", s.CSP.ReportOnly)
	s.Gate.Limit = pkgconfig.GetEnvInt("GATE_LIMIT", s.Gate.Limit)
	s.Gate.Window = pkgconfig.GetEnvDuration("GATE_WINDOW", s.Gate.Window)
	s.Gate.RequireToken = pkgconfig.GetEnvBool("GATE_REQUIRE_TOKEN", s.Gate.RequireToken)
	s.Upload.Limit = pkgconfig.GetEnvInt("UPLOAD_LIMIT", s.Upload.Limit)
	s.Upload.Window = pkgconfig.GetEnvDuration("UPLOAD_WINDOW", s.Upload.Window)
	s.TrustedProxies.Enabled = pkgconfig.GetEnvBool("TRUSTED_PROXIES_ENABLED", s.TrustedProxies.Enabled)
	s.TrustedProxies.CIDRs = pkgconfig.GetEnvStringList("TRUSTED_PROXIES", s.TrustedProxies.CIDRs)
}

// validateSecurityConfig validates the loaded configuration.
func validateSecurityConfig(config *SecurityConfig) error {
	s := config.Security

	var errs []error
	for _, o := range s.Origins.Allowed {
		if o == "" {
			errs = append(errs, errors.New("origins.allowed must not contain empty entries"))
			break
		}
	}
	if s.Gate.Limit <= 0 {
		errs = append(errs, errors.New("gate.limit must be positive"))
	}
	if s.Gate.Window <= 0 {
		errs = append(errs, errors.New("gate.window must be positive"))
	}
	if s.Gate.Burst.Enabled && (s.Gate.Burst.RPS <= 0 || s.Gate.Burst.Size <= 0) {
		errs = append(errs, errors.New("gate.burst rps and size must be positive when enabled"))
	}
	if s.Upload.Limit <= 0 || s.Upload.Window <= 0 {
		errs = append(errs, errors.New("upload limit and window must be positive"))
	}
	if s.TrustedProxies.Enabled && len(s.TrustedProxies.CIDRs) == 0 {
		errs = append(errs, errors.New("trusted_proxies.cidrs is required when enabled"))
	}
	// Behind a proxy every caller reaches the API from the proxy's address.
	if s.Origins.Bypass && s.TrustedProxies.Enabled {
		errs = append(errs, errors.New("origins.bypass cannot be combined with trusted_proxies"))
	}
	if s.JWT.SecretEnv == "" {
		errs = append(errs, errors.New("jwt secret_env is required"))
	}
	if _, err := config.Policy(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// AllowList returns the parsed origin allow list.
func (c *SecurityConfig) AllowList() origin.AllowList {
	return origin.NewAllowList(c.Security.Origins.Allowed)
}

// Policy builds the Content-Security-Policy from the configured hosts.
func (c *SecurityConfig) Policy() (csp.Policy, error) {
	b := csp.AppPolicy(csp.Hosts{
		ImageDelivery: c.Security.CSP.ImageHosts,
		Database:      c.Security.CSP.DatabaseHosts,
	}).ReportOnly(c.Security.CSP.ReportOnly)
	if c.Security.CSP.ReportURI != "" {
		b.ReportURI(c.Security.CSP.ReportURI)
	}
	p := b.Policy()
	if err := p.Validate(); err != nil {
		return csp.Policy{}, fmt.Errorf("csp: %w", err)
	}
	return p, nil
}

// GateConfig maps the file onto the request gate.
func (c *SecurityConfig) GateConfig() gate.Config {
	return gate.Config{
		AllowList:    c.AllowList(),
		Limit:        c.Security.Gate.Limit,
		Window:       c.Security.Gate.Window,
		Token:        token.Validator{RequireSignature: c.Security.Gate.RequireSignature},
		RequireToken: c.Security.Gate.RequireToken,
	}
}

// JWTSecret reads the signing secret from the configured environment variable.
func (c *SecurityConfig) JWTSecret() ([]byte, error) {
	v := os.Getenv(c.Security.JWT.SecretEnv)
	if v == "" {
		return nil, fmt.Errorf("%s is required", c.Security.JWT.SecretEnv)
	}
	return []byte(v), nil
}
