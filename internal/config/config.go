package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAuthenticationExpiresInSeconds = 900
	DefaultConsentExpiresInSeconds        = 300

	envPrefix = "STONEBANKING_"
)

var (
	ErrMissingClientID   = errors.New("client id is required")
	ErrMissingPublicKey  = errors.New("public key is required")
	ErrMissingPrivateKey = errors.New("private key is required")
	ErrInvalidLifetime   = errors.New("token lifetime must not be negative")
)

// Settings holds everything the broker needs to talk to Stone Banking.
// PublicKey and PrivateKey accept either PEM text or a path to a PEM file.
type Settings struct {
	ClientID                       string      `yaml:"client_id" json:"clientId"`
	Environment                    Environment `yaml:"environment" json:"environment"`
	PublicKey                      string      `yaml:"public_key" json:"publicKey"`
	PrivateKey                     string      `yaml:"private_key" json:"privateKey"`
	AuthenticationExpiresInSeconds int         `yaml:"authentication_expires_in_seconds" json:"authenticationExpiresInSeconds"`
	ConsentExpiresInSeconds        int         `yaml:"consent_expires_in_seconds" json:"consentExpiresInSeconds"`
	ConsentDefaultRedirectURL      string      `yaml:"consent_default_redirect_url" json:"consentDefaultRedirectUrl"`
}

// Default returns settings with the default token lifetimes and the sandbox environment.
func Default() Settings {
	return Settings{
		Environment:                    Sandbox,
		AuthenticationExpiresInSeconds: DefaultAuthenticationExpiresInSeconds,
		ConsentExpiresInSeconds:        DefaultConsentExpiresInSeconds,
	}
}

// Validate checks the required fields in a fixed order and reports the first one missing,
// then rejects negative token lifetimes. A zero lifetime means unset.
func (s *Settings) Validate() error {
	if s.ClientID == "" {
		return ErrMissingClientID
	}
	if s.PublicKey == "" {
		return ErrMissingPublicKey
	}
	if s.PrivateKey == "" {
		return ErrMissingPrivateKey
	}
	if s.AuthenticationExpiresInSeconds < 0 {
		return fmt.Errorf("%w: authentication expires in %d seconds", ErrInvalidLifetime, s.AuthenticationExpiresInSeconds)
	}
	if s.ConsentExpiresInSeconds < 0 {
		return fmt.Errorf("%w: consent expires in %d seconds", ErrInvalidLifetime, s.ConsentExpiresInSeconds)
	}
	return nil
}

// WithDefaults returns a copy where unset (zero) lifetimes fall back to the defaults.
// Any other value is kept as configured.
func (s Settings) WithDefaults() Settings {
	if s.AuthenticationExpiresInSeconds == 0 {
		s.AuthenticationExpiresInSeconds = DefaultAuthenticationExpiresInSeconds
	}
	if s.ConsentExpiresInSeconds == 0 {
		s.ConsentExpiresInSeconds = DefaultConsentExpiresInSeconds
	}
	return s
}

// Load reads settings from a YAML file and applies STONEBANKING_* environment overrides.
// An empty path skips the file and starts from Default.
func Load(path string) (*Settings, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read settings file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	cfg = cfg.WithDefaults()
	return &cfg, nil
}

func applyEnvOverrides(cfg *Settings) error {
	if v := os.Getenv(envPrefix + "CLIENT_ID"); v != "" {
		cfg.ClientID = v
	}
	if v := os.Getenv(envPrefix + "ENVIRONMENT"); v != "" {
		env, err := ParseEnvironment(v)
		if err != nil {
			return err
		}
		cfg.Environment = env
	}
	if v := os.Getenv(envPrefix + "PUBLIC_KEY"); v != "" {
		cfg.PublicKey = v
	}
	if v := os.Getenv(envPrefix + "PRIVATE_KEY"); v != "" {
		cfg.PrivateKey = v
	}
	if v := os.Getenv(envPrefix + "AUTHENTICATION_EXPIRES_IN_SECONDS"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %sAUTHENTICATION_EXPIRES_IN_SECONDS: %w", envPrefix, err)
		}
		cfg.AuthenticationExpiresInSeconds = n
	}
	if v := os.Getenv(envPrefix + "CONSENT_EXPIRES_IN_SECONDS"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %sCONSENT_EXPIRES_IN_SECONDS: %w", envPrefix, err)
		}
		cfg.ConsentExpiresInSeconds = n
	}
	if v := os.Getenv(envPrefix + "CONSENT_DEFAULT_REDIRECT_URL"); v != "" {
		cfg.ConsentDefaultRedirectURL = v
	}
	return nil
}
