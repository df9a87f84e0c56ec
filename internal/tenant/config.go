package tenant

import (
	"net/url"
	"strings"

	pkgerrors "github.com/xkayo32/pytake-sub002/pkg/errors"
	"github.com/xkayo32/pytake-sub002/pkg/retry"
)

type AuthType string

const (
	AuthBearer AuthType = "bearer"
	AuthAPIKey AuthType = "api_key"

	DefaultAPIKeyHeader = "X-API-Key"
)

type AuthConfig struct {
	Type       AuthType `mapstructure:"type" json:"type"`
	Token      string   `mapstructure:"token" json:"token"`
	HeaderName string   `mapstructure:"header_name" json:"header_name,omitempty"`
}

// Normalize maps the accepted spellings ("Bearer", "bearer", "ApiKey",
// "api_key", ...) onto the canonical constants. Unknown values are returned
// unchanged.
func (t AuthType) Normalize() AuthType {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(string(t)), "_", ""))
	switch key {
	case "bearer":
		return AuthBearer
	case "apikey":
		return AuthAPIKey
	default:
		return t
	}
}

// Header returns the header carrying the credential.
func (a AuthConfig) Header() (name, value string) {
	switch a.Type.Normalize() {
	case AuthBearer:
		return "Authorization", "Bearer " + a.Token
	case AuthAPIKey:
		name = a.HeaderName
		if name == "" {
			name = DefaultAPIKeyHeader
		}
		return name, a.Token
	default:
		return "", ""
	}
}

func (a AuthConfig) Validate() error {
	switch a.Type.Normalize() {
	case AuthBearer, AuthAPIKey:
	default:
		return pkgerrors.ErrValidation.WithMessage("auth.type must be bearer or api_key")
	}
	if a.Token == "" {
		return pkgerrors.ErrValidation.WithMessage("auth.token is required")
	}
	return nil
}

// Config is one tenant's webhook destination.
type Config struct {
	TenantID      string       `mapstructure:"tenant_id" json:"tenant_id"`
	BaseURL       string       `mapstructure:"base_url" json:"base_url"`
	SecretKey     string       `mapstructure:"secret_key" json:"secret_key"`
	EnabledEvents []string     `mapstructure:"enabled_events" json:"enabled_events"`
	Active        bool         `mapstructure:"active" json:"active"`
	Auth          *AuthConfig  `mapstructure:"auth" json:"auth,omitempty"`
	RetryPolicy   retry.Policy `mapstructure:"retry_policy" json:"retry_policy"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.TenantID) == "" {
		return pkgerrors.ErrValidation.WithMessage("tenant_id is required")
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		return pkgerrors.ErrValidation.WithMessage("base_url is required")
	}
	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return pkgerrors.ErrValidation.WithMessage("base_url must be an absolute URL")
	}
	if c.SecretKey == "" {
		return pkgerrors.ErrValidation.WithMessage("secret_key is required")
	}
	if c.Auth != nil {
		if err := c.Auth.Validate(); err != nil {
			return err
		}
	}
	return c.RetryPolicy.Validate()
}

// IsEventEnabled reports whether eventType should be delivered under cfg.
// An empty pattern list enables everything; "prefix.*" matches any type
// starting with "prefix.".
func IsEventEnabled(cfg Config, eventType string) bool {
	if !cfg.Active {
		return false
	}
	if len(cfg.EnabledEvents) == 0 {
		return true
	}
	for _, pattern := range cfg.EnabledEvents {
		if pattern == eventType {
			return true
		}
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok && strings.HasSuffix(prefix, ".") {
			if strings.HasPrefix(eventType, prefix) {
				return true
			}
		}
	}
	return false
}

func (c Config) clone() Config {
	out := c
	if c.EnabledEvents != nil {
		out.EnabledEvents = append([]string(nil), c.EnabledEvents...)
	}
	if c.Auth != nil {
		auth := *c.Auth
		auth.Type = auth.Type.Normalize()
		out.Auth = &auth
	}
	return out
}
