package config

import (
	"fmt"
	"net/url"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/storacha/cloud-mirror/pkg/config/app"
)

var log = logging.Logger("config")

// ServerConfig is the Redirect Service's raw configuration.
type ServerConfig struct {
	Host      string `mapstructure:"host" validate:"required" flag:"host" toml:"host"`
	Port      uint   `mapstructure:"port" validate:"required,min=1,max=65535" flag:"port" toml:"port"`
	PublicURL string `mapstructure:"public_url" validate:"omitempty,url" flag:"public-url" toml:"public_url"`

	MaxWaitForCachedCopy string   `mapstructure:"max_wait_for_cached_copy" flag:"max-wait-for-cached-copy" toml:"max_wait_for_cached_copy,omitempty"`
	// RedirectLimit bounds the number of redirects the validator follows.
	// nil means unset and defaults to 5; an explicit 0 is passed through
	// as-is, so a configured redirect_limit = 0 makes every validation fail
	// with ErrTooManyHops.
	RedirectLimit *int     `mapstructure:"redirect_limit" flag:"redirect-limit" toml:"redirect_limit,omitempty"`
	EnsureSSL            bool     `mapstructure:"ensure_ssl" flag:"ensure-ssl" toml:"ensure_ssl,omitempty"`
	Allowlist            []string `mapstructure:"allowlist" validate:"required,min=1" flag:"allowlist" toml:"allowlist"`

}

func (s ServerConfig) Validate() error {
	return validateConfig(s)
}

func (s ServerConfig) ToAppConfig() (app.ServerConfig, error) {
	var err error
	var publicURL *url.URL
	if s.PublicURL != "" {
		publicURL, err = url.Parse(s.PublicURL)
		if err != nil {
			return app.ServerConfig{}, fmt.Errorf("parsing public URL: %w", err)
		}
	} else {
		log.Warnf("public URL not set, using http://%s:%d", s.Host, s.Port)
		publicURL, err = url.Parse(fmt.Sprintf("http://%s:%d", s.Host, s.Port))
		if err != nil {
			return app.ServerConfig{}, fmt.Errorf("creating default public URL: %w", err)
		}
	}

	maxWait := time.Duration(0)
	if s.MaxWaitForCachedCopy != "" {
		maxWait, err = time.ParseDuration(s.MaxWaitForCachedCopy)
		if err != nil {
			return app.ServerConfig{}, fmt.Errorf("parsing max_wait_for_cached_copy: %w", err)
		}
	}

	redirectLimit := 5
	if s.RedirectLimit != nil {
		redirectLimit = *s.RedirectLimit
	}

	return app.ServerConfig{
		Host:                 s.Host,
		Port:                 s.Port,
		PublicURL:            publicURL,
		MaxWaitForCachedCopy: maxWait,
		RedirectLimit:        redirectLimit,
		EnsureSSL:            s.EnsureSSL,
		AllowedHostPatterns:  s.Allowlist,
	}, nil
}
