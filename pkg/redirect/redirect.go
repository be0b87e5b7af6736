// Package redirect implements the Redirect Service: the public HTTP surface
// that resolves a {service, region, url} triple to either a cached blob
// location or the original origin URL, polling the Cache Manager at 1Hz
// while a copy is in flight.
package redirect

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	logging "github.com/ipfs/go-log/v2"

	"github.com/storacha/cloud-mirror/pkg/cacheentry"
	"github.com/storacha/cloud-mirror/pkg/cachemanager"
	"github.com/storacha/cloud-mirror/pkg/httperr"
	"github.com/storacha/cloud-mirror/pkg/telemetry"
	"github.com/storacha/cloud-mirror/pkg/validator"
)

var log = logging.Logger("redirect")

// Config bounds a Server's polling behaviour.
type Config struct {
	// MaxWaitForCachedCopy is the total time a redirect request polls for a
	// cache entry to become present before falling back to the origin URL.
	// Zero means fall back immediately without polling at all.
	MaxWaitForCachedCopy time.Duration
	// PollInterval is the time between polls; the spec fixes this at 1Hz.
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	return c
}

// Server is the Redirect Service: a pool registry plus a shared validator
// used for the one-time validation performed on a cold (absent) poll.
type Server struct {
	mu        sync.RWMutex
	managers  map[string]*cachemanager.Manager
	validator *validator.Validator
	cfg       Config
}

// New returns a Server with no pools registered; call Register for each
// {service, region} pair the deployment serves.
func New(cfg Config, v *validator.Validator) *Server {
	return &Server{
		managers:  make(map[string]*cachemanager.Manager),
		validator: v,
		cfg:       cfg.withDefaults(),
	}
}

// Register binds a Cache Manager to a {service, region} pool. Registering
// the same pool twice is a misconfiguration and returns an error rather
// than silently shadowing the first registration.
func (s *Server) Register(service, region string, cm *cachemanager.Manager) error {
	poolID, err := cacheentry.ParsePool(service, region)
	if err != nil {
		return fmt.Errorf("registering pool: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.managers[poolID]; exists {
		return fmt.Errorf("pool %s already registered", poolID)
	}
	s.managers[poolID] = cm
	return nil
}

func (s *Server) managerFor(poolID string) (*cachemanager.Manager, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cm, ok := s.managers[poolID]
	return cm, ok
}

// RegisterRoutes mounts the redirect, purge, ping and api-reference routes
// onto e. It satisfies health.RouteRegistrar so server.NewServer can
// assemble one echo instance from independently constructed components.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/v1/redirect/:service/:region/:b64url", s.handleRedirect)
	e.GET("/v1/redirect/:service/:region/:b64url/:err", s.handleRedirect)
	e.DELETE("/v1/purge/:service/:region/:b64url", s.handlePurge)
	e.DELETE("/v1/purge/:service/:region/:b64url/:err", s.handlePurge)
	e.GET("/v1/ping", s.handlePing)
	e.GET("/v1/api-reference", s.handleAPIReference)
}

func decodeRequest(c echo.Context) (poolID, rawURL string, herr *httperr.Error) {
	if c.Param("err") != "" {
		return "", "", httperr.New(httperr.KindInvalidInput, "decode-request", fmt.Errorf("malformed path: unexpected trailing segment %q", c.Param("err")))
	}
	service, region := c.Param("service"), c.Param("region")
	poolID, err := cacheentry.ParsePool(service, region)
	if err != nil {
		return "", "", httperr.New(httperr.KindInvalidInput, "decode-request", err)
	}
	rawURL, err = url.PathUnescape(c.Param("b64url"))
	if err != nil {
		return "", "", httperr.New(httperr.KindInvalidInput, "decode-request", fmt.Errorf("decoding url: %w", err))
	}
	if rawURL == "" {
		return "", "", httperr.New(httperr.KindInvalidInput, "decode-request", errors.New("empty url"))
	}
	return poolID, rawURL, nil
}

func writeError(c echo.Context, herr *httperr.Error) error {
	log.Debugw("request failed", "op", herr.Op, "kind", herr.Kind, "err", herr.Unwrap())
	return c.JSON(herr.StatusCode(), map[string]string{"error": herr.PublicMessage()})
}

// handleRedirect implements the 1Hz poll loop described in the external
// interface: present resolves immediately, pending/error/absent poll until
// MaxWaitForCachedCopy elapses, at which point the request falls back to a
// 302 to the original URL.
func (s *Server) handleRedirect(c echo.Context) error {
	poolID, rawURL, herr := decodeRequest(c)
	if herr != nil {
		return writeError(c, herr)
	}
	cm, ok := s.managerFor(poolID)
	if !ok {
		return writeError(c, httperr.New(httperr.KindNotFound, "handle-redirect", fmt.Errorf("no pool registered for %s", poolID)))
	}

	ctx := c.Request().Context()
	start := time.Now()
	deadline := start.Add(s.cfg.MaxWaitForCachedCopy)
	validated := false

	for poll := 0; ; poll++ {
		if !time.Now().Before(deadline) {
			return s.fallbackToOrigin(c, poolID, rawURL)
		}

		info, err := cm.GetURLForRedirect(ctx, rawURL)
		if err != nil {
			return writeError(c, httperr.New(httperr.KindStorageUnavailable, "handle-redirect", err))
		}

		switch info.Status {
		case cacheentry.StatusPresent:
			c.Response().Header().Set("Location", info.URL)
			return c.JSON(http.StatusFound, map[string]string{"status": string(cacheentry.StatusPresent), "url": info.URL})

		case cacheentry.StatusAbsent:
			if !validated {
				if _, err := s.validator.Validate(ctx, rawURL); err != nil {
					return writeError(c, classifyValidationError(err))
				}
				validated = true
			}
			if err := cm.RequestPut(ctx, rawURL); err != nil {
				return writeError(c, httperr.New(httperr.KindStorageUnavailable, "handle-redirect", err))
			}

		case cacheentry.StatusError:
			if err := cm.RequestPut(ctx, rawURL); err != nil {
				return writeError(c, httperr.New(httperr.KindStorageUnavailable, "handle-redirect", err))
			}

		case cacheentry.StatusPending:
			// nothing to do but wait for the next poll
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.PollInterval):
		}
	}
}

func (s *Server) fallbackToOrigin(c echo.Context, poolID, rawURL string) error {
	telemetry.RedirectOriginal.Add(c.Request().Context(), 1)
	c.Response().Header().Set("Location", rawURL)
	return c.JSON(http.StatusFound, map[string]string{"status": "timeout", "url": rawURL})
}

// classifyValidationError maps a validator error onto the client-facing
// taxonomy: scheme/host rejections are disallowed-url, everything else
// (redirect chain failures) is treated as a malformed request.
func classifyValidationError(err error) *httperr.Error {
	if errors.Is(err, validator.ErrDisallowedScheme) || errors.Is(err, validator.ErrDisallowedHost) {
		return httperr.New(httperr.KindDisallowedURL, "validate", err)
	}
	return httperr.New(httperr.KindInvalidInput, "validate", err)
}

// handlePurge evicts a cache entry's blob and status record.
func (s *Server) handlePurge(c echo.Context) error {
	poolID, rawURL, herr := decodeRequest(c)
	if herr != nil {
		return writeError(c, herr)
	}
	cm, ok := s.managerFor(poolID)
	if !ok {
		return writeError(c, httperr.New(httperr.KindNotFound, "handle-purge", fmt.Errorf("no pool registered for %s", poolID)))
	}
	if err := cm.Purge(c.Request().Context(), rawURL); err != nil {
		return writeError(c, httperr.New(httperr.KindStorageUnavailable, "handle-purge", err))
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handlePing(c echo.Context) error {
	return c.String(http.StatusOK, "pong")
}

func (s *Server) handleAPIReference(c echo.Context) error {
	s.mu.RLock()
	pools := make([]string, 0, len(s.managers))
	for poolID := range s.managers {
		pools = append(pools, poolID)
	}
	s.mu.RUnlock()
	return c.JSON(http.StatusOK, map[string]any{
		"routes": []string{
			"GET /v1/redirect/:service/:region/:b64url",
			"DELETE /v1/purge/:service/:region/:b64url",
			"GET /v1/ping",
		},
		"pools": pools,
	})
}
