package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	logging "github.com/ipfs/go-log/v2"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/storacha/cloud-mirror/pkg/build"
	"github.com/storacha/cloud-mirror/pkg/health"
)

var log = logging.Logger("server")

// RouteRegistrar is satisfied by anything that wires its HTTP routes onto a
// shared echo instance: the Redirect Service and the health handler.
type RouteRegistrar = health.RouteRegistrar

// ListenAndServe creates the HTTP server and starts it up.
func ListenAndServe(addr string, checker *health.Checker, registrars ...RouteRegistrar) error {
	mux, err := NewServer(checker, registrars...)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	log.Infof("Listening on %s", addr)
	err = srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// NewServer assembles the echo instance: ambient middleware, the version
// info root route, and every registrar's own routes (health checks, the
// Redirect Service's redirect/purge/ping endpoints).
func NewServer(checker *health.Checker, registrars ...RouteRegistrar) (*echo.Echo, error) {
	mux := echo.New()
	mux.HideBanner = true
	mux.Use(LoggerMiddleware())
	mux.Use(RecoverMiddleware())
	mux.Use(MetricsMiddleware())

	mux.GET("/", echo.WrapHandler(NewHandler()))
	mux.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	health.NewHandler(checker).RegisterRoutes(mux)
	for _, r := range registrars {
		r.RegisterRoutes(mux)
	}

	return mux, nil
}

type ServerInfo struct {
	Build BuildInfo `json:"build"`
}

type BuildInfo struct {
	Version string `json:"version"`
	Repo    string `json:"repo"`
}

// NewHandler displays version info.
func NewHandler() http.Handler {
	info := ServerInfo{
		Build: BuildInfo{
			Version: build.Version,
			Repo:    "https://github.com/storacha/cloud-mirror",
		},
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.Header.Get("Accept"), "application/json") {
			w.Header().Set("Content-Type", "application/json")
			data, err := json.Marshal(&info)
			if err != nil {
				log.Errorf("failed JSON marshal server info: %w", err)
				http.Error(w, "failed JSON marshal server info", http.StatusInternalServerError)
				return
			}
			w.Write(data)
		} else {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Write([]byte(fmt.Sprintf("cloud-mirror %s\n", info.Build.Version)))
			w.Write([]byte("- https://github.com/storacha/cloud-mirror\n"))
		}
	})
}
