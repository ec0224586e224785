package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nimburion/taskmanager/pkg/config"
	"github.com/nimburion/taskmanager/pkg/health"
	"github.com/nimburion/taskmanager/pkg/middleware/logging"
	"github.com/nimburion/taskmanager/pkg/middleware/recovery"
	"github.com/nimburion/taskmanager/pkg/middleware/requestid"
	"github.com/nimburion/taskmanager/pkg/observability/logger"
	"github.com/nimburion/taskmanager/pkg/observability/metrics"
	"github.com/nimburion/taskmanager/pkg/server/openapi"
	"github.com/nimburion/taskmanager/pkg/server/router"
)

const managementIdleTimeout = 60 * time.Second

// ManagementServer answers operator traffic: liveness, readiness, Prometheus
// metrics, the OpenAPI document and Swagger UI.
type ManagementServer struct {
	*Server
	healthRegistry  *health.Registry
	metricsRegistry *metrics.Registry
}

// NewManagementServer mounts /health, /ready, /metrics, the OpenAPI document
// and /swagger (404 unless enabled) on r.
func NewManagementServer(
	cfg config.ManagementConfig,
	swaggerCfg config.SwaggerConfig,
	r router.Router,
	log logger.Logger,
	healthRegistry *health.Registry,
	metricsRegistry *metrics.Registry,
) (*ManagementServer, error) {
	if healthRegistry == nil {
		return nil, errors.New("management server: health registry is required")
	}
	if metricsRegistry == nil {
		return nil, errors.New("management server: metrics registry is required")
	}

	applyStack(r, []namedMiddleware{
		{"request_id", requestid.RequestID()},
		{"logging", logging.WithConfig(log, logging.DefaultConfig())},
		{"recovery", recovery.Recovery(log)},
	}, log)

	serverCfg := Config{
		Name:         "management",
		Port:         cfg.Port,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  managementIdleTimeout,
	}
	if cfg.MTLSEnabled {
		tlsConfig, err := LoadTLSConfig(cfg.TLSCertFile, cfg.TLSKeyFile, cfg.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("management mtls: %w", err)
		}
		serverCfg.TLSConfig = tlsConfig
	}

	s := &ManagementServer{
		Server:          NewServer(serverCfg, r, log),
		healthRegistry:  healthRegistry,
		metricsRegistry: metricsRegistry,
	}
	r.GET("/health", s.handleHealth)
	r.GET("/ready", s.handleReady)
	r.GET("/metrics", s.handleMetrics)
	openapi.RegisterRoutes(r)
	openapi.NewSwaggerHandler(swaggerCfg.Enabled, openapi.SpecPath).RegisterRoutes(r)
	return s, nil
}

// handleHealth reports liveness only.
func (s *ManagementServer) handleHealth(c router.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReady runs every registered check. A degraded dependency still serves
// traffic, an unhealthy one answers 503.
func (s *ManagementServer) handleReady(c router.Context) error {
	result := s.healthRegistry.Check(c.Request().Context())
	if !result.IsReady() {
		return c.JSON(http.StatusServiceUnavailable, result)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *ManagementServer) handleMetrics(c router.Context) error {
	s.metricsRegistry.Handler().ServeHTTP(c.Response(), c.Request())
	return nil
}

func (s *ManagementServer) Router() router.Router {
	return s.router
}
