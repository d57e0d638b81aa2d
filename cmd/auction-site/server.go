package main

import (
	"net/http"
	"time"

	"auction-site/internal/api/handlers"
	apimw "auction-site/internal/api/middleware"
	"auction-site/internal/config"
	"auction-site/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const version = "1.0.0"

// newServer builds the echo instance with the REST API under /api/v1, the
// websocket endpoint, health and metrics.
func newServer(cfg *config.Config, svc handlers.Services, ws *handlers.WebSocketHandlers,
	gatherer prometheus.Gatherer, log logger.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","method":"${method}","uri":"${uri}","status":${status},"error":"${error}","latency_human":"${latency_human}","bytes_in":${bytes_in},"bytes_out":${bytes_out}}` + "\n",
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/health" || c.Path() == "/metrics"
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPut,
			http.MethodPost, http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			apimw.UserIDHeader,
		},
		MaxAge: 86400,
	}))

	requireUser := apimw.RequireUser(cfg.Auth.JWTSecret)
	handlers.SetupRoutes(e.Group("/api/v1"), svc, requireUser, log)
	if ws != nil {
		ws.Register(e, requireUser)
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "auction-site",
			"instance":  cfg.Instance.ID,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"version":   version,
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return e
}
