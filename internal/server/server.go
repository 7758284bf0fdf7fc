// internal/server/server.go

// Package server exposes the automation runner over HTTP. Each endpoint maps
// to exactly one runner operation; the runner's single-flight gate surfaces
// as 409 Conflict.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jakoleksy/ecobeectl/internal/config"
	"github.com/jakoleksy/ecobeectl/internal/portal"
	"github.com/jakoleksy/ecobeectl/internal/runner"
)

// coordinator is the slice of the runner the handlers invoke.
type coordinator interface {
	Run(ctx context.Context, op runner.Operation) (*runner.Result, error)
}

// Handler wires the HTTP layer to the run coordinator.
type Handler struct {
	runs   coordinator
	cfg    *config.Config
	logger *zap.Logger
}

// NewHandler constructs the HTTP handler.
func NewHandler(runs coordinator, cfg *config.Config, logger *zap.Logger) *Handler {
	return &Handler{runs: runs, cfg: cfg, logger: logger.Named("server")}
}

// InitRoutes builds the router with all endpoints registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", h.health)

	ecobee := router.Group("/ecobee")
	{
		ecobee.POST("/main-floor/aux", h.setMode("Main Floor", "aux"))
		ecobee.POST("/main-floor/heat", h.setMode("Main Floor", "heat"))
		ecobee.POST("/upstairs/aux", h.setMode("Upstairs", "aux"))
		ecobee.POST("/upstairs/heat", h.setMode("Upstairs", "heat"))
		ecobee.POST("/device/:device/mode/:mode", h.setModeFromPath)
		ecobee.POST("/device/:device/temperature/:value", h.setTemperatureFromPath)
		ecobee.GET("/status", h.status)
	}

	return router
}

// Serve runs the HTTP server until the context is canceled.
func (h *Handler) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", h.cfg.Server.Host, h.cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: h.InitRoutes(),
	}

	errCh := make(chan error, 1)
	go func() {
		h.logger.Info("HTTP server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) setMode(device, mode string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.dispatch(c, runner.SetMode(device, mode))
	}
}

// setModeFromPath serves deployments whose device or mode sets differ from
// the four canned routes. Unknown names are caller errors.
func (h *Handler) setModeFromPath(c *gin.Context) {
	device := h.resolveDevice(c.Param("device"))
	mode := c.Param("mode")
	h.dispatch(c, runner.SetMode(device, mode))
}

func (h *Handler) setTemperatureFromPath(c *gin.Context) {
	target, err := strconv.ParseFloat(c.Param("value"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid temperature %q", c.Param("value"))})
		return
	}
	device := h.resolveDevice(c.Param("device"))
	h.dispatch(c, runner.SetTemperature(device, target))
}

// resolveDevice maps a URL slug like "main-floor" back to its configured
// display name.
func (h *Handler) resolveDevice(slug string) string {
	for _, name := range h.cfg.Portal.Devices {
		if deviceSlug(name) == slug {
			return name
		}
	}
	return slug
}

func deviceSlug(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r == ' ':
			out = append(out, '-')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

func (h *Handler) status(c *gin.Context) {
	h.dispatch(c, runner.ReadStatus())
}

// dispatch runs one operation and maps its outcome to transport status
// codes: 409 for the busy rejection, 400 for caller misuse, 500 for a failed
// run, 200 otherwise.
func (h *Handler) dispatch(c *gin.Context, op runner.Operation) {
	res, err := h.runs.Run(c.Request.Context(), op)
	switch {
	case errors.Is(err, runner.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "another automation run is in progress"})
		return
	case errors.Is(err, portal.ErrUnknownDevice), errors.Is(err, portal.ErrUnknownMode):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("Run dispatch failed",
			zap.String("operation", op.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if !res.Success {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   res.Reason,
		})
		return
	}

	body := gin.H{"success": true}
	if res.Status != nil {
		body["status"] = res.Status
	}
	c.JSON(http.StatusOK, body)
}
