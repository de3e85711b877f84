// Package server exposes the cultivation core over HTTP: the eight routes
// of §6's inbound surface, wired onto an echo.Echo the way the teacher
// wires its own API, minus the auth/tenancy machinery a single-process,
// single-user knowledge core has no use for.
package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/offis-rit/epistemic-core/internal/config"
	"github.com/offis-rit/epistemic-core/pkg/cultivate"
	"github.com/offis-rit/epistemic-core/pkg/embed"
	"github.com/offis-rit/epistemic-core/pkg/events"
	"github.com/offis-rit/epistemic-core/pkg/kb"
	"github.com/offis-rit/epistemic-core/pkg/logger"
)

// CustomValidator adapts go-playground/validator to echo.Echo's Validator
// interface, the same shape the teacher's server.go wires up.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator.
func (cv *CustomValidator) Validate(i any) error {
	return cv.validator.Struct(i)
}

// Deps bundles the core components cmd/server constructs and hands to
// Init; server.go owns none of their lifecycles except the HTTP listener.
type Deps struct {
	Store    *kb.Store
	Embedder embed.Embedder
	Bus      *events.Bus
	Orch     *cultivate.Orchestrator
	Cfg      config.Config

	// ReadyFn reports true once startup (e.g. an initial snapshot restore)
	// has finished; /status reports it verbatim.
	ReadyFn func() bool
}

// Init builds the echo.Echo instance, registers every route, and blocks
// serving HTTP until the process receives SIGINT/SIGTERM, then drains
// in-flight requests for up to ten seconds before returning.
func Init(deps Deps) {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(middleware.CORS())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("64M"))

	h := &handlers{deps: deps}
	RegisterRoutes(e, h)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("Starting server", "addr", deps.Cfg.HTTPAddr)
		if err := e.Start(deps.Cfg.HTTPAddr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
