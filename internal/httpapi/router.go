// Package httpapi binds the media origin, the push channel and the browser UI
// to one echo router.
package httpapi

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"go2tv.app/beamdeck/internal/media"
)

// PushPath is where browser clients open their websocket.
const PushPath = "/ws"

type Config struct {
	Origin http.Handler
	Push   http.Handler
	Assets fs.FS
	Logger *slog.Logger
}

type Server struct {
	echo   *echo.Echo
	logger *slog.Logger
}

func New(cfg Config) (*Server, error) {
	if cfg.Origin == nil {
		return nil, errors.New("httpapi: origin handler is required")
	}
	if cfg.Push == nil {
		return nil, errors.New("httpapi: push handler is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger(logger))

	origin := echo.WrapHandler(cfg.Origin)
	e.GET(media.Path, origin)
	e.HEAD(media.Path, origin)
	e.GET(PushPath, echo.WrapHandler(cfg.Push))
	if cfg.Assets != nil {
		e.StaticFS("/", cfg.Assets)
	}

	return &Server{echo: e, logger: logger}, nil
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start blocks serving addr until Shutdown. A clean shutdown returns nil.
func (s *Server) Start(addr string) error {
	s.logger.Info("http_listening", slog.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Receivers issue many range requests per playback, so successful requests
// stay at debug and never reach the client log relay.
func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelDebug
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			logger.LogAttrs(c.Request().Context(), level, "http_request", attrs...)
			return nil
		},
	})
}
