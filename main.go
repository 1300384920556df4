package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"go2tv.app/beamdeck/internal/adapters"
	go2tvadapters "go2tv.app/beamdeck/internal/adapters/go2tv"
	"go2tv.app/beamdeck/internal/adapters/mdns"
	"go2tv.app/beamdeck/internal/buildinfo"
	"go2tv.app/beamdeck/internal/config"
	"go2tv.app/beamdeck/internal/diagnostics"
	"go2tv.app/beamdeck/internal/dirbrowser"
	"go2tv.app/beamdeck/internal/discovery"
	"go2tv.app/beamdeck/internal/domain"
	"go2tv.app/beamdeck/internal/httpapi"
	"go2tv.app/beamdeck/internal/lifecycle"
	"go2tv.app/beamdeck/internal/media"
	"go2tv.app/beamdeck/internal/pushserver"
	"go2tv.app/beamdeck/internal/registry"
	"go2tv.app/beamdeck/internal/session"
	"go2tv.app/beamdeck/internal/webui"
)

type selfTestOutput struct {
	Server struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"server"`
	Go2TVAdapters struct {
		DiscoveryWired bool `json:"discovery_wired"`
		CastWired      bool `json:"cast_wired"`
	} `json:"go2tv_adapters"`
	Discovery   string                        `json:"discovery"`
	Environment diagnostics.EnvironmentReport `json:"environment"`
}

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.Load(os.Args[1:], os.Getenv, os.Stderr)
	if errors.Is(err, config.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if cfg.ShowVersion {
		fmt.Println(buildinfo.Version)
		return
	}

	bundle := go2tvadapters.NewBundle()

	if cfg.SelfTest {
		out := selfTestOutput{
			Discovery:   cfg.Discovery,
			Environment: diagnostics.DetectEnvironment(cfg.MediaRoot, cfg.HTTPPort),
		}
		out.Server.Name = "beamdeck"
		out.Server.Version = buildinfo.Version
		out.Go2TVAdapters.DiscoveryWired = bundle.Discovery != nil
		out.Go2TVAdapters.CastWired = bundle.CastFactory != nil

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(out); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	runCtx, stopSignals := signal.NotifyContext(context.Background(), lifecycle.TerminationSignals()...)
	defer stopSignals()

	logLevel := parseLogLevel(os.Getenv("BEAMDECK_LOG_LEVEL"))
	base := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	hub := pushserver.NewHub(base.With(slog.String("component", "hub")))
	logger := slog.New(pushserver.NewLogRelay(base.Handler(), hub, slog.LevelInfo))
	logger.Info(
		"server_start",
		slog.String("server", "beamdeck"),
		slog.String("version", buildinfo.Version),
		slog.String("log_level", logLevel.String()),
		slog.String("media_root", cfg.MediaRoot),
		slog.String("discovery", cfg.Discovery),
	)

	devices := registry.New()
	scanner := discovery.NewScanner(
		newBrowser(cfg.Discovery, bundle.Discovery, runCtx),
		devices,
		hub,
		logger.With(slog.String("component", "scanner")),
		runCtx,
	)
	origin := media.NewOrigin(logger.With(slog.String("component", "media")))
	controller := session.NewController(bundle.CastFactory, devices, origin, hub, logger.With(slog.String("component", "session")), session.Options{
		ConnectTimeout: cfg.ConnectTimeout,
		LaunchTimeout:  cfg.LaunchTimeout,
		LoadTimeout:    cfg.LoadTimeout,
		ControlTimeout: cfg.ControlTimeout,
		StatusInterval: cfg.StatusInterval,
		MediaURL:       mediaURLFunc(cfg.PublicHost, cfg.HTTPPort, go2tvadapters.ListenHostForDevice),
		ContentType:    media.DetectContentType,
	})
	push := pushserver.New(pushserver.Config{
		Hub:        hub,
		Controller: controller,
		Scanner:    scanner,
		Devices:    devices,
		Dirs:       dirbrowser.New(cfg.MediaRoot),
		Logger:     logger.With(slog.String("component", "push")),
	})

	assets, err := fs.Sub(webui.Assets, webui.Root)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	srv, err := httpapi.New(httpapi.Config{
		Origin: origin,
		Push:   push,
		Assets: assets,
		Logger: logger.With(slog.String("component", "http")),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- srv.Start(cfg.Addr())
	}()
	scanner.StartScan()

	var runErr error
	select {
	case runErr = <-serveErrCh:
	case <-runCtx.Done():
	}
	if runErr != nil {
		logger.Error("server_stopping", slog.String("reason", runErr.Error()))
	} else {
		logger.Info("server_stopping", slog.String("reason", "signal"))
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		base.Warn("http_shutdown_failed", slog.String("error", err.Error()))
	}
	hub.Close()
	scanner.Close()
	if err := controller.Close(shutdownCtx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}
}

func newBrowser(kind string, discoveryAdapter adapters.Discovery, loopCtx context.Context) adapters.Browser {
	if kind == config.DiscoveryGo2TV {
		return discovery.NewPollingBrowser(discoveryAdapter, loopCtx)
	}
	return mdns.NewBrowser()
}

// mediaURLFunc builds the URL a receiver pulls the selected file from. Without
// a configured public host the LAN address routing to the receiver is used.
func mediaURLFunc(publicHost string, port int, listenHost func(deviceAddr string) (string, error)) func(domain.Device) (string, error) {
	return func(dev domain.Device) (string, error) {
		host := publicHost
		if host == "" {
			resolved, err := listenHost(dev.Address)
			if err != nil {
				return "", fmt.Errorf("resolve listen address for %s: %w", dev.Name, err)
			}
			host = resolved
		}
		return "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + media.Path, nil
	}
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		fmt.Fprintf(os.Stderr, "invalid BEAMDECK_LOG_LEVEL=%q; defaulting to info\n", raw)
		return slog.LevelInfo
	}
}
