package main

import (
	"errors"
	"log/slog"
	"testing"

	"go2tv.app/beamdeck/internal/adapters/mdns"
	"go2tv.app/beamdeck/internal/config"
	"go2tv.app/beamdeck/internal/discovery"
	"go2tv.app/beamdeck/internal/domain"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		" debug ": slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"loud":    slog.LevelInfo,
	}
	for raw, want := range tests {
		if got := parseLogLevel(raw); got != want {
			t.Fatalf("parseLogLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestMediaURLFuncPrefersPublicHost(t *testing.T) {
	called := false
	urlFor := mediaURLFunc("media.lan", 52810, func(string) (string, error) {
		called = true
		return "10.0.0.2", nil
	})

	got, err := urlFor(domain.NewDevice("Living Room", "10.0.0.5", 8009))
	if err != nil {
		t.Fatal(err)
	}
	if got != "http://media.lan:52810/play.mp4" {
		t.Fatalf("unexpected media URL: %s", got)
	}
	if called {
		t.Fatal("listen host lookup should be skipped when a public host is configured")
	}
}

func TestMediaURLFuncResolvesHostPerReceiver(t *testing.T) {
	var gotAddr string
	urlFor := mediaURLFunc("", 8080, func(deviceAddr string) (string, error) {
		gotAddr = deviceAddr
		return "192.168.1.20", nil
	})

	got, err := urlFor(domain.NewDevice("Kitchen", "192.168.1.40", 8009))
	if err != nil {
		t.Fatal(err)
	}
	if gotAddr != "http://192.168.1.40:8009" {
		t.Fatalf("unexpected receiver address: %s", gotAddr)
	}
	if got != "http://192.168.1.20:8080/play.mp4" {
		t.Fatalf("unexpected media URL: %s", got)
	}

	urlFor = mediaURLFunc("", 8080, func(string) (string, error) {
		return "", errors.New("no route")
	})
	if _, err := urlFor(domain.NewDevice("Kitchen", "192.168.1.40", 8009)); err == nil {
		t.Fatal("expected resolve error")
	}
}

func TestNewBrowserSelectsBackend(t *testing.T) {
	if _, ok := newBrowser(config.DiscoveryMDNS, nil, t.Context()).(mdns.Browser); !ok {
		t.Fatal("expected mdns browser")
	}
	if _, ok := newBrowser(config.DiscoveryGo2TV, nil, t.Context()).(*discovery.PollingBrowser); !ok {
		t.Fatal("expected polling browser")
	}
}
