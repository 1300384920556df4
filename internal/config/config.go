// Package config resolves runtime settings from flags, environment and an
// optional .env file. Flags win over environment, environment over defaults.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
)

const (
	DiscoveryMDNS  = "mdns"
	DiscoveryGo2TV = "go2tv"

	DefaultHTTPPort = 52810
)

type Config struct {
	HTTPPort       int
	MediaRoot      string
	Discovery      string
	PublicHost     string
	ConnectTimeout time.Duration
	LaunchTimeout  time.Duration
	LoadTimeout    time.Duration
	ControlTimeout time.Duration
	StatusInterval time.Duration
	SelfTest       bool
	ShowVersion    bool
}

// ErrHelp is returned when -h or -help was requested.
var ErrHelp = flag.ErrHelp

var homeDir = homedir.Dir

// LoadDotEnv reads path into the process environment when it exists. Values
// already set in the environment are kept.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

// Load parses args (without the program name) on top of the values read
// through getenv.
func Load(args []string, getenv func(string) string, usage io.Writer) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg, err := fromEnv(getenv)
	if err != nil {
		return Config{}, err
	}

	fs := flag.NewFlagSet("beamdeck", flag.ContinueOnError)
	if usage != nil {
		fs.SetOutput(usage)
	} else {
		fs.SetOutput(io.Discard)
	}
	fs.IntVar(&cfg.HTTPPort, "port", cfg.HTTPPort, "HTTP port for the UI, push channel and media origin")
	fs.StringVar(&cfg.MediaRoot, "root", cfg.MediaRoot, "directory clients may browse")
	fs.StringVar(&cfg.Discovery, "discovery", cfg.Discovery, "receiver discovery backend: mdns or go2tv")
	fs.StringVar(&cfg.PublicHost, "public-host", cfg.PublicHost, "host receivers use to reach this server (default: LAN address facing the receiver)")
	fs.DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "receiver connect timeout")
	fs.DurationVar(&cfg.LaunchTimeout, "launch-timeout", cfg.LaunchTimeout, "receiver app launch timeout")
	fs.DurationVar(&cfg.LoadTimeout, "load-timeout", cfg.LoadTimeout, "media load timeout")
	fs.DurationVar(&cfg.ControlTimeout, "control-timeout", cfg.ControlTimeout, "play/pause/stop/seek/status timeout")
	fs.DurationVar(&cfg.StatusInterval, "status-interval", cfg.StatusInterval, "receiver status poll interval")
	fs.BoolVar(&cfg.SelfTest, "self-test", false, "print environment diagnostics and exit")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaults() (Config, error) {
	home, err := homeDir()
	if err != nil {
		return Config{}, fmt.Errorf("resolve home directory: %w", err)
	}
	return Config{
		HTTPPort:       DefaultHTTPPort,
		MediaRoot:      home,
		Discovery:      DiscoveryMDNS,
		ConnectTimeout: 10 * time.Second,
		LaunchTimeout:  10 * time.Second,
		LoadTimeout:    20 * time.Second,
		ControlTimeout: 10 * time.Second,
		StatusInterval: time.Second,
	}, nil
}

func fromEnv(getenv func(string) string) (Config, error) {
	cfg, err := defaults()
	if err != nil {
		return Config{}, err
	}

	if raw := strings.TrimSpace(getenv("BEAMDECK_HTTP_PORT")); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid BEAMDECK_HTTP_PORT=%q: %w", raw, err)
		}
		cfg.HTTPPort = port
	}
	if raw := strings.TrimSpace(getenv("BEAMDECK_MEDIA_ROOT")); raw != "" {
		cfg.MediaRoot = raw
	}
	if raw := strings.TrimSpace(getenv("BEAMDECK_DISCOVERY")); raw != "" {
		cfg.Discovery = raw
	}
	if raw := strings.TrimSpace(getenv("BEAMDECK_PUBLIC_HOST")); raw != "" {
		cfg.PublicHost = raw
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{"BEAMDECK_CONNECT_TIMEOUT", &cfg.ConnectTimeout},
		{"BEAMDECK_LAUNCH_TIMEOUT", &cfg.LaunchTimeout},
		{"BEAMDECK_LOAD_TIMEOUT", &cfg.LoadTimeout},
		{"BEAMDECK_CONTROL_TIMEOUT", &cfg.ControlTimeout},
		{"BEAMDECK_STATUS_INTERVAL", &cfg.StatusInterval},
	}
	for _, d := range durations {
		raw := strings.TrimSpace(getenv(d.env))
		if raw == "" {
			continue
		}
		v, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s=%q: %w", d.env, raw, err)
		}
		*d.dst = v
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("port %d out of range", c.HTTPPort)
	}

	c.Discovery = strings.ToLower(strings.TrimSpace(c.Discovery))
	switch c.Discovery {
	case DiscoveryMDNS, DiscoveryGo2TV:
	default:
		return fmt.Errorf("unknown discovery backend %q (want %s or %s)", c.Discovery, DiscoveryMDNS, DiscoveryGo2TV)
	}

	for name, d := range map[string]time.Duration{
		"connect-timeout": c.ConnectTimeout,
		"launch-timeout":  c.LaunchTimeout,
		"load-timeout":    c.LoadTimeout,
		"control-timeout": c.ControlTimeout,
		"status-interval": c.StatusInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	root, err := homedir.Expand(strings.TrimSpace(c.MediaRoot))
	if err != nil {
		return fmt.Errorf("expand media root: %w", err)
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve media root: %w", err)
	}
	c.MediaRoot = root
	c.PublicHost = strings.TrimSpace(c.PublicHost)
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.HTTPPort)
}
