package discovery

import (
	"context"
	"errors"
	"math"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go2tv.app/go2tv/v2/devices"

	"go2tv.app/beamdeck/internal/adapters"
	"go2tv.app/beamdeck/internal/domain"
)

const (
	defaultPollEvery             = 3 * time.Second
	defaultDiscoveryDelaySeconds = 1
)

// PollingBrowser turns go2tv's snapshot discovery into a stream: it keeps
// go2tv's background Chromecast loop running and reports each receiver the
// first time a poll sees it during one Browse call.
type PollingBrowser struct {
	adapter   adapters.Discovery
	loopCtx   context.Context
	pollEvery time.Duration
	once      sync.Once
}

func NewPollingBrowser(adapter adapters.Discovery, loopCtx context.Context) *PollingBrowser {
	if loopCtx == nil {
		loopCtx = context.Background()
	}

	return &PollingBrowser{
		adapter:   adapter,
		loopCtx:   loopCtx,
		pollEvery: defaultPollEvery,
	}
}

func (b *PollingBrowser) Browse(ctx context.Context, found func(domain.Device)) error {
	if b.adapter == nil {
		return errors.New("discovery adapter is not configured")
	}

	b.once.Do(func() {
		b.adapter.StartChromecastDiscoveryLoop(b.loopCtx)
	})

	pollEvery := b.pollEvery
	if pollEvery <= 0 {
		pollEvery = defaultPollEvery
	}

	seen := map[string]bool{}
	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		loaded, err := b.adapter.LoadAllDevices(timeoutToDelaySeconds(int(pollEvery.Milliseconds())))
		if err != nil && !errors.Is(err, devices.ErrNoDeviceAvailable) {
			return err
		}
		for _, dev := range normalizeDevices(loaded) {
			if seen[dev.ID] {
				continue
			}
			seen[dev.ID] = true
			found(dev)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func timeoutToDelaySeconds(timeoutMS int) int {
	seconds := int(math.Ceil(float64(timeoutMS) / 1000.0))
	if seconds <= 0 {
		return defaultDiscoveryDelaySeconds
	}
	return seconds
}

// normalizeDevices keeps the cast receivers of a go2tv snapshot.
func normalizeDevices(discovered []devices.Device) []domain.Device {
	result := make([]domain.Device, 0, len(discovered))
	for _, raw := range discovered {
		if normalizeProtocol(raw.Type) != "chromecast" {
			continue
		}
		host, port, ok := splitDeviceAddress(raw.Addr)
		if !ok {
			continue
		}

		dev := domain.NewDevice(raw.Name, host, port)
		dev.Address = strings.TrimSpace(raw.Addr)
		result = append(result, dev)
	}

	return result
}

func splitDeviceAddress(address string) (string, int, bool) {
	address = strings.TrimSpace(address)
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	parsed, err := url.Parse(address)
	if err != nil {
		return "", 0, false
	}

	host := parsed.Hostname()
	if host == "" {
		return "", 0, false
	}
	port, err := strconv.Atoi(parsed.Port())
	if err != nil {
		port = 0
	}
	return host, port, true
}

func normalizeProtocol(kind string) string {
	lower := strings.ToLower(strings.TrimSpace(kind))
	if strings.Contains(lower, "chrome") {
		return "chromecast"
	}
	if strings.Contains(lower, "dlna") {
		return "dlna"
	}
	return lower
}

var _ adapters.Browser = (*PollingBrowser)(nil)
