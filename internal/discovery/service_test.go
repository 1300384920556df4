package discovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go2tv.app/go2tv/v2/devices"

	"go2tv.app/beamdeck/internal/domain"
	"go2tv.app/beamdeck/internal/registry"
)

type fakeAdapter struct {
	mu             sync.Mutex
	loadAllDevices func(delaySeconds int) ([]devices.Device, error)
	startLoopCalls int
	loadCalls      int
}

func (f *fakeAdapter) StartChromecastDiscoveryLoop(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startLoopCalls++
}

func (f *fakeAdapter) LoadAllDevices(delaySeconds int) ([]devices.Device, error) {
	f.mu.Lock()
	f.loadCalls++
	f.mu.Unlock()
	if f.loadAllDevices == nil {
		return nil, errors.New("not configured")
	}
	return f.loadAllDevices(delaySeconds)
}

// fakeBrowser hands each Browse call a channel the test feeds devices into.
type fakeBrowser struct {
	mu    sync.Mutex
	calls []chan domain.Device
	err   error
	ready chan int
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{ready: make(chan int, 8)}
}

func (f *fakeBrowser) Browse(ctx context.Context, found func(domain.Device)) error {
	if f.err != nil {
		return f.err
	}
	ch := make(chan domain.Device)
	f.mu.Lock()
	f.calls = append(f.calls, ch)
	idx := len(f.calls) - 1
	f.mu.Unlock()
	f.ready <- idx

	for {
		select {
		case dev := <-ch:
			found(dev)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (f *fakeBrowser) feed(t *testing.T, call int, dev domain.Device) {
	t.Helper()
	f.mu.Lock()
	ch := f.calls[call]
	f.mu.Unlock()
	select {
	case ch <- dev:
	case <-time.After(2 * time.Second):
		t.Fatalf("browse call %d is not accepting devices", call)
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(event domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) snapshot() []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Event{}, p.events...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStartScan_ClearsRegistryBeforeAnyDeviceFound(t *testing.T) {
	reg := registry.New()
	reg.Add(domain.NewDevice("Old", "10.0.0.99", 0))
	pub := &recordingPublisher{}
	browser := newFakeBrowser()

	scanner := NewScanner(browser, reg, pub, nil, context.Background())
	defer scanner.Close()

	scanner.StartScan()
	if n := len(reg.List()); n != 0 {
		t.Fatalf("expected empty registry right after scan start, got %d", n)
	}

	events := pub.snapshot()
	if len(events) != 1 || events[0].Name != domain.EventDeviceList {
		t.Fatalf("expected a single device-list event, got %+v", events)
	}
	if list, ok := events[0].Data.([]domain.DeviceSummary); !ok || len(list) != 0 {
		t.Fatalf("expected empty device list payload, got %#v", events[0].Data)
	}

	call := <-browser.ready
	browser.feed(t, call, domain.NewDevice("Living Room", "10.0.0.5", 8009))
	waitFor(t, "device registration", func() bool { return reg.Len() == 1 })

	if _, ok := reg.Lookup("Living Room|10.0.0.5"); !ok {
		t.Fatal("expected Living Room|10.0.0.5 to be registered")
	}
	waitFor(t, "new-device event", func() bool { return len(pub.snapshot()) == 2 })
	last := pub.snapshot()[1]
	if last.Name != domain.EventNewDevice {
		t.Fatalf("expected new-device event, got %s", last.Name)
	}
	if summary := last.Data.(domain.DeviceSummary); summary.ID != "Living Room|10.0.0.5" || summary.Host != "10.0.0.5" {
		t.Fatalf("unexpected new-device payload: %+v", summary)
	}
}

func TestStartScan_SecondScanCancelsFirstBrowseAndClearsAgain(t *testing.T) {
	reg := registry.New()
	pub := &recordingPublisher{}
	browser := newFakeBrowser()

	scanner := NewScanner(browser, reg, pub, nil, context.Background())
	defer scanner.Close()

	scanner.StartScan()
	first := <-browser.ready
	browser.feed(t, first, domain.NewDevice("A", "10.0.0.1", 0))
	waitFor(t, "first device", func() bool { return reg.Len() == 1 })

	scanner.StartScan()
	if reg.Len() != 0 {
		t.Fatalf("expected registry cleared by second scan, got %d", reg.Len())
	}
	second := <-browser.ready
	browser.feed(t, second, domain.NewDevice("B", "10.0.0.2", 0))
	waitFor(t, "second device", func() bool { return reg.Len() == 1 })

	if _, ok := reg.Lookup("B|10.0.0.2"); !ok {
		t.Fatal("expected device from second scan")
	}

	names := []string{}
	for _, e := range pub.snapshot() {
		names = append(names, e.Name)
	}
	want := []string{domain.EventDeviceList, domain.EventNewDevice, domain.EventDeviceList, domain.EventNewDevice}
	if len(names) != len(want) {
		t.Fatalf("events = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("events = %v, want %v", names, want)
		}
	}
}

func TestStartScan_BrowseErrorIsNotFatal(t *testing.T) {
	reg := registry.New()
	pub := &recordingPublisher{}
	browser := newFakeBrowser()
	browser.err = errors.New("multicast unavailable")

	scanner := NewScanner(browser, reg, pub, nil, context.Background())
	scanner.StartScan()
	scanner.Close()

	if reg.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", reg.Len())
	}
	if events := pub.snapshot(); len(events) != 1 {
		t.Fatalf("expected only the reset event, got %+v", events)
	}
}

func TestPollingBrowser_ReportsEachCastReceiverOnce(t *testing.T) {
	adapter := &fakeAdapter{
		loadAllDevices: func(delaySeconds int) ([]devices.Device, error) {
			return []devices.Device{
				{Name: "Bedroom TV", Addr: "http://192.168.1.10:1400/desc.xml", Type: "DLNA"},
				{Name: "Living Room TV", Addr: "http://192.168.1.20:8009", Type: "Chromecast"},
			}, nil
		},
	}

	browser := NewPollingBrowser(adapter, context.Background())
	browser.pollEvery = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	var found []domain.Device
	done := make(chan error, 1)
	go func() {
		done <- browser.Browse(ctx, func(d domain.Device) {
			mu.Lock()
			found = append(found, d)
			mu.Unlock()
		})
	}()

	waitFor(t, "several polls", func() bool {
		adapter.mu.Lock()
		defer adapter.mu.Unlock()
		return adapter.loadCalls >= 3
	})
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("browse: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(found) != 1 {
		t.Fatalf("expected exactly one cast receiver, got %+v", found)
	}
	if found[0].ID != "Living Room TV|192.168.1.20" || found[0].Port != 8009 {
		t.Fatalf("unexpected device: %+v", found[0])
	}
	if found[0].Address != "http://192.168.1.20:8009" {
		t.Fatalf("expected raw go2tv address preserved, got %q", found[0].Address)
	}
	if adapter.startLoopCalls != 1 {
		t.Fatalf("expected discovery loop to start once, got %d", adapter.startLoopCalls)
	}
}

func TestPollingBrowser_NoDeviceAvailableKeepsPolling(t *testing.T) {
	calls := 0
	adapter := &fakeAdapter{
		loadAllDevices: func(delaySeconds int) ([]devices.Device, error) {
			calls++
			if calls == 1 {
				return nil, devices.ErrNoDeviceAvailable
			}
			return []devices.Device{{Name: "Den", Addr: "http://192.168.1.30:8009", Type: "Chromecast"}}, nil
		},
	}

	browser := NewPollingBrowser(adapter, context.Background())
	browser.pollEvery = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan domain.Device, 1)
	go func() {
		_ = browser.Browse(ctx, func(d domain.Device) { got <- d })
	}()

	select {
	case d := <-got:
		if d.Name != "Den" {
			t.Fatalf("unexpected device: %+v", d)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected device after warmup poll")
	}
}

func TestPollingBrowser_AdapterErrorEndsBrowse(t *testing.T) {
	adapter := &fakeAdapter{
		loadAllDevices: func(delaySeconds int) ([]devices.Device, error) {
			return nil, errors.New("socket closed")
		},
	}
	err := NewPollingBrowser(adapter, context.Background()).Browse(context.Background(), func(domain.Device) {})
	if err == nil {
		t.Fatal("expected adapter error")
	}
}

func TestTimeoutToDelaySecondsUsesCeil(t *testing.T) {
	cases := []struct {
		timeoutMS int
		want      int
	}{
		{timeoutMS: 2500, want: 3},
		{timeoutMS: 2000, want: 2},
		{timeoutMS: 1, want: 1},
		{timeoutMS: 0, want: 1},
	}

	for _, tc := range cases {
		got := timeoutToDelaySeconds(tc.timeoutMS)
		if got != tc.want {
			t.Fatalf("timeoutToDelaySeconds(%d) = %d, want %d", tc.timeoutMS, got, tc.want)
		}
	}
}
