// Package mdns browses the LAN for Google Cast receivers over multicast DNS.
package mdns

import (
	"context"
	"fmt"
	"strings"

	"github.com/grandcat/zeroconf"

	"go2tv.app/beamdeck/internal/adapters"
	"go2tv.app/beamdeck/internal/domain"
)

const (
	castService = "_googlecast._tcp"
	castDomain  = "local."
)

type resolver interface {
	Browse(ctx context.Context, service, domainName string, entries chan<- *zeroconf.ServiceEntry) error
}

var newResolver = func() (resolver, error) {
	return zeroconf.NewResolver()
}

type Browser struct{}

func NewBrowser() Browser {
	return Browser{}
}

// Browse reports every cast receiver that answers until ctx is done. Entries
// without an IPv4 address are skipped.
func (Browser) Browse(ctx context.Context, found func(domain.Device)) error {
	r, err := newResolver()
	if err != nil {
		return fmt.Errorf("initialize mdns resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				if dev, ok := deviceFromEntry(entry); ok {
					found(dev)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := r.Browse(ctx, castService, castDomain, entries); err != nil {
		return fmt.Errorf("browse %s: %w", castService, err)
	}
	<-ctx.Done()
	<-drained
	return nil
}

func deviceFromEntry(entry *zeroconf.ServiceEntry) (domain.Device, bool) {
	if entry == nil || len(entry.AddrIPv4) == 0 {
		return domain.Device{}, false
	}
	name := friendlyName(entry.Text)
	if name == "" {
		name = entry.Instance
	}
	return domain.NewDevice(name, entry.AddrIPv4[0].String(), entry.Port), true
}

// friendlyName extracts the user-assigned receiver name from the fn= TXT record.
func friendlyName(txt []string) string {
	for _, record := range txt {
		key, value, ok := strings.Cut(record, "=")
		if ok && key == "fn" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

var _ adapters.Browser = Browser{}
