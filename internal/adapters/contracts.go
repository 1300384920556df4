package adapters

import (
	"context"

	"go2tv.app/go2tv/v2/castprotocol"
	"go2tv.app/go2tv/v2/devices"

	"go2tv.app/beamdeck/internal/domain"
)

// Browser streams receivers found on the LAN until ctx is done.
type Browser interface {
	Browse(ctx context.Context, found func(domain.Device)) error
}

// Discovery provides the go2tv LAN hardware discovery primitives.
type Discovery interface {
	StartChromecastDiscoveryLoop(ctx context.Context)
	LoadAllDevices(delaySeconds int) ([]devices.Device, error)
}

// CastClient represents a controllable Chromecast transport connection.
// Calls block until the receiver answers.
type CastClient interface {
	Connect() error
	Launch() error
	Load(mediaURL, contentType string, startTime int, duration float64, subtitleURL string, live bool) error
	Play() error
	Pause() error
	Stop() error
	Seek(position float64) error
	GetStatus() (*castprotocol.CastStatus, error)
	Close(stopMedia bool) error
}

// CastFactory creates CastClient instances.
type CastFactory interface {
	NewCastClient(deviceAddr string) (CastClient, error)
}
