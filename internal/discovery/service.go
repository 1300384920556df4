package discovery

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"go2tv.app/beamdeck/internal/adapters"
	"go2tv.app/beamdeck/internal/domain"
)

type deviceStore interface {
	Clear()
	Add(dev domain.Device) string
}

// Scanner runs receiver scans and keeps the registry in step with them.
// Starting a scan cancels the network browse of the previous one; devices it
// already delivered are still registered and announced.
type Scanner struct {
	browser   adapters.Browser
	store     deviceStore
	publisher domain.Publisher
	logger    *slog.Logger
	loopCtx   context.Context

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScanner(browser adapters.Browser, store deviceStore, publisher domain.Publisher, logger *slog.Logger, loopCtx context.Context) *Scanner {
	if loopCtx == nil {
		loopCtx = context.Background()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Scanner{
		browser:   browser,
		store:     store,
		publisher: publisher,
		logger:    logger,
		loopCtx:   loopCtx,
	}
}

// StartScan clears the registry, announces the empty list and browses in the
// background until the next StartScan or until the loop context ends.
func (s *Scanner) StartScan() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	scanCtx, cancel := context.WithCancel(s.loopCtx)
	s.cancel = cancel
	s.seq++
	seq := s.seq

	s.store.Clear()
	s.publish(domain.Event{Name: domain.EventDeviceList, Data: []domain.DeviceSummary{}})
	s.mu.Unlock()

	s.logger.Info("scan_started", slog.Uint64("scan", seq))

	if s.browser == nil {
		s.logger.Error("scan_failed", slog.Uint64("scan", seq), slog.String("error", "discovery browser is not configured"))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.browser.Browse(scanCtx, func(dev domain.Device) {
			s.deviceFound(seq, dev)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			derr := domain.DiscoveryError("device scan failed", err)
			s.logger.Error("scan_failed", slog.Uint64("scan", seq), slog.String("error", derr.Error()))
			return
		}
		s.logger.Debug("scan_finished", slog.Uint64("scan", seq))
	}()
}

func (s *Scanner) deviceFound(seq uint64, dev domain.Device) {
	s.mu.Lock()
	id := s.store.Add(dev)
	dev.ID = id
	s.publish(domain.Event{Name: domain.EventNewDevice, Data: dev.Summary()})
	s.mu.Unlock()

	s.logger.Info(
		"device_found",
		slog.Uint64("scan", seq),
		slog.String("device_id", id),
		slog.String("name", dev.Name),
		slog.String("host", dev.Host),
	)
}

// Close cancels the running browse and waits for it to return.
func (s *Scanner) Close() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scanner) publish(event domain.Event) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(event)
}
