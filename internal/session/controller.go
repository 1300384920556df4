package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go2tv.app/go2tv/v2/castprotocol"

	"go2tv.app/beamdeck/internal/adapters"
	"go2tv.app/beamdeck/internal/domain"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultLaunchTimeout  = 10 * time.Second
	defaultLoadTimeout    = 20 * time.Second
	defaultControlTimeout = 10 * time.Second
	defaultStatusInterval = time.Second

	monitorStopWait = 500 * time.Millisecond
	driftTolerance  = 2 * time.Second

	defaultRetryAttempts    = 3
	defaultRetryBaseBackoff = 120 * time.Millisecond
	defaultRetryMaxBackoff  = 800 * time.Millisecond
)

type State string

const (
	StateIdle       State = "IDLE"
	StateConnecting State = "CONNECTING"
	StateLaunching  State = "LAUNCHING"
	StateLoading    State = "LOADING"
	StateReady      State = "READY"
)

type Op string

const (
	OpPlay   Op = "play"
	OpPause  Op = "pause"
	OpStop   Op = "stop"
	OpSeek   Op = "seek"
	OpStatus Op = "status"
)

type deviceLookup interface {
	Lookup(id string) (domain.Device, bool)
}

type mediaSelector interface {
	Select(absPath string)
}

// Options configures a Controller. Zero durations use the defaults.
type Options struct {
	ConnectTimeout time.Duration
	LaunchTimeout  time.Duration
	LoadTimeout    time.Duration
	ControlTimeout time.Duration
	StatusInterval time.Duration

	// MediaURL returns the media origin URL the given receiver should pull.
	MediaURL func(dev domain.Device) (string, error)
	// ContentType reports the MIME type sent with the load command.
	ContentType func(absPath string) string
}

// Controller owns the single playback session. Every Play starts a new
// generation; results from older generations are dropped before they reach
// clients.
type Controller struct {
	castFactory    adapters.CastFactory
	devices        deviceLookup
	media          mediaSelector
	publisher      domain.Publisher
	logger         *slog.Logger
	mediaURLFor    func(dev domain.Device) (string, error)
	contentTypeFor func(absPath string) string
	statFile       func(name string) (os.FileInfo, error)
	now            func() time.Time

	connectTimeout time.Duration
	launchTimeout  time.Duration
	loadTimeout    time.Duration
	controlTimeout time.Duration
	statusInterval time.Duration

	retryAttempts    int
	retryBaseBackoff time.Duration
	retryMaxBackoff  time.Duration

	mu           sync.Mutex
	generation   uint64
	state        State
	current      *session
	lastStatus   *domain.PlayerStatus
	lastStatusAt time.Time
	inFlight     map[Op]uint64
	closed       bool

	wg        sync.WaitGroup
	closeOnce sync.Once
}

type session struct {
	generation  uint64
	device      domain.Device
	mediaPath   string
	ctx         context.Context
	cancel      context.CancelFunc
	monitorDone chan struct{}

	mu         sync.Mutex
	client     adapters.CastClient
	monitoring bool
	closed     bool

	closeOnce sync.Once
}

func NewController(castFactory adapters.CastFactory, devices deviceLookup, media mediaSelector, publisher domain.Publisher, logger *slog.Logger, opts Options) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	contentType := opts.ContentType
	if contentType == nil {
		contentType = func(string) string { return "video/mp4" }
	}

	return &Controller{
		castFactory:      castFactory,
		devices:          devices,
		media:            media,
		publisher:        publisher,
		logger:           logger,
		mediaURLFor:      opts.MediaURL,
		contentTypeFor:   contentType,
		statFile:         os.Stat,
		now:              time.Now,
		connectTimeout:   durationOr(opts.ConnectTimeout, defaultConnectTimeout),
		launchTimeout:    durationOr(opts.LaunchTimeout, defaultLaunchTimeout),
		loadTimeout:      durationOr(opts.LoadTimeout, defaultLoadTimeout),
		controlTimeout:   durationOr(opts.ControlTimeout, defaultControlTimeout),
		statusInterval:   durationOr(opts.StatusInterval, defaultStatusInterval),
		retryAttempts:    defaultRetryAttempts,
		retryBaseBackoff: defaultRetryBaseBackoff,
		retryMaxBackoff:  defaultRetryMaxBackoff,
		state:            StateIdle,
		inFlight:         map[Op]uint64{},
	}
}

// Play validates the request, selects the file on the media origin and starts
// the connect, launch and load sequence in the background. Any session already
// in progress is superseded. Failures after validation are reported as
// chromecast-error events, not returned.
func (c *Controller) Play(deviceID, absPath string) error {
	if c.castFactory == nil || c.devices == nil || c.media == nil || c.mediaURLFor == nil {
		return domain.NewError(domain.CodeInternal, "session controller is not configured", nil)
	}

	dev, ok := c.devices.Lookup(deviceID)
	if !ok {
		return domain.ValidationError(fmt.Sprintf("unknown device %q", deviceID))
	}
	info, err := c.statFile(absPath)
	if err != nil {
		return domain.NewError(domain.CodeValidation, "file not found", err)
	}
	if info.IsDir() {
		return domain.ValidationError("cannot play a directory")
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.NewError(domain.CodeInternal, "session controller is shutting down", nil)
	}

	c.media.Select(absPath)

	c.generation++
	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{
		generation:  c.generation,
		device:      dev,
		mediaPath:   absPath,
		ctx:         ctx,
		cancel:      cancel,
		monitorDone: make(chan struct{}),
	}
	previous := c.current
	c.current = sess
	c.state = StateConnecting
	c.lastStatus = nil
	c.wg.Add(1)
	if previous != nil {
		c.wg.Add(1)
	}
	c.mu.Unlock()

	if previous != nil {
		c.logger.Info("session_superseded", slog.Uint64("generation", previous.generation), slog.String("device_id", previous.device.ID))
		go func() {
			defer c.wg.Done()
			shutdownSession(previous)
		}()
	}

	c.logger.Info(
		"session_connecting",
		slog.Uint64("generation", sess.generation),
		slog.String("device_id", dev.ID),
		slog.String("file", filepath.Base(absPath)),
	)
	go c.run(sess)
	return nil
}

func (c *Controller) run(sess *session) {
	defer c.wg.Done()
	ctx := sess.ctx

	mediaURL, err := c.mediaURLFor(sess.device)
	if err != nil {
		c.fail(sess, StateConnecting, domain.TransportError("cannot derive media URL for "+sess.device.Name, err))
		return
	}

	client, err := c.castFactory.NewCastClient(sess.device.Address)
	if err != nil {
		c.fail(sess, StateConnecting, domain.TransportError("failed to create Chromecast client", err))
		return
	}
	if !sess.attach(client) {
		_ = client.Close(false)
		return
	}

	err = c.withRetry(ctx, "chromecast_connect", func() error {
		return callWithTimeout(ctx, c.connectTimeout, "connect", client.Connect)
	})
	if err != nil {
		c.fail(sess, StateConnecting, domain.TransportError("failed to connect to "+sess.device.Name, err))
		return
	}

	if !c.advance(sess, StateLaunching) {
		return
	}
	if err := callWithTimeout(ctx, c.launchTimeout, "launch", client.Launch); err != nil {
		c.fail(sess, StateLaunching, domain.TransportError("failed to launch media receiver", err))
		return
	}

	if !c.advance(sess, StateLoading) {
		return
	}
	if sess.startMonitor() {
		go c.monitor(sess)
	}

	contentType := c.contentTypeFor(sess.mediaPath)
	err = callWithTimeout(ctx, c.loadTimeout, "load", func() error {
		return client.Load(mediaURL, contentType, 0, 0, "", false)
	})
	if err != nil {
		c.fail(sess, StateLoading, domain.TransportError("failed to load media", err))
		return
	}

	if !c.advance(sess, StateReady) {
		return
	}
	c.refreshStatus(sess, true)
}

// advance moves the state machine forward if sess is still current.
func (c *Controller) advance(sess *session, next State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != sess {
		return false
	}
	c.state = next
	c.logger.Info("session_state", slog.Uint64("generation", sess.generation), slog.String("state", string(next)))
	return true
}

// fail tears the session down and returns to IDLE. Failures of a superseded
// session are only logged.
func (c *Controller) fail(sess *session, during State, err error) {
	c.mu.Lock()
	current := c.current == sess
	if current {
		c.current = nil
		c.state = StateIdle
		c.lastStatus = nil
	}
	c.mu.Unlock()

	shutdownSession(sess)

	if !current {
		c.logger.Debug("stale_session_failure", slog.Uint64("generation", sess.generation), slog.String("error", err.Error()))
		return
	}
	c.logger.Error(
		"session_failed",
		slog.Uint64("generation", sess.generation),
		slog.String("state", string(during)),
		slog.String("code", domain.CodeOf(err)),
		slog.String("error", err.Error()),
	)
	c.publishError(sess.generation, err)
}

// Control forwards op to the receiver of the active session and relays the
// outcome to every client. With no player it only logs. A second request of
// the same kind is dropped while the first is unresolved.
func (c *Controller) Control(op Op, position float64) {
	c.mu.Lock()
	sess := c.current
	if c.closed || sess == nil || (c.state != StateLoading && c.state != StateReady) {
		c.mu.Unlock()
		c.logger.Info("control_ignored", slog.String("op", string(op)), slog.String("reason", "no active player"))
		return
	}
	client := sess.currentClient()
	if client == nil {
		c.mu.Unlock()
		c.logger.Info("control_ignored", slog.String("op", string(op)), slog.String("reason", "no active player"))
		return
	}
	if c.inFlight[op] == sess.generation {
		c.mu.Unlock()
		c.logger.Debug("control_in_flight", slog.String("op", string(op)), slog.Uint64("generation", sess.generation))
		return
	}
	c.inFlight[op] = sess.generation
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		defer c.clearInFlight(op, sess.generation)

		if op == OpStatus {
			c.refreshStatus(sess, true)
			return
		}

		err := callWithTimeout(sess.ctx, c.controlTimeout, string(op), func() error {
			switch op {
			case OpPlay:
				return client.Play()
			case OpPause:
				return client.Pause()
			case OpStop:
				return client.Stop()
			case OpSeek:
				return client.Seek(position)
			default:
				return fmt.Errorf("unsupported control operation %q", op)
			}
		})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			cerr := domain.TransportError(string(op)+" failed", err)
			c.logger.Warn("control_failed", slog.String("op", string(op)), slog.Uint64("generation", sess.generation), slog.String("error", cerr.Error()))
			c.publishError(sess.generation, cerr)
			return
		}
		c.refreshStatus(sess, true)
	}()
}

func (c *Controller) clearInFlight(op Op, generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight[op] == generation {
		delete(c.inFlight, op)
	}
}

// refreshStatus fetches a snapshot from the receiver. Solicited refreshes are
// always relayed; monitor refreshes only when something observable changed.
func (c *Controller) refreshStatus(sess *session, solicited bool) {
	client := sess.currentClient()
	if client == nil {
		return
	}
	st, err := withTimeout(sess.ctx, c.controlTimeout, "status", client.GetStatus)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		if solicited {
			cerr := domain.TransportError("status request failed", err)
			c.logger.Warn("status_failed", slog.Uint64("generation", sess.generation), slog.String("error", cerr.Error()))
			c.publishError(sess.generation, cerr)
		} else {
			c.logger.Debug("status_poll_failed", slog.Uint64("generation", sess.generation), slog.String("error", err.Error()))
		}
		return
	}
	if st == nil {
		return
	}
	c.relayStatus(snapshotFromCast(sess.generation, st, filepath.Base(sess.mediaPath)), solicited)
}

// monitor polls the receiver so that changes it makes on its own (buffering,
// end of media, another sender) reach clients.
func (c *Controller) monitor(sess *session) {
	defer close(sess.monitorDone)

	ticker := time.NewTicker(c.statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-sess.ctx.Done():
			return
		case <-ticker.C:
			c.refreshStatus(sess, false)
		}
	}
}

func (c *Controller) relayStatus(next domain.PlayerStatus, force bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || next.Generation != c.generation {
		return false
	}

	merged := c.lastStatus.Merge(next)
	now := c.now()
	if !force && !statusChanged(c.lastStatus, merged, now.Sub(c.lastStatusAt)) {
		return false
	}
	c.lastStatus = &merged
	c.lastStatusAt = now
	c.publish(domain.Event{Name: domain.EventCastStatus, Data: merged})
	return true
}

func (c *Controller) publishError(generation uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return
	}
	c.publish(domain.Event{
		Name: domain.EventCastError,
		Data: domain.CastErrorPayload{
			Message:    domain.PublicMessage(err),
			Code:       domain.CodeOf(err),
			Generation: generation,
		},
	})
}

func (c *Controller) publish(event domain.Event) {
	if c.publisher == nil {
		return
	}
	c.publisher.Publish(event)
}

// State reports the current state machine position and generation.
func (c *Controller) State() (State, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.generation
}

// LastStatus returns the last relayed snapshot, or nil.
func (c *Controller) LastStatus() *domain.PlayerStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastStatus == nil {
		return nil
	}
	out := *c.lastStatus
	if out.Volume != nil {
		v := *out.Volume
		out.Volume = &v
	}
	if out.Media != nil {
		m := *out.Media
		out.Media = &m
	}
	return &out
}

// Close disconnects the active session without stopping receiver playback and
// waits for background work to finish.
func (c *Controller) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var closeErr error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		sess := c.current
		c.current = nil
		c.state = StateIdle
		c.generation++
		c.mu.Unlock()

		shutdownSession(sess)

		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			closeErr = ctx.Err()
		}
	})
	return closeErr
}

func (s *session) attach(client adapters.CastClient) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.client = client
	return true
}

func (s *session) startMonitor() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.monitoring = true
	return true
}

func (s *session) currentClient() adapters.CastClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return s.client
}

// shutdownSession cancels the session's work and closes its connection.
// Receiver playback is left running.
func shutdownSession(sess *session) {
	if sess == nil {
		return
	}

	sess.closeOnce.Do(func() {
		sess.cancel()

		sess.mu.Lock()
		sess.closed = true
		client := sess.client
		monitoring := sess.monitoring
		sess.mu.Unlock()

		if client != nil {
			_ = client.Close(false)
		}

		if monitoring {
			select {
			case <-sess.monitorDone:
			case <-time.After(monitorStopWait):
			}
		}
	})
}

func snapshotFromCast(generation uint64, st *castprotocol.CastStatus, fallbackTitle string) domain.PlayerStatus {
	out := domain.PlayerStatus{
		Generation:  generation,
		PlayerState: normalizePlayerState(st.PlayerState),
		CurrentTime: float64(st.CurrentTime),
		Volume: &domain.Volume{
			Level: float64(st.Volume),
			Muted: st.Muted,
		},
	}
	if st.MediaTitle != "" || st.ContentType != "" || st.Duration > 0 {
		title := st.MediaTitle
		if title == "" {
			title = fallbackTitle
		}
		out.Media = &domain.MediaInfo{
			Title:       title,
			ContentType: st.ContentType,
			Duration:    float64(st.Duration),
		}
	}
	return out
}

func normalizePlayerState(state string) string {
	return strings.ToUpper(strings.TrimSpace(state))
}

func statusChanged(prev *domain.PlayerStatus, next domain.PlayerStatus, elapsed time.Duration) bool {
	if prev == nil {
		return true
	}
	if prev.PlayerState != next.PlayerState {
		return true
	}
	if !sameMedia(prev.Media, next.Media) || !sameVolume(prev.Volume, next.Volume) {
		return true
	}

	expected := prev.CurrentTime
	if prev.PlayerState == "PLAYING" {
		expected += elapsed.Seconds()
	}
	return math.Abs(next.CurrentTime-expected) > driftTolerance.Seconds()
}

func sameMedia(a, b *domain.MediaInfo) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameVolume(a, b *domain.Volume) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}
