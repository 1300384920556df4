// Package pushserver keeps browser clients in sync over websockets: it fans
// shared events out to every client and turns client commands into calls on
// the shared session, scanner and registry.
package pushserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"go2tv.app/beamdeck/internal/domain"
	"go2tv.app/beamdeck/internal/session"
)

type SessionController interface {
	Play(deviceID, absPath string) error
	Control(op session.Op, position float64)
}

type Scanner interface {
	StartScan()
}

type DeviceLister interface {
	List() []domain.DeviceSummary
}

type DirBrowser interface {
	List(segments []string) ([]domain.DirEntry, error)
	Resolve(segments []string, name string) (string, error)
}

type Config struct {
	Hub        *Hub
	Controller SessionController
	Scanner    Scanner
	Devices    DeviceLister
	Dirs       DirBrowser
	Logger     *slog.Logger
	// OriginPatterns are extra hosts allowed to open the socket cross-origin.
	OriginPatterns []string
}

type Server struct {
	hub            *Hub
	controller     SessionController
	scanner        Scanner
	devices        DeviceLister
	dirs           DirBrowser
	logger         *slog.Logger
	originPatterns []string
	newClientID    func() string
}

func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Hub == nil {
		cfg.Hub = NewHub(cfg.Logger)
	}

	return &Server{
		hub:            cfg.Hub,
		controller:     cfg.Controller,
		scanner:        cfg.Scanner,
		devices:        cfg.Devices,
		dirs:           cfg.Dirs,
		logger:         cfg.Logger,
		originPatterns: cfg.OriginPatterns,
		newClientID:    uuid.NewString,
	}
}

func (s *Server) Hub() *Hub {
	return s.hub
}

// ServeHTTP upgrades the request and serves the client until it disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns,
	})
	if err != nil {
		s.logger.Warn("push_accept_failed", slog.String("remote", r.RemoteAddr), slog.String("error", err.Error()))
		return
	}

	c := newClient(s.newClientID(), conn)
	if !s.hub.register(c) {
		c.close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer s.hub.unregister(c)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	s.logger.Info("push_client_connected", slog.String("client_id", c.id), slog.String("remote", r.RemoteAddr))
	startedAt := time.Now()

	writeErr := make(chan error, 1)
	go func() {
		writeErr <- c.writeLoop(ctx)
		cancel()
	}()

	err = s.readLoop(ctx, c)
	c.close(websocket.StatusNormalClosure, "")
	cancel()
	<-writeErr

	s.logger.Info(
		"push_client_disconnected",
		slog.String("client_id", c.id),
		slog.Duration("connected_for", time.Since(startedAt)),
		slog.String("reason", disconnectReason(err)),
	)
}

func (s *Server) readLoop(ctx context.Context, c *client) error {
	for {
		msg, err := c.readCommand(ctx)
		if err != nil {
			return err
		}
		s.logger.Debug("push_command", slog.String("client_id", c.id), slog.String("event", msg.Event))
		s.dispatch(c, msg)
	}
}

func (s *Server) dispatch(c *client, msg inbound) {
	switch msg.Event {
	case domain.CommandListDevices:
		list := []domain.DeviceSummary{}
		if s.devices != nil {
			list = s.devices.List()
		}
		s.reply(c, domain.EventDeviceList, list)
	case domain.CommandUpdateDevices:
		if s.scanner != nil {
			s.scanner.StartScan()
		}
	case domain.CommandCd:
		var cwd []string
		if err := decodeData(msg.Data, &cwd); err != nil {
			s.logger.Warn("push_bad_command", slog.String("client_id", c.id), slog.String("event", msg.Event), slog.String("error", err.Error()))
			return
		}
		if cwd == nil {
			cwd = []string{}
		}
		c.cwd = cwd
		s.sendDir(c)
	case domain.CommandDir:
		s.sendDir(c)
	case domain.CommandPlay:
		s.handlePlay(c, msg.Data)
	case domain.CommandCastPlay:
		s.control(session.OpPlay, 0)
	case domain.CommandCastPause:
		s.control(session.OpPause, 0)
	case domain.CommandCastStop:
		s.control(session.OpStop, 0)
	case domain.CommandCastStatus:
		s.control(session.OpStatus, 0)
	case domain.CommandCastSeek:
		position := math.NaN()
		var t float64
		if err := decodeData(msg.Data, &t); err == nil && len(msg.Data) > 0 && string(msg.Data) != "null" {
			position = t
		}
		s.control(session.OpSeek, position)
	default:
		s.logger.Warn("push_unknown_command", slog.String("client_id", c.id), slog.String("event", msg.Event))
	}
}

func (s *Server) handlePlay(c *client, data json.RawMessage) {
	var req domain.PlayRequest
	if err := decodeData(data, &req); err != nil {
		s.rejectPlay(domain.NewError(domain.CodeValidation, "malformed play request", err))
		return
	}
	if s.dirs == nil || s.controller == nil {
		s.rejectPlay(domain.NewError(domain.CodeInternal, "playback is not configured", nil))
		return
	}

	absPath, err := s.dirs.Resolve(c.cwd, req.Name)
	if err != nil {
		s.rejectPlay(err)
		return
	}
	if err := s.controller.Play(req.DeviceID, absPath); err != nil {
		s.rejectPlay(err)
	}
}

// rejectPlay reports a play command refused before any transport call.
func (s *Server) rejectPlay(err error) {
	s.logger.Warn("play_rejected", slog.String("code", domain.CodeOf(err)), slog.String("error", err.Error()))
	s.hub.Publish(domain.Event{
		Name: domain.EventCastError,
		Data: domain.CastErrorPayload{
			Message: domain.PublicMessage(err),
			Code:    domain.CodeOf(err),
		},
	})
}

func (s *Server) control(op session.Op, position float64) {
	if s.controller == nil {
		return
	}
	s.controller.Control(op, position)
}

func (s *Server) sendDir(c *client) {
	listing := domain.DirListing{Cwd: c.cwd}
	if s.dirs != nil {
		files, err := s.dirs.List(c.cwd)
		if err != nil {
			s.logger.Warn("dir_list_failed", slog.String("client_id", c.id), slog.String("error", err.Error()))
		} else {
			listing.Files = files
		}
	}
	s.reply(c, domain.EventDir, listing)
}

func (s *Server) reply(c *client, event string, data any) {
	if !c.enqueue(outbound{Event: event, Data: data}) {
		s.logger.Warn("push_client_dropped", slog.String("client_id", c.id), slog.String("reason", "send queue full"))
		go c.close(websocket.StatusPolicyViolation, "client too slow")
	}
}

func decodeData(data json.RawMessage, dst any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}

func disconnectReason(err error) string {
	if err == nil {
		return "closed"
	}
	if status := websocket.CloseStatus(err); status != -1 {
		return status.String()
	}
	if errors.Is(err, context.Canceled) {
		return "shutdown"
	}
	return err.Error()
}
