// Package control exposes the orchestration service over a stdio JSON-RPC
// channel. Both Content-Length framing and JSON-line framing are accepted;
// replies use whichever the client spoke first.
package control

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vidwall/vidwall/internal/domain"
)

const protocolVersion = "2025-03-01"

// Orchestrator is the slice of the orchestration service the control channel
// drives.
type Orchestrator interface {
	Surfaces(ctx context.Context) ([]domain.SurfaceDescriptor, error)
	Assign(ctx context.Context, assignments map[domain.SurfaceID][]*domain.MediaItem)
	PlayAll()
	PauseAll()
	ContinueAll()
	StopAll()
	ReshuffleAll()
	SetVolumeAll(v float64)
	SetOpacityAll(v float64)
	SyncPositionAll(position time.Duration)
	IsPlaying() bool
	States() map[domain.SurfaceID]domain.PlaybackState
}

// PlaylistLoader reads a playlist file into per-surface assignments.
type PlaylistLoader func(path string, surfaces []domain.SurfaceDescriptor) (map[domain.SurfaceID][]*domain.MediaItem, error)

type Server struct {
	in                *bufio.Reader
	out               *bufio.Writer
	serverName        string
	serverVersion     string
	log               zerolog.Logger
	orchestrator      Orchestrator
	loadPlaylist      PlaylistLoader
	defaultOpacity    float64
	defaultVolume     float64
	useJSONLineOutput bool
	outputModeLocked  bool
}

type Config struct {
	ServerName     string
	ServerVersion  string
	Logger         zerolog.Logger
	Orchestrator   Orchestrator
	LoadPlaylist   PlaylistLoader
	DefaultOpacity float64
	DefaultVolume  float64
}

func New(in io.Reader, out io.Writer, cfg Config) *Server {
	if cfg.ServerName == "" {
		cfg.ServerName = "vidwall"
	}
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	if cfg.DefaultOpacity == 0 {
		cfg.DefaultOpacity = 1.0
	}
	if cfg.DefaultVolume == 0 {
		cfg.DefaultVolume = 1.0
	}
	return &Server{
		in:             bufio.NewReader(in),
		out:            bufio.NewWriter(out),
		serverName:     cfg.ServerName,
		serverVersion:  cfg.ServerVersion,
		log:            cfg.Logger,
		orchestrator:   cfg.Orchestrator,
		loadPlaylist:   cfg.LoadPlaylist,
		defaultOpacity: cfg.DefaultOpacity,
		defaultVolume:  cfg.DefaultVolume,
	}
}

// Run reads and answers requests until the stream closes or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Str("reason", ctx.Err().Error()).Msg("control channel closing")
			return ctx.Err()
		default:
		}

		payload, lineFramed, err := readFrame(s.in)
		if err != nil {
			if err == io.EOF {
				s.log.Info().Msg("control stream eof")
				return nil
			}
			s.log.Error().Err(err).Msg("control read error")
			return err
		}
		if !s.outputModeLocked {
			s.useJSONLineOutput = lineFramed
			s.outputModeLocked = true
		}

		if err := s.handle(ctx, payload); err != nil {
			s.log.Error().Err(err).Msg("control handle error")
			return err
		}
	}
}

func (s *Server) handle(ctx context.Context, payload []byte) error {
	startedAt := time.Now()

	var req request
	if err := json.Unmarshal(payload, &req); err != nil {
		s.logCall("parse", startedAt, "-32700")
		return s.send(response{
			JSONRPC: "2.0",
			Error:   &responseError{Code: -32700, Message: "parse error"},
		})
	}

	// Notifications get no reply.
	if len(req.ID) == 0 {
		return nil
	}

	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		s.logCall(req.Method, startedAt, "-32600")
		return s.send(response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &responseError{Code: -32600, Message: "invalid request"},
		})
	}

	if req.Method != "initialize" && s.orchestrator == nil {
		return s.sendCommandError(req.Method, startedAt, req.ID,
			domain.NewCommandError("NOT_READY", "orchestrator is not configured"))
	}

	switch req.Method {
	case "initialize":
		s.logCall("initialize", startedAt, "")
		return s.send(response{JSONRPC: "2.0", ID: req.ID, Result: initializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo: map[string]string{
				"name":    s.serverName,
				"version": s.serverVersion,
			},
		}})
	case "list_surfaces":
		return s.handleListSurfaces(ctx, req.ID, startedAt)
	case "assign":
		return s.handleAssign(ctx, req.ID, req.Params, startedAt)
	case "play_all":
		s.orchestrator.PlayAll()
		return s.ack(req.ID, "play_all", startedAt)
	case "pause_all":
		s.orchestrator.PauseAll()
		return s.ack(req.ID, "pause_all", startedAt)
	case "continue_all":
		s.orchestrator.ContinueAll()
		return s.ack(req.ID, "continue_all", startedAt)
	case "stop_all":
		s.orchestrator.StopAll()
		return s.ack(req.ID, "stop_all", startedAt)
	case "shuffle_all":
		s.orchestrator.ReshuffleAll()
		return s.ack(req.ID, "shuffle_all", startedAt)
	case "set_volume":
		return s.handleSetValue(req.ID, req.Params, startedAt, "set_volume", s.orchestrator.SetVolumeAll)
	case "set_opacity":
		return s.handleSetValue(req.ID, req.Params, startedAt, "set_opacity", s.orchestrator.SetOpacityAll)
	case "sync_position":
		return s.handleSyncPosition(req.ID, req.Params, startedAt)
	case "status":
		return s.handleStatus(req.ID, startedAt)
	case "load_playlist":
		return s.handleLoadPlaylist(ctx, req.ID, req.Params, startedAt)
	default:
		s.logCall(req.Method, startedAt, "-32601")
		return s.send(response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &responseError{Code: -32601, Message: "method not found"},
		})
	}
}

func (s *Server) handleListSurfaces(ctx context.Context, id json.RawMessage, startedAt time.Time) error {
	descriptors, err := s.orchestrator.Surfaces(ctx)
	if err != nil {
		return s.sendCommandError("list_surfaces", startedAt, id,
			domain.NewCommandError("DISCOVERY_FAILED", err.Error()))
	}

	infos := make([]surfaceInfo, 0, len(descriptors))
	for _, d := range descriptors {
		infos = append(infos, surfaceInfo{ID: string(d.ID), Name: d.Name, Primary: d.Primary})
	}
	s.logCall("list_surfaces", startedAt, "")
	return s.send(response{JSONRPC: "2.0", ID: id, Result: surfacesResult{
		Count:    len(infos),
		Surfaces: infos,
	}})
}

func (s *Server) handleAssign(ctx context.Context, id json.RawMessage, rawParams json.RawMessage, startedAt time.Time) error {
	var params struct {
		Assignments map[string][]assignEntry `json:"assignments"`
	}
	if err := decodeStrict(rawParams, &params); err != nil || len(params.Assignments) == 0 {
		return s.sendInvalidParams("assign", startedAt, id)
	}

	assignments, items := s.buildAssignments(params.Assignments)
	s.orchestrator.Assign(ctx, assignments)

	s.logCall("assign", startedAt, "")
	return s.send(response{JSONRPC: "2.0", ID: id, Result: assignResult{
		OK:       true,
		Surfaces: len(assignments),
		Items:    items,
	}})
}

func (s *Server) buildAssignments(raw map[string][]assignEntry) (map[domain.SurfaceID][]*domain.MediaItem, int) {
	assignments := make(map[domain.SurfaceID][]*domain.MediaItem, len(raw))
	items := 0
	for surface, entries := range raw {
		id := domain.SurfaceID(strings.TrimSpace(surface))
		if id == "" {
			continue
		}
		queue := make([]*domain.MediaItem, 0, len(entries))
		for _, e := range entries {
			item := &domain.MediaItem{
				Reference: e.Reference,
				Title:     e.Title,
				Opacity:   s.defaultOpacity,
				Volume:    s.defaultVolume,
				Surface:   id,
			}
			if e.Opacity != nil {
				item.Opacity = *e.Opacity
			}
			if e.Volume != nil {
				item.Volume = *e.Volume
			}
			queue = append(queue, item)
		}
		assignments[id] = queue
		items += len(queue)
	}
	return assignments, items
}

func (s *Server) handleSetValue(id json.RawMessage, rawParams json.RawMessage, startedAt time.Time, method string, apply func(float64)) error {
	var params struct {
		Value *float64 `json:"value"`
	}
	if err := decodeStrict(rawParams, &params); err != nil || params.Value == nil {
		return s.sendInvalidParams(method, startedAt, id)
	}

	// Values pass through unclamped; the renderer decides what to do with
	// out-of-range input.
	apply(*params.Value)
	return s.ack(id, method, startedAt)
}

func (s *Server) handleSyncPosition(id json.RawMessage, rawParams json.RawMessage, startedAt time.Time) error {
	var params struct {
		PositionMS *int64 `json:"position_ms"`
	}
	if err := decodeStrict(rawParams, &params); err != nil || params.PositionMS == nil || *params.PositionMS < 0 {
		return s.sendInvalidParams("sync_position", startedAt, id)
	}

	s.orchestrator.SyncPositionAll(time.Duration(*params.PositionMS) * time.Millisecond)
	return s.ack(id, "sync_position", startedAt)
}

func (s *Server) handleStatus(id json.RawMessage, startedAt time.Time) error {
	states := s.orchestrator.States()
	surfaces := make(map[string]string, len(states))
	for surface, state := range states {
		surfaces[string(surface)] = state.String()
	}

	s.logCall("status", startedAt, "")
	return s.send(response{JSONRPC: "2.0", ID: id, Result: statusResult{
		Playing:  s.orchestrator.IsPlaying(),
		Surfaces: surfaces,
	}})
}

func (s *Server) handleLoadPlaylist(ctx context.Context, id json.RawMessage, rawParams json.RawMessage, startedAt time.Time) error {
	if s.loadPlaylist == nil {
		return s.sendCommandError("load_playlist", startedAt, id,
			domain.NewCommandError("NOT_READY", "playlist loading is not configured"))
	}

	var params struct {
		Path string `json:"path"`
	}
	if err := decodeStrict(rawParams, &params); err != nil || strings.TrimSpace(params.Path) == "" {
		return s.sendInvalidParams("load_playlist", startedAt, id)
	}

	descriptors, err := s.orchestrator.Surfaces(ctx)
	if err != nil {
		return s.sendCommandError("load_playlist", startedAt, id,
			domain.NewCommandError("DISCOVERY_FAILED", err.Error()))
	}

	assignments, err := s.loadPlaylist(strings.TrimSpace(params.Path), descriptors)
	if err != nil {
		return s.sendCommandError("load_playlist", startedAt, id,
			domain.NewCommandError("PLAYLIST_UNREADABLE", err.Error()))
	}

	items := 0
	for _, queue := range assignments {
		items += len(queue)
	}
	s.orchestrator.Assign(ctx, assignments)

	s.logCall("load_playlist", startedAt, "")
	return s.send(response{JSONRPC: "2.0", ID: id, Result: assignResult{
		OK:       true,
		Surfaces: len(assignments),
		Items:    items,
	}})
}

func (s *Server) ack(id json.RawMessage, method string, startedAt time.Time) error {
	s.logCall(method, startedAt, "")
	return s.send(response{JSONRPC: "2.0", ID: id, Result: ackResult{
		OK:      true,
		Playing: s.orchestrator.IsPlaying(),
	}})
}

func decodeStrict(raw json.RawMessage, out any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("missing params")
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return err
	}
	if decoder.More() {
		return fmt.Errorf("invalid JSON payload")
	}
	var trailing any
	if err := decoder.Decode(&trailing); err != io.EOF {
		return fmt.Errorf("invalid JSON payload")
	}
	return nil
}

func (s *Server) sendInvalidParams(method string, startedAt time.Time, id json.RawMessage) error {
	s.logCall(method, startedAt, "-32602")
	return s.send(response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &responseError{Code: -32602, Message: "invalid params"},
	})
}

// sendCommandError reports a domain-level failure with its structured shape
// attached as error data.
func (s *Server) sendCommandError(method string, startedAt time.Time, id json.RawMessage, err error) error {
	var cmdErr *domain.CommandError
	if !errors.As(err, &cmdErr) || cmdErr == nil {
		cmdErr = domain.NewCommandError("INTERNAL_ERROR", err.Error())
	}
	s.logCall(method, startedAt, cmdErr.Code)
	return s.send(response{
		JSONRPC: "2.0",
		ID:      id,
		Error: &responseError{
			Code:    -32000,
			Message: cmdErr.Message,
			Data:    cmdErr,
		},
	})
}

func (s *Server) logCall(method string, startedAt time.Time, errorCode string) {
	ev := s.log.Info()
	if strings.TrimSpace(errorCode) != "" {
		ev = s.log.Error().Str("error_code", errorCode)
	}
	ev.Str("method", method).
		Int64("duration_ms", time.Since(startedAt).Milliseconds()).
		Msg("control call")
}

func (s *Server) send(resp response) error {
	encoded, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if s.useJSONLineOutput {
		return writeLineFrame(s.out, encoded)
	}
	return writeHeaderFrame(s.out, encoded)
}
