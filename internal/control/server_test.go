package control

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vidwall/vidwall/internal/domain"
)

type fakeOrchestrator struct {
	surfaces    []domain.SurfaceDescriptor
	surfacesErr error
	assigned    map[domain.SurfaceID][]*domain.MediaItem
	playing     bool
	states      map[domain.SurfaceID]domain.PlaybackState

	plays, pauses, continues, stops, shuffles int
	volumes, opacities                        []float64
	positions                                 []time.Duration
}

func (f *fakeOrchestrator) Surfaces(context.Context) ([]domain.SurfaceDescriptor, error) {
	return f.surfaces, f.surfacesErr
}

func (f *fakeOrchestrator) Assign(_ context.Context, assignments map[domain.SurfaceID][]*domain.MediaItem) {
	f.assigned = assignments
}

func (f *fakeOrchestrator) PlayAll()     { f.plays++; f.playing = true }
func (f *fakeOrchestrator) PauseAll()    { f.pauses++; f.playing = false }
func (f *fakeOrchestrator) ContinueAll() { f.continues++; f.playing = true }
func (f *fakeOrchestrator) StopAll()     { f.stops++; f.playing = false }
func (f *fakeOrchestrator) ReshuffleAll() { f.shuffles++ }

func (f *fakeOrchestrator) SetVolumeAll(v float64)  { f.volumes = append(f.volumes, v) }
func (f *fakeOrchestrator) SetOpacityAll(v float64) { f.opacities = append(f.opacities, v) }

func (f *fakeOrchestrator) SyncPositionAll(position time.Duration) {
	f.positions = append(f.positions, position)
}

func (f *fakeOrchestrator) IsPlaying() bool { return f.playing }

func (f *fakeOrchestrator) States() map[domain.SurfaceID]domain.PlaybackState {
	return f.states
}

func newServerForTest(input io.Reader, output io.Writer, orch Orchestrator, loader PlaylistLoader) *Server {
	return New(input, output, Config{
		ServerName:    "vidwall",
		ServerVersion: "1.0.0-test",
		Logger:        zerolog.Nop(),
		Orchestrator:  orch,
		LoadPlaylist:  loader,
	})
}

func runRequests(t *testing.T, orch Orchestrator, loader PlaylistLoader, reqs ...map[string]any) []map[string]any {
	t.Helper()

	input := bytes.NewBuffer(nil)
	output := bytes.NewBuffer(nil)
	for _, req := range reqs {
		writeRequest(t, input, req)
	}

	srv := newServerForTest(input, output, orch, loader)
	if err := srv.Run(context.Background()); err != nil {
		t.Fatalf("run server: %v", err)
	}
	return readResponses(t, output.Bytes())
}

func TestInitialize(t *testing.T) {
	responses := runRequests(t, &fakeOrchestrator{}, nil, map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params":  map[string]any{},
	})

	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(responses))
	}
	result := responses[0]["result"].(map[string]any)
	if result["protocolVersion"].(string) == "" {
		t.Fatal("protocolVersion must not be empty")
	}
	info := result["serverInfo"].(map[string]any)
	if info["name"] != "vidwall" || info["version"] != "1.0.0-test" {
		t.Fatalf("unexpected serverInfo: %#v", info)
	}
}

func TestInitializeJSONLineRequest(t *testing.T) {
	input := bytes.NewBufferString(`{"jsonrpc":"2.0","id":1,"method":"initialize"}` + "\n")
	output := bytes.NewBuffer(nil)

	srv := newServerForTest(input, output, &fakeOrchestrator{}, nil)
	if err := srv.Run(context.Background()); err != nil {
		t.Fatalf("run server: %v", err)
	}

	// Replies to a JSON-line client are JSON lines too.
	line, err := bufio.NewReader(bytes.NewReader(output.Bytes())).ReadString('\n')
	if err != nil {
		t.Fatalf("read json line: %v", err)
	}
	resp := map[string]any{}
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp["result"] == nil {
		t.Fatalf("expected result, got %#v", resp)
	}
}

func TestUnknownMethod(t *testing.T) {
	responses := runRequests(t, &fakeOrchestrator{}, nil, map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "does_not_exist",
	})

	respErr := responses[0]["error"].(map[string]any)
	if respErr["code"].(float64) != -32601 {
		t.Fatalf("expected -32601, got %#v", respErr["code"])
	}
}

func TestListSurfaces(t *testing.T) {
	orch := &fakeOrchestrator{
		surfaces: []domain.SurfaceDescriptor{
			{ID: "s1", Name: "left", Primary: true},
			{ID: "s2", Name: "right"},
		},
	}
	responses := runRequests(t, orch, nil, map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "list_surfaces",
	})

	result := responses[0]["result"].(map[string]any)
	if result["count"].(float64) != 2 {
		t.Fatalf("expected 2 surfaces, got %#v", result["count"])
	}
	first := result["surfaces"].([]any)[0].(map[string]any)
	if first["id"] != "s1" || first["primary"] != true {
		t.Fatalf("unexpected first surface: %#v", first)
	}
}

func TestAssignBuildsQueuesWithDefaults(t *testing.T) {
	orch := &fakeOrchestrator{}
	responses := runRequests(t, orch, nil, map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "assign",
		"params": map[string]any{
			"assignments": map[string]any{
				"s1": []map[string]any{
					{"reference": "/media/a.mp4"},
					{"reference": "http://site/page", "opacity": 0.5, "volume": 0.2},
				},
			},
		},
	})

	result := responses[0]["result"].(map[string]any)
	if result["ok"] != true || result["items"].(float64) != 2 {
		t.Fatalf("unexpected assign result: %#v", result)
	}

	queue := orch.assigned["s1"]
	if len(queue) != 2 {
		t.Fatalf("expected 2 queued items, got %d", len(queue))
	}
	if queue[0].Opacity != 1.0 || queue[0].Volume != 1.0 {
		t.Fatalf("expected defaults on first item, got %+v", queue[0])
	}
	if queue[1].Opacity != 0.5 || queue[1].Volume != 0.2 {
		t.Fatalf("expected explicit values on second item, got %+v", queue[1])
	}
}

func TestAssignWithoutAssignmentsIsInvalid(t *testing.T) {
	responses := runRequests(t, &fakeOrchestrator{}, nil, map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "assign",
		"params":  map[string]any{"assignments": map[string]any{}},
	})

	respErr := responses[0]["error"].(map[string]any)
	if respErr["code"].(float64) != -32602 {
		t.Fatalf("expected -32602, got %#v", respErr["code"])
	}
}

func TestTransportCommands(t *testing.T) {
	orch := &fakeOrchestrator{}
	responses := runRequests(t, orch, nil,
		map[string]any{"jsonrpc": "2.0", "id": 1, "method": "play_all"},
		map[string]any{"jsonrpc": "2.0", "id": 2, "method": "pause_all"},
		map[string]any{"jsonrpc": "2.0", "id": 3, "method": "continue_all"},
		map[string]any{"jsonrpc": "2.0", "id": 4, "method": "stop_all"},
		map[string]any{"jsonrpc": "2.0", "id": 5, "method": "shuffle_all"},
	)

	if len(responses) != 5 {
		t.Fatalf("expected 5 responses, got %d", len(responses))
	}
	if orch.plays != 1 || orch.pauses != 1 || orch.continues != 1 || orch.stops != 1 || orch.shuffles != 1 {
		t.Fatalf("unexpected dispatch counts: %+v", orch)
	}

	// play_all ack reflects the playing flag at reply time.
	ack := responses[0]["result"].(map[string]any)
	if ack["ok"] != true || ack["playing"] != true {
		t.Fatalf("unexpected play_all ack: %#v", ack)
	}
}

func TestSetVolumeAndOpacityPassUnclamped(t *testing.T) {
	orch := &fakeOrchestrator{}
	runRequests(t, orch, nil,
		map[string]any{"jsonrpc": "2.0", "id": 1, "method": "set_volume", "params": map[string]any{"value": 99.0}},
		map[string]any{"jsonrpc": "2.0", "id": 2, "method": "set_opacity", "params": map[string]any{"value": -1.0}},
	)

	if len(orch.volumes) != 1 || orch.volumes[0] != 99.0 {
		t.Fatalf("unexpected volumes: %#v", orch.volumes)
	}
	if len(orch.opacities) != 1 || orch.opacities[0] != -1.0 {
		t.Fatalf("unexpected opacities: %#v", orch.opacities)
	}
}

func TestSetVolumeWithoutValueIsInvalid(t *testing.T) {
	responses := runRequests(t, &fakeOrchestrator{}, nil, map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "set_volume",
		"params":  map[string]any{},
	})

	respErr := responses[0]["error"].(map[string]any)
	if respErr["code"].(float64) != -32602 {
		t.Fatalf("expected -32602, got %#v", respErr["code"])
	}
}

func TestSyncPositionAcceptsZero(t *testing.T) {
	orch := &fakeOrchestrator{}
	responses := runRequests(t, orch, nil, map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "sync_position",
		"params":  map[string]any{"position_ms": 0},
	})

	if responses[0]["error"] != nil {
		t.Fatalf("unexpected error: %#v", responses[0]["error"])
	}
	if len(orch.positions) != 1 || orch.positions[0] != 0 {
		t.Fatalf("unexpected positions: %#v", orch.positions)
	}
}

func TestSyncPositionRejectsNegative(t *testing.T) {
	responses := runRequests(t, &fakeOrchestrator{}, nil, map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "sync_position",
		"params":  map[string]any{"position_ms": -5},
	})

	respErr := responses[0]["error"].(map[string]any)
	if respErr["code"].(float64) != -32602 {
		t.Fatalf("expected -32602, got %#v", respErr["code"])
	}
}

func TestStatusReportsStates(t *testing.T) {
	orch := &fakeOrchestrator{
		playing: true,
		states: map[domain.SurfaceID]domain.PlaybackState{
			"s1": domain.StatePlaying,
			"s2": domain.StatePaused,
		},
	}
	responses := runRequests(t, orch, nil, map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "status",
	})

	result := responses[0]["result"].(map[string]any)
	if result["playing"] != true {
		t.Fatalf("expected playing=true: %#v", result)
	}
	surfaces := result["surfaces"].(map[string]any)
	if surfaces["s1"] != "playing" || surfaces["s2"] != "paused" {
		t.Fatalf("unexpected surface states: %#v", surfaces)
	}
}

func TestLoadPlaylistAssignsQueues(t *testing.T) {
	orch := &fakeOrchestrator{
		surfaces: []domain.SurfaceDescriptor{{ID: "s1", Name: "left", Primary: true}},
	}
	loader := func(path string, surfaces []domain.SurfaceDescriptor) (map[domain.SurfaceID][]*domain.MediaItem, error) {
		if path != "/tmp/playlist.json" {
			t.Fatalf("unexpected path: %s", path)
		}
		return map[domain.SurfaceID][]*domain.MediaItem{
			"s1": {{Reference: "/media/a.mp4"}},
		}, nil
	}

	responses := runRequests(t, orch, loader, map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "load_playlist",
		"params":  map[string]any{"path": "/tmp/playlist.json"},
	})

	result := responses[0]["result"].(map[string]any)
	if result["ok"] != true || result["items"].(float64) != 1 {
		t.Fatalf("unexpected result: %#v", result)
	}
	if len(orch.assigned["s1"]) != 1 {
		t.Fatalf("expected queue assigned, got %#v", orch.assigned)
	}
}

func TestLoadPlaylistErrorCarriesCommandError(t *testing.T) {
	orch := &fakeOrchestrator{}
	loader := func(string, []domain.SurfaceDescriptor) (map[domain.SurfaceID][]*domain.MediaItem, error) {
		return nil, errors.New("no such file")
	}

	responses := runRequests(t, orch, loader, map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "load_playlist",
		"params":  map[string]any{"path": "/tmp/missing.json"},
	})

	respErr := responses[0]["error"].(map[string]any)
	if respErr["code"].(float64) != -32000 {
		t.Fatalf("expected -32000, got %#v", respErr["code"])
	}
	data := respErr["data"].(map[string]any)
	if data["code"] != "PLAYLIST_UNREADABLE" {
		t.Fatalf("unexpected error data: %#v", data)
	}
}

func TestNotificationGetsNoReply(t *testing.T) {
	responses := runRequests(t, &fakeOrchestrator{}, nil, map[string]any{
		"jsonrpc": "2.0",
		"method":  "play_all",
	})
	if len(responses) != 0 {
		t.Fatalf("expected no responses, got %d", len(responses))
	}
}

func TestDecodeStrictRejectsTrailingJSON(t *testing.T) {
	var out struct {
		Value *float64 `json:"value"`
	}
	if err := decodeStrict(json.RawMessage(`{"value":1}{"value":2}`), &out); err == nil {
		t.Fatal("expected trailing JSON to be rejected")
	}
	if err := decodeStrict(json.RawMessage(`{"value":1,"extra":true}`), &out); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func writeRequest(t *testing.T, w io.Writer, req map[string]any) {
	t.Helper()

	payload, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	if _, err := w.Write([]byte("Content-Length: ")); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if _, err := w.Write([]byte(strconv.Itoa(len(payload)))); err != nil {
		t.Fatalf("write length: %v", err)
	}
	if _, err := w.Write([]byte("\r\n\r\n")); err != nil {
		t.Fatalf("write separator: %v", err)
	}
	if _, err := w.Write(payload); err != nil {
		t.Fatalf("write payload: %v", err)
	}
}

func readResponses(t *testing.T, output []byte) []map[string]any {
	t.Helper()

	reader := bufio.NewReader(bytes.NewReader(output))
	var responses []map[string]any
	for {
		msg, _, err := readFrame(reader)
		if err != nil {
			if err == io.EOF {
				break
			}
			t.Fatalf("read response: %v", err)
		}

		resp := map[string]any{}
		if err := json.Unmarshal(msg, &resp); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		responses = append(responses, resp)
	}

	return responses
}
