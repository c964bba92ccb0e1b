package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/gbird/internal/completion"
	"github.com/ent0n29/gbird/internal/config"
	"github.com/ent0n29/gbird/internal/logging"
	"github.com/ent0n29/gbird/internal/memory"
	"github.com/ent0n29/gbird/internal/observability"
	"github.com/ent0n29/gbird/internal/playback"
	"github.com/ent0n29/gbird/internal/protocol"
	"github.com/ent0n29/gbird/internal/session"
	"github.com/ent0n29/gbird/internal/telemetry"
	"github.com/ent0n29/gbird/internal/voice"
)

var metricsSeq atomic.Int32

type testEnv struct {
	ts       *httptest.Server
	console  *voice.Orchestrator
	mic      *voice.BufferMicrophone
	sessions *session.Manager
	metrics  *observability.Metrics
}

func newTestEnv(t *testing.T, voices VoiceDesigner) *testEnv {
	t.Helper()
	logger := logging.Discard()
	metrics := observability.NewMetrics(fmt.Sprintf("gbird_httpapi_test_%d", metricsSeq.Add(1)))
	bus := voice.NewBroadcaster(metrics)
	sessions := session.NewManager(0)
	mic := voice.NewBufferMicrophone()
	out := playback.NewEventOutput(func(ev playback.Event) {
		bus.Publish(protocol.Playback{Type: protocol.TypePlayback, Event: ev})
	})
	player := playback.NewManager(out, out)
	responder := voice.NewResponder(completion.NewMockClient(), voice.NewMockSynthesizer())

	console := voice.NewOrchestrator(voice.OrchestratorConfig{
		Sessions:    sessions,
		Simulator:   telemetry.NewSimulator(telemetry.DefaultState(), telemetry.WithSeed(7)),
		Memory:      memory.NewStore(nil, memory.WithLogger(logger)),
		Microphone:  mic,
		Transcriber: voice.NewMockTranscriber(),
		Responder:   responder,
		Player:      player,
		Broadcaster: bus,
		Metrics:     metrics,
		Logger:      logger,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = console.Run(ctx)
	}()

	srv := New(config.Config{STTProvider: "mock", CompletionProvider: "mock", TTSProvider: "mock"}, Deps{
		Console:     console,
		Responder:   responder,
		Voices:      voices,
		Sessions:    sessions,
		Microphone:  mic,
		Broadcaster: bus,
		Metrics:     metrics,
		Logger:      logger,
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-done
		_ = player.Close()
	})
	return &testEnv{ts: ts, console: console, mic: mic, sessions: sessions, metrics: metrics}
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, url, err)
	}
	defer res.Body.Close()
	var payload map[string]any
	_ = json.NewDecoder(res.Body).Decode(&payload)
	return res, payload
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestUIRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	rootRes, err := client.Get(env.ts.URL + "/")
	if err != nil {
		t.Fatalf("GET / error = %v", err)
	}
	defer rootRes.Body.Close()
	if rootRes.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("GET / status = %d, want %d", rootRes.StatusCode, http.StatusTemporaryRedirect)
	}
	if got := rootRes.Header.Get("Location"); got != "/ui/" {
		t.Fatalf("GET / location = %q, want %q", got, "/ui/")
	}

	uiRes, err := http.Get(env.ts.URL + "/ui/")
	if err != nil {
		t.Fatalf("GET /ui/ error = %v", err)
	}
	defer uiRes.Body.Close()
	if uiRes.StatusCode != http.StatusOK {
		t.Fatalf("GET /ui/ status = %d, want %d", uiRes.StatusCode, http.StatusOK)
	}
	var body bytes.Buffer
	if _, err := body.ReadFrom(uiRes.Body); err != nil {
		t.Fatalf("reading /ui/ body failed: %v", err)
	}
	if !strings.Contains(body.String(), `id="console"`) {
		t.Fatalf("GET /ui/ body missing expected content")
	}
	if uiRes.Header.Get("X-Request-Id") == "" {
		t.Fatalf("missing X-Request-Id header")
	}
}

func TestStateAndTelemetry(t *testing.T) {
	env := newTestEnv(t, nil)

	res, state := doJSON(t, http.MethodGet, env.ts.URL+"/v1/state", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("GET /v1/state status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if state["state"] != "idle" {
		t.Fatalf("state = %v, want idle", state["state"])
	}
	if state["live_transcript"] != voice.InitialLiveTranscript {
		t.Fatalf("live_transcript = %v, want %q", state["live_transcript"], voice.InitialLiveTranscript)
	}

	_, tel := doJSON(t, http.MethodGet, env.ts.URL+"/v1/telemetry", nil)
	st, _ := tel["state"].(map[string]any)
	if st["battery_percent"] != float64(78) || tel["safety"] != "Nominal" {
		t.Fatalf("telemetry = %+v, want 78%% Nominal", tel)
	}

	res, refreshed := doJSON(t, http.MethodPost, env.ts.URL+"/v1/telemetry/refresh", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	st, _ = refreshed["state"].(map[string]any)
	if st["uptime_minutes"] != float64(47) {
		t.Fatalf("uptime after refresh = %v, want 47", st["uptime_minutes"])
	}
}

func TestCommsAndMemoryNewestFirst(t *testing.T) {
	env := newTestEnv(t, nil)

	res, payload := doJSON(t, http.MethodPost, env.ts.URL+"/v1/comms", map[string]string{"text": "Hold patrol loop."})
	if res.StatusCode != http.StatusOK || payload["accepted"] != true {
		t.Fatalf("POST /v1/comms = %d %+v, want accepted", res.StatusCode, payload)
	}
	_, payload = doJSON(t, http.MethodPost, env.ts.URL+"/v1/comms", map[string]string{"text": "   "})
	if payload["accepted"] != false {
		t.Fatalf("blank comms accepted = %v, want false", payload["accepted"])
	}
	res, _ = doJSON(t, http.MethodPost, env.ts.URL+"/v1/comms/quick", map[string]string{"command": "divine"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("quick command status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	_, mem := doJSON(t, http.MethodGet, env.ts.URL+"/v1/memory?limit=3", nil)
	turns, _ := mem["turns"].([]any)
	if len(turns) != 3 {
		t.Fatalf("len(turns) = %d, want 3", len(turns))
	}
	first, _ := turns[0].(map[string]any)
	if first["text"] != "Divine acknowledged. Executing now." || first["speaker"] != "agent" {
		t.Fatalf("newest turn = %+v, want Divine ack", first)
	}
	last, _ := turns[2].(map[string]any)
	if last["text"] != voice.CommsAck {
		t.Fatalf("oldest returned turn = %+v, want comms ack", last)
	}
	if mem["total"] != float64(4) {
		t.Fatalf("total = %v, want 4", mem["total"])
	}

	res, _ = doJSON(t, http.MethodGet, env.ts.URL+"/v1/memory?limit=zero", nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestConsoleCommandValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"unknown quick command", http.MethodPost, "/v1/comms/quick", map[string]string{"command": "Levitate"}, http.StatusBadRequest, "unknown_command"},
		{"chip out of range", http.MethodPost, "/v1/comms/chip", map[string]int{"index": 7}, http.StatusBadRequest, "unknown_chip"},
		{"unknown mode", http.MethodPut, "/v1/ops", map[string]string{"mode": "Hover"}, http.StatusBadRequest, "invalid_ops"},
		{"unknown route", http.MethodPut, "/v1/ops", map[string]string{"mode": "Perch", "route": "Spiral"}, http.StatusBadRequest, "invalid_ops"},
		{"bad json", http.MethodPost, "/v1/comms", "{", http.StatusBadRequest, "invalid_request"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, payload := doJSON(t, tc.method, env.ts.URL+tc.path, tc.body)
			if res.StatusCode != tc.status {
				t.Fatalf("status = %d, want %d", res.StatusCode, tc.status)
			}
			if payload["code"] != tc.code {
				t.Fatalf("code = %v, want %q", payload["code"], tc.code)
			}
		})
	}

	res, ops := doJSON(t, http.MethodPut, env.ts.URL+"/v1/ops", map[string]string{"mode": "Perch", "route": "Perimeter"})
	if res.StatusCode != http.StatusOK || ops["mode"] != "Perch" || ops["route"] != "Perimeter" {
		t.Fatalf("PUT /v1/ops = %d %+v, want Perch/Perimeter", res.StatusCode, ops)
	}
	res, _ = doJSON(t, http.MethodPut, env.ts.URL+"/v1/device", map[string]any{"battery_percent": 9})
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("PUT /v1/device status = %d, want %d", res.StatusCode, http.StatusNoContent)
	}
	if d := env.console.Snapshot().Device; d == nil || d.BatteryPercent == nil || *d.BatteryPercent != 9 {
		t.Fatalf("device = %+v, want battery 9", d)
	}
}

func TestRecordingRoundTripOverHTTP(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mic.SetAvailable(true, "audio/webm")

	res, _ := doJSON(t, http.MethodPost, env.ts.URL+"/v1/recording/start", nil)
	if res.StatusCode != http.StatusAccepted {
		t.Fatalf("start status = %d, want %d", res.StatusCode, http.StatusAccepted)
	}
	waitFor(t, "capture to open", func() bool { return env.mic.Write([]byte("opus")) })

	res, _ = doJSON(t, http.MethodPost, env.ts.URL+"/v1/recording/stop", nil)
	if res.StatusCode != http.StatusAccepted {
		t.Fatalf("stop status = %d, want %d", res.StatusCode, http.StatusAccepted)
	}
	waitFor(t, "recording to finish", func() bool {
		return env.console.State() == voice.StateIdle && env.console.Memory().Len() == 2
	})

	turns := env.console.Memory().Turns()
	if turns[0].Text != voice.MockTranscript || turns[0].Speaker != memory.SpeakerUser {
		t.Fatalf("user turn = %+v, want %q", turns[0], voice.MockTranscript)
	}
	if !strings.HasPrefix(turns[1].Text, completion.SampleReply+"\nStatus - Batt 78%") {
		t.Fatalf("agent turn = %q, want sample reply with status line", turns[1].Text)
	}

	_, sessions := doJSON(t, http.MethodGet, env.ts.URL+"/v1/sessions", nil)
	recent, _ := sessions["recent"].([]any)
	if len(recent) != 1 || sessions["started"] != float64(1) {
		t.Fatalf("sessions = %+v, want one completed", sessions)
	}
	first, _ := recent[0].(map[string]any)
	if first["status"] != string(session.StatusCompleted) {
		t.Fatalf("session status = %v, want completed", first["status"])
	}
}

func TestRecordingWithoutMicrophoneReturnsToIdle(t *testing.T) {
	env := newTestEnv(t, nil)

	res, _ := doJSON(t, http.MethodPost, env.ts.URL+"/v1/recording/start", nil)
	if res.StatusCode != http.StatusAccepted {
		t.Fatalf("start status = %d, want %d", res.StatusCode, http.StatusAccepted)
	}
	waitFor(t, "mic failure", func() bool {
		snap := env.console.Snapshot()
		return snap.State == voice.StateIdle && snap.LiveTranscript == "Mic unavailable. Check permissions."
	})
	if env.console.Memory().Len() != 0 {
		t.Fatalf("memory len = %d, want 0", env.console.Memory().Len())
	}
}

func TestRespondEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	res, payload := doJSON(t, http.MethodPost, env.ts.URL+"/api/respond", map[string]any{
		"transcript": "status",
		"context":    map[string]any{"ops_mode": "Autopilot"},
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d (%+v)", res.StatusCode, http.StatusOK, payload)
	}
	if payload["reply"] != completion.SampleReply {
		t.Fatalf("reply = %v, want %q", payload["reply"], completion.SampleReply)
	}
	if payload["sfx"] != "none" || payload["media_type"] != "audio/wav" {
		t.Fatalf("sfx/media_type = %v/%v, want none/audio/wav", payload["sfx"], payload["media_type"])
	}
	if s, _ := payload["audio_base64"].(string); s == "" {
		t.Fatalf("audio_base64 empty")
	}

	res, payload = doJSON(t, http.MethodPost, env.ts.URL+"/api/respond", map[string]string{"transcript": " "})
	if res.StatusCode != http.StatusBadRequest || payload["error"] == nil {
		t.Fatalf("blank transcript = %d %+v, want 400 with error", res.StatusCode, payload)
	}
	res, payload = doJSON(t, http.MethodPost, env.ts.URL+"/api/respond", "not json")
	if res.StatusCode != http.StatusBadRequest || payload["error"] != msgInvalidJSON {
		t.Fatalf("bad json = %d %+v, want 400 %q", res.StatusCode, payload, msgInvalidJSON)
	}
}

type fakeVoices struct {
	configured bool
	err        error
	raw        json.RawMessage
	designed   *voice.DesignRequest
}

func (f *fakeVoices) Configured() bool { return f.configured }

func (f *fakeVoices) Design(_ context.Context, req voice.DesignRequest) (json.RawMessage, error) {
	f.designed = &req
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return f.raw, f.err
}

func (f *fakeVoices) Create(_ context.Context, req voice.CreateRequest) (json.RawMessage, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return f.raw, f.err
}

func TestVoiceDesignProxy(t *testing.T) {
	validDesign := map[string]any{"voice_description": "Calm low-pitched voice with steady pace and clear diction."}

	tests := []struct {
		name    string
		voices  *fakeVoices
		path    string
		body    any
		status  int
		wantErr any
	}{
		{"missing key", &fakeVoices{}, "/v1/voice/design", validDesign, http.StatusInternalServerError, msgMissingElevenLabsKey},
		{"bad json", &fakeVoices{configured: true}, "/v1/voice/design", "{", http.StatusBadRequest, msgInvalidJSON},
		{"short description", &fakeVoices{configured: true}, "/v1/voice/design", map[string]any{"voice_description": "too short"}, http.StatusBadRequest, "voice_description must be at least 20 characters."},
		{"create missing name", &fakeVoices{configured: true}, "/v1/voice/create", map[string]any{"voice_description": "x", "generated_voice_id": "g"}, http.StatusBadRequest, "voice_name is required."},
		{
			"upstream detail passthrough",
			&fakeVoices{configured: true, err: &voice.APIError{Provider: "elevenlabs", StatusCode: http.StatusUnprocessableEntity, Message: "bad", Detail: json.RawMessage(`{"status":"invalid_text"}`)}},
			"/v1/voice/design", validDesign, http.StatusUnprocessableEntity, map[string]any{"status": "invalid_text"},
		},
		{
			"upstream without detail",
			&fakeVoices{configured: true, err: &voice.APIError{Provider: "elevenlabs", StatusCode: http.StatusTooManyRequests}},
			"/v1/voice/create", map[string]any{"voice_name": "n", "voice_description": "d", "generated_voice_id": "g"}, http.StatusTooManyRequests, msgElevenLabsFailed,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, tc.voices)
			res, payload := doJSON(t, http.MethodPost, env.ts.URL+tc.path, tc.body)
			if res.StatusCode != tc.status {
				t.Fatalf("status = %d, want %d (%+v)", res.StatusCode, tc.status, payload)
			}
			got, _ := json.Marshal(payload["error"])
			want, _ := json.Marshal(tc.wantErr)
			if string(got) != string(want) {
				t.Fatalf("error = %s, want %s", got, want)
			}
		})
	}

	voices := &fakeVoices{configured: true, raw: json.RawMessage(`{"previews":[{"generated_voice_id":"abc"}]}`)}
	env := newTestEnv(t, voices)
	res, payload := doJSON(t, http.MethodPost, env.ts.URL+"/v1/voice/design", validDesign)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("design status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	previews, _ := payload["previews"].([]any)
	if len(previews) != 1 {
		t.Fatalf("previews = %+v, want one", payload["previews"])
	}
}

func dialConsole(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/v1/console/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil reads messages until one of the given type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ protocol.MessageType) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read waiting for %s: %v", typ, err)
		}
		if msg["type"] == string(typ) {
			return msg
		}
	}
}

func TestConsoleWebsocket(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := dialConsole(t, env)

	var first map[string]any
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if first["type"] != string(protocol.TypeConsoleSnapshot) || first["state"] != "idle" {
		t.Fatalf("first message = %+v, want idle console_snapshot", first)
	}

	if err := conn.WriteJSON(map[string]any{"type": "client_text", "text": "Scan the rooftop."}); err != nil {
		t.Fatalf("write client_text: %v", err)
	}
	appended := readUntil(t, conn, protocol.TypeTurnAppended)
	turn, _ := appended["turn"].(map[string]any)
	if turn["text"] != "Scan the rooftop." || turn["channel"] != "comms" {
		t.Fatalf("turn = %+v, want user comms turn", turn)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`)); err != nil {
		t.Fatalf("write bogus: %v", err)
	}
	errEvent := readUntil(t, conn, protocol.TypeErrorEvent)
	if errEvent["code"] != "invalid_client_message" || errEvent["source"] != "gateway" {
		t.Fatalf("error event = %+v, want invalid_client_message from gateway", errEvent)
	}

	if err := conn.WriteJSON(map[string]any{"type": "client_ops", "mode": "Hover"}); err != nil {
		t.Fatalf("write client_ops: %v", err)
	}
	errEvent = readUntil(t, conn, protocol.TypeErrorEvent)
	if errEvent["code"] != "invalid_ops" {
		t.Fatalf("error event code = %v, want invalid_ops", errEvent["code"])
	}

	if err := conn.WriteJSON(map[string]any{"type": "client_control", "action": "refresh"}); err != nil {
		t.Fatalf("write refresh: %v", err)
	}
	tel := readUntil(t, conn, protocol.TypeTelemetry)
	if tel["safety"] == nil {
		t.Fatalf("telemetry = %+v, want safety flag", tel)
	}
}

func TestConsoleWebsocketRecording(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := dialConsole(t, env)
	readUntil(t, conn, protocol.TypeConsoleSnapshot)

	send := func(msg map[string]any) {
		t.Helper()
		if err := conn.WriteJSON(msg); err != nil {
			t.Fatalf("write %v: %v", msg["type"], err)
		}
	}
	send(map[string]any{"type": "client_microphone", "available": true, "media_type": "audio/ogg"})
	send(map[string]any{"type": "client_control", "action": "start"})
	changed := readUntil(t, conn, protocol.TypeStateChanged)
	if changed["to"] != "recording" {
		t.Fatalf("state_changed to = %v, want recording", changed["to"])
	}
	waitFor(t, "capture to open", func() bool { return env.mic.Write([]byte("seed")) })
	send(map[string]any{"type": "client_audio_chunk", "seq": 1, "audio_base64": "b3B1cw=="})
	send(map[string]any{"type": "client_control", "action": "stop"})

	ev := readUntil(t, conn, protocol.TypePlayback)
	event, _ := ev["event"].(map[string]any)
	if event["type"] != string(playback.EventSpeechStart) || event["media_type"] != "audio/wav" {
		t.Fatalf("playback event = %+v, want speech_start audio/wav", event)
	}
	waitFor(t, "console to return to idle", func() bool { return env.console.State() == voice.StateIdle })
}

func TestConsoleWebsocketRejectsForeignOrigin(t *testing.T) {
	env := newTestEnv(t, nil)
	url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/v1/console/ws"
	header := http.Header{"Origin": []string{"https://evil.example"}}
	conn, res, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		conn.Close()
		t.Fatalf("dial with foreign origin succeeded")
	}
	if res == nil || res.StatusCode != http.StatusForbidden {
		t.Fatalf("response = %+v, want 403", res)
	}
}

func TestPerfLatency(t *testing.T) {
	env := newTestEnv(t, nil)
	env.metrics.ObserveStage(observability.StageTranscribe, 120*time.Millisecond)
	env.metrics.ObserveStage(observability.StageGenerate, 300*time.Millisecond)

	res, payload := doJSON(t, http.MethodGet, env.ts.URL+"/v1/perf/latency?stage="+observability.StageGenerate, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	stages, _ := payload["stages"].([]any)
	if len(stages) != 1 {
		t.Fatalf("stages = %+v, want only %s", payload["stages"], observability.StageGenerate)
	}
	if got := stages[0].(map[string]any)["stage"]; got != observability.StageGenerate {
		t.Fatalf("stage = %v, want %s", got, observability.StageGenerate)
	}

	res, _ = doJSON(t, http.MethodDelete, env.ts.URL+"/v1/perf/latency", nil)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("reset status = %d, want %d", res.StatusCode, http.StatusNoContent)
	}
	_, payload = doJSON(t, http.MethodGet, env.ts.URL+"/v1/perf/latency", nil)
	if stages, _ := payload["stages"].([]any); len(stages) != 0 {
		t.Fatalf("stages after reset = %+v, want empty", payload["stages"])
	}
}
