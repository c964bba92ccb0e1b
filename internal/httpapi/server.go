package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ent0n29/gbird/internal/config"
	"github.com/ent0n29/gbird/internal/logging"
	"github.com/ent0n29/gbird/internal/observability"
	"github.com/ent0n29/gbird/internal/protocol"
	"github.com/ent0n29/gbird/internal/reply"
	"github.com/ent0n29/gbird/internal/session"
	"github.com/ent0n29/gbird/internal/telemetry"
	"github.com/ent0n29/gbird/internal/voice"
)

const (
	defaultMemoryLimit   = 8
	defaultSessionsLimit = 20
	wsWriteTimeout       = 10 * time.Second
	wsReadTimeout        = 120 * time.Second
)

// VoiceDesigner proxies the ElevenLabs voice design endpoints.
type VoiceDesigner interface {
	Configured() bool
	Design(ctx context.Context, req voice.DesignRequest) (json.RawMessage, error)
	Create(ctx context.Context, req voice.CreateRequest) (json.RawMessage, error)
}

// Deps are the components the HTTP surface drives.
type Deps struct {
	Console     *voice.Orchestrator
	Responder   *voice.Responder
	Voices      VoiceDesigner
	Sessions    *session.Manager
	Microphone  *voice.BufferMicrophone
	Broadcaster *voice.Broadcaster
	Metrics     *observability.Metrics
	Logger      logrus.FieldLogger
}

type Server struct {
	cfg       config.Config
	console   *voice.Orchestrator
	responder *voice.Responder
	voices    VoiceDesigner
	sessions  *session.Manager
	mic       *voice.BufferMicrophone
	bus       *voice.Broadcaster
	metrics   *observability.Metrics
	log       logrus.FieldLogger
	upgrader  websocket.Upgrader
	static    http.Handler
}

func New(cfg config.Config, deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		cfg:       cfg,
		console:   deps.Console,
		responder: deps.Responder,
		voices:    deps.Voices,
		sessions:  deps.Sessions,
		mic:       deps.Microphone,
		bus:       deps.Broadcaster,
		metrics:   deps.Metrics,
		log:       log.WithField("component", "httpapi"),
		static:    newStaticHandler(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browsers may drive the microphone.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(logging.RequestLogger(s.log))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusTemporaryRedirect)
	})
	r.Get("/ui", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusTemporaryRedirect)
	})
	r.Handle("/ui/*", http.StripPrefix("/ui/", s.static))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/perf/latency", s.handlePerfLatency)
	r.Delete("/v1/perf/latency", s.handlePerfReset)

	r.Get("/v1/state", s.handleState)
	r.Get("/v1/telemetry", s.handleTelemetry)
	r.Post("/v1/telemetry/refresh", s.handleRefresh)
	r.Get("/v1/memory", s.handleMemory)
	r.Get("/v1/sessions", s.handleSessions)
	r.Post("/v1/comms", s.handleComms)
	r.Post("/v1/comms/quick", s.handleQuickCommand)
	r.Post("/v1/comms/chip", s.handleCommsChip)
	r.Put("/v1/ops", s.handleOps)
	r.Put("/v1/device", s.handleDevice)
	r.Post("/v1/recording/start", s.handleRecordingStart)
	r.Post("/v1/recording/stop", s.handleRecordingStop)
	r.Post("/v1/playback/stop", s.handlePlaybackStop)
	r.Get("/v1/console/ws", s.handleConsoleWS)

	r.Post("/api/respond", s.handleRespond)
	r.Post("/v1/voice/design", s.handleVoiceDesign)
	r.Post("/v1/voice/create", s.handleVoiceCreate)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ready",
		"stt_provider":   s.cfg.STTProvider,
		"llm_provider":   s.cfg.CompletionProvider,
		"tts_provider":   s.cfg.TTSProvider,
		"snapshot_store": s.cfg.SnapshotBackend,
		"consoles":       s.bus.Subscribers(),
	})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.console.Snapshot())
}

func (s *Server) handleTelemetry(w http.ResponseWriter, _ *http.Request) {
	st := s.console.Snapshot().Telemetry
	respondJSON(w, http.StatusOK, protocol.Telemetry{
		Type:   protocol.TypeTelemetry,
		State:  st,
		Safety: telemetry.SafetyFlag(st.BatteryPercent),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := s.console.Refresh(r.Context())
	if err != nil {
		s.respondConsoleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// handleMemory returns the newest turns first, for the log panel.
func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(r, defaultMemoryLimit)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
		return
	}
	turns := s.console.Memory().Recent(limit)
	slices.Reverse(turns)
	respondJSON(w, http.StatusOK, map[string]any{
		"turns": turns,
		"total": s.console.Memory().Len(),
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(r, defaultSessionsLimit)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
		return
	}
	var active *session.Session
	if sess, ok := s.sessions.Active(); ok {
		active = sess
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"active":  active,
		"recent":  s.sessions.Recent(limit),
		"started": s.sessions.StartedCount(),
	})
}

type commsRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleComms(w http.ResponseWriter, r *http.Request) {
	var req commsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	}
	accepted, err := s.console.SubmitText(r.Context(), req.Text)
	if err != nil {
		s.respondConsoleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"accepted": accepted})
}

type quickCommandRequest struct {
	Command string `json:"command"`
}

func (s *Server) handleQuickCommand(w http.ResponseWriter, r *http.Request) {
	var req quickCommandRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	}
	if err := s.console.QuickCommand(r.Context(), req.Command); err != nil {
		s.respondConsoleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"accepted": true})
}

type commsChipRequest struct {
	Index int `json:"index"`
}

func (s *Server) handleCommsChip(w http.ResponseWriter, r *http.Request) {
	var req commsChipRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	}
	if err := s.console.CommsChip(r.Context(), req.Index); err != nil {
		s.respondConsoleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"accepted": true})
}

func (s *Server) handleOps(w http.ResponseWriter, r *http.Request) {
	var ops reply.Ops
	if err := decodeJSON(r, &ops); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	}
	if err := s.console.SetOps(r.Context(), ops); err != nil {
		s.respondConsoleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.console.Snapshot().Ops)
}

// handleDevice records the browser-reported position and battery. An empty
// body clears it.
func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	var device reply.DeviceReport
	err := decodeJSON(r, &device)
	switch {
	case errors.Is(err, errEmptyBody):
		err = s.console.SetDevice(r.Context(), nil)
	case err != nil:
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	default:
		err = s.console.SetDevice(r.Context(), &device)
	}
	if err != nil {
		s.respondConsoleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecordingStart(w http.ResponseWriter, r *http.Request) {
	s.mic.Arm()
	s.runControl(w, r, s.console.Start)
}

func (s *Server) handleRecordingStop(w http.ResponseWriter, r *http.Request) {
	s.runControl(w, r, s.console.Stop)
}

func (s *Server) handlePlaybackStop(w http.ResponseWriter, r *http.Request) {
	s.runControl(w, r, s.console.StopPlayback)
}

func (s *Server) runControl(w http.ResponseWriter, r *http.Request, fn func(context.Context) error) {
	if err := fn(r.Context()); err != nil {
		s.respondConsoleError(w, err)
		return
	}
	snap := s.console.Snapshot()
	respondJSON(w, http.StatusAccepted, map[string]string{
		"state":      string(snap.State),
		"session_id": snap.SessionID,
	})
}

func (s *Server) respondConsoleError(w http.ResponseWriter, err error) {
	code := consoleErrorCode(err)
	switch code {
	case "invalid_ops", "unknown_command", "unknown_chip", "invalid_audio":
		respondError(w, http.StatusBadRequest, code, err.Error())
	case "console_unavailable":
		respondError(w, http.StatusServiceUnavailable, code, err.Error())
	default:
		s.log.WithError(err).Warn("console command failed")
		respondError(w, http.StatusInternalServerError, code, err.Error())
	}
}

func consoleErrorCode(err error) string {
	switch {
	case errors.Is(err, reply.ErrInvalidOps):
		return "invalid_ops"
	case errors.Is(err, voice.ErrUnknownCommand):
		return "unknown_command"
	case errors.Is(err, voice.ErrUnknownChip):
		return "unknown_chip"
	case errors.Is(err, voice.ErrNotRunning):
		return "console_unavailable"
	case errors.Is(err, errInvalidAudio):
		return "invalid_audio"
	default:
		return voice.ErrorCode(err)
	}
}

func (s *Server) handleConsoleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Subscribe before the snapshot so no event between the two is lost.
	events, unsubscribe := s.bus.Subscribe(0)
	defer unsubscribe()
	replies := make(chan any, 16)

	if !s.write(conn, s.consoleSnapshot()) {
		return
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			var msg any
			select {
			case <-ctx.Done():
				return
			case m, ok := <-events:
				if !ok {
					return
				}
				msg = m
			case msg = <-replies:
			}
			if !s.write(conn, msg) {
				cancel()
				return
			}
		}
	}()

	conn.SetReadLimit(2 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	for ctx.Err() == nil {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.reply(replies, protocol.ErrorEvent{
				Type:   protocol.TypeErrorEvent,
				Code:   "invalid_client_message",
				Source: "gateway",
				Detail: err.Error(),
			})
			continue
		}
		s.metrics.WSMessages.WithLabelValues("inbound", string(protocol.TypeOf(parsed))).Inc()
		if err := s.dispatch(ctx, parsed); err != nil {
			s.reply(replies, protocol.ErrorEvent{
				Type:   protocol.TypeErrorEvent,
				Code:   consoleErrorCode(err),
				Source: "gateway",
				Detail: err.Error(),
			})
		}
	}

	cancel()
	<-writerDone
}

func (s *Server) write(conn *websocket.Conn, msg any) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		s.metrics.WSWriteErrors.WithLabelValues("write_json").Inc()
		return false
	}
	s.metrics.WSMessages.WithLabelValues("outbound", string(protocol.TypeOf(msg))).Inc()
	return true
}

// reply queues a message for this connection only. Websocket writes stay on
// the writer goroutine, so a saturated queue drops.
func (s *Server) reply(replies chan<- any, msg any) {
	select {
	case replies <- msg:
	default:
		s.metrics.WSMessages.WithLabelValues("dropped", string(protocol.TypeOf(msg))).Inc()
	}
}

func (s *Server) dispatch(ctx context.Context, msg any) error {
	switch m := msg.(type) {
	case protocol.ClientControl:
		switch m.Action {
		case protocol.ActionStart:
			s.mic.Arm()
			return s.console.Start(ctx)
		case protocol.ActionStop:
			return s.console.Stop(ctx)
		case protocol.ActionStopPlayback:
			return s.console.StopPlayback(ctx)
		case protocol.ActionRefresh:
			_, err := s.console.Refresh(ctx)
			return err
		}
		return nil
	case protocol.ClientMicrophone:
		s.mic.SetAvailable(m.Available, m.MediaType)
		return nil
	case protocol.ClientAudioChunk:
		chunk, err := base64.StdEncoding.DecodeString(m.AudioBase64)
		if err != nil {
			return fmt.Errorf("%w: %v", errInvalidAudio, err)
		}
		s.mic.Write(chunk)
		return nil
	case protocol.ClientText:
		_, err := s.console.SubmitText(ctx, m.Text)
		return err
	case protocol.ClientQuickCommand:
		return s.console.QuickCommand(ctx, m.Command)
	case protocol.ClientCommsChip:
		return s.console.CommsChip(ctx, m.Index)
	case protocol.ClientOps:
		return s.console.SetOps(ctx, reply.Ops{Mode: m.Mode, Route: m.Route})
	case protocol.ClientDevice:
		return s.console.SetDevice(ctx, m.Device)
	}
	return nil
}

func (s *Server) consoleSnapshot() protocol.ConsoleSnapshot {
	snap := s.console.Snapshot()
	return protocol.ConsoleSnapshot{
		Type:           protocol.TypeConsoleSnapshot,
		State:          string(snap.State),
		SessionID:      snap.SessionID,
		LiveTranscript: snap.LiveTranscript,
		Ops:            snap.Ops,
		Telemetry:      snap.Telemetry,
		Device:         snap.Device,
		Turns:          s.console.Memory().Turns(),
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// messageResponse is the bare {"error": ...} body of the reply and voice
// proxy endpoints. Upstream details are passed through as JSON.
type messageResponse struct {
	Error any `json:"error"`
}

var (
	errEmptyBody    = errors.New("empty body")
	errInvalidAudio = errors.New("invalid audio chunk")
)

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func queryLimit(r *http.Request, fallback int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
