package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ent0n29/gbird/internal/audio"
	"github.com/ent0n29/gbird/internal/completion"
	"github.com/ent0n29/gbird/internal/logging"
	"github.com/ent0n29/gbird/internal/memory"
	"github.com/ent0n29/gbird/internal/observability"
	"github.com/ent0n29/gbird/internal/playback"
	"github.com/ent0n29/gbird/internal/protocol"
	"github.com/ent0n29/gbird/internal/reliability"
	"github.com/ent0n29/gbird/internal/reply"
	"github.com/ent0n29/gbird/internal/session"
	"github.com/ent0n29/gbird/internal/telemetry"
)

// State is the recording controller's position in the capture-to-playback cycle.
type State string

const (
	StateIdle         State = "idle"
	StateRecording    State = "recording"
	StateTranscribing State = "transcribing"
	StateGenerating   State = "generating"
	StateSynthesizing State = "synthesizing"
	StatePlaying      State = "playing"
	StateError        State = "error"
)

const (
	InitialLiveTranscript = `"Sweep the alley. Lock target. Hold altitude."`
	// InitialCommsLine greets the operator in the comms panel.
	InitialCommsLine = "Comms online. Awaiting mission directives."

	CommsAck = "Received. Executing and will advise."
	ChipAck  = "On it. Cycling tasking and reporting back."

	transcribingText   = "Transcribing..."
	micUnavailableText = "Mic unavailable. Check permissions."
)

var (
	QuickCommands = []string{"Transcend", "Omniscient", "Reality", "Divine"}

	CommsChips = []string{
		"Autopilot sweep: report anomalies and heat signatures.",
		"Hold patrol loop and confirm perimeter status.",
		"Cycle the block and return a concise mission update.",
	}
)

var (
	ErrUnknownCommand = errors.New("unknown quick command")
	ErrUnknownChip    = errors.New("unknown comms chip")
	ErrNotRunning     = errors.New("orchestrator is not running")
)

const (
	stageMicrophone = "microphone"
	stagePlayback   = "playback"
)

// Player renders replies: one speech clip plus one alert tone at a time.
type Player interface {
	PlaySpeech(clip audio.Clip) (playback.Playable, error)
	PlayTone(kind reply.SFX) error
	Stop()
}

// Snapshot is a consistent read of the console for display.
type Snapshot struct {
	State          State               `json:"state"`
	SessionID      string              `json:"session_id,omitempty"`
	LiveTranscript string              `json:"live_transcript"`
	Ops            reply.Ops           `json:"ops"`
	Device         *reply.DeviceReport `json:"device,omitempty"`
	Telemetry      telemetry.State     `json:"telemetry"`
}

type OrchestratorConfig struct {
	Sessions    *session.Manager
	Simulator   *telemetry.Simulator
	Memory      *memory.Store
	Microphone  Microphone
	Transcriber Transcriber
	Responder   *Responder
	Player      Player
	Broadcaster *Broadcaster
	Metrics     *observability.Metrics
	Logger      logrus.FieldLogger
	Ops         reply.Ops
}

// Orchestrator is the recording controller. Every state change, memory
// append and simulator step runs on the Run goroutine; service calls run
// elsewhere and report back through the same event queue, tagged with the
// session they belong to so stale results are dropped.
type Orchestrator struct {
	sessions    *session.Manager
	sim         *telemetry.Simulator
	memory      *memory.Store
	mic         Microphone
	transcriber Transcriber
	responder   *Responder
	player      Player
	bus         *Broadcaster
	metrics     *observability.Metrics
	log         logrus.FieldLogger
	assembler   *reply.Assembler

	events  chan func()
	done    chan struct{}
	running atomic.Bool
	runCtx  context.Context

	// Owned by the Run goroutine.
	state       State
	sessionID   string
	capture     Capture
	stopPending bool
	turnStart   time.Time
	ops         reply.Ops
	device      *reply.DeviceReport

	snapMu sync.RWMutex
	snap   Snapshot
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = session.NewManager(0)
	}
	sim := cfg.Simulator
	if sim == nil {
		sim = telemetry.NewSimulator(telemetry.DefaultState())
	}
	store := cfg.Memory
	if store == nil {
		store = memory.NewStore(nil)
	}
	ops := cfg.Ops
	if ops.Mode == "" {
		ops.Mode = reply.OpsModes[0]
	}

	o := &Orchestrator{
		sessions:    sessions,
		sim:         sim,
		memory:      store,
		mic:         cfg.Microphone,
		transcriber: cfg.Transcriber,
		responder:   cfg.Responder,
		player:      cfg.Player,
		bus:         cfg.Broadcaster,
		metrics:     cfg.Metrics,
		log:         log.WithField("component", "orchestrator"),
		assembler:   reply.NewAssembler(sim, store),
		events:      make(chan func(), 32),
		done:        make(chan struct{}),
		runCtx:      context.Background(),
		state:       StateIdle,
		ops:         ops,
	}
	o.snap = Snapshot{State: StateIdle, LiveTranscript: InitialLiveTranscript, Ops: ops}
	if o.mic == nil {
		o.mic = &StaticMicrophone{Err: ErrMicrophoneUnavailable}
	}
	if o.transcriber == nil {
		o.transcriber = NewMockTranscriber()
	}
	if o.responder == nil {
		o.responder = NewResponder(completion.NewMockClient(), NewMockSynthesizer())
	}
	return o
}

// Run is the dispatch loop. It returns when ctx is canceled.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return errors.New("orchestrator already running")
	}
	o.runCtx = ctx
	defer close(o.done)
	defer o.shutdown()

	o.log.WithFields(logrus.Fields{"mode": o.ops.Mode, "route": o.ops.Route}).Info("recording controller started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-o.events:
			fn()
		}
	}
}

func (o *Orchestrator) shutdown() {
	if o.capture != nil {
		_, _ = o.capture.Stop()
		o.capture = nil
	}
	if o.player != nil {
		o.player.Stop()
	}
	if o.sessionID != "" {
		_, _ = o.sessions.End(o.sessionID, context.Canceled)
		o.sessionID = ""
	}
	o.setState(StateIdle)
	o.log.Info("recording controller stopped")
}

// Snapshot returns the last published console state with live telemetry.
func (o *Orchestrator) Snapshot() Snapshot {
	o.snapMu.RLock()
	snap := o.snap
	o.snapMu.RUnlock()
	snap.Telemetry = o.sim.State()
	return snap
}

func (o *Orchestrator) State() State {
	return o.Snapshot().State
}

// Memory exposes the conversation log for read-only views.
func (o *Orchestrator) Memory() *memory.Store { return o.memory }

// Start begins a recording. It is a no-op while a session is open.
func (o *Orchestrator) Start(ctx context.Context) error {
	return o.do(ctx, o.start)
}

// Stop ends the capture and submits it for transcription. It is a no-op
// unless a recording is in progress.
func (o *Orchestrator) Stop(ctx context.Context) error {
	return o.do(ctx, o.stop)
}

// StopPlayback silences speech and tones. A playing session then returns to idle.
func (o *Orchestrator) StopPlayback(ctx context.Context) error {
	return o.do(ctx, func() error {
		if o.player != nil {
			o.player.Stop()
		}
		return nil
	})
}

// Refresh advances the telemetry simulator one step.
func (o *Orchestrator) Refresh(ctx context.Context) (telemetry.RefreshResult, error) {
	var res telemetry.RefreshResult
	err := o.do(ctx, func() error {
		res = o.refresh()
		return nil
	})
	return res, err
}

// SubmitText logs a typed comms directive and its acknowledgement. Blank
// input is ignored and reported as false.
func (o *Orchestrator) SubmitText(ctx context.Context, text string) (bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return false, nil
	}
	return true, o.do(ctx, func() error {
		o.exchange(text, CommsAck)
		return nil
	})
}

func (o *Orchestrator) QuickCommand(ctx context.Context, command string) error {
	cmd, ok := matchQuickCommand(command)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}
	return o.do(ctx, func() error {
		o.exchange(cmd, cmd+" acknowledged. Executing now.")
		return nil
	})
}

func (o *Orchestrator) CommsChip(ctx context.Context, index int) error {
	if index < 0 || index >= len(CommsChips) {
		return fmt.Errorf("%w: %d", ErrUnknownChip, index)
	}
	return o.do(ctx, func() error {
		o.exchange(CommsChips[index], ChipAck)
		return nil
	})
}

func (o *Orchestrator) SetOps(ctx context.Context, ops reply.Ops) error {
	if err := ops.Validate(); err != nil {
		return err
	}
	return o.do(ctx, func() error {
		o.ops = ops
		o.updateSnap(func(s *Snapshot) { s.Ops = ops })
		return nil
	})
}

// SetDevice records values reported by the operator's device. A nil report clears them.
func (o *Orchestrator) SetDevice(ctx context.Context, device *reply.DeviceReport) error {
	return o.do(ctx, func() error {
		o.device = device
		o.updateSnap(func(s *Snapshot) { s.Device = device })
		return nil
	})
}

// do runs fn on the dispatch loop and waits for its result.
func (o *Orchestrator) do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	select {
	case o.events <- func() { errc <- fn() }:
	case <-ctx.Done():
		return ctx.Err()
	case <-o.done:
		return ErrNotRunning
	}
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-o.done:
		return ErrNotRunning
	}
}

// post queues fn from a worker goroutine. Results arriving after shutdown are dropped.
func (o *Orchestrator) post(fn func()) {
	select {
	case o.events <- fn:
	case <-o.done:
	}
}

func (o *Orchestrator) start() error {
	if o.state != StateIdle {
		return nil
	}
	s, err := o.sessions.Open(string(StateRecording))
	if err != nil {
		if errors.Is(err, session.ErrAlreadyOpen) {
			return nil
		}
		return err
	}
	o.sessionID = s.ID
	o.stopPending = false
	o.turnStart = time.Now()
	o.setState(StateRecording)

	id, ctx, mic := s.ID, o.runCtx, o.mic
	go func() {
		c, err := mic.Open(ctx)
		o.post(func() { o.micOpened(id, c, err) })
	}()
	return nil
}

func (o *Orchestrator) micOpened(id string, c Capture, err error) {
	if !o.current(id, StateRecording) {
		if c != nil {
			_, _ = c.Stop()
		}
		return
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, ErrMicrophoneUnavailable) {
			err = fmt.Errorf("%w: %v", ErrMicrophoneUnavailable, err)
		}
		o.fail(id, stageMicrophone, err)
		return
	}
	o.capture = c
	if o.stopPending {
		_ = o.stop()
	}
}

func (o *Orchestrator) stop() error {
	if o.state != StateRecording {
		return nil
	}
	if o.capture == nil {
		// Microphone still being acquired; stop as soon as it is.
		o.stopPending = true
		return nil
	}
	c := o.capture
	o.capture = nil
	id := o.sessionID

	rec, err := c.Stop()
	if err != nil {
		o.fail(id, observability.StageTranscribe, err)
		return nil
	}
	o.setState(StateTranscribing)
	o.setLive(transcribingText)

	ctx, transcriber := o.runCtx, o.transcriber
	go func() {
		began := time.Now()
		text, err := transcriber.Transcribe(ctx, rec.Data, rec.MediaType)
		elapsed := time.Since(began)
		o.post(func() { o.transcribed(id, text, err, elapsed) })
	}()
	return nil
}

func (o *Orchestrator) transcribed(id, text string, err error, elapsed time.Duration) {
	if !o.current(id, StateTranscribing) {
		return
	}
	o.metrics.ObserveStage(observability.StageTranscribe, elapsed)
	text = strings.TrimSpace(text)
	if err == nil && text == "" {
		err = ErrEmptyTranscript
	}
	if err != nil {
		o.fail(id, observability.StageTranscribe, err)
		return
	}

	o.appendTurn(memory.NewTurn(memory.SpeakerUser, memory.ChannelVoice, text))
	o.setLive(text)
	req := o.assembler.Build(text, o.ops, o.device)
	o.setState(StateGenerating)

	ctx, responder := o.runCtx, o.responder
	go func() {
		began := time.Now()
		res, err := responder.Generate(ctx, req)
		elapsed := time.Since(began)
		o.post(func() { o.generated(id, res, err, elapsed) })
	}()
}

func (o *Orchestrator) generated(id string, res reply.ParseResult, err error, elapsed time.Duration) {
	if !o.current(id, StateGenerating) {
		return
	}
	o.metrics.ObserveStage(observability.StageGenerate, elapsed)
	if err != nil {
		o.fail(id, observability.StageGenerate, err)
		return
	}
	if res.Path == reply.PathFallback {
		o.metrics.ObserveIndicator("reply_fallback_parse")
	}

	text := res.Reply.Text
	o.appendTurn(memory.NewTurn(memory.SpeakerAgent, memory.ChannelVoice, text))
	o.setLive(text)
	if o.player != nil {
		if err := o.player.PlayTone(res.Reply.SFX); err != nil {
			o.log.WithError(err).WithField("sfx", res.Reply.SFX).Warn("alert tone failed")
		}
	}
	o.setState(StateSynthesizing)

	ctx, responder := o.runCtx, o.responder
	go func() {
		began := time.Now()
		out, err := responder.Speak(ctx, text)
		elapsed := time.Since(began)
		o.post(func() { o.synthesized(id, out, err, elapsed) })
	}()
}

func (o *Orchestrator) synthesized(id string, out Audio, err error, elapsed time.Duration) {
	if !o.current(id, StateSynthesizing) {
		return
	}
	o.metrics.ObserveStage(observability.StageSynthesize, elapsed)
	if err != nil {
		o.fail(id, observability.StageSynthesize, err)
		return
	}
	clip, err := audio.DecodeClip(out.Base64, out.MediaType)
	if err != nil {
		o.fail(id, stagePlayback, err)
		return
	}
	if o.player == nil {
		o.fail(id, stagePlayback, errors.New("no audio output configured"))
		return
	}
	playable, err := o.player.PlaySpeech(clip)
	if err != nil {
		o.fail(id, stagePlayback, err)
		return
	}
	o.setState(StatePlaying)

	go func() {
		<-playable.Done()
		o.post(func() { o.playbackFinished(id) })
	}()
}

func (o *Orchestrator) playbackFinished(id string) {
	if !o.current(id, StatePlaying) {
		return
	}
	o.metrics.ObserveStage(observability.StageTurnTotal, time.Since(o.turnStart))
	if _, err := o.sessions.End(id, nil); err != nil {
		o.log.WithError(err).WithField("session_id", id).Warn("end session")
	}
	o.sessionID = ""
	o.setState(StateIdle)
}

// fail records err against the session, shows it as the live transcript and
// returns the controller to idle by way of the error state.
func (o *Orchestrator) fail(id, stage string, err error) {
	code := ErrorCode(err)
	o.log.WithError(err).WithFields(logrus.Fields{
		"session_id": id,
		"stage":      stage,
		"code":       code,
	}).Warn("recording session failed")
	if o.metrics != nil {
		o.metrics.ServiceErrors.WithLabelValues(stage, code).Inc()
	}

	o.setLive(errorText(stage, err))
	o.bus.Publish(protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		SessionID: id,
		Code:      code,
		Source:    stage,
		Retryable: reliability.IsRetryable(err),
		Detail:    err.Error(),
	})

	if o.capture != nil {
		_, _ = o.capture.Stop()
		o.capture = nil
	}
	o.stopPending = false
	o.setState(StateError)
	if _, endErr := o.sessions.End(id, err); endErr != nil {
		o.log.WithError(endErr).WithField("session_id", id).Warn("end session")
	}
	o.sessionID = ""
	o.setState(StateIdle)
}

func errorText(stage string, err error) string {
	switch {
	case errors.Is(err, ErrMicrophoneUnavailable):
		return micUnavailableText
	case stage == observability.StageTranscribe && errors.Is(err, ErrEmptyTranscript):
		return "Transcription failed"
	case stage == observability.StageTranscribe:
		return "Transcription failed: " + err.Error()
	case stage == observability.StageGenerate:
		return "Reply failed: " + err.Error()
	case stage == observability.StageSynthesize:
		return "Voice synthesis failed: " + err.Error()
	default:
		return "Playback failed: " + err.Error()
	}
}

func (o *Orchestrator) refresh() telemetry.RefreshResult {
	res := o.sim.Refresh()
	if o.metrics != nil {
		o.metrics.TelemetryRefreshes.Inc()
		o.metrics.BatteryPercent.Set(float64(res.State.BatteryPercent))
	}
	msg := protocol.Telemetry{
		Type:   protocol.TypeTelemetry,
		State:  res.State,
		Safety: telemetry.SafetyFlag(res.State.BatteryPercent),
	}
	if res.EmergencyActivated {
		if o.metrics != nil {
			o.metrics.EmergencyActivations.Inc()
		}
		o.log.WithFields(logrus.Fields{
			"boost":   res.Boost,
			"battery": res.State.BatteryPercent,
			"reserve": res.State.ReservePercent,
		}).Warn("emergency pack activated")
		o.appendTurn(memory.NewTurn(memory.SpeakerAgent, memory.ChannelComms, telemetry.EmergencyAnnouncement))
		msg.EmergencyActivated = true
		msg.Announcement = telemetry.EmergencyAnnouncement
	}
	o.bus.Publish(msg)
	return res
}

// exchange logs an operator comms line and the agent's fixed acknowledgement.
func (o *Orchestrator) exchange(userText, ack string) {
	o.appendTurn(memory.NewTurn(memory.SpeakerUser, memory.ChannelComms, userText))
	o.appendTurn(memory.NewTurn(memory.SpeakerAgent, memory.ChannelComms, ack))
	o.setLive(`"` + ack + `"`)
}

func (o *Orchestrator) appendTurn(t memory.Turn) {
	o.memory.Append(t)
	if o.metrics != nil {
		o.metrics.TurnsAppended.WithLabelValues(string(t.Speaker), string(t.Channel)).Inc()
		o.metrics.MemoryTurns.Set(float64(o.memory.Len()))
	}
	o.log.WithFields(logrus.Fields{
		"speaker": t.Speaker,
		"channel": t.Channel,
		"text":    logging.Preview(t.Text, 80),
	}).Debug("turn appended")
	o.bus.Publish(protocol.TurnAppended{Type: protocol.TypeTurnAppended, Turn: t})
}

func (o *Orchestrator) current(id string, want State) bool {
	return id != "" && o.sessionID == id && o.state == want
}

func (o *Orchestrator) setState(to State) {
	from := o.state
	if from == to {
		return
	}
	o.state = to
	if o.sessionID != "" && to != StateError && to != StateIdle {
		if err := o.sessions.Advance(o.sessionID, string(to)); err != nil {
			o.log.WithError(err).WithField("session_id", o.sessionID).Debug("advance session")
		}
	}
	if o.metrics != nil {
		o.metrics.StateTransitions.WithLabelValues(string(from), string(to)).Inc()
		o.metrics.ActiveRecordings.Set(float64(o.sessions.ActiveCount()))
	}
	o.log.WithFields(logrus.Fields{
		"session_id": o.sessionID,
		"from":       from,
		"state":      to,
	}).Debug("state transition")

	sessionID := o.sessionID
	o.bus.Publish(protocol.StateChanged{
		Type:      protocol.TypeStateChanged,
		From:      string(from),
		To:        string(to),
		SessionID: sessionID,
	})
	o.updateSnap(func(s *Snapshot) {
		s.State = to
		s.SessionID = sessionID
	})
}

func (o *Orchestrator) setLive(text string) {
	o.updateSnap(func(s *Snapshot) { s.LiveTranscript = text })
	o.bus.Publish(protocol.LiveTranscript{Type: protocol.TypeLiveTranscript, Text: text})
}

func (o *Orchestrator) updateSnap(fn func(*Snapshot)) {
	o.snapMu.Lock()
	fn(&o.snap)
	o.snapMu.Unlock()
}

func matchQuickCommand(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	for _, c := range QuickCommands {
		if strings.EqualFold(c, raw) {
			return c, true
		}
	}
	return "", false
}
