package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ent0n29/gbird/internal/completion"
	"github.com/ent0n29/gbird/internal/config"
	"github.com/ent0n29/gbird/internal/httpapi"
	"github.com/ent0n29/gbird/internal/memory"
	"github.com/ent0n29/gbird/internal/observability"
	"github.com/ent0n29/gbird/internal/playback"
	"github.com/ent0n29/gbird/internal/protocol"
	"github.com/ent0n29/gbird/internal/reply"
	"github.com/ent0n29/gbird/internal/session"
	"github.com/ent0n29/gbird/internal/telemetry"
	"github.com/ent0n29/gbird/internal/voice"
)

// Providers reports which backend serves each service.
type Providers struct {
	STT        string
	STTDetail  string
	Completion string
	TTS        string
	TTSDetail  string
}

type BuildResult struct {
	Config       config.Config
	API          *httpapi.Server
	Sessions     *session.Manager
	Memory       *memory.Store
	Simulator    *telemetry.Simulator
	Orchestrator *voice.Orchestrator
	Responder    *voice.Responder
	Metrics      *observability.Metrics
	Providers    Providers

	// Cleanup should be called on shutdown to release external resources (snapshot store, google client).
	Cleanup func() error
}

// Build wires the console from cfg. The returned orchestrator must be Run
// before the API can serve commands.
func Build(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*BuildResult, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	store, err := openMemory(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	metrics.MemoryTurns.Set(float64(store.Len()))

	completionClient, err := completion.NewClient(completion.Config{
		Provider:        cfg.CompletionProvider,
		GroqAPIKey:      cfg.GroqAPIKey,
		GroqBaseURL:     cfg.GroqBaseURL,
		GroqModel:       cfg.GroqChatModel,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		AnthropicModel:  cfg.AnthropicModel,
		HTTPTimeout:     cfg.ServiceHTTPTimeout,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("completion client init failed: %w", err)
	}

	stt, err := resolveTranscriber(ctx, cfg, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	eleven := voice.NewElevenLabsClient(voice.ElevenLabsConfig{
		APIKey:      cfg.ElevenLabsAPIKey,
		BaseURL:     cfg.ElevenLabsBaseURL,
		VoiceID:     cfg.ElevenLabsTTSVoice,
		ModelID:     cfg.ElevenLabsTTSModel,
		HTTPTimeout: cfg.ServiceHTTPTimeout,
	})
	tts, err := resolveSynthesizer(cfg, eleven)
	if err != nil {
		_ = store.Close()
		if stt.cleanup != nil {
			_ = stt.cleanup()
		}
		return nil, err
	}

	simOpts := []telemetry.Option{}
	if cfg.SimSeed != 0 {
		simOpts = append(simOpts, telemetry.WithSeed(cfg.SimSeed))
	}
	sim := telemetry.NewSimulator(telemetry.DefaultState(), simOpts...)
	metrics.BatteryPercent.Set(float64(sim.State().BatteryPercent))

	sessions := session.NewManager(0)
	bus := voice.NewBroadcaster(metrics)
	out := playback.NewEventOutput(func(ev playback.Event) {
		bus.Publish(protocol.Playback{Type: protocol.TypePlayback, Event: ev})
	})
	player := playback.NewManager(out, out)
	mic := voice.NewBufferMicrophone()
	responder := voice.NewResponder(completionClient, tts.synthesizer)

	orchestrator := voice.NewOrchestrator(voice.OrchestratorConfig{
		Sessions:    sessions,
		Simulator:   sim,
		Memory:      store,
		Microphone:  mic,
		Transcriber: stt.transcriber,
		Responder:   responder,
		Player:      player,
		Broadcaster: bus,
		Metrics:     metrics,
		Logger:      log,
		Ops:         reply.Ops{Mode: cfg.OpsMode, Route: cfg.OpsRoute},
	})

	api := httpapi.New(cfg, httpapi.Deps{
		Console:     orchestrator,
		Responder:   responder,
		Voices:      eleven,
		Sessions:    sessions,
		Microphone:  mic,
		Broadcaster: bus,
		Metrics:     metrics,
		Logger:      log,
	})

	cleanup := func() error {
		var errs []string
		if err := player.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if stt.cleanup != nil {
			if err := stt.cleanup(); err != nil {
				errs = append(errs, err.Error())
			}
		}
		if err := store.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:       cfg,
		API:          api,
		Sessions:     sessions,
		Memory:       store,
		Simulator:    sim,
		Orchestrator: orchestrator,
		Responder:    responder,
		Metrics:      metrics,
		Providers: Providers{
			STT:        stt.provider,
			STTDetail:  stt.detail,
			Completion: cfg.CompletionProvider,
			TTS:        tts.provider,
			TTSDetail:  tts.detail,
		},
		Cleanup: cleanup,
	}, nil
}

// OpenMemory loads the persisted conversation log for commands that do not
// need the full console.
func OpenMemory(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*memory.Store, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return openMemory(ctx, cfg, log)
}

func openMemory(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*memory.Store, error) {
	snapshots, err := memory.NewSnapshotter(ctx, memory.SnapshotConfig{
		Backend:     cfg.SnapshotBackend,
		Key:         cfg.SnapshotKey,
		Path:        cfg.SnapshotPath,
		RedisURL:    cfg.RedisURL,
		DatabaseURL: cfg.DatabaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("memory snapshot init failed: %w", err)
	}
	store := memory.NewStore(snapshots, memory.WithLogger(log.WithField("component", "memory")))
	n := store.Load(ctx)
	log.WithFields(logrus.Fields{"backend": cfg.SnapshotBackend, "turns": n}).Info("memory loaded")
	return store, nil
}
