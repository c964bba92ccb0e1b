package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/ent0n29/gbird/internal/audio"
	"github.com/ent0n29/gbird/internal/observability"
	"github.com/ent0n29/gbird/internal/protocol"
)

type probeOptions struct {
	baseURL     string
	turns       int
	chunkBytes  int
	turnTimeout time.Duration
	verbose     bool
}

// probeEvent is the subset of console messages the probe reacts to.
type probeEvent struct {
	Type   string `json:"type"`
	To     string `json:"to,omitempty"`
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func newProbeCmd() *cobra.Command {
	var opts probeOptions

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Drive recording turns against a running server and report latency",
		Long: `Probe connects to a running console websocket, pushes a synthetic WAV
utterance through start/stop for each turn, waits for the console to return
to idle, and prints per-turn latency plus the server's stage window.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.baseURL = strings.TrimRight(strings.TrimSpace(opts.baseURL), "/")
			if opts.baseURL == "" {
				return fmt.Errorf("--base-url is required")
			}
			if opts.turns <= 0 {
				return fmt.Errorf("--turns must be > 0")
			}
			if opts.chunkBytes < 256 {
				opts.chunkBytes = 256
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runProbe(ctx, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.baseURL, "base-url", "http://127.0.0.1:8080", "Console base URL")
	cmd.Flags().IntVar(&opts.turns, "turns", 3, "Number of recording turns")
	cmd.Flags().IntVar(&opts.chunkBytes, "chunk-bytes", 4096, "Audio chunk size in bytes")
	cmd.Flags().DurationVar(&opts.turnTimeout, "turn-timeout", 30*time.Second, "Timeout waiting for a turn to finish")
	cmd.Flags().BoolVar(&opts.verbose, "verbose", true, "Print progress")
	return cmd
}

func runProbe(ctx context.Context, out io.Writer, opts probeOptions) error {
	wsURL, err := consoleWSURL(opts.baseURL)
	if err != nil {
		return fmt.Errorf("build ws URL: %w", err)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("open websocket: %w", err)
	}
	defer conn.Close()

	events := make(chan probeEvent, 64)
	readErr := make(chan error, 1)
	go func() {
		for {
			var ev probeEvent
			if err := conn.ReadJSON(&ev); err != nil {
				readErr <- err
				return
			}
			events <- ev
		}
	}()

	utterance := audio.Beep()
	if err := conn.WriteJSON(protocol.ClientMicrophone{Type: protocol.TypeClientMicrophone, Available: true, MediaType: "audio/wav"}); err != nil {
		return fmt.Errorf("announce microphone: %w", err)
	}

	latencies := make([]time.Duration, 0, opts.turns)
	seq := 0
	for i := 1; i <= opts.turns; i++ {
		if err := sendControl(conn, protocol.ActionStart); err != nil {
			return fmt.Errorf("turn %d start: %w", i, err)
		}
		for _, chunk := range splitChunks(utterance, opts.chunkBytes) {
			seq++
			msg := protocol.ClientAudioChunk{Type: protocol.TypeClientAudioChunk, Seq: seq, AudioBase64: base64.StdEncoding.EncodeToString(chunk)}
			if err := conn.WriteJSON(msg); err != nil {
				return fmt.Errorf("turn %d send audio: %w", i, err)
			}
		}
		stopAt := time.Now()
		if err := sendControl(conn, protocol.ActionStop); err != nil {
			return fmt.Errorf("turn %d stop: %w", i, err)
		}
		if err := awaitIdle(events, readErr, opts.turnTimeout); err != nil {
			return fmt.Errorf("turn %d: %w", i, err)
		}
		elapsed := time.Since(stopAt)
		latencies = append(latencies, elapsed)
		if opts.verbose {
			fmt.Fprintf(out, "probe: turn %d/%d finished in %s\n", i, opts.turns, elapsed.Round(time.Millisecond))
		}
	}

	fmt.Fprintln(out, summarizeLatencies(latencies))
	return printStageWindow(ctx, out, opts.baseURL)
}

func sendControl(conn *websocket.Conn, action string) error {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(protocol.ClientControl{Type: protocol.TypeClientControl, Action: action})
}

// awaitIdle waits for the console to leave recording and come back to idle.
// An error event from the pipeline fails the turn.
func awaitIdle(events <-chan probeEvent, readErr <-chan error, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	left := false
	var failure *probeEvent
	for {
		select {
		case err := <-readErr:
			return fmt.Errorf("ws read: %w", err)
		case <-timer.C:
			return fmt.Errorf("timed out after %s", timeout)
		case ev := <-events:
			switch ev.Type {
			case string(protocol.TypeErrorEvent):
				e := ev
				failure = &e
			case string(protocol.TypeStateChanged):
				if ev.To != "idle" && ev.To != "recording" {
					left = true
				}
				if ev.To == "idle" && (left || failure != nil) {
					if failure != nil {
						return fmt.Errorf("console error %s: %s", failure.Code, failure.Detail)
					}
					return nil
				}
			}
		}
	}
}

func splitChunks(data []byte, size int) [][]byte {
	if size <= 0 {
		size = len(data)
	}
	var out [][]byte
	for len(data) > 0 {
		n := min(size, len(data))
		out = append(out, data[:n])
		data = data[n:]
	}
	return out
}

func consoleWSURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/console/ws"
	return u.String(), nil
}

func summarizeLatencies(ds []time.Duration) string {
	if len(ds) == 0 {
		return "probe: no turns completed"
	}
	sorted := append([]time.Duration(nil), ds...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	p50 := sorted[(len(sorted)-1)/2]
	p95 := sorted[(len(sorted)*95+99)/100-1]
	return fmt.Sprintf("probe: turns=%d p50=%s p95=%s max=%s",
		len(sorted), p50.Round(time.Millisecond), p95.Round(time.Millisecond), sorted[len(sorted)-1].Round(time.Millisecond))
}

func printStageWindow(ctx context.Context, out io.Writer, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/perf/latency", nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 10 * time.Second}
	res, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch stage window: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch stage window: HTTP %d", res.StatusCode)
	}
	var window observability.TurnStageSnapshot
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&window); err != nil {
		return fmt.Errorf("decode stage window: %w", err)
	}
	for _, s := range window.Stages {
		fmt.Fprintf(out, "stage %-12s n=%-4d p50=%.1fms p95=%.1fms\n", s.Stage, s.Samples, s.P50MS, s.P95MS)
	}
	return nil
}
