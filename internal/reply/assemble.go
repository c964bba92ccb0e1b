// Package reply builds the request sent to the completion service and
// interprets what comes back.
package reply

import (
	"errors"
	"fmt"
	"slices"

	"github.com/ent0n29/gbird/internal/memory"
	"github.com/ent0n29/gbird/internal/telemetry"
)

// HistoryLimit is the number of recent turns forwarded with each request.
const HistoryLimit = 12

// DeviceReport holds values reported by the operator's own device. Each
// field is optional.
type DeviceReport struct {
	Lat            *float64 `json:"lat,omitempty"`
	Lng            *float64 `json:"lng,omitempty"`
	BatteryPercent *int     `json:"battery_percent,omitempty"`
	AltitudeMeters *float64 `json:"altitude_meters,omitempty"`
}

// RequestContext is the point-in-time snapshot attached to one completion
// call. It is never persisted.
type RequestContext struct {
	OpsMode   string           `json:"ops_mode,omitempty"`
	Route     string           `json:"route,omitempty"`
	Telemetry *telemetry.State `json:"telemetry,omitempty"`
	Device    *DeviceReport    `json:"device,omitempty"`
}

// DisplayBattery prefers the device-reported battery over the simulated one.
func (c *RequestContext) DisplayBattery() (int, bool) {
	if c == nil {
		return 0, false
	}
	if c.Device != nil && c.Device.BatteryPercent != nil {
		return *c.Device.BatteryPercent, true
	}
	if c.Telemetry != nil {
		return c.Telemetry.BatteryPercent, true
	}
	return 0, false
}

// DisplayPosition prefers the device-reported position over the simulated one.
func (c *RequestContext) DisplayPosition() (lat, lng float64, ok bool) {
	if c == nil {
		return 0, 0, false
	}
	if c.Device != nil && c.Device.Lat != nil && c.Device.Lng != nil {
		return *c.Device.Lat, *c.Device.Lng, true
	}
	if c.Telemetry != nil {
		return c.Telemetry.Lat, c.Telemetry.Lng, true
	}
	return 0, 0, false
}

// HistoryMessage is one prior turn in chat-completion form.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the body accepted by the reply-generation service.
type Request struct {
	Transcript string           `json:"transcript"`
	Context    *RequestContext  `json:"context,omitempty"`
	History    []HistoryMessage `json:"history,omitempty"`
}

// Ops is the operator-selected flight mode and route.
type Ops struct {
	Mode  string `json:"mode"`
	Route string `json:"route"`
}

var (
	OpsModes  = []string{"Autopilot", "Perch"}
	OpsRoutes = []string{"Orbit", "Grid sweep", "Perimeter"}

	ErrInvalidOps = errors.New("invalid ops selection")
)

// Validate accepts a known mode and a known or empty route.
func (o Ops) Validate() error {
	if !slices.Contains(OpsModes, o.Mode) {
		return fmt.Errorf("%w: mode %q", ErrInvalidOps, o.Mode)
	}
	if o.Route != "" && !slices.Contains(OpsRoutes, o.Route) {
		return fmt.Errorf("%w: route %q", ErrInvalidOps, o.Route)
	}
	return nil
}

type TelemetrySource interface {
	State() telemetry.State
}

type TurnSource interface {
	Recent(n int) []memory.Turn
}

// Assembler gathers telemetry, ops selection and recent turns into a Request.
type Assembler struct {
	telemetry TelemetrySource
	turns     TurnSource
	limit     int
}

func NewAssembler(t TelemetrySource, turns TurnSource) *Assembler {
	return &Assembler{telemetry: t, turns: turns, limit: HistoryLimit}
}

// Context snapshots the current telemetry. Both the simulated state and any
// device report are carried.
func (a *Assembler) Context(ops Ops, device *DeviceReport) RequestContext {
	rc := RequestContext{
		OpsMode: ops.Mode,
		Route:   ops.Route,
		Device:  device,
	}
	if a.telemetry != nil {
		st := a.telemetry.State()
		rc.Telemetry = &st
	}
	return rc
}

// Build returns the full request for transcript.
func (a *Assembler) Build(transcript string, ops Ops, device *DeviceReport) Request {
	rc := a.Context(ops, device)
	var turns []memory.Turn
	if a.turns != nil {
		turns = a.turns.Recent(a.limit)
	}
	return Request{
		Transcript: transcript,
		Context:    &rc,
		History:    History(turns, a.limit),
	}
}

// History converts the newest limit turns, oldest first.
func History(turns []memory.Turn, limit int) []HistoryMessage {
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]HistoryMessage, 0, len(turns))
	for _, t := range turns {
		out = append(out, HistoryMessage{Role: t.Role(), Content: t.Text})
	}
	return out
}
