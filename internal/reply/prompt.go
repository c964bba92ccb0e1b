package reply

import (
	"fmt"
	"strings"
)

const basePrompt = `You are GBird, the voice of an autonomous field-operations drone.
Answer the operator in one or two short, clipped radio-style sentences.
Respond with JSON only, exactly {"reply": "<what you say>", "sfx": "none|alert|alarm|siren"}.
Use "alert" for notable findings, "alarm" for hazards, "siren" for emergencies, otherwise "none".
Do not include the telemetry status line; it is appended automatically.`

// SystemPrompt renders the instruction block for rc.
func SystemPrompt(rc *RequestContext) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	if rc == nil {
		return b.String()
	}
	b.WriteString("\n\nCurrent situation:")
	if rc.OpsMode != "" {
		fmt.Fprintf(&b, "\n- mode: %s", rc.OpsMode)
	}
	if rc.Route != "" {
		fmt.Fprintf(&b, "\n- route: %s", rc.Route)
	}
	if battery, ok := rc.DisplayBattery(); ok {
		fmt.Fprintf(&b, "\n- battery: %d%%", battery)
	}
	if t := rc.Telemetry; t != nil {
		fmt.Fprintf(&b, "\n- simulated battery: %d%%, reserve: %d%%", t.BatteryPercent, t.ReservePercent)
		fmt.Fprintf(&b, "\n- distance to operator: %dm, heading: %.0fdeg, uptime: %dmin", t.DistanceMeters, t.HeadingDegrees, t.UptimeMinutes)
	}
	if lat, lng, ok := rc.DisplayPosition(); ok {
		fmt.Fprintf(&b, "\n- position: %.5f, %.5f", lat, lng)
	}
	if rc.Device != nil && rc.Device.AltitudeMeters != nil {
		fmt.Fprintf(&b, "\n- altitude: %.0fm", *rc.Device.AltitudeMeters)
	}
	return b.String()
}
