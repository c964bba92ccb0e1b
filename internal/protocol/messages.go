package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ent0n29/gbird/internal/memory"
	"github.com/ent0n29/gbird/internal/playback"
	"github.com/ent0n29/gbird/internal/reply"
	"github.com/ent0n29/gbird/internal/telemetry"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientControl      MessageType = "client_control"
	TypeClientMicrophone   MessageType = "client_microphone"
	TypeClientAudioChunk   MessageType = "client_audio_chunk"
	TypeClientText         MessageType = "client_text"
	TypeClientQuickCommand MessageType = "client_quick_command"
	TypeClientCommsChip    MessageType = "client_comms_chip"
	TypeClientOps          MessageType = "client_ops"
	TypeClientDevice       MessageType = "client_device"

	TypeConsoleSnapshot MessageType = "console_snapshot"
	TypeStateChanged    MessageType = "state_changed"
	TypeLiveTranscript  MessageType = "live_transcript"
	TypeTurnAppended    MessageType = "turn_appended"
	TypeTelemetry       MessageType = "telemetry"
	TypePlayback        MessageType = "playback"
	TypeErrorEvent      MessageType = "error_event"
)

// Control actions carried by ClientControl.
const (
	ActionStart        = "start"
	ActionStop         = "stop"
	ActionStopPlayback = "stop_playback"
	ActionRefresh      = "refresh"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

type ClientControl struct {
	Type   MessageType `json:"type"`
	Action string      `json:"action"`
}

// ClientMicrophone reports whether the console was granted an input device.
type ClientMicrophone struct {
	Type      MessageType `json:"type"`
	Available bool        `json:"available"`
	MediaType string      `json:"media_type,omitempty"`
}

type ClientAudioChunk struct {
	Type        MessageType `json:"type"`
	Seq         int         `json:"seq"`
	AudioBase64 string      `json:"audio_base64"`
}

type ClientText struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

type ClientQuickCommand struct {
	Type    MessageType `json:"type"`
	Command string      `json:"command"`
}

type ClientCommsChip struct {
	Type  MessageType `json:"type"`
	Index int         `json:"index"`
}

type ClientOps struct {
	Type  MessageType `json:"type"`
	Mode  string      `json:"mode"`
	Route string      `json:"route"`
}

type ClientDevice struct {
	Type   MessageType         `json:"type"`
	Device *reply.DeviceReport `json:"device"`
}

// ConsoleSnapshot is sent once when a console connects.
type ConsoleSnapshot struct {
	Type           MessageType         `json:"type"`
	State          string              `json:"state"`
	SessionID      string              `json:"session_id,omitempty"`
	LiveTranscript string              `json:"live_transcript"`
	Ops            reply.Ops           `json:"ops"`
	Telemetry      telemetry.State     `json:"telemetry"`
	Device         *reply.DeviceReport `json:"device,omitempty"`
	Turns          []memory.Turn       `json:"turns"`
}

type StateChanged struct {
	Type      MessageType `json:"type"`
	From      string      `json:"from"`
	To        string      `json:"to"`
	SessionID string      `json:"session_id,omitempty"`
}

type LiveTranscript struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

type TurnAppended struct {
	Type MessageType `json:"type"`
	Turn memory.Turn `json:"turn"`
}

type Telemetry struct {
	Type               MessageType     `json:"type"`
	State              telemetry.State `json:"state"`
	Safety             string          `json:"safety"`
	EmergencyActivated bool            `json:"emergency_activated,omitempty"`
	Announcement       string          `json:"announcement,omitempty"`
}

type Playback struct {
	Type  MessageType    `json:"type"`
	Event playback.Event `json:"event"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

// TypeOf returns the wire type of an outbound message.
func TypeOf(msg any) MessageType {
	switch m := msg.(type) {
	case ConsoleSnapshot:
		return m.Type
	case StateChanged:
		return m.Type
	case LiveTranscript:
		return m.Type
	case TurnAppended:
		return m.Type
	case Telemetry:
		return m.Type
	case Playback:
		return m.Type
	case ErrorEvent:
		return m.Type
	default:
		return "unknown"
	}
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		switch msg.Action {
		case ActionStart, ActionStop, ActionStopPlayback, ActionRefresh:
			return msg, nil
		default:
			return nil, fmt.Errorf("invalid client_control action %q", msg.Action)
		}
	case TypeClientMicrophone:
		return decode[ClientMicrophone](raw)
	case TypeClientAudioChunk:
		msg, err := decode[ClientAudioChunk](raw)
		if err != nil {
			return nil, err
		}
		if msg.AudioBase64 == "" {
			return nil, errors.New("invalid client_audio_chunk")
		}
		return msg, nil
	case TypeClientText:
		return decode[ClientText](raw)
	case TypeClientQuickCommand:
		msg, err := decode[ClientQuickCommand](raw)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(msg.Command) == "" {
			return nil, errors.New("invalid client_quick_command")
		}
		return msg, nil
	case TypeClientCommsChip:
		return decode[ClientCommsChip](raw)
	case TypeClientOps:
		return decode[ClientOps](raw)
	case TypeClientDevice:
		msg, err := decode[ClientDevice](raw)
		if err != nil {
			return nil, err
		}
		if msg.Device == nil {
			return nil, errors.New("invalid client_device")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}

func decode[T any](raw []byte) (T, error) {
	var msg T
	if err := json.Unmarshal(raw, &msg); err != nil {
		return msg, err
	}
	return msg, nil
}
