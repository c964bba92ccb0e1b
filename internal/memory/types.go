package memory

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Speaker attributes a turn to the agent or the operator.
type Speaker string

const (
	SpeakerAgent Speaker = "agent"
	SpeakerUser  Speaker = "user"
)

// Channel records how a turn entered the log.
type Channel string

const (
	ChannelVoice Channel = "voice"
	ChannelComms Channel = "comms"
)

// Turn is one utterance in the conversation log. Turns are values and are
// never modified after they are appended.
type Turn struct {
	ID        string    `json:"id"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Channel   Channel   `json:"channel"`
}

// NewTurn stamps a turn with a fresh ID and the current time.
func NewTurn(speaker Speaker, channel Channel, text string) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Speaker:   speaker,
		Text:      text,
		Timestamp: time.Now().UTC(),
		Channel:   channel,
	}
}

// Role maps the speaker onto the chat-completion role vocabulary.
func (t Turn) Role() string {
	if t.Speaker == SpeakerAgent {
		return "assistant"
	}
	return "user"
}

// Label is the short display name used by the console log panel.
func (t Turn) Label() string {
	if t.Speaker == SpeakerAgent {
		return "GBird"
	}
	return "You"
}

func (t Turn) valid() bool {
	switch t.Speaker {
	case SpeakerAgent, SpeakerUser:
	default:
		return false
	}
	return strings.TrimSpace(t.Text) != ""
}
