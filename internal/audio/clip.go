package audio

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrEmptyAudio = errors.New("audio: empty payload")

// Clip is a decoded, playable speech payload.
type Clip struct {
	ID        string
	Data      []byte
	MediaType string
	Duration  time.Duration
}

func (c Clip) Base64() string {
	return base64.StdEncoding.EncodeToString(c.Data)
}

// mp3 at the default ElevenLabs output rate, used to estimate clip length.
const assumedCompressedBitrate = 128000

// DecodeClip decodes base64 audio. Duration is exact for WAV and estimated
// from the payload size for compressed formats.
func DecodeClip(audioBase64, mediaType string) (Clip, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(audioBase64))
	if err != nil {
		return Clip{}, fmt.Errorf("decode audio: %w", err)
	}
	if len(data) == 0 {
		return Clip{}, ErrEmptyAudio
	}
	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "" {
		mediaType = "audio/mpeg"
	}

	clip := Clip{ID: uuid.NewString(), Data: data, MediaType: mediaType}
	if info, err := ParseWAV(data); err == nil {
		clip.Duration = info.Duration()
		clip.MediaType = "audio/wav"
	} else {
		clip.Duration = time.Duration(len(data)) * 8 * time.Second / assumedCompressedBitrate
	}
	return clip, nil
}
