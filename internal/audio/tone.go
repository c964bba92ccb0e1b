package audio

import (
	"encoding/base64"
	"encoding/binary"
	"math"
	"time"
)

const (
	// DefaultSampleRate is used for generated tones and the mock beep.
	DefaultSampleRate = 16000

	BeepFrequencyHz = 440
	BeepDuration    = 250 * time.Millisecond
	BeepAmplitude   = 0.25
)

// SinePCM16LE renders a mono sine wave as little-endian 16-bit PCM.
// amplitude is a fraction of full scale in [0,1].
func SinePCM16LE(freqHz float64, d time.Duration, sampleRate int, amplitude float64) []byte {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	amplitude = math.Max(0, math.Min(1, amplitude))
	samples := int(float64(sampleRate) * d.Seconds())
	out := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		t := float64(i) / float64(sampleRate)
		v := math.Floor(math.Sin(2*math.Pi*freqHz*t) * amplitude * 32767)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

// ToneWAV renders a sine tone wrapped in a WAV container.
func ToneWAV(freqHz float64, d time.Duration, amplitude float64) ([]byte, error) {
	return EncodeWAVPCM16LE(SinePCM16LE(freqHz, d, DefaultSampleRate, amplitude), DefaultSampleRate)
}

// Beep is the short placeholder clip returned when no synthesizer is configured.
func Beep() []byte {
	wav, err := ToneWAV(BeepFrequencyHz, BeepDuration, BeepAmplitude)
	if err != nil {
		// Writes go to an in-memory buffer and cannot fail.
		panic(err)
	}
	return wav
}

func BeepBase64() string {
	return base64.StdEncoding.EncodeToString(Beep())
}
