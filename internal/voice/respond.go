package voice

import (
	"context"
	"fmt"
	"strings"

	"github.com/ent0n29/gbird/internal/completion"
	"github.com/ent0n29/gbird/internal/reply"
)

// Response is the composite reply-generation result.
type Response struct {
	Reply       string    `json:"reply"`
	SFX         reply.SFX `json:"sfx"`
	AudioBase64 string    `json:"audio_base64"`
	MediaType   string    `json:"media_type"`
}

// Responder turns a transcript plus context into a spoken reply. It backs
// both the recording controller and the stateless respond endpoint.
type Responder struct {
	completion  completion.Client
	synthesizer Synthesizer
}

func NewResponder(c completion.Client, s Synthesizer) *Responder {
	return &Responder{completion: c, synthesizer: s}
}

// Generate asks the completion service for a reply and parses it. Service
// failures are returned as errors; malformed output never is.
func (r *Responder) Generate(ctx context.Context, req reply.Request) (reply.ParseResult, error) {
	if strings.TrimSpace(req.Transcript) == "" {
		return reply.ParseResult{}, ErrEmptyTranscript
	}
	raw, err := r.completion.Complete(ctx, completion.FromReplyRequest(req))
	if err != nil {
		return reply.ParseResult{}, fmt.Errorf("generate reply: %w", err)
	}
	return reply.Parse(raw, req.Context), nil
}

func (r *Responder) Speak(ctx context.Context, text string) (Audio, error) {
	out, err := r.synthesizer.Synthesize(ctx, text)
	if err != nil {
		return Audio{}, fmt.Errorf("synthesize reply: %w", err)
	}
	if out.Base64 == "" {
		return Audio{}, ErrEmptySynthesis
	}
	return out, nil
}

// Respond runs Generate then Speak.
func (r *Responder) Respond(ctx context.Context, req reply.Request) (Response, error) {
	res, err := r.Generate(ctx, req)
	if err != nil {
		return Response{}, err
	}
	out, err := r.Speak(ctx, res.Reply.Text)
	if err != nil {
		return Response{}, err
	}
	return Response{
		Reply:       res.Reply.Text,
		SFX:         res.Reply.SFX,
		AudioBase64: out.Base64,
		MediaType:   out.MediaType,
	}, nil
}
