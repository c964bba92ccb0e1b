package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ent0n29/gbird/internal/reply"
	"github.com/ent0n29/gbird/internal/voice"
)

const (
	msgMissingElevenLabsKey = "Missing ELEVENLABS_API_KEY on the server."
	msgInvalidJSON          = "Invalid JSON payload."
	msgElevenLabsFailed     = "ElevenLabs request failed."
)

// handleRespond is the stateless reply service: transcript in, spoken reply out.
func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	var req reply.Request
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, messageResponse{Error: msgInvalidJSON})
		return
	}
	res, err := s.responder.Respond(r.Context(), req)
	if err != nil {
		if errors.Is(err, voice.ErrEmptyTranscript) {
			respondJSON(w, http.StatusBadRequest, messageResponse{Error: "transcript is required."})
			return
		}
		s.log.WithError(err).WithField("code", voice.ErrorCode(err)).Warn("reply service failed")
		respondJSON(w, http.StatusBadGateway, messageResponse{Error: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleVoiceDesign(w http.ResponseWriter, r *http.Request) {
	if s.voices == nil || !s.voices.Configured() {
		respondJSON(w, http.StatusInternalServerError, messageResponse{Error: msgMissingElevenLabsKey})
		return
	}
	var req voice.DesignRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, messageResponse{Error: msgInvalidJSON})
		return
	}
	raw, err := s.voices.Design(r.Context(), req)
	if err != nil {
		s.respondVoiceError(w, err)
		return
	}
	respondRaw(w, http.StatusOK, raw)
}

func (s *Server) handleVoiceCreate(w http.ResponseWriter, r *http.Request) {
	if s.voices == nil || !s.voices.Configured() {
		respondJSON(w, http.StatusInternalServerError, messageResponse{Error: msgMissingElevenLabsKey})
		return
	}
	var req voice.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, messageResponse{Error: msgInvalidJSON})
		return
	}
	raw, err := s.voices.Create(r.Context(), req)
	if err != nil {
		s.respondVoiceError(w, err)
		return
	}
	respondRaw(w, http.StatusOK, raw)
}

func (s *Server) respondVoiceError(w http.ResponseWriter, err error) {
	var validation *voice.ValidationError
	var apiErr *voice.APIError
	switch {
	case errors.Is(err, voice.ErrNoAPIKey):
		respondJSON(w, http.StatusInternalServerError, messageResponse{Error: msgMissingElevenLabsKey})
	case errors.As(err, &validation):
		respondJSON(w, http.StatusBadRequest, messageResponse{Error: validation.Message})
	case errors.As(err, &apiErr):
		var detail any = msgElevenLabsFailed
		if len(apiErr.Detail) > 0 {
			detail = apiErr.Detail
		} else if apiErr.Message != "" {
			detail = apiErr.Message
		}
		respondJSON(w, apiErr.StatusCode, messageResponse{Error: detail})
	default:
		s.log.WithError(err).Warn("elevenlabs request failed")
		respondJSON(w, http.StatusBadGateway, messageResponse{Error: msgElevenLabsFailed})
	}
}

func respondRaw(w http.ResponseWriter, status int, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}
