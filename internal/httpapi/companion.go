package httpapi

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/speakwell/internal/companion"
	"github.com/ent0n29/speakwell/internal/protocol"
	"github.com/ent0n29/speakwell/internal/session"
)

const (
	wsReadTimeout  = 120 * time.Second
	wsWriteTimeout = 10 * time.Second
)

func (s *Server) handleProcessAudio(w http.ResponseWriter, r *http.Request) {
	if s.companion == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "companion not configured")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "No audio_data provided"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio_data")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "No audio_data provided"})
		return
	}
	defer file.Close()

	sess := sessionFrom(r.Context())
	reply, err := s.companion.ProcessAudio(r.Context(), sess.ID, file, uploadExt(header))
	if err != nil {
		s.log.WithError(err).Warn("companion turn failed")
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, reply)
}

type cleanupRequest struct {
	Filename string `json:"filename"`
}

func (s *Server) handleCleanupAudio(w http.ResponseWriter, r *http.Request) {
	if s.companion == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "companion not configured")
		return
	}
	var req cleanupRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "Filename required"})
		return
	}
	switch err := s.companion.CleanupAudio(req.Filename); {
	case errors.Is(err, companion.ErrFilenameRequired), errors.Is(err, companion.ErrInvalidFilename):
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case err != nil:
		s.log.WithError(err).Warn("reply audio cleanup failed")
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	default:
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// handleCompanionWS runs companion turns over one websocket. Each binary
// frame is a full recording; replies are written in order from this
// goroutine, so writes stay single-threaded.
func (s *Server) handleCompanionWS(w http.ResponseWriter, r *http.Request) {
	if s.companion == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "companion not configured")
		return
	}
	sess := sessionFrom(r.Context())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	s.sessionEvent("ws_connected")
	defer s.sessionEvent("ws_disconnected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(maxUploadBytes)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	if err := s.writeWS(conn, protocol.SystemEvent{Type: protocol.TypeSystemEvent, Code: "ready"}); err != nil {
		return
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		var out any
		switch msgType {
		case websocket.BinaryMessage:
			s.countWS("inbound", "binary_audio")
			out = s.companionTurn(ctx, sess, data, ".webm")
		case websocket.TextMessage:
			out = s.handleWSText(ctx, sess, data)
		default:
			continue
		}
		if err := s.writeWS(conn, out); err != nil {
			return
		}
	}
}

func (s *Server) handleWSText(ctx context.Context, sess *session.Session, data []byte) any {
	parsed, err := protocol.ParseClientMessage(data)
	if err != nil {
		return protocol.ErrorEvent{Type: protocol.TypeErrorEvent, Code: "invalid_client_message", Error: err.Error()}
	}
	if t, ok := protocol.TypeOf(parsed); ok {
		s.countWS("inbound", string(t))
	}

	switch msg := parsed.(type) {
	case protocol.ClientAudio:
		raw, err := msg.Decode()
		if err != nil {
			return protocol.ErrorEvent{Type: protocol.TypeErrorEvent, Code: "invalid_audio", Error: err.Error()}
		}
		ext := ".webm"
		if msg.Format != "" {
			ext = "." + msg.Format
		}
		return s.companionTurn(ctx, sess, raw, ext)
	case protocol.ClientControl:
		switch msg.Action {
		case protocol.ActionReset:
			if err := s.sessions.ResetHistory(sess.ID); err != nil {
				return protocol.ErrorEvent{Type: protocol.TypeErrorEvent, Code: "session_not_found", Error: err.Error()}
			}
			return protocol.SystemEvent{Type: protocol.TypeSystemEvent, Code: "history_reset"}
		case protocol.ActionCleanup:
			if err := s.companion.CleanupAudio(msg.Filename); err != nil {
				return protocol.ErrorEvent{Type: protocol.TypeErrorEvent, Code: "cleanup_failed", Error: err.Error()}
			}
			return protocol.SystemEvent{Type: protocol.TypeSystemEvent, Code: "audio_removed", Detail: msg.Filename}
		}
	}
	return protocol.ErrorEvent{Type: protocol.TypeErrorEvent, Code: "unsupported", Error: protocol.ErrUnsupportedType.Error()}
}

func (s *Server) companionTurn(ctx context.Context, sess *session.Session, audio []byte, ext string) any {
	reply, err := s.companion.ProcessAudio(ctx, sess.ID, bytes.NewReader(audio), ext)
	if err != nil {
		s.log.WithError(err).Warn("companion websocket turn failed")
		return protocol.ErrorEvent{Type: protocol.TypeErrorEvent, Code: "turn_failed", Error: err.Error()}
	}
	return protocol.CompanionReply{
		Type:          protocol.TypeCompanionReply,
		Transcript:    reply.Transcript,
		ResponseText:  reply.ResponseText,
		AudioURL:      reply.AudioURL,
		AudioFilename: reply.AudioFilename,
		LoopVideoURL:  reply.LoopVideoURL,
	}
}

func (s *Server) writeWS(conn *websocket.Conn, msg any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		return err
	}
	if t, ok := protocol.TypeOf(msg); ok {
		s.countWS("outbound", string(t))
	}
	return nil
}

func (s *Server) countWS(direction, msgType string) {
	if s.metrics != nil {
		s.metrics.WSMessages.WithLabelValues(direction, msgType).Inc()
	}
}

func (s *Server) sessionEvent(event string) {
	if s.metrics != nil {
		s.metrics.SessionEvents.WithLabelValues(event).Inc()
	}
}
