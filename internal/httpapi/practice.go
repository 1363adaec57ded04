package httpapi

import (
	"errors"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ent0n29/speakwell/internal/practice"
)

func (s *Server) handleContent(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.practice.Catalog())
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "No audio file provided.")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, fileErr := r.FormFile("audio")
	_, sentAsField := r.MultipartForm.Value["audio"]
	if fileErr != nil && !sentAsField {
		respondError(w, http.StatusBadRequest, "missing_audio", "No audio file provided.")
		return
	}
	if file != nil {
		defer file.Close()
	}

	contentType := r.FormValue("contentType")
	contentID := r.FormValue("contentId")
	if contentID == "" {
		contentID = r.FormValue("sentenceId")
	}
	if _, _, err := s.practice.Resolve(contentType, contentID); err != nil {
		s.respondPracticeError(w, err)
		return
	}
	if fileErr != nil || header.Filename == "" || header.Size == 0 {
		respondError(w, http.StatusBadRequest, "empty_audio", "Empty audio file.")
		return
	}

	sess := sessionFrom(r.Context())
	res, err := s.practice.Transcribe(r.Context(), practice.Request{
		UserID:      sess.UserID,
		ContentType: contentType,
		ContentID:   contentID,
		Audio:       file,
		Ext:         uploadExt(header),
	})
	if err != nil {
		s.log.WithError(err).Warn("transcription failed")
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "Transcription failed.", Details: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) respondPracticeError(w http.ResponseWriter, err error) {
	var nf *practice.NotFoundError
	switch {
	case errors.As(err, &nf):
		respondError(w, http.StatusNotFound, "content_not_found", nf.Message())
	case errors.Is(err, practice.ErrInvalidContentType):
		respondError(w, http.StatusBadRequest, "invalid_content_type", "Invalid content type.")
	case errors.Is(err, practice.ErrMissingContentID):
		respondError(w, http.StatusBadRequest, "missing_content_id", "Content identifier missing.")
	case errors.Is(err, practice.ErrInvalidContentID):
		respondError(w, http.StatusBadRequest, "invalid_content_id", "Content identifier must be an integer.")
	default:
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	limit := practice.DefaultProgressLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}
	dash, err := s.practice.Progress(r.Context(), sessionFrom(r.Context()).UserID, limit)
	if err != nil {
		s.log.WithError(err).Error("load dashboard failed")
		respondError(w, http.StatusInternalServerError, "internal", "Could not load progress.")
		return
	}
	respondJSON(w, http.StatusOK, dash)
}

// uploadExt keeps the browser's container extension; ffmpeg probes the
// content anyway.
func uploadExt(h *multipart.FileHeader) string {
	if h == nil {
		return ""
	}
	return strings.ToLower(filepath.Ext(h.Filename))
}
