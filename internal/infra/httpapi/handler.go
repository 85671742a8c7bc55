package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/framescope/framescope/internal/domain/entity"
	"github.com/framescope/framescope/internal/domain/port"
	"github.com/framescope/framescope/internal/infra/ffmpeg"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultMaxUploadBytes = 100 << 20
	multipartMemory       = 32 << 20
	// multipartOverhead leaves room for the form fields around the file part.
	multipartOverhead = 1 << 20
)

var allowedVideoTypes = map[string]bool{
	"video/mp4":        true,
	"video/mpeg":       true,
	"video/quicktime":  true,
	"video/x-msvideo":  true,
	"video/x-matroska": true,
	"video/webm":       true,
	"video/x-flv":      true,
	"video/3gpp":       true,
}

type Config struct {
	UploadDir      string
	FrameDir       string
	MaxUploadBytes int64
}

// Handler exposes the upload, frame and archive endpoints.
type Handler struct {
	pipeline port.FramePipeline
	zipper   port.Zipper
	cfg      Config
	logger   *zap.Logger
}

func NewHandler(pipeline port.FramePipeline, zipper port.Zipper, cfg Config, logger *zap.Logger) *Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &Handler{pipeline: pipeline, zipper: zipper, cfg: cfg, logger: logger}
}

type uploadResponse struct {
	Success     bool                   `json:"success"`
	SessionID   string                 `json:"session_id"`
	FrameCount  int                    `json:"frame_count"`
	FrameURLs   []string               `json:"frame_urls"`
	DownloadURL string                 `json:"download_url"`
	Result      *entity.PipelineResult `json:"result"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Upload handles POST /upload with the video in the multipart field "video".
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusBadRequest, h.tooLargeMessage())
			return
		}
		h.writeError(w, http.StatusBadRequest, "No video file uploaded. Please select a video file.")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("video")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "No video file uploaded. Please select a video file.")
		return
	}
	defer file.Close()

	if header.Size > h.cfg.MaxUploadBytes {
		h.writeError(w, http.StatusBadRequest, h.tooLargeMessage())
		return
	}
	if !allowedVideo(header.Header.Get("Content-Type")) {
		h.writeError(w, http.StatusBadRequest, "Invalid file type. Please upload a valid video file.")
		return
	}

	req, err := parseExtractionRequest(r)
	if err == nil {
		err = req.Validate()
	}
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session := entity.NewSession(h.cfg.FrameDir)
	log := h.logger.With(zap.String("session_id", session.ID))

	uploadPath := filepath.Join(h.cfg.UploadDir, session.ID+"_"+safeBase(header.Filename))
	if err := saveUpload(file, uploadPath); err != nil {
		log.Error("failed to store upload", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "An unexpected error occurred during upload. Please try again.")
		return
	}

	result, err := h.pipeline.Run(r.Context(), session, uploadPath, req)
	if err != nil {
		log.Error("extraction failed", zap.Error(err))
		status, msg := classify(err)
		h.writeError(w, status, msg)
		return
	}

	urls := make([]string, len(result.Frames))
	for i, name := range result.Frames {
		urls[i] = frameURL(session.ID, name)
	}

	h.writeJSON(w, http.StatusOK, uploadResponse{
		Success:     true,
		SessionID:   session.ID,
		FrameCount:  result.FrameCount,
		FrameURLs:   urls,
		DownloadURL: "/download-all/" + session.ID,
		Result:      result,
	})
}

// ServeFrame handles GET /frames/{sessionID}/{file}.
func (h *Handler) ServeFrame(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(chi.URLParam(r, "sessionID"))
	if !ok {
		h.writeError(w, http.StatusBadRequest, "Invalid session id.")
		return
	}
	name := chi.URLParam(r, "file")
	if !plainName(name) {
		h.writeError(w, http.StatusBadRequest, "Invalid file name.")
		return
	}

	path := filepath.Join(h.cfg.FrameDir, sessionID, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		h.writeError(w, http.StatusNotFound, "Frame not found. It may have expired.")
		return
	}
	http.ServeFile(w, r, path)
}

// DownloadAll handles GET /download-all/{sessionID} by streaming every file
// of the session as one archive.
func (h *Handler) DownloadAll(w http.ResponseWriter, r *http.Request) {
	sessionID, dir, err := h.sessionDir(chi.URLParam(r, "sessionID"))
	if err != nil {
		status, msg := classify(err)
		h.writeError(w, status, msg)
		return
	}

	files, err := ffmpeg.DirFiles(dir)
	if err != nil {
		h.logger.Error("failed to list session", zap.String("session_id", sessionID), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "Error creating ZIP file.")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="frames_%s.zip"`, sessionID))
	w.WriteHeader(http.StatusOK)

	// Headers are already sent; a failure here can only truncate the stream.
	if err := h.zipper.WriteZip(r.Context(), files, w); err != nil {
		h.logger.Error("archive stream failed",
			zap.String("session_id", sessionID),
			zap.Error(fmt.Errorf("%w: %v", entity.ErrArchiveFailure, err)),
		)
	}
}

// sessionDir resolves a session's frame directory, failing with
// ErrSessionNotFound for malformed ids and missing directories alike.
func (h *Handler) sessionDir(raw string) (string, string, error) {
	id, ok := parseSessionID(raw)
	if !ok {
		return "", "", fmt.Errorf("%w: malformed id %q", entity.ErrSessionNotFound, raw)
	}
	dir := filepath.Join(h.cfg.FrameDir, id)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", "", fmt.Errorf("%w: %s", entity.ErrSessionNotFound, id)
	}
	return id, dir, nil
}

func (h *Handler) tooLargeMessage() string {
	return fmt.Sprintf("File too large. Maximum file size is %dMB.", h.cfg.MaxUploadBytes>>20)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Success: false, Error: msg})
}

// classify maps a pipeline error to a status and a user-facing message.
// Transcoder diagnostics never reach the client.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, entity.ErrInvalidParameter):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, entity.ErrSessionNotFound):
		return http.StatusNotFound, "Session not found. It may have expired."
	case errors.Is(err, entity.ErrEmptyExtraction):
		return http.StatusInternalServerError, "No frames could be extracted from the video."
	case errors.Is(err, entity.ErrExtractionFailure):
		return http.StatusInternalServerError, "Error extracting frames. The video file may be corrupted or in an unsupported format."
	case errors.Is(err, entity.ErrProbeFailure), errors.Is(err, entity.ErrProbeParseFailure):
		return http.StatusInternalServerError, "Could not read the video metadata. The file may be corrupted or in an unsupported format."
	default:
		return http.StatusInternalServerError, "An unexpected error occurred while processing the video."
	}
}

// parseExtractionRequest reads the form fields. "mode" wins over the legacy
// "frameRate" field, which is either "all" or a numeric rate.
func parseExtractionRequest(r *http.Request) (entity.ExtractionRequest, error) {
	var req entity.ExtractionRequest

	mode := strings.TrimSpace(r.FormValue("mode"))
	legacy := strings.TrimSpace(r.FormValue("frameRate"))
	switch {
	case mode != "":
		req.Mode = entity.ExtractionMode(mode)
	case legacy == "" || legacy == "all":
		req.Mode = entity.ModeAll
	default:
		rate, err := strconv.ParseFloat(legacy, 64)
		if err != nil {
			return req, fmt.Errorf("%w: frame rate %q is not a number", entity.ErrInvalidParameter, legacy)
		}
		req.Mode = entity.ModeFixedRate
		req.Rate = rate
	}

	if v := strings.TrimSpace(r.FormValue("rate")); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return req, fmt.Errorf("%w: rate %q is not a number", entity.ErrInvalidParameter, v)
		}
		req.Rate = rate
	}

	var err error
	if req.Start, err = optionalSeconds(r.FormValue("startTime"), "start time"); err != nil {
		return req, err
	}
	if req.End, err = optionalSeconds(r.FormValue("endTime"), "end time"); err != nil {
		return req, err
	}

	req.EnableAI = formBool(r.FormValue("enableAI"))
	req.RemoveBlurry = formBool(r.FormValue("removeBlurry"))
	req.DetectScenes = formBool(r.FormValue("detectScenes"))
	return req, nil
}

func optionalSeconds(raw, field string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q is not a number", entity.ErrInvalidParameter, field, raw)
	}
	return &v, nil
}

func formBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

func allowedVideo(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return allowedVideoTypes[mt]
}

func parseSessionID(raw string) (string, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func plainName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}

// safeBase strips any client-supplied directory from the upload name.
func safeBase(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if !plainName(name) {
		return "video"
	}
	return name
}

func frameURL(sessionID, name string) string {
	return "/frames/" + sessionID + "/" + name
}

func saveUpload(src io.Reader, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return fmt.Errorf("write upload file: %w", err)
	}
	return dst.Close()
}
