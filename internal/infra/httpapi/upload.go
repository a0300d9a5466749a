// Package httpapi is the upload gateway surface. It streams multipart
// bodies straight into object storage without buffering whole videos in
// memory.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/KrazyGenus/blip/internal/usecase"
)

const maxFieldBytes = 4 << 10

type UploadHandler struct {
	uploads *usecase.UploadStage
	logger  *zap.Logger
}

func NewUploadHandler(uploads *usecase.UploadStage, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{uploads: uploads, logger: logger}
}

// Register mounts the gateway routes.
func (h *UploadHandler) Register(r *mux.Router) {
	r.HandleFunc("/v1/videos", h.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)
}

type uploadResponse struct {
	Queued int                      `json:"queued"`
	Jobs   []*usecase.UploadReceipt `json:"jobs"`
}

// handleUpload accepts one multipart request with a user_id field followed
// by one or more video file parts. Each file becomes its own moderation
// job; the response lists a receipt per file.
func (h *UploadHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart/form-data")
		return
	}

	var (
		userID    string
		userEmail string
		receipts  []*usecase.UploadReceipt
	)

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed multipart body")
			return
		}

		if part.FileName() == "" {
			value, err := readField(part)
			if err != nil {
				writeError(w, http.StatusBadRequest, "malformed form field")
				return
			}
			switch part.FormName() {
			case "user_id":
				userID = value
			case "user_email":
				userEmail = value
			}
			continue
		}

		// Field parts must precede file parts in the body.
		if userID == "" {
			part.Close()
			writeError(w, http.StatusBadRequest, "user_id must precede file parts")
			return
		}

		filename := filepath.Base(part.FileName())
		if !isVideoFilename(filename) {
			part.Close()
			writeError(w, http.StatusUnsupportedMediaType, "unsupported file type: "+filename)
			return
		}

		contentType := part.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		receipt, err := h.uploads.Accept(r.Context(), userID, userEmail, filename, part, -1, contentType)
		part.Close()
		if err != nil {
			h.logger.Error("upload rejected", zap.String("filename", filename), zap.Error(err))
			writeError(w, http.StatusBadGateway, "failed to accept upload")
			return
		}
		receipts = append(receipts, receipt)
	}

	if len(receipts) == 0 {
		writeError(w, http.StatusBadRequest, "no video files in request")
		return
	}

	writeJSON(w, http.StatusAccepted, uploadResponse{Queued: len(receipts), Jobs: receipts})
}

func (h *UploadHandler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func readField(part io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func isVideoFilename(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp4", ".mov", ".mkv", ".webm", ".avi":
		return true
	}
	ct := mime.TypeByExtension(filepath.Ext(name))
	return strings.HasPrefix(ct, "video/")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
