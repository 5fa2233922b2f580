package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"gochat/internal/common"
	"gochat/internal/config"
	"gochat/internal/dbmongo"
	"gochat/internal/metrics"
)

const formField = "image"

// Storage is what the server needs from the GridFS media storage.
type Storage interface {
	UploadFile(ctx context.Context, filename, mimeType, uploaderID string, content io.Reader) (*dbmongo.MediaFile, error)
	DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, *dbmongo.MediaFile, error)
}

type HTTPServer struct {
	storage  Storage
	secret   []byte
	maxBytes int64
	metrics  *metrics.Metrics
	router   *mux.Router
}

func NewHTTPServer(storage Storage, cfg *config.Config, m *metrics.Metrics) *HTTPServer {
	s := &HTTPServer{
		storage:  storage,
		secret:   []byte(cfg.Auth.JWTSecret),
		maxBytes: cfg.Media.MaxUploadBytes,
		metrics:  m,
	}
	if s.maxBytes <= 0 {
		s.maxBytes = 10 << 20
	}

	s.router = mux.NewRouter()
	s.RegisterRoutes(s.router)
	s.router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	return s
}

// RegisterRoutes mounts the media endpoints on an existing router.
func (s *HTTPServer) RegisterRoutes(r *mux.Router) {
	r.Handle("/media", common.AuthMiddleware(s.secret)(http.HandlerFunc(s.uploadFile))).Methods(http.MethodPost)
	r.HandleFunc("/media/{fileId}", s.serveFile).Methods(http.MethodGet)
}

func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *HTTPServer) uploadFile(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserIDFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes)
	if err := r.ParseMultipartForm(s.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			common.WriteError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d bytes", s.maxBytes))
			return
		}
		common.WriteError(w, http.StatusBadRequest, "expected multipart form")
		return
	}

	file, header, err := r.FormFile(formField)
	if err != nil {
		common.WriteError(w, http.StatusBadRequest, "missing form field \"image\"")
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = s.getContentType(header.Filename)
	}

	uploaded, err := s.storage.UploadFile(r.Context(), filepath.Base(header.Filename), mimeType, userID, file)
	if err != nil {
		status := common.HTTPStatus(err)
		if status == http.StatusInternalServerError {
			log.Printf("Media upload failed for %s: %v", userID, err)
			common.WriteError(w, status, "upload failed")
			return
		}
		common.WriteError(w, status, err.Error())
		return
	}

	if s.metrics != nil {
		s.metrics.MediaUploads.Inc()
	}
	common.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"path": uploaded.Path(),
		"id":   uploaded.ID,
		"size": uploaded.Size,
	})
}

func (s *HTTPServer) serveFile(w http.ResponseWriter, r *http.Request) {
	fileID := mux.Vars(r)["fileId"]

	fileReader, mediaFile, err := s.storage.DownloadFile(r.Context(), fileID)
	if errors.Is(err, dbmongo.ErrMediaNotFound) {
		common.WriteError(w, http.StatusNotFound, "file not found")
		return
	}
	if err != nil {
		log.Printf("Error opening media %s: %v", fileID, err)
		common.WriteError(w, http.StatusInternalServerError, "download failed")
		return
	}
	defer fileReader.Close()

	contentType := mediaFile.MimeType
	if contentType == "" {
		contentType = s.getContentType(mediaFile.Filename)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", mediaFile.Size))
	w.Header().Set("Cache-Control", "private, max-age=86400")

	if _, err := io.Copy(w, fileReader); err != nil {
		log.Printf("Error streaming file: %v", err)
	}
}

func (s *HTTPServer) getContentType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

func (s *HTTPServer) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("✅ Media server is healthy"))
}
