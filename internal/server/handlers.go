package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/docflow/internal/ingest"
	"github.com/hyperjump/docflow/internal/models"
)

type editRequest struct {
	Tags        *[]string `json:"tags,omitempty"`
	Categories  *[]string `json:"categories,omitempty"`
	Description *string   `json:"description,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	owner := r.Header.Get(UserHeader)
	if owner == "" {
		s.respondError(w, http.StatusUnauthorized, "missing "+UserHeader+" header")
		return
	}
	name, content, contentType, ok := s.readFile(w, r)
	if !ok {
		return
	}
	s.logger.Debug("upload request", zap.String("file", name), zap.Int("size", len(content)), zap.String("owner", owner))
	res, err := s.svc.Upload(r.Context(), owner, name, content, contentType)
	if err != nil {
		s.fail(w, "upload", err)
		return
	}
	if !res.Success {
		s.respondJSON(w, http.StatusServiceUnavailable, res)
		return
	}
	s.respondJSON(w, http.StatusAccepted, res)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ingest.ListFilter{
		Owner:    q.Get("owner"),
		FileType: q.Get("type"),
		Status:   models.DocumentStatus(q.Get("status")),
	}
	if f.Status != "" && !f.Status.Valid() {
		s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown status " + strconv.Quote(string(f.Status)), Code: "status"})
		return
	}
	recs, err := s.svc.List(r.Context(), f)
	if err != nil {
		s.fail(w, "list", err)
		return
	}
	if recs == nil {
		recs = []*models.DocumentRecord{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": recs, "count": len(recs)})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "get", err)
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	dl, err := s.svc.Download(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "download", err)
		return
	}
	w.Header().Set("Content-Type", dl.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(dl.Content)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": dl.FileName}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(dl.Content)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rec, err := s.svc.Edit(r.Context(), chi.URLParam(r, "id"), &models.DocumentPatch{
		Tags:        req.Tags,
		Categories:  req.Categories,
		Description: req.Description,
	})
	if err != nil {
		s.fail(w, "edit", err)
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("id", id))
	if err := s.svc.Delete(r.Context(), id); err != nil {
		s.fail(w, "delete", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("top", query.Top))
	resp, err := s.svc.Search(r.Context(), &query)
	if err != nil {
		s.fail(w, "search", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats(r.Context())
	if err != nil {
		s.fail(w, "stats", err)
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleChatUpload(w http.ResponseWriter, r *http.Request) {
	user := r.Header.Get(UserHeader)
	if user == "" {
		s.respondError(w, http.StatusUnauthorized, "missing "+UserHeader+" header")
		return
	}
	name, content, _, ok := s.readFile(w, r)
	if !ok {
		return
	}
	res, err := s.svc.UploadChatFile(r.Context(), chi.URLParam(r, "threadID"), user, name, content)
	if err != nil {
		s.fail(w, "chat upload", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, res)
}

func (s *Server) handleChatSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	resp, err := s.svc.SearchChat(r.Context(), chi.URLParam(r, "threadID"), &query)
	if err != nil {
		s.fail(w, "chat search", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readFile reads the "file" part of a multipart request. It writes the error
// response itself and reports ok=false when the request is unusable.
func (s *Server) readFile(w http.ResponseWriter, r *http.Request) (name string, content []byte, contentType string, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "request body exceeds the upload limit", Code: models.CodeSize})
			return "", nil, "", false
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return "", nil, "", false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "missing file")
		return "", nil, "", false
	}
	defer file.Close()

	content, err = io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read file")
		return "", nil, "", false
	}
	contentType = header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return filepath.Base(header.Filename), content, contentType, true
}

// fail maps a service error to a status code. Only validation and not-found
// errors carry their message to the client.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: ve.Reason, Code: ve.Code})
	case errors.Is(err, models.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error(op+" failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, errorResponse{Error: message})
}
