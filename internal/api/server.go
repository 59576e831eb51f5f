package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"meeting-insights-go/internal/actionable"
	"meeting-insights-go/internal/aggregator"
	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/queue"
	"meeting-insights-go/internal/report"
	"meeting-insights-go/internal/store"
	"meeting-insights-go/internal/types"
)

const (
	defaultListLimit     = 100
	maxUploadMemory      = 32 << 20
	defaultMaxUploadSize = 1 << 30
)

type Answerer interface {
	Answer(ctx context.Context, meetingID int64, query string, k int) string
}

type Server struct {
	store     store.MeetingStore
	queue     queue.Queue
	answerer  Answerer
	uploadDir string
	maxUpload int64
	topK      int
	log       *logger.Logger
	router    chi.Router
}

type Options struct {
	Store          store.MeetingStore
	Queue          queue.Queue
	Answerer       Answerer
	UploadDir      string
	// MaxUploadBytes caps the request body of /upload. Zero means 1 GiB.
	MaxUploadBytes int64
	TopK           int
}

func NewServer(opts Options, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadSize
	}
	srv := &Server{
		store:     opts.Store,
		queue:     opts.Queue,
		answerer:  opts.Answerer,
		uploadDir: opts.UploadDir,
		maxUpload: opts.MaxUploadBytes,
		topK:      opts.TopK,
		log:       log.Component("api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(srv.logRequests)

	r.Get("/", srv.handleRoot)
	r.Get("/healthz", srv.handleHealth)
	r.Post("/upload", srv.handleUpload)
	r.Route("/meetings", func(r chi.Router) {
		r.Get("/", srv.handleListMeetings)
		r.Get("/overview", srv.handleOverview)
		r.Get("/overview/export", srv.handleExportOverview)
		r.Get("/{id}", srv.handleGetMeeting)
		r.Get("/{id}/status", srv.handleGetStatus)
		r.Get("/{id}/export", srv.handleExportMeeting)
	})
	r.Post("/search/{id}", srv.handleSearch)

	srv.router = r
	return srv
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.WithRequest(r).WithField("status", ww.Status()).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			Info("request handled")
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "AI Meeting Intelligence API is running."})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Upload exceeds %d bytes.", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "A multipart 'file' field is required.")
		return
	}
	defer r.MultipartForm.RemoveAll()
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "A multipart 'file' field is required.")
		return
	}
	defer file.Close()

	ct := header.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "audio/") && !strings.HasPrefix(ct, "video/") {
		writeError(w, http.StatusBadRequest, "Invalid file type.")
		return
	}

	path, err := s.saveUpload(file, header.Filename)
	if err != nil {
		s.log.WithError(err).Error("store upload failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	m, err := s.store.Create(r.Context(), header.Filename)
	if err != nil {
		os.Remove(path)
		s.log.WithError(err).Error("create meeting failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	job := types.Job{MeetingID: m.ID, FilePath: path, EnqueuedAt: time.Now().UTC()}
	if err := s.queue.Enqueue(r.Context(), job); err != nil {
		os.Remove(path)
		// The record exists but will never be processed.
		if uerr := s.store.UpdateStatus(context.WithoutCancel(r.Context()), m.ID, types.StatusFailed); uerr != nil {
			s.log.WithMeeting(m.ID).WithError(uerr).Error("mark unqueued meeting failed")
		}
		s.log.WithMeeting(m.ID).WithError(err).Warn("enqueue failed")
		if errors.Is(err, queue.ErrFull) {
			writeError(w, http.StatusServiceUnavailable, "Processing queue is full, try again later.")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.log.WithMeeting(m.ID).WithField("filename", m.Filename).Info("upload accepted")
	writeJSON(w, http.StatusAccepted, m.StatusView())
}

func (s *Server) saveUpload(src io.Reader, filename string) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(s.uploadDir, uuid.New().String()+filepath.Ext(filename))
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}

func (s *Server) handleListMeetings(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	meetings, err := s.store.List(r.Context(), skip, limit)
	if err != nil {
		s.log.WithError(err).Error("list meetings failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if meetings == nil {
		meetings = []types.Meeting{}
	}
	writeJSON(w, http.StatusOK, meetings)
}

func (s *Server) handleGetMeeting(w http.ResponseWriter, r *http.Request) {
	m, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	m, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, m.StatusView())
}

type searchRequest struct {
	Query string `json:"query"`
}

type searchResponse struct {
	Answer string `json:"answer"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "A non-empty 'query' is required.")
		return
	}

	m, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if m.Status != types.StatusCompleted {
		writeError(w, http.StatusBadRequest, "Meeting is still processing.")
		return
	}

	answer := s.answerer.Answer(r.Context(), m.ID, req.Query, s.topK)
	writeJSON(w, http.StatusOK, searchResponse{Answer: answer})
}

type overviewResponse struct {
	Overview        aggregator.Overview     `json:"overview"`
	Recommendations []actionable.ActionCard `json:"recommendations"`
}

func (s *Server) overview(ctx context.Context) (overviewResponse, error) {
	meetings, err := s.store.List(ctx, 0, 0)
	if err != nil {
		return overviewResponse{}, err
	}
	ov := aggregator.Aggregate(meetings)
	return overviewResponse{Overview: ov, Recommendations: actionable.Generate(ov)}, nil
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	resp, err := s.overview(r.Context())
	if err != nil {
		s.log.WithError(err).Error("overview failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExportOverview(w http.ResponseWriter, r *http.Request) {
	resp, err := s.overview(r.Context())
	if err != nil {
		s.log.WithError(err).Error("overview failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="meetings-overview.xlsx"`)
	if err := report.WriteOverview(w, resp.Overview, resp.Recommendations); err != nil {
		s.log.WithError(err).Error("write overview workbook failed")
	}
}

func (s *Server) handleExportMeeting(w http.ResponseWriter, r *http.Request) {
	m, ok := s.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="meeting-%d.xlsx"`, m.ID))
	if err := report.WriteMeeting(w, m); err != nil {
		s.log.WithMeeting(m.ID).WithError(err).Error("write meeting workbook failed")
	}
}

// lookup resolves the {id} URL parameter, writing the error response itself
// when the meeting cannot be returned.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (types.Meeting, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Meeting id must be an integer.")
		return types.Meeting{}, false
	}
	m, err := s.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Meeting not found")
		return types.Meeting{}, false
	}
	if err != nil {
		s.log.WithMeeting(id).WithError(err).Error("get meeting failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return types.Meeting{}, false
	}
	return m, true
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
