package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/rpc"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pyropy/qrxfer/core/collector"
)

// maxBody caps a posted chunk. Rendered codes hold at most a few KB.
const maxBody = 1 << 20

type Server struct {
	router    *chi.Mux
	collector *collector.Collector
	saveDir   string
}

func NewServer(c *collector.Collector, rpcServer *rpc.Server, saveDir string) *Server {
	router := chi.NewRouter()

	s := &Server{
		router:    router,
		collector: c,
		saveDir:   saveDir,
	}

	// preflight must be answered before routing rejects the method
	router.Use(cors)

	// net/rpc hijacks the connection, so it stays outside the HTTP middleware.
	if rpcServer != nil {
		router.Handle(rpc.DefaultRPCPath, rpcServer)
	}

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequestID)
		r.Use(requestLogger)
		r.Use(middleware.Recoverer)

		r.Get("/", s.index)
		r.Post("/save-chunk", s.saveChunk)
		r.Get("/stats", s.stats)
		r.Post("/clear", s.clear)
		r.Get("/report", s.report)
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type saveChunkRequest struct {
	ChunkIndex int    `json:"chunkIndex"`
	Content    string `json:"content"`
	FileName   string `json:"fileName"`
	Session    string `json:"session,omitempty"`
}

type saveChunkResponse struct {
	Success   bool   `json:"success"`
	Saved     string `json:"saved"`
	Session   string `json:"session"`
	Valid     bool   `json:"valid"`
	Duplicate bool   `json:"duplicate"`
}

type statsResponse struct {
	Success     bool           `json:"success"`
	ChunksCount int            `json:"chunksCount"`
	SaveDir     string         `json:"saveDir"`
	Session     string         `json:"session"`
	Sessions    map[string]int `json:"sessions"`
	Files       []string       `json:"files"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *Server) saveChunk(w http.ResponseWriter, r *http.Request) {
	var req saveChunkRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	result, err := s.collector.SaveChunk(r.Context(), collector.SaveRequest{
		Session:    req.Session,
		FileName:   req.FileName,
		ChunkIndex: req.ChunkIndex,
		Content:    req.Content,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, collector.ErrEmptyContent) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}

	writeJSON(w, http.StatusOK, saveChunkResponse{
		Success:   true,
		Saved:     result.Name,
		Session:   result.Session,
		Valid:     result.Valid,
		Duplicate: result.Duplicate,
	})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.collector.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Success:     true,
		ChunksCount: stats.ChunksCount,
		SaveDir:     stats.SaveDir,
		Session:     stats.Session,
		Sessions:    stats.Sessions,
		Files:       stats.Files,
	})
}

func (s *Server) clear(w http.ResponseWriter, r *http.Request) {
	stats, err := s.collector.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if err := s.collector.Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "cleared": stats.ChunksCount})
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	report := s.collector.Report()
	if name := r.URL.Query().Get("file"); name != "" {
		f, ok := report.File(name)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Errorf("no chunks for %s", name))
			return
		}
		writeJSON(w, http.StatusOK, f)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

var indexPage = template.Must(template.New("index").Parse(`<html>
<head><title>QR Server</title></head>
<body>
	<h1>QR Code Chunk Server</h1>
	<p>Server is running</p>
	<p>Saving to: {{.SaveDir}}</p>
	<p>Session: {{.Session}}</p>
	<p>POST scanned chunks to /save-chunk</p>
</body>
</html>
`))

func (s *Server) index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = indexPage.Execute(w, map[string]string{
		"SaveDir": s.saveDir,
		"Session": s.collector.Session(),
	})
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		log.Infow("http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"requestID", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	log.Errorw("http", "status", status, "error", err)
	writeJSON(w, status, errorResponse{Success: false, Error: err.Error()})
}
