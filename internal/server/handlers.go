package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/veriscan/veriscan/internal/detector"
	"github.com/veriscan/veriscan/internal/errdefs"
	"github.com/veriscan/veriscan/internal/ingest"
	"github.com/veriscan/veriscan/internal/store"
)

// metadataFilterPrefix marks query parameters that filter on document
// metadata, e.g. ?meta.course=CS101.
const metadataFilterPrefix = "meta."

type checkOptionsPayload struct {
	MinSimilarity     float64  `json:"min_similarity,omitempty"`
	TopK              int      `json:"top_k,omitempty"`
	IncludeAIAnalysis *bool    `json:"include_ai_analysis,omitempty"`
	ExcludeDocs       []string `json:"exclude_docs,omitempty"`
}

func (p checkOptionsPayload) toOptions() detector.CheckOptions {
	opts := detector.CheckOptions{
		MinSimilarity:     p.MinSimilarity,
		TopK:              p.TopK,
		IncludeAIAnalysis: true,
		ExcludeDocIDs:     p.ExcludeDocs,
	}
	if p.IncludeAIAnalysis != nil {
		opts.IncludeAIAnalysis = *p.IncludeAIAnalysis
	}
	return opts
}

type checkRequest struct {
	Text    string              `json:"text"`
	Options checkOptionsPayload `json:"options"`
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}

	verdict, err := s.detector.Check(r.Context(), req.Text, req.Options.toOptions())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, verdict)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req ingest.UploadRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}

	result, err := s.ingestor.Upload(r.Context(), req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, result)
}

type batchUploadRequest struct {
	Documents []ingest.UploadRequest `json:"documents"`
}

func (s *Server) handleBatchUpload(w http.ResponseWriter, r *http.Request) {
	var req batchUploadRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	if len(req.Documents) == 0 {
		s.respondError(w, errdefs.Newf(errdefs.KindInvalidArgument, "server.batch",
			"documents must not be empty"))
		return
	}

	result, err := s.ingestor.BatchUpload(r.Context(), req.Documents)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, result)
}

type documentResponse struct {
	*store.Document
	Chunks []store.DocumentChunk `json:"chunks,omitempty"`
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	query := r.URL.Query()

	doc, err := s.ingestor.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if query.Get("include_content") == "false" {
		doc.Content = ""
	}

	resp := documentResponse{Document: doc}
	if query.Get("include_chunks") == "true" {
		if resp.Chunks, err = s.ingestor.Chunks(r.Context(), id); err != nil {
			s.respondError(w, err)
			return
		}
	}
	s.respond(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	found, err := s.ingestor.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]bool{"success": found})
}

type documentListResponse struct {
	Documents []store.Document `json:"documents"`
	Total     int              `json:"total"`
}

func (s *Server) handleSearchDocuments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := store.SearchFilter{
		Query:    query.Get("query"),
		Language: query.Get("language"),
	}
	for key, values := range query {
		if strings.HasPrefix(key, metadataFilterPrefix) && len(values) > 0 {
			if filter.Metadata == nil {
				filter.Metadata = make(map[string]string)
			}
			filter.Metadata[strings.TrimPrefix(key, metadataFilterPrefix)] = values[0]
		}
	}

	var err error
	if filter.Limit, err = intParam(query.Get("limit"), 50); err != nil {
		s.respondError(w, err)
		return
	}
	if filter.Offset, err = intParam(query.Get("offset"), 0); err != nil {
		s.respondError(w, err)
		return
	}

	docs, total, err := s.ingestor.Search(r.Context(), filter)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, documentListResponse{Documents: docs, Total: total})
}

type pdfRequest struct {
	Bucket     string              `json:"bucket"`
	ObjectPath string              `json:"object_path"`
	Title      string              `json:"title,omitempty"`
	Language   string              `json:"language,omitempty"`
	Metadata   map[string]string   `json:"metadata,omitempty"`
	Options    checkOptionsPayload `json:"options"`
}

func (p pdfRequest) validate() error {
	if p.Bucket == "" || p.ObjectPath == "" {
		return errdefs.Newf(errdefs.KindInvalidArgument, "server.pdf",
			"bucket and object_path are required")
	}
	return nil
}

func (s *Server) handleIndexPDF(w http.ResponseWriter, r *http.Request) {
	var req pdfRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		s.respondError(w, err)
		return
	}

	result, err := s.ingestor.IngestPDF(r.Context(), req.Bucket, req.ObjectPath, ingest.UploadRequest{
		Title:    req.Title,
		Language: req.Language,
		Metadata: req.Metadata,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, result)
}

func (s *Server) handleCheckPDF(w http.ResponseWriter, r *http.Request) {
	var req pdfRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		s.respondError(w, err)
		return
	}

	verdict, err := s.detector.CheckPDF(r.Context(), req.Bucket, req.ObjectPath, req.Options.toOptions())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, verdict)
}

type componentStatus struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Latency string `json:"latency"`
	Error   string `json:"error,omitempty"`
}

type healthResponse struct {
	Healthy    bool              `json:"healthy"`
	Components []componentStatus `json:"components"`
}

// probeTimeout bounds each dependency check so a hung dependency
// cannot stall the health endpoint.
const probeTimeout = 5 * time.Second

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Healthy: true, Components: make([]componentStatus, 0, len(s.probes))}
	for _, probe := range s.probes {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		start := time.Now()
		err := probe.Check(ctx)
		latency := time.Since(start)
		cancel()

		status := componentStatus{
			Name:    probe.Name,
			Healthy: err == nil,
			Latency: latency.String(),
		}
		if err != nil {
			status.Error = err.Error()
			resp.Healthy = false
		}
		resp.Components = append(resp.Components, status)
	}

	code := http.StatusOK
	if !resp.Healthy {
		code = http.StatusServiceUnavailable
	}
	s.respond(w, code, resp)
}

func intParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errdefs.Newf(errdefs.KindInvalidArgument, "server.params",
			"bad integer parameter %q", raw)
	}
	return n, nil
}
