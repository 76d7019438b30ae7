package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/hyperjump/bayan/internal/models"
	"github.com/hyperjump/bayan/internal/rag"
	"github.com/hyperjump/bayan/internal/storage"
	"github.com/hyperjump/bayan/pkg/utils"
	"go.uber.org/zap"
)

const (
	msgInvalidBody     = "invalid request body"
	msgEmptyQuestion   = "question cannot be empty"
	msgTextDirNotFound = "text directory not found"
	statusHistoryLimit = 10
)

type indexRequest struct {
	TextDir string `json:"text_dir,omitempty"`
}

type indexResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	NumDocuments int    `json:"num_documents"`
	NumChunks    int    `json:"num_chunks"`
}

type healthResponse struct {
	Status       string `json:"status"`
	Indexed      bool   `json:"indexed"`
	NumDocuments int    `json:"num_documents"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"message": "Bayan RAG API",
		"version": s.version,
		"endpoints": map[string]string{
			"chat":        "/chat",
			"chat_stream": "/chat/stream",
			"index":       "/index",
			"health":      "/health",
			"status":      "/api/v1/status",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	indexed, n := s.pipeline.Health()
	s.respondJSON(w, http.StatusOK, healthResponse{Status: "healthy", Indexed: indexed, NumDocuments: n})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, msgEmptyQuestion)
		return
	}
	s.logger.Debug("chat request", zap.String("question", utils.Truncate(req.Question, 50)), zap.Bool("return_context", req.ReturnContext))
	resp, err := s.pipeline.Query(r.Context(), req)
	if err != nil {
		s.logger.Error("chat failed", zap.String("question", utils.Truncate(req.Question, 50)), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, rag.ErrorMessage)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	// A client that disconnects mid-build does not abort it.
	ctx := context.WithoutCancel(r.Context())
	build, err := s.pipeline.IndexDocuments(ctx, req.TextDir)
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			s.respondError(w, http.StatusBadRequest, msgTextDirNotFound)
			return
		}
		s.logger.Error("indexing failed", zap.String("text_dir", build.TextDir), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, rag.ErrorMessage)
		return
	}
	if err := s.pipeline.SaveIndex(s.indexDir); err != nil {
		s.logger.Error("saving index failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, rag.ErrorMessage)
		return
	}
	_, n := s.pipeline.Health()
	s.respondJSON(w, http.StatusOK, indexResponse{
		Status:       "success",
		Message:      fmt.Sprintf("Successfully indexed %d documents", build.Documents),
		NumDocuments: build.Documents,
		NumChunks:    n,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := map[string]any{
		"pipeline": s.pipeline.Stats(),
	}
	if catalog := s.pipeline.Catalog(); catalog != nil {
		total, err := catalog.CountBuilds(ctx)
		if err != nil {
			s.logger.Error("status: count builds failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, rag.ErrorMessage)
			return
		}
		builds, err := catalog.ListBuilds(ctx, 0, statusHistoryLimit)
		if err != nil {
			s.logger.Error("status: list builds failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, rag.ErrorMessage)
			return
		}
		resp["builds_total"] = total
		resp["builds"] = builds
	}
	if len(s.diskPaths) > 0 {
		if diskBytes, err := storage.DiskUsageBytes(s.diskPaths...); err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
