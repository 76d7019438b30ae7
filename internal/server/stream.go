package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/hyperjump/bayan/internal/models"
	"github.com/hyperjump/bayan/internal/rag"
	"github.com/hyperjump/bayan/pkg/utils"
	"go.uber.org/zap"
)

const doneFrame = "data: [DONE]\n\n"

type streamFrame struct {
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// handleChatStream answers over server-sent events. Every stream ends with
// the [DONE] frame and carries at most one error frame.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, msgEmptyQuestion)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, rag.ErrorMessage)
		return
	}

	streamID := uuid.NewString()
	logger := s.logger.With(zap.String("stream_id", streamID))
	logger.Info("processing streaming question", zap.String("question", utils.Truncate(req.Question, 50)))

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set("X-Stream-ID", streamID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	fragments := 0
	seq, err := s.pipeline.StreamQuery(r.Context(), req.Question)
	if err != nil {
		logger.Error("streaming query failed", zap.Error(err))
		writeFrame(w, streamFrame{Error: rag.ErrorMessage})
	} else {
		for fragment, err := range seq {
			if err != nil {
				logger.Error("streaming failed", zap.Int("fragments", fragments), zap.Error(err))
				writeFrame(w, streamFrame{Error: rag.ErrorMessage})
				break
			}
			if fragment == "" {
				continue
			}
			if err := writeFrame(w, streamFrame{Content: fragment}); err != nil {
				logger.Debug("client went away", zap.Error(err))
				return
			}
			flusher.Flush()
			fragments++
		}
	}
	fmt.Fprint(w, doneFrame)
	flusher.Flush()
	logger.Info("streaming complete", zap.Int("fragments", fragments))
}

func writeFrame(w http.ResponseWriter, f streamFrame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
