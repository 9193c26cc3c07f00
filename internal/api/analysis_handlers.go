package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vytor/chessinsight/internal/errors"
	"github.com/vytor/chessinsight/internal/logger"
	"github.com/vytor/chessinsight/internal/services"
	"github.com/vytor/chessinsight/internal/tasks"
)

type submitResponse struct {
	TaskID string      `json:"task_id"`
	Status tasks.State `json:"status"`
}

type evaluateResponse struct {
	FEN string `json:"fen"`
	CP  int    `json:"cp"`
}

func (s *Server) handleSubmitMistakeAnalysis(w http.ResponseWriter, r *http.Request) {
	var req services.MistakeAnalysisRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, errors.NewBadRequestError("invalid JSON body: "+err.Error()))
		return
	}

	id, err := s.AnalysisService.SubmitMistakeAnalysis(r.Context(), req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	logger.FromContext(r.Context()).Info("mistake analysis queued: task_id=%s, player=%s", id, req.Player)
	w.Header().Set("Location", "/api/tasks/"+id)
	writeJSON(w, r, http.StatusAccepted, submitResponse{TaskID: id, Status: tasks.StateProcessing})
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		handleError(w, r, errors.NewBadRequestError("task id required"))
		return
	}

	status, err := s.AnalysisService.TaskStatus(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

func (s *Server) handleEvaluatePosition(w http.ResponseWriter, r *http.Request) {
	fen := r.URL.Query().Get("fen")
	if fen == "" {
		handleError(w, r, errors.NewBadRequestError("fen parameter required"))
		return
	}

	cp, err := s.AnalysisService.EvaluatePosition(r.Context(), fen)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, evaluateResponse{FEN: fen, CP: cp})
}

func (s *Server) handleOracleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.AnalysisService.OracleStats(r.Context()))
}

func (s *Server) handleResetOracleStats(w http.ResponseWriter, r *http.Request) {
	s.AnalysisService.ResetOracleStats(r.Context())
	writeJSON(w, r, http.StatusOK, s.AnalysisService.OracleStats(r.Context()))
}
