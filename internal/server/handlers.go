package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aaronvstory/ReadySearch/internal/batch"
	"github.com/aaronvstory/ReadySearch/internal/input"
	"github.com/aaronvstory/ReadySearch/internal/model"
	"github.com/aaronvstory/ReadySearch/internal/store"
)

// runStatus is the GET /api/batch/{id} response. Completed and Total are
// set while running; Report once finished.
type runStatus struct {
	RunID     string             `json:"run_id"`
	Status    string             `json:"status"`
	Completed int                `json:"completed,omitempty"`
	Total     int                `json:"total,omitempty"`
	Report    *model.BatchReport `json:"report,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			zap.L().Warn("store ping failed", zap.Error(err))
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, map[string]string{"status": status, "version": s.cfg.Version})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string `json:"name"`
		BirthYear int    `json:"birth_year"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	queries := input.Clean([]model.SearchQuery{{Name: req.Name, BirthYear: req.BirthYear}})
	if len(queries) == 0 {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	sess, err := s.pool.Acquire(r.Context())
	if err != nil {
		zap.L().Warn("session acquire failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "no browser session available")
		return
	}
	res, err := s.runner.Run(r.Context(), sess, queries[0])
	s.pool.Release(sess)
	if err != nil {
		zap.L().Error("search failed", zap.String("name", queries[0].Name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleBatchStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Queries []model.SearchQuery `json:"queries"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	queries := input.Clean(req.Queries)
	if len(queries) == 0 {
		writeError(w, http.StatusBadRequest, "at least one valid query is required")
		return
	}

	runID := uuid.NewString()
	if s.store != nil {
		run, err := s.store.CreateRun(r.Context(), queries)
		if err != nil {
			zap.L().Error("create run failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "create run failed")
			return
		}
		runID = run.ID
	}

	runCtx, cancel := context.WithCancel(s.runCtx)
	cfg := s.batchCfg
	cfg.RunID = runID
	orch := batch.New(cfg, s.pool, s.runner)
	lr := &liveRun{
		id:     runID,
		total:  len(queries),
		orch:   orch,
		cancel: cancel,
	}
	s.registry.add(lr)

	s.group.Go(func() error {
		defer cancel()
		if s.store != nil {
			if err := s.store.UpdateRunStatus(runCtx, runID, model.RunStatusRunning); err != nil {
				zap.L().Warn("mark run running failed", zap.String("run_id", runID), zap.Error(err))
			}
		}
		report := orch.Run(runCtx, queries)
		// Persist before flipping the registry so a "done" status always
		// means the store already has the report.
		s.persist(runID, &report)
		lr.finish(&report)
		return nil
	})

	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

func (s *Server) handleBatchStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	if lr, ok := s.registry.get(runID); ok {
		if report := lr.snapshot(); report != nil {
			writeJSON(w, http.StatusOK, runStatus{
				RunID:  runID,
				Status: reportStatus(report),
				Report: report,
			})
			return
		}
		writeJSON(w, http.StatusOK, runStatus{
			RunID:     runID,
			Status:    "running",
			Completed: lr.orch.Completed(),
			Total:     lr.total,
		})
		return
	}

	if s.store != nil {
		run, err := s.store.GetRun(r.Context(), runID)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, runStatus{
				RunID:  run.ID,
				Status: storedStatus(run.Status),
				Total:  len(run.Queries),
				Report: run.Report,
			})
			return
		case !store.IsNotFound(err):
			zap.L().Error("load run failed", zap.String("run_id", runID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "load run failed")
			return
		}
	}
	writeError(w, http.StatusNotFound, "run not found")
}

func (s *Server) handleBatchStop(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	lr, ok := s.registry.get(runID)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if lr.snapshot() != nil {
		writeError(w, http.StatusConflict, "run already finished")
		return
	}
	zap.L().Info("stopping run", zap.String("run_id", runID))
	lr.cancel()
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID, "status": "stopping"})
}

// persist records a finished report on a fresh context, so runs stopped by
// cancellation still land in the store with their partial results.
func (s *Server) persist(runID string, report *model.BatchReport) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.store.SaveResults(ctx, runID, report.Results); err != nil {
		zap.L().Error("save results failed", zap.String("run_id", runID), zap.Error(err))
	}
	if err := s.store.CompleteRun(ctx, runID, report); err != nil {
		zap.L().Error("complete run failed", zap.String("run_id", runID), zap.Error(err))
	}
}

func reportStatus(report *model.BatchReport) string {
	if report.Aborted {
		return "aborted"
	}
	return "done"
}

func storedStatus(status model.RunStatus) string {
	switch status {
	case model.RunStatusComplete:
		return "done"
	case model.RunStatusFailed, model.RunStatusCanceled:
		return "aborted"
	default:
		return "running"
	}
}
