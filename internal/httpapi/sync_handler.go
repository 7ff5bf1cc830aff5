package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lihe8811/AquaSense/internal/models"
	"github.com/lihe8811/AquaSense/internal/service"
)

// SyncOrchestrator 同步编排器
type SyncOrchestrator interface {
	Snapshot() models.Snapshot
	SessionAcquired(ctx context.Context, session models.AuthSession)
	SessionCleared(ctx context.Context)
	Refresh(ctx context.Context) error
	StartScan() (models.TestSession, error)
	MarkScanned(kind models.ScanKind) (models.TestSession, error)
	RequestGeneration(ctx context.Context) (models.ReportItem, error)
}

// SurveyStore 用户问卷存储
type SurveyStore interface {
	LoadProfileSurvey(ctx context.Context) (models.ProfileSurvey, error)
	SaveProfileSurvey(ctx context.Context, survey models.ProfileSurvey) error
}

// SyncHandler 同步接口
type SyncHandler struct {
	orchestrator SyncOrchestrator
	surveys      SurveyStore
	logger       *zap.Logger
}

func NewSyncHandler(orchestrator SyncOrchestrator, surveys SurveyStore, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{orchestrator: orchestrator, surveys: surveys, logger: logger}
}

// GetState GET /api/v1/sync/state
func (h *SyncHandler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(h.orchestrator.Snapshot()))
}

// AcquireSession POST /api/v1/sync/session
// 同步完成后返回快照；拉取失败时快照状态为 sync_failed
func (h *SyncHandler) AcquireSession(w http.ResponseWriter, r *http.Request) {
	var session models.AuthSession
	if err := readBodyJSON(r, maxBodyBytes, &session); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid session body"))
		return
	}
	if session.Token == "" || session.UserID() == "" {
		writeJSON(w, http.StatusBadRequest, Fail("token and id or email are required"))
		return
	}

	h.orchestrator.SessionAcquired(r.Context(), session)
	writeJSON(w, http.StatusOK, Ok(h.orchestrator.Snapshot()))
}

// ClearSession DELETE /api/v1/sync/session
func (h *SyncHandler) ClearSession(w http.ResponseWriter, r *http.Request) {
	h.orchestrator.SessionCleared(r.Context())
	writeJSON(w, http.StatusOK, Ok(h.orchestrator.Snapshot()))
}

// Refresh POST /api/v1/sync/refresh
func (h *SyncHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.orchestrator.Refresh(r.Context()); errors.Is(err, service.ErrNoSession) {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(h.orchestrator.Snapshot()))
}

// StartScan POST /api/v1/sync/scan
func (h *SyncHandler) StartScan(w http.ResponseWriter, r *http.Request) {
	ts, err := h.orchestrator.StartScan()
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(ts))
}

// MarkScanned POST /api/v1/sync/scan/{kind}
func (h *SyncHandler) MarkScanned(w http.ResponseWriter, r *http.Request) {
	kind := models.ScanKind(chi.URLParam(r, "kind"))
	ts, err := h.orchestrator.MarkScanned(kind)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(ts))
}

// Generate POST /api/v1/sync/generate
// 立即返回占位报告，生成在后台完成
func (h *SyncHandler) Generate(w http.ResponseWriter, r *http.Request) {
	placeholder, err := h.orchestrator.RequestGeneration(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, Ok(placeholder))
}

// GetProfileSurvey GET /api/v1/profile-survey
func (h *SyncHandler) GetProfileSurvey(w http.ResponseWriter, r *http.Request) {
	survey, err := h.surveys.LoadProfileSurvey(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(survey))
}

// SaveProfileSurvey PUT /api/v1/profile-survey
func (h *SyncHandler) SaveProfileSurvey(w http.ResponseWriter, r *http.Request) {
	var survey models.ProfileSurvey
	if err := readBodyJSON(r, maxBodyBytes, &survey); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid profile survey body"))
		return
	}
	if err := h.surveys.SaveProfileSurvey(r.Context(), survey); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(survey))
}

func (h *SyncHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNoSession), errors.Is(err, service.ErrNoScanInProgress):
		writeJSON(w, http.StatusConflict, Fail(err.Error()))
	case errors.Is(err, service.ErrUnknownScanKind):
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
	default:
		h.logger.Error("Request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("internal error"))
	}
}
