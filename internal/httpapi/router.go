// Package httpapi 本地 HTTP 接口：UI 读取同步状态并触发状态迁移
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// NewRouter 注册所有路由
func NewRouter(h *SyncHandler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, Ok("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sync", func(r chi.Router) {
			r.Get("/state", h.GetState)
			r.Post("/session", h.AcquireSession)
			r.Delete("/session", h.ClearSession)
			r.Post("/refresh", h.Refresh)
			r.Post("/scan", h.StartScan)
			r.Post("/scan/{kind}", h.MarkScanned)
			r.Post("/generate", h.Generate)
		})
		r.Get("/profile-survey", h.GetProfileSurvey)
		r.Put("/profile-survey", h.SaveProfileSurvey)
	})

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
