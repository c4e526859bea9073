package controller

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/unclebandit/campaign-service/internal/handler"
	"github.com/unclebandit/campaign-service/internal/logger"
	"github.com/unclebandit/campaign-service/internal/service"
)

// NewRouter mounts every campaign service endpoint on a chi router.
func NewRouter(svc *service.CampaignService, health *handler.HealthHandler, log *zap.Logger) http.Handler {
	log = logger.OrNop(log)
	ctrl := &CampaignController{CampaignService: svc, Logger: log}
	reads := handler.NewCampaignHandler(svc, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Route("/campaigns", func(r chi.Router) {
		r.Post("/", ctrl.CreateCampaign)
		r.Get("/", reads.ListCampaignsHandler)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", reads.GetCampaignHandler)
			r.Patch("/", ctrl.UpdateCampaign)
			r.Delete("/", ctrl.DeleteCampaign)
			r.Post("/schedule", ctrl.ScheduleCampaign)
			r.Post("/start", ctrl.StartCampaign)
			r.Post("/cancel", ctrl.CancelCampaign)
			r.Get("/messages", reads.GetMessagesHandler)
		})
	})
	r.Post("/test-messages", ctrl.SendTestMessage)
	r.Post("/recordings", ctrl.UploadRecording)
	r.Get("/contacts", reads.ListContactsHandler)
	r.Get("/stats/overview", reads.OverviewHandler)
	if health != nil {
		r.Get("/health", health.GetOverallHealth)
	}
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
