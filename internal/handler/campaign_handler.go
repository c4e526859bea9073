package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/unclebandit/campaign-service/internal/logger"
	"github.com/unclebandit/campaign-service/internal/model"
	"github.com/unclebandit/campaign-service/internal/service"
)

// CampaignHandler serves the read side of the dashboard: campaign listings,
// per-campaign messages, contacts and the stats overview.
type CampaignHandler struct {
	Service *service.CampaignService
	Logger  *zap.Logger
}

func NewCampaignHandler(svc *service.CampaignService, log *zap.Logger) *CampaignHandler {
	return &CampaignHandler{Service: svc, Logger: logger.OrNop(log)}
}

// ListCampaignsHandler returns a paginated, filtered list of campaigns.
func (h *CampaignHandler) ListCampaignsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := 1
	pageSize := 20
	if v := q.Get("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			page = p
		}
	}
	if v := q.Get("page_size"); v != "" {
		if ps, err := strconv.Atoi(v); err == nil && ps > 0 {
			pageSize = ps
		}
	}

	filter := model.CampaignFilter{
		Status:  model.CampaignStatus(q.Get("status")),
		Channel: model.Channel(q.Get("channel")),
		Search:  q.Get("search"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		WriteError(w, http.StatusBadRequest, "invalid status "+strconv.Quote(string(filter.Status)))
		return
	}
	if filter.Channel != "" && !filter.Channel.Valid() {
		WriteError(w, http.StatusBadRequest, "invalid channel "+strconv.Quote(string(filter.Channel)))
		return
	}

	campaigns, pagination, err := h.Service.ListCampaigns(r.Context(), page, pageSize, filter)
	if err != nil {
		h.Logger.Error("failed to fetch campaigns", zap.Error(err))
		WriteServiceError(w, err, "failed to fetch campaigns")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"data":       campaigns,
		"pagination": pagination,
	})
}

// GetCampaignHandler returns one campaign, 404 when it does not exist.
func (h *CampaignHandler) GetCampaignHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := h.Service.GetByID(r.Context(), id)
	if err != nil {
		h.Logger.Error("failed to fetch campaign", zap.String("campaign_id", id), zap.Error(err))
		WriteServiceError(w, err, "failed to fetch campaign")
		return
	}
	if c == nil {
		WriteError(w, http.StatusNotFound, "campaign not found")
		return
	}
	WriteJSON(w, http.StatusOK, c)
}

func (h *CampaignHandler) GetMessagesHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	msgs, err := h.Service.GetMessages(r.Context(), id)
	if err != nil {
		h.Logger.Error("failed to fetch messages", zap.String("campaign_id", id), zap.Error(err))
		WriteServiceError(w, err, "failed to fetch messages")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"data": msgs})
}

func (h *CampaignHandler) ListContactsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.ContactFilter{
		Search: q.Get("search"),
		Status: model.ContactStatus(q.Get("status")),
		Tag:    q.Get("tag"),
	}
	contacts, err := h.Service.ListContacts(r.Context(), filter)
	if err != nil {
		h.Logger.Error("failed to fetch contacts", zap.Error(err))
		WriteServiceError(w, err, "failed to fetch contacts")
		return
	}
	if contacts == nil {
		contacts = []*model.Contact{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"data": contacts})
}

func (h *CampaignHandler) OverviewHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.Overview(r.Context())
	if err != nil {
		h.Logger.Error("failed to compute overview", zap.Error(err))
		WriteServiceError(w, err, "failed to compute overview")
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}
