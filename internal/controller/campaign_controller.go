package controller

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/unclebandit/campaign-service/internal/handler"
	"github.com/unclebandit/campaign-service/internal/model"
	"github.com/unclebandit/campaign-service/internal/service"
)

// maxRecordingSize bounds the multipart body accepted by UploadRecording.
const maxRecordingSize = 32 << 20

// CampaignController serves the operations that change campaigns.
type CampaignController struct {
	CampaignService *service.CampaignService
	Logger          *zap.Logger
}

func (c *CampaignController) log() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var form model.CampaignForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		handler.WriteError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := form.Validate(); err != nil {
		c.fail(w, "failed to create campaign", err)
		return
	}

	campaign, err := c.CampaignService.Create(r.Context(), form)
	if err != nil {
		c.fail(w, "failed to create campaign", err)
		return
	}
	handler.WriteJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch model.CampaignPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		handler.WriteError(w, http.StatusBadRequest, "invalid body")
		return
	}

	campaign, err := c.CampaignService.Update(r.Context(), id, patch)
	c.respond(w, "failed to update campaign", http.StatusOK, campaign, err)
}

func (c *CampaignController) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	deleted, err := c.CampaignService.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		c.fail(w, "failed to delete campaign", err)
		return
	}
	if !deleted {
		handler.WriteError(w, http.StatusNotFound, "campaign not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *CampaignController) ScheduleCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ScheduledFor string `json:"scheduled_for"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		handler.WriteError(w, http.StatusBadRequest, "invalid body")
		return
	}
	when, err := time.Parse(time.RFC3339, body.ScheduledFor)
	if err != nil {
		handler.WriteError(w, http.StatusBadRequest, "scheduled_for must be an RFC3339 timestamp")
		return
	}

	campaign, err := c.CampaignService.Schedule(r.Context(), chi.URLParam(r, "id"), when)
	c.respond(w, "failed to schedule campaign", http.StatusOK, campaign, err)
}

// StartCampaign answers before the first batch is processed.
func (c *CampaignController) StartCampaign(w http.ResponseWriter, r *http.Request) {
	campaign, err := c.CampaignService.Start(r.Context(), chi.URLParam(r, "id"))
	c.respond(w, "failed to start campaign", http.StatusAccepted, campaign, err)
}

func (c *CampaignController) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	campaign, err := c.CampaignService.Cancel(r.Context(), chi.URLParam(r, "id"))
	c.respond(w, "failed to cancel campaign", http.StatusOK, campaign, err)
}

func (c *CampaignController) SendTestMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Channel model.Channel `json:"channel"`
		Phone   string        `json:"phone"`
		Content string        `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		handler.WriteError(w, http.StatusBadRequest, "invalid body")
		return
	}

	ok, err := c.CampaignService.SendTestMessage(r.Context(), body.Channel, body.Phone, body.Content)
	if err != nil {
		c.log().Warn("test message failed", zap.String("channel", string(body.Channel)), zap.Error(err))
		handler.WriteServiceError(w, err, "failed to send test message")
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{"success": ok})
}

func (c *CampaignController) UploadRecording(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRecordingSize)
	if err := r.ParseMultipartForm(maxRecordingSize); err != nil {
		handler.WriteError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		handler.WriteError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	campaignID := r.FormValue("campaign_id")
	url, err := c.CampaignService.UploadVoiceRecording(r.Context(), header.Filename, file, campaignID)
	if err != nil {
		c.fail(w, "failed to upload recording", err)
		return
	}
	handler.WriteJSON(w, http.StatusCreated, map[string]any{
		"url":         url,
		"campaign_id": campaignID,
	})
}

// respond writes campaign, or 404 when the service reported it missing.
func (c *CampaignController) respond(w http.ResponseWriter, failMsg string, code int, campaign *model.Campaign, err error) {
	if err != nil {
		c.fail(w, failMsg, err)
		return
	}
	if campaign == nil {
		handler.WriteError(w, http.StatusNotFound, "campaign not found")
		return
	}
	handler.WriteJSON(w, code, campaign)
}

// fail logs internal failures before answering with msg in place of err.
func (c *CampaignController) fail(w http.ResponseWriter, msg string, err error) {
	if handler.StatusFor(err) == http.StatusInternalServerError {
		c.log().Error(msg, zap.Error(err))
	}
	handler.WriteServiceError(w, err, msg)
}
