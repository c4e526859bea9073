package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/unclebandit/campaign-service/internal/controller"
	"github.com/unclebandit/campaign-service/internal/handler"
	"github.com/unclebandit/campaign-service/internal/model"
	"github.com/unclebandit/campaign-service/internal/repository"
	"github.com/unclebandit/campaign-service/internal/service"
)

// --- Fakes ---

type stubLauncher struct {
	mu       sync.Mutex
	launched []string
}

func (l *stubLauncher) Launch(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launched = append(l.launched, id)
	return nil
}

func (l *stubLauncher) Abort(id string) bool { return false }

// MockBrokenCampaignRepo fails every read.
type MockBrokenCampaignRepo struct {
	repository.CampaignRepositoryInterface
}

func (m *MockBrokenCampaignRepo) Find(ctx context.Context, filter model.CampaignFilter) ([]*model.Campaign, error) {
	return nil, errors.New("connection refused")
}

func (m *MockBrokenCampaignRepo) FindOne(ctx context.Context, id string) (*model.Campaign, error) {
	return nil, errors.New("connection refused")
}

// --- Helpers ---

type api struct {
	svc      *service.CampaignService
	launcher *stubLauncher
	router   http.Handler
}

func newAPI(t *testing.T) *api {
	t.Helper()
	created := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	contacts := repository.NewMemoryContactRepository(
		&model.Contact{ID: "c001", Name: "Alice Moraa", Phone: "+254700000001", Status: model.ContactActive, Tags: []string{"vip"}, CreatedAt: created},
		&model.Contact{ID: "c002", Name: "Brian Otieno", Phone: "+254700000002", Status: model.ContactInactive, CreatedAt: created.Add(time.Hour)},
	)
	launcher := &stubLauncher{}
	svc := &service.CampaignService{
		CampaignRepo: repository.NewMemoryCampaignRepository(),
		MessageRepo:  repository.NewMemoryMessageRepository(),
		ContactRepo:  contacts,
		Launcher:     launcher,
		Sender:       &service.StubSender{},
		Recordings:   &service.StubRecordingStore{BaseURL: "https://api.example.com/recordings"},
	}
	return &api{svc: svc, launcher: launcher, router: controller.NewRouter(svc, nil, nil)}
}

func (a *api) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *api) create(t *testing.T) *model.Campaign {
	t.Helper()
	w := a.do(t, http.MethodPost, "/campaigns", model.CampaignForm{
		Name:     "Spring sale",
		Channel:  model.ChannelSMS,
		Message:  "Hi {name}",
		Contacts: []string{"c001", "c002"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var c model.Campaign
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &c))
	return &c
}

func decodeCampaign(t *testing.T, w *httptest.ResponseRecorder) model.Campaign {
	t.Helper()
	var c model.Campaign
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &c), w.Body.String())
	return c
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"]
}

// --- Tests ---

func TestCreateCampaign(t *testing.T) {
	a := newAPI(t)
	c := a.create(t)

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, model.StatusDraft, c.Status)
	assert.Equal(t, 2, c.ContactsCount)
	assert.Equal(t, model.Progress{Pending: 2}, c.Progress)

	w := a.do(t, http.MethodGet, "/campaigns/"+c.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, c.ID, decodeCampaign(t, w).ID)
}

func TestCreateCampaign_Invalid(t *testing.T) {
	a := newAPI(t)

	w := a.do(t, http.MethodPost, "/campaigns", model.CampaignForm{Name: "x", Channel: "fax", Message: "hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorMessage(t, w), "invalid channel")

	w = a.do(t, http.MethodPost, "/campaigns", model.CampaignForm{Name: "voice", Channel: model.ChannelIVR})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/campaigns", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCampaign_NotFound(t *testing.T) {
	a := newAPI(t)
	w := a.do(t, http.MethodGet, "/campaigns/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "campaign not found", errorMessage(t, w))
}

func TestListCampaigns(t *testing.T) {
	a := newAPI(t)
	for i := 0; i < 3; i++ {
		a.create(t)
	}

	w := a.do(t, http.MethodGet, "/campaigns?page=1&page_size=2&channel=sms", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data       []model.Campaign `json:"data"`
		Pagination map[string]int   `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 2)
	assert.Equal(t, 3, resp.Pagination["total_count"])
	assert.Equal(t, 2, resp.Pagination["total_pages"])

	w = a.do(t, http.MethodGet, "/campaigns?status=paused", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCampaignLifecycleRoutes(t *testing.T) {
	a := newAPI(t)
	c := a.create(t)

	w := a.do(t, http.MethodPost, "/campaigns/"+c.ID+"/schedule", map[string]string{"scheduled_for": "tomorrow"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, http.MethodPost, "/campaigns/"+c.ID+"/schedule", map[string]string{"scheduled_for": "2026-07-01T08:00:00Z"})
	require.Equal(t, http.StatusOK, w.Code)
	scheduled := decodeCampaign(t, w)
	assert.Equal(t, model.StatusScheduled, scheduled.Status)
	require.NotNil(t, scheduled.ScheduledFor)

	w = a.do(t, http.MethodPost, "/campaigns/"+c.ID+"/start", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, model.StatusInProgress, decodeCampaign(t, w).Status)
	assert.Equal(t, []string{c.ID}, a.launcher.launched)

	w = a.do(t, http.MethodPost, "/campaigns/"+c.ID+"/schedule", map[string]string{"scheduled_for": "2026-07-01T08:00:00Z"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = a.do(t, http.MethodPost, "/campaigns/"+c.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.StatusCancelled, decodeCampaign(t, w).Status)

	// cancelling twice is harmless, restarting is not allowed
	w = a.do(t, http.MethodPost, "/campaigns/"+c.ID+"/cancel", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = a.do(t, http.MethodPost, "/campaigns/"+c.ID+"/start", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = a.do(t, http.MethodPost, "/campaigns/missing/start", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateCampaign(t *testing.T) {
	a := newAPI(t)
	c := a.create(t)

	w := a.do(t, http.MethodPatch, "/campaigns/"+c.ID, map[string]string{"name": "Summer sale"})
	require.Equal(t, http.StatusOK, w.Code)
	updated := decodeCampaign(t, w)
	assert.Equal(t, "Summer sale", updated.Name)
	assert.Equal(t, c.Message, updated.Message)

	w = a.do(t, http.MethodPatch, "/campaigns/"+c.ID, map[string]string{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, http.MethodPatch, "/campaigns/missing", map[string]string{"name": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteCampaign(t *testing.T) {
	a := newAPI(t)
	c := a.create(t)

	w := a.do(t, http.MethodDelete, "/campaigns/"+c.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = a.do(t, http.MethodDelete, "/campaigns/"+c.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetMessages_Empty(t *testing.T) {
	a := newAPI(t)
	w := a.do(t, http.MethodGet, "/campaigns/unknown/messages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[]}`, w.Body.String())
}

func TestSendTestMessage(t *testing.T) {
	a := newAPI(t)

	w := a.do(t, http.MethodPost, "/test-messages", map[string]string{
		"channel": "whatsapp", "phone": "+254700000001", "content": "ping",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	w = a.do(t, http.MethodPost, "/test-messages", map[string]string{"channel": "sms"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadRecording(t *testing.T) {
	a := newAPI(t)
	c := a.create(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "welcome message.mp3")
	require.NoError(t, err)
	_, err = part.Write([]byte("ID3fake"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("campaign_id", c.ID))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/recordings", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "https://api.example.com/recordings/welcome-message.mp3", resp["url"])

	got, err := a.svc.GetByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, resp["url"], got.VoiceRecordingRef)

	req = httptest.NewRequest(http.MethodPost, "/recordings", strings.NewReader("plain"))
	w = httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListContacts(t *testing.T) {
	a := newAPI(t)

	w := a.do(t, http.MethodGet, "/contacts?tag=vip", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []model.Contact `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "c001", resp.Data[0].ID)

	w = a.do(t, http.MethodGet, "/contacts?search=otieno", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "c002", resp.Data[0].ID)
}

func TestOverview(t *testing.T) {
	a := newAPI(t)
	a.create(t)
	a.create(t)

	w := a.do(t, http.MethodGet, "/stats/overview", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats model.CampaignStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.TotalCampaigns)
	assert.Equal(t, 2, stats.DraftCampaigns)
	assert.Equal(t, 4, stats.MessagesPending)
	assert.Equal(t, 2, stats.ByChannel[model.ChannelSMS])
}

func TestRepositoryFailureIs500(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	svc := &service.CampaignService{CampaignRepo: &MockBrokenCampaignRepo{}, Launcher: &stubLauncher{}}
	router := controller.NewRouter(svc, nil, zap.New(core))

	cases := []struct {
		method, path, want string
	}{
		{http.MethodGet, "/campaigns", "failed to fetch campaigns"},
		{http.MethodGet, "/campaigns/abc", "failed to fetch campaign"},
		{http.MethodGet, "/stats/overview", "failed to compute overview"},
		{http.MethodPost, "/campaigns/abc/cancel", "failed to cancel campaign"},
		{http.MethodPost, "/campaigns/abc/start", "failed to start campaign"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code, tc.path)
		assert.JSONEq(t, `{"error":"`+tc.want+`"}`, w.Body.String(), tc.path)
		assert.NotContains(t, w.Body.String(), "connection refused", tc.path)

		logged := logs.FilterMessage(tc.want).All()
		require.NotEmpty(t, logged, tc.path)
		assert.Contains(t, logged[len(logged)-1].ContextMap()["error"], "connection refused", tc.path)
	}
}

func TestHealthRoute(t *testing.T) {
	health := &handler.HealthHandler{
		Service: "campaign-service",
		Pingers: map[string]handler.Pinger{
			"store": func(ctx context.Context) error { return nil },
		},
	}
	router := controller.NewRouter(&service.CampaignService{}, health, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}
