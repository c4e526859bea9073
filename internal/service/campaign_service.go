package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/campaign-service/internal/errors"
	"github.com/unclebandit/campaign-service/internal/model"
	"github.com/unclebandit/campaign-service/internal/queue"
	"github.com/unclebandit/campaign-service/internal/repository"
)

// CampaignService is the operation surface callers use instead of touching
// storage directly. Unknown campaign ids are reported as nil / false, never
// as an error.
type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	MessageRepo  repository.MessageRepositoryInterface
	ContactRepo  repository.ContactRepositoryInterface
	Launcher     Launcher
	Sender       Sender
	Recordings   RecordingStore
	Events       queue.Queue // optional
	Logger       *zap.Logger
	Now          func() time.Time
}

func (s *CampaignService) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *CampaignService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create stores a new draft campaign with every contact pending.
func (s *CampaignService) Create(ctx context.Context, form model.CampaignForm) (*model.Campaign, error) {
	c := model.NewCampaign(uuid.NewString(), form, s.now())
	if err := c.Progress.Check(c.ContactsCount); err != nil {
		return nil, err
	}
	if err := s.CampaignRepo.InsertOne(ctx, c); err != nil {
		s.log().Error("failed to create campaign", zap.String("name", form.Name), zap.Error(err))
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}
	s.log().Info("campaign created",
		zap.String("campaign_id", c.ID),
		zap.String("channel", string(c.Channel)),
		zap.Int("contacts", c.ContactsCount))
	return c, nil
}

func (s *CampaignService) GetAll(ctx context.Context) ([]*model.Campaign, error) {
	return s.CampaignRepo.Find(ctx, model.CampaignFilter{})
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(ctx context.Context, page, pageSize int, filter model.CampaignFilter) ([]*model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	all, err := s.CampaignRepo.Find(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	total := len(all)

	campaigns := []*model.Campaign{}
	if offset < total {
		campaigns = all[offset:min(offset+pageSize, total)]
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}
	return campaigns, pagination, nil
}

// GetByID returns nil when the campaign does not exist.
func (s *CampaignService) GetByID(ctx context.Context, id string) (*model.Campaign, error) {
	c, err := s.CampaignRepo.FindOne(ctx, id)
	if err != nil {
		if appErrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// Update merges the editable fields of patch. Status and progress only move
// through the lifecycle operations.
func (s *CampaignService) Update(ctx context.Context, id string, patch model.CampaignPatch) (*model.Campaign, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", appErrors.ErrInvalidInput)
	}

	c, err := s.GetByID(ctx, id)
	if err != nil || c == nil {
		return nil, err
	}
	c.Apply(patch, s.now())
	if err := s.CampaignRepo.UpdateDetails(ctx, c); err != nil {
		if appErrors.IsNotFound(err) {
			return nil, nil
		}
		s.log().Error("failed to update campaign", zap.String("campaign_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to update campaign: %w", err)
	}
	return c, nil
}

// waiter is implemented by launchers that run loops in this process.
type waiter interface {
	Wait(ctx context.Context, campaignID string) error
}

// Delete removes the campaign and its messages. It stops the campaign's loop
// first so no batch is recorded after the messages are gone.
func (s *CampaignService) Delete(ctx context.Context, id string) (bool, error) {
	if s.Launcher.Abort(id) {
		if w, ok := s.Launcher.(waiter); ok {
			if err := w.Wait(ctx, id); err != nil {
				return false, err
			}
		}
	}

	deleted, err := s.CampaignRepo.DeleteOne(ctx, id)
	if err != nil {
		s.log().Error("failed to delete campaign", zap.String("campaign_id", id), zap.Error(err))
		return false, fmt.Errorf("failed to delete campaign: %w", err)
	}
	if !deleted {
		return false, nil
	}

	n, err := s.MessageRepo.DeleteMany(ctx, id)
	if err != nil {
		return true, fmt.Errorf("failed to delete campaign messages: %w", err)
	}
	s.log().Info("campaign deleted", zap.String("campaign_id", id), zap.Int64("messages", n))
	return true, nil
}

// maxTransitionAttempts bounds the re-reads when concurrent writers keep
// changing a campaign's status under a lifecycle operation.
const maxTransitionAttempts = 3

// transition moves the campaign to `to` only from the status it was read
// with. When another writer changed the status in between, the campaign is
// re-read and the move re-checked against its new status. It reports whether
// a write happened; a campaign already in `to` is returned unchanged and a
// vanished one as nil.
func (s *CampaignService) transition(ctx context.Context, id string, to model.CampaignStatus, now time.Time) (*model.Campaign, bool, error) {
	for range maxTransitionAttempts {
		c, err := s.GetByID(ctx, id)
		if err != nil || c == nil {
			return nil, false, err
		}
		if c.Status == to {
			return c, false, nil
		}
		if !c.Status.CanTransition(to) {
			return nil, false, appErrors.NewInvalidTransition(id, string(c.Status), string(to))
		}

		ok, err := s.CampaignRepo.TransitionStatus(ctx, id, c.Status, to, now)
		if err != nil {
			s.log().Error("failed to change campaign status",
				zap.String("campaign_id", id), zap.String("status", string(to)), zap.Error(err))
			return nil, false, fmt.Errorf("failed to change campaign status: %w", err)
		}
		if ok {
			c.Status = to
			c.UpdatedAt = now
			return c, true, nil
		}
		s.log().Debug("campaign status changed concurrently, retrying",
			zap.String("campaign_id", id), zap.String("from", string(c.Status)))
	}
	return nil, false, fmt.Errorf("failed to change campaign %s to %s: status kept changing", id, to)
}

// Schedule marks a draft or scheduled campaign to start at when.
func (s *CampaignService) Schedule(ctx context.Context, id string, when time.Time) (*model.Campaign, error) {
	now := s.now()
	c, _, err := s.transition(ctx, id, model.StatusScheduled, now)
	if err != nil || c == nil {
		return nil, err
	}

	c.ScheduledFor = &when
	c.UpdatedAt = now
	if err := s.CampaignRepo.UpdateDetails(ctx, c); err != nil {
		return nil, s.notFoundOr(err, "failed to schedule campaign")
	}

	s.log().Info("campaign scheduled", zap.String("campaign_id", id), zap.Time("scheduled_for", when))
	s.publish(queue.LifecycleEvent{Type: queue.EventScheduled, CampaignID: id, Status: c.Status, Progress: c.Progress, At: now})
	return c, nil
}

// Start moves the campaign to in-progress and hands it to the launcher
// without waiting for any batch. Starting an in-progress campaign relaunches
// its loop when none is running.
func (s *CampaignService) Start(ctx context.Context, id string) (*model.Campaign, error) {
	c, _, err := s.transition(ctx, id, model.StatusInProgress, s.now())
	if err != nil || c == nil {
		return nil, err
	}

	if err := s.Launcher.Launch(ctx, id); err != nil {
		switch {
		case errors.Is(err, appErrors.ErrAlreadyRunning), errors.Is(err, appErrors.ErrLeaseHeld):
			s.log().Debug("campaign loop already running", zap.String("campaign_id", id))
		default:
			s.log().Error("failed to launch campaign", zap.String("campaign_id", id), zap.Error(err))
		}
	}
	return c, nil
}

// Cancel stops a campaign. Cancelling a cancelled campaign returns it unchanged.
func (s *CampaignService) Cancel(ctx context.Context, id string) (*model.Campaign, error) {
	now := s.now()
	c, moved, err := s.transition(ctx, id, model.StatusCancelled, now)
	if err != nil || c == nil || !moved {
		return c, err
	}
	s.Launcher.Abort(id)

	// re-read so the caller sees progress written by an in-flight batch
	if latest, err := s.GetByID(ctx, id); err == nil && latest != nil {
		c = latest
	}

	s.log().Info("campaign cancelled", zap.String("campaign_id", id))
	s.publish(queue.LifecycleEvent{Type: queue.EventCancelled, CampaignID: id, Status: model.StatusCancelled, Progress: c.Progress, At: now})
	return c, nil
}

func (s *CampaignService) SendTestMessage(ctx context.Context, channel model.Channel, phone, content string) (bool, error) {
	if !channel.Valid() {
		return false, fmt.Errorf("%w: invalid channel %q", appErrors.ErrInvalidInput, channel)
	}
	if strings.TrimSpace(phone) == "" {
		return false, fmt.Errorf("%w: phone number is required", appErrors.ErrInvalidInput)
	}
	return s.Sender.SendTest(ctx, channel, phone, content)
}

// UploadVoiceRecording stores the recording and, when campaignID names an
// existing campaign, attaches the returned URL to it.
func (s *CampaignService) UploadVoiceRecording(ctx context.Context, filename string, body io.Reader, campaignID string) (string, error) {
	if strings.TrimSpace(filename) == "" {
		return "", fmt.Errorf("%w: filename is required", appErrors.ErrInvalidInput)
	}
	url, err := s.Recordings.Upload(ctx, filename, body)
	if err != nil {
		s.log().Error("failed to upload recording", zap.String("filename", filename), zap.Error(err))
		return "", fmt.Errorf("failed to upload recording: %w", err)
	}

	if campaignID != "" {
		c, err := s.Update(ctx, campaignID, model.CampaignPatch{VoiceRecordingRef: &url})
		if err != nil {
			return url, err
		}
		if c == nil {
			s.log().Warn("recording uploaded for unknown campaign", zap.String("campaign_id", campaignID))
		}
	}
	return url, nil
}

// GetMessages returns an empty slice for unknown campaigns.
func (s *CampaignService) GetMessages(ctx context.Context, campaignID string) ([]*model.Message, error) {
	msgs, err := s.MessageRepo.FindByCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []*model.Message{}
	}
	return msgs, nil
}

func (s *CampaignService) Overview(ctx context.Context) (model.CampaignStats, error) {
	campaigns, err := s.CampaignRepo.Find(ctx, model.CampaignFilter{})
	if err != nil {
		return model.CampaignStats{}, err
	}
	return model.Summarize(campaigns), nil
}

func (s *CampaignService) ListContacts(ctx context.Context, filter model.ContactFilter) ([]*model.Contact, error) {
	return s.ContactRepo.Find(ctx, filter)
}

// DueScheduled lists scheduled campaigns whose start time is not after now.
func (s *CampaignService) DueScheduled(ctx context.Context, now time.Time) ([]*model.Campaign, error) {
	scheduled, err := s.CampaignRepo.Find(ctx, model.CampaignFilter{Status: model.StatusScheduled})
	if err != nil {
		return nil, err
	}
	due := []*model.Campaign{}
	for _, c := range scheduled {
		if c.ScheduledFor != nil && !c.ScheduledFor.After(now) {
			due = append(due, c)
		}
	}
	return due, nil
}

// Resume relaunches every in-progress campaign, typically after a restart
// left them without a loop. It returns how many were handed to the launcher.
func (s *CampaignService) Resume(ctx context.Context) (int, error) {
	active, err := s.CampaignRepo.Find(ctx, model.CampaignFilter{Status: model.StatusInProgress})
	if err != nil {
		return 0, fmt.Errorf("failed to list active campaigns: %w", err)
	}
	resumed := 0
	for _, c := range active {
		err := s.Launcher.Launch(ctx, c.ID)
		switch {
		case err == nil:
			resumed++
		case errors.Is(err, appErrors.ErrAlreadyRunning), errors.Is(err, appErrors.ErrLeaseHeld):
		default:
			s.log().Error("failed to resume campaign", zap.String("campaign_id", c.ID), zap.Error(err))
		}
	}
	if resumed > 0 {
		s.log().Info("resumed active campaigns", zap.Int("count", resumed))
	}
	return resumed, nil
}

// notFoundOr maps a vanished campaign to nil and wraps everything else.
func (s *CampaignService) notFoundOr(err error, msg string) error {
	if appErrors.IsNotFound(err) {
		return nil
	}
	s.log().Error(msg, zap.Error(err))
	return fmt.Errorf("%s: %w", msg, err)
}

func (s *CampaignService) publish(ev queue.LifecycleEvent) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(queue.TopicCampaignEvents, ev); err != nil {
		s.log().Warn("failed to publish lifecycle event", zap.String("campaign_id", ev.CampaignID), zap.Error(err))
	}
}
