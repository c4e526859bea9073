package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/campaign-service/internal/model"
)

// Sender delivers a one-off test message through a channel's provider.
type Sender interface {
	SendTest(ctx context.Context, channel model.Channel, phone, content string) (bool, error)
}

// RecordingStore persists an IVR voice recording and returns its URL.
type RecordingStore interface {
	Upload(ctx context.Context, filename string, body io.Reader) (string, error)
}

// StubSender accepts every test message after a fixed delay.
type StubSender struct {
	Delay  time.Duration
	Logger *zap.Logger
}

func (s *StubSender) SendTest(ctx context.Context, channel model.Channel, phone, content string) (bool, error) {
	if !sleep(ctx, s.Delay) {
		return false, ctx.Err()
	}
	if s.Logger != nil {
		s.Logger.Info("test message sent",
			zap.String("channel", string(channel)),
			zap.String("phone", phone),
			zap.Int("length", len(content)))
	}
	return true, nil
}

var whitespace = regexp.MustCompile(`\s+`)

// StubRecordingStore drains the upload and returns a URL under BaseURL.
type StubRecordingStore struct {
	BaseURL string
	Delay   time.Duration
}

func (s *StubRecordingStore) Upload(ctx context.Context, filename string, body io.Reader) (string, error) {
	if body != nil {
		if _, err := io.Copy(io.Discard, body); err != nil {
			return "", fmt.Errorf("read recording: %w", err)
		}
	}
	if !sleep(ctx, s.Delay) {
		return "", ctx.Err()
	}
	name := whitespace.ReplaceAllString(path.Base(filename), "-")
	return strings.TrimRight(s.BaseURL, "/") + "/" + name, nil
}
