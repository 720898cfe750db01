package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/creator-xp/internal/metrics"
)

// UserIDPlaceholder is replaced with the joining member's id
const UserIDPlaceholder = "{USER_ID}"

// WelcomeStatus is the outcome of one welcome attempt
type WelcomeStatus string

const (
	WelcomeSent          WelcomeStatus = "sent"
	WelcomeNoChannel     WelcomeStatus = "no_channel"
	WelcomeNoPermission  WelcomeStatus = "no_permission"
	WelcomeFailed        WelcomeStatus = "failed"
	WelcomeInvalidMember WelcomeStatus = "invalid_member"
)

// WelcomeResult describes a welcome attempt. Err carries the cause of any
// non-sent status for logging; it is never returned as an error.
type WelcomeResult struct {
	Status    WelcomeStatus
	MessageID string
	Err       error
}

// WelcomeService greets members who join the guild
type WelcomeService struct {
	gateway   Gateway
	channelID string
	template  string
	logger    *slog.Logger
}

// NewWelcomeService creates a new welcome service
func NewWelcomeService(gateway Gateway, channelID, template string, logger *slog.Logger) *WelcomeService {
	return &WelcomeService{
		gateway:   gateway,
		channelID: channelID,
		template:  template,
		logger:    logger,
	}
}

// RenderWelcome substitutes memberID into the first placeholder of template
func RenderWelcome(template, memberID string) string {
	return strings.Replace(template, UserIDPlaceholder, memberID, 1)
}

// OnMemberJoin posts the welcome message for memberID. Every failure is
// logged and reported in the result; nothing is retried.
func (s *WelcomeService) OnMemberJoin(ctx context.Context, memberID string) WelcomeResult {
	res := s.welcome(ctx, memberID)

	status := "skipped"
	switch res.Status {
	case WelcomeSent:
		status = "sent"
		s.logger.Info("welcome sent", "member_id", memberID, "message_id", res.MessageID)
	case WelcomeFailed:
		status = "failed"
		s.logger.Warn("welcome failed", "member_id", memberID, "channel_id", s.channelID, "error", res.Err)
	default:
		s.logger.Warn("welcome skipped", "member_id", memberID, "channel_id", s.channelID, "reason", res.Status, "error", res.Err)
	}
	metrics.WelcomeTotal.WithLabelValues(status).Inc()

	return res
}

func (s *WelcomeService) welcome(ctx context.Context, memberID string) WelcomeResult {
	if memberID == "" {
		return WelcomeResult{Status: WelcomeInvalidMember}
	}

	channel, err := s.gateway.Channel(ctx, s.channelID)
	if err != nil || channel == nil {
		metrics.GatewayErrorsTotal.WithLabelValues("fetch_channel").Inc()
		return WelcomeResult{Status: WelcomeNoChannel, Err: err}
	}

	perms, err := s.gateway.Permissions(ctx, channel.ID)
	if err != nil {
		metrics.GatewayErrorsTotal.WithLabelValues("permissions").Inc()
		return WelcomeResult{Status: WelcomeNoPermission, Err: err}
	}
	if !perms.CanPost() {
		return WelcomeResult{Status: WelcomeNoPermission}
	}

	messageID, err := s.gateway.SendMessage(ctx, channel.ID, RenderWelcome(s.template, memberID))
	if err != nil {
		metrics.GatewayErrorsTotal.WithLabelValues("send_message").Inc()
		return WelcomeResult{Status: WelcomeFailed, Err: err}
	}

	return WelcomeResult{Status: WelcomeSent, MessageID: messageID}
}
