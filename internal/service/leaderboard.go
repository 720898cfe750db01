package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/creator-xp/internal/domain"
	"github.com/creator-xp/internal/metrics"
)

const (
	// MaxTopN is the hard cap on rows returned by TopN
	MaxTopN = 100

	publishTimeout = 30 * time.Second

	DefaultLeaderboardTitle = "🏆 **Creator Leaderboard**"
	emptyLeaderboardLine    = "_No XP earned yet._"
)

// PublishAction is what Publish did to the announcement message
type PublishAction string

const (
	PublishCreated   PublishAction = "created"
	PublishEdited    PublishAction = "edited"
	PublishRecreated PublishAction = "recreated"
)

// PublishResult describes a completed publish
type PublishResult struct {
	MessageID string
	Action    PublishAction
	Pinned    bool
	Rows      int
}

// LeaderboardConfig configures the LeaderboardService
type LeaderboardConfig struct {
	Title          string
	PublishSize    int
	DefaultLimit   int
	MaxLimit       int
	ResolveWorkers int
}

// LeaderboardService provides ranked queries and maintains the single
// published leaderboard message
type LeaderboardService struct {
	ledger  Ledger
	gateway Gateway
	names   NameCache
	state   *PublishState
	config  LeaderboardConfig
	group   singleflight.Group
	logger  *slog.Logger
}

// NewLeaderboardService creates a new leaderboard service. names may be nil,
// in which case every display name comes from the gateway.
func NewLeaderboardService(
	ledger Ledger,
	gateway Gateway,
	names NameCache,
	state *PublishState,
	cfg LeaderboardConfig,
	logger *slog.Logger,
) *LeaderboardService {
	if cfg.Title == "" {
		cfg.Title = DefaultLeaderboardTitle
	}
	if cfg.PublishSize <= 0 {
		cfg.PublishSize = 10
	}
	if cfg.MaxLimit <= 0 || cfg.MaxLimit > MaxTopN {
		cfg.MaxLimit = MaxTopN
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = cfg.PublishSize
	}
	if cfg.ResolveWorkers <= 0 {
		cfg.ResolveWorkers = 4
	}
	if state == nil {
		state = NewPublishState()
	}
	return &LeaderboardService{
		ledger:  ledger,
		gateway: gateway,
		names:   names,
		state:   state,
		config:  cfg,
		logger:  logger,
	}
}

// ClampLimit bounds limit to [1, max]
func ClampLimit(limit, max int) int {
	if limit < 1 {
		return 1
	}
	if limit > max {
		return max
	}
	return limit
}

// DefaultLimit is the row count used when a caller gives none
func (s *LeaderboardService) DefaultLimit() int {
	return ClampLimit(s.config.DefaultLimit, s.config.MaxLimit)
}

// TopN returns up to limit ranked rows, limit clamped to [1, 100]. It never
// touches the gateway or the publish state.
func (s *LeaderboardService) TopN(ctx context.Context, limit int) ([]domain.LeaderboardRow, error) {
	entries, err := s.ledger.TopEntries(ctx, ClampLimit(limit, s.config.MaxLimit))
	if err != nil {
		return nil, fmt.Errorf("getting top entries: %w", err)
	}
	return domain.RowsFromEntries(entries), nil
}

// Publish renders the current top of the ledger into channelID, editing the
// previously published message when there is one. A failed edit clears the
// stored message and a fresh one is created and pinned. Concurrent calls for
// the same channel share one publish, which runs detached from any single
// caller's cancellation.
func (s *LeaderboardService) Publish(ctx context.Context, channelID string) (*PublishResult, error) {
	if channelID == "" {
		return nil, domain.ErrChannelNotConfigured
	}

	v, err, _ := s.group.Do(channelID, func() (interface{}, error) {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		return s.publish(pctx, channelID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*PublishResult), nil
}

func (s *LeaderboardService) publish(ctx context.Context, channelID string) (*PublishResult, error) {
	entries, err := s.ledger.TopEntries(ctx, ClampLimit(s.config.PublishSize, s.config.MaxLimit))
	if err != nil {
		return nil, fmt.Errorf("getting top entries: %w", err)
	}

	lines := s.resolveNames(ctx, domain.RowsFromEntries(entries))
	content := RenderLeaderboard(s.config.Title, lines)

	action := PublishCreated
	if messageID, ok := s.state.MessageID(channelID); ok {
		err := s.gateway.EditMessage(ctx, channelID, messageID, content)
		if err == nil {
			metrics.LeaderboardPublishTotal.WithLabelValues(string(PublishEdited)).Inc()
			s.logger.Info("leaderboard edited", "channel_id", channelID, "message_id", messageID, "rows", len(lines))
			return &PublishResult{MessageID: messageID, Action: PublishEdited, Rows: len(lines)}, nil
		}

		metrics.GatewayErrorsTotal.WithLabelValues("edit_message").Inc()
		s.logger.Warn("editing leaderboard message failed, recreating",
			"channel_id", channelID,
			"message_id", messageID,
			"error", err,
		)
		s.state.ClearIf(messageID)
		action = PublishRecreated
	}

	messageID, err := s.gateway.SendMessage(ctx, channelID, content)
	if err != nil {
		metrics.GatewayErrorsTotal.WithLabelValues("send_message").Inc()
		return nil, fmt.Errorf("sending leaderboard message: %w", err)
	}
	s.state.Set(channelID, messageID)

	pinned := true
	if err := s.gateway.PinMessage(ctx, channelID, messageID); err != nil {
		metrics.GatewayErrorsTotal.WithLabelValues("pin_message").Inc()
		s.logger.Warn("pinning leaderboard message failed", "channel_id", channelID, "message_id", messageID, "error", err)
		pinned = false
	}

	metrics.LeaderboardPublishTotal.WithLabelValues(string(action)).Inc()
	s.logger.Info("leaderboard published",
		"channel_id", channelID,
		"message_id", messageID,
		"action", action,
		"rows", len(lines),
	)

	return &PublishResult{MessageID: messageID, Action: action, Pinned: pinned, Rows: len(lines)}, nil
}

// resolveNames looks up display names for rows concurrently. A failed lookup
// falls back to the member id and never fails the batch.
func (s *LeaderboardService) resolveNames(ctx context.Context, rows []domain.LeaderboardRow) []domain.RankedLine {
	lines := make([]domain.RankedLine, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.ResolveWorkers)
	for i := range rows {
		i := i
		g.Go(func() error {
			lines[i] = domain.RankedLine{
				LeaderboardRow: rows[i],
				DisplayName:    s.displayName(gctx, rows[i].MemberID),
			}
			return nil
		})
	}
	_ = g.Wait()

	return lines
}

func (s *LeaderboardService) displayName(ctx context.Context, memberID string) string {
	if s.names != nil {
		name, err := s.names.DisplayName(ctx, memberID)
		if err == nil && name != "" {
			return name
		}
		if err != nil && !domain.IsNotFoundError(err) {
			s.logger.Debug("name cache lookup failed", "member_id", memberID, "error", err)
		}
	}

	member, err := s.gateway.Member(ctx, memberID)
	if err != nil || member == nil || member.DisplayName == "" {
		if err != nil {
			metrics.GatewayErrorsTotal.WithLabelValues("fetch_member").Inc()
			s.logger.Debug("member lookup failed, using id", "member_id", memberID, "error", err)
		}
		return memberID
	}

	if s.names != nil {
		if err := s.names.SetDisplayName(ctx, memberID, member.DisplayName); err != nil {
			s.logger.Debug("caching display name failed", "member_id", memberID, "error", err)
		}
	}
	return member.DisplayName
}

// RenderLeaderboard formats ranked lines into the announcement text
func RenderLeaderboard(title string, lines []domain.RankedLine) string {
	var b strings.Builder
	b.WriteString(title)
	if len(lines) == 0 {
		b.WriteString("\n")
		b.WriteString(emptyLeaderboardLine)
		return b.String()
	}
	for _, l := range lines {
		orders := "orders"
		if l.OrderCount == 1 {
			orders = "order"
		}
		fmt.Fprintf(&b, "\n**%d.** %s · %d XP · %d %s", l.Rank, l.DisplayName, l.XP, l.OrderCount, orders)
	}
	return b.String()
}
