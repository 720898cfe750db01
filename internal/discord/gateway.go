// Package discord adapts a Discord bot session to the gateway capability
// used by the services: send, edit and pin messages, fetch members and
// channels, check the bot's own permissions and deliver join signals.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/creator-xp/internal/config"
	"github.com/creator-xp/internal/domain"
)

const joinTimeout = 15 * time.Second

// JoinFunc is called once per member join in the configured guild
type JoinFunc func(ctx context.Context, memberID string)

// Gateway wraps a discordgo session
type Gateway struct {
	session *discordgo.Session
	guildID string
	limiter *rate.Limiter
	logger  *slog.Logger

	mu     sync.RWMutex
	onJoin JoinFunc
}

// New creates a gateway for the bot token in cfg. The connection is not
// opened until Open is called.
func New(cfg config.DiscordConfig, logger *slog.Logger) (*Gateway, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	g := &Gateway{
		session: session,
		guildID: cfg.GuildID,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:  logger,
	}

	session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		g.logger.Info("discord gateway ready", "user", r.User.Username, "guilds", len(r.Guilds))
	})
	session.AddHandler(func(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
		g.handleMemberAdd(m)
	})

	return g, nil
}

// OnMemberJoin registers fn as the join handler, replacing any previous one
func (g *Gateway) OnMemberJoin(fn JoinFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onJoin = fn
}

// Open connects to the Discord gateway
func (g *Gateway) Open() error {
	if err := g.session.Open(); err != nil {
		return fmt.Errorf("opening discord gateway: %w", err)
	}
	return nil
}

// Close disconnects from the Discord gateway
func (g *Gateway) Close() error {
	return g.session.Close()
}

func (g *Gateway) handleMemberAdd(m *discordgo.GuildMemberAdd) {
	if m == nil || m.Member == nil || m.User == nil {
		return
	}
	if g.guildID != "" && m.GuildID != g.guildID {
		return
	}

	g.mu.RLock()
	fn := g.onJoin
	g.mu.RUnlock()
	if fn == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), joinTimeout)
	defer cancel()
	fn(ctx, m.User.ID)
}

func (g *Gateway) wait(ctx context.Context) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for gateway rate limit: %w", err)
	}
	return nil
}

// SendMessage posts content to channelID and returns the new message id
func (g *Gateway) SendMessage(ctx context.Context, channelID, content string) (string, error) {
	if err := g.wait(ctx); err != nil {
		return "", err
	}
	msg, err := g.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("sending message: %w", notFound(err, domain.ErrChannelNotFound))
	}
	return msg.ID, nil
}

// EditMessage replaces the content of an existing message
func (g *Gateway) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	if err := g.wait(ctx); err != nil {
		return err
	}
	if _, err := g.session.ChannelMessageEdit(channelID, messageID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("editing message: %w", err)
	}
	return nil
}

// PinMessage pins a message in its channel
func (g *Gateway) PinMessage(ctx context.Context, channelID, messageID string) error {
	if err := g.wait(ctx); err != nil {
		return err
	}
	if err := g.session.ChannelMessagePin(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("pinning message: %w", err)
	}
	return nil
}

// Member resolves a member's display name. Inside a guild the nickname
// wins; otherwise the user's global name or username.
func (g *Gateway) Member(ctx context.Context, memberID string) (*domain.Member, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	if g.guildID != "" {
		m, err := g.session.GuildMember(g.guildID, memberID, discordgo.WithContext(ctx))
		if err == nil {
			return &domain.Member{ID: memberID, DisplayName: memberName(m)}, nil
		}
		if !isNotFound(err) {
			return nil, fmt.Errorf("fetching guild member: %w", err)
		}
	}

	u, err := g.session.User(memberID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetching user: %w", notFound(err, domain.ErrMemberNotFound))
	}
	return &domain.Member{ID: memberID, DisplayName: userName(u)}, nil
}

// Channel resolves a channel from the session cache, falling back to a
// REST fetch.
func (g *Gateway) Channel(ctx context.Context, channelID string) (*domain.Channel, error) {
	if ch, err := g.session.State.Channel(channelID); err == nil {
		return toChannel(ch), nil
	}

	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	ch, err := g.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetching channel: %w", notFound(err, domain.ErrChannelNotFound))
	}
	return toChannel(ch), nil
}

// Permissions returns the bot's own capabilities on channelID
func (g *Gateway) Permissions(ctx context.Context, channelID string) (domain.ChannelPermissions, error) {
	self := g.session.State.User
	if self == nil {
		return domain.ChannelPermissions{}, errors.New("gateway not ready")
	}

	bits, err := g.session.State.UserChannelPermissions(self.ID, channelID)
	if err != nil {
		if err := g.wait(ctx); err != nil {
			return domain.ChannelPermissions{}, err
		}
		bits, err = g.session.UserChannelPermissions(self.ID, channelID, discordgo.WithContext(ctx))
		if err != nil {
			return domain.ChannelPermissions{}, fmt.Errorf("computing permissions: %w", err)
		}
	}
	return permissionsFromBits(bits), nil
}

func permissionsFromBits(bits int64) domain.ChannelPermissions {
	if bits&discordgo.PermissionAdministrator != 0 {
		return domain.ChannelPermissions{View: true, Send: true}
	}
	return domain.ChannelPermissions{
		View: bits&discordgo.PermissionViewChannel != 0,
		Send: bits&discordgo.PermissionSendMessages != 0,
	}
}

func toChannel(ch *discordgo.Channel) *domain.Channel {
	return &domain.Channel{ID: ch.ID, Name: ch.Name, GuildID: ch.GuildID}
}

func memberName(m *discordgo.Member) string {
	if m.Nick != "" {
		return m.Nick
	}
	if m.User != nil {
		return userName(m.User)
	}
	return ""
}

func userName(u *discordgo.User) string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

func isNotFound(err error) bool {
	var restErr *discordgo.RESTError
	return errors.As(err, &restErr) &&
		restErr.Response != nil &&
		restErr.Response.StatusCode == http.StatusNotFound
}

// notFound maps a 404 from the REST API to sentinel, keeping the cause
func notFound(err, sentinel error) error {
	if isNotFound(err) {
		return fmt.Errorf("%w: %v", sentinel, err)
	}
	return err
}
