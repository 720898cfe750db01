package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/creator-xp/internal/domain"
)

var errGateway = errors.New("gateway unavailable")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sentMessage struct {
	ChannelID string
	Content   string
}

// fakeGateway records outbound calls and serves canned members and channels.
type fakeGateway struct {
	mu sync.Mutex

	members  map[string]string
	channels map[string]domain.Channel
	perms    domain.ChannelPermissions

	sendErr   error
	editErr   error
	pinErr    error
	permsErr  error
	memberErr error

	nextID       int
	sent         []sentMessage
	edits        map[string]string
	pins         []string
	memberLookup int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		members:  make(map[string]string),
		channels: make(map[string]domain.Channel),
		perms:    domain.ChannelPermissions{View: true, Send: true},
		edits:    make(map[string]string),
	}
}

func (g *fakeGateway) SendMessage(ctx context.Context, channelID, content string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if g.sendErr != nil {
		return "", g.sendErr
	}
	g.nextID++
	g.sent = append(g.sent, sentMessage{ChannelID: channelID, Content: content})
	return fmt.Sprintf("m%d", g.nextID), nil
}

func (g *fakeGateway) EditMessage(_ context.Context, _, messageID, content string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.editErr != nil {
		return g.editErr
	}
	g.edits[messageID] = content
	return nil
}

func (g *fakeGateway) PinMessage(_ context.Context, _, messageID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pinErr != nil {
		return g.pinErr
	}
	g.pins = append(g.pins, messageID)
	return nil
}

func (g *fakeGateway) Member(_ context.Context, memberID string) (*domain.Member, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.memberLookup++
	if g.memberErr != nil {
		return nil, g.memberErr
	}
	name, ok := g.members[memberID]
	if !ok {
		return nil, domain.ErrMemberNotFound
	}
	return &domain.Member{ID: memberID, DisplayName: name}, nil
}

func (g *fakeGateway) Channel(_ context.Context, channelID string) (*domain.Channel, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.channels[channelID]
	if !ok {
		return nil, domain.ErrChannelNotFound
	}
	return &ch, nil
}

func (g *fakeGateway) Permissions(_ context.Context, _ string) (domain.ChannelPermissions, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.permsErr != nil {
		return domain.ChannelPermissions{}, g.permsErr
	}
	return g.perms, nil
}

func (g *fakeGateway) sentCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

// mapNames is an in-memory NameCache.
type mapNames struct {
	mu    sync.Mutex
	names map[string]string
}

func newMapNames() *mapNames {
	return &mapNames{names: make(map[string]string)}
}

func (m *mapNames) DisplayName(_ context.Context, memberID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.names[memberID]
	if !ok {
		return "", domain.ErrMemberNotFound
	}
	return name, nil
}

func (m *mapNames) SetDisplayName(_ context.Context, memberID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[memberID] = name
	return nil
}
