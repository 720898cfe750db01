package discord

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"

	"github.com/creator-xp/internal/domain"
)

func TestPermissionsFromBits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		bits int64
		want domain.ChannelPermissions
	}{
		{name: "none", bits: 0},
		{name: "view only", bits: discordgo.PermissionViewChannel, want: domain.ChannelPermissions{View: true}},
		{name: "send only", bits: discordgo.PermissionSendMessages, want: domain.ChannelPermissions{Send: true}},
		{name: "view and send", bits: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages, want: domain.ChannelPermissions{View: true, Send: true}},
		{name: "administrator", bits: discordgo.PermissionAdministrator, want: domain.ChannelPermissions{View: true, Send: true}},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, permissionsFromBits(tt.bits), tt.name)
	}
}

func TestMemberName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Nick", memberName(&discordgo.Member{Nick: "Nick", User: &discordgo.User{Username: "user"}}))
	require.Equal(t, "Global", memberName(&discordgo.Member{User: &discordgo.User{Username: "user", GlobalName: "Global"}}))
	require.Equal(t, "user", memberName(&discordgo.Member{User: &discordgo.User{Username: "user"}}))
	require.Equal(t, "", memberName(&discordgo.Member{}))
}

func TestNotFound(t *testing.T) {
	t.Parallel()

	restErr := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}}
	err := notFound(fmt.Errorf("wrapped: %w", restErr), domain.ErrMemberNotFound)
	require.ErrorIs(t, err, domain.ErrMemberNotFound)

	forbidden := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusForbidden}}
	require.Same(t, error(forbidden), notFound(forbidden, domain.ErrMemberNotFound))

	other := errors.New("boom")
	require.Same(t, other, notFound(other, domain.ErrMemberNotFound))
}

func TestHandleMemberAdd(t *testing.T) {
	t.Parallel()

	g := &Gateway{
		guildID: "g1",
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	var joined []string
	g.OnMemberJoin(func(ctx context.Context, memberID string) {
		_, hasDeadline := ctx.Deadline()
		require.True(t, hasDeadline)
		joined = append(joined, memberID)
	})

	event := func(guildID, userID string) *discordgo.GuildMemberAdd {
		return &discordgo.GuildMemberAdd{Member: &discordgo.Member{GuildID: guildID, User: &discordgo.User{ID: userID}}}
	}

	g.handleMemberAdd(event("g1", "u1"))
	g.handleMemberAdd(event("other", "u2"))
	g.handleMemberAdd(&discordgo.GuildMemberAdd{})
	g.handleMemberAdd(nil)
	g.handleMemberAdd(event("g1", "u3"))

	require.Equal(t, []string{"u1", "u3"}, joined)
}
