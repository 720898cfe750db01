package domain

import (
	"strings"
	"time"
)

// CreatorMapping binds a purchaser email to a community member.
type CreatorMapping struct {
	Email       string    `json:"email"`
	MemberID    string    `json:"member_id"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MapEmailRequest is the body of the internal map-email call.
type MapEmailRequest struct {
	Email       string `json:"email"`
	MemberID    string `json:"member_id"`
	DisplayName string `json:"display_name,omitempty"`
}

// Member is a community member as seen through the gateway.
type Member struct {
	ID          string
	DisplayName string
}

// Channel is a gateway channel.
type Channel struct {
	ID      string
	Name    string
	GuildID string
}

// ChannelPermissions holds the bot's own capabilities on a channel.
type ChannelPermissions struct {
	View bool
	Send bool
}

// CanPost reports whether the bot may both see and post in the channel.
func (p ChannelPermissions) CanPost() bool {
	return p.View && p.Send
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
